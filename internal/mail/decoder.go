package mail

import (
	"bytes"
	"io"
	"strings"

	gomail "github.com/emersion/go-message/mail"

	"github.com/nhle/mailtrigger/internal/trigger"
)

// sourceTag marks messages decoded from a mail session.
const sourceTag = "email"

// DecodeMessage normalizes one raw fetch result into a trigger.Message,
// extracting the text/plain part of the MIME body. A body that fails MIME
// parsing is kept verbatim as plain text rather than dropped.
func DecodeMessage(data *MessageData, seq uint32) (trigger.Message, error) {
	if data == nil {
		return trigger.Message{}, &ResponseError{Seq: seq, Reason: "no fetch data"}
	}
	if data.Envelope.Sender == "" && data.Envelope.Subject == "" {
		return trigger.Message{}, &ResponseError{Seq: seq, Reason: "missing envelope"}
	}

	body := extractPlainText(data.Raw)

	return trigger.NewMessage(
		data.Envelope.Sender,
		data.Envelope.Subject,
		body,
		sourceTag,
		data.InternalDate,
	), nil
}

// extractPlainText walks the MIME structure for the first text/plain inline
// part. Unparseable input is treated as a bare plain-text body.
func extractPlainText(raw []byte) string {
	if len(raw) == 0 {
		return ""
	}

	mr, err := gomail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return string(raw)
	}
	defer mr.Close()

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}

		header, ok := part.Header.(*gomail.InlineHeader)
		if !ok {
			continue
		}
		contentType, _, _ := header.ContentType()
		if !strings.HasPrefix(contentType, "text/plain") {
			continue
		}
		body, readErr := io.ReadAll(part.Body)
		if readErr != nil {
			continue
		}
		return string(body)
	}

	return ""
}
