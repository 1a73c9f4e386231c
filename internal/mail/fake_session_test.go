package mail

import (
	"context"
	"sync"
	"time"
)

// fakeSession scripts the Session contract for Listener and Processor
// tests. All counters are guarded so the Listener goroutine and the test
// goroutine can both look at them.
type fakeSession struct {
	mu sync.Mutex

	authErr   error
	selectErr error
	searchErr error
	fetchErr  error
	enterErr  error

	// seqNums is what Search returns (the mailbox listing).
	seqNums []uint32

	// fetchData maps sequence numbers to canned fetch results.
	fetchData map[uint32]*MessageData

	// onPoll scripts PollNotifications per call number (starting at 1).
	onPoll func(call int) ([]NotificationEvent, error)

	authCalls   int
	selectCalls int
	searchCalls int
	fetchCalls  int
	enterCalls  int
	endCalls    int
	logoutCalls int
	pollCalls   int
}

func (f *fakeSession) Authenticate(_ context.Context, _, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.authCalls++
	return f.authErr
}

func (f *fakeSession) Select(_ context.Context, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.selectCalls++
	return f.selectErr
}

func (f *fakeSession) Search(_ context.Context) ([]uint32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searchCalls++
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return append([]uint32(nil), f.seqNums...), nil
}

func (f *fakeSession) Fetch(_ context.Context, seqNums []uint32) (map[uint32]*MessageData, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchCalls++
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	result := make(map[uint32]*MessageData)
	for _, seq := range seqNums {
		if data, ok := f.fetchData[seq]; ok {
			result[seq] = data
		}
	}
	return result, nil
}

func (f *fakeSession) EnterNotificationSession(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.enterCalls++
	return f.enterErr
}

func (f *fakeSession) PollNotifications(_ context.Context, _ time.Duration) ([]NotificationEvent, error) {
	f.mu.Lock()
	f.pollCalls++
	call := f.pollCalls
	onPoll := f.onPoll
	f.mu.Unlock()

	if onPoll == nil {
		return nil, nil
	}
	return onPoll(call)
}

func (f *fakeSession) EndNotificationSession(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.endCalls++
	return nil
}

func (f *fakeSession) Logout(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logoutCalls++
	return nil
}

func (f *fakeSession) Clone() Session {
	return &fakeSession{
		authErr:   f.authErr,
		selectErr: f.selectErr,
		searchErr: f.searchErr,
		fetchErr:  f.fetchErr,
		enterErr:  f.enterErr,
		seqNums:   f.seqNums,
		fetchData: f.fetchData,
		onPoll:    f.onPoll,
	}
}

func (f *fakeSession) counts() (auth, enter, end, logout int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.authCalls, f.enterCalls, f.endCalls, f.logoutCalls
}

// plainMessage builds canned fetch data with a bare text/plain body.
func plainMessage(sender, subject, body string) *MessageData {
	raw := "From: " + sender + "\r\n" +
		"Subject: " + subject + "\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n" +
		"\r\n" +
		body
	return &MessageData{
		Envelope:     Envelope{Sender: sender, Subject: subject},
		InternalDate: time.Date(2025, 2, 3, 4, 5, 6, 0, time.UTC),
		Raw:          []byte(raw),
	}
}
