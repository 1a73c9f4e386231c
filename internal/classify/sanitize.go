package classify

import "strings"

// fencePrefixes are code-fence markers some backends wrap JSON output in,
// in spite of instructions. Longer markers first so "```json" wins over
// "```".
var fencePrefixes = []string{"```json", "```JSON", "```"}

const fenceSuffix = "```"

// stripFences removes one layer of leading/trailing code-fence markers from
// a backend reply. This is a best-effort, backend-specific normalization; a
// well-behaved backend makes it a no-op.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	for _, prefix := range fencePrefixes {
		if strings.HasPrefix(s, prefix) {
			s = s[len(prefix):]
			break
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), fenceSuffix)
	return strings.TrimSpace(s)
}
