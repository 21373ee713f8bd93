package tools

import (
	"fmt"
	"strings"

	"github.com/kokoro-ai/kokoro/memory"
)

// FormatRecords renders records as a bullet list grouped under
// human-readable category labels, for embedding into a system prompt.
// Returns the empty string for an empty list.
func FormatRecords(records []memory.Record) string {
	if len(records) == 0 {
		return ""
	}

	grouped := make(map[memory.Category][]memory.Record)
	for _, rec := range records {
		grouped[rec.Category] = append(grouped[rec.Category], rec)
	}

	var b strings.Builder
	for _, cat := range memory.Categories {
		recs := grouped[cat]
		if len(recs) == 0 {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(cat.Label())
		b.WriteString(":\n")
		for _, rec := range recs {
			fmt.Fprintf(&b, "- %s (importance: %d)\n", rec.Content, rec.Importance)
		}
	}
	return b.String()
}
