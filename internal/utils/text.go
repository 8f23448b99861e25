package utils

import "time"

const (
	previewLength = 100
	displayLayout = "Jan 2, 2006, 03:04 PM"
)

// Preview returns the first 100 characters of text, with "..." appended
// when anything was cut.
func Preview(text string) string {
	runes := []rune(text)
	if len(runes) <= previewLength {
		return text
	}
	return string(runes[:previewLength]) + "..."
}

func FormatDate(t time.Time) string {
	return t.Format(displayLayout)
}
