package models

// PreviewLength is the number of runes kept by Preview.
const PreviewLength = 50

// Preview truncates s to PreviewLength runes, appending "..." when
// anything was cut.
func Preview(s string) string {
	runes := []rune(s)
	if len(runes) <= PreviewLength {
		return s
	}
	return string(runes[:PreviewLength]) + "..."
}
