package utils

// Truncate shortens s to at most maxLen runes, appending "..." when anything
// was cut. Counting runes keeps multibyte model output from being split
// mid-character in log lines.
func Truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}
