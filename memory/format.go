package memory

// preview keeps the first n runes of s and always marks the cut with "...",
// so readers can tell a preview from a full answer.
func preview(s string, n int) string {
	runes := []rune(s)
	if len(runes) > n {
		runes = runes[:n]
	}
	return string(runes) + "..."
}

// truncateLog truncates text for logging.
func truncateLog(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}
