package utils

import (
	"strings"
)

// TruncateText truncates text to maxLen characters, adding "..." if truncated.
// Also removes newlines for single-line display.
func TruncateText(text string, maxLen int) string {
	// Remove newlines for single-line display
	text = strings.ReplaceAll(text, "\n", " ")
	text = strings.TrimSpace(text)

	if len(text) <= maxLen {
		return text
	}
	if maxLen <= 3 {
		return "..."
	}
	return text[:maxLen-3] + "..."
}

// TruncateBlock truncates multi-line text to maxLen characters while keeping
// line structure. Slack section blocks reject text over 3000 characters and
// Jira descriptions have a similar ceiling.
func TruncateBlock(text string, maxLen int) string {
	if len(text) <= maxLen {
		return text
	}

	truncated := text[:maxLen]
	// Prefer cutting at a line boundary near the end
	if idx := strings.LastIndex(truncated, "\n"); idx > maxLen-100 && idx > 0 {
		truncated = truncated[:idx]
	}
	return truncated + "\n...(truncated)"
}
