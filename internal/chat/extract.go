package chat

import "strings"

// ExtractText concatenates the text parts of a message in order.
// Non-text parts contribute nothing, and no separator is inserted.
func ExtractText(parts []Part) string {
	var b strings.Builder
	for _, p := range parts {
		if p.Type == "text" {
			b.WriteString(p.Text)
		}
	}
	return b.String()
}

// FirstUserText returns the text of the earliest user message, or ""
// when the transcript holds none. New conversations are titled from it.
func FirstUserText(messages []Message) string {
	for _, m := range messages {
		if m.Role == "user" {
			return ExtractText(m.Parts)
		}
	}
	return ""
}

// LastUserText returns the text of the most recent user message, or ""
// when the transcript holds none.
func LastUserText(messages []Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" {
			return ExtractText(messages[i].Parts)
		}
	}
	return ""
}
