package format

import (
	"fmt"
	"strings"
)

const (
	// MarkdownV1 denotes Telegram markdown version 1.
	MarkdownV1 = 1
	// MarkdownV2 denotes Telegram markdown version 2.
	MarkdownV2 = 2
)

const (
	mdV1Specials = "_*`["
	mdV2Specials = "\\_*[]()~`>#+-=|{}.!"
)

// EscapeMarkdown escapes special characters for MarkdownV1 or V2.
func EscapeMarkdown(text string, version int) (string, error) {
	var specials string
	switch version {
	case MarkdownV1:
		specials = mdV1Specials
	case MarkdownV2:
		specials = mdV2Specials
	default:
		return "", fmt.Errorf("unsupported markdown version: %d", version)
	}
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if strings.ContainsRune(specials, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String(), nil
}

// MD escapes text for legacy Markdown messages.
func MD(text string) string {
	s, _ := EscapeMarkdown(text, MarkdownV1)
	return s
}

// MDBold renders text in bold for legacy Markdown. Escapes are not allowed
// inside an entity, so each '*' closes the bold run and is written escaped
// between two runs. Empty input yields an empty string.
func MDBold(text string) string {
	var b strings.Builder
	for i, part := range strings.Split(text, "*") {
		if i > 0 {
			b.WriteString(`\*`)
		}
		if part != "" {
			b.WriteString("*" + part + "*")
		}
	}
	return b.String()
}
