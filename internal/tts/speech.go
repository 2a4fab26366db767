package tts

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	fencedCodeRE   = regexp.MustCompile("(?s)```.*?```")
	inlineCodeRE   = regexp.MustCompile("`[^`]*`")
	markdownLinkRE = regexp.MustCompile(`\[(.*?)\]\((.*?)\)`)
	urlRE          = regexp.MustCompile(`https?://\S+`)

	markupReplacer = strings.NewReplacer("*", " ", "_", " ", "\\", " ", "/", " ", "|", " ", "#", " ", "~", " ", "<", " ", ">", " ")
)

// SpeechText strips markup, links and emoji from text so agent
// descriptions read naturally when spoken.
func SpeechText(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	s = fencedCodeRE.ReplaceAllString(s, " ")
	s = inlineCodeRE.ReplaceAllString(s, " ")
	s = markdownLinkRE.ReplaceAllString(s, "$1")
	s = urlRE.ReplaceAllString(s, " ")
	s = markupReplacer.Replace(s)

	var b strings.Builder
	b.Grow(len(s))
	space := true
	for _, r := range s {
		switch {
		case r == '‍' || r == '️' || r == '⃣':
		case unicode.IsSpace(r):
			if !space {
				b.WriteByte(' ')
				space = true
			}
		case unicode.IsControl(r), unicode.In(r, unicode.So, unicode.Sm, unicode.Sk):
		case spokenPunct(r):
			b.WriteRune(r)
			space = false
		case unicode.IsPunct(r):
			if !space {
				b.WriteByte(' ')
				space = true
			}
		default:
			b.WriteRune(r)
			space = false
		}
	}
	return strings.TrimSpace(b.String())
}

// spokenPunct keeps the marks that shape intonation, including the Spanish
// opening question and exclamation marks.
func spokenPunct(r rune) bool {
	switch r {
	case '.', ',', '!', '?', '¡', '¿', ':', ';', '\'', '"', '-', '(', ')':
		return true
	}
	return false
}

// prepare cleans the request text and rejects requests with nothing to say.
func prepare(req Request) (Request, error) {
	req.Text = SpeechText(req.Text)
	if req.Text == "" {
		return req, ErrEmptyText
	}
	return req, nil
}
