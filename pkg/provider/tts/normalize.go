package tts

import (
	"regexp"
	"strings"
)

// Normalization strips formatting artifacts that read badly when spoken:
// markdown code, bracketed stage directions from the conversation script,
// and synthesis control markers. The rules run in a fixed order; the output
// of a pass is stable under a second pass.
var (
	codeBlockRe    = regexp.MustCompile("```[^`]*```")
	inlineCodeRe   = regexp.MustCompile("`[^`]*`")
	customerNameRe = regexp.MustCompile(`(?i)\[customer name\]`)
	bracketRe      = regexp.MustCompile(`\[[^\[\]]*\]`)
	breakTagRe     = regexp.MustCompile(`<break[^>]*>`)
	whitespaceRe   = regexp.MustCompile(`\s+`)
)

// customerNameSpoken replaces the script's customer-name placeholder when no
// real name has been substituted upstream.
const customerNameSpoken = "sir or madam"

// Normalize cleans text for a synthesis API. It returns the empty string when
// nothing speakable remains — callers must treat that as "nothing to
// synthesize", not as an error. When maxLen > 0 the result is truncated to
// maxLen bytes with no word-boundary awareness.
func Normalize(text string, maxLen int) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}

	text = codeBlockRe.ReplaceAllString(text, "")
	text = inlineCodeRe.ReplaceAllString(text, "")

	text = customerNameRe.ReplaceAllString(text, customerNameSpoken)
	text = bracketRe.ReplaceAllString(text, "")

	// Spoken-emphasis control markers: break tags become a plain pause gap,
	// thinking pauses become the word itself, dramatic dashes disappear.
	text = breakTagRe.ReplaceAllString(text, " ")
	text = strings.ReplaceAll(text, ",,um,,", "um")
	text = strings.ReplaceAll(text, "---", "")

	text = whitespaceRe.ReplaceAllString(text, " ")
	text = strings.TrimSpace(text)

	if maxLen > 0 && len(text) > maxLen {
		text = text[:maxLen]
	}
	return text
}
