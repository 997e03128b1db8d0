package textproc

import (
	"strings"
	"unicode"
)

// BasicCleanup is the rule-based fallback used when the LLM is disabled,
// unreachable or produced a rejected rewrite: drop fillers, collapse
// whitespace, capitalize the first letter and close with a period.
func BasicCleanup(text string) string {
	lowered := strings.ToLower(text)
	for _, p := range fillerPhrases {
		idx := 0
		for {
			i := strings.Index(lowered[idx:], p)
			if i < 0 {
				break
			}
			start := idx + i
			end := start + len(p)
			text = text[:start] + strings.Repeat(" ", len(p)) + text[end:]
			idx = end
		}
	}

	var words []string
	for _, w := range strings.Fields(text) {
		bare := strings.ToLower(strings.Trim(w, ".,!?;:"))
		if fillers[bare] {
			continue
		}
		words = append(words, w)
	}
	out := strings.Join(words, " ")
	if out == "" {
		return ""
	}

	runes := []rune(out)
	runes[0] = unicode.ToUpper(runes[0])
	out = string(runes)

	switch runes[len(runes)-1] {
	case '.', '!', '?':
	default:
		out += "."
	}
	return out
}
