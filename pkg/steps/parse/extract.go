package parse

import (
	"regexp"
	"strings"
	"sync"
)

const (
	// TagEnhancedPrompt wraps the final prompt the model produces in a session.
	TagEnhancedPrompt = "enhanced_prompt"
	// TagSuggestion wraps each candidate value the model proposes in the wizard.
	TagSuggestion = "suggestion"
)

var tagPatterns sync.Map // tag name -> *regexp.Regexp

func tagPattern(tag string) *regexp.Regexp {
	if re, ok := tagPatterns.Load(tag); ok {
		return re.(*regexp.Regexp)
	}
	q := regexp.QuoteMeta(tag)
	re := regexp.MustCompile(`(?s)<` + q + `>(.*?)</` + q + `>`)
	actual, _ := tagPatterns.LoadOrStore(tag, re)
	return actual.(*regexp.Regexp)
}

// ExtractTagged returns the trimmed content of every <tag>...</tag> block in text, in the
// order they appear. Blocks may span lines. Tags do not nest: an opening tag is closed by
// the first closing tag after it. Unclosed tags are ignored.
func ExtractTagged(text string, tag string) []string {
	if tag == "" || text == "" {
		return []string{}
	}
	matches := tagPattern(tag).FindAllStringSubmatch(text, -1)
	ret := make([]string, 0, len(matches))
	for _, m := range matches {
		ret = append(ret, strings.TrimSpace(m[1]))
	}
	return ret
}

// LatestTagged returns the content of the last <tag>...</tag> block in text.
func LatestTagged(text string, tag string) (string, bool) {
	blocks := ExtractTagged(text, tag)
	if len(blocks) == 0 {
		return "", false
	}
	return blocks[len(blocks)-1], true
}
