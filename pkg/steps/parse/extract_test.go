package parse

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractTagged(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		tag      string
		expected []string
	}{
		{
			name:     "single block trimmed",
			text:     "<enhanced_prompt> X </enhanced_prompt>",
			tag:      TagEnhancedPrompt,
			expected: []string{"X"},
		},
		{
			name:     "no tags",
			text:     "no tags here",
			tag:      TagEnhancedPrompt,
			expected: []string{},
		},
		{
			name:     "multiline content",
			text:     "Here you go:\n<enhanced_prompt>\nline one\nline two\n</enhanced_prompt>\nWant changes?",
			tag:      TagEnhancedPrompt,
			expected: []string{"line one\nline two"},
		},
		{
			name:     "multiple suggestions in order",
			text:     "<suggestion>\nfirst\n</suggestion>\n<suggestion>second</suggestion><suggestion> third </suggestion>",
			tag:      TagSuggestion,
			expected: []string{"first", "second", "third"},
		},
		{
			name:     "unclosed tag ignored",
			text:     "<suggestion>done</suggestion><suggestion>never closed",
			tag:      TagSuggestion,
			expected: []string{"done"},
		},
		{
			name:     "nested tags close at first closing tag",
			text:     "<suggestion>a<suggestion>b</suggestion>c</suggestion>",
			tag:      TagSuggestion,
			expected: []string{"a<suggestion>b"},
		},
		{
			name:     "other tags are not matched",
			text:     "<suggestion>s</suggestion><enhanced_prompt>p</enhanced_prompt>",
			tag:      TagEnhancedPrompt,
			expected: []string{"p"},
		},
		{
			name:     "tag name with regexp metacharacters",
			text:     "<a.b>x</a.b><aXb>y</aXb>",
			tag:      "a.b",
			expected: []string{"x"},
		},
		{
			name:     "empty block",
			text:     "<suggestion>   </suggestion>",
			tag:      TagSuggestion,
			expected: []string{""},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ExtractTagged(tt.text, tt.tag))
		})
	}
}

func TestLatestTagged(t *testing.T) {
	text := "<enhanced_prompt>first</enhanced_prompt> revised: <enhanced_prompt>second</enhanced_prompt>"
	got, ok := LatestTagged(text, TagEnhancedPrompt)
	assert.True(t, ok)
	assert.Equal(t, "second", got)

	_, ok = LatestTagged("nothing", TagEnhancedPrompt)
	assert.False(t, ok)
}
