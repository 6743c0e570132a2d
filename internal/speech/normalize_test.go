package speech

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"name and emoji", "COGNIX says 🎉 hello", "Cog-nix says hello"},
		{"mixed case name", "I'm Cognix!", "I'm Cog-nix!"},
		{"only symbols", "🎉🎊", ""},
		{"flags and dingbats", "Go 🇳🇿 ✅ now ☀️", "Go now"},
		{"keeps punctuation", `Yes: (a), "b"; c/d - e?`, `Yes: (a), "b"; c/d - e?`},
		{"drops markup", "**bold** and `code` #1 @you", "bold and code 1 you"},
		{"collapses whitespace", "  line one\n\n\tline   two  ", "line one line two"},
		{"keeps accents", "café naïve", "café naïve"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestNormalizeRemovesAllPictographs(t *testing.T) {
	out := Normalize("COGNIX 😀🚀🤖🪐♟ ok")
	assert.Equal(t, "Cog-nix ok", out)
	for _, r := range out {
		assert.NotContains(t, []rune{'😀', '🚀', '🤖', '🪐', '♟'}, r)
	}
}
