package speech

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var pronunciation = strings.NewReplacer("COGNIX", "Cog-nix", "Cognix", "Cog-nix")

// pictographs covers emoticons, pictographs, transport symbols, flags,
// dingbats and emoji variation selectors.
var pictographs = &unicode.RangeTable{
	R16: []unicode.Range16{
		{Lo: 0x2600, Hi: 0x26ff, Stride: 1},
		{Lo: 0x2700, Hi: 0x27bf, Stride: 1},
		{Lo: 0xfe00, Hi: 0xfe0f, Stride: 1},
	},
	R32: []unicode.Range32{
		{Lo: 0x1f1e0, Hi: 0x1f1ff, Stride: 1},
		{Lo: 0x1f300, Hi: 0x1f5ff, Stride: 1},
		{Lo: 0x1f600, Hi: 0x1f64f, Stride: 1},
		{Lo: 0x1f680, Hi: 0x1f6ff, Stride: 1},
		{Lo: 0x1f900, Hi: 0x1f9ff, Stride: 1},
		{Lo: 0x1fa00, Hi: 0x1faff, Stride: 1},
	},
}

const punctuation = ".,!?;:()-'\"/"

func unspeakable(r rune) bool {
	return !(unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.Is(unicode.Mn, r) ||
		unicode.IsSpace(r) || r == '_' || strings.ContainsRune(punctuation, r))
}

// Normalize prepares text for a speech engine. The assistant's name is
// respelled so engines pronounce it, pictographs and other symbols are
// removed and whitespace is collapsed. An empty result means there is
// nothing worth speaking.
func Normalize(text string) string {
	t := transform.Chain(
		norm.NFC,
		runes.Remove(runes.In(pictographs)),
		runes.Remove(runes.Predicate(unspeakable)),
	)
	cleaned, _, err := transform.String(t, pronunciation.Replace(text))
	if err != nil {
		return ""
	}
	return strings.Join(strings.Fields(cleaned), " ")
}
