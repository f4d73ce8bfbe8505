package symbols

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// asciiOnly decomposes accented letters and drops whatever is left outside
// ASCII, so "Café" becomes "Cafe".
var asciiOnly = transform.Chain(norm.NFKD, runes.Remove(runes.Predicate(func(r rune) bool {
	return r > unicode.MaxASCII
})))

var nameReplacer = strings.NewReplacer(" ", "_", ".", "_")

// CleanName turns an authoring name into a C identifier fragment: spaces
// and dots become underscores and non-ASCII characters are stripped.
func CleanName(name string) string {
	name = nameReplacer.Replace(name)
	out, _, err := transform.String(asciiOnly, name)
	if err != nil {
		return name
	}
	return out
}

// TexturePrefix returns the identifier used for a texture's TIM symbols:
// the part of the image name before the first dot, dashes replaced.
func TexturePrefix(imageName string) string {
	base, _, _ := strings.Cut(imageName, ".")
	return CleanName(strings.ReplaceAll(base, "-", "_"))
}

// BaseName returns a file name up to its first dot, as used for sound symbols.
func BaseName(name string) string {
	base, _, _ := strings.Cut(name, ".")
	return base
}
