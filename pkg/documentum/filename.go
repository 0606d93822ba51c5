package documentum

import (
	"strings"
	"unicode"
)

// foldings maps accented Latin letters to their ASCII base letter.
var foldings = map[rune]string{
	'À': "A", 'Á': "A", 'Â': "A", 'Ã': "A", 'Ä': "A", 'Å': "A",
	'à': "a", 'á': "a", 'â': "a", 'ã': "a", 'ä': "a", 'å': "a",
	'È': "E", 'É': "E", 'Ê': "E", 'Ë': "E",
	'è': "e", 'é': "e", 'ê': "e", 'ë': "e",
	'Ì': "I", 'Í': "I", 'Î': "I", 'Ï': "I",
	'ì': "i", 'í': "i", 'î': "i", 'ï': "i",
	'Ò': "O", 'Ó': "O", 'Ô': "O", 'Õ': "O", 'Ö': "O",
	'ò': "o", 'ó': "o", 'ô': "o", 'õ': "o", 'ö': "o",
	'Ù': "U", 'Ú': "U", 'Û': "U", 'Ü': "U",
	'ù': "u", 'ú': "u", 'û': "u", 'ü': "u",
	'Ç': "C", 'ç': "c", 'Ñ': "N", 'ñ': "n", 'ÿ': "y",
	'Œ': "OE", 'œ': "oe", 'Æ': "AE", 'æ': "ae",
}

// SanitizeFilename converts a file name to printable ASCII usable in object
// keys and HTTP headers. Accented letters lose their diacritics; anything
// else outside ASCII, path separators and quotes become '-'.
func SanitizeFilename(filename string) string {
	if filename == "" {
		return ""
	}

	var result strings.Builder
	result.Grow(len(filename))

	for _, r := range filename {
		switch {
		case r == '/' || r == '\\' || r == '"':
			result.WriteRune('-')
		case r < 128 && unicode.IsPrint(r):
			result.WriteRune(r)
		default:
			if folded, ok := foldings[r]; ok {
				result.WriteString(folded)
			} else {
				result.WriteRune('-')
			}
		}
	}

	return result.String()
}
