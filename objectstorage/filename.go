package objectstorage

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// SecureFilename returns a version of name that is safe to use as an object
// key: compatibility-decomposed to ASCII, path separators and whitespace
// runs turned into single underscores, every other character outside
// [A-Za-z0-9_.-] dropped and leading or trailing dots and underscores
// trimmed. The result may be empty.
func SecureFilename(name string) string {
	decomposed := norm.NFKD.String(name)
	ascii := strings.Map(func(r rune) rune {
		if r > 127 {
			return -1
		}
		return r
	}, decomposed)
	ascii = strings.NewReplacer("/", " ", `\`, " ").Replace(ascii)
	joined := strings.Join(strings.Fields(ascii), "_")
	return strings.Trim(unsafeFilenameChars.ReplaceAllString(joined, ""), "._")
}
