package shell

import "strings"

// filenameExtra are the non-alphanumeric bytes allowed in redirection targets.
const filenameExtra = "_-.,/~+"

// IsFilename reports whether s is acceptable as a redirection target: it must
// be non-empty and consist only of ASCII letters, digits and the characters
// _ - . , / ~ +.
func IsFilename(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		case strings.IndexByte(filenameExtra, c) >= 0:
		default:
			return false
		}
	}
	return true
}
