package module

import "strings"

// SplitArgs turns a module argument string into an argv vector with name as
// argv[0]. Arguments are separated by whitespace. Single quotes group text
// literally, double quotes group text and honor backslash escapes of '"' and
// '\'. An unterminated quote runs to the end of the string.
func SplitArgs(name, args string) []string {
	argv := []string{name}

	var (
		cur     strings.Builder
		inToken bool
		quote   rune
		escaped bool
	)
	flush := func() {
		if inToken {
			argv = append(argv, cur.String())
			cur.Reset()
			inToken = false
		}
	}

	for _, r := range args {
		switch {
		case escaped:
			if r != '"' && r != '\\' {
				cur.WriteRune('\\')
			}
			cur.WriteRune(r)
			escaped = false
		case quote == '"' && r == '\\':
			escaped = true
		case quote != 0 && r == quote:
			quote = 0
		case quote != 0:
			cur.WriteRune(r)
		case r == '"' || r == '\'':
			quote = r
			inToken = true
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			flush()
		default:
			cur.WriteRune(r)
			inToken = true
		}
	}
	if escaped {
		cur.WriteRune('\\')
	}
	flush()
	return argv
}
