package migration

import (
	"regexp"
	"strings"
)

// Substitute replaces the first match of expr in key with the expanded template.
// The template may reference the match:
//
//	$1 .. $99   captured group (two digits are used if that group exists)
//	$&          the whole match
//	$`          the part of key before the match
//	$'          the part of key after the match
//	$$          a literal '$'
//
// References to groups the expression does not have are copied literally.
// If expr does not match, key is returned unchanged and ok is false.
func Substitute(expr *regexp.Regexp, key, template string) (result string, ok bool) {
	loc := expr.FindStringSubmatchIndex(key)
	if loc == nil {
		return key, false
	}

	var b strings.Builder
	b.WriteString(key[:loc[0]])
	expand(&b, key, template, loc, expr.NumSubexp())
	b.WriteString(key[loc[1]:])
	return b.String(), true
}

// expand writes the template to b, resolving references against the submatch indices loc
func expand(b *strings.Builder, key, template string, loc []int, groups int) {
	group := func(n int) string {
		if loc[2*n] < 0 {
			return "" // group did not participate in the match
		}
		return key[loc[2*n]:loc[2*n+1]]
	}

	for i := 0; i < len(template); i++ {
		c := template[i]
		if c != '$' || i+1 == len(template) {
			b.WriteByte(c)
			continue
		}

		next := template[i+1]
		switch {
		case next == '$':
			b.WriteByte('$')
			i++
		case next == '&':
			b.WriteString(group(0))
			i++
		case next == '`':
			b.WriteString(key[:loc[0]])
			i++
		case next == '\'':
			b.WriteString(key[loc[1]:])
			i++
		case isDigit(next):
			n := int(next - '0')
			width := 1
			if i+2 < len(template) && isDigit(template[i+2]) {
				if two := n*10 + int(template[i+2]-'0'); two >= 1 && two <= groups {
					n, width = two, 2
				}
			}
			if n < 1 || n > groups {
				b.WriteByte(c)
				continue
			}
			b.WriteString(group(n))
			i += width
		default:
			b.WriteByte(c)
		}
	}
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
