package migration

import (
	"regexp"
	"strings"
)

// groupPrefix matches a source expression that opens with a capturing group
// starting with literal key characters.
var groupPrefix = regexp.MustCompile(`^\^?\(([A-Za-z0-9:]+)`)

// ResolvePattern derives the glob pattern used to discover candidate keys for a
// source expression: the literal prefix that opens the first capturing group, followed by '*'.
//
//	ResolvePattern(regexp.MustCompile(`(app:user:\d+):address`)) // "app:user:*"
//
// The pattern may match more keys than the expression (every candidate key is matched
// against the expression later), but never fewer. Expressions that do not start with a
// capturing group, or where an alternation or optional quantifier could let a key match
// without the prefix, are rejected with a *PatternError.
func ResolvePattern(expr *regexp.Regexp) (string, error) {
	if expr == nil {
		return "", &PatternError{}
	}
	src := expr.String()

	m := groupPrefix.FindStringSubmatchIndex(src)
	if m == nil || expr.NumSubexp() == 0 {
		return "", &PatternError{Expr: src}
	}
	prefix := src[m[2]:m[3]]

	// a quantifier allowing zero repetitions makes the last literal optional
	if rest := src[m[3]:]; rest != "" && strings.ContainsAny(rest[:1], "?*{") {
		prefix = prefix[:len(prefix)-1]
	}

	if prefix == "" || hasUnsafeAlternation(src) || groupIsOptional(src) {
		return "", &PatternError{Expr: src}
	}
	return prefix + "*", nil
}

// groupIsOptional reports whether the first group is followed by a quantifier that
// allows zero repetitions (?, *, {0,n}), so keys can match without the prefix.
func groupIsOptional(src string) bool {
	end := firstGroupEnd(src)
	if end < 0 {
		return false
	}
	rest := src[end+1:]
	return strings.HasPrefix(rest, "?") || strings.HasPrefix(rest, "*") || strings.HasPrefix(rest, "{0")
}

// firstGroupEnd returns the index of the parenthesis closing the first group, -1 if there is none
func firstGroupEnd(src string) int {
	depth := 0
	inClass := false
	for i := 0; i < len(src); i++ {
		c := src[i]
		switch {
		case c == '\\':
			i++
		case inClass:
			if c == ']' {
				inClass = false
			}
		case c == '[':
			inClass = true
		case c == '(':
			depth++
		case c == ')':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// hasUnsafeAlternation reports whether the expression contains an alternation at the
// top level or directly inside its first group. Both let keys match without the prefix.
func hasUnsafeAlternation(src string) bool {
	depth := 0
	inClass := false
	firstGroupOpen := false
	firstGroupDone := false

	for i := 0; i < len(src); i++ {
		c := src[i]
		switch {
		case c == '\\':
			i++ // skip escaped character
		case inClass:
			if c == ']' {
				inClass = false
			}
		case c == '[':
			inClass = true
		case c == '(':
			depth++
			if depth == 1 && !firstGroupDone {
				firstGroupOpen = true
			}
		case c == ')':
			if depth == 1 && firstGroupOpen {
				firstGroupOpen = false
				firstGroupDone = true
			}
			depth--
		case c == '|':
			if depth == 0 || (depth == 1 && firstGroupOpen) {
				return true
			}
		}
	}
	return false
}
