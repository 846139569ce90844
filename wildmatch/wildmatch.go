// Package wildmatch implements shell-style wildcard matching used to select
// files for batch transfers.
//
// Supported syntax:
//
//	*       any run of characters, including none
//	?       exactly one character
//	[abc]   one character of the set; [^abc] negates, a-z is a range
//	\c      the literal character c, also inside a set
//
// Matching always covers the whole subject. A set that is never closed
// makes the pattern fail to match instead of returning an error.
package wildmatch

import "strings"

// Results of match. abort means the subject ran out while the pattern
// still needed characters: no later start for an enclosing '*' can match
// either, so every caller stops instead of backtracking.
const (
	matchFalse = iota
	matchTrue
	matchAbort
)

// no class member seen yet
const noPrev = 256

// Match reports whether str matches pattern, case-sensitively.
func Match(str, pattern string) bool {
	return match(str, pattern) == matchTrue
}

// MatchFold is Match with ASCII letters compared case-insensitively.
func MatchFold(str, pattern string) bool {
	return match(asciiLower(str), asciiLower(pattern)) == matchTrue
}

// HasWild reports whether s contains a '*' or '?' wildcard.
func HasWild(s string) bool {
	return strings.ContainsAny(s, "*?")
}

func match(s, p string) int {
	si, pi := 0, 0
	for ; pi < len(p); si, pi = si+1, pi+1 {
		switch p[pi] {
		case '\\':
			pi++
			if pi == len(p) {
				return matchFalse
			}
			if si >= len(s) {
				return matchAbort
			}
			if s[si] != p[pi] {
				return matchFalse
			}
		case '?':
			if si >= len(s) {
				return matchAbort
			}
		case '*':
			for pi < len(p) && p[pi] == '*' {
				pi++
			}
			if pi == len(p) {
				return matchTrue
			}
			for ; si < len(s); si++ {
				if r := match(s[si:], p[pi:]); r != matchFalse {
					return r
				}
			}
			return matchAbort
		case '[':
			if si >= len(s) {
				return matchAbort
			}
			end, ok := matchClass(s[si], p, pi)
			if !ok {
				return matchFalse
			}
			pi = end
		default:
			if si >= len(s) {
				return matchAbort
			}
			if s[si] != p[pi] {
				return matchFalse
			}
		}
	}
	if si == len(s) {
		return matchTrue
	}
	return matchFalse
}

// matchClass evaluates the set starting at p[pi] == '[' against c.
// It returns the index of the closing ']' and whether c was accepted.
func matchClass(c byte, p string, pi int) (int, bool) {
	negate := false
	if pi+1 < len(p) && p[pi+1] == '^' {
		negate = true
		pi++
	}
	prev := noPrev
	hit := false
	esc := false
	for {
		pi++
		if pi >= len(p) {
			return pi, false
		}
		ch := p[pi]
		if !esc && ch == ']' {
			break
		}
		if !esc && ch == '\\' {
			esc = true
			continue
		}
		if !esc && ch == '-' {
			pi++
			if pi >= len(p) {
				return pi, false
			}
			if p[pi] == '\\' {
				pi++
				if pi >= len(p) {
					return pi, false
				}
			}
			hit = hit || (int(c) <= int(p[pi]) && int(c) >= prev)
		} else {
			hit = hit || c == ch
		}
		esc = false
		prev = int(p[pi])
	}
	// "[]" and "[^]" never match: a leading ']' closes an empty set.
	if prev == noPrev || hit == negate {
		return pi, false
	}
	return pi, true
}

func asciiLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}
