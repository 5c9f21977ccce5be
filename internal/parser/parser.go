// Package parser extracts @-mentions of note identifiers from note content.
package parser

import (
	"regexp"
	"unicode/utf8"

	"github.com/ta21cos/thread-type-note-app/internal/noteid"
)

// Sigil marks the start of a mention token.
const Sigil = '@'

// tokenRe matches the sigil and the whole alphanumeric run after it; runs of
// the wrong length are discarded rather than truncated.
var tokenRe = regexp.MustCompile(`@([A-Za-z0-9]+)`)

// Reference is one occurrence of a mention in content.
type Reference struct {
	Target   string
	Position int // character (rune) offset of the sigil
}

// Mentions returns every mention occurrence in content, ordered by position.
func Mentions(content string) []Reference {
	matches := tokenRe.FindAllStringSubmatchIndex(content, -1)
	if len(matches) == 0 {
		return nil
	}

	out := make([]Reference, 0, len(matches))
	lastByte, lastRune := 0, 0
	for _, m := range matches {
		start, idStart, idEnd := m[0], m[2], m[3]
		if idEnd-idStart != noteid.Length {
			continue
		}
		lastRune += utf8.RuneCountInString(content[lastByte:start])
		lastByte = start
		out = append(out, Reference{
			Target:   content[idStart:idEnd],
			Position: lastRune,
		})
	}
	return out
}

// ExtractReferences returns the distinct mention targets in content, in order
// of first occurrence.
func ExtractReferences(content string) []string {
	refs := Mentions(content)
	seen := make(map[string]struct{}, len(refs))
	var out []string
	for _, r := range refs {
		if _, ok := seen[r.Target]; ok {
			continue
		}
		seen[r.Target] = struct{}{}
		out = append(out, r.Target)
	}
	return out
}

// FindPositions returns the ascending offsets of every mention of targetID.
func FindPositions(content, targetID string) []int {
	var out []int
	for _, r := range Mentions(content) {
		if r.Target == targetID {
			out = append(out, r.Position)
		}
	}
	return out
}
