package pqgram

import (
	"strings"
)

// Namer renders a label as text. Filler positions are passed in as well.
type Namer[L comparable] func(l Label[L]) string

// Token renders g as one word: its labels joined with "|".
func (g Gram[L]) Token(name Namer[L]) string {
	if name == nil {
		name = Label[L].String
	}
	parts := make([]string, len(g))
	for i, l := range g {
		parts[i] = name(l)
	}
	return strings.Join(parts, "|")
}

// Tokens renders every gram of the profile, in extraction order. A nil name
// uses Label.String, which shows the filler as DisplayFiller.
func (pr *Profile[L]) Tokens(name Namer[L]) []string {
	out := make([]string, len(pr.grams))
	for i, g := range pr.grams {
		out[i] = g.Token(name)
	}
	return out
}

// Document renders the profile as one space-separated string of tokens, for
// feeding bag-of-words tooling.
func (pr *Profile[L]) Document(name Namer[L]) string {
	return strings.Join(pr.Tokens(name), " ")
}

// LabelMapNamer names labels through a description map, falling back to the
// label's own rendering when it has no entry.
func LabelMapNamer[L comparable](m map[L]string) Namer[L] {
	return func(l Label[L]) string {
		if v, ok := l.Value(); ok {
			if d, ok := m[v]; ok {
				return d
			}
		}
		return l.String()
	}
}
