package faketoken

import (
	"fmt"
	"regexp"

	"github.com/aici-run/aici-go/pkg/aici"
)

// regexAlphabet is the only continuation space regexConstraint considers.
// It is deliberately narrower than the tokenizer's full alphabet: this is a
// brute-force feasibility search, not a compiled automaton, so it only
// needs to cover the lowercase-word-style patterns the demo programs use.
var regexAlphabet = []rune("abcdefghijklmnopqrstuvwxyz")

// lookahead bounds how many extra runes the brute-force search tries past
// the current prefix when deciding whether a candidate token could still
// lead to a full match.
const lookahead = 2

// regexConstraint allows only tokens that keep the generated text a
// feasible prefix of pattern, brute-forced over [regexAlphabet] rather than
// compiled into an automaton.
type regexConstraint struct {
	re  *regexp.Regexp
	acc []rune
}

func newRegexConstraint(pattern string) (*regexConstraint, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("faketoken: compile regex %q: %w", pattern, err)
	}
	return &regexConstraint{re: re}, nil
}

func (c *regexConstraint) AllowTokens(ts *aici.TokenSet) {
	for _, r := range regexAlphabet {
		if c.feasible(string(c.acc) + string(r)) {
			ts.Set(runeToToken[r])
		}
	}
	if c.EOSAllowed() {
		ts.Set(EOS)
	}
}

func (c *regexConstraint) AppendToken(t aici.Token) {
	if t == EOS {
		return
	}
	if int(t)-1 >= 0 && int(t)-1 < len(alphabet) {
		c.acc = append(c.acc, alphabet[t-1])
	}
}

func (c *regexConstraint) EOSAllowed() bool {
	return c.re.MatchString(string(c.acc))
}

func (c *regexConstraint) EOSForced() bool {
	if !c.EOSAllowed() {
		return false
	}
	for _, r := range regexAlphabet {
		if c.feasible(string(c.acc) + string(r)) {
			return false
		}
	}
	return true
}

func (c *regexConstraint) TokenAllowed(t aici.Token) bool {
	if t == EOS {
		return c.EOSAllowed()
	}
	if int(t)-1 < 0 || int(t)-1 >= len(alphabet) {
		return false
	}
	return c.feasible(string(c.acc) + string(alphabet[t-1]))
}

// feasible reports whether prefix can still be extended, within lookahead
// extra runes, into a string pattern fully matches.
func (c *regexConstraint) feasible(prefix string) bool {
	return c.search(prefix, lookahead)
}

func (c *regexConstraint) search(s string, depth int) bool {
	if c.re.MatchString(s) {
		return true
	}
	if depth == 0 {
		return false
	}
	for _, r := range regexAlphabet {
		if c.search(s+string(r), depth-1) {
			return true
		}
	}
	return false
}

var _ aici.Constraint = (*regexConstraint)(nil)
