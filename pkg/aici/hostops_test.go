package aici

import (
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"
)

// fakeHost is a minimal in-memory HostOps used across the test files in this
// package. Its tokenizer maps each rune to its own token id plus a fixed
// offset, so Tokenize/Detokenize round-trip exactly — including multi-byte
// runes such as the filler glyph — and stay easy to reason about in
// assertions.
type fakeHost struct {
	mu   sync.Mutex
	vars map[string][]byte
	self SeqId
	regs []*Driver
}

const fakeEOS Token = 0
const fakeOffset Token = 1

func newFakeHost() *fakeHost {
	return &fakeHost{vars: make(map[string][]byte)}
}

func (h *fakeHost) Tokenize(text string) []Token {
	var out []Token
	for _, r := range text {
		out = append(out, Token(r)+fakeOffset)
	}
	return out
}

func (h *fakeHost) Detokenize(tokens []Token) []byte {
	var out []byte
	for _, t := range tokens {
		if t == fakeEOS {
			continue
		}
		out = utf8.AppendRune(out, rune(t-fakeOffset))
	}
	return out
}

func (h *fakeHost) EOSToken() Token { return fakeEOS }

func (h *fakeHost) GetVar(name string) ([]byte, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	v, ok := h.vars[name]
	return v, ok
}

func (h *fakeHost) SetVar(name string, value []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.vars[name] = append([]byte{}, value...)
}

func (h *fakeHost) AppendVar(name string, value []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.vars[name] = append(h.vars[name], value...)
}

func (h *fakeHost) SelfSeqID() SeqId { return h.self }

func (h *fakeHost) Register(d *Driver) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.regs = append(h.regs, d)
}

func (h *fakeHost) NewTokenSet() TokenSet { return TokenSet{} }

func (h *fakeHost) NewRegexConstraint(pattern string) (Constraint, error) {
	if pattern == "\x00invalid" {
		return nil, fmt.Errorf("invalid pattern %q", pattern)
	}
	// A tiny stand-in: a "regex" here is just a literal prefix to match,
	// enough to exercise GenTokens' constraint wiring without a real regex
	// engine in the test fixture.
	return &fakePrefixConstraint{host: h, want: pattern}, nil
}

var _ HostOps = (*fakeHost)(nil)

// fakePrefixConstraint allows only tokens that keep the produced text a
// prefix of want, forcing EOS once want is fully matched.
type fakePrefixConstraint struct {
	host HostOps
	want string
	have strings.Builder
}

func (c *fakePrefixConstraint) AllowTokens(ts *TokenSet) {
	rest := c.want[len(c.have.String()):]
	if rest == "" {
		ts.Set(c.host.EOSToken())
		return
	}
	for _, t := range c.host.Tokenize(rest[:1]) {
		ts.Set(t)
	}
}

func (c *fakePrefixConstraint) AppendToken(t Token) {
	if t == c.host.EOSToken() {
		return
	}
	c.have.Write(c.host.Detokenize([]Token{t}))
}

func (c *fakePrefixConstraint) EOSAllowed() bool { return c.have.String() == c.want }
func (c *fakePrefixConstraint) EOSForced() bool  { return c.have.String() == c.want }
func (c *fakePrefixConstraint) TokenAllowed(t Token) bool {
	if t == c.host.EOSToken() {
		return c.EOSAllowed()
	}
	rest := c.want[len(c.have.String()):]
	return rest != "" && c.host.Detokenize([]Token{t})[0] == rest[0]
}

var _ Constraint = (*fakePrefixConstraint)(nil)
