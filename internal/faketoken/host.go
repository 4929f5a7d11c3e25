// Package faketoken is an in-process stand-in for a real LLM inference
// runtime's tokenizer and sampler, used by the reference host simulator in
// place of an actual model. It tokenizes rune-by-rune over a small fixed
// alphabet, which is all the demo programs shipped with cmd/aicihost need.
package faketoken

import (
	"github.com/aici-run/aici-go/internal/varstore/mcpvarstore"
	"github.com/aici-run/aici-go/pkg/aici"
)

// alphabet is the closed set of runes the fake tokenizer knows. Token ids
// are assigned by position, with id 0 reserved for EOS.
var alphabet = []rune(" abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789.,!?:;-'░")

var (
	runeToToken = buildRuneIndex()
)

func buildRuneIndex() map[rune]aici.Token {
	m := make(map[rune]aici.Token, len(alphabet))
	for i, r := range alphabet {
		m[r] = aici.Token(i + 1)
	}
	return m
}

// EOS is the fixed end-of-sequence token id every Host reports.
const EOS aici.Token = 0

// Host is a minimal [aici.HostOps] implementation backed by the fixed
// alphabet above and a shared [mcpvarstore.Store]. Every demo sequence (and
// every fork sibling) gets its own Host, all pointing at the same Store, so
// WaitVars can observe values set by a sibling or another sequence.
type Host struct {
	self     aici.SeqId
	vars     *mcpvarstore.Store
	registry func(d *aici.Driver)
}

// NewHost builds a Host for sequence self, sharing vars across every other
// Host constructed against the same store. registered, if non-nil, is
// called from Register with the freshly constructed Driver.
func NewHost(self aici.SeqId, vars *mcpvarstore.Store, registered func(d *aici.Driver)) *Host {
	return &Host{self: self, vars: vars, registry: registered}
}

func (h *Host) Tokenize(text string) []aici.Token {
	rs := []rune(text)
	toks := make([]aici.Token, 0, len(rs))
	for _, r := range rs {
		if t, ok := runeToToken[r]; ok {
			toks = append(toks, t)
			continue
		}
		toks = append(toks, runeToToken['?'])
	}
	return toks
}

func (h *Host) Detokenize(tokens []aici.Token) []byte {
	out := make([]rune, 0, len(tokens))
	for _, t := range tokens {
		if t == EOS {
			continue
		}
		if int(t)-1 >= 0 && int(t)-1 < len(alphabet) {
			out = append(out, alphabet[t-1])
		}
	}
	return []byte(string(out))
}

func (h *Host) EOSToken() aici.Token { return EOS }

func (h *Host) GetVar(name string) ([]byte, bool) { return h.vars.Get(name) }

func (h *Host) SetVar(name string, value []byte) { h.vars.Set(name, value) }

func (h *Host) AppendVar(name string, value []byte) { h.vars.Append(name, value) }

func (h *Host) SelfSeqID() aici.SeqId { return h.self }

func (h *Host) Register(d *aici.Driver) {
	if h.registry != nil {
		h.registry(d)
	}
}

// NewTokenSet returns an empty, explicit-enumeration TokenSet — the fake
// host never hands back [aici.AllTokensSet] since the demo alphabet is small
// enough to always enumerate.
func (h *Host) NewTokenSet() aici.TokenSet { return aici.TokenSet{} }

func (h *Host) NewRegexConstraint(pattern string) (aici.Constraint, error) {
	return newRegexConstraint(pattern)
}

var _ aici.HostOps = (*Host)(nil)
