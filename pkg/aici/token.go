// Package aici implements the control-layer contract between a user-authored
// token-generation program and a host LLM inference runtime: per-decoding-step
// callbacks, logit biasing, fast-forward/backtrack splicing, and sequence
// forking, driven through a small set of awaitable primitives.
package aici

// Token is a single vocabulary entry id. The core never interprets a Token's
// value beyond equality comparison against [HostOps.EOSToken] — tokenization
// and detokenization are host concerns.
type Token int32

// SeqId identifies one decoding sequence as seen by the host runtime. A fork
// produces a ForkGroup containing the parent's SeqId plus one new SeqId per
// child; [HostOps.SelfSeqID] tells a running program which branch it is.
type SeqId int64

// TokenSet is a capability set over the vocabulary: a token is either allowed
// or not. It backs both [HostOps.NewTokenSet] logit-bias masks and
// [Constraint.AllowTokens] results.
//
// The zero value is the empty set: [TokenSet.Test] reports false for every
// token. Handed to the host as a mid-process bias, an empty set is the
// driver's unconstrained default (see [MidProcessResult].LogitBias).
// [AllTokensSet] returns a set that allows every token without enumerating
// the vocabulary; the driver itself never builds one.
type TokenSet struct {
	allowAll bool
	allowed  map[Token]struct{}
}

// AllTokensSet returns a TokenSet that allows every token.
func AllTokensSet() TokenSet {
	return TokenSet{allowAll: true}
}

// Set marks t as allowed.
func (s *TokenSet) Set(t Token) {
	if s.allowAll {
		return
	}
	if s.allowed == nil {
		s.allowed = make(map[Token]struct{})
	}
	s.allowed[t] = struct{}{}
}

// Test reports whether t is allowed by the set.
func (s TokenSet) Test(t Token) bool {
	if s.allowAll {
		return true
	}
	_, ok := s.allowed[t]
	return ok
}

// Len returns the number of explicitly-allowed tokens, or -1 if the set was
// constructed with [AllTokensSet] and does not enumerate its members.
func (s TokenSet) Len() int {
	if s.allowAll {
		return -1
	}
	return len(s.allowed)
}

// Allowed reports whether the set allows every token (in which case tokens
// is nil) or returns the explicit list of allowed tokens otherwise. Hosts
// that must transmit a bias mask across a process boundary use this instead
// of enumerating the vocabulary against [TokenSet.Test].
func (s TokenSet) Allowed() (allowAll bool, tokens []Token) {
	if s.allowAll {
		return true, nil
	}
	tokens = make([]Token, 0, len(s.allowed))
	for t := range s.allowed {
		tokens = append(tokens, t)
	}
	return false, tokens
}

func containsToken(tokens []Token, t Token) bool {
	for _, tok := range tokens {
		if tok == t {
			return true
		}
	}
	return false
}

func indexOfSeq(id SeqId, group []SeqId) int {
	for i, s := range group {
		if s == id {
			return i
		}
	}
	return -1
}
