package aici

// PreProcessResult is returned from the pre-process step of a decoding round.
// A zero-length AttentionMasks together with Suspended == false is invalid;
// constructors below are the supported ways to build one.
type PreProcessResult struct {
	// Suspended tells the host that this sequence has nothing to contribute
	// this round (e.g. it is waiting on a variable another sequence has not
	// set yet). The host must re-invoke pre-process next round without
	// consuming a sampling step.
	Suspended bool

	// AttentionMasks' length is the fan-out signal: one entry continues the
	// sequence unchanged, more than one forks it into that many children.
	// Mask contents are not interpreted by the core (see design notes on
	// AttentionMasks semantics).
	AttentionMasks [][]float32
}

// ContinuePre continues the sequence unchanged (fan-out of one).
func ContinuePre() PreProcessResult {
	return PreProcessResult{AttentionMasks: [][]float32{{}}}
}

// SuspendPre suspends the sequence for this round.
func SuspendPre() PreProcessResult {
	return PreProcessResult{Suspended: true}
}

// ForkPre forks the sequence into n children.
func ForkPre(n int) PreProcessResult {
	masks := make([][]float32, n)
	for i := range masks {
		masks[i] = []float32{}
	}
	return PreProcessResult{AttentionMasks: masks}
}

// MidProcessResult is returned from the mid-process step, the only step
// where the host actually samples (or splices) tokens.
type MidProcessResult struct {
	// Stop tells the host this sequence is permanently done; no further
	// tokens will ever be produced for it.
	Stop bool

	// SkipMe tells the driver to advance the user program past the current
	// primitive and retry, without the host performing a sampling step this
	// round. Used by marker primitives (fork, wait-vars).
	SkipMe bool

	// LogitBias, when non-nil, biases sampling. A non-nil pointer to an
	// empty TokenSet is a valid, meaningful value: it tells the host to
	// sample unconstrained (the core has no opinion), which is distinct
	// from a nil pointer meaning "no bias supplied at all".
	LogitBias *TokenSet

	// Backtrack removes this many tokens from the end of the token log
	// before FFTokens are appended.
	Backtrack uint32

	// FFTokens are fast-forwarded (spliced in) without going through the
	// sampler.
	FFTokens []Token
}

// StopMid stops the sequence.
func StopMid() MidProcessResult {
	return MidProcessResult{Stop: true}
}

// SkipMid advances past the current primitive without sampling.
func SkipMid() MidProcessResult {
	return MidProcessResult{SkipMe: true}
}

// BiasMid samples under the given bias.
func BiasMid(bias TokenSet) MidProcessResult {
	return MidProcessResult{LogitBias: &bias}
}

// SpliceMid fast-forwards tokens after backtracking backtrack positions.
func SpliceMid(backtrack uint32, tokens []Token) MidProcessResult {
	return MidProcessResult{Backtrack: backtrack, FFTokens: tokens}
}

// PostProcessResult is returned from the post-process step, after the host
// has committed the tokens chosen by mid-process.
type PostProcessResult struct {
	// StopSeq tells the host the sequence has reached a terminal state
	// (e.g. an end-of-sequence token was produced).
	StopSeq bool
}

// ContinuePost continues the sequence.
func ContinuePost() PostProcessResult {
	return PostProcessResult{}
}

// StopPost stops the sequence.
func StopPost() PostProcessResult {
	return PostProcessResult{StopSeq: true}
}

// PostFromTokens stops the sequence if any of tokens equals eos.
func PostFromTokens(tokens []Token, eos Token) PostProcessResult {
	if containsToken(tokens, eos) {
		return StopPost()
	}
	return ContinuePost()
}
