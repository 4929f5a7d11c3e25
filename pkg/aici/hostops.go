package aici

// HostOps is the seam between the core and the runtime that embeds it: every
// capability a program or constraint needs from the outside world — turning
// text into tokens, reading and writing named variables shared across forked
// sequences, knowing which branch of a fork it is — is obtained through this
// interface. The core never assumes a concrete tokenizer, sampler or
// key/value store; it only ever calls through HostOps.
type HostOps interface {
	// Tokenize turns text into the host's vocabulary. It is treated as a
	// pure function: same input, same output, no side effects.
	Tokenize(text string) []Token

	// Detokenize turns tokens back into bytes. Pure function, mirror image
	// of Tokenize.
	Detokenize(tokens []Token) []byte

	// EOSToken returns the host's end-of-sequence token id.
	EOSToken() Token

	// GetVar reads a named variable. ok is false if the variable has not
	// been set yet (used by WaitVars to decide whether to suspend).
	GetVar(name string) (value []byte, ok bool)

	// SetVar overwrites a named variable.
	SetVar(name string, value []byte)

	// AppendVar appends to a named variable, creating it if absent.
	AppendVar(name string, value []byte)

	// SelfSeqID returns the id of the sequence the calling Driver owns. Used
	// to find a sequence's own branch index within a ForkGroup.
	SelfSeqID() SeqId

	// Register associates a freshly constructed Driver with the host's
	// bookkeeping (e.g. per-sequence dispatch tables). Called once, from
	// [New].
	Register(d *Driver)

	// NewTokenSet returns an empty TokenSet sized for the host's vocabulary.
	NewTokenSet() TokenSet

	// NewRegexConstraint builds a [Constraint] that only allows continuations
	// matching pattern. The core does not implement regex matching itself —
	// this is exactly the "constraint capability, not a token-matching
	// implementation" seam described by the contract.
	NewRegexConstraint(pattern string) (Constraint, error)
}
