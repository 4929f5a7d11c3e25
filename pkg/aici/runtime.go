package aici

// Runtime is the handle a user program receives. Every method that "awaits"
// a primitive parks the program's goroutine on a channel handoff with the
// Driver until the host has carried that primitive through a full
// pre/mid/post round, then returns whatever that round produced — the same
// shape as the reference implementation's coroutine-based await, rebuilt on
// a goroutine and two unbuffered channels since Go has no native coroutines.
type Runtime struct {
	driver *Driver
}

// GetPrompt returns the sequence's prompt tokens. It may only be called
// once, before any other Runtime method, and is handled specially by the
// driver rather than flowing through pre/mid/post.
func (rt *Runtime) GetPrompt() []Token {
	g := &getPromptAwaitable{}
	rt.driver.yield(g)
	return g.prompt
}

// NextToken samples one token under no additional bias.
func (rt *Runtime) NextToken() []Token {
	return NewNextToken(rt).Await(rt)
}

// FixedTokens splices text into the sequence.
func (rt *Runtime) FixedTokens(text string, opts ...FixedTokensOption) []Token {
	return NewFixedTokens(rt, text, opts...).Await(rt)
}

// StopToken stops the sequence permanently.
func (rt *Runtime) StopToken() []Token {
	return NewStopToken(rt).Await(rt)
}

// ConstrainedToken samples one token under a lazily-built constraint.
func (rt *Runtime) ConstrainedToken(mk func() Constraint) []Token {
	return NewConstrainedToken(rt, mk).Await(rt)
}

// Fork splits the sequence into n children and returns the caller's index
// within the resulting fork group (0 for the first child, and so on).
func (rt *Runtime) Fork(n int) int {
	p := &forkAwait{baseState: baseState{host: rt.driver.host}, n: n}
	rt.driver.yield(p)
	return indexOfSeq(rt.driver.host.SelfSeqID(), p.ForkGroup)
}

// WaitVars blocks (without consuming sampling steps) until every named
// variable has been set by some sequence, then returns their values in
// order.
func (rt *Runtime) WaitVars(names ...string) [][]byte {
	p := &waitVarsAwait{baseState: baseState{host: rt.driver.host}, names: names}
	rt.driver.yield(p)
	return p.Values
}

// Tokens returns a copy of the full token log accumulated so far, prompt
// included.
func (rt *Runtime) Tokens() []Token {
	return rt.driver.Tokens()
}

// PromptLen returns the number of prompt tokens.
func (rt *Runtime) PromptLen() int {
	return rt.driver.PromptLen()
}

// Host exposes the underlying [HostOps], for programs that need direct
// tokenizer or variable-store access outside a primitive await.
func (rt *Runtime) Host() HostOps {
	return rt.driver.host
}
