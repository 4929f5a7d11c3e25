package aici

import "time"

// awaitableCb is the internal contract the Driver speaks to whatever the
// user program is currently awaiting. Every concrete primitive below
// implements it through the embedded baseState plus its own overrides,
// mirroring the pre/mid/post hook trio a program can override.
type awaitableCb interface {
	_preProcess() PreProcessResult
	_midProcess(forkGroup []SeqId) MidProcessResult
	_postProcess(backtrack uint32, tokens []Token) PostProcessResult
	isFinished() bool
}

// baseState holds the bookkeeping every primitive shares: the host seam, the
// tokens most recently delivered to it, the fork group it was evaluated
// under, and whether it has reached a terminal state.
type baseState struct {
	host HostOps

	Finished   bool
	CurrTokens []Token
	ForkGroup  []SeqId
}

func (b *baseState) resetCommon() {
	b.CurrTokens = nil
	b.ForkGroup = nil
}

func (b *baseState) setForkGroup(fg []SeqId) {
	b.ForkGroup = fg
}

func (b *baseState) isFinished() bool {
	return b.Finished
}

func (b *baseState) applyEOS(tokens []Token) {
	b.CurrTokens = tokens
	b.Finished = containsToken(tokens, b.host.EOSToken())
}

// tokenLogReader is the narrow slice of Driver that [FixedTokens] needs to
// compute backtrack distances against a [Label].
type tokenLogReader interface {
	Len() int
}

// NextToken asks the host to sample one token under no bias beyond what the
// host itself applies. It is the simplest primitive and the default
// behavior of an un-overridden step.
type NextToken struct {
	baseState
}

// NewNextToken constructs a NextToken bound to rt's host.
func NewNextToken(rt *Runtime) *NextToken {
	return &NextToken{baseState{host: rt.driver.host}}
}

// Await yields this primitive to the driver and returns the tokens it was
// given once the round completes.
func (p *NextToken) Await(rt *Runtime) []Token {
	rt.driver.yield(p)
	return p.CurrTokens
}

func (p *NextToken) _preProcess() PreProcessResult { p.resetCommon(); return ContinuePre() }
func (p *NextToken) _midProcess(fg []SeqId) MidProcessResult {
	p.setForkGroup(fg)
	return BiasMid(p.host.NewTokenSet())
}
func (p *NextToken) _postProcess(_ uint32, tokens []Token) PostProcessResult {
	p.applyEOS(tokens)
	return ContinuePost()
}

var _ awaitableCb = (*NextToken)(nil)

// FixedTokens splices a fixed piece of text into the sequence, optionally
// backtracking to a previously recorded [Label] first.
type FixedTokens struct {
	baseState
	text      []Token
	following *Label
	log       tokenLogReader
}

// FixedTokensOption configures a [FixedTokens] primitive at construction.
type FixedTokensOption func(*fixedTokensConfig)

type fixedTokensConfig struct {
	following *Label
}

// WithFollowing backtracks to l before splicing the fixed text in.
func WithFollowing(l *Label) FixedTokensOption {
	return func(c *fixedTokensConfig) { c.following = l }
}

// NewFixedTokens tokenizes text through rt's host and returns a primitive
// that splices it in on its next await.
func NewFixedTokens(rt *Runtime, text string, opts ...FixedTokensOption) *FixedTokens {
	cfg := &fixedTokensConfig{}
	for _, o := range opts {
		o(cfg)
	}
	return &FixedTokens{
		baseState: baseState{host: rt.driver.host},
		text:      rt.driver.host.Tokenize(text),
		following: cfg.following,
		log:       rt.driver,
	}
}

func (p *FixedTokens) Await(rt *Runtime) []Token {
	rt.driver.yield(p)
	return p.CurrTokens
}

func (p *FixedTokens) _preProcess() PreProcessResult { p.resetCommon(); return ContinuePre() }

func (p *FixedTokens) _midProcess(fg []SeqId) MidProcessResult {
	p.setForkGroup(fg)
	var backtrack uint32
	if p.following != nil {
		cur := p.log.Len()
		delta := cur - p.following.ptr
		if delta < 0 {
			panic(newContractViolation("label point %d is ahead of the current token log length %d", p.following.ptr, cur))
		}
		backtrack = uint32(delta)
	}
	return SpliceMid(backtrack, p.text)
}

func (p *FixedTokens) _postProcess(_ uint32, tokens []Token) PostProcessResult {
	p.applyEOS(tokens)
	return ContinuePost()
}

var _ awaitableCb = (*FixedTokens)(nil)

// StopToken forces the sequence to stop producing new tokens; it never
// reports itself as finished so the driver keeps re-issuing stop on every
// remaining round, matching a program that has nothing further to say.
type StopToken struct {
	baseState
}

// NewStopToken constructs a StopToken bound to rt's host.
func NewStopToken(rt *Runtime) *StopToken {
	return &StopToken{baseState{host: rt.driver.host}}
}

func (p *StopToken) Await(rt *Runtime) []Token {
	rt.driver.yield(p)
	return p.CurrTokens
}

func (p *StopToken) _preProcess() PreProcessResult { p.resetCommon(); return ContinuePre() }
func (p *StopToken) _midProcess(fg []SeqId) MidProcessResult {
	p.setForkGroup(fg)
	return StopMid()
}
func (p *StopToken) _postProcess(_ uint32, tokens []Token) PostProcessResult {
	p.CurrTokens = tokens
	p.Finished = false
	return StopPost()
}

var _ awaitableCb = (*StopToken)(nil)

// ConstrainedToken samples a single token under the bias produced by a
// [Constraint]. Callers that already know the constraint up front (like
// [GenTokens]) build it before the first await and hand it in via
// [ConstrainedToken.noteBuilt]; mk is a fallback for callers that want the
// build itself deferred to the first mid-process.
type ConstrainedToken struct {
	baseState
	mk         func() Constraint
	constraint Constraint

	buildDuration time.Duration
	built         bool
}

// NewConstrainedToken returns a primitive that lazily builds its constraint
// via mk on first mid-process.
func NewConstrainedToken(rt *Runtime, mk func() Constraint) *ConstrainedToken {
	return &ConstrainedToken{baseState: baseState{host: rt.driver.host}, mk: mk}
}

func (p *ConstrainedToken) Await(rt *Runtime) []Token {
	rt.driver.yield(p)
	return p.CurrTokens
}

func (p *ConstrainedToken) _preProcess() PreProcessResult { p.resetCommon(); return ContinuePre() }

func (p *ConstrainedToken) _midProcess(fg []SeqId) MidProcessResult {
	p.setForkGroup(fg)
	if p.constraint == nil {
		start := time.Now()
		p.constraint = p.mk()
		p.buildDuration = time.Since(start)
		p.built = true
	}
	ts := p.host.NewTokenSet()
	p.constraint.AllowTokens(&ts)
	return BiasMid(ts)
}

// noteBuilt records a constraint the caller already built, along with how
// long that took, so a later [buildDurationIfFresh] call surfaces it exactly
// once, on the first mid-process against this primitive.
func (p *ConstrainedToken) noteBuilt(c Constraint, dur time.Duration) {
	p.constraint = c
	p.buildDuration = dur
	p.built = true
}

// buildDurationIfFresh reports how long this primitive's constraint took to
// build, but only on the round that actually built it — a host instrumenting
// per-round constraint-build latency should not see every round afterward
// report the same value.
func (p *ConstrainedToken) buildDurationIfFresh() (time.Duration, bool) {
	if !p.built {
		return 0, false
	}
	p.built = false
	return p.buildDuration, true
}

func (p *ConstrainedToken) _postProcess(_ uint32, tokens []Token) PostProcessResult {
	p.CurrTokens = tokens
	for _, t := range tokens {
		p.constraint.AppendToken(t)
	}
	p.Finished = p.constraint.EOSForced()
	return ContinuePost()
}

var _ awaitableCb = (*ConstrainedToken)(nil)

// forkAwait is the marker primitive behind [Runtime.Fork]: it reports its
// fan-out through pre-process's AttentionMasks and otherwise consumes no
// sampling step (mid always returns skip-me).
type forkAwait struct {
	baseState
	n int
}

func (p *forkAwait) _preProcess() PreProcessResult { p.resetCommon(); return ForkPre(p.n) }
func (p *forkAwait) _midProcess(fg []SeqId) MidProcessResult {
	p.setForkGroup(fg)
	return SkipMid()
}
func (p *forkAwait) _postProcess(_ uint32, _ []Token) PostProcessResult { return ContinuePost() }

var _ awaitableCb = (*forkAwait)(nil)

// waitVarsAwait is the marker primitive behind [Runtime.WaitVars]: it
// suspends in pre-process until every named variable exists, then consumes
// no sampling step to hand its values back to the program.
type waitVarsAwait struct {
	baseState
	names  []string
	Values [][]byte
}

func (p *waitVarsAwait) _preProcess() PreProcessResult {
	p.resetCommon()
	vals := make([][]byte, len(p.names))
	for i, name := range p.names {
		v, ok := p.host.GetVar(name)
		if !ok {
			return SuspendPre()
		}
		vals[i] = v
	}
	p.Values = vals
	return ContinuePre()
}
func (p *waitVarsAwait) _midProcess(fg []SeqId) MidProcessResult {
	p.setForkGroup(fg)
	return SkipMid()
}
func (p *waitVarsAwait) _postProcess(_ uint32, _ []Token) PostProcessResult { return ContinuePost() }

var _ awaitableCb = (*waitVarsAwait)(nil)

// getPromptAwaitable is not a NextToken variant at all — it is handled
// specially by the driver during [Driver.InitPrompt], never entering the
// pre/mid/post cycle.
type getPromptAwaitable struct {
	prompt []Token
}
