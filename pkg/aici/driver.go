package aici

import (
	"fmt"
	"log/slog"
	"time"
)

// fillerGlyph is the single-character filler used to paper over the
// suspend-after-skip gap: when a skip chain lands on a primitive that must
// suspend, the host has already committed to sampling a token this round, so
// the driver hands it this one-token filler and replays the real primitive
// next round.
const fillerGlyph = "░"

// ContractViolationError marks a condition the contract between core,
// program and host declares impossible: a double prompt delivery, a
// primitive reached via a skip chain reporting more than one attention mask,
// an out-of-range backtrack. It is not meant to be handled locally —
// callers that need to survive one (e.g. a reference host loop serving many
// connections) should recover at their own boundary and tear down the
// offending sequence.
type ContractViolationError struct {
	Msg string
}

func (e *ContractViolationError) Error() string {
	return "aici: contract violation: " + e.Msg
}

func newContractViolation(format string, args ...any) *ContractViolationError {
	return &ContractViolationError{Msg: fmt.Sprintf(format, args...)}
}

// Option configures a [Driver] at construction time.
type Option func(*Driver)

// WithLogger overrides the driver's logger. The default is [slog.Default].
func WithLogger(l *slog.Logger) Option {
	return func(d *Driver) { d.log = l }
}

// Driver runs one sequence's copy of a user program against the host's
// per-decoding-step callback protocol. A Driver is not safe for concurrent
// use from multiple goroutines — the host is expected to invoke its methods
// sequentially, one decoding round at a time, exactly as it would for any
// single sequence of tokens.
type Driver struct {
	host HostOps
	log  *slog.Logger

	tokens    []Token
	promptLen int

	cb        awaitableCb
	pendingCb awaitableCb

	skipPrompt      bool
	promptDelivered bool
	promptAwaiter   *getPromptAwaitable

	fillerToken Token

	rt *Runtime

	awaited chan any
	resume  chan struct{}

	// lastSkipChainLen and lastFillerRound describe the most recent
	// MidProcess call, for hosts that want to surface the two hardest
	// mechanisms in this protocol (skip chains and suspend-after-skip
	// filler rounds) as observability signals. Neither affects the
	// protocol itself.
	lastSkipChainLen int
	lastFillerRound  bool
}

// constraintBuildTimer is implemented by primitives that hold an expensive
// [Constraint] (built lazily, or handed in already built) and report its
// build time once, on their first mid-process round, for hosts
// instrumenting constraint-build latency.
type constraintBuildTimer interface {
	buildDurationIfFresh() (time.Duration, bool)
}

// New starts program on its own goroutine and drives it up to its first
// await, then registers the Driver with host. program receives a [Runtime]
// through which it calls back into the driver for every primitive it
// awaits.
func New(host HostOps, program func(rt *Runtime), opts ...Option) *Driver {
	filler := host.Tokenize(fillerGlyph)
	if len(filler) != 1 {
		panic(newContractViolation("host tokenizer must map %q to exactly one token, got %d", fillerGlyph, len(filler)))
	}

	d := &Driver{
		host:        host,
		log:         slog.Default(),
		awaited:     make(chan any),
		resume:      make(chan struct{}),
		fillerToken: filler[0],
	}
	for _, o := range opts {
		o(d)
	}
	d.rt = &Runtime{driver: d}

	go func() {
		defer close(d.awaited)
		program(d.rt)
	}()

	d.initialStep()
	host.Register(d)
	return d
}

// Tokens returns a copy of the full token log, prompt included.
func (d *Driver) Tokens() []Token {
	cp := make([]Token, len(d.tokens))
	copy(cp, d.tokens)
	return cp
}

// TokensFrom returns a copy of the token log from index ptr onward, the
// primitive [Label] relies on.
func (d *Driver) TokensFrom(ptr int) []Token {
	if ptr > len(d.tokens) {
		ptr = len(d.tokens)
	}
	cp := make([]Token, len(d.tokens)-ptr)
	copy(cp, d.tokens[ptr:])
	return cp
}

// Len reports the current token log length, satisfying tokenLogReader.
func (d *Driver) Len() int {
	return len(d.tokens)
}

// PromptLen returns the number of prompt tokens.
func (d *Driver) PromptLen() int {
	return d.promptLen
}

// InitPrompt delivers the sequence's prompt tokens. It must be called
// exactly once, before the first [Driver.PreProcess] call.
func (d *Driver) InitPrompt(prompt []Token) {
	if d.promptDelivered {
		panic(newContractViolation("InitPrompt called more than once"))
	}
	d.promptDelivered = true
	d.tokens = append(d.tokens, prompt...)
	d.promptLen = len(prompt)

	if d.skipPrompt {
		d.skipPrompt = false
		return
	}
	if d.promptAwaiter == nil {
		panic(newContractViolation("InitPrompt called but the program never awaited GetPrompt"))
	}
	d.promptAwaiter.prompt = prompt
	d.promptAwaiter = nil
	d.stepProgram()
}

// PreProcess runs the pre-process step of one decoding round.
func (d *Driver) PreProcess() PreProcessResult {
	if d.pendingCb != nil {
		d.cb = d.pendingCb
		d.pendingCb = nil
	}
	if d.cb.isFinished() {
		d.cb = &StopToken{baseState{host: d.host}}
	}
	return d.cb._preProcess()
}

// MidProcess runs the mid-process step, chaining through any marker
// primitives (fork, wait-vars) the program yields via skip-me until it
// reaches one that actually samples, stops, or must suspend.
func (d *Driver) MidProcess(forkGroup []SeqId) MidProcessResult {
	d.lastSkipChainLen = 0
	d.lastFillerRound = false

	for {
		res := d.cb._midProcess(forkGroup)
		if !res.SkipMe {
			return res
		}
		d.lastSkipChainLen++

		d.stepProgram()
		pre := d.cb._preProcess()

		switch {
		case pre.Suspended || len(pre.AttentionMasks) == 0:
			d.log.Debug("aici: skip chain hit a suspend, installing filler token")
			d.lastFillerRound = true
			d.pendingCb = d.cb
			d.cb = d.newFiller()
			return d.cb._midProcess(forkGroup)
		case len(pre.AttentionMasks) != 1:
			panic(newContractViolation("primitive reached via a skip chain must report exactly one attention mask, got %d", len(pre.AttentionMasks)))
		}
		// single mask: loop, trying mid-process on the new primitive.
	}
}

// SkipChainLength reports how many marker primitives the most recent
// [Driver.MidProcess] call chained through before reaching a primitive that
// samples, stops, or must suspend. Zero means it resolved immediately.
func (d *Driver) SkipChainLength() int {
	return d.lastSkipChainLen
}

// FillerRoundUsed reports whether the most recent [Driver.MidProcess] call
// installed the suspend-after-skip filler token.
func (d *Driver) FillerRoundUsed() bool {
	return d.lastFillerRound
}

// LastConstraintBuildDuration reports how long the current primitive's
// [Constraint] took to build, if the most recent [Driver.MidProcess] call was
// the first against that primitive (the constraint was built either inside
// that call or by [GenTokens] before the first await). It returns false on
// every other round, including later rounds against the same constraint.
func (d *Driver) LastConstraintBuildDuration() (time.Duration, bool) {
	t, ok := d.cb.(constraintBuildTimer)
	if !ok {
		return 0, false
	}
	return t.buildDurationIfFresh()
}

// PostProcess runs the post-process step, committing backtrack and tokens
// to the log before advancing the program past a completed await.
func (d *Driver) PostProcess(backtrack uint32, tokens []Token) PostProcessResult {
	if int(backtrack) > len(d.tokens)-d.promptLen {
		panic(newContractViolation("backtrack %d exceeds generated token count %d", backtrack, len(d.tokens)-d.promptLen))
	}
	if backtrack > 0 {
		d.tokens = d.tokens[:len(d.tokens)-int(backtrack)]
	}
	d.tokens = append(d.tokens, tokens...)

	result := d.cb._postProcess(backtrack, tokens)

	if d.pendingCb == nil {
		d.stepProgram()
	}
	return result
}

func (d *Driver) newFiller() *FixedTokens {
	return &FixedTokens{baseState: baseState{host: d.host}, text: []Token{d.fillerToken}, log: d}
}

func (d *Driver) yield(v any) {
	d.awaited <- v
	<-d.resume
}

func (d *Driver) recvYield() any {
	v, ok := <-d.awaited
	if !ok {
		return nil
	}
	return v
}

func (d *Driver) initialStep() {
	switch v := d.recvYield().(type) {
	case nil:
		d.cb = &StopToken{baseState{host: d.host}}
		d.skipPrompt = true
	case *getPromptAwaitable:
		d.promptAwaiter = v
	case awaitableCb:
		d.cb = v
		d.skipPrompt = true
	default:
		panic(newContractViolation("unexpected awaited value type %T", v))
	}
}

func (d *Driver) stepProgram() {
	d.resume <- struct{}{}
	switch v := d.recvYield().(type) {
	case nil:
		d.cb = &StopToken{baseState{host: d.host}}
	case *getPromptAwaitable:
		panic(newContractViolation("GetPrompt may only be awaited once, at program start"))
	case awaitableCb:
		d.cb = v
	default:
		panic(newContractViolation("unexpected awaited value type %T", v))
	}
}
