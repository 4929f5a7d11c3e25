package aici

// Constraint is the capability set a running primitive consults to decide
// which tokens may legally come next. It knows nothing about how it is
// driven — [ConstrainedToken] calls AllowTokens before sampling and
// AppendToken after, regardless of whether the constraint is a regex, a
// fixed choice list, or something a host implements itself.
type Constraint interface {
	// AllowTokens marks every currently-legal token in ts.
	AllowTokens(ts *TokenSet)

	// AppendToken records that t was produced, advancing internal state.
	AppendToken(t Token)

	// EOSAllowed reports whether ending the sequence here is legal.
	EOSAllowed() bool

	// EOSForced reports whether ending the sequence here is the only
	// remaining legal continuation.
	EOSForced() bool

	// TokenAllowed reports whether t specifically is legal right now.
	TokenAllowed(t Token) bool
}

// TrivialConstraint allows every token unconditionally. It is the default
// used by [GenTokens] when no regex or option list is supplied.
type TrivialConstraint struct{}

// NewTrivialConstraint returns a [TrivialConstraint].
func NewTrivialConstraint() *TrivialConstraint {
	return &TrivialConstraint{}
}

func (*TrivialConstraint) AllowTokens(*TokenSet)   {}
func (*TrivialConstraint) AppendToken(Token)       {}
func (*TrivialConstraint) EOSAllowed() bool        { return true }
func (*TrivialConstraint) EOSForced() bool         { return false }
func (*TrivialConstraint) TokenAllowed(Token) bool { return true }

var _ Constraint = (*TrivialConstraint)(nil)

// ChooseConstraint restricts generation to one of a fixed set of option
// strings, tokenized up front. At each step it allows exactly the tokens
// that extend at least one surviving option at the current position;
// producing a token drops every option that disagrees with it. Once all but
// one option have been eliminated and that option is exhausted, EOS is
// forced.
type ChooseConstraint struct {
	host     HostOps
	options  [][]Token
	ptr      int
	finished bool
}

// NewChooseConstraint tokenizes options through host and returns a
// [ChooseConstraint] over them.
func NewChooseConstraint(host HostOps, options []string) *ChooseConstraint {
	toks := make([][]Token, len(options))
	for i, o := range options {
		toks[i] = host.Tokenize(o)
	}
	return &ChooseConstraint{host: host, options: toks}
}

func (c *ChooseConstraint) AllowTokens(ts *TokenSet) {
	if c.finished {
		return
	}
	for _, o := range c.options {
		switch {
		case c.ptr < len(o):
			ts.Set(o[c.ptr])
		case c.ptr == len(o):
			ts.Set(c.host.EOSToken())
		}
	}
}

// AppendToken advances the surviving-option set by one token. Producing EOS
// ends generation permanently, regardless of how many options were still
// tied at that point.
func (c *ChooseConstraint) AppendToken(t Token) {
	if t == c.host.EOSToken() {
		c.finished = true
		return
	}
	surviving := c.options[:0]
	for _, o := range c.options {
		if c.ptr < len(o) && o[c.ptr] == t {
			surviving = append(surviving, o)
		}
	}
	c.options = surviving
	c.ptr++
}

func (c *ChooseConstraint) EOSAllowed() bool {
	if c.finished {
		return true
	}
	for _, o := range c.options {
		if len(o) == c.ptr {
			return true
		}
	}
	return false
}

func (c *ChooseConstraint) EOSForced() bool {
	if c.finished {
		return true
	}
	return len(c.options) == 1 && len(c.options[0]) == c.ptr
}

func (c *ChooseConstraint) TokenAllowed(t Token) bool {
	if t == c.host.EOSToken() {
		return c.EOSAllowed()
	}
	for _, o := range c.options {
		if c.ptr < len(o) && o[c.ptr] == t {
			return true
		}
	}
	return false
}

var _ Constraint = (*ChooseConstraint)(nil)
