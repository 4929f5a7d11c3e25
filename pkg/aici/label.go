package aici

// Label is a snapshot of the token log's length at the moment it was taken.
// Passing a Label to [WithFollowing] lets a later [FixedTokens] splice
// backtrack to exactly that point before inserting new text, and
// [Label.TokensSince] / [Label.TextSince] let a program inspect what has
// been produced since.
type Label struct {
	ptr int
}

// NewLabel captures the current token log length.
func NewLabel(rt *Runtime) *Label {
	return &Label{ptr: rt.driver.Len()}
}

// TokensSince returns the tokens appended to the log since l was taken.
func (l *Label) TokensSince(rt *Runtime) []Token {
	return rt.driver.TokensFrom(l.ptr)
}

// TextSince detokenizes TokensSince through rt's host, replacing any
// partial/invalid trailing bytes with the Unicode replacement character.
func (l *Label) TextSince(rt *Runtime) string {
	return DecodeWithReplacement(rt.driver.host.Detokenize(l.TokensSince(rt)))
}
