package aici

import "testing"

func allowedTokens(host HostOps, c Constraint) []Token {
	ts := host.NewTokenSet()
	c.AllowTokens(&ts)
	var out []Token
	// fakeHost's vocabulary for these tests never exceeds a couple hundred
	// ids; scanning is simplest given TokenSet keeps no enumerable index.
	for i := Token(0); i < 300; i++ {
		if ts.Test(i) {
			out = append(out, i)
		}
	}
	return out
}

func TestChooseConstraintNarrowsToSurvivors(t *testing.T) {
	host := newFakeHost()
	c := NewChooseConstraint(host, []string{"cat", "car", "dog"})

	allowed := allowedTokens(host, c)
	wantFirst := []Token{host.Tokenize("c")[0], host.Tokenize("d")[0]}
	if !containsToken(allowed, wantFirst[0]) || !containsToken(allowed, wantFirst[1]) {
		t.Fatalf("expected first-letter tokens for c and d, got %v", allowed)
	}

	c.AppendToken(host.Tokenize("c")[0])
	allowed = allowedTokens(host, c)
	wantSecond := []Token{host.Tokenize("a")[0]}
	if !containsToken(allowed, wantSecond[0]) {
		t.Fatalf("after 'c', expected 'a' to be allowed, got %v", allowed)
	}
	if containsToken(allowed, host.Tokenize("o")[0]) {
		t.Fatalf("after 'c', 'dog' should have been eliminated")
	}

	c.AppendToken(host.Tokenize("a")[0])
	if c.EOSForced() {
		t.Fatalf("EOSForced should still be false — 'cat' vs 'car' undecided")
	}

	c.AppendToken(host.Tokenize("t")[0])
	if !c.EOSForced() {
		t.Fatalf("after 'cat', EOS should be forced")
	}
	if !c.EOSAllowed() {
		t.Fatalf("EOSAllowed should be true once an option is exhausted")
	}
}

func TestChooseConstraintTokenAllowed(t *testing.T) {
	host := newFakeHost()
	c := NewChooseConstraint(host, []string{"yes", "no"})

	if !c.TokenAllowed(host.Tokenize("y")[0]) {
		t.Fatalf("'y' should be allowed at position 0")
	}
	if c.TokenAllowed(host.Tokenize("z")[0]) {
		t.Fatalf("'z' should not be allowed at position 0")
	}
}

func TestTrivialConstraintAllowsEverything(t *testing.T) {
	c := NewTrivialConstraint()
	if c.EOSForced() {
		t.Fatalf("TrivialConstraint must never force EOS")
	}
	if !c.EOSAllowed() {
		t.Fatalf("TrivialConstraint must always allow EOS")
	}
	if !c.TokenAllowed(42) {
		t.Fatalf("TrivialConstraint must allow any token")
	}
}
