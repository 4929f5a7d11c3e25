package aici

import "testing"

func TestTokenSetEmptyByDefault(t *testing.T) {
	var ts TokenSet
	if ts.Test(5) {
		t.Fatalf("zero-value TokenSet should allow nothing")
	}
	if got := ts.Len(); got != 0 {
		t.Fatalf("Len() = %d, want 0", got)
	}
}

func TestTokenSetSetAndTest(t *testing.T) {
	var ts TokenSet
	ts.Set(3)
	ts.Set(7)

	if !ts.Test(3) || !ts.Test(7) {
		t.Fatalf("expected tokens 3 and 7 to be allowed")
	}
	if ts.Test(4) {
		t.Fatalf("token 4 should not be allowed")
	}
	if got := ts.Len(); got != 2 {
		t.Fatalf("Len() = %d, want 2", got)
	}
}

func TestAllTokensSet(t *testing.T) {
	ts := AllTokensSet()
	for _, tok := range []Token{0, 1, 1000, -1} {
		if !ts.Test(tok) {
			t.Fatalf("AllTokensSet should allow token %d", tok)
		}
	}
	if got := ts.Len(); got != -1 {
		t.Fatalf("Len() = %d, want -1 for an all-tokens set", got)
	}
}

func TestTokenSetAllowed(t *testing.T) {
	var ts TokenSet
	ts.Set(3)
	ts.Set(7)

	allowAll, tokens := ts.Allowed()
	if allowAll {
		t.Fatal("expected allowAll=false for an explicit set")
	}
	if len(tokens) != 2 {
		t.Fatalf("got %d tokens, want 2", len(tokens))
	}
	seen := map[Token]bool{}
	for _, tok := range tokens {
		seen[tok] = true
	}
	if !seen[3] || !seen[7] {
		t.Fatalf("Allowed() = %v, want [3 7] in some order", tokens)
	}
}

func TestTokenSetAllowedAllTokens(t *testing.T) {
	ts := AllTokensSet()
	allowAll, tokens := ts.Allowed()
	if !allowAll {
		t.Fatal("expected allowAll=true for AllTokensSet")
	}
	if tokens != nil {
		t.Fatalf("expected nil tokens slice, got %v", tokens)
	}
}

func TestIndexOfSeq(t *testing.T) {
	group := []SeqId{10, 20, 30}
	tests := []struct {
		id   SeqId
		want int
	}{
		{10, 0},
		{30, 2},
		{99, -1},
	}
	for _, tt := range tests {
		if got := indexOfSeq(tt.id, group); got != tt.want {
			t.Errorf("indexOfSeq(%d, %v) = %d, want %d", tt.id, group, got, tt.want)
		}
	}
}
