package faketoken

import (
	"testing"

	"github.com/aici-run/aici-go/internal/varstore/mcpvarstore"
	"github.com/aici-run/aici-go/pkg/aici"
)

func TestHost_TokenizeDetokenizeRoundTrip(t *testing.T) {
	h := NewHost(1, mcpvarstore.NewStore(), nil)

	for _, text := range []string{"hello, world!", "Has Numbers 123", ""} {
		toks := h.Tokenize(text)
		if got := string(h.Detokenize(toks)); got != text {
			t.Errorf("round trip %q -> %v -> %q, want %q", text, toks, got, text)
		}
	}
}

func TestHost_UnknownRuneMapsToQuestionMark(t *testing.T) {
	h := NewHost(1, mcpvarstore.NewStore(), nil)
	toks := h.Tokenize("日本語")
	for _, tok := range toks {
		if tok != runeToToken['?'] {
			t.Errorf("token for unknown rune = %d, want the '?' token", tok)
		}
	}
}

func TestHost_VarsDelegateToStore(t *testing.T) {
	store := mcpvarstore.NewStore()
	h := NewHost(1, store, nil)

	if _, ok := h.GetVar("x"); ok {
		t.Fatal("unset variable should report ok=false")
	}
	h.SetVar("x", []byte("one"))
	h.AppendVar("x", []byte("two"))

	v, ok := h.GetVar("x")
	if !ok || string(v) != "onetwo" {
		t.Fatalf("GetVar(x) = %q, %v, want %q, true", v, ok, "onetwo")
	}

	// A second Host sharing the same store sees the same value.
	h2 := NewHost(2, store, nil)
	v2, ok2 := h2.GetVar("x")
	if !ok2 || string(v2) != "onetwo" {
		t.Fatalf("second host GetVar(x) = %q, %v, want %q, true", v2, ok2, "onetwo")
	}
}

func TestHost_RegisterInvokesCallback(t *testing.T) {
	var got *aici.Driver
	h := NewHost(1, mcpvarstore.NewStore(), func(d *aici.Driver) { got = d })

	d := aici.New(h, func(rt *aici.Runtime) { rt.StopToken() })
	d.InitPrompt(nil)

	if got != d {
		t.Fatal("Register callback was not invoked with the constructed Driver")
	}
}

func TestHost_SelfSeqID(t *testing.T) {
	h := NewHost(42, mcpvarstore.NewStore(), nil)
	if h.SelfSeqID() != 42 {
		t.Errorf("SelfSeqID() = %d, want 42", h.SelfSeqID())
	}
}

func TestHost_NewTokenSetIsExplicitEmpty(t *testing.T) {
	h := NewHost(1, mcpvarstore.NewStore(), nil)
	ts := h.NewTokenSet()
	allowAll, tokens := ts.Allowed()
	if allowAll {
		t.Fatal("NewTokenSet() should not report allow-all")
	}
	if len(tokens) != 0 {
		t.Errorf("NewTokenSet() = %v, want empty", tokens)
	}
}
