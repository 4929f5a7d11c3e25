package aici

import "testing"

func TestDecodeWithReplacementPassesThroughValidUTF8(t *testing.T) {
	in := []byte("héllo ░ world")
	if got := DecodeWithReplacement(in); got != "héllo ░ world" {
		t.Fatalf("DecodeWithReplacement(%q) = %q", in, got)
	}
}

func TestDecodeWithReplacementSubstitutesInvalidBytes(t *testing.T) {
	in := []byte{'a', 0xff, 'b'}
	got := DecodeWithReplacement(in)
	want := "a�b"
	if got != want {
		t.Fatalf("DecodeWithReplacement(%v) = %q, want %q", in, got, want)
	}
}

func TestGenTokensStoresVariableOnCompletion(t *testing.T) {
	host := newFakeHost()
	var storedErr error
	d := New(host, func(rt *Runtime) {
		rt.GetPrompt()
		_, storedErr = GenTokens(rt, GenOptions{Options: []string{"ok"}, StoreVar: "out", MaxTokens: 5})
		rt.StopToken()
	})
	d.InitPrompt(nil)

	for i := 0; i < 5; i++ {
		mid := runOneRound(t, host, d)
		if mid.Stop {
			break
		}
	}

	if storedErr != nil {
		t.Fatalf("GenTokens returned error: %v", storedErr)
	}
	v, ok := host.GetVar("out")
	if !ok || string(v) != "ok" {
		t.Fatalf("var out = %q, ok=%v, want \"ok\"", v, ok)
	}
}

func TestGenTokensRegexConstructionErrorPropagates(t *testing.T) {
	host := newFakeHost()
	var gotErr error
	done := make(chan struct{})
	d := New(host, func(rt *Runtime) {
		rt.GetPrompt()
		_, gotErr = GenTokens(rt, GenOptions{Regex: "\x00invalid"})
		close(done)
	})
	d.InitPrompt(nil)
	<-done

	if gotErr == nil {
		t.Fatalf("expected an error from an invalid regex constraint")
	}
}

func TestGenTokensStopsAtConfiguredSubstring(t *testing.T) {
	host := newFakeHost()
	var got []Token
	d := New(host, func(rt *Runtime) {
		rt.GetPrompt()
		toks, _ := GenTokens(rt, GenOptions{Regex: "hello", StopAt: "hel", MaxTokens: 10})
		got = toks
		rt.StopToken()
	})
	d.InitPrompt(nil)

	for i := 0; i < 10; i++ {
		mid := runOneRound(t, host, d)
		if mid.Stop {
			break
		}
	}

	decoded := string(host.Detokenize(got))
	if decoded != "hel" {
		t.Fatalf("generated text = %q, want \"hel\" (stopped at StopAt)", decoded)
	}
}
