package demoprogram_test

import (
	"strings"
	"testing"

	"github.com/aici-run/aici-go/internal/demoprogram"
	"github.com/aici-run/aici-go/internal/faketoken"
	"github.com/aici-run/aici-go/internal/varstore/mcpvarstore"
	"github.com/aici-run/aici-go/pkg/aici"
)

// runToStop drives d's decoding loop to completion, picking the lowest
// allowed token whenever mid-process asks for a sample, and returns the
// concatenated detokenized text of every splice/sample it observed.
func runToStop(t *testing.T, host *faketoken.Host, d *aici.Driver, forkGroup []aici.SeqId) string {
	t.Helper()
	var out []aici.Token
	for round := 0; round < 50; round++ {
		pre := d.PreProcess()
		if pre.Suspended {
			t.Fatal("sequence suspended with nothing to unblock it")
		}
		mid := d.MidProcess(forkGroup)
		if mid.Stop {
			return string(host.Detokenize(out))
		}
		tokens := mid.FFTokens
		if mid.LogitBias != nil && len(tokens) == 0 {
			allowAll, allowed := mid.LogitBias.Allowed()
			tokens = []aici.Token{faketoken.Sample(allowAll, allowed)}
		}
		d.PostProcess(mid.Backtrack, tokens)
		out = append(out, tokens...)
	}
	t.Fatal("program did not stop within 50 rounds")
	return ""
}

func TestLookup_UnknownProgramNamesValidChoices(t *testing.T) {
	_, err := demoprogram.Lookup("nonexistent")
	if err == nil {
		t.Fatal("expected an error for an unregistered program name")
	}
	if !strings.Contains(err.Error(), "greeter") {
		t.Errorf("error %q should name the valid programs", err)
	}
}

func TestGreeter_SplicesFixedGreeting(t *testing.T) {
	prog, err := demoprogram.Lookup("greeter")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	host := faketoken.NewHost(1, mcpvarstore.NewStore(), nil)
	d := aici.New(host, prog)
	d.InitPrompt(nil)

	got := runToStop(t, host, d, nil)
	if got != "Hello from aicihost!" {
		t.Errorf("greeter output = %q, want %q", got, "Hello from aicihost!")
	}
}

func TestEchoVar_SuspendsUntilVariableSet(t *testing.T) {
	prog, err := demoprogram.Lookup("echo-var")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	store := mcpvarstore.NewStore()
	host := faketoken.NewHost(1, store, nil)
	d := aici.New(host, prog)
	d.InitPrompt(nil)

	pre := d.PreProcess()
	if !pre.Suspended {
		t.Fatal("echo-var should suspend before topic is set")
	}

	store.Set("topic", []byte("go"))

	got := runToStop(t, host, d, nil)
	if got != "you said: go" {
		t.Errorf("echo-var output = %q, want %q", got, "you said: go")
	}
}

func TestChoice_SamplesOneConfiguredOption(t *testing.T) {
	prog, err := demoprogram.Lookup("choice")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	store := mcpvarstore.NewStore()
	host := faketoken.NewHost(1, store, nil)
	d := aici.New(host, prog)
	d.InitPrompt(nil)

	runToStop(t, host, d, nil)

	v, ok := store.Get("answer")
	if !ok {
		t.Fatal("expected the \"answer\" variable to be set")
	}
	switch string(v) {
	case "yes", "no", "maybe":
	default:
		t.Errorf("answer = %q, want one of yes/no/maybe", v)
	}
}

func TestRegexWord_SamplesAWordMatchingThePattern(t *testing.T) {
	prog, err := demoprogram.Lookup("regex-word")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	store := mcpvarstore.NewStore()
	host := faketoken.NewHost(1, store, nil)
	d := aici.New(host, prog)
	d.InitPrompt(nil)

	runToStop(t, host, d, nil)

	v, ok := store.Get("word")
	if !ok {
		t.Fatal("expected the \"word\" variable to be set")
	}
	if n := len(v); n < 3 || n > 6 {
		t.Errorf("word = %q, want length between 3 and 6", v)
	}
	for _, r := range string(v) {
		if r < 'a' || r > 'z' {
			t.Errorf("word = %q, want lowercase letters only", v)
		}
	}
}

func TestForkBranch_DivergesByForkGroupPosition(t *testing.T) {
	prog, err := demoprogram.Lookup("fork-branch")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	store := mcpvarstore.NewStore()
	forkGroup := []aici.SeqId{10, 20}

	host0 := faketoken.NewHost(10, store, nil)
	d0 := aici.New(host0, prog)
	d0.InitPrompt(nil)
	if got := runToStop(t, host0, d0, forkGroup); got != "branch-a" {
		t.Errorf("branch 0 output = %q, want %q", got, "branch-a")
	}

	host1 := faketoken.NewHost(20, store, nil)
	d1 := aici.New(host1, prog)
	d1.InitPrompt(nil)
	if got := runToStop(t, host1, d1, forkGroup); got != "branch-b" {
		t.Errorf("branch 1 output = %q, want %q", got, "branch-b")
	}
}
