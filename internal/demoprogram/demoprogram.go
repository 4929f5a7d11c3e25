// Package demoprogram holds the fixed set of user programs cmd/aicihost can
// run, selected by name from [SequenceConfig.Program]. Each is a minimal,
// self-contained [aici.Runtime] consumer exercising one corner of the
// protocol: splicing, suspension, sampling under a choice constraint,
// sampling under a regex constraint, and forking.
package demoprogram

import (
	"fmt"

	"github.com/aici-run/aici-go/pkg/aici"
)

// Program is a user program ready to hand to [aici.New].
type Program func(rt *aici.Runtime)

// regexWordPattern is the pattern "regex-word" constrains generation to.
const regexWordPattern = `^[a-z]{3,6}$`

// registry maps a configured program name to its implementation.
var registry = map[string]Program{
	"greeter":     greeter,
	"echo-var":    echoVar,
	"choice":      choice,
	"regex-word":  regexWord,
	"fork-branch": forkBranch,
}

// Lookup returns the program registered under name, or an error naming
// every valid choice if name is not registered.
func Lookup(name string) (Program, error) {
	p, ok := registry[name]
	if ok {
		return p, nil
	}
	return nil, fmt.Errorf("demoprogram: unknown program %q; valid programs: %s", name, validNames())
}

func validNames() string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	return fmt.Sprint(names)
}

// greeter splices a fixed greeting and stops. It never suspends, forks, or
// samples — the simplest possible program, useful for exercising the wire
// transport's splice path end to end.
func greeter(rt *aici.Runtime) {
	rt.FixedTokens("Hello from aicihost!")
	rt.StopToken()
}

// echoVar suspends until the "topic" variable is set by something else
// (another sequence, an operator, or an MCP tool call against the variable
// store), then splices it back out.
func echoVar(rt *aici.Runtime) {
	vals := rt.WaitVars("topic")
	rt.FixedTokens("you said: " + string(vals[0]))
	rt.StopToken()
}

// choice samples one of a fixed set of options via [aici.ChooseConstraint],
// recording the result to the "answer" variable.
func choice(rt *aici.Runtime) {
	_, _ = aici.GenText(rt, aici.GenOptions{
		Options:  []string{"yes", "no", "maybe"},
		StoreVar: "answer",
	})
	rt.StopToken()
}

// regexWord samples a lowercase word matching regexWordPattern via the
// host's regex constraint, recording the result to the "word" variable.
func regexWord(rt *aici.Runtime) {
	_, _ = aici.GenText(rt, aici.GenOptions{
		Regex:    regexWordPattern,
		StoreVar: "word",
	})
	rt.StopToken()
}

// forkBranch forks into two siblings and splices a different fixed string
// depending on which branch it lands on.
func forkBranch(rt *aici.Runtime) {
	idx := rt.Fork(2)
	if idx == 0 {
		rt.FixedTokens("branch-a")
	} else {
		rt.FixedTokens("branch-b")
	}
	rt.StopToken()
}
