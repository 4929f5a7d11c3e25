package aici

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// defaultMaxTokens bounds GenTokens/GenText when GenOptions.MaxTokens is
// left at its zero value, mirroring the reference implementation's default.
const defaultMaxTokens = 20

// quadNewline is the default stop sequence GenTokens/GenText look for,
// unless disabled via GenOptions.DisableQuadNewlineStop.
const quadNewline = "\n\n\n\n"

// GenOptions configures [GenTokens] and [GenText].
type GenOptions struct {
	// Regex, if non-empty, constrains generation via HostOps.NewRegexConstraint.
	Regex string

	// Options, if non-empty, constrains generation to one of these strings
	// via [ChooseConstraint]. Mutually exclusive with Regex; Regex wins if
	// both are set.
	Options []string

	// StoreVar, if non-empty, is set to the generated bytes on completion.
	StoreVar string

	// StopAt, if non-empty, ends generation once the decoded text so far
	// contains it.
	StopAt string

	// MaxTokens bounds how many sampling rounds GenTokens performs. A
	// non-positive value uses defaultMaxTokens.
	MaxTokens int

	// DisableQuadNewlineStop disables the default four-newlines-in-a-row
	// stop condition.
	DisableQuadNewlineStop bool
}

// GenTokens repeatedly samples a constrained token until the constraint
// forces EOS, a configured stop condition is hit, or MaxTokens rounds have
// elapsed, accumulating and returning every produced token.
func GenTokens(rt *Runtime, opts GenOptions) ([]Token, error) {
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	buildStart := time.Now()
	constraint, err := buildGenConstraint(rt, opts)
	buildDuration := time.Since(buildStart)
	if err != nil {
		return nil, err
	}

	nt := NewConstrainedToken(rt, func() Constraint { return constraint })
	nt.noteBuilt(constraint, buildDuration)
	var res []Token
	for i := 0; i < maxTokens; i++ {
		t := nt.Await(rt)
		res = append(res, t...)

		decoded := DecodeWithReplacement(rt.driver.host.Detokenize(res))
		if opts.StopAt != "" && strings.Contains(decoded, opts.StopAt) {
			break
		}
		if !opts.DisableQuadNewlineStop && strings.HasSuffix(decoded, quadNewline) {
			break
		}
		if nt.Finished {
			break
		}
	}

	if opts.StoreVar != "" {
		rt.driver.host.SetVar(opts.StoreVar, rt.driver.host.Detokenize(res))
	}
	return res, nil
}

// GenText is [GenTokens] followed by detokenization.
func GenText(rt *Runtime, opts GenOptions) (string, error) {
	toks, err := GenTokens(rt, opts)
	if err != nil {
		return "", err
	}
	return DecodeWithReplacement(rt.driver.host.Detokenize(toks)), nil
}

func buildGenConstraint(rt *Runtime, opts GenOptions) (Constraint, error) {
	switch {
	case opts.Regex != "":
		c, err := rt.driver.host.NewRegexConstraint(opts.Regex)
		if err != nil {
			return nil, fmt.Errorf("aici: build regex constraint: %w", err)
		}
		return c, nil
	case len(opts.Options) > 0:
		return NewChooseConstraint(rt.driver.host, opts.Options), nil
	default:
		return NewTrivialConstraint(), nil
	}
}

// DecodeWithReplacement decodes b as UTF-8, substituting the Unicode
// replacement character for any invalid byte sequence, so that a
// mid-multi-byte-rune detokenization never produces garbage.
func DecodeWithReplacement(b []byte) string {
	var sb strings.Builder
	sb.Grow(len(b))
	for len(b) > 0 {
		r, size := utf8.DecodeRune(b)
		if r == utf8.RuneError && size <= 1 {
			sb.WriteRune(utf8.RuneError)
			b = b[1:]
			continue
		}
		sb.WriteRune(r)
		b = b[size:]
	}
	return sb.String()
}
