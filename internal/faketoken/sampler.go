package faketoken

import "github.com/aici-run/aici-go/pkg/aici"

// Sample picks a token from a bias mask the way a deterministic fake model
// would: the allowed token with the lowest id. Since EOS is id 0, that is
// EOS whenever the mask allows it; an empty mask also yields EOS.
// allowAll happens only when a host hands back
// [aici.AllTokensSet], which [Host.NewTokenSet] never does — callers still
// handle it so Sample is a valid [wire.Sampler] for any HostOps.
func Sample(allowAll bool, allowed []aici.Token) aici.Token {
	if allowAll || len(allowed) == 0 {
		return EOS
	}
	best := allowed[0]
	for _, t := range allowed[1:] {
		if t < best {
			best = t
		}
	}
	return best
}
