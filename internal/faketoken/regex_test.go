package faketoken

import (
	"testing"

	"github.com/aici-run/aici-go/pkg/aici"
)

func TestRegexConstraint_AllowsOnlyLowercaseContinuations(t *testing.T) {
	c, err := newRegexConstraint(`^[a-z]{2,4}$`)
	if err != nil {
		t.Fatalf("newRegexConstraint: %v", err)
	}

	var ts aici.TokenSet
	c.AllowTokens(&ts)
	if !ts.Test(runeToToken['a']) || !ts.Test(runeToToken['z']) {
		t.Error("expected lowercase letters to be allowed from an empty prefix")
	}
	if ts.Test(EOS) {
		t.Error("EOS should not be allowed before the minimum length is reached")
	}
}

func TestRegexConstraint_AllowsEOSOnceMinimumLengthReached(t *testing.T) {
	c, err := newRegexConstraint(`^[a-z]{2,4}$`)
	if err != nil {
		t.Fatalf("newRegexConstraint: %v", err)
	}
	c.AppendToken(runeToToken['a'])
	c.AppendToken(runeToToken['b'])

	if !c.EOSAllowed() {
		t.Error("EOS should be allowed once the pattern's minimum length is reached")
	}
	if c.EOSForced() {
		t.Error("EOS should not yet be forced; more letters still fit within the max length")
	}
}

func TestRegexConstraint_ForcesEOSAtMaxLength(t *testing.T) {
	c, err := newRegexConstraint(`^[a-z]{2,4}$`)
	if err != nil {
		t.Fatalf("newRegexConstraint: %v", err)
	}
	for _, r := range []rune{'a', 'b', 'c', 'd'} {
		c.AppendToken(runeToToken[r])
	}

	if !c.EOSForced() {
		t.Error("EOS should be forced once the pattern's maximum length is reached")
	}
}

func TestRegexConstraint_TokenAllowedMatchesFeasibility(t *testing.T) {
	c, err := newRegexConstraint(`^(yes|no)$`)
	if err != nil {
		t.Fatalf("newRegexConstraint: %v", err)
	}

	if !c.TokenAllowed(runeToToken['y']) {
		t.Error("'y' should be a feasible first letter of \"yes\"")
	}
	if c.TokenAllowed(runeToToken['z']) {
		t.Error("'z' cannot start either option")
	}
}
