package config_test

import (
	"strings"
	"testing"

	"github.com/aici-run/aici-go/internal/config"
)

func TestValidate_DuplicateSequenceNames(t *testing.T) {
	t.Parallel()
	yaml := `
sequences:
  - name: greeter
    program: greeter
  - name: greeter
    program: choice
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for duplicate sequence names, got nil")
	}
	if !strings.Contains(err.Error(), "duplicate") {
		t.Errorf("error should mention duplicate, got: %v", err)
	}
}

func TestValidate_NoSequencesWarnsButSucceeds(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  listen_addr: ":8080"
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_MultipleErrors(t *testing.T) {
	t.Parallel()
	yaml := `
sequences:
  - name: seq1
    program: greeter
  - name: seq1
    program: choice
    tier: platinum
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected errors, got nil")
	}
	// Should contain both the duplicate-name and invalid-tier errors.
	errStr := err.Error()
	if !strings.Contains(errStr, "duplicate") {
		t.Errorf("error should mention duplicate, got: %v", err)
	}
	if !strings.Contains(errStr, "tier") {
		t.Errorf("error should mention tier, got: %v", err)
	}
}

func TestValidate_AllTiersAccepted(t *testing.T) {
	t.Parallel()
	for _, tier := range []string{"fast", "standard", "deep"} {
		yaml := `
sequences:
  - name: seq
    program: greeter
    tier: ` + tier
		_, err := config.LoadFromReader(strings.NewReader(yaml))
		if err != nil {
			t.Errorf("tier %q: unexpected error: %v", tier, err)
		}
	}
}
