package policy

import (
	"testing"

	clierr "github.com/ggonzalez94/mfi-cli/internal/errors"
)

func TestCheckCommandAllowed(t *testing.T) {
	if err := CheckCommandAllowed(nil, "group create"); err != nil {
		t.Fatalf("unexpected error with empty allowlist: %v", err)
	}
	if err := CheckCommandAllowed([]string{"group get"}, "group  GET"); err != nil {
		t.Fatalf("expected command to be allowed: %v", err)
	}
	if err := CheckCommandAllowed([]string{"bank"}, "bank update"); err != nil {
		t.Fatalf("expected group entry to allow subcommand: %v", err)
	}
	if err := CheckCommandAllowed([]string{"group get"}, "group get-all"); !clierr.Is(err, clierr.CodeBlocked) {
		t.Fatalf("expected sibling command to be blocked, got %v", err)
	}
	if err := CheckCommandAllowed([]string{"bank get"}, "group create"); !clierr.Is(err, clierr.CodeBlocked) {
		t.Fatal("expected command to be blocked")
	}
}
