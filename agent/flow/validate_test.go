package flow

import (
	"errors"
	"testing"

	contractx "github.com/ParthShindenovus/Whipsmart-Admin-Backend/agent/contract"
)

func TestValidateName(t *testing.T) {
	t.Parallel()

	if _, err := validateName(" John Doe "); err != nil {
		t.Fatalf("validateName() error = %v", err)
	}
	for _, bad := range []string{"J", "  ", "john@example.com", "call me at 0412345678 thanks"} {
		if _, err := validateName(bad); !errors.Is(err, contractx.ErrInvalidFieldFormat) {
			t.Fatalf("validateName(%q) error = %v, want ErrInvalidFieldFormat", bad, err)
		}
	}
}

func TestValidateEmail(t *testing.T) {
	t.Parallel()

	got, err := validateEmail(" John@Example.COM ")
	if err != nil {
		t.Fatalf("validateEmail() error = %v", err)
	}
	if got != "john@example.com" {
		t.Fatalf("validateEmail() = %q, want lowercased", got)
	}
	for _, bad := range []string{"john", "john@", "@example.com", "john@example", "john@.com"} {
		if _, err := validateEmail(bad); !errors.Is(err, contractx.ErrInvalidFieldFormat) {
			t.Fatalf("validateEmail(%q) error = %v, want ErrInvalidFieldFormat", bad, err)
		}
	}
}

func TestValidatePhone(t *testing.T) {
	t.Parallel()

	if _, err := validatePhone("+61 (04) 1234-5678"); err != nil {
		t.Fatalf("validatePhone() error = %v", err)
	}
	if _, err := validatePhone("12345"); !errors.Is(err, contractx.ErrInvalidFieldFormat) {
		t.Fatalf("validatePhone() error = %v, want ErrInvalidFieldFormat", err)
	}
}

func TestValidateIssue(t *testing.T) {
	t.Parallel()

	if _, err := validateIssue("app crashes"); err != nil {
		t.Fatalf("validateIssue() error = %v", err)
	}
	if _, err := validateIssue("   "); !errors.Is(err, contractx.ErrInvalidFieldFormat) {
		t.Fatalf("validateIssue() error = %v, want ErrInvalidFieldFormat", err)
	}
}

func TestIsQuestion(t *testing.T) {
	t.Parallel()

	for _, q := range []string{"How does leasing work?", "what is novated leasing", "Can I lease an EV"} {
		if !isQuestion(q) {
			t.Fatalf("isQuestion(%q) = false, want true", q)
		}
	}
	for _, s := range []string{"John Doe", "john@example.com", "my app keeps crashing"} {
		if isQuestion(s) {
			t.Fatalf("isQuestion(%q) = true, want false", s)
		}
	}
}

func TestParseConfirmationClosedGrammar(t *testing.T) {
	t.Parallel()

	yes, err := parseConfirmation("  YES ")
	if err != nil || !yes {
		t.Fatalf("parseConfirmation(YES) = %v, %v", yes, err)
	}

	no, err := parseConfirmation("No")
	if err != nil || no {
		t.Fatalf("parseConfirmation(No) = %v, %v", no, err)
	}

	for _, ambiguous := range []string{"yes please", "nope", "correct", "y", "sure"} {
		if _, err := parseConfirmation(ambiguous); !errors.Is(err, contractx.ErrAmbiguousConfirmation) {
			t.Fatalf("parseConfirmation(%q) error = %v, want ErrAmbiguousConfirmation", ambiguous, err)
		}
	}
}
