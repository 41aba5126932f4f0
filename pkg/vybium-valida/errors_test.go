package vybiumvalida

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestVerifyErrorIs(t *testing.T) {
	cause := errors.New("boom")
	err := fmt.Errorf("wrapped: %w", newError(ErrProofDecode, "failed to decode proof", cause))

	if !errors.Is(err, ErrProofDecode) {
		t.Error("code does not match its own error")
	}
	if errors.Is(err, ErrVerificationRejected) {
		t.Error("code matches a different code")
	}
	if !errors.Is(err, &VerifyError{Code: ErrProofDecode}) {
		t.Error("error does not match a VerifyError with the same code")
	}
	if !errors.Is(err, cause) {
		t.Error("cause is not reachable")
	}
}

func TestVerifyErrorMessages(t *testing.T) {
	tests := []struct {
		err  *VerifyError
		want string
	}{
		{newError(ErrMalformedExecutable, "failed to load executable", nil), "vybium-valida malformed executable: failed to load executable"},
		{newError(ErrExecutionFault, "execution failed", errors.New("division by zero")), "(caused by: division by zero)"},
		{newError(ErrorCode(42), "odd", nil), "error code 42"},
	}

	for _, tt := range tests {
		if got := tt.err.Error(); !strings.Contains(got, tt.want) {
			t.Errorf("Error() = %q, want it to contain %q", got, tt.want)
		}
	}
}

func TestErrorCodeNames(t *testing.T) {
	codes := []ErrorCode{
		ErrUnknown,
		ErrMalformedExecutable,
		ErrExecutionFault,
		ErrProofDecode,
		ErrVerificationRejected,
		ErrConfiguration,
	}
	seen := make(map[string]bool)
	for _, c := range codes {
		name := c.String()
		if seen[name] {
			t.Errorf("duplicate name %q", name)
		}
		seen[name] = true
		if c.Error() != name {
			t.Errorf("Error() and String() differ for %d", int(c))
		}
	}
}
