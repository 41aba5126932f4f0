package vybiumvalida

import "fmt"

// ErrorCode classifies why a verification did not accept. Every code is
// itself an error, so errors.Is(err, ErrProofDecode) matches any
// *VerifyError carrying that code.
type ErrorCode int

const (
	// ErrUnknown represents an unknown error
	ErrUnknown ErrorCode = iota

	// ErrMalformedExecutable means the executable could not be parsed or
	// laid out, including an entry point outside the code.
	ErrMalformedExecutable

	// ErrExecutionFault means re-executing the program faulted
	ErrExecutionFault

	// ErrProofDecode means the proof bytes are not a well-formed proof
	ErrProofDecode

	// ErrVerificationRejected means the proof was checked and rejected
	ErrVerificationRejected

	// ErrConfiguration means the verification configuration could not be
	// built.
	ErrConfiguration
)

var codeNames = map[ErrorCode]string{
	ErrUnknown:              "unknown error",
	ErrMalformedExecutable:  "malformed executable",
	ErrExecutionFault:       "execution fault",
	ErrProofDecode:          "proof decode error",
	ErrVerificationRejected: "verification rejected",
	ErrConfiguration:        "configuration error",
}

// String returns the name of the code
func (c ErrorCode) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("error code %d", int(c))
}

// Error makes a code usable as an errors.Is target
func (c ErrorCode) Error() string {
	return c.String()
}

// VerifyError represents a verification failure
type VerifyError struct {
	Code    ErrorCode
	Message string
	Cause   error
}

// Error returns the error message
func (e *VerifyError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("vybium-valida %s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("vybium-valida %s: %s", e.Code, e.Message)
}

// Unwrap returns the cause of the error
func (e *VerifyError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target error
func (e *VerifyError) Is(target error) bool {
	switch t := target.(type) {
	case ErrorCode:
		return e.Code == t
	case *VerifyError:
		return e.Code == t.Code
	default:
		return false
	}
}

func newError(code ErrorCode, message string, cause error) *VerifyError {
	return &VerifyError{Code: code, Message: message, Cause: cause}
}
