package vybiumvalida

import (
	"time"

	"github.com/vybium/vybium-valida-verifier/internal/vybium-valida/vm"
)

// DefaultStackHeight is the initial frame pointer used when no stack height
// is given.
const DefaultStackHeight = vm.DefaultStackHeight

// ErrAdviceExhausted is returned by an AdviceSource that has no more input
var ErrAdviceExhausted = vm.ErrAdviceExhausted

// AdviceSource supplies the non-deterministic bytes a program reads. Next
// returns ErrAdviceExhausted once the source is empty.
type AdviceSource interface {
	Next() (byte, error)
}

// AdviceResolver turns the advice argument of Verify into a source. The
// default resolver serves the bytes of the string itself.
type AdviceResolver func(advice string) (AdviceSource, error)

// VerificationResult describes an accepted verification
type VerificationResult struct {
	// Whether the proof was accepted
	Accepted bool

	// Cycle count of the re-execution
	Cycles uint64

	// Output words the program wrote
	Output []uint32

	// Log2 of the proven trace height
	DegreeBits int

	// Fingerprint of the configuration the proof was checked under
	ConfigFingerprint [32]byte

	// Wall time spent in verification
	Duration time.Duration
}
