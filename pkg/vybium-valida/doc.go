// Package vybiumvalida verifies STARK proofs of Valida program executions.
//
// A proof claims that an executable ran to completion with certain public
// values: where it started and stopped, how many cycles it took and what
// it wrote. The verifier does not trust those claims. It loads the
// executable, re-executes it, and only then checks the proof against the
// values the re-execution produced.
//
// # Quick Start
//
// Verifying with the default configuration:
//
//	if err := vybiumvalida.Verify(proofBytes, elfBytes, nil, nil); err != nil {
//		log.Fatal(err)
//	}
//
// Classifying failures:
//
//	err := vybiumvalida.Verify(proofBytes, elfBytes, nil, nil)
//	switch {
//	case errors.Is(err, vybiumvalida.ErrMalformedExecutable):
//		// the executable is unusable; the proof was never looked at
//	case errors.Is(err, vybiumvalida.ErrVerificationRejected):
//		// the proof does not prove this execution
//	}
//
// Reusing a verifier with logging and a configuration cache:
//
//	verifier, err := vybiumvalida.NewVerifier(
//		vybiumvalida.WithLogger(logger),
//		vybiumvalida.WithConfigCache(4),
//	)
//	if err != nil {
//		log.Fatal(err)
//	}
//	result, err := verifier.VerifyDetailed(proofBytes, elfBytes, &stackHeight, &advice)
//
// # Pipeline
//
// Every verification runs the same stages in order, and the first failure
// is returned:
//
// - Executable loading (ELF32 code, static data and entry point)
// - Machine initialization (PC at the entry, FP at the stack height)
// - Re-execution until STOP, consuming advice
// - Proof decoding (strict CBOR)
// - Configuration building (BabyBear, Poseidon, Keccak Merkle trees, FRI)
// - Proof verification against the re-executed public values
//
// # Architecture
//
// - pkg/vybium-valida/: Public API (this package)
// - internal/vybium-valida/: Private implementation (not importable)
//
// The machine, field arithmetic, transcript and proof system live in
// internal/ and can be refactored without breaking this API.
package vybiumvalida
