package protocols

import (
	"fmt"

	"github.com/vybium/vybium-valida-verifier/internal/vybium-valida/core"
	"github.com/vybium/vybium-valida-verifier/internal/vybium-valida/utils"
)

// Trace height bounds, as log2 of the number of rows. The LDE domain of the
// largest trace is the full two-adic subgroup.
const (
	MinDegreeBits = 2
	MaxDegreeBits = core.TwoAdicity - utils.FRILogBlowup
)

// STARKParameters holds the proof system shape a proof is produced and
// checked under. It is derived from a VerificationConfig.
type STARKParameters struct {
	LogBlowup       int
	NumQueries      int
	ProofOfWorkBits int
	ChallengerRate  int
}

// ParametersFromConfig extracts the proof system parameters from cfg
func ParametersFromConfig(cfg *utils.VerificationConfig) (STARKParameters, error) {
	if cfg == nil {
		return STARKParameters{}, fmt.Errorf("%w: configuration cannot be nil", utils.ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return STARKParameters{}, err
	}
	params := STARKParameters{
		LogBlowup:       cfg.FRI.LogBlowup,
		NumQueries:      cfg.FRI.NumQueries,
		ProofOfWorkBits: cfg.FRI.ProofOfWorkBits,
		ChallengerRate:  cfg.Challenger.Rate,
	}
	return params, params.Validate()
}

// Validate checks that the parameters describe a proof system this package
// implements.
func (sp STARKParameters) Validate() error {
	if sp.LogBlowup != utils.FRILogBlowup {
		return fmt.Errorf("%w: log blowup must be %d, got %d", utils.ErrInvalidConfig, utils.FRILogBlowup, sp.LogBlowup)
	}
	if sp.NumQueries <= 0 {
		return fmt.Errorf("%w: query count must be positive, got %d", utils.ErrInvalidConfig, sp.NumQueries)
	}
	if sp.ProofOfWorkBits < 0 || sp.ProofOfWorkBits > 30 {
		return fmt.Errorf("%w: proof of work bits out of range: %d", utils.ErrInvalidConfig, sp.ProofOfWorkBits)
	}
	return nil
}

// TraceDegreeBits returns log2 of the trace height for an execution of the
// given number of cycles.
func TraceDegreeBits(cycles uint64) (int, error) {
	if cycles == 0 {
		return 0, fmt.Errorf("execution has no cycles")
	}
	if cycles > 1<<MaxDegreeBits {
		return 0, fmt.Errorf("execution of %d cycles exceeds the largest trace of 2^%d rows", cycles, MaxDegreeBits)
	}
	height := utils.NextPowerOfTwo(int(cycles))
	bits := utils.Log2(height)
	if bits < MinDegreeBits {
		bits = MinDegreeBits
	}
	return bits, nil
}
