package vybiumvalida

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/vybium/vybium-valida-verifier/internal/vybium-valida/protocols"
	"github.com/vybium/vybium-valida-verifier/internal/vybium-valida/utils"
	"github.com/vybium/vybium-valida-verifier/internal/vybium-valida/vm"
)

// DefaultSeed is the seed the default configuration is derived from
const DefaultSeed = utils.DefaultSeed

// Verifier checks Valida proofs against the executables they claim to run
type Verifier struct {
	logger    zerolog.Logger
	seed      string
	cache     *utils.ConfigCache
	resolver  AdviceResolver
	maxCycles uint64
}

// Option configures a Verifier
type Option func(*Verifier) error

// WithLogger sets the logger verification stages report to
func WithLogger(logger zerolog.Logger) Option {
	return func(v *Verifier) error {
		v.logger = logger
		return nil
	}
}

// WithSeed selects the configuration seed. Provers and verifiers must
// agree on it.
func WithSeed(seed string) Option {
	return func(v *Verifier) error {
		v.seed = seed
		return nil
	}
}

// WithConfigCache memoizes built configurations by seed, keeping at most
// size of them.
func WithConfigCache(size int) Option {
	return func(v *Verifier) error {
		cache, err := utils.NewConfigCache(size)
		if err != nil {
			return newError(ErrConfiguration, "failed to create configuration cache", err)
		}
		v.cache = cache
		return nil
	}
}

// WithAdviceResolver sets how the advice argument becomes an AdviceSource
func WithAdviceResolver(resolver AdviceResolver) Option {
	return func(v *Verifier) error {
		if resolver == nil {
			return newError(ErrConfiguration, "advice resolver cannot be nil", nil)
		}
		v.resolver = resolver
		return nil
	}
}

// WithMaxCycles bounds re-execution. The limit cannot exceed
// vm.DefaultMaxCycles, the longest execution a proof can cover.
func WithMaxCycles(limit uint64) Option {
	return func(v *Verifier) error {
		if limit == 0 {
			return newError(ErrConfiguration, "cycle limit must be positive", nil)
		}
		if limit > vm.DefaultMaxCycles {
			return newError(ErrConfiguration,
				fmt.Sprintf("cycle limit %d exceeds the largest provable execution of %d cycles", limit, vm.DefaultMaxCycles), nil)
		}
		v.maxCycles = limit
		return nil
	}
}

// NewVerifier creates a verifier
func NewVerifier(opts ...Option) (*Verifier, error) {
	v := &Verifier{
		logger:    zerolog.Nop(),
		seed:      DefaultSeed,
		resolver:  literalAdvice,
		maxCycles: vm.DefaultMaxCycles,
	}
	for _, opt := range opts {
		if err := opt(v); err != nil {
			return nil, err
		}
	}
	return v, nil
}

func literalAdvice(advice string) (AdviceSource, error) {
	return vm.NewStringAdvice(advice), nil
}

// Verify checks proofBytes against a fresh execution of executableBytes
// under the default configuration. It returns nil only if the proof is
// accepted.
func Verify(proofBytes, executableBytes []byte, stackHeight *uint32, advice *string) error {
	v, err := NewVerifier()
	if err != nil {
		return err
	}
	return v.Verify(proofBytes, executableBytes, stackHeight, advice)
}

// Verify checks proofBytes against a fresh execution of executableBytes.
// A nil stackHeight selects DefaultStackHeight; a nil advice supplies none.
func (v *Verifier) Verify(proofBytes, executableBytes []byte, stackHeight *uint32, advice *string) error {
	_, err := v.VerifyDetailed(proofBytes, executableBytes, stackHeight, advice)
	return err
}

// VerifyDetailed is Verify returning what the accepted execution did.
//
// Stages run in a fixed order and the first failure wins:
// 1. Load the executable
// 2. Initialize the machine state
// 3. Re-execute the program
// 4. Decode the proof
// 5. Build the configuration
// 6. Check the proof against the re-executed public values
func (v *Verifier) VerifyDetailed(proofBytes, executableBytes []byte, stackHeight *uint32, advice *string) (*VerificationResult, error) {
	start := time.Now()

	// Step 1: Load the executable
	exe, err := vm.LoadExecutable(executableBytes)
	if err != nil {
		return nil, newError(ErrMalformedExecutable, "failed to load executable", err)
	}
	v.logger.Debug().
		Int("instructions", exe.CodeSize()).
		Int("data_words", len(exe.Data)).
		Uint32("entry", exe.EntryPoint).
		Msg("loaded executable")

	// Step 2: Initialize the machine
	opts := []vm.StateOption{vm.WithMaxCycles(v.maxCycles)}
	if stackHeight != nil {
		opts = append(opts, vm.WithStackHeight(*stackHeight))
	}
	state, err := vm.NewMachineState(exe, opts...)
	if err != nil {
		return nil, newError(ErrMalformedExecutable, "failed to initialize machine", err)
	}

	// Step 3: Re-execute
	var source vm.AdviceSource
	if advice != nil {
		resolved, err := v.resolver(*advice)
		if err != nil {
			return nil, newError(ErrExecutionFault, "failed to resolve advice", err)
		}
		source = resolved
	}
	if err := state.Run(source, nil); err != nil {
		return nil, newError(ErrExecutionFault, "execution failed", err)
	}
	public := protocols.NewPublicValues(state)
	v.logger.Debug().
		Uint64("cycles", public.Cycles).
		Uint32("final_pc", public.FinalPC).
		Int("outputs", len(public.Output)).
		Msg("executed program")

	// Step 4: Decode the proof
	proof, err := protocols.DecodeProof(proofBytes)
	if err != nil {
		return nil, newError(ErrProofDecode, "failed to decode proof", err)
	}

	// Step 5: Build the configuration
	cfg, err := v.config()
	if err != nil {
		return nil, newError(ErrConfiguration, "failed to build configuration", err)
	}
	fingerprint := cfg.Fingerprint()
	v.logger.Debug().
		Uint32("degree_bits", proof.DegreeBits).
		Hex("fingerprint", fingerprint[:8]).
		Msg("built configuration")

	// Step 6: Verify
	verifier, err := protocols.NewVerifier(cfg)
	if err != nil {
		return nil, newError(ErrConfiguration, "failed to create verifier", err)
	}
	if err := verifier.Verify(proof, public); err != nil {
		v.logger.Debug().Err(err).Msg("proof rejected")
		return nil, newError(ErrVerificationRejected, "proof rejected", err)
	}

	result := &VerificationResult{
		Accepted:          true,
		Cycles:            public.Cycles,
		Output:            public.Output,
		DegreeBits:        int(proof.DegreeBits),
		ConfigFingerprint: fingerprint,
		Duration:          time.Since(start),
	}
	v.logger.Debug().Dur("duration", result.Duration).Msg("proof accepted")
	return result, nil
}

func (v *Verifier) config() (*utils.VerificationConfig, error) {
	if v.cache != nil {
		return v.cache.Get(v.seed)
	}
	cfg, err := utils.BuildConfig(v.seed)
	if err != nil {
		return nil, fmt.Errorf("seed %q: %w", v.seed, err)
	}
	return cfg, nil
}
