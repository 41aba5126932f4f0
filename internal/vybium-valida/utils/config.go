// Package utils provides the verification configuration, its seeded
// parameter derivation and the Fiat-Shamir challenger.
package utils

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/zeebo/blake3"

	"github.com/vybium/vybium-valida-verifier/internal/vybium-valida/core"
)

// DefaultSeed is the literal seed the Poseidon parameters are derived from.
// Provers and verifiers must agree on it byte for byte.
const DefaultSeed = "validia seed"

// Fixed proof system parameters
const (
	PoseidonWidth         = 16
	PoseidonAlpha         = 7
	PoseidonFullRounds    = 8
	PoseidonPartialRounds = 22
	ChallengerRate        = 8
	MerkleHash            = "keccak256"
	MerkleArity           = 2
	FRILogBlowup          = 1
	FRINumQueries         = 40
	FRIProofOfWorkBits    = 8
)

// ErrInvalidConfig is returned when a configuration cannot be built or fails
// validation.
var ErrInvalidConfig = errors.New("invalid verification configuration")

// FieldConfig describes the base field and its challenge extension.
type FieldConfig struct {
	Name            string
	Modulus         uint32
	ExtensionDegree int
	ExtensionW      uint32
}

// MerkleConfig describes the commitment scheme over field rows.
type MerkleConfig struct {
	Hash       string
	DigestSize int
	Arity      int
}

// FRIConfig holds the low-degree test parameters.
type FRIConfig struct {
	LogBlowup       int
	NumQueries      int
	ProofOfWorkBits int
}

// ChallengerConfig holds the duplex sponge shape of the transcript.
type ChallengerConfig struct {
	Width int
	Rate  int
}

// VerificationConfig is the complete cryptographic configuration a proof is
// checked under. BuildConfig returns structurally equal values for equal
// seeds.
type VerificationConfig struct {
	Seed        string
	Field       FieldConfig
	Permutation core.PoseidonParameters
	Merkle      MerkleConfig
	FRI         FRIConfig
	Challenger  ChallengerConfig
}

// DefaultConfig builds the configuration for DefaultSeed.
func DefaultConfig() (*VerificationConfig, error) {
	return BuildConfig(DefaultSeed)
}

// BuildConfig derives the configuration for seed. Round constants are drawn
// first, row by row, followed by the Cauchy points of the MDS matrix.
func BuildConfig(seed string) (*VerificationConfig, error) {
	if seed == "" {
		return nil, fmt.Errorf("%w: seed must not be empty", ErrInvalidConfig)
	}

	rng := NewSeededRNG(seed)

	rounds := PoseidonFullRounds + PoseidonPartialRounds
	constants := make([][]core.Element, rounds)
	for r := range constants {
		constants[r] = rng.FieldElements(PoseidonWidth)
	}

	mds, err := sampleMDS(rng, PoseidonWidth)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	config := &VerificationConfig{
		Seed: seed,
		Field: FieldConfig{
			Name:            "BabyBear",
			Modulus:         core.Modulus,
			ExtensionDegree: core.ExtensionDegree,
			ExtensionW:      core.ExtensionW,
		},
		Permutation: core.PoseidonParameters{
			Width:          PoseidonWidth,
			Alpha:          PoseidonAlpha,
			FullRounds:     PoseidonFullRounds,
			PartialRounds:  PoseidonPartialRounds,
			RoundConstants: constants,
			MDS:            mds,
		},
		Merkle: MerkleConfig{
			Hash:       MerkleHash,
			DigestSize: core.DigestSize,
			Arity:      MerkleArity,
		},
		FRI: FRIConfig{
			LogBlowup:       FRILogBlowup,
			NumQueries:      FRINumQueries,
			ProofOfWorkBits: FRIProofOfWorkBits,
		},
		Challenger: ChallengerConfig{
			Width: PoseidonWidth,
			Rate:  ChallengerRate,
		},
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// sampleMDS draws Cauchy points until they define a valid matrix. A retry
// needs a collision among 32 draws, so in practice the first attempt wins.
func sampleMDS(rng *SeededRNG, width int) ([][]core.Element, error) {
	const maxAttempts = 16
	for attempt := 0; attempt < maxAttempts; attempt++ {
		xs := rng.FieldElements(width)
		ys := rng.FieldElements(width)
		if mds, err := core.CauchyMatrix(xs, ys); err == nil {
			return mds, nil
		}
	}
	return nil, fmt.Errorf("no valid Cauchy points after %d attempts", maxAttempts)
}

// Validate checks if the configuration is valid
func (c *VerificationConfig) Validate() error {
	if c.Seed == "" {
		return fmt.Errorf("%w: seed must not be empty", ErrInvalidConfig)
	}

	if c.Field.Modulus != core.Modulus {
		return fmt.Errorf("%w: unsupported field modulus %d", ErrInvalidConfig, c.Field.Modulus)
	}

	if c.Field.ExtensionDegree != core.ExtensionDegree || c.Field.ExtensionW != core.ExtensionW {
		return fmt.Errorf("%w: unsupported extension X^%d - %d", ErrInvalidConfig,
			c.Field.ExtensionDegree, c.Field.ExtensionW)
	}

	if err := c.Permutation.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	if c.Merkle.Hash != MerkleHash || c.Merkle.DigestSize != core.DigestSize || c.Merkle.Arity != MerkleArity {
		return fmt.Errorf("%w: unsupported Merkle scheme %s/%d/%d", ErrInvalidConfig,
			c.Merkle.Hash, c.Merkle.DigestSize, c.Merkle.Arity)
	}

	if c.FRI.LogBlowup < 1 {
		return fmt.Errorf("%w: FRI log blowup must be at least 1, got %d", ErrInvalidConfig, c.FRI.LogBlowup)
	}

	if c.FRI.NumQueries <= 0 {
		return fmt.Errorf("%w: FRI queries must be positive", ErrInvalidConfig)
	}

	if c.FRI.ProofOfWorkBits < 0 || c.FRI.ProofOfWorkBits > 30 {
		return fmt.Errorf("%w: proof of work bits out of range: %d", ErrInvalidConfig, c.FRI.ProofOfWorkBits)
	}

	if c.Challenger.Width != c.Permutation.Width || c.Challenger.Rate <= 0 || c.Challenger.Rate >= c.Challenger.Width {
		return fmt.Errorf("%w: challenger rate %d does not fit width %d", ErrInvalidConfig,
			c.Challenger.Rate, c.Challenger.Width)
	}

	return nil
}

// NewPermutation instantiates the Poseidon permutation.
func (c *VerificationConfig) NewPermutation() (*core.Poseidon, error) {
	perm, err := core.NewPoseidon(&c.Permutation)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return perm, nil
}

// NewChallenger returns a fresh transcript for this configuration.
func (c *VerificationConfig) NewChallenger() (*Challenger, error) {
	perm, err := c.NewPermutation()
	if err != nil {
		return nil, err
	}
	return NewChallenger(perm, c.Challenger.Rate)
}

// Fingerprint is a BLAKE3 digest of the canonical encoding of every
// parameter, suitable for comparing configurations across processes.
func (c *VerificationConfig) Fingerprint() [32]byte {
	buf := make([]byte, 0, 4096)
	buf = appendString(buf, c.Seed)
	buf = appendString(buf, c.Field.Name)
	buf = binary.LittleEndian.AppendUint32(buf, c.Field.Modulus)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(c.Field.ExtensionDegree))
	buf = binary.LittleEndian.AppendUint32(buf, c.Field.ExtensionW)

	p := &c.Permutation
	buf = binary.LittleEndian.AppendUint32(buf, uint32(p.Width))
	buf = binary.LittleEndian.AppendUint64(buf, p.Alpha)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(p.FullRounds))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(p.PartialRounds))
	buf = appendMatrix(buf, p.RoundConstants)
	buf = appendMatrix(buf, p.MDS)

	buf = appendString(buf, c.Merkle.Hash)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(c.Merkle.DigestSize))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(c.Merkle.Arity))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(c.FRI.LogBlowup))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(c.FRI.NumQueries))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(c.FRI.ProofOfWorkBits))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(c.Challenger.Width))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(c.Challenger.Rate))

	return blake3.Sum256(buf)
}

// Clone creates a deep copy of the configuration
func (c *VerificationConfig) Clone() *VerificationConfig {
	clone := *c
	clone.Permutation.RoundConstants = cloneMatrix(c.Permutation.RoundConstants)
	clone.Permutation.MDS = cloneMatrix(c.Permutation.MDS)
	return &clone
}

func appendString(buf []byte, s string) []byte {
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(s)))
	return append(buf, s...)
}

func appendMatrix(buf []byte, m [][]core.Element) []byte {
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(m)))
	for _, row := range m {
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(row)))
		for _, e := range row {
			buf = binary.LittleEndian.AppendUint32(buf, e.Value())
		}
	}
	return buf
}

func cloneMatrix(m [][]core.Element) [][]core.Element {
	if m == nil {
		return nil
	}
	out := make([][]core.Element, len(m))
	for i, row := range m {
		out[i] = append([]core.Element(nil), row...)
	}
	return out
}
