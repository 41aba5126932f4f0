package utils

import (
	"errors"
	"reflect"
	"testing"

	"github.com/vybium/vybium-valida-verifier/internal/vybium-valida/core"
)

// TestDefaultConfig tests the DefaultConfig function
func TestDefaultConfig(t *testing.T) {
	config, err := DefaultConfig()
	if err != nil {
		t.Fatalf("DefaultConfig() failed: %v", err)
	}

	if config.Seed != DefaultSeed {
		t.Errorf("Seed = %q, expected %q", config.Seed, DefaultSeed)
	}
	if config.Field.Modulus != core.Modulus {
		t.Errorf("Field.Modulus = %d", config.Field.Modulus)
	}
	if config.Field.ExtensionDegree != 5 {
		t.Errorf("ExtensionDegree = %d, expected 5", config.Field.ExtensionDegree)
	}
	if config.FRI.LogBlowup != 1 || config.FRI.NumQueries != 40 || config.FRI.ProofOfWorkBits != 8 {
		t.Errorf("unexpected FRI parameters %+v", config.FRI)
	}
	if config.Permutation.Width != 16 || config.Permutation.PartialRounds != 22 || config.Permutation.FullRounds != 8 {
		t.Errorf("unexpected permutation shape %d/%d/%d", config.Permutation.Width,
			config.Permutation.FullRounds, config.Permutation.PartialRounds)
	}
	if config.Merkle.DigestSize != 32 || config.Merkle.Arity != 2 {
		t.Errorf("unexpected Merkle parameters %+v", config.Merkle)
	}

	if err := config.Validate(); err != nil {
		t.Errorf("DefaultConfig() should be valid: %v", err)
	}
}

// TestBuildConfigIsPure checks that repeated builds are structurally equal
func TestBuildConfigIsPure(t *testing.T) {
	first, err := BuildConfig(DefaultSeed)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		again, err := BuildConfig(DefaultSeed)
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("build %d differs from the first", i)
		}
		if first.Fingerprint() != again.Fingerprint() {
			t.Fatalf("build %d has a different fingerprint", i)
		}
	}
}

// TestBuildConfigSeedSensitivity checks that the seed reaches the constants
func TestBuildConfigSeedSensitivity(t *testing.T) {
	a, err := BuildConfig(DefaultSeed)
	if err != nil {
		t.Fatal(err)
	}
	b, err := BuildConfig("validia seed!")
	if err != nil {
		t.Fatal(err)
	}

	if reflect.DeepEqual(a.Permutation.RoundConstants, b.Permutation.RoundConstants) {
		t.Error("different seeds produced identical round constants")
	}
	if a.Fingerprint() == b.Fingerprint() {
		t.Error("different seeds produced identical fingerprints")
	}
}

// TestBuildConfigRejectsEmptySeed tests the configuration error path
func TestBuildConfigRejectsEmptySeed(t *testing.T) {
	_, err := BuildConfig("")
	if !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}

// TestConfigValidate tests the Validate method
func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *VerificationConfig)
	}{
		{"empty seed", func(c *VerificationConfig) { c.Seed = "" }},
		{"wrong modulus", func(c *VerificationConfig) { c.Field.Modulus = 97 }},
		{"wrong extension", func(c *VerificationConfig) { c.Field.ExtensionDegree = 4 }},
		{"zero blowup", func(c *VerificationConfig) { c.FRI.LogBlowup = 0 }},
		{"no queries", func(c *VerificationConfig) { c.FRI.NumQueries = 0 }},
		{"huge proof of work", func(c *VerificationConfig) { c.FRI.ProofOfWorkBits = 31 }},
		{"rate equals width", func(c *VerificationConfig) { c.Challenger.Rate = 16 }},
		{"unknown hash", func(c *VerificationConfig) { c.Merkle.Hash = "sha256" }},
		{"missing round constants", func(c *VerificationConfig) {
			c.Permutation.RoundConstants = c.Permutation.RoundConstants[:1]
		}},
	}

	base, err := DefaultConfig()
	if err != nil {
		t.Fatal(err)
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := base.Clone()
			tt.mutate(config)
			err := config.Validate()
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

// TestConfigClone tests that Clone produces an independent copy
func TestConfigClone(t *testing.T) {
	original, err := DefaultConfig()
	if err != nil {
		t.Fatal(err)
	}
	clone := original.Clone()

	if !reflect.DeepEqual(original, clone) {
		t.Fatal("clone differs from original")
	}

	clone.Permutation.RoundConstants[0][0] = clone.Permutation.RoundConstants[0][0].Add(core.One)
	clone.Permutation.MDS[1][1] = core.Zero
	if reflect.DeepEqual(original, clone) {
		t.Error("modifying the clone changed the original")
	}
	if original.Fingerprint() == clone.Fingerprint() {
		t.Error("fingerprint ignores round constants")
	}
}

// TestConfigCache tests memoization by seed
func TestConfigCache(t *testing.T) {
	cache, err := NewConfigCache(2)
	if err != nil {
		t.Fatal(err)
	}

	first, err := cache.Get(DefaultSeed)
	if err != nil {
		t.Fatal(err)
	}
	second, err := cache.Get(DefaultSeed)
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Error("cache miss for a repeated seed")
	}

	built, err := BuildConfig(DefaultSeed)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(first, built) {
		t.Error("cached configuration differs from a fresh build")
	}

	for _, seed := range []string{"a", "b", "c"} {
		if _, err := cache.Get(seed); err != nil {
			t.Fatal(err)
		}
	}
	if cache.Len() != 2 {
		t.Errorf("cache holds %d entries, expected 2", cache.Len())
	}

	if _, err := cache.Get(""); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
	if _, err := NewConfigCache(0); err == nil {
		t.Error("expected error for zero cache size")
	}
}

// TestSeededRNG tests determinism and range of the seeded stream
func TestSeededRNG(t *testing.T) {
	a := NewSeededRNG(DefaultSeed)
	b := NewSeededRNG(DefaultSeed)
	for i := 0; i < 100; i++ {
		x, y := a.FieldElement(), b.FieldElement()
		if !x.Equal(y) {
			t.Fatalf("draw %d differs", i)
		}
		if x.Value() >= core.Modulus {
			t.Fatalf("draw %d is not canonical", i)
		}
	}

	if NewSeededRNG("x").Uint64() == NewSeededRNG("y").Uint64() {
		t.Error("different seeds produced the same first draw")
	}
}

// BenchmarkBuildConfig benchmarks configuration assembly
func BenchmarkBuildConfig(b *testing.B) {
	for i := 0; i < b.N; i++ {
		if _, err := BuildConfig(DefaultSeed); err != nil {
			b.Fatal(err)
		}
	}
}
