package protocols_test

import (
	"errors"
	"slices"
	"testing"

	"github.com/vybium/vybium-valida-verifier/internal/vybium-valida/core"
	"github.com/vybium/vybium-valida-verifier/internal/vybium-valida/fixtures"
	"github.com/vybium/vybium-valida-verifier/internal/vybium-valida/protocols"
	"github.com/vybium/vybium-valida-verifier/internal/vybium-valida/utils"
	"github.com/vybium/vybium-valida-verifier/internal/vybium-valida/vm"
)

type provenRun struct {
	config   *utils.VerificationConfig
	run      *fixtures.Execution
	proof    *protocols.MachineProof
	verifier *protocols.Verifier
}

func prove(t testing.TB, raw []byte, advice *string) *provenRun {
	t.Helper()
	cfg, err := utils.DefaultConfig()
	if err != nil {
		t.Fatalf("DefaultConfig failed: %v", err)
	}
	run, err := fixtures.Execute(raw, nil, advice)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	proof, err := fixtures.ProveExecution(cfg, run)
	if err != nil {
		t.Fatalf("Prove failed: %v", err)
	}
	verifier, err := protocols.NewVerifier(cfg)
	if err != nil {
		t.Fatalf("NewVerifier failed: %v", err)
	}
	return &provenRun{config: cfg, run: run, proof: proof, verifier: verifier}
}

// reencode returns a deep copy of the proof
func reencode(t testing.TB, p *protocols.MachineProof) *protocols.MachineProof {
	t.Helper()
	raw, err := protocols.EncodeProof(p)
	if err != nil {
		t.Fatal(err)
	}
	out, err := protocols.DecodeProof(raw)
	if err != nil {
		t.Fatal(err)
	}
	return out
}

func bump(v uint32) uint32 {
	return (v + 1) % core.Modulus
}

// TestVerifyHonestProofs tests that honest proofs of several programs are
// accepted
func TestVerifyHonestProofs(t *testing.T) {
	advice := "\x05\x07"
	tests := []struct {
		name   string
		code   []vm.Instruction
		advice *string
		output []uint32
	}{
		{"return constant", fixtures.ReturnConstant(42), nil, []uint32{42}},
		{"loop", fixtures.SumTo(6), nil, []uint32{21}},
		{"call", fixtures.DoubleViaCall(9), nil, []uint32{18}},
		{"advice", fixtures.AdviceSum(), &advice, []uint32{12}},
		{"single instruction", []vm.Instruction{vm.NewInstruction(vm.Stop)}, nil, []uint32{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := prove(t, fixtures.NewImage(tt.code, 0).Bytes(), tt.advice)
			if err := p.verifier.Verify(p.proof, p.run.PublicValues); err != nil {
				t.Fatalf("honest proof rejected: %v", err)
			}
			got := p.proof.PublicValues.Output
			if len(got) != len(tt.output) {
				t.Fatalf("Output = %v, want %v", got, tt.output)
			}
			for i := range got {
				if got[i] != tt.output[i] {
					t.Errorf("Output = %v, want %v", got, tt.output)
				}
			}
		})
	}
}

// TestVerifyStaticData tests a program whose executable carries data
func TestVerifyStaticData(t *testing.T) {
	p := prove(t, fixtures.StaticDataELF(), nil)
	if err := p.verifier.Verify(p.proof, p.run.PublicValues); err != nil {
		t.Fatalf("honest proof rejected: %v", err)
	}
}

// TestVerifyRejectsTampering tests that edits to any part of a proof are
// rejected
func TestVerifyRejectsTampering(t *testing.T) {
	p := prove(t, fixtures.NewImage(fixtures.SumTo(3), 0).Bytes(), nil)

	tests := []struct {
		name   string
		tamper func(*protocols.MachineProof)
	}{
		{"output", func(mp *protocols.MachineProof) { mp.PublicValues.Output[0]++ }},
		{"final pc", func(mp *protocols.MachineProof) { mp.PublicValues.FinalPC++ }},
		{"cycles", func(mp *protocols.MachineProof) { mp.PublicValues.Cycles++ }},
		{"program digest", func(mp *protocols.MachineProof) { mp.PublicValues.ProgramDigest[0]++ }},
		{"degree bits", func(mp *protocols.MachineProof) { mp.DegreeBits++ }},
		{"trace root", func(mp *protocols.MachineProof) { mp.TraceRoot[3] ^= 1 }},
		{"folding root", func(mp *protocols.MachineProof) { mp.FRI.CommitRoots[0][0] ^= 0x80 }},
		{"missing folding root", func(mp *protocols.MachineProof) { mp.FRI.CommitRoots = mp.FRI.CommitRoots[1:] }},
		{"final value", func(mp *protocols.MachineProof) { mp.FRI.FinalValue[2] = bump(mp.FRI.FinalValue[2]) }},
		{"proof of work", func(mp *protocols.MachineProof) { mp.FRI.PowWitness = bump(mp.FRI.PowWitness) }},
		{"trace value", func(mp *protocols.MachineProof) {
			row := &mp.FRI.Queries[0].Trace[1]
			row.Values[protocols.ColPC] = bump(row.Values[protocols.ColPC])
		}},
		{"trace path", func(mp *protocols.MachineProof) { mp.FRI.Queries[5].Trace[0].Path[0][7] ^= 4 }},
		{"folding value", func(mp *protocols.MachineProof) {
			layer := &mp.FRI.Queries[0].Layers[0]
			layer.Values[0] = bump(layer.Values[0])
		}},
		{"folding path", func(mp *protocols.MachineProof) {
			q := &mp.FRI.Queries[len(mp.FRI.Queries)-1]
			q.Layers[len(q.Layers)-1].Path[0][0] ^= 1
		}},
		{"dropped query", func(mp *protocols.MachineProof) { mp.FRI.Queries = mp.FRI.Queries[1:] }},
		{"dropped trace row", func(mp *protocols.MachineProof) {
			mp.FRI.Queries[2].Trace = mp.FRI.Queries[2].Trace[:3]
		}},
		{"swapped queries", func(mp *protocols.MachineProof) {
			q := mp.FRI.Queries
			for i := 1; i < len(q); i++ {
				if q[i].Trace[0].Values[protocols.ColClock] != q[0].Trace[0].Values[protocols.ColClock] {
					q[0], q[i] = q[i], q[0]
					return
				}
			}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tampered := reencode(t, p.proof)
			tt.tamper(tampered)
			err := p.verifier.Verify(tampered, p.run.PublicValues)
			if !errors.Is(err, protocols.ErrRejected) {
				t.Errorf("expected ErrRejected, got %v", err)
			}
		})
	}
}

// TestVerifyRejectsOtherStatement tests that a proof does not verify for a
// different execution
func TestVerifyRejectsOtherStatement(t *testing.T) {
	p := prove(t, fixtures.ReturnConstantELF(1), nil)
	other := prove(t, fixtures.ReturnConstantELF(2), nil)

	if err := p.verifier.Verify(p.proof, other.run.PublicValues); !errors.Is(err, protocols.ErrRejected) {
		t.Errorf("expected ErrRejected, got %v", err)
	}

	// Even with matching public values the commitments belong to the other run
	forged := reencode(t, other.proof)
	forged.PublicValues = p.proof.PublicValues
	if err := p.verifier.Verify(forged, p.run.PublicValues); !errors.Is(err, protocols.ErrRejected) {
		t.Errorf("expected ErrRejected for spliced proof, got %v", err)
	}

	if err := p.verifier.Verify(nil, p.run.PublicValues); !errors.Is(err, protocols.ErrRejected) {
		t.Errorf("expected ErrRejected for nil proof, got %v", err)
	}
}

// TestProofIsDeterministic tests that equal runs give byte-identical proofs
func TestProofIsDeterministic(t *testing.T) {
	raw := fixtures.ReturnConstantELF(5)
	first, err := fixtures.Prove(raw, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	second, err := fixtures.Prove(raw, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if string(first) != string(second) {
		t.Error("proofs of the same run differ")
	}
}

// splitImages returns two different executables whose code, entry and data
// flatten to the same element sequence: b moves a's entry point and first
// data words into an extra, never executed, instruction.
func splitImages() (a, b []byte) {
	code := fixtures.ReturnConstant(7)
	a = fixtures.NewImage(code, 0).WithData(fixtures.DataBase, 11, 22, 0).Bytes()

	extra := vm.NewInstruction(0, int32(fixtures.DataBase), 11, int32(fixtures.DataBase+4), 22, int32(fixtures.DataBase+8))
	b = fixtures.NewImage(append(code[:len(code):len(code)], extra), 0).Bytes()
	return a, b
}

// TestProgramDigestSeparatesSections tests that the digest binds the split
// between code and data
func TestProgramDigestSeparatesSections(t *testing.T) {
	rawA, rawB := splitImages()
	exeA, err := vm.LoadExecutable(rawA)
	if err != nil {
		t.Fatal(err)
	}
	exeB, err := vm.LoadExecutable(rawB)
	if err != nil {
		t.Fatal(err)
	}
	if exeA.CodeSize() != 3 || len(exeA.Data) != 3 || exeB.CodeSize() != 4 || len(exeB.Data) != 0 {
		t.Fatalf("unexpected layouts: %d/%d and %d/%d", exeA.CodeSize(), len(exeA.Data), exeB.CodeSize(), len(exeB.Data))
	}
	if slices.Equal(protocols.ProgramDigest(exeA), protocols.ProgramDigest(exeB)) {
		t.Fatal("different images share a program digest")
	}

	p := prove(t, rawA, nil)
	runB, err := fixtures.Execute(rawB, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := p.verifier.Verify(p.proof, runB.PublicValues); !errors.Is(err, protocols.ErrRejected) {
		t.Errorf("expected ErrRejected for the other image, got %v", err)
	}
}

func BenchmarkVerify(b *testing.B) {
	p := prove(b, fixtures.NewImage(fixtures.SumTo(50), 0).Bytes(), nil)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := p.verifier.Verify(p.proof, p.run.PublicValues); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkProve(b *testing.B) {
	cfg, err := utils.DefaultConfig()
	if err != nil {
		b.Fatal(err)
	}
	run, err := fixtures.Execute(fixtures.NewImage(fixtures.SumTo(50), 0).Bytes(), nil, nil)
	if err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := fixtures.ProveExecution(cfg, run); err != nil {
			b.Fatal(err)
		}
	}
}
