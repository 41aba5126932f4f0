package protocols

import (
	"fmt"

	"github.com/vybium/vybium-valida-verifier/internal/vybium-valida/core"
)

// MachineProof is a proof that a Valida execution with the given public
// values ran to completion. All structures encode as CBOR arrays.
type MachineProof struct {
	_ struct{} `cbor:",toarray"`

	PublicValues PublicValues

	// DegreeBits is log2 of the trace height
	DegreeBits uint32

	// TraceRoot commits to the low-degree extension of the processor trace
	TraceRoot []byte

	FRI FRIProof
}

// FRIProof is the low-degree argument for the composition polynomial.
type FRIProof struct {
	_ struct{} `cbor:",toarray"`

	// CommitRoots commits to folding layers 1..DegreeBits-1
	CommitRoots [][]byte

	// FinalValue is the constant the composition folds down to
	FinalValue []uint32

	PowWitness uint32

	Queries []QueryProof
}

// QueryProof opens everything one query position touches.
type QueryProof struct {
	_ struct{} `cbor:",toarray"`

	// Trace opens rows a, a+2, a+N/2 and a+N/2+2 of the trace LDE
	Trace []RowOpening

	// Layers opens one (x, -x) pair per committed folding layer
	Layers []RowOpening
}

// RowOpening is a committed row and its Merkle authentication path.
type RowOpening struct {
	_ struct{} `cbor:",toarray"`

	Values []uint32
	Path   [][]byte
}

// Validate checks the proof shape that does not depend on the
// configuration: digest lengths, canonical field values and the trace
// height range.
func (p *MachineProof) Validate() error {
	if p.DegreeBits < MinDegreeBits || p.DegreeBits > MaxDegreeBits {
		return fmt.Errorf("degree bits %d out of range [%d, %d]", p.DegreeBits, MinDegreeBits, MaxDegreeBits)
	}
	if len(p.TraceRoot) != core.DigestSize {
		return fmt.Errorf("trace root must be %d bytes, got %d", core.DigestSize, len(p.TraceRoot))
	}

	for i, root := range p.FRI.CommitRoots {
		if len(root) != core.DigestSize {
			return fmt.Errorf("folding root %d must be %d bytes, got %d", i, core.DigestSize, len(root))
		}
	}
	if _, err := core.ExtFromValues(p.FRI.FinalValue); err != nil {
		return fmt.Errorf("final value: %w", err)
	}
	if _, err := core.NewCanonical(p.FRI.PowWitness); err != nil {
		return fmt.Errorf("proof of work witness: %w", err)
	}

	for q, query := range p.FRI.Queries {
		for i, row := range query.Trace {
			if err := row.validate(NumColumns); err != nil {
				return fmt.Errorf("query %d trace row %d: %w", q, i, err)
			}
		}
		for i, row := range query.Layers {
			if err := row.validate(2 * core.ExtensionDegree); err != nil {
				return fmt.Errorf("query %d layer %d: %w", q, i, err)
			}
		}
	}
	return nil
}

func (r *RowOpening) validate(width int) error {
	if len(r.Values) != width {
		return fmt.Errorf("expected %d values, got %d", width, len(r.Values))
	}
	for _, v := range r.Values {
		if v >= core.Modulus {
			return fmt.Errorf("value %d is not a canonical field element", v)
		}
	}
	for i, node := range r.Path {
		if len(node) != core.DigestSize {
			return fmt.Errorf("path node %d must be %d bytes, got %d", i, core.DigestSize, len(node))
		}
	}
	return nil
}

// elements lifts validated values into the field
func (r *RowOpening) elements() []core.Element {
	out := make([]core.Element, len(r.Values))
	for i, v := range r.Values {
		out[i] = core.New(uint64(v))
	}
	return out
}

// digests converts a validated path
func (r *RowOpening) digests() []core.Digest {
	out := make([]core.Digest, len(r.Path))
	for i, node := range r.Path {
		copy(out[i][:], node)
	}
	return out
}

func newRowOpening(row []core.Element, path []core.Digest) RowOpening {
	values := make([]uint32, len(row))
	for i, e := range row {
		values[i] = e.Value()
	}
	nodes := make([][]byte, len(path))
	for i, d := range path {
		nodes[i] = append([]byte(nil), d[:]...)
	}
	return RowOpening{Values: values, Path: nodes}
}
