package protocols

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// ErrProofDecode is returned for proof bytes that are not a well-formed
// MachineProof.
var ErrProofDecode = errors.New("proof decode error")

var (
	proofEncMode cbor.EncMode
	proofDecMode cbor.DecMode
)

func init() {
	encOpts := cbor.CoreDetEncOptions()
	encOpts.NilContainers = cbor.NilContainerAsEmpty

	var err error
	proofEncMode, err = encOpts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("cbor encoder options: %v", err))
	}

	// false, true, null and undefined would otherwise decode into a zero
	// value, giving one proof several encodings.
	simple, err := cbor.NewSimpleValueRegistryFromDefaults(
		cbor.WithRejectedSimpleValue(cbor.SimpleValue(20)),
		cbor.WithRejectedSimpleValue(cbor.SimpleValue(21)),
		cbor.WithRejectedSimpleValue(cbor.SimpleValue(22)),
		cbor.WithRejectedSimpleValue(cbor.SimpleValue(23)),
	)
	if err != nil {
		panic(fmt.Sprintf("cbor simple values: %v", err))
	}

	proofDecMode, err = cbor.DecOptions{
		DupMapKey:         cbor.DupMapKeyEnforcedAPF,
		IndefLength:       cbor.IndefLengthForbidden,
		TagsMd:            cbor.TagsForbidden,
		ExtraReturnErrors: cbor.ExtraDecErrorUnknownField,
		SimpleValues:      simple,
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("cbor decoder options: %v", err))
	}
}

// EncodeProof serializes a proof in deterministic CBOR
func EncodeProof(p *MachineProof) ([]byte, error) {
	if p == nil {
		return nil, fmt.Errorf("proof cannot be nil")
	}
	return proofEncMode.Marshal(p)
}

// DecodeProof parses and shape-checks proof bytes. Every failure wraps
// ErrProofDecode.
func DecodeProof(b []byte) (*MachineProof, error) {
	if len(b) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrProofDecode)
	}
	var p MachineProof
	if err := proofDecMode.Unmarshal(b, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProofDecode, err)
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProofDecode, err)
	}
	return &p, nil
}
