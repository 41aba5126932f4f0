package core

import (
	"encoding/binary"
	"fmt"
	"math/bits"

	"golang.org/x/crypto/sha3"
)

// DigestSize is the byte length of a Keccak-256 Merkle node.
const DigestSize = 32

// Digest is a Merkle tree node.
type Digest [DigestSize]byte

// DigestFromBytes copies a node out of a byte slice of exactly DigestSize.
func DigestFromBytes(b []byte) (Digest, error) {
	var d Digest
	if len(b) != DigestSize {
		return d, fmt.Errorf("digest must be %d bytes, got %d", DigestSize, len(b))
	}
	copy(d[:], b)
	return d, nil
}

// MerkleTree commits to a matrix of field elements, one leaf per row. The
// row count must be a power of two.
type MerkleTree struct {
	rows   [][]Element
	levels [][]Digest
}

// HashRow hashes a leaf: Keccak-256 over the little-endian u32 encoding of
// each element.
func HashRow(row []Element) Digest {
	h := sha3.NewLegacyKeccak256()
	var buf [4]byte
	for _, e := range row {
		binary.LittleEndian.PutUint32(buf[:], e.Value())
		h.Write(buf[:])
	}
	var d Digest
	h.Sum(d[:0])
	return d
}

// Compress combines two child nodes into their parent.
func Compress(left, right Digest) Digest {
	h := sha3.NewLegacyKeccak256()
	h.Write(left[:])
	h.Write(right[:])
	var d Digest
	h.Sum(d[:0])
	return d
}

// NewMerkleTree creates a Merkle tree over the given rows.
func NewMerkleTree(rows [][]Element) (*MerkleTree, error) {
	n := len(rows)
	if n == 0 {
		return nil, fmt.Errorf("cannot create Merkle tree with empty data")
	}
	if n&(n-1) != 0 {
		return nil, fmt.Errorf("Merkle tree needs a power-of-two number of leaves, got %d", n)
	}

	leaves := make([]Digest, n)
	for i, row := range rows {
		leaves[i] = HashRow(row)
	}

	// Build tree levels
	levels := [][]Digest{leaves}
	current := leaves
	for len(current) > 1 {
		next := make([]Digest, len(current)/2)
		for i := range next {
			next[i] = Compress(current[2*i], current[2*i+1])
		}
		levels = append(levels, next)
		current = next
	}

	return &MerkleTree{rows: rows, levels: levels}, nil
}

// Root returns the Merkle root.
func (mt *MerkleTree) Root() Digest {
	return mt.levels[len(mt.levels)-1][0]
}

// Height returns the number of leaves.
func (mt *MerkleTree) Height() int {
	return len(mt.rows)
}

// Row returns the committed row at index.
func (mt *MerkleTree) Row(index int) []Element {
	return mt.rows[index]
}

// Open returns the committed row and its authentication path, siblings
// ordered from the leaf level upwards.
func (mt *MerkleTree) Open(index int) ([]Element, []Digest, error) {
	if index < 0 || index >= len(mt.rows) {
		return nil, nil, fmt.Errorf("index %d out of range [0, %d)", index, len(mt.rows))
	}

	path := make([]Digest, 0, len(mt.levels)-1)
	current := index
	for level := 0; level < len(mt.levels)-1; level++ {
		path = append(path, mt.levels[level][current^1])
		current >>= 1
	}
	return mt.rows[index], path, nil
}

// VerifyMerklePath checks that row sits at index in a tree of numLeaves
// leaves with the given root.
func VerifyMerklePath(root Digest, index, numLeaves int, row []Element, path []Digest) error {
	if numLeaves <= 0 || numLeaves&(numLeaves-1) != 0 {
		return fmt.Errorf("invalid leaf count %d", numLeaves)
	}
	if index < 0 || index >= numLeaves {
		return fmt.Errorf("index %d out of range [0, %d)", index, numLeaves)
	}
	if depth := bits.TrailingZeros(uint(numLeaves)); len(path) != depth {
		return fmt.Errorf("authentication path has %d nodes, want %d", len(path), depth)
	}

	node := HashRow(row)
	current := index
	for _, sibling := range path {
		if current&1 == 0 {
			node = Compress(node, sibling)
		} else {
			node = Compress(sibling, node)
		}
		current >>= 1
	}

	if node != root {
		return fmt.Errorf("Merkle root mismatch at index %d", index)
	}
	return nil
}
