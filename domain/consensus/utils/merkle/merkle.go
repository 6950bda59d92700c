// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package merkle

import (
	"math"

	"github.com/kaspanet/btcconsensus/domain/consensus/model/externalapi"
	"github.com/kaspanet/btcconsensus/domain/consensus/utils/consensushashing"
	"github.com/kaspanet/btcconsensus/domain/consensus/utils/hashes"
)

// nextPowerOfTwo returns the next highest power of two from a given number if
// it is not already a power of two. This is a helper function used during the
// calculation of a merkle tree.
func nextPowerOfTwo(n int) int {
	// Return the number if it's already a power of 2.
	if n&(n-1) == 0 {
		return n
	}

	// Figure out and return the next power of two.
	exponent := uint(math.Log2(float64(n))) + 1
	return 1 << exponent // 2^exponent
}

// hashMerkleBranches takes two hashes, treated as the left and right tree
// nodes, and returns the hash of their concatenation. This is a helper
// function used to aid in the generation of a merkle tree.
func hashMerkleBranches(left, right *externalapi.DomainHash) *externalapi.DomainHash {
	// Concatenate the left and right nodes.
	w := hashes.NewHashWriter()
	w.InfallibleWrite(left.ByteSlice())
	w.InfallibleWrite(right.ByteSlice())
	return w.Finalize()
}

// buildMerkleTreeStore creates a merkle tree from a slice of leaf hashes,
// stores it using a linear array, and returns the root. A linear array was
// chosen as opposed to an actual tree structure since it uses about half as
// much memory.
//
// The following describes a merkle tree and how it is stored in a linear
// array.
//
// A merkle tree is a tree in which every non-leaf node is the hash of its
// children nodes. A diagram depicting how this works for bitcoin
// transactions where h(x) is a double sha256 follows:
//
//	         root = h1234 = h(h12 + h34)
//	        /                           \
//	  h12 = h(h1 + h2)            h34 = h(h3 + h4)
//	   /            \              /            \
//	h1 = h(tx1)  h2 = h(tx2)    h3 = h(tx3)  h4 = h(tx4)
//
// The above stored as a linear array is as follows:
//
//	[h1 h2 h3 h4 h12 h34 root]
//
// As the above shows, the merkle root is always the last element in the
// array.
//
// The number of inputs is not always a power of two which results in a
// balanced tree structure as above. In that case, parent nodes with no
// children are also zero and parent nodes with only a single left node
// are calculated by concatenating the left node with itself before hashing.
func buildMerkleTreeStore(leaves []*externalapi.DomainHash) []*externalapi.DomainHash {
	// Calculate how many entries are required to hold the binary merkle
	// tree as a linear array and create an array of that size.
	nextPoT := nextPowerOfTwo(len(leaves))
	arraySize := nextPoT*2 - 1
	merkles := make([]*externalapi.DomainHash, arraySize)

	copy(merkles, leaves)

	// Start the array offset after the last transaction and adjusted to the
	// next power of two.
	offset := nextPoT
	for i := 0; i < arraySize-1; i += 2 {
		switch {
		// When there is no left child node, the parent is nil too.
		case merkles[i] == nil:
			merkles[offset] = nil

		// When there is no right child, the parent is generated by
		// hashing the concatenation of the left child with itself.
		case merkles[i+1] == nil:
			merkles[offset] = hashMerkleBranches(merkles[i], merkles[i])

		// The normal case sets the parent node to the double sha256
		// of the concatentation of the left and right children.
		default:
			merkles[offset] = hashMerkleBranches(merkles[i], merkles[i+1])
		}
		offset++
	}

	return merkles
}

// CalculateMerkleRoot returns the root of the merkle tree whose leaves are the
// IDs of the given transactions. It returns the zero hash for no transactions.
func CalculateMerkleRoot(transactions []*externalapi.DomainTransaction) *externalapi.DomainHash {
	if len(transactions) == 0 {
		return externalapi.NewZeroHash()
	}
	leaves := make([]*externalapi.DomainHash, len(transactions))
	for i, tx := range transactions {
		leaves[i] = (*externalapi.DomainHash)(consensushashing.TransactionID(tx))
	}
	merkles := buildMerkleTreeStore(leaves)
	return merkles[len(merkles)-1]
}

// CalculateWitnessMerkleRoot returns the root of the merkle tree whose leaves
// are the witness hashes of the given transactions. The coinbase, which is
// the first transaction, contributes the zero hash.
func CalculateWitnessMerkleRoot(transactions []*externalapi.DomainTransaction) *externalapi.DomainHash {
	if len(transactions) == 0 {
		return externalapi.NewZeroHash()
	}
	leaves := make([]*externalapi.DomainHash, len(transactions))
	leaves[0] = externalapi.NewZeroHash()
	for i, tx := range transactions[1:] {
		leaves[i+1] = consensushashing.TransactionHash(tx)
	}
	merkles := buildMerkleTreeStore(leaves)
	return merkles[len(merkles)-1]
}
