package externalapi

// DomainBlock represents a block
type DomainBlock struct {
	Header       *DomainBlockHeader
	Transactions []*DomainTransaction
}

// Clone returns a clone of DomainBlock
func (block *DomainBlock) Clone() *DomainBlock {
	transactionClone := make([]*DomainTransaction, len(block.Transactions))
	for i, tx := range block.Transactions {
		transactionClone[i] = tx.Clone()
	}

	return &DomainBlock{
		Header:       block.Header.Clone(),
		Transactions: transactionClone,
	}
}

// If this doesn't compile, it means the type definition has been changed, so it's
// an indication to update Equal and Clone accordingly.
var _ = DomainBlock{&DomainBlockHeader{}, []*DomainTransaction{}}

// Equal returns whether block equals to other
func (block *DomainBlock) Equal(other *DomainBlock) bool {
	if block == nil || other == nil {
		return block == other
	}

	if len(block.Transactions) != len(other.Transactions) {
		return false
	}

	if !block.Header.Equal(other.Header) {
		return false
	}

	for i, tx := range block.Transactions {
		if !tx.Equal(other.Transactions[i]) {
			return false
		}
	}

	return true
}

// DomainBlockHeader represents the fixed 80-byte header of a block
type DomainBlockHeader struct {
	Version       int32
	PrevBlockHash *DomainHash
	MerkleRoot    *DomainHash
	Timestamp     uint32
	Bits          uint32
	Nonce         uint32
}

// Clone returns a clone of DomainBlockHeader
func (header *DomainBlockHeader) Clone() *DomainBlockHeader {
	return &DomainBlockHeader{
		Version:       header.Version,
		PrevBlockHash: header.PrevBlockHash,
		MerkleRoot:    header.MerkleRoot,
		Timestamp:     header.Timestamp,
		Bits:          header.Bits,
		Nonce:         header.Nonce,
	}
}

// If this doesn't compile, it means the type definition has been changed, so it's
// an indication to update Equal and Clone accordingly.
var _ = DomainBlockHeader{0, &DomainHash{}, &DomainHash{}, 0, 0, 0}

// Equal returns whether header equals to other
func (header *DomainBlockHeader) Equal(other *DomainBlockHeader) bool {
	if header == nil || other == nil {
		return header == other
	}

	if header.Version != other.Version {
		return false
	}

	if !header.PrevBlockHash.Equal(other.PrevBlockHash) {
		return false
	}

	if !header.MerkleRoot.Equal(other.MerkleRoot) {
		return false
	}

	if header.Timestamp != other.Timestamp {
		return false
	}

	if header.Bits != other.Bits {
		return false
	}

	return header.Nonce == other.Nonce
}
