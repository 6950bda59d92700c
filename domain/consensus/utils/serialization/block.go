package serialization

import (
	"bytes"
	"io"

	"github.com/kaspanet/btcconsensus/domain/consensus/model/externalapi"
	"github.com/kaspanet/btcconsensus/domain/consensus/ruleerrors"
	"github.com/kaspanet/btcconsensus/domain/consensus/utils/constants"
	"github.com/pkg/errors"
)

// HeaderSize is the number of bytes of a serialized block header:
// version 4 + previous block hash 32 + merkle root 32 + timestamp 4 +
// bits 4 + nonce 4.
const HeaderSize = 80

// minTxSize is the smallest a serialized transaction can be: version 4,
// two one-byte counts, one minimal input, one minimal output, lock time 4.
const minTxSize = 10 + minTxInSize + minTxOutSize

// maxTxPerBlock is the largest transaction count a decodable block may
// declare.
const maxTxPerBlock = constants.MaxBlockSerializedSize/minTxSize + 1

// SerializeHeader writes the 80-byte header encoding to w
func SerializeHeader(w io.Writer, header *externalapi.DomainBlockHeader) error {
	return WriteElements(w, header.Version, header.PrevBlockHash, header.MerkleRoot,
		header.Timestamp, header.Bits, header.Nonce)
}

// DeserializeHeader reads an 80-byte header from r
func DeserializeHeader(r io.Reader) (*externalapi.DomainBlockHeader, error) {
	header := &externalapi.DomainBlockHeader{}
	err := ReadElements(r, &header.Version, &header.PrevBlockHash, &header.MerkleRoot,
		&header.Timestamp, &header.Bits, &header.Nonce)
	if err != nil {
		return nil, malformed(err, "failed to deserialize block header")
	}
	return header, nil
}

// HeaderToBytes returns the 80-byte serialization of header
func HeaderToBytes(header *externalapi.DomainBlockHeader) []byte {
	buf := bytes.NewBuffer(make([]byte, 0, HeaderSize))
	err := SerializeHeader(buf, header)
	if err != nil {
		panic(errors.Wrap(err, "this should never happen. Serializing to a bytes.Buffer should never fail"))
	}
	return buf.Bytes()
}

// SerializeBlock writes block to w: its header, a varint transaction count
// and the transactions. Witness data is included when withWitness is set.
func SerializeBlock(w io.Writer, block *externalapi.DomainBlock, withWitness bool) error {
	err := SerializeHeader(w, block.Header)
	if err != nil {
		return err
	}

	err = WriteVarInt(w, uint64(len(block.Transactions)))
	if err != nil {
		return err
	}

	for _, tx := range block.Transactions {
		err = SerializeTransaction(w, tx, withWitness)
		if err != nil {
			return err
		}
	}
	return nil
}

// DeserializeBlock reads a block from r. Every failure is a
// ruleerrors.ErrMalformedEncoding.
func DeserializeBlock(r io.Reader) (*externalapi.DomainBlock, error) {
	header, err := DeserializeHeader(r)
	if err != nil {
		return nil, err
	}

	txCount, err := ReadVarInt(r)
	if err != nil {
		return nil, malformed(err, "failed to read block transaction count")
	}

	// Prevent more transactions than could possibly fit into a block.
	// It would be possible to cause memory exhaustion and panics without
	// a sane upper bound on this count.
	if txCount > maxTxPerBlock {
		return nil, errors.Wrapf(ruleerrors.ErrMalformedEncoding,
			"too many transactions to fit into a block [count %d, max %d]", txCount, maxTxPerBlock)
	}

	block := &externalapi.DomainBlock{
		Header:       header,
		Transactions: make([]*externalapi.DomainTransaction, 0, minInt(int(txCount), 1024)),
	}
	for i := uint64(0); i < txCount; i++ {
		tx, err := DeserializeTransaction(r)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to deserialize transaction %d of block", i)
		}
		block.Transactions = append(block.Transactions, tx)
	}

	return block, nil
}

// BlockToBytes returns the serialization of block, witness data included
func BlockToBytes(block *externalapi.DomainBlock) []byte {
	buf := bytes.NewBuffer(make([]byte, 0, BlockSerializeSize(block, true)))
	err := SerializeBlock(buf, block, true)
	if err != nil {
		panic(errors.Wrap(err, "this should never happen. Serializing to a bytes.Buffer should never fail"))
	}
	return buf.Bytes()
}

// BytesToBlock deserializes a block that must span all of data
func BytesToBlock(data []byte) (*externalapi.DomainBlock, error) {
	r := bytes.NewReader(data)
	block, err := DeserializeBlock(r)
	if err != nil {
		return nil, err
	}
	if r.Len() != 0 {
		return nil, errors.Wrapf(ruleerrors.ErrMalformedEncoding,
			"%d trailing bytes after block", r.Len())
	}
	return block, nil
}

// BlockSerializeSize returns the number of bytes it would take to serialize
// block
func BlockSerializeSize(block *externalapi.DomainBlock, withWitness bool) int {
	n := HeaderSize + VarIntSerializeSize(uint64(len(block.Transactions)))
	for _, tx := range block.Transactions {
		n += TransactionSerializeSize(tx, withWitness)
	}
	return n
}

// BlockWeight returns the BIP141 weight of block
func BlockWeight(block *externalapi.DomainBlock) int {
	baseSize := BlockSerializeSize(block, false)
	totalSize := BlockSerializeSize(block, true)
	return baseSize*(constants.WitnessScaleFactor-1) + totalSize
}
