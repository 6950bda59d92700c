package serialization

import (
	"bytes"
	"encoding/hex"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/kaspanet/btcconsensus/domain/consensus/model/externalapi"
	"pgregory.net/rapid"
)

// genesisHeaderHex is the header of the main network genesis block
const genesisHeaderHex = "0100000000000000000000000000000000000000000000000000000000000000" +
	"000000003ba3edfd7a7b12b27ac72c3e67768f617fc81bc3888a51323a9fb8aa" +
	"4b1e5e4a29ab5f49ffff001d1dac2b7c"

func TestDeserializeGenesisBlock(t *testing.T) {
	blockHex := genesisHeaderHex + "01" + genesisCoinbaseHex
	blockBytes, err := hex.DecodeString(blockHex)
	if err != nil {
		t.Fatalf("hex.DecodeString: %v", err)
	}

	block, err := BytesToBlock(blockBytes)
	if err != nil {
		t.Fatalf("BytesToBlock: %v", err)
	}

	header := block.Header
	if header.Version != 1 {
		t.Fatalf("TestDeserializeGenesisBlock: Expected version 1, found: %d", header.Version)
	}
	if !header.PrevBlockHash.IsZero() {
		t.Fatalf("TestDeserializeGenesisBlock: Expected a zero previous block hash, found: %s", header.PrevBlockHash)
	}
	expectedMerkleRoot := "4a5e1e4baab89f3a32518a88c31bc87f618f76673e2cc77ab2127b7afdeda33b"
	if header.MerkleRoot.String() != expectedMerkleRoot {
		t.Fatalf("TestDeserializeGenesisBlock: Expected merkle root %s, found: %s", expectedMerkleRoot, header.MerkleRoot)
	}
	if header.Timestamp != 1231006505 {
		t.Fatalf("TestDeserializeGenesisBlock: Expected timestamp 1231006505, found: %d", header.Timestamp)
	}
	if header.Bits != 0x1d00ffff {
		t.Fatalf("TestDeserializeGenesisBlock: Expected bits 0x1d00ffff, found: %x", header.Bits)
	}
	if header.Nonce != 2083236893 {
		t.Fatalf("TestDeserializeGenesisBlock: Expected nonce 2083236893, found: %d", header.Nonce)
	}
	if len(block.Transactions) != 1 {
		t.Fatalf("TestDeserializeGenesisBlock: Expected 1 transaction, found: %d", len(block.Transactions))
	}

	if !bytes.Equal(BlockToBytes(block), blockBytes) {
		t.Fatalf("TestDeserializeGenesisBlock: re-serialization differs from the original bytes")
	}
	if len(HeaderToBytes(header)) != HeaderSize {
		t.Fatalf("TestDeserializeGenesisBlock: Expected a header of %d bytes, found: %d",
			HeaderSize, len(HeaderToBytes(header)))
	}
	if BlockWeight(block) != 4*len(blockBytes) {
		t.Fatalf("TestDeserializeGenesisBlock: Expected weight %d, found: %d", 4*len(blockBytes), BlockWeight(block))
	}
}

func TestDeserializeBlockErrors(t *testing.T) {
	headerBytes, err := hex.DecodeString(genesisHeaderHex)
	if err != nil {
		t.Fatalf("hex.DecodeString: %v", err)
	}

	tests := []struct {
		name string
		data []byte
	}{
		{"short header", headerBytes[:79]},
		{"missing transaction count", headerBytes},
		{"huge transaction count", append(append([]byte{}, headerBytes...), 0xfe, 0xff, 0xff, 0xff, 0x00)},
		{"missing transactions", append(append([]byte{}, headerBytes...), 0x02)},
	}

	for _, test := range tests {
		_, err := BytesToBlock(test.data)
		if err == nil {
			t.Fatalf("TestDeserializeBlockErrors (%s): expected an error", test.name)
		}
		if !IsMalformedError(err) {
			t.Fatalf("TestDeserializeBlockErrors (%s): expected a malformed error, got: %v", test.name, err)
		}
	}
}

func TestBlockRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		prevHash := rapid.SliceOfN(rapid.Byte(), 32, 32).Draw(t, "prevHash")
		merkleRoot := rapid.SliceOfN(rapid.Byte(), 32, 32).Draw(t, "merkleRoot")
		prevDomainHash, _ := externalapi.NewDomainHashFromByteSlice(prevHash)
		merkleDomainHash, _ := externalapi.NewDomainHashFromByteSlice(merkleRoot)

		block := &externalapi.DomainBlock{
			Header: &externalapi.DomainBlockHeader{
				Version:       rapid.Int32().Draw(t, "version"),
				PrevBlockHash: prevDomainHash,
				MerkleRoot:    merkleDomainHash,
				Timestamp:     rapid.Uint32().Draw(t, "timestamp"),
				Bits:          rapid.Uint32().Draw(t, "bits"),
				Nonce:         rapid.Uint32().Draw(t, "nonce"),
			},
			Transactions: rapid.SliceOfN(transactionGenerator(), 0, 4).Draw(t, "transactions"),
		}

		serialized := BlockToBytes(block)
		if len(serialized) != BlockSerializeSize(block, true) {
			t.Fatalf("Expected serialized size %d, found: %d", BlockSerializeSize(block, true), len(serialized))
		}

		decoded, err := BytesToBlock(serialized)
		if err != nil {
			t.Fatalf("BytesToBlock: %v", err)
		}
		if !decoded.Equal(block) {
			t.Fatalf("round trip mismatch. Want: %s, got: %s", spew.Sdump(block), spew.Sdump(decoded))
		}
	})
}
