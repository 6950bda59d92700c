// Copyright (c) 2014-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chaincfg

import (
	"github.com/kaspanet/btcconsensus/domain/consensus/model/externalapi"
	"github.com/kaspanet/btcconsensus/domain/consensus/utils/constants"
)

// genesisCoinbaseTx is the coinbase transaction for the genesis blocks of
// every default network.
var genesisCoinbaseTx = &externalapi.DomainTransaction{
	Version: 1,
	Inputs: []*externalapi.DomainTransactionInput{
		{
			PreviousOutpoint: externalapi.DomainOutpoint{
				TransactionID: externalapi.DomainTransactionID{},
				Index:         externalapi.NullOutpointIndex,
			},
			SignatureScript: []byte{
				0x04, 0xff, 0xff, 0x00, 0x1d, 0x01, 0x04, 0x45, /* |.......E| */
				0x54, 0x68, 0x65, 0x20, 0x54, 0x69, 0x6d, 0x65, /* |The Time| */
				0x73, 0x20, 0x30, 0x33, 0x2f, 0x4a, 0x61, 0x6e, /* |s 03/Jan| */
				0x2f, 0x32, 0x30, 0x30, 0x39, 0x20, 0x43, 0x68, /* |/2009 Ch| */
				0x61, 0x6e, 0x63, 0x65, 0x6c, 0x6c, 0x6f, 0x72, /* |ancellor| */
				0x20, 0x6f, 0x6e, 0x20, 0x62, 0x72, 0x69, 0x6e, /* | on brin| */
				0x6b, 0x20, 0x6f, 0x66, 0x20, 0x73, 0x65, 0x63, /* |k of sec| */
				0x6f, 0x6e, 0x64, 0x20, 0x62, 0x61, 0x69, 0x6c, /* |ond bail| */
				0x6f, 0x75, 0x74, 0x20, 0x66, 0x6f, 0x72, 0x20, /* |out for | */
				0x62, 0x61, 0x6e, 0x6b, 0x73, /* |banks| */
			},
			Sequence: constants.MaxTxInSequenceNum,
		},
	},
	Outputs: []*externalapi.DomainTransactionOutput{
		{
			Value: 0x12a05f200,
			ScriptPublicKey: []byte{
				0x41, 0x04, 0x67, 0x8a, 0xfd, 0xb0, 0xfe, 0x55, /* |A.g....U| */
				0x48, 0x27, 0x19, 0x67, 0xf1, 0xa6, 0x71, 0x30, /* |H'.g..q0| */
				0xb7, 0x10, 0x5c, 0xd6, 0xa8, 0x28, 0xe0, 0x39, /* |..\..(.9| */
				0x09, 0xa6, 0x79, 0x62, 0xe0, 0xea, 0x1f, 0x61, /* |..yb...a| */
				0xde, 0xb6, 0x49, 0xf6, 0xbc, 0x3f, 0x4c, 0xef, /* |..I..?L.| */
				0x38, 0xc4, 0xf3, 0x55, 0x04, 0xe5, 0x1e, 0xc1, /* |8..U....| */
				0x12, 0xde, 0x5c, 0x38, 0x4d, 0xf7, 0xba, 0x0b, /* |..\8M...| */
				0x8d, 0x57, 0x8a, 0x4c, 0x70, 0x2b, 0x6b, 0xf1, /* |.W.Lp+k.| */
				0x1d, 0x5f, 0xac, /* |._.| */
			},
		},
	},
	LockTime: 0,
}

// genesisMerkleRoot is the hash of the first transaction in the genesis block
// for every default network.
var genesisMerkleRoot = newHashFromStr("4a5e1e4baab89f3a32518a88c31bc87f618f76673e2cc77ab2127b7afdeda33b")

func newGenesisBlock(timestamp, bits, nonce uint32) *externalapi.DomainBlock {
	return &externalapi.DomainBlock{
		Header: &externalapi.DomainBlockHeader{
			Version:       1,
			PrevBlockHash: externalapi.NewZeroHash(),
			MerkleRoot:    genesisMerkleRoot,
			Timestamp:     timestamp,
			Bits:          bits,
			Nonce:         nonce,
		},
		Transactions: []*externalapi.DomainTransaction{genesisCoinbaseTx},
	}
}

// genesisBlock defines the genesis block of the block chain which serves as the
// public transaction ledger for the main network.
var genesisBlock = newGenesisBlock(0x495fab29, 0x1d00ffff, 0x7c2bac1d) // 2009-01-03 18:15:05 +0000 UTC

var genesisHash = newHashFromStr("000000000019d6689c085ae165831e934ff763ae46a2a6c172b3f1b60a8ce26f")

// testnetGenesisBlock defines the genesis block of the block chain which
// serves as the public transaction ledger for the test network (version 3).
var testnetGenesisBlock = newGenesisBlock(0x4d49e5da, 0x1d00ffff, 0x18aea41a) // 2011-02-02 23:16:42 +0000 UTC

var testnetGenesisHash = newHashFromStr("000000000933ea01ad0ee984209779baaec3ced90fa3f408719526f8d77f4943")

// regtestGenesisBlock defines the genesis block of the block chain which
// serves as the public transaction ledger for the regression test network.
var regtestGenesisBlock = newGenesisBlock(0x4d49e5da, 0x207fffff, 2) // 2011-02-02 23:16:42 +0000 UTC

var regtestGenesisHash = newHashFromStr("0f9188f13cb7b2c71f2a335e3a4fc328bf5beb436012afca590b1a11466e2206")

// simnetGenesisBlock defines the genesis block of the block chain which serves
// as the public transaction ledger for the simulation test network.
var simnetGenesisBlock = newGenesisBlock(0x53860645, 0x207fffff, 2) // 2014-05-28 15:52:37 +0000 UTC

var simnetGenesisHash = newHashFromStr("683e86bd5c6d110d91b94b97137ba6bfe02dbbdb8e3dff722a669b5d69d77af6")
