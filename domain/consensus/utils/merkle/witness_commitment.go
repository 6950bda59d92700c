// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package merkle

import (
	"bytes"

	"github.com/kaspanet/btcconsensus/domain/consensus/model/externalapi"
	"github.com/kaspanet/btcconsensus/domain/consensus/utils/hashes"
)

const (
	// CoinbaseWitnessDataLen is the required length of the only element within
	// the coinbase's witness data if the coinbase transaction contains a
	// witness commitment.
	CoinbaseWitnessDataLen = 32

	// CoinbaseWitnessPkScriptLength is the length of the public key script
	// containing an OP_RETURN, the WitnessMagicBytes, and the witness
	// commitment itself. In order to be a valid candidate for the output
	// containing the witness commitment
	CoinbaseWitnessPkScriptLength = 38
)

// WitnessMagicBytes is the prefix marker within the public key script
// of a coinbase output to indicate that this output holds the witness
// commitment for a block: OP_RETURN, a 36-byte push, and the 4-byte tag.
var WitnessMagicBytes = []byte{0x6a, 0x24, 0xaa, 0x21, 0xa9, 0xed}

// ExtractWitnessCommitment attempts to locate, and return the witness
// commitment for a block. The witness commitment is of the form:
// SHA256(witness root || witness nonce). The function additionally returns a
// boolean indicating if the witness root was located within any of the txOut's
// in the passed transaction. The witness commitment is stored as the data push
// for an OP_RETURN with special magic bytes to aide in location. When several
// outputs match, the last one counts.
func ExtractWitnessCommitment(coinbase *externalapi.DomainTransaction) ([]byte, bool) {
	// The witness commitment *must* be located within one of the coinbase
	// transaction's outputs.
	for i := len(coinbase.Outputs) - 1; i >= 0; i-- {
		pkScript := coinbase.Outputs[i].ScriptPublicKey
		if len(pkScript) >= CoinbaseWitnessPkScriptLength &&
			bytes.HasPrefix(pkScript, WitnessMagicBytes) {

			start := len(WitnessMagicBytes)
			end := CoinbaseWitnessPkScriptLength
			return pkScript[start:end], true
		}
	}

	return nil, false
}

// CalculateWitnessCommitment returns the commitment to witnessRoot under the
// given nonce: the double SHA-256 of their concatenation
func CalculateWitnessCommitment(witnessRoot *externalapi.DomainHash, witnessNonce []byte) *externalapi.DomainHash {
	w := hashes.NewHashWriter()
	w.InfallibleWrite(witnessRoot.ByteSlice())
	w.InfallibleWrite(witnessNonce)
	return w.Finalize()
}

// WitnessCommitmentScript returns the coinbase output script that commits to
// the witness data of transactions under witnessNonce
func WitnessCommitmentScript(transactions []*externalapi.DomainTransaction, witnessNonce []byte) []byte {
	commitment := CalculateWitnessCommitment(CalculateWitnessMerkleRoot(transactions), witnessNonce)
	script := make([]byte, 0, CoinbaseWitnessPkScriptLength)
	script = append(script, WitnessMagicBytes...)
	return append(script, commitment.ByteSlice()...)
}
