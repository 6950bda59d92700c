// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txscript

import (
	"fmt"

	"github.com/pkg/errors"
)

const (
	// MaxDataCarrierSize is the maximum number of bytes allowed in pushed
	// data to be considered a nulldata transaction
	MaxDataCarrierSize = 80
)

// ScriptClass is an enumeration for the list of standard types of script.
type ScriptClass byte

// Classes of script payment known about in the blockchain.
const (
	NonStandardTy         ScriptClass = iota // None of the recognized forms.
	PubKeyTy                                 // Pay pubkey.
	PubKeyHashTy                             // Pay pubkey hash.
	WitnessV0PubKeyHashTy                    // Pay witness pubkey hash.
	ScriptHashTy                             // Pay to script hash.
	WitnessV0ScriptHashTy                    // Pay to witness script hash.
	MultiSigTy                               // Multi signature.
	NullDataTy                               // Empty data-only (provably prunable).
	WitnessUnknownTy                         // Witness program of an unknown version.
)

// scriptClassToName houses the human-readable strings which describe each
// script class.
var scriptClassToName = []string{
	NonStandardTy:         "nonstandard",
	PubKeyTy:              "pubkey",
	PubKeyHashTy:          "pubkeyhash",
	WitnessV0PubKeyHashTy: "witness_v0_keyhash",
	ScriptHashTy:          "scripthash",
	WitnessV0ScriptHashTy: "witness_v0_scripthash",
	MultiSigTy:            "multisig",
	NullDataTy:            "nulldata",
	WitnessUnknownTy:      "witness_unknown",
}

// String implements the Stringer interface by returning the name of
// the enum script class. If the enum is invalid then "Invalid" will be
// returned.
func (t ScriptClass) String() string {
	if int(t) >= len(scriptClassToName) {
		return "Invalid"
	}
	return scriptClassToName[t]
}

// isPubkey returns true if the script passed is a pay-to-pubkey transaction,
// false otherwise.
func isPubkey(pops []parsedOpcode) bool {
	// Valid pubkeys are either 33 or 65 bytes.
	return len(pops) == 2 &&
		(len(pops[0].data) == 33 || len(pops[0].data) == 65) &&
		pops[1].opcode.value == OpCheckSig
}

// isPubkeyHash returns true if the script passed is a pay-to-pubkey-hash
// transaction, false otherwise.
func isPubkeyHash(pops []parsedOpcode) bool {
	return len(pops) == 5 &&
		pops[0].opcode.value == OpDup &&
		pops[1].opcode.value == OpHash160 &&
		pops[2].opcode.value == OpData20 &&
		pops[3].opcode.value == OpEqualVerify &&
		pops[4].opcode.value == OpCheckSig
}

// isMultiSig returns true if the passed script is a multisig transaction, false
// otherwise.
func isMultiSig(pops []parsedOpcode) bool {
	// The absolute minimum is 1 pubkey:
	// OP_0/OP_1-16 <pubkey> OP_1 OP_CHECKMULTISIG
	l := len(pops)
	if l < 4 {
		return false
	}
	if !isSmallInt(pops[0].opcode.value) {
		return false
	}
	if !isSmallInt(pops[l-2].opcode.value) {
		return false
	}
	if pops[l-1].opcode.value != OpCheckMultiSig {
		return false
	}

	// Verify the number of pubkeys specified matches the actual number
	// of pubkeys provided.
	if l-2-1 != asSmallInt(pops[l-2].opcode.value) {
		return false
	}

	for _, pop := range pops[1 : l-2] {
		// Valid pubkeys are either 33 or 65 bytes.
		if len(pop.data) != 33 && len(pop.data) != 65 {
			return false
		}
	}
	return true
}

// isNullData returns true if the passed script is a null data transaction,
// false otherwise.
func isNullData(pops []parsedOpcode) bool {
	// A nulldata transaction is either a single OP_RETURN or an
	// OP_RETURN SMALLDATA (where SMALLDATA is a data push up to
	// MaxDataCarrierSize bytes).
	l := len(pops)
	if l == 1 && pops[0].opcode.value == OpReturn {
		return true
	}

	return l == 2 &&
		pops[0].opcode.value == OpReturn &&
		(isSmallInt(pops[1].opcode.value) || pops[1].opcode.value <=
			OpPushData4) &&
		len(pops[1].data) <= MaxDataCarrierSize
}

// GetScriptClass returns the class of the script passed.
//
// NonStandardTy will be returned when the script does not parse.
func GetScriptClass(script []byte) ScriptClass {
	switch {
	case IsPayToScriptHash(script):
		return ScriptHashTy
	case IsPayToWitnessPubKeyHash(script):
		return WitnessV0PubKeyHashTy
	case IsPayToWitnessScriptHash(script):
		return WitnessV0ScriptHashTy
	case IsWitnessProgram(script) && script[0] != Op0:
		return WitnessUnknownTy
	}

	pops, err := parseScript(script)
	if err != nil {
		return NonStandardTy
	}

	switch {
	case isPubkey(pops):
		return PubKeyTy
	case isPubkeyHash(pops):
		return PubKeyHashTy
	case isMultiSig(pops):
		return MultiSigTy
	case isNullData(pops):
		return NullDataTy
	}
	return NonStandardTy
}

// payToPubKeyHashScript creates a new script to pay a transaction
// output to a 20-byte pubkey hash. It is expected that the input is a valid
// hash.
func payToPubKeyHashScript(pubKeyHash []byte) ([]byte, error) {
	return NewScriptBuilder().AddOp(OpDup).AddOp(OpHash160).
		AddData(pubKeyHash).AddOp(OpEqualVerify).AddOp(OpCheckSig).
		Script()
}

// PayToPubKeyHashScript creates a new script to pay a transaction output to
// the passed 20-byte public key hash.
func PayToPubKeyHashScript(pubKeyHash []byte) ([]byte, error) {
	if len(pubKeyHash) != 20 {
		return nil, errors.Errorf("public key hash must be 20 bytes, got %d",
			len(pubKeyHash))
	}
	return payToPubKeyHashScript(pubKeyHash)
}

// PayToPubKeyScript creates a new script to pay a transaction output to the
// passed serialized public key.
func PayToPubKeyScript(serializedPubKey []byte) ([]byte, error) {
	return NewScriptBuilder().AddData(serializedPubKey).
		AddOp(OpCheckSig).Script()
}

// PayToScriptHashScript creates a new script to pay a transaction output to a
// script hash. It is expected that the input is a valid hash.
func PayToScriptHashScript(scriptHash []byte) ([]byte, error) {
	if len(scriptHash) != 20 {
		return nil, errors.Errorf("script hash must be 20 bytes, got %d",
			len(scriptHash))
	}
	return NewScriptBuilder().AddOp(OpHash160).AddData(scriptHash).
		AddOp(OpEqual).Script()
}

// PayToWitnessPubKeyHashScript creates a new version 0 witness program paying
// to the passed 20-byte public key hash.
func PayToWitnessPubKeyHashScript(pubKeyHash []byte) ([]byte, error) {
	if len(pubKeyHash) != payToWitnessPubKeyHashDataSize {
		return nil, errors.Errorf("witness public key hash must be %d "+
			"bytes, got %d", payToWitnessPubKeyHashDataSize, len(pubKeyHash))
	}
	return NewScriptBuilder().AddOp(Op0).AddData(pubKeyHash).Script()
}

// PayToWitnessScriptHashScript creates a new version 0 witness program paying
// to the passed 32-byte sha256 of a witness script.
func PayToWitnessScriptHashScript(scriptHash []byte) ([]byte, error) {
	if len(scriptHash) != payToWitnessScriptHashDataSize {
		return nil, errors.Errorf("witness script hash must be %d "+
			"bytes, got %d", payToWitnessScriptHashDataSize, len(scriptHash))
	}
	return NewScriptBuilder().AddOp(Op0).AddData(scriptHash).Script()
}

// NullDataScript creates a provably-prunable script containing OP_RETURN
// followed by the passed data. An Error with the error code ErrTooMuchNullData
// will be returned if the length of the passed data exceeds MaxDataCarrierSize.
func NullDataScript(data []byte) ([]byte, error) {
	if len(data) > MaxDataCarrierSize {
		str := fmt.Sprintf("data size %d is larger than max "+
			"allowed size %d", len(data), MaxDataCarrierSize)
		return nil, scriptError(ErrTooMuchNullData, str)
	}

	return NewScriptBuilder().AddOp(OpReturn).AddData(data).Script()
}

// MultiSigScript returns a valid script for a multisignature redemption where
// nrequired of the keys in pubkeys are required to have signed the transaction
// for success. An Error with the error code ErrTooManyRequiredSigs will be
// returned if nrequired is larger than the number of keys provided.
func MultiSigScript(pubKeys [][]byte, nrequired int) ([]byte, error) {
	if len(pubKeys) < nrequired {
		str := fmt.Sprintf("unable to generate multisig script with "+
			"%d required signatures when there are only %d public "+
			"keys available", nrequired, len(pubKeys))
		return nil, scriptError(ErrTooManyRequiredSigs, str)
	}

	builder := NewScriptBuilder().AddInt64(int64(nrequired))
	for _, key := range pubKeys {
		builder.AddData(key)
	}
	builder.AddInt64(int64(len(pubKeys)))
	builder.AddOp(OpCheckMultiSig)

	return builder.Script()
}
