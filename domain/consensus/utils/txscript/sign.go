// Copyright (c) 2013-2015 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txscript

import (
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcutil"
	"github.com/kaspanet/btcconsensus/domain/consensus/model/externalapi"
	"github.com/kaspanet/btcconsensus/domain/consensus/utils/consensushashing"
	"github.com/pkg/errors"
)

// RawTxInSignature returns the serialized ECDSA signature for the input idx of
// the given transaction, with hashType appended to it. subScript is the
// script being satisfied: the previous output's public key script, or the
// redeem script for pay-to-script-hash.
func RawTxInSignature(tx *externalapi.DomainTransaction, idx int, subScript []byte,
	hashType consensushashing.SigHashType, key *btcec.PrivateKey) ([]byte, error) {

	pops, err := parseScript(subScript)
	if err != nil {
		return nil, errors.Wrap(err, "cannot parse output script")
	}
	script, err := unparseScript(removeOpcode(pops, OpCodeSeparator))
	if err != nil {
		return nil, err
	}

	hash, err := consensushashing.CalcSignatureHash(script, hashType, tx, idx)
	if err != nil {
		return nil, err
	}
	signature := ecdsa.Sign(key, hash.ByteSlice())

	return append(signature.Serialize(), byte(hashType)), nil
}

// SignatureScript creates an input signature script for tx to spend coins sent
// from a previous output to the owner of privKey. tx must include all
// transaction inputs and outputs, however txin scripts are allowed to be filled
// or empty. The returned script is calculated to be used as the idx'th txin
// sigscript for tx. subscript is the PkScript of the previous output being used
// as the idx'th input. privKey is serialized in either a compressed or
// uncompressed format based on compress. This format must match the same format
// used to generate the payment address, or the script validation will fail.
func SignatureScript(tx *externalapi.DomainTransaction, idx int, subscript []byte,
	hashType consensushashing.SigHashType, privKey *btcec.PrivateKey, compress bool) ([]byte, error) {

	sig, err := RawTxInSignature(tx, idx, subscript, hashType, privKey)
	if err != nil {
		return nil, err
	}

	pk := privKey.PubKey()
	var pkData []byte
	if compress {
		pkData = pk.SerializeCompressed()
	} else {
		pkData = pk.SerializeUncompressed()
	}

	return NewScriptBuilder().AddData(sig).AddData(pkData).Script()
}

// RawTxInWitnessSignature returns the serialized ECDSA signature for the
// witness input idx of the given transaction, with hashType appended to it.
// amount is the value of the output being spent, which the BIP0143 digest
// commits to.
func RawTxInWitnessSignature(tx *externalapi.DomainTransaction, sigHashes *consensushashing.TxSigHashes,
	idx int, amount externalapi.Amount, subScript []byte, hashType consensushashing.SigHashType,
	key *btcec.PrivateKey) ([]byte, error) {

	if sigHashes == nil {
		sigHashes = consensushashing.NewTxSigHashes(tx)
	}
	hash, err := consensushashing.CalcWitnessSignatureHash(subScript, sigHashes, hashType,
		tx, idx, amount)
	if err != nil {
		return nil, err
	}
	signature := ecdsa.Sign(key, hash.ByteSlice())

	return append(signature.Serialize(), byte(hashType)), nil
}

// WitnessSignature creates the witness of a pay-to-witness-pubkey-hash input
// spending amount from the compressed public key of privKey.
func WitnessSignature(tx *externalapi.DomainTransaction, sigHashes *consensushashing.TxSigHashes,
	idx int, amount externalapi.Amount, hashType consensushashing.SigHashType,
	privKey *btcec.PrivateKey) ([][]byte, error) {

	pkData := privKey.PubKey().SerializeCompressed()
	scriptCode, err := payToPubKeyHashScript(btcutil.Hash160(pkData))
	if err != nil {
		return nil, err
	}

	sig, err := RawTxInWitnessSignature(tx, sigHashes, idx, amount, scriptCode, hashType, privKey)
	if err != nil {
		return nil, err
	}

	return [][]byte{sig, pkData}, nil
}
