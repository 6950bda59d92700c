// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txscript

import (
	"crypto/sha256"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcutil"
	"github.com/kaspanet/btcconsensus/domain/consensus/model/externalapi"
	"github.com/kaspanet/btcconsensus/domain/consensus/utils/consensushashing"
	"github.com/kaspanet/btcconsensus/domain/consensus/utils/constants"
	"github.com/kaspanet/btcconsensus/domain/consensus/utils/sigverify"
)

var hashTypes = []consensushashing.SigHashType{
	consensushashing.SigHashAll,
	consensushashing.SigHashNone,
	consensushashing.SigHashSingle,
	consensushashing.SigHashAll | consensushashing.SigHashAnyOneCanPay,
	consensushashing.SigHashNone | consensushashing.SigHashAnyOneCanPay,
	consensushashing.SigHashSingle | consensushashing.SigHashAnyOneCanPay,
}

var verifiers = map[string]sigverify.SignatureVerifier{
	"btcec":     sigverify.NewBtcecVerifier(),
	"secp256k1": sigverify.NewSecp256k1Verifier(),
}

// newTestKey returns a deterministic private key for the passed seed.
func newTestKey(seed byte) *btcec.PrivateKey {
	var keyBytes [32]byte
	keyBytes[0] = 0x42
	keyBytes[31] = seed
	privKey, _ := btcec.PrivKeyFromBytes(keyBytes[:])
	return privKey
}

// newSpendingTx returns a version 2 transaction with numInputs inputs that
// spend arbitrary outpoints and two outputs.
func newSpendingTx(numInputs int) *externalapi.DomainTransaction {
	tx := &externalapi.DomainTransaction{Version: 2}
	for i := 0; i < numInputs; i++ {
		var txID [externalapi.DomainHashSize]byte
		txID[0] = byte(i + 1)
		tx.Inputs = append(tx.Inputs, &externalapi.DomainTransactionInput{
			PreviousOutpoint: *externalapi.NewDomainOutpoint(
				externalapi.NewDomainTransactionIDFromByteArray(&txID), uint32(i)),
			Sequence: constants.MaxTxInSequenceNum,
		})
	}
	tx.Outputs = []*externalapi.DomainTransactionOutput{
		{Value: 1000, ScriptPublicKey: []byte{OpTrue}},
		{Value: 2000, ScriptPublicKey: []byte{OpTrue}},
	}
	return tx
}

func checkScripts(tx *externalapi.DomainTransaction, idx int, scriptPubKey []byte,
	flags ScriptFlags, amount externalapi.Amount) error {

	for _, verifier := range verifiers {
		err := VerifyScript(scriptPubKey, tx, idx, flags, verifier, nil, amount)
		if err != nil {
			return err
		}
	}
	return nil
}

func TestSignP2PKH(t *testing.T) {
	t.Parallel()

	for _, compress := range []bool{true, false} {
		for _, hashType := range hashTypes {
			privKey := newTestKey(1)
			pubKey := privKey.PubKey().SerializeUncompressed()
			if compress {
				pubKey = privKey.PubKey().SerializeCompressed()
			}
			scriptPubKey, err := PayToPubKeyHashScript(btcutil.Hash160(pubKey))
			if err != nil {
				t.Fatalf("TestSignP2PKH: PayToPubKeyHashScript: %s", err)
			}

			tx := newSpendingTx(2)
			for i := range tx.Inputs {
				sigScript, err := SignatureScript(tx, i, scriptPubKey, hashType, privKey, compress)
				if err != nil {
					t.Fatalf("TestSignP2PKH: SignatureScript: %s", err)
				}
				tx.Inputs[i].SignatureScript = sigScript
			}
			for i := range tx.Inputs {
				err := checkScripts(tx, i, scriptPubKey, StandardVerifyFlags, 0)
				if err != nil {
					t.Fatalf("TestSignP2PKH: input %d with hash type %d "+
						"(compress: %t) failed: %s", i, hashType, compress, err)
				}
			}
		}
	}
}

func TestSignP2PK(t *testing.T) {
	t.Parallel()

	privKey := newTestKey(2)
	scriptPubKey, err := PayToPubKeyScript(privKey.PubKey().SerializeCompressed())
	if err != nil {
		t.Fatalf("TestSignP2PK: PayToPubKeyScript: %s", err)
	}
	tx := newSpendingTx(1)
	sig, err := RawTxInSignature(tx, 0, scriptPubKey, consensushashing.SigHashAll, privKey)
	if err != nil {
		t.Fatalf("TestSignP2PK: RawTxInSignature: %s", err)
	}
	tx.Inputs[0].SignatureScript, err = NewScriptBuilder().AddData(sig).Script()
	if err != nil {
		t.Fatalf("TestSignP2PK: Script: %s", err)
	}
	err = checkScripts(tx, 0, scriptPubKey, StandardVerifyFlags, 0)
	if err != nil {
		t.Fatalf("TestSignP2PK: Expected success, found: %s", err)
	}

	// Changing an output after signing invalidates the signature.
	tx.Outputs[0].Value++
	err = checkScripts(tx, 0, scriptPubKey, StandardVerifyFlags, 0)
	if !IsErrorCode(err, ErrNullFail) {
		t.Fatalf("TestSignP2PK: Expected ErrNullFail, found: %v", err)
	}
	err = checkScripts(tx, 0, scriptPubKey, ScriptBip16, 0)
	if !IsErrorCode(err, ErrEvalFalse) {
		t.Fatalf("TestSignP2PK: Expected ErrEvalFalse, found: %v", err)
	}
}

func TestSignP2SHMultiSig(t *testing.T) {
	t.Parallel()

	keys := []*btcec.PrivateKey{newTestKey(3), newTestKey(4), newTestKey(5)}
	pubKeys := make([][]byte, len(keys))
	for i, key := range keys {
		pubKeys[i] = key.PubKey().SerializeCompressed()
	}
	redeemScript, err := MultiSigScript(pubKeys, 2)
	if err != nil {
		t.Fatalf("TestSignP2SHMultiSig: MultiSigScript: %s", err)
	}
	if GetScriptClass(redeemScript) != MultiSigTy {
		t.Fatalf("TestSignP2SHMultiSig: Expected a multisig script, found: %s",
			GetScriptClass(redeemScript))
	}
	scriptPubKey, err := PayToScriptHashScript(btcutil.Hash160(redeemScript))
	if err != nil {
		t.Fatalf("TestSignP2SHMultiSig: PayToScriptHashScript: %s", err)
	}

	tests := []struct {
		name        string
		signers     []int
		expectedErr *ErrorCode
	}{
		{name: "keys 0 and 1", signers: []int{0, 1}},
		{name: "keys 0 and 2", signers: []int{0, 2}},
		{name: "keys 1 and 2", signers: []int{1, 2}},
		{name: "out of order", signers: []int{2, 0}, expectedErr: errorCodePtr(ErrNullFail)},
		{name: "same key twice", signers: []int{1, 1}, expectedErr: errorCodePtr(ErrNullFail)},
	}

	for _, test := range tests {
		tx := newSpendingTx(1)
		builder := NewScriptBuilder().AddOp(Op0)
		for _, signer := range test.signers {
			sig, err := RawTxInSignature(tx, 0, redeemScript, consensushashing.SigHashAll, keys[signer])
			if err != nil {
				t.Fatalf("TestSignP2SHMultiSig: %s: RawTxInSignature: %s", test.name, err)
			}
			builder.AddData(sig)
		}
		sigScript, err := builder.AddData(redeemScript).Script()
		if err != nil {
			t.Fatalf("TestSignP2SHMultiSig: %s: Script: %s", test.name, err)
		}
		tx.Inputs[0].SignatureScript = sigScript

		err = checkScripts(tx, 0, scriptPubKey, StandardVerifyFlags, 0)
		if test.expectedErr == nil {
			if err != nil {
				t.Fatalf("TestSignP2SHMultiSig: %s: Expected success, found: %s", test.name, err)
			}
			continue
		}
		if !IsErrorCode(err, *test.expectedErr) {
			t.Fatalf("TestSignP2SHMultiSig: %s: Expected %s, found: %v",
				test.name, *test.expectedErr, err)
		}
	}
}

func errorCodePtr(code ErrorCode) *ErrorCode {
	return &code
}

func TestSignP2WPKH(t *testing.T) {
	t.Parallel()

	const amount = externalapi.Amount(50_000)
	privKey := newTestKey(6)
	pubKey := privKey.PubKey().SerializeCompressed()
	scriptPubKey, err := PayToWitnessPubKeyHashScript(btcutil.Hash160(pubKey))
	if err != nil {
		t.Fatalf("TestSignP2WPKH: PayToWitnessPubKeyHashScript: %s", err)
	}

	for _, hashType := range hashTypes {
		tx := newSpendingTx(2)
		sigHashes := consensushashing.NewTxSigHashes(tx)
		for i := range tx.Inputs {
			witness, err := WitnessSignature(tx, sigHashes, i, amount, hashType, privKey)
			if err != nil {
				t.Fatalf("TestSignP2WPKH: WitnessSignature: %s", err)
			}
			tx.Inputs[i].Witness = witness
		}
		for i := range tx.Inputs {
			err := checkScripts(tx, i, scriptPubKey, StandardVerifyFlags, amount)
			if err != nil {
				t.Fatalf("TestSignP2WPKH: input %d with hash type %d failed: %s", i, hashType, err)
			}
		}

		// The witness digest commits to the spent amount.
		err = checkScripts(tx, 0, scriptPubKey, ScriptBip16|ScriptVerifyWitness, amount+1)
		if !IsErrorCode(err, ErrEvalFalse) {
			t.Fatalf("TestSignP2WPKH: Expected ErrEvalFalse for a wrong amount, found: %v", err)
		}
	}
}

func TestSignP2SHP2WPKH(t *testing.T) {
	t.Parallel()

	const amount = externalapi.Amount(12_345)
	privKey := newTestKey(7)
	pubKey := privKey.PubKey().SerializeCompressed()
	redeemScript, err := PayToWitnessPubKeyHashScript(btcutil.Hash160(pubKey))
	if err != nil {
		t.Fatalf("TestSignP2SHP2WPKH: PayToWitnessPubKeyHashScript: %s", err)
	}
	scriptPubKey, err := PayToScriptHashScript(btcutil.Hash160(redeemScript))
	if err != nil {
		t.Fatalf("TestSignP2SHP2WPKH: PayToScriptHashScript: %s", err)
	}

	tx := newSpendingTx(1)
	tx.Inputs[0].SignatureScript, err = NewScriptBuilder().AddData(redeemScript).Script()
	if err != nil {
		t.Fatalf("TestSignP2SHP2WPKH: Script: %s", err)
	}
	tx.Inputs[0].Witness, err = WitnessSignature(tx, nil, 0, amount, consensushashing.SigHashAll, privKey)
	if err != nil {
		t.Fatalf("TestSignP2SHP2WPKH: WitnessSignature: %s", err)
	}

	err = checkScripts(tx, 0, scriptPubKey, StandardVerifyFlags, amount)
	if err != nil {
		t.Fatalf("TestSignP2SHP2WPKH: Expected success, found: %s", err)
	}
	if GetWitnessSigOpCount(tx.Inputs[0].SignatureScript, scriptPubKey, tx.Inputs[0].Witness) != 1 {
		t.Fatalf("TestSignP2SHP2WPKH: Expected a witness sigop count of 1")
	}
}

func TestSignP2WSH(t *testing.T) {
	t.Parallel()

	const amount = externalapi.Amount(777)
	privKey := newTestKey(8)

	tests := []struct {
		name        string
		pubKey      []byte
		flags       ScriptFlags
		expectedErr *ErrorCode
	}{
		{
			name:   "compressed key",
			pubKey: privKey.PubKey().SerializeCompressed(),
			flags:  StandardVerifyFlags,
		},
		{
			name:   "uncompressed key without WITNESS_PUBKEYTYPE",
			pubKey: privKey.PubKey().SerializeUncompressed(),
			flags:  StandardVerifyFlags &^ ScriptVerifyWitnessPubKeyType,
		},
		{
			name:        "uncompressed key",
			pubKey:      privKey.PubKey().SerializeUncompressed(),
			flags:       StandardVerifyFlags,
			expectedErr: errorCodePtr(ErrWitnessPubKeyType),
		},
	}

	for _, test := range tests {
		witnessScript, err := PayToPubKeyScript(test.pubKey)
		if err != nil {
			t.Fatalf("TestSignP2WSH: %s: PayToPubKeyScript: %s", test.name, err)
		}
		scriptHash := sha256.Sum256(witnessScript)
		scriptPubKey, err := PayToWitnessScriptHashScript(scriptHash[:])
		if err != nil {
			t.Fatalf("TestSignP2WSH: %s: PayToWitnessScriptHashScript: %s", test.name, err)
		}

		tx := newSpendingTx(1)
		sig, err := RawTxInWitnessSignature(tx, nil, 0, amount, witnessScript,
			consensushashing.SigHashAll, privKey)
		if err != nil {
			t.Fatalf("TestSignP2WSH: %s: RawTxInWitnessSignature: %s", test.name, err)
		}
		tx.Inputs[0].Witness = [][]byte{sig, witnessScript}

		err = checkScripts(tx, 0, scriptPubKey, test.flags, amount)
		if test.expectedErr == nil {
			if err != nil {
				t.Fatalf("TestSignP2WSH: %s: Expected success, found: %s", test.name, err)
			}
			continue
		}
		if !IsErrorCode(err, *test.expectedErr) {
			t.Fatalf("TestSignP2WSH: %s: Expected %s, found: %v", test.name, *test.expectedErr, err)
		}
	}
}

func TestSignCodeSeparator(t *testing.T) {
	t.Parallel()

	privKey := newTestKey(9)
	redeemScript, err := NewScriptBuilder().AddOp(OpCodeSeparator).
		AddData(privKey.PubKey().SerializeCompressed()).AddOp(OpCheckSig).Script()
	if err != nil {
		t.Fatalf("TestSignCodeSeparator: Script: %s", err)
	}
	scriptPubKey, err := PayToScriptHashScript(btcutil.Hash160(redeemScript))
	if err != nil {
		t.Fatalf("TestSignCodeSeparator: PayToScriptHashScript: %s", err)
	}

	tx := newSpendingTx(1)
	sig, err := RawTxInSignature(tx, 0, redeemScript, consensushashing.SigHashAll, privKey)
	if err != nil {
		t.Fatalf("TestSignCodeSeparator: RawTxInSignature: %s", err)
	}
	tx.Inputs[0].SignatureScript, err = NewScriptBuilder().AddData(sig).AddData(redeemScript).Script()
	if err != nil {
		t.Fatalf("TestSignCodeSeparator: Script: %s", err)
	}

	err = checkScripts(tx, 0, scriptPubKey, StandardVerifyFlags, 0)
	if err != nil {
		t.Fatalf("TestSignCodeSeparator: Expected success, found: %s", err)
	}
}

func TestGetSigOpCost(t *testing.T) {
	t.Parallel()

	privKey := newTestKey(10)
	pubKey := privKey.PubKey().SerializeCompressed()
	p2pkh, _ := PayToPubKeyHashScript(btcutil.Hash160(pubKey))
	p2wpkh, _ := PayToWitnessPubKeyHashScript(btcutil.Hash160(pubKey))
	multiSig, _ := MultiSigScript([][]byte{pubKey, pubKey, pubKey}, 2)
	p2sh, _ := PayToScriptHashScript(btcutil.Hash160(multiSig))
	p2shSigScript, _ := NewScriptBuilder().AddOp(Op0).AddData(multiSig).Script()

	tx := newSpendingTx(3)
	tx.Outputs[0].ScriptPublicKey = p2pkh
	tx.Inputs[1].SignatureScript = p2shSigScript
	tx.Inputs[2].Witness = [][]byte{{0x30}, pubKey}
	prevScripts := [][]byte{p2pkh, p2sh, p2wpkh}

	tests := []struct {
		name       string
		isCoinbase bool
		flags      ScriptFlags
		expected   int
	}{
		// The p2pkh output counts one legacy sigop.
		{name: "coinbase", isCoinbase: true, flags: StandardVerifyFlags, expected: 4},
		{name: "no flags", flags: 0, expected: 4},
		{name: "p2sh", flags: ScriptBip16, expected: 4 + 3*4},
		{name: "p2sh and witness", flags: ScriptBip16 | ScriptVerifyWitness, expected: 4 + 3*4 + 1},
	}
	for _, test := range tests {
		cost, err := GetSigOpCost(tx, test.isCoinbase, prevScripts, test.flags)
		if err != nil {
			t.Fatalf("TestGetSigOpCost: %s: %s", test.name, err)
		}
		if cost != test.expected {
			t.Fatalf("TestGetSigOpCost: %s: Expected %d, found: %d", test.name, test.expected, cost)
		}
	}

	_, err := GetSigOpCost(tx, false, prevScripts[:1], StandardVerifyFlags)
	if err == nil {
		t.Fatalf("TestGetSigOpCost: Expected an error for missing previous scripts")
	}
}
