// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txscript

import (
	"bytes"
	"testing"
)

// mustParseShortForm parses the passed short form script and returns the
// resulting bytes. It panics if an error occurs.
func mustParseShortForm(script string) []byte {
	s, err := parseShortForm(script)
	if err != nil {
		panic("invalid short form script in test source: err " +
			err.Error() + ", script: " + script)
	}

	return s
}

// TestScriptClass ensures all the scripts in scriptClassTests have the expected
// class.
func TestScriptClass(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		script string
		class  ScriptClass
	}{
		{
			name: "Pay Pubkey",
			script: "DATA_65 0x0411db93e1dcdb8a016b49840f8c53bc1eb68a382e" +
				"97b1482ecad7b148a6909a5cb2e0eaddfb84ccf9744464f82e16" +
				"0bfa9b8b64f9d4c03f999b8643f656b412a3 CHECKSIG",
			class: PubKeyTy,
		},
		{
			name: "Pay PubkeyHash",
			script: "DUP HASH160 DATA_20 0x660d4ef3a743e3e696ad990364e55" +
				"5c271ad504b EQUALVERIFY CHECKSIG",
			class: PubKeyHashTy,
		},
		{
			name: "script hash",
			script: "HASH160 DATA_20 0x433ec2ac1ffa1b7b7d027f564529c57197f" +
				"9ae88 EQUAL",
			class: ScriptHashTy,
		},
		{
			name:   "witness pubkey hash",
			script: "0 DATA_20 0x1d0f172a0ecb48aee1be1f2687d2963ae33f71a1",
			class:  WitnessV0PubKeyHashTy,
		},
		{
			name: "witness script hash",
			script: "0 DATA_32 0x9f96ade4b41d5433f4eda31e1738ec2b36f6e7d1420d94a6" +
				"af99801a88f7f7ff",
			class: WitnessV0ScriptHashTy,
		},
		{
			name:   "witness program of an unknown version",
			script: "1 DATA_2 0x0101",
			class:  WitnessUnknownTy,
		},
		{
			name:   "version 0 witness program of an unknown length",
			script: "0 DATA_21 0x1d0f172a0ecb48aee1be1f2687d2963ae33f71a1ff",
			class:  NonStandardTy,
		},
		{
			name: "multisig",
			script: "1 DATA_33 0x0232abdc893e7f0631364d7fd01cb33d24da4" +
				"5329a00357b3a7886211ab414d55a 1 CHECKMULTISIG",
			class: MultiSigTy,
		},
		{
			name: "multisig with a key count mismatch",
			script: "1 DATA_33 0x0232abdc893e7f0631364d7fd01cb33d24da4" +
				"5329a00357b3a7886211ab414d55a 2 CHECKMULTISIG",
			class: NonStandardTy,
		},
		{
			name:   "nulldata with no data",
			script: "RETURN",
			class:  NullDataTy,
		},
		{
			name:   "nulldata with small int",
			script: "RETURN 4",
			class:  NullDataTy,
		},
		{
			name: "nulldata with max allowed data",
			script: "RETURN PUSHDATA1 0x50 0x046708afdb0fe5548271967f1a67" +
				"130b7105cd6a828e03909a67962e0ea1f61deb649f6bc3f4cef3" +
				"046708afdb0fe5548271967f1a67130b7105cd6a828e03909a67" +
				"962e0ea1f61deb649f6bc3f4cef3",
			class: NullDataTy,
		},
		{
			name: "nulldata with more than max allowed data",
			script: "RETURN PUSHDATA1 0x51 0x046708afdb0fe5548271967f1a67" +
				"130b7105cd6a828e03909a67962e0ea1f61deb649f6bc3f4cef3" +
				"046708afdb0fe5548271967f1a67130b7105cd6a828e03909a67" +
				"962e0ea1f61deb649f6bc3f4cef308",
			class: NonStandardTy,
		},
		{
			name:   "almost p2sh",
			script: "HASH160 DATA_20 0x433ec2ac1ffa1b7b7d027f564529c57197f9ae88 EQUALVERIFY",
			class:  NonStandardTy,
		},
		{
			name:   "truncated push",
			script: "DATA_5 0x01020304",
			class:  NonStandardTy,
		},
		{
			name:   "empty",
			script: "",
			class:  NonStandardTy,
		},
	}

	for _, test := range tests {
		script := mustParseShortForm(test.script)
		class := GetScriptClass(script)
		if class != test.class {
			t.Errorf("%s: expected %s got %s (script %x)", test.name,
				test.class, class, script)
		}
	}
}

// TestStringifyClass ensures the script class string returns the expected
// string for each script class.
func TestStringifyClass(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		class    ScriptClass
		stringed string
	}{
		{name: "nonstandardty", class: NonStandardTy, stringed: "nonstandard"},
		{name: "pubkey", class: PubKeyTy, stringed: "pubkey"},
		{name: "pubkeyhash", class: PubKeyHashTy, stringed: "pubkeyhash"},
		{name: "witness pubkeyhash", class: WitnessV0PubKeyHashTy, stringed: "witness_v0_keyhash"},
		{name: "scripthash", class: ScriptHashTy, stringed: "scripthash"},
		{name: "witness scripthash", class: WitnessV0ScriptHashTy, stringed: "witness_v0_scripthash"},
		{name: "multisigty", class: MultiSigTy, stringed: "multisig"},
		{name: "nulldataty", class: NullDataTy, stringed: "nulldata"},
		{name: "witness unknown", class: WitnessUnknownTy, stringed: "witness_unknown"},
		{name: "broken", class: ScriptClass(255), stringed: "Invalid"},
	}

	for _, test := range tests {
		typeString := test.class.String()
		if typeString != test.stringed {
			t.Errorf("%s: got %#q, want %#q", test.name,
				typeString, test.stringed)
		}
	}
}

func TestPayToScripts(t *testing.T) {
	t.Parallel()

	hash20 := bytes.Repeat([]byte{0x11}, 20)
	hash32 := bytes.Repeat([]byte{0x22}, 32)
	pubKey := mustParseShortForm("0x0232abdc893e7f0631364d7fd01cb33d24da45329a00357b3a7886211ab414d55a")

	tests := []struct {
		name     string
		build    func() ([]byte, error)
		expected string
		class    ScriptClass
		err      bool
	}{
		{
			name:     "pubkey hash",
			build:    func() ([]byte, error) { return PayToPubKeyHashScript(hash20) },
			expected: "DUP HASH160 DATA_20 0x1111111111111111111111111111111111111111 EQUALVERIFY CHECKSIG",
			class:    PubKeyHashTy,
		},
		{
			name:  "pubkey hash of a wrong size",
			build: func() ([]byte, error) { return PayToPubKeyHashScript(hash32) },
			err:   true,
		},
		{
			name:     "pubkey",
			build:    func() ([]byte, error) { return PayToPubKeyScript(pubKey) },
			expected: "DATA_33 0x0232abdc893e7f0631364d7fd01cb33d24da45329a00357b3a7886211ab414d55a CHECKSIG",
			class:    PubKeyTy,
		},
		{
			name:     "script hash",
			build:    func() ([]byte, error) { return PayToScriptHashScript(hash20) },
			expected: "HASH160 DATA_20 0x1111111111111111111111111111111111111111 EQUAL",
			class:    ScriptHashTy,
		},
		{
			name:  "script hash of a wrong size",
			build: func() ([]byte, error) { return PayToScriptHashScript(hash20[:19]) },
			err:   true,
		},
		{
			name:     "witness pubkey hash",
			build:    func() ([]byte, error) { return PayToWitnessPubKeyHashScript(hash20) },
			expected: "0 DATA_20 0x1111111111111111111111111111111111111111",
			class:    WitnessV0PubKeyHashTy,
		},
		{
			name:  "witness pubkey hash of a wrong size",
			build: func() ([]byte, error) { return PayToWitnessPubKeyHashScript(hash32) },
			err:   true,
		},
		{
			name:  "witness script hash",
			build: func() ([]byte, error) { return PayToWitnessScriptHashScript(hash32) },
			expected: "0 DATA_32 0x2222222222222222222222222222222222222222222222222222222222222222",
			class: WitnessV0ScriptHashTy,
		},
		{
			name:  "witness script hash of a wrong size",
			build: func() ([]byte, error) { return PayToWitnessScriptHashScript(hash20) },
			err:   true,
		},
		{
			name:     "nulldata",
			build:    func() ([]byte, error) { return NullDataScript([]byte{0xca, 0xfe}) },
			expected: "RETURN DATA_2 0xcafe",
			class:    NullDataTy,
		},
		{
			name:  "nulldata too large",
			build: func() ([]byte, error) { return NullDataScript(make([]byte, MaxDataCarrierSize+1)) },
			err:   true,
		},
		{
			name:     "multisig 1 of 2",
			build:    func() ([]byte, error) { return MultiSigScript([][]byte{pubKey, pubKey}, 1) },
			expected: "1 DATA_33 0x0232abdc893e7f0631364d7fd01cb33d24da45329a00357b3a7886211ab414d55a DATA_33 0x0232abdc893e7f0631364d7fd01cb33d24da45329a00357b3a7886211ab414d55a 2 CHECKMULTISIG",
			class:    MultiSigTy,
		},
		{
			name:  "multisig requiring too many signatures",
			build: func() ([]byte, error) { return MultiSigScript([][]byte{pubKey}, 2) },
			err:   true,
		},
	}

	for _, test := range tests {
		script, err := test.build()
		if test.err {
			if err == nil {
				t.Errorf("%s: expected an error, got script %x", test.name, script)
			}
			continue
		}
		if err != nil {
			t.Errorf("%s: unexpected error: %v", test.name, err)
			continue
		}
		expected := mustParseShortForm(test.expected)
		if !bytes.Equal(script, expected) {
			t.Errorf("%s: expected script %x, got %x", test.name, expected, script)
			continue
		}
		if class := GetScriptClass(script); class != test.class {
			t.Errorf("%s: expected class %s, got %s", test.name, test.class, class)
		}
	}
}

func TestNullDataAndMultiSigErrorCodes(t *testing.T) {
	t.Parallel()

	_, err := NullDataScript(make([]byte, MaxDataCarrierSize+1))
	if !IsErrorCode(err, ErrTooMuchNullData) {
		t.Fatalf("TestNullDataAndMultiSigErrorCodes: Expected ErrTooMuchNullData, found: %v", err)
	}
	_, err = MultiSigScript(nil, 1)
	if !IsErrorCode(err, ErrTooManyRequiredSigs) {
		t.Fatalf("TestNullDataAndMultiSigErrorCodes: Expected ErrTooManyRequiredSigs, found: %v", err)
	}
}
