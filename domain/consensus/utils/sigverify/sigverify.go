// Package sigverify checks ECDSA signatures over signature hashes. The
// script engine depends only on the SignatureVerifier interface so the
// backing curve implementation can be swapped.
package sigverify

import (
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/kaspanet/btcconsensus/domain/consensus/model/externalapi"
	"github.com/kaspanet/go-secp256k1"
)

// SignatureVerifier checks a signature against a signature hash and a
// serialized public key. The signature is BER/DER encoded without the hash
// type byte. Malformed inputs are reported as invalid signatures, never as
// errors.
type SignatureVerifier interface {
	VerifySignature(sigHash *externalapi.DomainHash, signature, pubKey []byte) bool
}

type btcecVerifier struct{}

// NewBtcecVerifier returns a SignatureVerifier backed by btcec, the pure Go
// secp256k1 implementation.
func NewBtcecVerifier() SignatureVerifier {
	return btcecVerifier{}
}

func (btcecVerifier) VerifySignature(sigHash *externalapi.DomainHash, signature, pubKey []byte) bool {
	sig, err := ecdsa.ParseSignature(signature)
	if err != nil {
		return false
	}
	key, err := btcec.ParsePubKey(pubKey)
	if err != nil {
		return false
	}
	return sig.Verify(sigHash.ByteSlice(), key)
}

type secp256k1Verifier struct{}

// NewSecp256k1Verifier returns a SignatureVerifier backed by libsecp256k1.
// libsecp256k1 only accepts low-S signatures, so signatures are normalized
// before verification to match the btcec verifier.
func NewSecp256k1Verifier() SignatureVerifier {
	return secp256k1Verifier{}
}

func (secp256k1Verifier) VerifySignature(sigHash *externalapi.DomainHash, signature, pubKey []byte) bool {
	sig, err := ecdsa.ParseSignature(signature)
	if err != nil {
		return false
	}
	key, err := btcec.ParsePubKey(pubKey)
	if err != nil {
		return false
	}

	r, s := sig.R(), sig.S()
	if s.IsOverHalfOrder() {
		s.Negate()
	}
	var compact [secp256k1.SerializedECDSASignatureSize]byte
	r.PutBytesUnchecked(compact[:32])
	s.PutBytesUnchecked(compact[32:])

	secpSignature, err := secp256k1.DeserializeECDSASignatureFromSlice(compact[:])
	if err != nil {
		return false
	}
	secpKey, err := secp256k1.DeserializeECDSAPubKey(key.SerializeCompressed())
	if err != nil {
		return false
	}
	secpHash := secp256k1.Hash(*sigHash.ByteArray())
	return secpKey.ECDSAVerify(&secpHash, secpSignature)
}
