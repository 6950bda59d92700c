package sigverify

import (
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/kaspanet/btcconsensus/domain/consensus/model/externalapi"
	"github.com/kaspanet/btcconsensus/domain/consensus/utils/hashes"
)

// encodeDER serializes r and s without normalizing s, which ecdsa.Signature's
// Serialize would do.
func encodeDER(r, s [32]byte) []byte {
	canonical := func(v [32]byte) []byte {
		b := v[:]
		for len(b) > 1 && b[0] == 0 {
			b = b[1:]
		}
		if b[0]&0x80 != 0 {
			b = append([]byte{0}, b...)
		}
		return b
	}
	rb, sb := canonical(r), canonical(s)
	der := []byte{0x30, byte(4 + len(rb) + len(sb)), 0x02, byte(len(rb))}
	der = append(der, rb...)
	der = append(der, 0x02, byte(len(sb)))
	return append(der, sb...)
}

func TestVerifySignature(t *testing.T) {
	privKey, err := btcec.NewPrivateKey()
	if err != nil {
		t.Fatalf("TestVerifySignature: NewPrivateKey: %s", err)
	}
	pubKey := privKey.PubKey()
	sigHash := hashes.DoubleSHA256([]byte("sighash"))
	otherHash := hashes.DoubleSHA256([]byte("other sighash"))

	sig := ecdsa.Sign(privKey, sigHash.ByteSlice())
	r, s := sig.R(), sig.S()
	highS := s
	highS.Negate()
	highSSignature := encodeDER(r.Bytes(), highS.Bytes())

	tests := []struct {
		name      string
		hash      *externalapi.DomainHash
		signature []byte
		pubKey    []byte
		expected  bool
	}{
		{"compressed key", sigHash, sig.Serialize(), pubKey.SerializeCompressed(), true},
		{"uncompressed key", sigHash, sig.Serialize(), pubKey.SerializeUncompressed(), true},
		{"high S", sigHash, highSSignature, pubKey.SerializeCompressed(), true},
		{"wrong hash", otherHash, sig.Serialize(), pubKey.SerializeCompressed(), false},
		{"empty signature", sigHash, nil, pubKey.SerializeCompressed(), false},
		{"garbage signature", sigHash, []byte{0x30, 0x01, 0x02}, pubKey.SerializeCompressed(), false},
		{"garbage key", sigHash, sig.Serialize(), []byte{0x02, 0x01}, false},
	}

	verifiers := map[string]SignatureVerifier{
		"btcec":     NewBtcecVerifier(),
		"secp256k1": NewSecp256k1Verifier(),
	}
	for verifierName, verifier := range verifiers {
		for _, test := range tests {
			result := verifier.VerifySignature(test.hash, test.signature, test.pubKey)
			if result != test.expected {
				t.Fatalf("TestVerifySignature: %s/%s: Expected %t, found: %t",
					verifierName, test.name, test.expected, result)
			}
		}
	}
}
