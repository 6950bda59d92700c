package consensus

import (
	"github.com/kaspanet/btcconsensus/domain/chaincfg"
	"github.com/kaspanet/btcconsensus/domain/consensus/utils/sigverify"
)

// Config is a descriptor for the consensus instance
type Config struct {
	chaincfg.Params

	// SignatureVerifier checks the signatures of OP_CHECKSIG and friends.
	// nil selects the btcec verifier.
	SignatureVerifier sigverify.SignatureVerifier

	// VerifyInvariants runs the invariant checks after every block that is
	// connected or disconnected and after every reorganization. The checks
	// scan the whole UTXO set.
	VerifyInvariants bool
}
