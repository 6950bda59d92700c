package testutils

import (
	"github.com/btcsuite/btcutil"
	"github.com/kaspanet/btcconsensus/domain/consensus/utils/txscript"
	"github.com/pkg/errors"
)

// OpTrueScript returns a P2SH script paying to an anyone-can-spend redeem
// script. The second return value is the signature script that spends it.
func OpTrueScript() (scriptPublicKey []byte, signatureScript []byte) {
	redeemScript := []byte{txscript.OpTrue}
	scriptPublicKey, err := txscript.PayToScriptHashScript(btcutil.Hash160(redeemScript))
	if err != nil {
		panic(errors.Wrapf(err, "Couldn't build the OP_TRUE P2SH script. This should never happen"))
	}
	signatureScript, err = txscript.NewScriptBuilder().AddData(redeemScript).Script()
	if err != nil {
		panic(errors.Wrapf(err, "Couldn't build the OP_TRUE signature script. This should never happen"))
	}
	return scriptPublicKey, signatureScript
}
