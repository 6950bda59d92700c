package txscript

import (
	"github.com/kaspanet/btcconsensus/domain/consensus/model/externalapi"
	"github.com/kaspanet/btcconsensus/domain/consensus/utils/constants"
	"github.com/pkg/errors"
)

// GetSigOpCost returns the weighted signature operation cost of tx.
// Signature operations in legacy and pay-to-script-hash scripts are scaled by
// the witness scale factor, while witness signature operations count once.
// prevScriptPubKeys holds the public key scripts of the outputs spent by each
// input and is ignored for coinbase transactions.
func GetSigOpCost(tx *externalapi.DomainTransaction, isCoinbase bool,
	prevScriptPubKeys [][]byte, flags ScriptFlags) (int, error) {

	numSigOps := 0
	for _, input := range tx.Inputs {
		numSigOps += GetSigOpCount(input.SignatureScript)
	}
	for _, output := range tx.Outputs {
		numSigOps += GetSigOpCount(output.ScriptPublicKey)
	}
	cost := numSigOps * constants.WitnessScaleFactor

	if isCoinbase {
		return cost, nil
	}

	if len(prevScriptPubKeys) != len(tx.Inputs) {
		return 0, errors.Errorf("got %d previous scripts for %d inputs",
			len(prevScriptPubKeys), len(tx.Inputs))
	}

	for i, input := range tx.Inputs {
		prevScript := prevScriptPubKeys[i]
		if flags&ScriptBip16 == ScriptBip16 && IsPayToScriptHash(prevScript) {
			cost += GetPreciseSigOpCount(input.SignatureScript, prevScript, true) *
				constants.WitnessScaleFactor
		}
		if flags&ScriptVerifyWitness == ScriptVerifyWitness {
			cost += GetWitnessSigOpCount(input.SignatureScript, prevScript, input.Witness)
		}
	}

	return cost, nil
}
