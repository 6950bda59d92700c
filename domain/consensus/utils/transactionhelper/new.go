package transactionhelper

import (
	"github.com/kaspanet/btcconsensus/domain/consensus/model/externalapi"
	"github.com/kaspanet/btcconsensus/domain/consensus/utils/constants"
)

// NewNativeTransaction returns a new transaction spending the given inputs
// with a zero lock time
func NewNativeTransaction(version int32, inputs []*externalapi.DomainTransactionInput,
	outputs []*externalapi.DomainTransactionOutput) *externalapi.DomainTransaction {

	return &externalapi.DomainTransaction{
		Version:  version,
		Inputs:   inputs,
		Outputs:  outputs,
		LockTime: 0,
	}
}

// NewCoinbaseTransaction returns a coinbase transaction with the given
// signature script and outputs. The signature script must be between
// MinCoinbaseScriptLen and MaxCoinbaseScriptLen bytes for the transaction to
// be valid.
func NewCoinbaseTransaction(signatureScript []byte,
	outputs []*externalapi.DomainTransactionOutput) *externalapi.DomainTransaction {

	return &externalapi.DomainTransaction{
		Version: 1,
		Inputs: []*externalapi.DomainTransactionInput{{
			PreviousOutpoint: externalapi.DomainOutpoint{Index: externalapi.NullOutpointIndex},
			SignatureScript:  signatureScript,
			Sequence:         constants.MaxTxInSequenceNum,
		}},
		Outputs:  outputs,
		LockTime: 0,
	}
}
