package transactionvalidator

import (
	"github.com/kaspanet/btcconsensus/domain/consensus/model/externalapi"
	"github.com/kaspanet/btcconsensus/domain/consensus/ruleerrors"
	"github.com/kaspanet/btcconsensus/domain/consensus/utils/constants"
	"github.com/kaspanet/btcconsensus/domain/consensus/utils/serialization"
	"github.com/kaspanet/btcconsensus/domain/consensus/utils/transactionhelper"
	"github.com/pkg/errors"
)

// CheckTransactionInIsolation validates the parts of the transaction that
// don't depend on the UTXO set or on the block it is in
func (v *transactionValidator) CheckTransactionInIsolation(tx *externalapi.DomainTransaction) error {
	return CheckTransactionInIsolation(tx)
}

// CheckTransactionInIsolation performs the context free checks of tx
func CheckTransactionInIsolation(tx *externalapi.DomainTransaction) error {
	err := checkTransactionInputCount(tx)
	if err != nil {
		return err
	}
	err = checkTransactionOutputCount(tx)
	if err != nil {
		return err
	}
	err = checkTransactionSize(tx)
	if err != nil {
		return err
	}
	err = checkTransactionAmountRanges(tx)
	if err != nil {
		return err
	}
	err = checkDuplicateTransactionInputs(tx)
	if err != nil {
		return err
	}
	return checkCoinbaseOrNullInputs(tx)
}

func checkTransactionInputCount(tx *externalapi.DomainTransaction) error {
	if len(tx.Inputs) == 0 {
		return errors.Wrapf(ruleerrors.ErrNoTxInputs, "transaction has no inputs")
	}
	if len(tx.Inputs) > constants.MaxTxInputs {
		return errors.Wrapf(ruleerrors.ErrTooManyTxInputs, "transaction has %d inputs, "+
			"which is more than the max allowed of %d", len(tx.Inputs), constants.MaxTxInputs)
	}
	return nil
}

func checkTransactionOutputCount(tx *externalapi.DomainTransaction) error {
	if len(tx.Outputs) == 0 {
		return errors.Wrapf(ruleerrors.ErrNoTxOutputs, "transaction has no outputs")
	}
	if len(tx.Outputs) > constants.MaxTxOutputs {
		return errors.Wrapf(ruleerrors.ErrTooManyTxOutputs, "transaction has %d outputs, "+
			"which is more than the max allowed of %d", len(tx.Outputs), constants.MaxTxOutputs)
	}
	return nil
}

// checkTransactionSize limits the serialized size of the transaction without
// its witness data
func checkTransactionSize(tx *externalapi.DomainTransaction) error {
	size := serialization.TransactionSerializeSize(tx, false)
	if size > constants.MaxTxSize {
		return errors.Wrapf(ruleerrors.ErrTxTooBig, "serialized transaction is too big - got "+
			"%d, max %d", size, constants.MaxTxSize)
	}
	return nil
}

func checkTransactionAmountRanges(tx *externalapi.DomainTransaction) error {
	// Ensure the transaction amounts are in range. Each transaction
	// output must not be negative or more than the max allowed per
	// transaction. Also, the total of all outputs must abide by the same
	// restrictions.
	var totalSatoshi externalapi.Amount
	for i, output := range tx.Outputs {
		satoshi := output.Value
		if satoshi < 0 {
			return errors.Wrapf(ruleerrors.ErrBadTxOutValue, "transaction output %d has negative "+
				"value of %d", i, satoshi)
		}
		if satoshi > constants.MaxMoney {
			return errors.Wrapf(ruleerrors.ErrBadTxOutValue, "transaction output %d value of %d is "+
				"higher than max allowed value of %d", i, satoshi, constants.MaxMoney)
		}

		// Both operands are within [0, MaxMoney] so the sum can't
		// overflow an int64.
		totalSatoshi += satoshi
		if totalSatoshi > constants.MaxMoney {
			return errors.Wrapf(ruleerrors.ErrTotalTxOutValueTooHigh, "total value of all transaction "+
				"outputs is %d which is higher than max allowed value of %d", totalSatoshi,
				constants.MaxMoney)
		}
	}
	return nil
}

func checkDuplicateTransactionInputs(tx *externalapi.DomainTransaction) error {
	existingTxOut := make(map[externalapi.DomainOutpoint]struct{}, len(tx.Inputs))
	for _, input := range tx.Inputs {
		if _, exists := existingTxOut[input.PreviousOutpoint]; exists {
			return errors.Wrapf(ruleerrors.ErrDuplicateTxInputs, "transaction "+
				"contains duplicate inputs %s", input.PreviousOutpoint)
		}
		existingTxOut[input.PreviousOutpoint] = struct{}{}
	}
	return nil
}

func checkCoinbaseOrNullInputs(tx *externalapi.DomainTransaction) error {
	if transactionhelper.IsCoinBase(tx) {
		scriptLen := len(tx.Inputs[0].SignatureScript)
		if scriptLen < constants.MinCoinbaseScriptLen || scriptLen > constants.MaxCoinbaseScriptLen {
			return errors.Wrapf(ruleerrors.ErrBadCoinbaseScriptLen, "coinbase transaction script "+
				"length of %d is out of range (min: %d, max: %d)", scriptLen,
				constants.MinCoinbaseScriptLen, constants.MaxCoinbaseScriptLen)
		}
		return nil
	}

	// Previous transaction outputs referenced by the inputs to this
	// transaction must not be null.
	for i, input := range tx.Inputs {
		if input.PreviousOutpoint.IsNull() {
			return errors.Wrapf(ruleerrors.ErrBadTxInput, "transaction input %d refers to "+
				"the null outpoint", i)
		}
	}
	return nil
}
