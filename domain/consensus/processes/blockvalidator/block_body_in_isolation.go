package blockvalidator

import (
	"github.com/kaspanet/btcconsensus/domain/consensus/model/externalapi"
	"github.com/kaspanet/btcconsensus/domain/consensus/ruleerrors"
	"github.com/kaspanet/btcconsensus/domain/consensus/utils/consensushashing"
	"github.com/kaspanet/btcconsensus/domain/consensus/utils/constants"
	"github.com/kaspanet/btcconsensus/domain/consensus/utils/merkle"
	"github.com/kaspanet/btcconsensus/domain/consensus/utils/serialization"
	"github.com/kaspanet/btcconsensus/domain/consensus/utils/transactionhelper"
	"github.com/kaspanet/btcconsensus/infrastructure/logger"
	"github.com/pkg/errors"
)

// ValidateBodyInIsolation validates block bodies in isolation from the current
// consensus state
func (v *blockValidator) ValidateBodyInIsolation(block *externalapi.DomainBlock) error {
	onEnd := logger.LogAndMeasureExecutionTime(log, "ValidateBodyInIsolation")
	defer onEnd()

	err := v.checkBlockContainsAtLeastOneTransaction(block)
	if err != nil {
		return err
	}

	err = v.checkFirstBlockTransactionIsCoinbase(block)
	if err != nil {
		return err
	}

	err = v.checkBlockContainsOnlyOneCoinbase(block)
	if err != nil {
		return err
	}

	err = v.checkBlockSize(block)
	if err != nil {
		return err
	}

	err = v.checkTransactionsInIsolation(block)
	if err != nil {
		return err
	}

	err = v.checkBlockMerkleRoot(block)
	if err != nil {
		return err
	}

	err = v.checkBlockDuplicateTransactions(block)
	if err != nil {
		return err
	}

	return v.checkBlockDoubleSpends(block)
}

func (v *blockValidator) checkBlockContainsAtLeastOneTransaction(block *externalapi.DomainBlock) error {
	if len(block.Transactions) == 0 {
		return errors.Wrapf(ruleerrors.ErrNoTransactions, "block does not contain "+
			"any transactions")
	}
	return nil
}

func (v *blockValidator) checkFirstBlockTransactionIsCoinbase(block *externalapi.DomainBlock) error {
	if !transactionhelper.IsCoinBase(block.Transactions[transactionhelper.CoinbaseTransactionIndex]) {
		return errors.Wrapf(ruleerrors.ErrFirstTxNotCoinbase, "first transaction in "+
			"block is not a coinbase")
	}
	return nil
}

func (v *blockValidator) checkBlockContainsOnlyOneCoinbase(block *externalapi.DomainBlock) error {
	for i, tx := range block.Transactions[transactionhelper.CoinbaseTransactionIndex+1:] {
		if transactionhelper.IsCoinBase(tx) {
			return errors.Wrapf(ruleerrors.ErrMultipleCoinbases, "block contains second coinbase at "+
				"index %d", i+transactionhelper.CoinbaseTransactionIndex+1)
		}
	}
	return nil
}

// checkBlockSize limits both the serialized size of the block, witness data
// included, and its weight
func (v *blockValidator) checkBlockSize(block *externalapi.DomainBlock) error {
	size := serialization.BlockSerializeSize(block, true)
	if size > constants.MaxBlockSerializedSize {
		return errors.Wrapf(ruleerrors.ErrBlockTooBig, "serialized block is too big - got %d, "+
			"max %d", size, constants.MaxBlockSerializedSize)
	}

	weight := serialization.BlockWeight(block)
	if weight > constants.MaxBlockWeight {
		return errors.Wrapf(ruleerrors.ErrBlockWeightTooHigh, "block's weight metric is too high - got %d, "+
			"max %d", weight, constants.MaxBlockWeight)
	}
	return nil
}

func (v *blockValidator) checkTransactionsInIsolation(block *externalapi.DomainBlock) error {
	for i, tx := range block.Transactions {
		err := v.transactionValidator.CheckTransactionInIsolation(tx)
		if err != nil {
			return errors.Wrapf(err, "transaction %d (%s) failed isolation "+
				"check", i, consensushashing.TransactionID(tx))
		}
	}
	return nil
}

func (v *blockValidator) checkBlockMerkleRoot(block *externalapi.DomainBlock) error {
	calculatedMerkleRoot := merkle.CalculateMerkleRoot(block.Transactions)
	if !block.Header.MerkleRoot.Equal(calculatedMerkleRoot) {
		return errors.Wrapf(ruleerrors.ErrBadMerkleRoot, "block merkle root is invalid - block "+
			"header indicates %s, but calculated value is %s",
			block.Header.MerkleRoot, calculatedMerkleRoot)
	}
	return nil
}

// checkBlockDuplicateTransactions also rejects the merkle tree malleation
// that duplicates the last transactions of a level
func (v *blockValidator) checkBlockDuplicateTransactions(block *externalapi.DomainBlock) error {
	existingTxIDs := make(map[externalapi.DomainTransactionID]struct{})
	for _, tx := range block.Transactions {
		id := consensushashing.TransactionID(tx)
		if _, exists := existingTxIDs[*id]; exists {
			return errors.Wrapf(ruleerrors.ErrDuplicateTx, "block contains duplicate "+
				"transaction %s", id)
		}
		existingTxIDs[*id] = struct{}{}
	}
	return nil
}

func (v *blockValidator) checkBlockDoubleSpends(block *externalapi.DomainBlock) error {
	usedOutpoints := make(map[externalapi.DomainOutpoint]*externalapi.DomainTransactionID)
	for _, tx := range block.Transactions[transactionhelper.CoinbaseTransactionIndex+1:] {
		txID := consensushashing.TransactionID(tx)
		for _, input := range tx.Inputs {
			if spendingTxID, exists := usedOutpoints[input.PreviousOutpoint]; exists {
				return errors.Wrapf(ruleerrors.ErrDoubleSpendInSameBlock, "transaction %s spends "+
					"outpoint %s that was already spent by "+
					"transaction %s in this block", txID,
					input.PreviousOutpoint, spendingTxID)
			}
			usedOutpoints[input.PreviousOutpoint] = txID
		}
	}
	return nil
}
