package consensusstatemanager

import (
	"github.com/kaspanet/btcconsensus/domain/consensus/model/externalapi"
	"github.com/kaspanet/btcconsensus/domain/consensus/ruleerrors"
	"github.com/kaspanet/btcconsensus/domain/consensus/utils/consensushashing"
	"github.com/kaspanet/btcconsensus/domain/consensus/utils/transactionhelper"
	"github.com/kaspanet/btcconsensus/domain/consensus/utils/utxo"
	"github.com/kaspanet/btcconsensus/infrastructure/logger"
	"github.com/pkg/errors"
)

// DisconnectBlock reverts the effect of connecting block on utxoSet.
// undoDiff is the diff returned when the block was connected. Either the
// whole inverse diff is applied or utxoSet is left untouched.
func (csm *consensusStateManager) DisconnectBlock(block *externalapi.DomainBlock,
	undoDiff externalapi.UTXODiff, utxoSet externalapi.UTXOSet) error {

	onEnd := logger.LogAndMeasureExecutionTime(log, "DisconnectBlock")
	defer onEnd()

	blockHash := consensushashing.BlockHash(block)
	err := checkUndoDiffMatchesBlock(block, undoDiff)
	if err != nil {
		return errors.Wrapf(err, "undo data of block %s", blockHash)
	}

	err = utxo.ApplyDiffToSet(utxoSet, undoDiff.Reversed())
	if err != nil {
		return errors.Wrapf(err, "failed disconnecting block %s", blockHash)
	}

	log.Debugf("Disconnected block %s (%d outputs restored, %d removed)",
		blockHash, undoDiff.ToRemove().Len(), undoDiff.ToAdd().Len())
	return nil
}

// checkUndoDiffMatchesBlock makes sure undoDiff only adds outputs created by
// block and only removes outputs spent by it
func checkUndoDiffMatchesBlock(block *externalapi.DomainBlock, undoDiff externalapi.UTXODiff) error {
	createdBy := make(map[externalapi.DomainTransactionID]int, len(block.Transactions))
	spent := make(map[externalapi.DomainOutpoint]struct{})
	for i, tx := range block.Transactions {
		createdBy[*consensushashing.TransactionID(tx)] = len(tx.Outputs)
		if i == transactionhelper.CoinbaseTransactionIndex {
			continue
		}
		for _, input := range tx.Inputs {
			spent[input.PreviousOutpoint] = struct{}{}
		}
	}

	err := undoDiff.ToAdd().ForEach(func(outpoint *externalapi.DomainOutpoint, _ externalapi.UTXOEntry) error {
		numOutputs, ok := createdBy[outpoint.TransactionID]
		if !ok || int(outpoint.Index) >= numOutputs {
			return errors.Wrapf(ruleerrors.ErrInvariantViolation, "outpoint %s was not created by the block", outpoint)
		}
		return nil
	})
	if err != nil {
		return err
	}

	return undoDiff.ToRemove().ForEach(func(outpoint *externalapi.DomainOutpoint, _ externalapi.UTXOEntry) error {
		if _, ok := spent[*outpoint]; !ok {
			return errors.Wrapf(ruleerrors.ErrInvariantViolation, "outpoint %s was not spent by the block", outpoint)
		}
		return nil
	})
}
