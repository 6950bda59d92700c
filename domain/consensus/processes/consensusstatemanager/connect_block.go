package consensusstatemanager

import (
	"github.com/kaspanet/btcconsensus/domain/consensus/model/externalapi"
	"github.com/kaspanet/btcconsensus/domain/consensus/ruleerrors"
	"github.com/kaspanet/btcconsensus/domain/consensus/utils/consensushashing"
	"github.com/kaspanet/btcconsensus/domain/consensus/utils/constants"
	"github.com/kaspanet/btcconsensus/domain/consensus/utils/transactionhelper"
	"github.com/kaspanet/btcconsensus/domain/consensus/utils/txscript"
	"github.com/kaspanet/btcconsensus/domain/consensus/utils/utxo"
	"github.com/kaspanet/btcconsensus/infrastructure/logger"
	"github.com/pkg/errors"
)

// ConnectBlock validates block against chainContext and applies it to
// utxoSet. Transactions are applied to a diff view over utxoSet, and the
// resulting diff is written to utxoSet only once the whole block is valid,
// so a rejected block leaves utxoSet untouched.
func (csm *consensusStateManager) ConnectBlock(block *externalapi.DomainBlock, utxoSet externalapi.UTXOSet,
	chainContext *externalapi.ChainContext, flags externalapi.ValidationFlags) (
	*externalapi.BlockConnectionResult, error) {

	onEnd := logger.LogAndMeasureExecutionTime(log, "ConnectBlock")
	defer onEnd()

	result := &externalapi.BlockConnectionResult{
		State:     externalapi.StatePending,
		LastState: externalapi.StatePending,
		BlockHash: consensushashing.BlockHash(block),
		Height:    chainContext.Height,
	}
	reject := func(err error) (*externalapi.BlockConnectionResult, error) {
		log.Debugf("Block %s at height %d rejected in state %s: %s",
			result.BlockHash, result.Height, result.LastState, err)
		result.State = externalapi.StateRejected
		return result, err
	}
	advance := func(state externalapi.BlockConnectionState) {
		log.Tracef("Block %s: %s -> %s", result.BlockHash, result.State, state)
		result.State = state
		result.LastState = state
	}

	err := csm.validateHeader(block.Header, chainContext, flags)
	if err != nil {
		return reject(err)
	}
	advance(externalapi.StateHeaderValid)

	err = csm.blockValidator.ValidateBodyInIsolation(block)
	if err != nil {
		return reject(err)
	}
	err = csm.blockValidator.ValidateBodyInContext(block, chainContext)
	if err != nil {
		return reject(err)
	}

	view := utxo.NewDiffView(utxoSet)
	if csm.params.IsBIP0030Exception(result.Height, result.BlockHash) {
		log.Infof("Block %s at height %d is exempt from BIP0030, duplicate outputs are ignored",
			result.BlockHash, result.Height)
		view.AllowDuplicateOutputs()
	}
	err = csm.applyTransactions(block, view, chainContext, flags, result)
	if err != nil {
		return reject(err)
	}

	subsidy, err := csm.coinbaseManager.ValidateCoinbaseTransactionInContext(
		block.Transactions[transactionhelper.CoinbaseTransactionIndex], chainContext.Height, result.Fees)
	if err != nil {
		return reject(err)
	}
	result.Subsidy = subsidy
	result.UTXODiff = view.Diff()
	advance(externalapi.StateTransactionsApplied)

	err = utxo.ApplyDiffToSet(utxoSet, result.UTXODiff)
	if err != nil {
		return reject(err)
	}
	advance(externalapi.StateConnected)

	log.Debugf("Connected block %s at height %d with %d transactions (fees: %s, subsidy: %s)",
		result.BlockHash, result.Height, len(block.Transactions), result.Fees, result.Subsidy)
	return result, nil
}

func (csm *consensusStateManager) validateHeader(header *externalapi.DomainBlockHeader,
	chainContext *externalapi.ChainContext, flags externalapi.ValidationFlags) error {

	err := csm.blockValidator.ValidateHeaderInIsolation(header, flags)
	if err != nil {
		return err
	}
	return csm.blockValidator.ValidateHeaderInContext(header, chainContext)
}

// applyTransactions validates the transactions of block in order and adds
// each of them to view, so that later transactions may spend the outputs of
// earlier ones. Fees and sigop cost are accumulated into result.
func (csm *consensusStateManager) applyTransactions(block *externalapi.DomainBlock, view *utxo.DiffView,
	chainContext *externalapi.ChainContext, flags externalapi.ValidationFlags,
	result *externalapi.BlockConnectionResult) error {

	height := chainContext.Height
	scriptFlags := csm.params.ScriptFlagsAtHeight(height)
	enforceSequenceLocks := csm.params.IsCSVActive(height)
	var medianTimePast int64
	if enforceSequenceLocks {
		medianTimePast = csm.pastMedianTimeManager.PastMedianTime(chainContext)
	}

	for i, tx := range block.Transactions {
		isCoinbase := i == transactionhelper.CoinbaseTransactionIndex
		txID := consensushashing.TransactionID(tx)

		fee, referencedEntries, err := csm.transactionValidator.CheckTransactionInputs(tx, view, height)
		if err != nil {
			return errors.Wrapf(err, "transaction %d (%s)", i, txID)
		}

		sigOpCost, err := txscript.GetSigOpCost(tx, isCoinbase, scriptPubKeys(referencedEntries), scriptFlags)
		if err != nil {
			return errors.Wrapf(err, "transaction %d (%s)", i, txID)
		}
		result.SigOpCost += sigOpCost
		if result.SigOpCost > constants.MaxBlockSigOpsCost {
			return errors.Wrapf(ruleerrors.ErrTooManySigOps, "block contains too many signature "+
				"operations - got %d, max %d", result.SigOpCost, constants.MaxBlockSigOpsCost)
		}

		if !isCoinbase {
			if enforceSequenceLocks {
				err = csm.checkSequenceLock(tx, referencedEntries, chainContext, medianTimePast)
				if err != nil {
					return errors.Wrapf(err, "transaction %d (%s)", i, txID)
				}
			}

			if flags&externalapi.BFSkipScripts == 0 {
				err = csm.transactionValidator.CheckTransactionScripts(tx, referencedEntries, scriptFlags)
				if err != nil {
					return errors.Wrapf(err, "transaction %d (%s)", i, txID)
				}
			}

			// Each fee is within [0, MaxMoney], so the sum can only exceed
			// MaxMoney before it overflows.
			result.Fees += fee
			if result.Fees > constants.MaxMoney {
				return errors.Wrapf(ruleerrors.ErrFeesOverflow, "total fees of block %s are "+
					"higher than max allowed value of %d", result.BlockHash, constants.MaxMoney)
			}
		}

		err = view.AddTransaction(tx, height)
		if err != nil {
			return errors.Wrapf(err, "transaction %d (%s)", i, txID)
		}
	}
	return nil
}

func (csm *consensusStateManager) checkSequenceLock(tx *externalapi.DomainTransaction,
	referencedEntries []externalapi.UTXOEntry, chainContext *externalapi.ChainContext,
	medianTimePast int64) error {

	sequenceLock, err := csm.transactionValidator.CalcSequenceLock(tx, referencedEntries, chainContext)
	if err != nil {
		return err
	}
	if !csm.transactionValidator.SequenceLockActive(sequenceLock, chainContext.Height, medianTimePast) {
		return errors.Wrapf(ruleerrors.ErrSequenceLockNotMet, "sequence lock (seconds: %d, height: %d) "+
			"is not met at height %d with median time %d", sequenceLock.Seconds, sequenceLock.BlockHeight,
			chainContext.Height, medianTimePast)
	}
	return nil
}

func scriptPubKeys(entries []externalapi.UTXOEntry) [][]byte {
	scripts := make([][]byte, len(entries))
	for i, entry := range entries {
		scripts[i] = entry.ScriptPublicKey()
	}
	return scripts
}
