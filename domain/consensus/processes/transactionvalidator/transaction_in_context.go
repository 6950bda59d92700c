package transactionvalidator

import (
	"math"

	"github.com/kaspanet/btcconsensus/domain/consensus/model/externalapi"
	"github.com/kaspanet/btcconsensus/domain/consensus/ruleerrors"
	"github.com/kaspanet/btcconsensus/domain/consensus/utils/consensushashing"
	"github.com/kaspanet/btcconsensus/domain/consensus/utils/constants"
	"github.com/kaspanet/btcconsensus/domain/consensus/utils/transactionhelper"
	"github.com/kaspanet/btcconsensus/domain/consensus/utils/txscript"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// CheckTransactionInContext validates tx against the UTXO set it spends from:
// every input must resolve, coinbase outputs must be mature, the fee must be
// non-negative and every input script must succeed. It returns the fee.
func (v *transactionValidator) CheckTransactionInContext(tx *externalapi.DomainTransaction,
	utxoSet externalapi.UTXOSet, height externalapi.BlockHeight, flags txscript.ScriptFlags) (
	externalapi.Amount, error) {

	fee, referencedEntries, err := v.CheckTransactionInputs(tx, utxoSet, height)
	if err != nil {
		return 0, err
	}
	if transactionhelper.IsCoinBase(tx) {
		return 0, nil
	}

	err = v.CheckTransactionScripts(tx, referencedEntries, flags)
	if err != nil {
		return 0, err
	}
	return fee, nil
}

// CheckTransactionInputs resolves the outputs spent by tx, checks their
// maturity and the transaction's amounts, and returns its fee together with
// the resolved entries in input order. Coinbase transactions have no fee and
// no referenced entries.
func (v *transactionValidator) CheckTransactionInputs(tx *externalapi.DomainTransaction,
	utxoSet externalapi.UTXOSet, height externalapi.BlockHeight) (
	externalapi.Amount, []externalapi.UTXOEntry, error) {

	if transactionhelper.IsCoinBase(tx) {
		return 0, nil, nil
	}

	referencedEntries, err := resolveInputs(tx, utxoSet)
	if err != nil {
		return 0, nil, err
	}

	err = v.checkTransactionCoinbaseMaturity(tx, referencedEntries, height)
	if err != nil {
		return 0, nil, err
	}

	fee, err := calculateFee(tx, referencedEntries)
	if err != nil {
		return 0, nil, err
	}
	log.Tracef("Transaction %s at height %d pays a fee of %s", consensushashing.TransactionID(tx), height, fee)

	return fee, referencedEntries, nil
}

// CalculateFee returns the amount tx's inputs hold beyond what its outputs
// pay. It fails if an input doesn't resolve, if a sum leaves the allowed
// range or if the outputs pay more than the inputs hold.
func CalculateFee(tx *externalapi.DomainTransaction, utxoSet externalapi.UTXOSet) (externalapi.Amount, error) {
	if transactionhelper.IsCoinBase(tx) {
		return 0, nil
	}
	referencedEntries, err := resolveInputs(tx, utxoSet)
	if err != nil {
		return 0, err
	}
	return calculateFee(tx, referencedEntries)
}

func resolveInputs(tx *externalapi.DomainTransaction, utxoSet externalapi.UTXOSet) ([]externalapi.UTXOEntry, error) {
	referencedEntries := make([]externalapi.UTXOEntry, len(tx.Inputs))
	var missingOutpoints []*externalapi.DomainOutpoint
	for i, input := range tx.Inputs {
		entry, found, err := utxoSet.Get(&input.PreviousOutpoint)
		if err != nil {
			return nil, err
		}
		if !found {
			missingOutpoints = append(missingOutpoints, input.PreviousOutpoint.Clone())
			continue
		}
		referencedEntries[i] = entry
	}
	if len(missingOutpoints) > 0 {
		return nil, ruleerrors.NewErrMissingTxOut(missingOutpoints)
	}
	return referencedEntries, nil
}

func (v *transactionValidator) checkTransactionCoinbaseMaturity(tx *externalapi.DomainTransaction,
	referencedEntries []externalapi.UTXOEntry, height externalapi.BlockHeight) error {

	for i, entry := range referencedEntries {
		if !entry.IsCoinbase() {
			continue
		}
		originHeight := entry.BlockHeight()
		if height < originHeight || uint64(height-originHeight) < v.coinbaseMaturity {
			return errors.Wrapf(ruleerrors.ErrImmatureSpend, "tried to spend coinbase "+
				"transaction output %s from height %d at height %d before required maturity "+
				"of %d blocks", tx.Inputs[i].PreviousOutpoint, originHeight, height, v.coinbaseMaturity)
		}
	}
	return nil
}

func calculateFee(tx *externalapi.DomainTransaction, referencedEntries []externalapi.UTXOEntry) (
	externalapi.Amount, error) {

	var totalSatoshiIn externalapi.Amount
	for i, entry := range referencedEntries {
		// Each operand is within [0, MaxMoney] so the sum can't
		// overflow an int64 before the range check catches it.
		satoshi := entry.Amount()
		if satoshi < 0 || satoshi > constants.MaxMoney {
			return 0, errors.Wrapf(ruleerrors.ErrBadTxOutValue, "output %s referenced by input %d "+
				"has value %d which is out of range", tx.Inputs[i].PreviousOutpoint, i, satoshi)
		}
		totalSatoshiIn += satoshi
		if totalSatoshiIn > constants.MaxMoney {
			return 0, errors.Wrapf(ruleerrors.ErrTxInValueOverflow, "total value of all transaction "+
				"inputs is %d which is higher than max allowed value of %d", totalSatoshiIn,
				constants.MaxMoney)
		}
	}

	var totalSatoshiOut externalapi.Amount
	for i, output := range tx.Outputs {
		satoshi := output.Value
		if satoshi < 0 || satoshi > constants.MaxMoney {
			return 0, errors.Wrapf(ruleerrors.ErrBadTxOutValue, "transaction output %d has value "+
				"%d which is out of range", i, satoshi)
		}
		totalSatoshiOut += satoshi
		if totalSatoshiOut > constants.MaxMoney {
			return 0, errors.Wrapf(ruleerrors.ErrTotalTxOutValueTooHigh, "total value of all "+
				"transaction outputs is %d which is higher than max allowed value of %d",
				totalSatoshiOut, constants.MaxMoney)
		}
	}

	// Ensure the transaction does not spend more than its inputs.
	if totalSatoshiIn < totalSatoshiOut {
		return 0, errors.Wrapf(ruleerrors.ErrSpendTooHigh, "total value of all transaction inputs for "+
			"transaction %s is %d which is less than the amount spent of %d",
			consensushashing.TransactionID(tx), totalSatoshiIn, totalSatoshiOut)
	}
	return totalSatoshiIn - totalSatoshiOut, nil
}

// CheckTransactionScripts runs the script pair of every input of tx. Inputs
// are validated concurrently, each with its own engine. When several inputs
// fail, the error of the lowest failing input is returned.
func (v *transactionValidator) CheckTransactionScripts(tx *externalapi.DomainTransaction,
	referencedEntries []externalapi.UTXOEntry, flags txscript.ScriptFlags) error {

	if len(referencedEntries) != len(tx.Inputs) {
		return errors.Errorf("got %d referenced entries for %d inputs", len(referencedEntries), len(tx.Inputs))
	}

	var sigHashes *consensushashing.TxSigHashes
	if flags&txscript.ScriptVerifyWitness == txscript.ScriptVerifyWitness && tx.HasWitness() {
		sigHashes = consensushashing.NewTxSigHashes(tx)
	}

	if len(tx.Inputs) == 1 {
		return v.validateInputScript(tx, 0, referencedEntries[0], flags, sigHashes)
	}

	inputErrors := make([]error, len(tx.Inputs))
	group := errgroup.Group{}
	group.SetLimit(v.maxScriptWorkers)
	for i := range tx.Inputs {
		i := i
		group.Go(func() error {
			inputErrors[i] = v.validateInputScript(tx, i, referencedEntries[i], flags, sigHashes)
			return nil
		})
	}
	// The goroutines never return an error themselves
	_ = group.Wait()

	for _, err := range inputErrors {
		if err != nil {
			return err
		}
	}
	return nil
}

func (v *transactionValidator) validateInputScript(tx *externalapi.DomainTransaction, inputIndex int,
	entry externalapi.UTXOEntry, flags txscript.ScriptFlags, sigHashes *consensushashing.TxSigHashes) error {

	input := tx.Inputs[inputIndex]
	err := txscript.VerifyScript(entry.ScriptPublicKey(), tx, inputIndex, flags, v.sigVerifier,
		sigHashes, entry.Amount())
	if err != nil {
		return classifyScriptError(err, inputIndex, input, entry)
	}
	return nil
}

// classifyScriptError wraps a script engine error into the rule error that
// matches its code: exhausted execution limits are resource limit errors,
// anything else is a script validation failure
func classifyScriptError(err error, inputIndex int, input *externalapi.DomainTransactionInput,
	entry externalapi.UTXOEntry) error {

	ruleErr := ruleerrors.ErrScriptValidation
	var scriptErr txscript.Error
	if errors.As(err, &scriptErr) && scriptErr.ErrorCode.IsResourceLimit() {
		ruleErr = ruleerrors.ErrScriptResourceLimit
	}
	return ruleerrors.Wrap(ruleErr, err, "failed to validate input %d which references output %s "+
		"(input script bytes %x, prev output script bytes %x)", inputIndex, input.PreviousOutpoint,
		input.SignatureScript, entry.ScriptPublicKey())
}

// IsFinalizedTransaction determines whether or not a transaction is finalized
// in a block at the given height and time
func (v *transactionValidator) IsFinalizedTransaction(tx *externalapi.DomainTransaction,
	height externalapi.BlockHeight, blockTime int64) bool {

	return IsFinalizedTransaction(tx, height, blockTime)
}

// IsFinalizedTransaction determines whether or not a transaction is finalized.
func IsFinalizedTransaction(tx *externalapi.DomainTransaction, height externalapi.BlockHeight, blockTime int64) bool {
	// Lock time of zero means the transaction is finalized.
	lockTime := tx.LockTime
	if lockTime == 0 {
		return true
	}

	// The lock time field of a transaction is either a block height at
	// which the transaction is finalized or a timestamp depending on if the
	// value is before the constants.LockTimeThreshold. When it is under the
	// threshold it is a block height.
	var blockTimeOrHeight int64
	if lockTime < constants.LockTimeThreshold {
		blockTimeOrHeight = int64(height)
	} else {
		blockTimeOrHeight = blockTime
	}
	if int64(lockTime) < blockTimeOrHeight {
		return true
	}

	// At this point, the transaction's lock time hasn't occurred yet, but
	// the transaction might still be finalized if the sequence number
	// for all transaction inputs is maxed out.
	for _, input := range tx.Inputs {
		if input.Sequence != math.MaxUint32 {
			return false
		}
	}
	return true
}

// CalcSequenceLock computes the relative lock-times of tx's inputs for a
// block with the given context. referencedEntries are the entries spent by
// tx in input order. Sequence locks only apply to non-coinbase transactions
// whose version, read as unsigned, is 2 and above.
func (v *transactionValidator) CalcSequenceLock(tx *externalapi.DomainTransaction,
	referencedEntries []externalapi.UTXOEntry, chainContext *externalapi.ChainContext) (
	*externalapi.SequenceLock, error) {

	// A value of -1 for each relative lock type represents a relative time
	// lock value that will allow a transaction to be included in a block
	// at any given height or time.
	sequenceLock := &externalapi.SequenceLock{Seconds: -1, BlockHeight: -1}

	if transactionhelper.IsCoinBase(tx) || uint32(tx.Version) < 2 {
		return sequenceLock, nil
	}
	if len(referencedEntries) != len(tx.Inputs) {
		return nil, errors.Errorf("got %d referenced entries for %d inputs", len(referencedEntries), len(tx.Inputs))
	}

	for i, input := range tx.Inputs {
		inputHeight := int64(referencedEntries[i].BlockHeight())

		// Given a sequence number, we apply the relative time lock
		// mask in order to obtain the time lock delta required before
		// this input can be spent.
		sequenceNum := input.Sequence
		relativeLock := int64(sequenceNum & constants.SequenceLockTimeMask)

		switch {
		// Relative time locks are disabled for this input, so we can
		// skip any further calculation.
		case sequenceNum&constants.SequenceLockTimeDisabled == constants.SequenceLockTimeDisabled:
			continue
		case sequenceNum&constants.SequenceLockTimeIsSeconds == constants.SequenceLockTimeIsSeconds:
			// This input requires a relative time lock expressed
			// in seconds before it can be spent. It is measured
			// from the past median time of the block prior to the
			// one which included the referenced output.
			prevInputHeight := inputHeight - 1
			if prevInputHeight < 0 {
				prevInputHeight = 0
			}
			medianTime, err := v.ancestorPastMedianTime(chainContext, prevInputHeight)
			if err != nil {
				return nil, err
			}

			// Time based relative time-locks have a time granularity of
			// 512 seconds, so we shift left by this amount to convert
			// to the proper relative time-lock. We also subtract one
			// from the relative lock to maintain the original lockTime
			// semantics.
			timeLockSeconds := (relativeLock << constants.SequenceLockTimeGranularity) - 1
			timeLock := medianTime + timeLockSeconds
			if timeLock > sequenceLock.Seconds {
				sequenceLock.Seconds = timeLock
			}
		default:
			// The relative lock-time for this input is expressed
			// in blocks so we calculate the relative offset from
			// the input's height as its converted absolute
			// lock-time. We subtract one from the relative lock in
			// order to maintain the original lockTime semantics.
			blockHeight := inputHeight + relativeLock - 1
			if blockHeight > sequenceLock.BlockHeight {
				sequenceLock.BlockHeight = blockHeight
			}
		}
	}

	return sequenceLock, nil
}

// ancestorPastMedianTime returns the past median time of the block at the
// given height as seen from chainContext: the median timestamp of that block
// and the ones before it
func (v *transactionValidator) ancestorPastMedianTime(chainContext *externalapi.ChainContext,
	height int64) (int64, error) {

	headers := chainContext.PreviousHeaders
	index := int64(len(headers)) - int64(chainContext.Height) + height
	if index < 0 || index >= int64(len(headers)) {
		return 0, errors.Errorf("the header at height %d is not known to the context of "+
			"the block at height %d", height, chainContext.Height)
	}

	ancestorContext := &externalapi.ChainContext{
		Height:          externalapi.BlockHeight(height + 1),
		PreviousHeaders: headers[:index+1],
	}
	return v.pastMedianTimeManager.PastMedianTime(ancestorContext), nil
}

// SequenceLockActive determines if a transaction's sequence locks have been
// met, meaning that all the inputs of a given transaction have reached a
// height or time sufficient for their relative lock-time maturity.
func (v *transactionValidator) SequenceLockActive(sequenceLock *externalapi.SequenceLock,
	height externalapi.BlockHeight, medianTimePast int64) bool {

	return SequenceLockActive(sequenceLock, height, medianTimePast)
}

// SequenceLockActive reports whether a block at the given height and past
// median time satisfies sequenceLock
func SequenceLockActive(sequenceLock *externalapi.SequenceLock, height externalapi.BlockHeight,
	medianTimePast int64) bool {

	// If either the seconds, or height relative-lock time has not yet
	// reached, then the transaction is not yet mature according to its
	// sequence locks.
	return sequenceLock.Seconds < medianTimePast && sequenceLock.BlockHeight < int64(height)
}
