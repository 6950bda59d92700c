package blockvalidator

import (
	"bytes"

	"github.com/kaspanet/btcconsensus/domain/consensus/model/externalapi"
	"github.com/kaspanet/btcconsensus/domain/consensus/ruleerrors"
	"github.com/kaspanet/btcconsensus/domain/consensus/utils/consensushashing"
	"github.com/kaspanet/btcconsensus/domain/consensus/utils/merkle"
	"github.com/kaspanet/btcconsensus/domain/consensus/utils/transactionhelper"
	"github.com/kaspanet/btcconsensus/domain/consensus/utils/txscript"
	"github.com/pkg/errors"
)

// ValidateBodyInContext validates the block body against the chain it is
// connected to, without the UTXO set
func (v *blockValidator) ValidateBodyInContext(block *externalapi.DomainBlock,
	chainContext *externalapi.ChainContext) error {

	err := v.checkBlockTransactionsFinalized(block, chainContext)
	if err != nil {
		return err
	}

	err = v.checkCoinbaseHeight(block, chainContext)
	if err != nil {
		return err
	}

	return v.checkWitnessCommitment(block, chainContext)
}

// checkBlockTransactionsFinalized makes sure every transaction's absolute
// lock-time has passed. Once CSV is active lock-times are compared with the
// past median time rather than the block's own timestamp.
func (v *blockValidator) checkBlockTransactionsFinalized(block *externalapi.DomainBlock,
	chainContext *externalapi.ChainContext) error {

	blockTime := int64(block.Header.Timestamp)
	if v.params.IsCSVActive(chainContext.Height) {
		blockTime = v.pastMedianTimeManager.PastMedianTime(chainContext)
	}

	for _, tx := range block.Transactions {
		if !v.transactionValidator.IsFinalizedTransaction(tx, chainContext.Height, blockTime) {
			return errors.Wrapf(ruleerrors.ErrUnfinalizedTx, "block contains unfinalized "+
				"transaction %s", consensushashing.TransactionID(tx))
		}
	}
	return nil
}

// checkCoinbaseHeight makes sure that once BIP0034 is active the coinbase's
// signature script starts with the block height, pushed the way a script
// builder pushes an integer
func (v *blockValidator) checkCoinbaseHeight(block *externalapi.DomainBlock,
	chainContext *externalapi.ChainContext) error {

	if chainContext.Height < v.params.BIP0034Height {
		return nil
	}

	expectedPrefix, err := txscript.NewScriptBuilder().AddInt64(int64(chainContext.Height)).Script()
	if err != nil {
		return err
	}
	signatureScript := block.Transactions[transactionhelper.CoinbaseTransactionIndex].Inputs[0].SignatureScript
	if !bytes.HasPrefix(signatureScript, expectedPrefix) {
		return errors.Wrapf(ruleerrors.ErrBadCoinbaseHeight, "coinbase signature script %x doesn't start "+
			"with the serialized block height %d (%x)", signatureScript, chainContext.Height, expectedPrefix)
	}
	return nil
}

// checkWitnessCommitment validates the witness commitment of the coinbase, if
// any. Blocks carrying witness data must commit to it, and witness data is not
// allowed before segwit activates.
func (v *blockValidator) checkWitnessCommitment(block *externalapi.DomainBlock,
	chainContext *externalapi.ChainContext) error {

	if !v.params.IsSegwitActive(chainContext.Height) {
		for _, tx := range block.Transactions {
			if tx.HasWitness() {
				return errors.Wrapf(ruleerrors.ErrUnexpectedWitness, "block at height %d contains "+
					"witness data before segwit activation", chainContext.Height)
			}
		}
		return nil
	}

	coinbase := block.Transactions[transactionhelper.CoinbaseTransactionIndex]
	witnessCommitment, witnessFound := merkle.ExtractWitnessCommitment(coinbase)
	if !witnessFound {
		for _, tx := range block.Transactions {
			if tx.HasWitness() {
				return errors.Wrapf(ruleerrors.ErrUnexpectedWitness, "block contains transaction "+
					"with witness data, yet no witness commitment present")
			}
		}
		return nil
	}

	// The coinbase's witness must be exactly one item, the witness nonce
	coinbaseWitness := coinbase.Inputs[0].Witness
	if len(coinbaseWitness) != 1 || len(coinbaseWitness[0]) != merkle.CoinbaseWitnessDataLen {
		return errors.Wrapf(ruleerrors.ErrWitnessCommitmentMismatch, "the coinbase transaction "+
			"must have exactly one witness item of %d bytes", merkle.CoinbaseWitnessDataLen)
	}

	witnessMerkleRoot := merkle.CalculateWitnessMerkleRoot(block.Transactions)
	expectedCommitment := merkle.CalculateWitnessCommitment(witnessMerkleRoot, coinbaseWitness[0])
	if !bytes.Equal(expectedCommitment.ByteSlice(), witnessCommitment) {
		return errors.Wrapf(ruleerrors.ErrWitnessCommitmentMismatch, "witness commitment does not "+
			"match: computed %s, coinbase includes %x", expectedCommitment, witnessCommitment)
	}
	return nil
}
