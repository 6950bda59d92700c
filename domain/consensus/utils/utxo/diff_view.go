package utxo

import (
	"github.com/kaspanet/btcconsensus/domain/consensus/model/externalapi"
	"github.com/kaspanet/btcconsensus/domain/consensus/ruleerrors"
	"github.com/kaspanet/btcconsensus/domain/consensus/utils/consensushashing"
	"github.com/kaspanet/btcconsensus/domain/consensus/utils/txscript"
	"github.com/kaspanet/btcconsensus/domain/consensus/utils/transactionhelper"
	"github.com/pkg/errors"
)

// DiffView is a read-through overlay of a UTXO set. Transactions added to the
// view are recorded in its diff and the base set is never written to, so
// dropping the view discards them.
type DiffView struct {
	base externalapi.UTXOSet
	diff *UTXODiff

	allowDuplicates bool
}

// NewDiffView returns an empty view over base
func NewDiffView(base externalapi.UTXOSet) *DiffView {
	return &DiffView{
		base: base,
		diff: NewUTXODiff(),
	}
}

// Get returns the entry at outpoint as seen through the view
func (v *DiffView) Get(outpoint *externalapi.DomainOutpoint) (externalapi.UTXOEntry, bool, error) {
	if v.diff.toRemove.Contains(outpoint) {
		return nil, false, nil
	}
	if entry, ok := v.diff.toAdd.Get(outpoint); ok {
		return entry, true, nil
	}
	return v.base.Get(outpoint)
}

// AllowDuplicateOutputs makes Insert leave an unspent entry in place when
// its outpoint is created again, instead of failing with ErrOverwriteTx.
// The two mainnet blocks exempt from BIP0030 are connected this way.
func (v *DiffView) AllowDuplicateOutputs() {
	v.allowDuplicates = true
}

// Insert adds entry to the view
func (v *DiffView) Insert(outpoint *externalapi.DomainOutpoint, entry externalapi.UTXOEntry) error {
	_, found, err := v.Get(outpoint)
	if err != nil {
		return err
	}
	if found {
		if v.allowDuplicates {
			return nil
		}
		return errors.Wrapf(ruleerrors.ErrOverwriteTx, "outpoint %s already exists", outpoint)
	}
	if removedEntry, ok := v.diff.toRemove.Get(outpoint); ok {
		if !removedEntry.Equal(entry) {
			return errors.Wrapf(ruleerrors.ErrOverwriteTx,
				"outpoint %s was spent and is recreated with different content", outpoint)
		}
		v.diff.toRemove.remove(outpoint)
		return nil
	}
	return v.diff.addEntry(outpoint, entry)
}

// Remove spends the entry at outpoint. It returns an ErrMissingTxOut rule
// error if the view doesn't hold it.
func (v *DiffView) Remove(outpoint *externalapi.DomainOutpoint) error {
	entry, found, err := v.Get(outpoint)
	if err != nil {
		return err
	}
	if !found {
		return ruleerrors.NewErrMissingTxOut([]*externalapi.DomainOutpoint{outpoint.Clone()})
	}
	return v.diff.removeEntry(outpoint, entry)
}

// AddTransaction spends the inputs of tx and adds its spendable outputs at
// the given height. Outputs that provably can't be spent are not added.
// On error the view may hold part of the transaction and should be
// discarded.
func (v *DiffView) AddTransaction(tx *externalapi.DomainTransaction, blockHeight externalapi.BlockHeight) error {
	isCoinbase := transactionhelper.IsCoinBase(tx)
	if !isCoinbase {
		for _, input := range tx.Inputs {
			err := v.Remove(&input.PreviousOutpoint)
			if err != nil {
				return err
			}
		}
	}

	transactionID := consensushashing.TransactionID(tx)
	for i, output := range tx.Outputs {
		if txscript.IsUnspendable(output.ScriptPublicKey) {
			continue
		}
		outpoint := externalapi.NewDomainOutpoint(transactionID, uint32(i))
		entry := NewUTXOEntry(output.Value, output.ScriptPublicKey, isCoinbase, blockHeight)
		err := v.Insert(outpoint, entry)
		if err != nil {
			return err
		}
	}

	return nil
}

// Diff returns the changes recorded by the view. The diff is owned by the
// view until the view is dropped.
func (v *DiffView) Diff() *UTXODiff {
	return v.diff
}

// Base returns the set the view reads through to
func (v *DiffView) Base() externalapi.UTXOSet {
	return v.base
}
