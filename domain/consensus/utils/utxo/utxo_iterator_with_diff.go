package utxo

import (
	"github.com/kaspanet/btcconsensus/domain/consensus/model/externalapi"
	"github.com/pkg/errors"
)

// ForEach visits the entries of the base set with the view's diff applied,
// in outpoint order. The base set must implement UTXOSetIterator.
func (v *DiffView) ForEach(f func(outpoint *externalapi.DomainOutpoint, entry externalapi.UTXOEntry) error) error {
	baseIterator, ok := v.base.(externalapi.UTXOSetIterator)
	if !ok {
		return errors.Errorf("base UTXO set of type %T can't be iterated", v.base)
	}

	toAdd := v.diff.toAdd.sortedOutpoints()
	toAddIndex := 0

	// Entries of toAdd that sort before the current base outpoint are
	// emitted first, keeping the merged sequence ordered.
	flushToAddBefore := func(outpoint *externalapi.DomainOutpoint) error {
		for toAddIndex < len(toAdd) &&
			(outpoint == nil || LessOutpoint(&toAdd[toAddIndex], outpoint)) {

			addedOutpoint := toAdd[toAddIndex]
			toAddIndex++
			err := f(&addedOutpoint, v.diff.toAdd[addedOutpoint])
			if err != nil {
				return err
			}
		}
		return nil
	}

	err := baseIterator.ForEach(func(outpoint *externalapi.DomainOutpoint, entry externalapi.UTXOEntry) error {
		err := flushToAddBefore(outpoint)
		if err != nil {
			return err
		}
		if v.diff.toRemove.Contains(outpoint) {
			return nil
		}
		return f(outpoint, entry)
	})
	if err != nil {
		return err
	}

	return flushToAddBefore(nil)
}
