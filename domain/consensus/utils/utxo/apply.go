package utxo

import (
	"github.com/kaspanet/btcconsensus/domain/consensus/model/externalapi"
	"github.com/pkg/errors"
)

// ApplyDiffToSet applies diff to set. Sets implementing UTXODiffApplier apply
// it themselves. Other sets get it entry by entry after the diff was checked
// against their content, and the applied entries are rolled back if a write
// fails.
func ApplyDiffToSet(set externalapi.UTXOSet, diff externalapi.UTXODiff) error {
	if applier, ok := set.(externalapi.UTXODiffApplier); ok {
		return applier.ApplyDiff(diff)
	}

	err := checkDiffFitsSet(set, diff)
	if err != nil {
		return err
	}

	var undo []func() error
	rollback := func(cause error) error {
		for i := len(undo) - 1; i >= 0; i-- {
			undoErr := undo[i]()
			if undoErr != nil {
				return errors.Wrapf(cause, "rolling back a partially applied UTXO diff failed: %s", undoErr)
			}
		}
		return cause
	}

	err = diff.ToRemove().ForEach(func(outpoint *externalapi.DomainOutpoint, entry externalapi.UTXOEntry) error {
		err := set.Remove(outpoint)
		if err != nil {
			return err
		}
		outpoint = outpoint.Clone()
		undo = append(undo, func() error { return set.Insert(outpoint, entry) })
		return nil
	})
	if err != nil {
		return rollback(err)
	}

	err = diff.ToAdd().ForEach(func(outpoint *externalapi.DomainOutpoint, entry externalapi.UTXOEntry) error {
		err := set.Insert(outpoint, entry)
		if err != nil {
			return err
		}
		outpoint = outpoint.Clone()
		undo = append(undo, func() error { return set.Remove(outpoint) })
		return nil
	})
	if err != nil {
		return rollback(err)
	}

	return nil
}

func checkDiffFitsSet(set externalapi.UTXOSet, diff externalapi.UTXODiff) error {
	err := diff.ToRemove().ForEach(func(outpoint *externalapi.DomainOutpoint, entry externalapi.UTXOEntry) error {
		existing, found, err := set.Get(outpoint)
		if err != nil {
			return err
		}
		if !found {
			return errors.Errorf("cannot remove missing outpoint %s", outpoint)
		}
		if !existing.Equal(entry) {
			return errors.Errorf("outpoint %s holds a different entry than the one being removed", outpoint)
		}
		return nil
	})
	if err != nil {
		return err
	}

	return diff.ToAdd().ForEach(func(outpoint *externalapi.DomainOutpoint, _ externalapi.UTXOEntry) error {
		if diff.ToRemove().Contains(outpoint) {
			return nil
		}
		_, found, err := set.Get(outpoint)
		if err != nil {
			return err
		}
		if found {
			return errors.Errorf("cannot add existing outpoint %s", outpoint)
		}
		return nil
	})
}

// CloneSet returns an independent copy of set. Sets that implement
// UTXOSetCloner clone themselves, sets that only implement UTXOSetIterator
// are copied into memory.
func CloneSet(set externalapi.UTXOSet) (externalapi.UTXOSet, error) {
	if cloner, ok := set.(externalapi.UTXOSetCloner); ok {
		return cloner.CloneUTXOSet()
	}
	iterator, ok := set.(externalapi.UTXOSetIterator)
	if !ok {
		return nil, errors.Errorf("UTXO set of type %T can neither be cloned nor iterated", set)
	}

	clone := NewInMemoryUTXOSet()
	err := iterator.ForEach(func(outpoint *externalapi.DomainOutpoint, entry externalapi.UTXOEntry) error {
		clone.collection.add(outpoint, entry)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return clone, nil
}
