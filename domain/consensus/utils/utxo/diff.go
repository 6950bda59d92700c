package utxo

import (
	"fmt"

	"github.com/kaspanet/btcconsensus/domain/consensus/model/externalapi"
	"github.com/pkg/errors"
)

// UTXODiff represents a diff between two UTXO sets. toAdd and toRemove never
// share an outpoint.
type UTXODiff struct {
	toAdd    utxoCollection
	toRemove utxoCollection
}

// NewUTXODiff creates a new, empty UTXODiff
func NewUTXODiff() *UTXODiff {
	return &UTXODiff{
		toAdd:    utxoCollection{},
		toRemove: utxoCollection{},
	}
}

// NewUTXODiffFromCollections creates a UTXODiff out of the given collections.
// It returns an error if they share an outpoint.
func NewUTXODiffFromCollections(toAdd, toRemove externalapi.UTXOCollection) (*UTXODiff, error) {
	diff := NewUTXODiff()
	err := toAdd.ForEach(func(outpoint *externalapi.DomainOutpoint, entry externalapi.UTXOEntry) error {
		diff.toAdd.add(outpoint, entry)
		return nil
	})
	if err != nil {
		return nil, err
	}
	err = toRemove.ForEach(func(outpoint *externalapi.DomainOutpoint, entry externalapi.UTXOEntry) error {
		if diff.toAdd.Contains(outpoint) {
			return errors.Errorf("outpoint %s is both added and removed", outpoint)
		}
		diff.toRemove.add(outpoint, entry)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return diff, nil
}

// ToAdd returns the entries the diff adds
func (d *UTXODiff) ToAdd() externalapi.UTXOCollection {
	return d.toAdd
}

// ToRemove returns the entries the diff removes, as they were before removal
func (d *UTXODiff) ToRemove() externalapi.UTXOCollection {
	return d.toRemove
}

// Reversed returns the diff that undoes d
func (d *UTXODiff) Reversed() externalapi.UTXODiff {
	return &UTXODiff{
		toAdd:    d.toRemove.clone(),
		toRemove: d.toAdd.clone(),
	}
}

// Clone returns a clone of this UTXODiff
func (d *UTXODiff) Clone() *UTXODiff {
	return &UTXODiff{
		toAdd:    d.toAdd.clone(),
		toRemove: d.toRemove.clone(),
	}
}

func (d *UTXODiff) String() string {
	return fmt.Sprintf("toAdd: %s; toRemove: %s", d.toAdd, d.toRemove)
}

// WithDiff returns the diff that is the result of applying d and then other
// to the same base.
//
// WithDiff follows a set of rules represented by the following 3 by 3 table:
//
//	         |           | this      |           |
//	---------+-----------+-----------+-----------+-----------
//	         |           | toAdd     | toRemove  | None
//	---------+-----------+-----------+-----------+-----------
//	other    | toAdd     | X         | (*)       | toAdd
//	---------+-----------+-----------+-----------+-----------
//	         | toRemove  | -         | X         | toRemove
//	---------+-----------+-----------+-----------+-----------
//	         | None      | toAdd     | toRemove  | -
//
// Key:
// -		Don't add anything to the result
// X		Return an error
// toAdd	Add the UTXO into the toAdd collection of the result
// toRemove	Add the UTXO into the toRemove collection of the result
// (*)		Nothing if both entries are equal, otherwise keep both the removal
//
//	and the addition
func (d *UTXODiff) WithDiff(other *UTXODiff) (*UTXODiff, error) {
	result := NewUTXODiff()

	for outpoint, entry := range d.toAdd {
		outpoint := outpoint
		if other.toAdd.Contains(&outpoint) {
			return nil, errors.Errorf("WithDiff: outpoint %s both in d.toAdd and in other.toAdd", outpoint)
		}
		if !other.toRemove.Contains(&outpoint) {
			result.toAdd.add(&outpoint, entry)
		}
	}

	for outpoint, entry := range d.toRemove {
		outpoint := outpoint
		if other.toRemove.Contains(&outpoint) {
			return nil, errors.Errorf("WithDiff: outpoint %s both in d.toRemove and in other.toRemove", outpoint)
		}
		otherEntry, isReAdded := other.toAdd.Get(&outpoint)
		if !isReAdded || !otherEntry.Equal(entry) {
			result.toRemove.add(&outpoint, entry)
		}
	}

	for outpoint, entry := range other.toAdd {
		outpoint := outpoint
		removedEntry, wasRemoved := d.toRemove.Get(&outpoint)
		if !wasRemoved || !removedEntry.Equal(entry) {
			result.toAdd.add(&outpoint, entry)
		}
	}

	for outpoint, entry := range other.toRemove {
		outpoint := outpoint
		if !d.toAdd.Contains(&outpoint) {
			result.toRemove.add(&outpoint, entry)
		}
	}

	// An outpoint removed by d and re-added with a different entry by other
	// would otherwise be in both collections.
	for outpoint := range result.toAdd {
		outpoint := outpoint
		if result.toRemove.Contains(&outpoint) {
			return nil, errors.Errorf("WithDiff: outpoint %s is replaced, which a diff can't express", outpoint)
		}
	}

	return result, nil
}

// addEntry records that entry was created at outpoint
func (d *UTXODiff) addEntry(outpoint *externalapi.DomainOutpoint, entry externalapi.UTXOEntry) error {
	if d.toRemove.Contains(outpoint) {
		return errors.Errorf("cannot add outpoint %s that was removed by the same diff", outpoint)
	}
	if d.toAdd.Contains(outpoint) {
		return errors.Errorf("cannot add outpoint %s twice", outpoint)
	}
	d.toAdd.add(outpoint, entry)
	return nil
}

// removeEntry records that the entry at outpoint was spent
func (d *UTXODiff) removeEntry(outpoint *externalapi.DomainOutpoint, entry externalapi.UTXOEntry) error {
	if d.toAdd.Contains(outpoint) {
		d.toAdd.remove(outpoint)
		return nil
	}
	if d.toRemove.Contains(outpoint) {
		return errors.Errorf("cannot remove outpoint %s twice", outpoint)
	}
	d.toRemove.add(outpoint, entry)
	return nil
}
