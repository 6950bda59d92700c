package utxo

import (
	"sync"

	"github.com/kaspanet/btcconsensus/domain/consensus/model/externalapi"
	"github.com/pkg/errors"
)

// InMemoryUTXOSet is a UTXO set held entirely in memory. It is safe for
// concurrent use.
type InMemoryUTXOSet struct {
	lock       sync.RWMutex
	collection utxoCollection
}

// NewInMemoryUTXOSet returns an empty in-memory UTXO set
func NewInMemoryUTXOSet() *InMemoryUTXOSet {
	return &InMemoryUTXOSet{collection: utxoCollection{}}
}

// Get returns the entry at outpoint
func (s *InMemoryUTXOSet) Get(outpoint *externalapi.DomainOutpoint) (externalapi.UTXOEntry, bool, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	entry, ok := s.collection.Get(outpoint)
	return entry, ok, nil
}

// Insert sets the entry at outpoint, replacing any previous one
func (s *InMemoryUTXOSet) Insert(outpoint *externalapi.DomainOutpoint, entry externalapi.UTXOEntry) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.collection.add(outpoint, entry)
	return nil
}

// Remove deletes the entry at outpoint. Removing a missing outpoint is a
// no-op.
func (s *InMemoryUTXOSet) Remove(outpoint *externalapi.DomainOutpoint) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.collection.remove(outpoint)
	return nil
}

// ApplyDiff applies diff atomically: either every change is made or, if the
// diff does not fit the set, none is.
func (s *InMemoryUTXOSet) ApplyDiff(diff externalapi.UTXODiff) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	err := checkDiffFits(s.collection, diff)
	if err != nil {
		return err
	}

	err = diff.ToRemove().ForEach(func(outpoint *externalapi.DomainOutpoint, _ externalapi.UTXOEntry) error {
		s.collection.remove(outpoint)
		return nil
	})
	if err != nil {
		return err
	}
	return diff.ToAdd().ForEach(func(outpoint *externalapi.DomainOutpoint, entry externalapi.UTXOEntry) error {
		s.collection.add(outpoint, entry)
		return nil
	})
}

// ForEach visits the set's entries in outpoint order. f must not modify the
// set.
func (s *InMemoryUTXOSet) ForEach(f func(outpoint *externalapi.DomainOutpoint, entry externalapi.UTXOEntry) error) error {
	s.lock.RLock()
	defer s.lock.RUnlock()

	return s.collection.ForEach(f)
}

// CloneUTXOSet returns an independent copy of the set
func (s *InMemoryUTXOSet) CloneUTXOSet() (externalapi.UTXOSet, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	return &InMemoryUTXOSet{collection: s.collection.clone()}, nil
}

// Len returns the number of entries in the set
func (s *InMemoryUTXOSet) Len() int {
	s.lock.RLock()
	defer s.lock.RUnlock()

	return s.collection.Len()
}

func (s *InMemoryUTXOSet) String() string {
	s.lock.RLock()
	defer s.lock.RUnlock()

	return s.collection.String()
}

// checkDiffFits makes sure every entry the diff removes is present with the
// same content and that no entry it adds already exists after the removals
func checkDiffFits(collection utxoCollection, diff externalapi.UTXODiff) error {
	err := diff.ToRemove().ForEach(func(outpoint *externalapi.DomainOutpoint, entry externalapi.UTXOEntry) error {
		existing, ok := collection.Get(outpoint)
		if !ok {
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
		if collection.Contains(outpoint) && !diff.ToRemove().Contains(outpoint) {
			return errors.Errorf("cannot add existing outpoint %s", outpoint)
		}
		return nil
	})
}
