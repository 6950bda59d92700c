// Package utxostore keeps a UTXO set in a key-value database, so that the
// chain state survives restarts.
package utxostore

import (
	"sync"

	"github.com/kaspanet/btcconsensus/domain/consensus/model/externalapi"
	"github.com/kaspanet/btcconsensus/domain/consensus/utils/serialization"
	"github.com/kaspanet/btcconsensus/domain/consensus/utils/utxo"
	"github.com/kaspanet/btcconsensus/infrastructure/db/database"
	"github.com/pkg/errors"
)

var (
	utxoSetBucket = database.MakeBucket([]byte("utxo-set"))
	headersBucket = database.MakeBucket([]byte("headers"))
)

// Store is a UTXO set backed by a database. Entries are keyed by their
// serialized outpoint. Diffs are written in a single database transaction,
// so a crash never leaves half a block applied.
type Store struct {
	lock     sync.RWMutex
	database database.Database

	stagedHeader       *externalapi.DomainBlockHeader
	stagedHeaderHeight externalapi.BlockHeight
}

// New returns a Store that keeps its entries in db
func New(db database.Database) *Store {
	return &Store{database: db}
}

func outpointKey(outpoint *externalapi.DomainOutpoint) *database.Key {
	return utxoSetBucket.Key(utxo.SerializeOutpoint(outpoint))
}

func get(accessor database.DataAccessor, outpoint *externalapi.DomainOutpoint) (externalapi.UTXOEntry, bool, error) {
	serializedEntry, err := accessor.Get(outpointKey(outpoint))
	if database.IsNotFoundError(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	entry, err := utxo.DeserializeUTXOEntry(serializedEntry)
	if err != nil {
		return nil, false, errors.Wrapf(err, "corrupt UTXO entry at %s", outpoint)
	}
	return entry, true, nil
}

func put(accessor database.DataAccessor, outpoint *externalapi.DomainOutpoint, entry externalapi.UTXOEntry) error {
	serializedEntry, err := utxo.SerializeUTXOEntry(entry)
	if err != nil {
		return err
	}
	return accessor.Put(outpointKey(outpoint), serializedEntry)
}

// Get returns the entry at outpoint
func (s *Store) Get(outpoint *externalapi.DomainOutpoint) (externalapi.UTXOEntry, bool, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	return get(s.database, outpoint)
}

// Insert sets the entry at outpoint, replacing any previous one
func (s *Store) Insert(outpoint *externalapi.DomainOutpoint, entry externalapi.UTXOEntry) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	return put(s.database, outpoint, entry)
}

// Remove deletes the entry at outpoint. Removing a missing outpoint is a
// no-op.
func (s *Store) Remove(outpoint *externalapi.DomainOutpoint) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.database.Delete(outpointKey(outpoint))
}

// ApplyDiff checks diff against the stored entries and writes it in one
// database transaction. Nothing is written if the diff doesn't fit.
func (s *Store) ApplyDiff(diff externalapi.UTXODiff) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	dbTx, err := s.database.Begin()
	if err != nil {
		return err
	}
	defer dbTx.RollbackUnlessClosed()

	err = diff.ToRemove().ForEach(func(outpoint *externalapi.DomainOutpoint, entry externalapi.UTXOEntry) error {
		existing, found, err := get(dbTx, outpoint)
		if err != nil {
			return err
		}
		if !found {
			return errors.Errorf("cannot remove missing outpoint %s", outpoint)
		}
		if !existing.Equal(entry) {
			return errors.Errorf("outpoint %s holds a different entry than the one being removed", outpoint)
		}
		return dbTx.Delete(outpointKey(outpoint))
	})
	if err != nil {
		return err
	}

	err = diff.ToAdd().ForEach(func(outpoint *externalapi.DomainOutpoint, entry externalapi.UTXOEntry) error {
		// The transaction reads the database as it was when it began, so
		// an outpoint removed above still shows up here
		if !diff.ToRemove().Contains(outpoint) {
			exists, err := dbTx.Has(outpointKey(outpoint))
			if err != nil {
				return err
			}
			if exists {
				return errors.Errorf("cannot add existing outpoint %s", outpoint)
			}
		}
		return put(dbTx, outpoint, entry)
	})
	if err != nil {
		return err
	}

	if s.stagedHeader != nil {
		err = dbTx.Put(headerKey(s.stagedHeaderHeight), serialization.HeaderToBytes(s.stagedHeader))
		if err != nil {
			return err
		}
	}

	err = dbTx.Commit()
	if err != nil {
		return err
	}
	s.stagedHeader = nil
	log.Tracef("Applied a diff adding %d and removing %d entries", diff.ToAdd().Len(), diff.ToRemove().Len())
	return nil
}

// ForEach visits the stored entries in key order
func (s *Store) ForEach(f func(outpoint *externalapi.DomainOutpoint, entry externalapi.UTXOEntry) error) error {
	s.lock.RLock()
	defer s.lock.RUnlock()

	cursor, err := s.database.Cursor(utxoSetBucket)
	if err != nil {
		return err
	}
	defer cursor.Close()

	for ok := cursor.First(); ok; ok = cursor.Next() {
		key, err := cursor.Key()
		if err != nil {
			return err
		}
		outpoint, err := utxo.DeserializeOutpoint(key.Suffix())
		if err != nil {
			return err
		}
		serializedEntry, err := cursor.Value()
		if err != nil {
			return err
		}
		entry, err := utxo.DeserializeUTXOEntry(serializedEntry)
		if err != nil {
			return errors.Wrapf(err, "corrupt UTXO entry at %s", outpoint)
		}
		err = f(outpoint, entry)
		if err != nil {
			return err
		}
	}
	return nil
}

// Len returns the number of stored entries
func (s *Store) Len() (int, error) {
	count := 0
	err := s.ForEach(func(_ *externalapi.DomainOutpoint, _ externalapi.UTXOEntry) error {
		count++
		return nil
	})
	return count, err
}
