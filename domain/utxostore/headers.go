package utxostore

import (
	"bytes"
	"encoding/binary"

	"github.com/kaspanet/btcconsensus/domain/consensus/model/externalapi"
	"github.com/kaspanet/btcconsensus/domain/consensus/utils/serialization"
	"github.com/kaspanet/btcconsensus/infrastructure/db/database"
	"github.com/pkg/errors"
)

// Heights are big endian so that the cursor visits them in order
func headerKey(height externalapi.BlockHeight) *database.Key {
	var heightBytes [8]byte
	binary.BigEndian.PutUint64(heightBytes[:], uint64(height))
	return headersBucket.Key(heightBytes[:])
}

// StageHeader makes the next successful ApplyDiff record header as the
// header of the block at height, in the same database transaction as the
// diff. A set and its recorded headers therefore always describe the same
// chain.
func (s *Store) StageHeader(height externalapi.BlockHeight, header *externalapi.DomainBlockHeader) {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.stagedHeader = header
	s.stagedHeaderHeight = height
}

// DiscardStagedHeader drops a header staged by StageHeader that wasn't
// written yet
func (s *Store) DiscardStagedHeader() {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.stagedHeader = nil
}

// Headers returns the recorded headers ordered by height. They start at
// height 1 and have no gaps.
func (s *Store) Headers() ([]*externalapi.DomainBlockHeader, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	cursor, err := s.database.Cursor(headersBucket)
	if err != nil {
		return nil, err
	}
	defer cursor.Close()

	var headers []*externalapi.DomainBlockHeader
	for ok := cursor.First(); ok; ok = cursor.Next() {
		key, err := cursor.Key()
		if err != nil {
			return nil, err
		}
		height := binary.BigEndian.Uint64(key.Suffix())
		if height != uint64(len(headers))+1 {
			return nil, errors.Errorf("the recorded headers skip from height %d to %d", len(headers), height)
		}
		serializedHeader, err := cursor.Value()
		if err != nil {
			return nil, err
		}
		header, err := serialization.DeserializeHeader(bytes.NewReader(serializedHeader))
		if err != nil {
			return nil, errors.Wrapf(err, "corrupt header at height %d", height)
		}
		headers = append(headers, header)
	}
	return headers, nil
}
