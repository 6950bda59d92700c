package reorganizationmanager

import (
	"math/big"

	"github.com/kaspanet/btcconsensus/domain/consensus/model/externalapi"
	"github.com/kaspanet/btcconsensus/domain/consensus/ruleerrors"
	"github.com/kaspanet/btcconsensus/domain/consensus/utils/consensushashing"
	"github.com/kaspanet/btcconsensus/domain/consensus/utils/math"
	"github.com/kaspanet/btcconsensus/domain/consensus/utils/utxo"
	"github.com/kaspanet/btcconsensus/infrastructure/logger"
	"github.com/pkg/errors"
)

// ReorganizeChain switches active to the chain made of the blocks of active
// up to the parent of competing[0], followed by competing. The switch only
// happens if competing carries strictly more work than the blocks of active
// it replaces.
//
// The work is done on a copy of active's UTXO set, so active is left
// untouched whatever the outcome. On success the returned chain owns the new
// set.
func (rm *reorganizationManager) ReorganizeChain(active *externalapi.ActiveChain,
	competing []*externalapi.DomainBlock, flags externalapi.ValidationFlags) (*externalapi.ActiveChain, error) {

	onEnd := logger.LogAndMeasureExecutionTime(log, "ReorganizeChain")
	defer onEnd()

	if len(competing) == 0 {
		return nil, errors.Wrapf(ruleerrors.ErrEmptyCompetingChain, "no competing blocks to reorganize to")
	}

	forkIndex, err := FindForkPoint(active, competing[0].Header.PrevBlockHash)
	if err != nil {
		return nil, err
	}

	replaced := active.Blocks[forkIndex+1:]
	activeWork := new(big.Int)
	for _, chainBlock := range replaced {
		activeWork.Add(activeWork, chainBlock.Work)
	}
	competingWork := CalcChainWork(competing)
	if !ShouldReorganize(activeWork, competingWork) {
		return nil, errors.Wrapf(ruleerrors.ErrInsufficientChainWork, "competing chain has work %s "+
			"which is not more than the %s of the %d active blocks it replaces",
			competingWork, activeWork, len(replaced))
	}

	log.Infof("Reorganizing: disconnecting %d blocks and connecting %d blocks on top of height %d",
		len(replaced), len(competing), active.BaseHeight+externalapi.BlockHeight(forkIndex))

	workingSet, err := utxo.CloneSet(active.UTXOSet)
	if err != nil {
		return nil, ruleerrors.Wrap(ruleerrors.ErrReorganizationFailure, err, "failed copying the UTXO set")
	}
	working := active.Truncated(len(active.Blocks))
	working.UTXOSet = workingSet

	for len(working.Blocks) > forkIndex+1 {
		removed, err := rm.consensusStateManager.RemoveTipFromChain(working)
		if err != nil {
			return nil, ruleerrors.Wrap(ruleerrors.ErrReorganizationFailure, err,
				"failed disconnecting block %s", working.Tip().Hash)
		}
		log.Debugf("Disconnected block %s at height %d", removed.Hash, removed.Height)
	}

	for i, block := range competing {
		_, err := rm.consensusStateManager.AddBlockToChain(working, block, flags)
		if err != nil {
			return nil, ruleerrors.Wrap(ruleerrors.ErrReorganizationFailure, err,
				"competing block %d (%s) failed to connect", i, consensushashing.BlockHash(block))
		}
	}

	log.Infof("Reorganized to tip %s at height %d", working.TipHash(), working.NextHeight()-1)
	return working, nil
}

// FindForkPoint returns the index in active.Blocks of the block with the
// given hash, or -1 if the hash is the base of active
func FindForkPoint(active *externalapi.ActiveChain, hash *externalapi.DomainHash) (int, error) {
	if index, ok := active.BlockIndex(hash); ok {
		return index, nil
	}
	if active.BaseHash != nil && active.BaseHash.Equal(hash) {
		return -1, nil
	}
	return 0, errors.Wrapf(ruleerrors.ErrUnknownForkPoint, "competing chain builds on %s "+
		"which is not part of the active chain", hash)
}

// CalcChainWork returns the sum of the work of the headers of blocks
func CalcChainWork(blocks []*externalapi.DomainBlock) *big.Int {
	work := new(big.Int)
	for _, block := range blocks {
		work.Add(work, math.CalcWork(block.Header.Bits))
	}
	return work
}

// ShouldReorganize returns whether a chain with competingWork should
// replace one with activeWork. Ties keep the active chain.
func ShouldReorganize(activeWork, competingWork *big.Int) bool {
	return competingWork.Cmp(activeWork) > 0
}
