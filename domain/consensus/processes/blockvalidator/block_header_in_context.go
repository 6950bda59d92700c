package blockvalidator

import (
	"github.com/kaspanet/btcconsensus/domain/consensus/model/externalapi"
	"github.com/kaspanet/btcconsensus/domain/consensus/ruleerrors"
	"github.com/kaspanet/btcconsensus/domain/consensus/utils/consensushashing"
	"github.com/pkg/errors"
)

// ValidateHeaderInContext validates the header against the headers that
// precede it
func (v *blockValidator) ValidateHeaderInContext(header *externalapi.DomainBlockHeader,
	chainContext *externalapi.ChainContext) error {

	err := v.checkParentHash(header, chainContext)
	if err != nil {
		return err
	}

	err = v.checkDifficulty(header, chainContext)
	if err != nil {
		return err
	}

	err = v.checkMedianTimePast(header, chainContext)
	if err != nil {
		return err
	}

	return v.checkBlockVersion(header, chainContext)
}

func (v *blockValidator) checkParentHash(header *externalapi.DomainBlockHeader,
	chainContext *externalapi.ChainContext) error {

	parent := chainContext.Parent()
	if parent == nil {
		return nil
	}
	parentHash := consensushashing.HeaderHash(parent)
	if !header.PrevBlockHash.Equal(parentHash) {
		return errors.Wrapf(ruleerrors.ErrUnexpectedPrevBlock, "block builds on %s "+
			"instead of %s", header.PrevBlockHash, parentHash)
	}
	return nil
}

func (v *blockValidator) checkDifficulty(header *externalapi.DomainBlockHeader,
	chainContext *externalapi.ChainContext) error {

	expectedBits, isKnown, err := v.difficultyManager.RequiredDifficulty(chainContext)
	if err != nil {
		return err
	}
	if !isKnown {
		// Only genesis has no required difficulty on a chain known from its start
		if chainContext.Height > 0 {
			log.Warnf("Skipping the difficulty check of the block at height %d: its context holds "+
				"only %d previous headers", chainContext.Height, len(chainContext.PreviousHeaders))
		}
		return nil
	}
	if header.Bits != expectedBits {
		return errors.Wrapf(ruleerrors.ErrUnexpectedDifficulty, "block difficulty of %08x "+
			"is not the expected value of %08x", header.Bits, expectedBits)
	}
	return nil
}

// checkMedianTimePast ensures the timestamp is after the median time of
// the last several blocks
func (v *blockValidator) checkMedianTimePast(header *externalapi.DomainBlockHeader,
	chainContext *externalapi.ChainContext) error {

	if len(chainContext.PreviousHeaders) == 0 {
		return nil
	}
	medianTime := v.pastMedianTimeManager.PastMedianTime(chainContext)
	if int64(header.Timestamp) <= medianTime {
		return errors.Wrapf(ruleerrors.ErrTimeTooOld, "block timestamp of %d is "+
			"not after expected %d", header.Timestamp, medianTime)
	}
	return nil
}

func (v *blockValidator) checkBlockVersion(header *externalapi.DomainBlockHeader,
	chainContext *externalapi.ChainContext) error {

	minimumVersion := v.params.MinimumBlockVersionAtHeight(chainContext.Height)
	if header.Version < minimumVersion {
		return errors.Wrapf(ruleerrors.ErrBlockVersionTooOld, "block version %d at height %d "+
			"is older than the minimum of %d", header.Version, chainContext.Height, minimumVersion)
	}
	return nil
}
