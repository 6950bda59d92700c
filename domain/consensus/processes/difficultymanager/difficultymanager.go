package difficultymanager

import (
	"github.com/kaspanet/btcconsensus/domain/chaincfg"
	"github.com/kaspanet/btcconsensus/domain/consensus/model"
	"github.com/kaspanet/btcconsensus/domain/consensus/model/externalapi"
)

// difficultyManager provides a method to resolve the
// difficulty value of a block
type difficultyManager struct {
	params *chaincfg.Params
}

// New instantiates a new DifficultyManager
func New(params *chaincfg.Params) model.DifficultyManager {
	return &difficultyManager{
		params: params,
	}
}

func (dm *difficultyManager) NextWorkRequired(window []*externalapi.DomainBlockHeader) (uint32, error) {
	return NextWorkRequired(window, dm.params)
}

// RequiredDifficulty returns the bits a block with the given context must
// carry. isKnown is false when the context does not hold enough headers to
// tell, in which case the caller is expected to skip the check.
func (dm *difficultyManager) RequiredDifficulty(chainContext *externalapi.ChainContext) (
	bits uint32, isKnown bool, err error) {

	parent := chainContext.Parent()
	if chainContext.Height == 0 || parent == nil {
		return 0, false, nil
	}

	if dm.params.PowNoRetargeting {
		return parent.Bits, true, nil
	}

	blocksPerRetarget := dm.params.BlocksPerRetarget()
	if uint64(chainContext.Height)%blocksPerRetarget != 0 {
		return parent.Bits, true, nil
	}

	if uint64(len(chainContext.PreviousHeaders)) < blocksPerRetarget {
		log.Debugf("Not enough headers to verify the retarget at height %d: have %d, need %d",
			chainContext.Height, len(chainContext.PreviousHeaders), blocksPerRetarget)
		return 0, false, nil
	}

	window := chainContext.PreviousHeaders[uint64(len(chainContext.PreviousHeaders))-blocksPerRetarget:]
	bits, err = dm.NextWorkRequired(window)
	if err != nil {
		return 0, false, err
	}
	return bits, true, nil
}
