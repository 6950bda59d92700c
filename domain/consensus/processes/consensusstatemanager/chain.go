package consensusstatemanager

import (
	"github.com/kaspanet/btcconsensus/domain/consensus/model/externalapi"
	"github.com/kaspanet/btcconsensus/domain/consensus/utils/math"
	"github.com/pkg/errors"
)

// AddBlockToChain connects block on top of chain's tip and, if it connects,
// appends it to chain along with its undo data
func (csm *consensusStateManager) AddBlockToChain(chain *externalapi.ActiveChain, block *externalapi.DomainBlock,
	flags externalapi.ValidationFlags) (*externalapi.BlockConnectionResult, error) {

	chainContext := chain.ContextAt(len(chain.Blocks))
	result, err := csm.ConnectBlock(block, chain.UTXOSet, chainContext, flags)
	if err != nil {
		return result, err
	}

	chain.AppendBlock(&externalapi.ChainBlock{
		Block:    block,
		Hash:     result.BlockHash,
		Height:   result.Height,
		UndoDiff: result.UTXODiff,
		Work:     math.CalcWork(block.Header.Bits),
		Subsidy:  result.Subsidy,
	})
	return result, nil
}

// RemoveTipFromChain disconnects the tip of chain and removes it from chain
func (csm *consensusStateManager) RemoveTipFromChain(chain *externalapi.ActiveChain) (*externalapi.ChainBlock, error) {
	tip := chain.Tip()
	if tip == nil {
		return nil, errors.New("cannot remove the tip of an empty chain")
	}

	err := csm.DisconnectBlock(tip.Block, tip.UndoDiff, chain.UTXOSet)
	if err != nil {
		return nil, err
	}

	chain.RemoveTip()
	return tip, nil
}
