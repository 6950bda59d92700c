package model

import "github.com/kaspanet/btcconsensus/domain/consensus/model/externalapi"

// ConsensusStateManager applies blocks to, and removes them from, a UTXO set
type ConsensusStateManager interface {
	ConnectBlock(block *externalapi.DomainBlock, utxoSet externalapi.UTXOSet,
		chainContext *externalapi.ChainContext, flags externalapi.ValidationFlags) (*externalapi.BlockConnectionResult, error)
	DisconnectBlock(block *externalapi.DomainBlock, undoDiff externalapi.UTXODiff, utxoSet externalapi.UTXOSet) error

	AddBlockToChain(chain *externalapi.ActiveChain, block *externalapi.DomainBlock,
		flags externalapi.ValidationFlags) (*externalapi.BlockConnectionResult, error)
	RemoveTipFromChain(chain *externalapi.ActiveChain) (*externalapi.ChainBlock, error)
}
