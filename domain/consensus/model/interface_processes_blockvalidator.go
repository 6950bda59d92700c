package model

import "github.com/kaspanet/btcconsensus/domain/consensus/model/externalapi"

// BlockValidator exposes a set of validation classes, after which
// it's possible to determine whether a block is valid
type BlockValidator interface {
	ValidateHeaderInIsolation(header *externalapi.DomainBlockHeader, flags externalapi.ValidationFlags) error
	ValidateHeaderInContext(header *externalapi.DomainBlockHeader, chainContext *externalapi.ChainContext) error
	ValidateBodyInIsolation(block *externalapi.DomainBlock) error
	ValidateBodyInContext(block *externalapi.DomainBlock, chainContext *externalapi.ChainContext) error
}
