package model

import "github.com/kaspanet/btcconsensus/domain/consensus/model/externalapi"

// DifficultyManager provides a method to resolve the
// difficulty value of a block
type DifficultyManager interface {
	NextWorkRequired(window []*externalapi.DomainBlockHeader) (uint32, error)
	RequiredDifficulty(chainContext *externalapi.ChainContext) (bits uint32, isKnown bool, err error)
}
