package model

import "github.com/kaspanet/btcconsensus/domain/consensus/model/externalapi"

// ReorganizationManager switches an active chain to a competing chain with
// more work
type ReorganizationManager interface {
	ReorganizeChain(active *externalapi.ActiveChain, competing []*externalapi.DomainBlock,
		flags externalapi.ValidationFlags) (*externalapi.ActiveChain, error)
}
