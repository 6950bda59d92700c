package model

import "github.com/kaspanet/btcconsensus/domain/consensus/model/externalapi"

// InvariantVerifier checks the invariants that must hold between state
// changing operations. A failed check means a bug, not an invalid block.
type InvariantVerifier interface {
	VerifyChain(chain *externalapi.ActiveChain) error
	VerifyConnection(result *externalapi.BlockConnectionResult) error
	VerifyCommitment(before Multiset, diff externalapi.UTXODiff, after externalapi.UTXOSet) error
	Commitment(set externalapi.UTXOSet) (Multiset, error)
}
