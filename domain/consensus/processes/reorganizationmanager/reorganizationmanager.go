package reorganizationmanager

import (
	"github.com/kaspanet/btcconsensus/domain/consensus/model"
)

type reorganizationManager struct {
	consensusStateManager model.ConsensusStateManager
}

// New instantiates a new ReorganizationManager
func New(consensusStateManager model.ConsensusStateManager) model.ReorganizationManager {
	return &reorganizationManager{
		consensusStateManager: consensusStateManager,
	}
}
