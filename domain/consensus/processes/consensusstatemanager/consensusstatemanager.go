package consensusstatemanager

import (
	"github.com/kaspanet/btcconsensus/domain/chaincfg"
	"github.com/kaspanet/btcconsensus/domain/consensus/model"
)

// consensusStateManager moves a UTXO set from one block to the next
type consensusStateManager struct {
	params *chaincfg.Params

	blockValidator        model.BlockValidator
	transactionValidator  model.TransactionValidator
	coinbaseManager       model.CoinbaseManager
	pastMedianTimeManager model.PastMedianTimeManager
}

// New instantiates a new ConsensusStateManager
func New(
	params *chaincfg.Params,
	blockValidator model.BlockValidator,
	transactionValidator model.TransactionValidator,
	coinbaseManager model.CoinbaseManager,
	pastMedianTimeManager model.PastMedianTimeManager) model.ConsensusStateManager {

	return &consensusStateManager{
		params:                params,
		blockValidator:        blockValidator,
		transactionValidator:  transactionValidator,
		coinbaseManager:       coinbaseManager,
		pastMedianTimeManager: pastMedianTimeManager,
	}
}
