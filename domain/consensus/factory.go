package consensus

import (
	"github.com/kaspanet/btcconsensus/domain/consensus/processes/blockvalidator"
	"github.com/kaspanet/btcconsensus/domain/consensus/processes/coinbasemanager"
	"github.com/kaspanet/btcconsensus/domain/consensus/processes/consensusstatemanager"
	"github.com/kaspanet/btcconsensus/domain/consensus/processes/difficultymanager"
	"github.com/kaspanet/btcconsensus/domain/consensus/processes/invariantverifier"
	"github.com/kaspanet/btcconsensus/domain/consensus/processes/pastmediantimemanager"
	"github.com/kaspanet/btcconsensus/domain/consensus/processes/reorganizationmanager"
	"github.com/kaspanet/btcconsensus/domain/consensus/processes/transactionvalidator"
)

// Factory instantiates new Consensuses
type Factory interface {
	NewConsensus(config *Config) Consensus
}

type factory struct{}

// NewFactory creates a new Consensus factory
func NewFactory() Factory {
	return &factory{}
}

// NewConsensus instantiates a new Consensus
func (f *factory) NewConsensus(config *Config) Consensus {
	params := &config.Params

	// Processes
	pastMedianTimeManager := pastmediantimemanager.New()
	difficultyManager := difficultymanager.New(params)
	coinbaseManager := coinbasemanager.New(params)
	transactionValidator := transactionvalidator.New(params,
		config.SignatureVerifier,
		pastMedianTimeManager)
	blockValidator := blockvalidator.New(params,
		difficultyManager,
		pastMedianTimeManager,
		transactionValidator)
	consensusStateManager := consensusstatemanager.New(params,
		blockValidator,
		transactionValidator,
		coinbaseManager,
		pastMedianTimeManager)
	reorganizationManager := reorganizationmanager.New(consensusStateManager)
	invariantVerifier := invariantverifier.New(coinbaseManager)

	return &consensus{
		params:           params,
		verifyInvariants: config.VerifyInvariants,

		transactionValidator:  transactionValidator,
		consensusStateManager: consensusStateManager,
		reorganizationManager: reorganizationManager,
		invariantVerifier:     invariantVerifier,
		coinbaseManager:       coinbaseManager,
	}
}
