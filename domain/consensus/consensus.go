package consensus

import (
	"math/big"
	"sync"

	"github.com/kaspanet/btcconsensus/domain/chaincfg"
	"github.com/kaspanet/btcconsensus/domain/consensus/model"
	"github.com/kaspanet/btcconsensus/domain/consensus/model/externalapi"
	"github.com/kaspanet/btcconsensus/domain/consensus/utils/pow"
	"github.com/kaspanet/btcconsensus/domain/consensus/utils/transactionhelper"
	"github.com/kaspanet/btcconsensus/infrastructure/logger"
)

// Consensus maintains the current core state of the node
type Consensus interface {
	NewActiveChain(utxoSet externalapi.UTXOSet) *externalapi.ActiveChain
	ValidateTransaction(tx *externalapi.DomainTransaction, utxoSet externalapi.UTXOSet,
		height externalapi.BlockHeight) (externalapi.Amount, error)
	ConnectBlock(chain *externalapi.ActiveChain, block *externalapi.DomainBlock,
		flags externalapi.ValidationFlags) (*externalapi.BlockConnectionResult, error)
	DisconnectTip(chain *externalapi.ActiveChain) (*externalapi.ChainBlock, error)
	ReorganizeChain(active *externalapi.ActiveChain, competing []*externalapi.DomainBlock,
		flags externalapi.ValidationFlags) (*externalapi.ActiveChain, error)
	CheckProofOfWork(header *externalapi.DomainBlockHeader) error
	Params() *chaincfg.Params
}

type consensus struct {
	lock             sync.Mutex
	params           *chaincfg.Params
	verifyInvariants bool

	transactionValidator  model.TransactionValidator
	consensusStateManager model.ConsensusStateManager
	reorganizationManager model.ReorganizationManager
	invariantVerifier     model.InvariantVerifier
	coinbaseManager       model.CoinbaseManager
}

// NewActiveChain returns an empty chain on top of the genesis block whose
// UTXO set is utxoSet
func (s *consensus) NewActiveChain(utxoSet externalapi.UTXOSet) *externalapi.ActiveChain {
	return &externalapi.ActiveChain{
		BaseHash:    s.params.GenesisHash,
		BaseHeight:  1,
		BaseHeaders: []*externalapi.DomainBlockHeader{s.params.GenesisBlock.Header},
		UTXOSet:     utxoSet,
		Work:        new(big.Int),
	}
}

// ValidateTransaction validates tx against utxoSet as if it were included in
// a block at height, and returns its fee. Coinbase transactions are only
// checked in isolation and have no fee.
func (s *consensus) ValidateTransaction(tx *externalapi.DomainTransaction, utxoSet externalapi.UTXOSet,
	height externalapi.BlockHeight) (externalapi.Amount, error) {

	err := s.transactionValidator.CheckTransactionInIsolation(tx)
	if err != nil {
		return 0, err
	}
	if transactionhelper.IsCoinBase(tx) {
		return 0, nil
	}
	return s.transactionValidator.CheckTransactionInContext(tx, utxoSet, height,
		s.params.ScriptFlagsAtHeight(height))
}

// ConnectBlock validates block and, if valid, adds it to the tip of chain.
// The chain is left unchanged when the block is rejected.
func (s *consensus) ConnectBlock(chain *externalapi.ActiveChain, block *externalapi.DomainBlock,
	flags externalapi.ValidationFlags) (*externalapi.BlockConnectionResult, error) {

	s.lock.Lock()
	defer s.lock.Unlock()

	var before model.Multiset
	if s.verifyInvariants {
		var err error
		before, err = s.invariantVerifier.Commitment(chain.UTXOSet)
		if err != nil {
			return nil, err
		}
	}

	result, err := s.consensusStateManager.AddBlockToChain(chain, block, flags)
	if err != nil {
		return result, err
	}

	if s.verifyInvariants {
		err = s.invariantVerifier.VerifyConnection(result)
		if err != nil {
			return result, err
		}
		err = s.invariantVerifier.VerifyCommitment(before, result.UTXODiff, chain.UTXOSet)
		if err != nil {
			return result, err
		}
		err = s.invariantVerifier.VerifyChain(chain)
		if err != nil {
			return result, err
		}
	}

	log.Debugf("Connected block %s at height %d", result.BlockHash, result.Height)
	return result, nil
}

// DisconnectTip removes the last block of chain and restores the UTXO set to
// its state before that block was connected
func (s *consensus) DisconnectTip(chain *externalapi.ActiveChain) (*externalapi.ChainBlock, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	var before model.Multiset
	if s.verifyInvariants && chain.Tip() != nil {
		var err error
		before, err = s.invariantVerifier.Commitment(chain.UTXOSet)
		if err != nil {
			return nil, err
		}
	}

	removed, err := s.consensusStateManager.RemoveTipFromChain(chain)
	if err != nil {
		return nil, err
	}

	if s.verifyInvariants {
		err = s.invariantVerifier.VerifyCommitment(before, removed.UndoDiff.Reversed(), chain.UTXOSet)
		if err != nil {
			return removed, err
		}
		err = s.invariantVerifier.VerifyChain(chain)
		if err != nil {
			return removed, err
		}
	}
	return removed, nil
}

// ReorganizeChain returns the chain obtained by replacing the blocks of
// active after the parent of competing[0] with competing, provided competing
// carries more work. active itself is never modified.
func (s *consensus) ReorganizeChain(active *externalapi.ActiveChain, competing []*externalapi.DomainBlock,
	flags externalapi.ValidationFlags) (*externalapi.ActiveChain, error) {

	s.lock.Lock()
	defer s.lock.Unlock()

	onEnd := logger.LogAndMeasureExecutionTime(log, "consensus.ReorganizeChain")
	defer onEnd()

	reorganized, err := s.reorganizationManager.ReorganizeChain(active, competing, flags)
	if err != nil {
		return nil, err
	}
	if s.verifyInvariants {
		err = s.invariantVerifier.VerifyChain(reorganized)
		if err != nil {
			return nil, err
		}
	}
	return reorganized, nil
}

// CheckProofOfWork checks that header's target is valid for the network and
// that its hash meets it
func (s *consensus) CheckProofOfWork(header *externalapi.DomainBlockHeader) error {
	return pow.CheckProofOfWork(header, s.params.PowLimit)
}

// Params returns the network parameters the consensus validates against
func (s *consensus) Params() *chaincfg.Params {
	return s.params
}
