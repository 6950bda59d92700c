package invariantverifier

import (
	"math/big"

	"github.com/kaspanet/btcconsensus/domain/consensus/model"
	"github.com/kaspanet/btcconsensus/domain/consensus/model/externalapi"
	"github.com/kaspanet/btcconsensus/domain/consensus/ruleerrors"
	"github.com/kaspanet/btcconsensus/domain/consensus/utils/consensushashing"
	"github.com/kaspanet/btcconsensus/domain/consensus/utils/constants"
	"github.com/kaspanet/btcconsensus/domain/consensus/utils/math"
	"github.com/kaspanet/btcconsensus/domain/consensus/utils/multiset"
	"github.com/kaspanet/btcconsensus/domain/consensus/utils/utxo"
	"github.com/kaspanet/btcconsensus/infrastructure/logger"
	"github.com/pkg/errors"
)

type invariantVerifier struct {
	coinbaseManager model.CoinbaseManager
}

// New instantiates a new InvariantVerifier
func New(coinbaseManager model.CoinbaseManager) model.InvariantVerifier {
	return &invariantVerifier{
		coinbaseManager: coinbaseManager,
	}
}

// VerifyChain checks that the blocks of chain link to each other, that its
// work and supply are the sums of those of its blocks, and that its UTXO set
// holds no more value than was ever minted
func (iv *invariantVerifier) VerifyChain(chain *externalapi.ActiveChain) error {
	onEnd := logger.LogAndMeasureExecutionTime(log, "VerifyChain")
	defer onEnd()

	err := verifyLinks(chain)
	if err != nil {
		return err
	}

	work := new(big.Int)
	supply := externalapi.Amount(0)
	for _, chainBlock := range chain.Blocks {
		expectedWork := math.CalcWork(chainBlock.Block.Header.Bits)
		if chainBlock.Work.Cmp(expectedWork) != 0 {
			return errors.Wrapf(ruleerrors.ErrInvariantViolation, "block %s records work %s instead of %s",
				chainBlock.Hash, chainBlock.Work, expectedWork)
		}
		work.Add(work, chainBlock.Work)

		expectedSubsidy := iv.coinbaseManager.CalcBlockSubsidy(chainBlock.Height)
		if chainBlock.Subsidy != expectedSubsidy {
			return errors.Wrapf(ruleerrors.ErrInvariantViolation, "block %s records subsidy %s instead of %s",
				chainBlock.Hash, chainBlock.Subsidy, expectedSubsidy)
		}
		supply += chainBlock.Subsidy
	}

	if chain.Work == nil || chain.Work.Cmp(work) != 0 {
		return errors.Wrapf(ruleerrors.ErrInvariantViolation, "chain records work %s while its blocks sum to %s",
			chain.Work, work)
	}
	if chain.Supply != supply {
		return errors.Wrapf(ruleerrors.ErrInvariantViolation, "chain records supply %s while its blocks "+
			"minted %s", chain.Supply, supply)
	}
	if tip := chain.Tip(); tip != nil {
		maxSupply := iv.coinbaseManager.TotalSupply(tip.Height)
		if chain.Supply > maxSupply {
			return errors.Wrapf(ruleerrors.ErrSupplyCapExceeded, "chain supply of %s is above the %s "+
				"that can be minted up to height %d", chain.Supply, maxSupply, tip.Height)
		}
	}

	return verifySetValue(chain.UTXOSet, chain.NextHeight())
}

func verifyLinks(chain *externalapi.ActiveChain) error {
	previousHash := chain.BaseHash
	for i, chainBlock := range chain.Blocks {
		expectedHeight := chain.BaseHeight + externalapi.BlockHeight(i)
		if chainBlock.Height != expectedHeight {
			return errors.Wrapf(ruleerrors.ErrInvariantViolation, "block %d of the chain has height %d "+
				"instead of %d", i, chainBlock.Height, expectedHeight)
		}
		hash := consensushashing.BlockHash(chainBlock.Block)
		if !hash.Equal(chainBlock.Hash) {
			return errors.Wrapf(ruleerrors.ErrInvariantViolation, "block %d of the chain is recorded as %s "+
				"but hashes to %s", i, chainBlock.Hash, hash)
		}
		if previousHash != nil && !chainBlock.Block.Header.PrevBlockHash.Equal(previousHash) {
			return errors.Wrapf(ruleerrors.ErrInvariantViolation, "block %s builds on %s instead of %s",
				hash, chainBlock.Block.Header.PrevBlockHash, previousHash)
		}
		previousHash = hash
	}
	return nil
}

// verifySetValue checks the amount of every entry of set and their sum
// against MaxMoney. Sets that can't be iterated are skipped.
func verifySetValue(set externalapi.UTXOSet, nextHeight externalapi.BlockHeight) error {
	iterator, ok := set.(externalapi.UTXOSetIterator)
	if !ok {
		log.Debugf("Skipping the UTXO set value check of a %T", set)
		return nil
	}

	total := externalapi.Amount(0)
	return iterator.ForEach(func(outpoint *externalapi.DomainOutpoint, entry externalapi.UTXOEntry) error {
		if entry.Amount() < 0 || entry.Amount() > constants.MaxMoney {
			return errors.Wrapf(ruleerrors.ErrInvariantViolation, "UTXO %s has an amount of %s", outpoint,
				entry.Amount())
		}
		if entry.BlockHeight() >= nextHeight {
			return errors.Wrapf(ruleerrors.ErrInvariantViolation, "UTXO %s was created at height %d, "+
				"which is not below the next height %d", outpoint, entry.BlockHeight(), nextHeight)
		}
		total += entry.Amount()
		if total > constants.MaxMoney {
			return errors.Wrapf(ruleerrors.ErrSupplyCapExceeded, "the UTXO set holds more than %d",
				constants.MaxMoney)
		}
		return nil
	})
}

// VerifyConnection checks that the diff of a connected block never adds and
// removes the same outpoint, and that the block added no more value to the
// set than its subsidy
func (iv *invariantVerifier) VerifyConnection(result *externalapi.BlockConnectionResult) error {
	if result.State != externalapi.StateConnected {
		return errors.Wrapf(ruleerrors.ErrInvariantViolation, "block %s is in state %s", result.BlockHash,
			result.State)
	}

	diff := result.UTXODiff
	added := externalapi.Amount(0)
	err := diff.ToAdd().ForEach(func(outpoint *externalapi.DomainOutpoint, entry externalapi.UTXOEntry) error {
		if diff.ToRemove().Contains(outpoint) {
			return errors.Wrapf(ruleerrors.ErrInvariantViolation, "outpoint %s is both added and removed", outpoint)
		}
		added += entry.Amount()
		return nil
	})
	if err != nil {
		return err
	}

	removed := externalapi.Amount(0)
	err = diff.ToRemove().ForEach(func(_ *externalapi.DomainOutpoint, entry externalapi.UTXOEntry) error {
		removed += entry.Amount()
		return nil
	})
	if err != nil {
		return err
	}

	if added-removed > result.Subsidy {
		return errors.Wrapf(ruleerrors.ErrInvariantViolation, "block %s added %s to the UTXO set "+
			"with a subsidy of %s", result.BlockHash, added-removed, result.Subsidy)
	}
	if result.Fees < 0 || result.Fees > constants.MaxMoney {
		return errors.Wrapf(ruleerrors.ErrInvariantViolation, "block %s collected fees of %s",
			result.BlockHash, result.Fees)
	}
	return nil
}

// Commitment returns the multiset of the entries of set
func (iv *invariantVerifier) Commitment(set externalapi.UTXOSet) (model.Multiset, error) {
	iterator, ok := set.(externalapi.UTXOSetIterator)
	if !ok {
		return nil, errors.Errorf("UTXO set of type %T can't be iterated", set)
	}
	ms := multiset.New()
	err := utxo.AddSetToMultiset(ms, iterator)
	if err != nil {
		return nil, err
	}
	return ms, nil
}

// VerifyCommitment checks that applying diff to the commitment of the set
// before a change gives the commitment of the set after it
func (iv *invariantVerifier) VerifyCommitment(before model.Multiset, diff externalapi.UTXODiff,
	after externalapi.UTXOSet) error {

	expected := before.Clone()
	err := utxo.ApplyDiffToMultiset(expected, diff)
	if err != nil {
		return err
	}
	actual, err := iv.Commitment(after)
	if err != nil {
		return err
	}
	if !expected.Hash().Equal(actual.Hash()) {
		return errors.Wrapf(ruleerrors.ErrInvariantViolation, "UTXO set commitment is %s, expected %s",
			actual.Hash(), expected.Hash())
	}
	return nil
}
