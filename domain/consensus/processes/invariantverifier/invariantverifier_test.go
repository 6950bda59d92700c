package invariantverifier

import (
	"math/big"
	"testing"

	"github.com/kaspanet/btcconsensus/domain/chaincfg"
	"github.com/kaspanet/btcconsensus/domain/consensus/model/externalapi"
	"github.com/kaspanet/btcconsensus/domain/consensus/processes/coinbasemanager"
	"github.com/kaspanet/btcconsensus/domain/consensus/ruleerrors"
	"github.com/kaspanet/btcconsensus/domain/consensus/utils/constants"
	"github.com/kaspanet/btcconsensus/domain/consensus/utils/consensushashing"
	"github.com/kaspanet/btcconsensus/domain/consensus/utils/math"
	"github.com/kaspanet/btcconsensus/domain/consensus/utils/testutils"
	"github.com/kaspanet/btcconsensus/domain/consensus/utils/txscript"
	"github.com/kaspanet/btcconsensus/domain/consensus/utils/utxo"
	"github.com/pkg/errors"
)

// chainOf returns a chain of count empty regtest blocks whose set holds
// their coinbase outputs. It is built by hand, without validation.
func chainOf(t *testing.T, count int) *externalapi.ActiveChain {
	params := &chaincfg.RegressionNetParams
	builder := testutils.NewChainBuilder(params)
	chain := &externalapi.ActiveChain{
		BaseHash:    params.GenesisHash,
		BaseHeight:  1,
		BaseHeaders: []*externalapi.DomainBlockHeader{params.GenesisBlock.Header},
		UTXOSet:     utxo.NewInMemoryUTXOSet(),
		Work:        new(big.Int),
	}
	for i := 0; i < count; i++ {
		height := builder.NextHeight()
		block, err := builder.NextBlock(0)
		if err != nil {
			t.Fatalf("NextBlock: %+v", err)
		}
		view := utxo.NewDiffView(chain.UTXOSet)
		err = view.AddTransaction(block.Transactions[0], height)
		if err != nil {
			t.Fatalf("AddTransaction: %+v", err)
		}
		err = utxo.ApplyDiffToSet(chain.UTXOSet, view.Diff())
		if err != nil {
			t.Fatalf("ApplyDiffToSet: %+v", err)
		}
		subsidy := coinbasemanager.CalcBlockSubsidy(height, params)
		work := math.CalcWork(block.Header.Bits)
		chain.Blocks = append(chain.Blocks, &externalapi.ChainBlock{
			Block:    block,
			Hash:     consensushashing.BlockHash(block),
			Height:   height,
			UndoDiff: view.Diff(),
			Work:     work,
			Subsidy:  subsidy,
		})
		chain.Work.Add(chain.Work, work)
		chain.Supply += subsidy
	}
	return chain
}

func TestVerifyChain(t *testing.T) {
	verifier := New(coinbasemanager.New(&chaincfg.RegressionNetParams))

	tests := []struct {
		name          string
		modify        func(t *testing.T, chain *externalapi.ActiveChain)
		expectedError error
	}{
		{name: "consistent chain", modify: func(t *testing.T, chain *externalapi.ActiveChain) {}},
		{
			name: "wrong supply",
			modify: func(t *testing.T, chain *externalapi.ActiveChain) {
				chain.Supply++
			},
			expectedError: ruleerrors.ErrInvariantViolation,
		},
		{
			name: "wrong work",
			modify: func(t *testing.T, chain *externalapi.ActiveChain) {
				chain.Work.Add(chain.Work, big.NewInt(1))
			},
			expectedError: ruleerrors.ErrInvariantViolation,
		},
		{
			name: "broken link",
			modify: func(t *testing.T, chain *externalapi.ActiveChain) {
				chain.Blocks[0], chain.Blocks[1] = chain.Blocks[1], chain.Blocks[0]
				chain.Blocks[0].Height, chain.Blocks[1].Height = chain.Blocks[1].Height, chain.Blocks[0].Height
			},
			expectedError: ruleerrors.ErrInvariantViolation,
		},
		{
			name: "set holding more than max money",
			modify: func(t *testing.T, chain *externalapi.ActiveChain) {
				for i := byte(0); i < 2; i++ {
					var id [externalapi.DomainHashSize]byte
					id[0] = i + 1
					outpoint := externalapi.NewDomainOutpoint(externalapi.NewDomainTransactionIDFromByteArray(&id), 0)
					err := chain.UTXOSet.Insert(outpoint,
						utxo.NewUTXOEntry(constants.MaxMoney, []byte{txscript.OpTrue}, false, 1))
					if err != nil {
						t.Fatalf("Insert: %+v", err)
					}
				}
			},
			expectedError: ruleerrors.ErrSupplyCapExceeded,
		},
		{
			name: "entry from the future",
			modify: func(t *testing.T, chain *externalapi.ActiveChain) {
				var id [externalapi.DomainHashSize]byte
				outpoint := externalapi.NewDomainOutpoint(externalapi.NewDomainTransactionIDFromByteArray(&id), 0)
				err := chain.UTXOSet.Insert(outpoint,
					utxo.NewUTXOEntry(1, []byte{txscript.OpTrue}, false, chain.NextHeight()))
				if err != nil {
					t.Fatalf("Insert: %+v", err)
				}
			},
			expectedError: ruleerrors.ErrInvariantViolation,
		},
	}

	for _, test := range tests {
		chain := chainOf(t, 3)
		test.modify(t, chain)
		err := verifier.VerifyChain(chain)
		if !errors.Is(err, test.expectedError) {
			t.Fatalf("TestVerifyChain: %s: Expected %v, found: %v", test.name, test.expectedError, err)
		}
	}
}

func TestVerifyCommitment(t *testing.T) {
	verifier := New(coinbasemanager.New(&chaincfg.RegressionNetParams))
	chain := chainOf(t, 2)

	before, err := verifier.Commitment(chain.UTXOSet)
	if err != nil {
		t.Fatalf("Commitment: %+v", err)
	}

	builder := testutils.NewChainBuilder(&chaincfg.RegressionNetParams)
	coinbase, err := builder.Coinbase(3, 1)
	if err != nil {
		t.Fatalf("Coinbase: %+v", err)
	}
	view := utxo.NewDiffView(chain.UTXOSet)
	err = view.AddTransaction(coinbase, 3)
	if err != nil {
		t.Fatalf("AddTransaction: %+v", err)
	}

	// The diff hasn't been applied yet
	err = verifier.VerifyCommitment(before, view.Diff(), chain.UTXOSet)
	if !errors.Is(err, ruleerrors.ErrInvariantViolation) {
		t.Fatalf("TestVerifyCommitment: Expected %v, found: %v", ruleerrors.ErrInvariantViolation, err)
	}

	err = utxo.ApplyDiffToSet(chain.UTXOSet, view.Diff())
	if err != nil {
		t.Fatalf("ApplyDiffToSet: %+v", err)
	}
	err = verifier.VerifyCommitment(before, view.Diff(), chain.UTXOSet)
	if err != nil {
		t.Fatalf("TestVerifyCommitment: Unexpected error: %+v", err)
	}
}

func TestVerifyConnection(t *testing.T) {
	verifier := New(coinbasemanager.New(&chaincfg.RegressionNetParams))
	builder := testutils.NewChainBuilder(&chaincfg.RegressionNetParams)
	coinbase, err := builder.Coinbase(1, 100)
	if err != nil {
		t.Fatalf("Coinbase: %+v", err)
	}
	view := utxo.NewDiffView(utxo.NewInMemoryUTXOSet())
	err = view.AddTransaction(coinbase, 1)
	if err != nil {
		t.Fatalf("AddTransaction: %+v", err)
	}

	tests := []struct {
		subsidy       externalapi.Amount
		state         externalapi.BlockConnectionState
		expectedError error
	}{
		{subsidy: 100, state: externalapi.StateConnected},
		{subsidy: 99, state: externalapi.StateConnected, expectedError: ruleerrors.ErrInvariantViolation},
		{subsidy: 100, state: externalapi.StateRejected, expectedError: ruleerrors.ErrInvariantViolation},
	}
	for _, test := range tests {
		err := verifier.VerifyConnection(&externalapi.BlockConnectionResult{
			State:     test.state,
			BlockHash: externalapi.NewZeroHash(),
			UTXODiff:  view.Diff(),
			Subsidy:   test.subsidy,
		})
		if !errors.Is(err, test.expectedError) {
			t.Fatalf("TestVerifyConnection: subsidy %d, state %s: Expected %v, found: %v",
				test.subsidy, test.state, test.expectedError, err)
		}
	}
}
