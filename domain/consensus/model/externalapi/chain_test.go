package externalapi

import (
	"math/big"
	"testing"
)

func testChainBlock(height BlockHeight) *ChainBlock {
	var hashBytes [DomainHashSize]byte
	hashBytes[0] = byte(height)
	hashBytes[1] = byte(height >> 8)
	return &ChainBlock{
		Block:   &DomainBlock{Header: &DomainBlockHeader{Nonce: uint32(height)}},
		Hash:    NewDomainHashFromByteArray(&hashBytes),
		Height:  height,
		Work:    big.NewInt(2),
		Subsidy: 50,
	}
}

// testChain returns a chain based on genesis with blockCount blocks appended
func testChain(blockCount int) *ActiveChain {
	chain := &ActiveChain{
		BaseHash:    NewZeroHash(),
		BaseHeight:  1,
		BaseHeaders: []*DomainBlockHeader{{Nonce: 0}},
		Work:        new(big.Int),
	}
	for height := BlockHeight(1); height <= BlockHeight(blockCount); height++ {
		chain.AppendBlock(testChainBlock(height))
	}
	return chain
}

func checkContext(t *testing.T, testName string, chain *ActiveChain, index int) {
	context := chain.ContextAt(index)
	expectedHeight := chain.BaseHeight + BlockHeight(index)
	if context.Height != expectedHeight {
		t.Fatalf("%s: Expected context height %d, found: %d", testName, expectedHeight, context.Height)
	}
	if len(context.PreviousHeaders) != int(expectedHeight) {
		t.Fatalf("%s: Expected %d headers at height %d, found: %d", testName, expectedHeight, expectedHeight,
			len(context.PreviousHeaders))
	}
	for height, header := range context.PreviousHeaders {
		if header.Nonce != uint32(height) {
			t.Fatalf("%s: Expected the header at %d to be the one of height %d, found: %d", testName,
				height, height, header.Nonce)
		}
	}
}

func TestContextAt(t *testing.T) {
	chain := testChain(10)
	for index := 0; index <= len(chain.Blocks); index++ {
		checkContext(t, "TestContextAt", chain, index)
	}

	// Blocks changed directly are picked up too
	chain.Blocks = append(chain.Blocks, testChainBlock(11))
	checkContext(t, "TestContextAt", chain, len(chain.Blocks))
	chain.Blocks = chain.Blocks[:5]
	checkContext(t, "TestContextAt", chain, len(chain.Blocks))
}

func TestContextAtSurvivesRemoveTip(t *testing.T) {
	chain := testChain(5)
	context := chain.ContextAt(len(chain.Blocks))
	parent := context.Parent()

	removed := chain.RemoveTip()
	if removed.Height != 5 {
		t.Fatalf("TestContextAtSurvivesRemoveTip: Expected to remove height 5, found: %d", removed.Height)
	}
	replacement := testChainBlock(5)
	replacement.Block.Header = &DomainBlockHeader{Nonce: 5, Timestamp: 1}
	chain.AppendBlock(replacement)

	if context.Parent() != parent {
		t.Fatalf("TestContextAtSurvivesRemoveTip: A context handed out before RemoveTip was modified")
	}
	if chain.ContextAt(len(chain.Blocks)).Parent() != replacement.Block.Header {
		t.Fatalf("TestContextAtSurvivesRemoveTip: Expected the new context to end with the replacement header")
	}
}

func TestAppendAndRemoveTip(t *testing.T) {
	chain := testChain(3)
	if chain.Work.Cmp(big.NewInt(6)) != 0 || chain.Supply != 150 {
		t.Fatalf("TestAppendAndRemoveTip: Expected work 6 and supply 150, found: %s and %d",
			chain.Work, chain.Supply)
	}
	for i := 0; i < 3; i++ {
		if chain.RemoveTip() == nil {
			t.Fatalf("TestAppendAndRemoveTip: Expected a tip to remove")
		}
	}
	if chain.RemoveTip() != nil {
		t.Fatalf("TestAppendAndRemoveTip: Expected nil when removing the tip of an empty chain")
	}
	if chain.Work.Sign() != 0 || chain.Supply != 0 {
		t.Fatalf("TestAppendAndRemoveTip: Expected no work nor supply, found: %s and %d",
			chain.Work, chain.Supply)
	}
}

func TestPrune(t *testing.T) {
	tests := []struct {
		name          string
		blockCount    int
		keep          int
		expectedCount int
	}{
		{name: "prune below the kept blocks", blockCount: 10, keep: 4, expectedCount: 6},
		{name: "nothing to prune", blockCount: 3, keep: 4, expectedCount: 0},
		{name: "prune everything", blockCount: 3, keep: 0, expectedCount: 3},
	}

	for _, test := range tests {
		chain := testChain(test.blockCount)
		nextHeight := chain.NextHeight()
		tipHash := chain.TipHash()

		pruned := chain.Prune(test.keep)
		if len(pruned) != test.expectedCount {
			t.Fatalf("TestPrune: %s: Expected %d pruned blocks, found: %d", test.name, test.expectedCount,
				len(pruned))
		}
		if chain.NextHeight() != nextHeight || !chain.TipHash().Equal(tipHash) {
			t.Fatalf("TestPrune: %s: Expected the tip to stay at height %d, found: %d", test.name,
				nextHeight-1, chain.NextHeight()-1)
		}
		if len(chain.BaseHeaders) != int(chain.BaseHeight) {
			t.Fatalf("TestPrune: %s: Expected %d base headers, found: %d", test.name, chain.BaseHeight,
				len(chain.BaseHeaders))
		}
		if len(pruned) > 0 && !chain.BaseHash.Equal(pruned[len(pruned)-1].Hash) {
			t.Fatalf("TestPrune: %s: Expected the base to be the last pruned block", test.name)
		}

		remaining := BlockHeight(test.blockCount - test.expectedCount)
		if chain.Work.Cmp(big.NewInt(int64(2*remaining))) != 0 || chain.Supply != Amount(50*remaining) {
			t.Fatalf("TestPrune: %s: Expected work and supply of %d blocks, found: %s and %d", test.name,
				remaining, chain.Work, chain.Supply)
		}
		for index := 0; index <= len(chain.Blocks); index++ {
			checkContext(t, "TestPrune: "+test.name, chain, index)
		}

		chain.AppendBlock(testChainBlock(nextHeight))
		checkContext(t, "TestPrune: "+test.name, chain, len(chain.Blocks))
	}
}

func TestTruncatedSharesHeaders(t *testing.T) {
	chain := testChain(6)
	truncated := chain.Truncated(2)
	if truncated.NextHeight() != 3 {
		t.Fatalf("TestTruncatedSharesHeaders: Expected next height 3, found: %d", truncated.NextHeight())
	}
	truncated.AppendBlock(testChainBlock(3))
	checkContext(t, "TestTruncatedSharesHeaders", truncated, len(truncated.Blocks))
	checkContext(t, "TestTruncatedSharesHeaders", chain, len(chain.Blocks))
	if chain.ContextAt(3).Parent() == truncated.Tip().Block.Header {
		t.Fatalf("TestTruncatedSharesHeaders: Appending to the truncated chain changed the original chain")
	}
}
