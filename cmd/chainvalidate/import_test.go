package main

import (
	"context"
	"encoding/hex"
	"os"
	"strings"
	"testing"

	"github.com/kaspanet/btcconsensus/domain/chaincfg"
	"github.com/kaspanet/btcconsensus/domain/consensus"
	"github.com/kaspanet/btcconsensus/domain/consensus/model/externalapi"
	"github.com/kaspanet/btcconsensus/domain/consensus/processes/coinbasemanager"
	"github.com/kaspanet/btcconsensus/domain/consensus/ruleerrors"
	"github.com/kaspanet/btcconsensus/domain/consensus/utils/consensushashing"
	"github.com/kaspanet/btcconsensus/domain/consensus/utils/serialization"
	"github.com/kaspanet/btcconsensus/domain/consensus/utils/testutils"
	"github.com/kaspanet/btcconsensus/domain/utxostore"
	"github.com/kaspanet/btcconsensus/infrastructure/db/database/ldb"
	"github.com/pkg/errors"
)

func newTestConsensus() consensus.Consensus {
	return consensus.NewFactory().NewConsensus(&consensus.Config{
		Params:           chaincfg.RegressionNetParams,
		VerifyInvariants: true,
	})
}

// blocksFile returns the content of a blocks file holding count empty
// regtest blocks on top of genesis
func blocksFile(t *testing.T, count int) (string, []*externalapi.DomainBlock) {
	builder := testutils.NewChainBuilder(&chaincfg.RegressionNetParams)
	blocks := make([]*externalapi.DomainBlock, count)
	var content strings.Builder
	content.WriteString("# regtest blocks\n")
	for i := range blocks {
		var err error
		blocks[i], err = builder.NextBlock(0)
		if err != nil {
			t.Fatalf("NextBlock: %+v", err)
		}
		content.WriteString(hex.EncodeToString(serialization.BlockToBytes(blocks[i])))
		content.WriteString("\n\n")
	}
	return content.String(), blocks
}

func TestImportInMemory(t *testing.T) {
	content, blocks := blocksFile(t, 5)
	importer, err := newBlockImporter(newTestConsensus(), nil, externalapi.BFNone, 0)
	if err != nil {
		t.Fatalf("TestImportInMemory: newBlockImporter: %+v", err)
	}

	results, err := importer.Import(context.Background(), strings.NewReader(content))
	if err != nil {
		t.Fatalf("TestImportInMemory: Import: %+v", err)
	}
	if results.blocksProcessed != len(blocks) || results.blocksSkipped != 0 {
		t.Fatalf("TestImportInMemory: Expected %d processed blocks and none skipped, found: %d and %d",
			len(blocks), results.blocksProcessed, results.blocksSkipped)
	}
	if results.tipHeight != 5 {
		t.Fatalf("TestImportInMemory: Expected tip height 5, found: %d", results.tipHeight)
	}
	// Regtest halves every 150 blocks
	expectedMinted := 5 * coinbasemanager.CalcBlockSubsidy(1, &chaincfg.RegressionNetParams)
	if results.minted != expectedMinted {
		t.Fatalf("TestImportInMemory: Expected %s to be minted, found: %s", expectedMinted, results.minted)
	}
}

func TestImportStopsAtInvalidBlock(t *testing.T) {
	_, blocks := blocksFile(t, 3)
	// Skip the block at height 2
	content := hex.EncodeToString(serialization.BlockToBytes(blocks[0])) + "\n" +
		hex.EncodeToString(serialization.BlockToBytes(blocks[2])) + "\n"

	importer, err := newBlockImporter(newTestConsensus(), nil, externalapi.BFNone, 0)
	if err != nil {
		t.Fatalf("TestImportStopsAtInvalidBlock: newBlockImporter: %+v", err)
	}
	_, err = importer.Import(context.Background(), strings.NewReader(content))
	if !errors.Is(err, ruleerrors.ErrUnexpectedPrevBlock) {
		t.Fatalf("TestImportStopsAtInvalidBlock: Expected %v, found: %v", ruleerrors.ErrUnexpectedPrevBlock, err)
	}

	importer, err = newBlockImporter(newTestConsensus(), nil, externalapi.BFNone, 0)
	if err != nil {
		t.Fatalf("TestImportStopsAtInvalidBlock: newBlockImporter: %+v", err)
	}
	_, err = importer.Import(context.Background(), strings.NewReader("not hex\n"))
	if err == nil {
		t.Fatalf("TestImportStopsAtInvalidBlock: Expected an error for a line that isn't hex")
	}
}

func TestImportResumesFromStore(t *testing.T) {
	path, err := os.MkdirTemp("", "TestImportResumesFromStore")
	if err != nil {
		t.Fatalf("TestImportResumesFromStore: TempDir: %s", err)
	}
	defer os.RemoveAll(path)
	db, err := ldb.NewLevelDB(path, 8)
	if err != nil {
		t.Fatalf("TestImportResumesFromStore: NewLevelDB: %+v", err)
	}
	defer db.Close()
	store := utxostore.New(db)

	content, blocks := blocksFile(t, 5)
	lines := strings.SplitAfter(content, "\n\n")
	partial := strings.Join(lines[:3], "")

	importer, err := newBlockImporter(newTestConsensus(), store, externalapi.BFNone, 0)
	if err != nil {
		t.Fatalf("TestImportResumesFromStore: newBlockImporter: %+v", err)
	}
	results, err := importer.Import(context.Background(), strings.NewReader(partial))
	if err != nil {
		t.Fatalf("TestImportResumesFromStore: Import: %+v", err)
	}
	if results.blocksProcessed != 3 {
		t.Fatalf("TestImportResumesFromStore: Expected 3 processed blocks, found: %d", results.blocksProcessed)
	}

	importer, err = newBlockImporter(newTestConsensus(), store, externalapi.BFNone, 0)
	if err != nil {
		t.Fatalf("TestImportResumesFromStore: newBlockImporter: %+v", err)
	}
	results, err = importer.Import(context.Background(), strings.NewReader(content))
	if err != nil {
		t.Fatalf("TestImportResumesFromStore: Import: %+v", err)
	}
	if results.blocksProcessed != 2 || results.blocksSkipped != 3 {
		t.Fatalf("TestImportResumesFromStore: Expected 2 processed and 3 skipped blocks, found: %d and %d",
			results.blocksProcessed, results.blocksSkipped)
	}
	if results.tipHeight != 5 || !results.tipHash.Equal(consensushashing.BlockHash(blocks[4])) {
		t.Fatalf("TestImportResumesFromStore: Expected tip %s at height 5, found: %s at height %d",
			consensushashing.BlockHash(blocks[4]), results.tipHash, results.tipHeight)
	}

	count, err := store.Len()
	if err != nil {
		t.Fatalf("TestImportResumesFromStore: Len: %+v", err)
	}
	if count != len(blocks) {
		t.Fatalf("TestImportResumesFromStore: Expected %d coinbase outputs in the store, found: %d",
			len(blocks), count)
	}
}

func TestImportPrunesChain(t *testing.T) {
	content, blocks := blocksFile(t, 7)
	importer, err := newBlockImporter(newTestConsensus(), nil, externalapi.BFNone, 0)
	if err != nil {
		t.Fatalf("TestImportPrunesChain: newBlockImporter: %+v", err)
	}
	importer.keptBlocks = 2

	results, err := importer.Import(context.Background(), strings.NewReader(content))
	if err != nil {
		t.Fatalf("TestImportPrunesChain: Import: %+v", err)
	}
	if results.tipHeight != 7 || !results.tipHash.Equal(consensushashing.BlockHash(blocks[6])) {
		t.Fatalf("TestImportPrunesChain: Expected tip %s at height 7, found: %s at height %d",
			consensushashing.BlockHash(blocks[6]), results.tipHash, results.tipHeight)
	}
	if len(importer.chain.Blocks) != 3 || importer.chain.BaseHeight != 5 {
		t.Fatalf("TestImportPrunesChain: Expected 3 blocks above base height 5, found: %d above %d",
			len(importer.chain.Blocks), importer.chain.BaseHeight)
	}
	if len(importer.chain.BaseHeaders) != 5 {
		t.Fatalf("TestImportPrunesChain: Expected 5 base headers, found: %d", len(importer.chain.BaseHeaders))
	}
	expectedMinted := 7 * coinbasemanager.CalcBlockSubsidy(1, &chaincfg.RegressionNetParams)
	if results.minted != expectedMinted {
		t.Fatalf("TestImportPrunesChain: Expected %s to be minted, found: %s", expectedMinted, results.minted)
	}
}
