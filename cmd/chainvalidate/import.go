package main

import (
	"bufio"
	"context"
	"encoding/hex"
	"io"
	"math/big"
	"strings"
	"time"

	"github.com/kaspanet/btcconsensus/domain/chaincfg"
	"github.com/kaspanet/btcconsensus/domain/consensus"
	"github.com/kaspanet/btcconsensus/domain/consensus/model/externalapi"
	"github.com/kaspanet/btcconsensus/domain/consensus/utils/consensushashing"
	"github.com/kaspanet/btcconsensus/domain/consensus/utils/constants"
	"github.com/kaspanet/btcconsensus/domain/consensus/utils/serialization"
	"github.com/kaspanet/btcconsensus/domain/consensus/utils/utxo"
	"github.com/kaspanet/btcconsensus/domain/utxostore"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// maxLineLength bounds a line of the blocks file: a hex encoded block of
// the maximal size and its line break
const maxLineLength = 2*constants.MaxBlockSerializedSize + 2

// keptBlocks is the number of blocks below the tip whose bodies and undo
// data are held in memory. Older blocks are pruned into the chain's base
// once twice as many have accumulated.
const keptBlocks = 288

// importResults houses the stats and result as an import operation.
type importResults struct {
	blocksProcessed int
	blocksSkipped   int
	tipHash         *externalapi.DomainHash
	tipHeight       externalapi.BlockHeight
	minted          externalapi.Amount
}

// blockImporter reads blocks from a file and connects them to a chain one
// after the other
type blockImporter struct {
	consensus consensus.Consensus
	chain     *externalapi.ActiveChain
	store     *utxostore.Store
	flags     externalapi.ValidationFlags

	// knownHashes holds the hashes of the blocks below the chain's base,
	// which are skipped when found in the file
	knownHashes map[externalapi.DomainHash]struct{}

	// prunedSupply is the subsidy minted by the blocks pruned from chain
	prunedSupply externalapi.Amount
	keptBlocks   int

	progressInterval time.Duration
	lastLogTime      time.Time
	lastLogBlocks    int
	results          importResults
}

// newBlockImporter returns an importer connecting blocks on top of the
// chain recorded in store, or on top of the genesis block with an in-memory
// set if store is nil
func newBlockImporter(instance consensus.Consensus, store *utxostore.Store, flags externalapi.ValidationFlags,
	progressInterval time.Duration) (*blockImporter, error) {

	var chain *externalapi.ActiveChain
	if store == nil {
		chain = instance.NewActiveChain(utxo.NewInMemoryUTXOSet())
	} else {
		headers, err := store.Headers()
		if err != nil {
			return nil, err
		}
		chain = restoreChain(instance.Params(), store, headers)
		if len(headers) > 0 {
			log.Infof("Resuming from block %s at height %d", chain.BaseHash, len(headers))
		}
	}

	knownHashes := make(map[externalapi.DomainHash]struct{}, len(chain.BaseHeaders))
	for _, header := range chain.BaseHeaders {
		knownHashes[*consensushashing.HeaderHash(header)] = struct{}{}
	}

	return &blockImporter{
		consensus:        instance,
		chain:            chain,
		store:            store,
		flags:            flags,
		knownHashes:      knownHashes,
		keptBlocks:       keptBlocks,
		progressInterval: progressInterval,
		lastLogTime:      time.Now(),
	}, nil
}

// restoreChain returns an empty chain whose base is the last of headers, the
// recorded headers of the blocks above genesis
func restoreChain(params *chaincfg.Params, set externalapi.UTXOSet,
	headers []*externalapi.DomainBlockHeader) *externalapi.ActiveChain {

	baseHeaders := make([]*externalapi.DomainBlockHeader, 0, len(headers)+1)
	baseHeaders = append(baseHeaders, params.GenesisBlock.Header)
	baseHeaders = append(baseHeaders, headers...)
	return &externalapi.ActiveChain{
		BaseHash:    consensushashing.HeaderHash(baseHeaders[len(baseHeaders)-1]),
		BaseHeight:  externalapi.BlockHeight(len(baseHeaders)),
		BaseHeaders: baseHeaders,
		UTXOSet:     set,
		Work:        new(big.Int),
	}
}

// Import reads the blocks of r and connects them in order. Reading and
// validation run concurrently. It stops at the first invalid block or when
// ctx is canceled.
func (bi *blockImporter) Import(ctx context.Context, r io.Reader) (*importResults, error) {
	group, groupCtx := errgroup.WithContext(ctx)
	blocks := make(chan *externalapi.DomainBlock, 16)

	group.Go(func() error {
		defer close(blocks)
		return readBlocks(groupCtx, r, blocks)
	})
	group.Go(func() error {
		for block := range blocks {
			err := bi.processBlock(block)
			if err != nil {
				return err
			}
			if groupCtx.Err() != nil {
				return groupCtx.Err()
			}
		}
		return nil
	})

	err := group.Wait()
	if err != nil {
		return nil, err
	}

	bi.results.tipHash = bi.chain.TipHash()
	bi.results.tipHeight = bi.chain.NextHeight() - 1
	bi.results.minted = bi.prunedSupply + bi.chain.Supply
	return &bi.results, nil
}

// readBlocks decodes every line of r holding a block and sends it to
// blocks. Empty lines and lines starting with # are ignored.
func readBlocks(ctx context.Context, r io.Reader, blocks chan<- *externalapi.DomainBlock) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineLength)
	lineNumber := 0
	for scanner.Scan() {
		lineNumber++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		serializedBlock, err := hex.DecodeString(line)
		if err != nil {
			return errors.Wrapf(err, "line %d is not hex", lineNumber)
		}
		block, err := serialization.BytesToBlock(serializedBlock)
		if err != nil {
			return errors.Wrapf(err, "line %d doesn't hold a block", lineNumber)
		}

		select {
		case blocks <- block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return errors.WithStack(scanner.Err())
}

func (bi *blockImporter) processBlock(block *externalapi.DomainBlock) error {
	blockHash := consensushashing.BlockHash(block)
	if _, ok := bi.knownHashes[*blockHash]; ok {
		log.Debugf("Skipping block %s which is already part of the chain", blockHash)
		bi.results.blocksSkipped++
		return nil
	}

	if bi.store != nil {
		bi.store.StageHeader(bi.chain.NextHeight(), block.Header)
	}
	result, err := bi.consensus.ConnectBlock(bi.chain, block, bi.flags)
	if err != nil {
		if bi.store != nil {
			bi.store.DiscardStagedHeader()
		}
		if result != nil {
			return errors.Wrapf(err, "block %s at height %d was rejected after reaching state %s",
				blockHash, result.Height, result.LastState)
		}
		return errors.Wrapf(err, "failed connecting block %s", blockHash)
	}

	log.Tracef("Connected block %s at height %d with %d transactions and fees of %s",
		blockHash, result.Height, len(block.Transactions), result.Fees)
	bi.results.blocksProcessed++
	bi.pruneChain()
	bi.logProgress(result.Height)
	return nil
}

// pruneChain releases the blocks more than keptBlocks below the tip. Blocks
// accumulate up to twice that amount so the kept ones are copied only once
// every keptBlocks blocks.
func (bi *blockImporter) pruneChain() {
	if len(bi.chain.Blocks) < 2*bi.keptBlocks {
		return
	}
	for _, chainBlock := range bi.chain.Prune(bi.keptBlocks) {
		bi.prunedSupply += chainBlock.Subsidy
	}
	log.Debugf("Pruned the chain below height %d", bi.chain.BaseHeight)
}

// logProgress logs block progress as an information message. In order to
// prevent spam, it limits logging to one message every progressInterval.
func (bi *blockImporter) logProgress(height externalapi.BlockHeight) {
	if bi.progressInterval == 0 {
		return
	}
	now := time.Now()
	duration := now.Sub(bi.lastLogTime)
	if duration < bi.progressInterval {
		return
	}

	blocks := bi.results.blocksProcessed - bi.lastLogBlocks
	blockStr := "blocks"
	if blocks == 1 {
		blockStr = "block"
	}
	log.Infof("Processed %d %s in the last %s (height %d)", blocks, blockStr,
		duration.Truncate(10*time.Millisecond), height)

	bi.lastLogBlocks = bi.results.blocksProcessed
	bi.lastLogTime = now
}
