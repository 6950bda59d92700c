package externalapi

import (
	"math/big"
)

// ChainBlock is a block that was connected to an ActiveChain, along with the
// data needed to disconnect it again
type ChainBlock struct {
	Block    *DomainBlock
	Hash     *DomainHash
	Height   BlockHeight
	UndoDiff UTXODiff
	Work     *big.Int
	Subsidy  Amount
}

// ActiveChain is the currently selected chain of blocks and the UTXO set
// resulting from connecting them. Blocks are ordered from oldest to newest.
//
// The chain may start above genesis. Its base is the block that Blocks[0]
// builds upon: BaseHash is the base's hash, and BaseHeight is the height of
// Blocks[0], one above the base's own height.
type ActiveChain struct {
	BaseHash   *DomainHash
	BaseHeight BlockHeight

	// BaseHeaders are the headers of every block from genesis up to the base,
	// so BaseHeaders[0] is the genesis header at height 0 and the last entry
	// is the base's header at height BaseHeight-1
	BaseHeaders []*DomainBlockHeader

	Blocks  []*ChainBlock
	UTXOSet UTXOSet

	// Work is the cumulative work of Blocks, and Supply the total subsidy
	// they minted on top of what the base chain had minted
	Work   *big.Int
	Supply Amount

	// headers is BaseHeaders followed by the headers of Blocks. It is rebuilt
	// whenever it is found out of sync with them.
	headers []*DomainBlockHeader
}

// Tip returns the last block of the chain, or nil if the chain is empty
func (chain *ActiveChain) Tip() *ChainBlock {
	if len(chain.Blocks) == 0 {
		return nil
	}
	return chain.Blocks[len(chain.Blocks)-1]
}

// TipHash returns the hash of the last block of the chain, or the base hash
// if the chain is empty
func (chain *ActiveChain) TipHash() *DomainHash {
	if len(chain.Blocks) == 0 {
		return chain.BaseHash
	}
	return chain.Tip().Hash
}

// NextHeight returns the height of the next block to be connected to the chain
func (chain *ActiveChain) NextHeight() BlockHeight {
	return chain.BaseHeight + BlockHeight(len(chain.Blocks))
}

// BlockIndex returns the index in Blocks of the block with the given hash
func (chain *ActiveChain) BlockIndex(hash *DomainHash) (int, bool) {
	for i := len(chain.Blocks) - 1; i >= 0; i-- {
		if chain.Blocks[i].Hash.Equal(hash) {
			return i, true
		}
	}
	return 0, false
}

// ContextAt returns the ChainContext of the block at Blocks[index]. An index
// of len(Blocks) returns the context of the next block to be connected.
//
// The context's headers are a read-only view into the chain and are not
// copied, so building a context costs the same at any chain length.
func (chain *ActiveChain) ContextAt(index int) *ChainContext {
	end := len(chain.BaseHeaders) + index
	headers := chain.headerChain()
	return &ChainContext{
		Height:          chain.BaseHeight + BlockHeight(index),
		PreviousHeaders: headers[:end:end],
	}
}

// AppendBlock adds chainBlock on top of the chain's tip, along with its work
// and subsidy
func (chain *ActiveChain) AppendBlock(chainBlock *ChainBlock) {
	headers := chain.headerChain()
	chain.Blocks = append(chain.Blocks, chainBlock)
	chain.headers = append(headers, chainBlock.Block.Header)

	if chain.Work == nil {
		chain.Work = new(big.Int)
	}
	chain.Work = new(big.Int).Add(chain.Work, chainBlock.Work)
	chain.Supply += chainBlock.Subsidy
}

// RemoveTip removes the tip of the chain along with its work and subsidy,
// and returns it. It returns nil if the chain is empty.
func (chain *ActiveChain) RemoveTip() *ChainBlock {
	tip := chain.Tip()
	if tip == nil {
		return nil
	}
	headers := chain.headerChain()
	chain.Blocks = chain.Blocks[:len(chain.Blocks)-1]
	// Capping the capacity keeps the next AppendBlock from overwriting the
	// removed header in contexts that were already handed out
	end := len(headers) - 1
	chain.headers = headers[:end:end]

	chain.Work = new(big.Int).Sub(chain.Work, tip.Work)
	chain.Supply -= tip.Subsidy
	return tip
}

// Prune moves every block but the last keep ones into the chain's base and
// returns them. Their headers are kept in BaseHeaders while the blocks and
// their undo data are released, so pruned blocks can no longer be
// disconnected. Work and Supply are reduced by the pruned blocks' share.
func (chain *ActiveChain) Prune(keep int) []*ChainBlock {
	if keep < 0 {
		keep = 0
	}
	count := len(chain.Blocks) - keep
	if count <= 0 {
		return nil
	}

	headers := chain.headerChain()
	pruned := chain.Blocks[:count]
	baseEnd := len(chain.BaseHeaders) + count
	chain.BaseHeaders = headers[:baseEnd:baseEnd]
	chain.BaseHash = pruned[count-1].Hash
	chain.BaseHeight += BlockHeight(count)

	blocks := make([]*ChainBlock, keep)
	copy(blocks, chain.Blocks[count:])
	chain.Blocks = blocks

	work := new(big.Int)
	if chain.Work != nil {
		work.Set(chain.Work)
	}
	for _, chainBlock := range pruned {
		work.Sub(work, chainBlock.Work)
		chain.Supply -= chainBlock.Subsidy
	}
	chain.Work = work
	return pruned
}

// headerChain returns BaseHeaders followed by the headers of Blocks,
// rebuilding the cached slice if Blocks or BaseHeaders were changed without
// going through the chain's methods
func (chain *ActiveChain) headerChain() []*DomainBlockHeader {
	length := len(chain.BaseHeaders) + len(chain.Blocks)
	if len(chain.headers) == length && chain.headersMatchEnds() {
		return chain.headers
	}

	headers := make([]*DomainBlockHeader, 0, length+1)
	headers = append(headers, chain.BaseHeaders...)
	for _, chainBlock := range chain.Blocks {
		headers = append(headers, chainBlock.Block.Header)
	}
	chain.headers = headers
	return headers
}

func (chain *ActiveChain) headersMatchEnds() bool {
	baseLength := len(chain.BaseHeaders)
	if baseLength > 0 && chain.headers[baseLength-1] != chain.BaseHeaders[baseLength-1] {
		return false
	}
	if tip := chain.Tip(); tip != nil && chain.headers[len(chain.headers)-1] != tip.Block.Header {
		return false
	}
	return true
}

// Truncated returns a shallow copy of the chain holding only Blocks[:end].
// Work and Supply are adjusted accordingly. The UTXO set is shared with chain.
func (chain *ActiveChain) Truncated(end int) *ActiveChain {
	work := new(big.Int)
	supply := chain.Supply
	if chain.Work != nil {
		work.Set(chain.Work)
	}
	for _, chainBlock := range chain.Blocks[end:] {
		work.Sub(work, chainBlock.Work)
		supply -= chainBlock.Subsidy
	}
	blocks := make([]*ChainBlock, end)
	copy(blocks, chain.Blocks[:end])
	headersEnd := len(chain.BaseHeaders) + end
	headers := chain.headerChain()
	return &ActiveChain{
		BaseHash:    chain.BaseHash,
		BaseHeight:  chain.BaseHeight,
		BaseHeaders: chain.BaseHeaders,
		Blocks:      blocks,
		UTXOSet:     chain.UTXOSet,
		Work:        work,
		Supply:      supply,
		headers:     headers[:headersEnd:headersEnd],
	}
}

// ChainContext carries what a block needs to know about its ancestors to be
// validated: its own height and the headers preceding it
type ChainContext struct {
	Height BlockHeight

	// PreviousHeaders are the headers of the block's ancestors, ordered from
	// oldest to newest and ending with the block's parent. It may be a suffix
	// of the full chain.
	PreviousHeaders []*DomainBlockHeader
}

// Parent returns the header of the block's parent, or nil if it is unknown
func (context *ChainContext) Parent() *DomainBlockHeader {
	if len(context.PreviousHeaders) == 0 {
		return nil
	}
	return context.PreviousHeaders[len(context.PreviousHeaders)-1]
}
