package testutils

import (
	"time"

	"github.com/kaspanet/btcconsensus/domain/chaincfg"
	"github.com/kaspanet/btcconsensus/domain/consensus/model/externalapi"
	"github.com/kaspanet/btcconsensus/domain/consensus/processes/coinbasemanager"
	"github.com/kaspanet/btcconsensus/domain/consensus/utils/consensushashing"
	"github.com/kaspanet/btcconsensus/domain/consensus/utils/constants"
	"github.com/kaspanet/btcconsensus/domain/consensus/utils/merkle"
	"github.com/kaspanet/btcconsensus/domain/consensus/utils/pow"
	"github.com/kaspanet/btcconsensus/domain/consensus/utils/transactionhelper"
	"github.com/kaspanet/btcconsensus/domain/consensus/utils/txscript"
	"github.com/pkg/errors"
)

// ChainBuilder builds chains of valid blocks on top of a network's genesis
// block. It is meant for networks with a trivial proof of work target such
// as regtest and simnet.
type ChainBuilder struct {
	params *chaincfg.Params

	// headers holds the genesis header followed by the header of every
	// block appended since
	headers []*externalapi.DomainBlockHeader

	// Tag is written into every coinbase so that two builders produce
	// different coinbase transactions at the same height
	Tag int64

	// PayToScript is the public key script coinbase outputs pay to
	PayToScript []byte
}

// NewChainBuilder returns a builder whose next block builds on the genesis
// block of params
func NewChainBuilder(params *chaincfg.Params) *ChainBuilder {
	return &ChainBuilder{
		params:      params,
		headers:     []*externalapi.DomainBlockHeader{params.GenesisBlock.Header},
		PayToScript: []byte{txscript.OpTrue},
	}
}

// Fork returns a builder whose next block builds on the block at the given
// height of this builder's chain. The new builder has its own tag.
func (cb *ChainBuilder) Fork(height externalapi.BlockHeight, tag int64) *ChainBuilder {
	headers := make([]*externalapi.DomainBlockHeader, height+1)
	copy(headers, cb.headers[:height+1])
	return &ChainBuilder{
		params:      cb.params,
		headers:     headers,
		Tag:         tag,
		PayToScript: cb.PayToScript,
	}
}

// NextHeight returns the height of the next block the builder builds
func (cb *ChainBuilder) NextHeight() externalapi.BlockHeight {
	return externalapi.BlockHeight(len(cb.headers))
}

// TipHash returns the hash of the last block of the builder's chain
func (cb *ChainBuilder) TipHash() *externalapi.DomainHash {
	return consensushashing.HeaderHash(cb.headers[len(cb.headers)-1])
}

// Context returns the chain context of the next block
func (cb *ChainBuilder) Context() *externalapi.ChainContext {
	headers := make([]*externalapi.DomainBlockHeader, len(cb.headers))
	copy(headers, cb.headers)
	return &externalapi.ChainContext{
		Height:          cb.NextHeight(),
		PreviousHeaders: headers,
	}
}

// BuildBlock returns a solved block at the next height containing a coinbase
// that claims the subsidy plus fees, followed by transactions. The block is
// not appended to the builder's chain.
func (cb *ChainBuilder) BuildBlock(fees externalapi.Amount,
	transactions ...*externalapi.DomainTransaction) (*externalapi.DomainBlock, error) {

	height := cb.NextHeight()
	coinbase, err := cb.Coinbase(height, coinbasemanager.CalcBlockSubsidy(height, cb.params)+fees)
	if err != nil {
		return nil, err
	}
	allTransactions := append([]*externalapi.DomainTransaction{coinbase}, transactions...)

	parent := cb.headers[len(cb.headers)-1]
	header := &externalapi.DomainBlockHeader{
		Version:       cb.params.MinimumBlockVersionAtHeight(height),
		PrevBlockHash: consensushashing.HeaderHash(parent),
		MerkleRoot:    merkle.CalculateMerkleRoot(allTransactions),
		Timestamp:     parent.Timestamp + uint32(cb.params.TargetTimePerBlock/time.Second),
		Bits:          parent.Bits,
	}
	block := &externalapi.DomainBlock{Header: header, Transactions: allTransactions}
	err = cb.Solve(block)
	if err != nil {
		return nil, err
	}
	return block, nil
}

// Solve recomputes the merkle root of block and finds a nonce that satisfies
// its target. Call it after modifying a block returned by BuildBlock.
func (cb *ChainBuilder) Solve(block *externalapi.DomainBlock) error {
	block.Header.MerkleRoot = merkle.CalculateMerkleRoot(block.Transactions)
	if !pow.SolveHeader(block.Header) {
		return errors.Errorf("couldn't solve block at bits %08x", block.Header.Bits)
	}
	return nil
}

// Append adds block to the builder's chain, so that the next built block
// builds on it
func (cb *ChainBuilder) Append(block *externalapi.DomainBlock) {
	cb.headers = append(cb.headers, block.Header)
}

// NextBlock builds a block with BuildBlock and appends it
func (cb *ChainBuilder) NextBlock(fees externalapi.Amount,
	transactions ...*externalapi.DomainTransaction) (*externalapi.DomainBlock, error) {

	block, err := cb.BuildBlock(fees, transactions...)
	if err != nil {
		return nil, err
	}
	cb.Append(block)
	return block, nil
}

// Coinbase returns a coinbase transaction for the given height paying value
// to the builder's PayToScript
func (cb *ChainBuilder) Coinbase(height externalapi.BlockHeight,
	value externalapi.Amount) (*externalapi.DomainTransaction, error) {

	signatureScript, err := txscript.NewScriptBuilder().
		AddInt64(int64(height)).AddInt64(cb.Tag).Script()
	if err != nil {
		return nil, err
	}
	return transactionhelper.NewCoinbaseTransaction(signatureScript, []*externalapi.DomainTransactionOutput{{
		Value:           value,
		ScriptPublicKey: cb.PayToScript,
	}}), nil
}

// CoinbaseOutpoint returns the outpoint of the first output of block's
// coinbase
func CoinbaseOutpoint(block *externalapi.DomainBlock) *externalapi.DomainOutpoint {
	return OutpointOf(block.Transactions[transactionhelper.CoinbaseTransactionIndex], 0)
}

// OutpointOf returns the outpoint of tx's output at index
func OutpointOf(tx *externalapi.DomainTransaction, index uint32) *externalapi.DomainOutpoint {
	return externalapi.NewDomainOutpoint(consensushashing.TransactionID(tx), index)
}

// SpendOutput returns a transaction spending an OP_TRUE output worth value
// into a single OP_TRUE output worth value-fee
func SpendOutput(outpoint *externalapi.DomainOutpoint, value externalapi.Amount,
	fee externalapi.Amount) *externalapi.DomainTransaction {

	return transactionhelper.NewNativeTransaction(constants.TransactionVersion,
		[]*externalapi.DomainTransactionInput{{
			PreviousOutpoint: *outpoint,
			Sequence:         constants.MaxTxInSequenceNum,
		}},
		[]*externalapi.DomainTransactionOutput{{
			Value:           value - fee,
			ScriptPublicKey: []byte{txscript.OpTrue},
		}})
}
