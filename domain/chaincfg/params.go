// Copyright (c) 2014-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chaincfg

import (
	"math/big"
	"time"

	"github.com/kaspanet/btcconsensus/domain/consensus/model/externalapi"
	"github.com/kaspanet/btcconsensus/domain/consensus/utils/txscript"
)

// These variables are the chain proof-of-work limit parameters for each default
// network.
var (
	// bigOne is 1 represented as a big.Int. It is defined here to avoid
	// the overhead of creating it multiple times.
	bigOne = big.NewInt(1)

	// mainPowLimit is the highest proof of work value a block can have for
	// the main network. It is the value 2^224 - 1.
	mainPowLimit = new(big.Int).Sub(new(big.Int).Lsh(bigOne, 224), bigOne)

	// regressionPowLimit is the highest proof of work value a block can
	// have for the regression test network. It is the value 2^255 - 1.
	regressionPowLimit = new(big.Int).Sub(new(big.Int).Lsh(bigOne, 255), bigOne)

	// testnetPowLimit is the highest proof of work value a block can have
	// for the test network (version 3). It is the value 2^224 - 1.
	testnetPowLimit = new(big.Int).Sub(new(big.Int).Lsh(bigOne, 224), bigOne)

	// simnetPowLimit is the highest proof of work value a block can have
	// for the simulation test network. It is the value 2^255 - 1.
	simnetPowLimit = new(big.Int).Sub(new(big.Int).Lsh(bigOne, 255), bigOne)
)

const (
	targetTimespan           = 14 * 24 * time.Hour
	targetTimePerBlock       = 10 * time.Minute
	retargetAdjustmentFactor = 4
	subsidyReductionInterval = 210000
	initialSubsidy           = 50 * 100000000
	coinbaseMaturity         = 100
)

// Params defines a network by its parameters. Every consensus decision that
// differs between networks is derived from these values.
//
// Soft forks after segwit are not part of the parameters. In particular
// Taproot (BIP0341, BIP0342) is not enforced: witness version 1 outputs are
// treated as anyone-can-spend, as a node predating it would.
type Params struct {
	// Name defines a human-readable identifier for the network.
	Name string

	// GenesisBlock defines the first block of the chain.
	GenesisBlock *externalapi.DomainBlock

	// GenesisHash is the starting block hash.
	GenesisHash *externalapi.DomainHash

	// PowLimit defines the highest allowed proof of work value for a block
	// as a uint256.
	PowLimit *big.Int

	// PowLimitBits defines the highest allowed proof of work value for a
	// block in compact form.
	PowLimitBits uint32

	// PowNoRetargeting defines whether the network has difficulty
	// retargeting disabled. Every block then carries the bits of its parent.
	PowNoRetargeting bool

	// TargetTimespan is the desired amount of time that should elapse
	// before the block difficulty requirement is examined to determine how
	// it should be changed in order to maintain the desired block
	// generation rate.
	TargetTimespan time.Duration

	// TargetTimePerBlock is the desired amount of time to generate each
	// block.
	TargetTimePerBlock time.Duration

	// RetargetAdjustmentFactor is the adjustment factor used to limit
	// the minimum and maximum amount of adjustment that can occur between
	// difficulty retargets.
	RetargetAdjustmentFactor int64

	// InitialSubsidy is the block subsidy paid before the first halving.
	InitialSubsidy externalapi.Amount

	// SubsidyReductionInterval is the interval of blocks before the subsidy
	// is reduced.
	SubsidyReductionInterval uint64

	// CoinbaseMaturity is the number of blocks required before newly mined
	// coins can be spent.
	CoinbaseMaturity uint64

	// Activation heights of the soft forks whose rules are enforced by
	// height rather than by deployment signalling.
	BIP0016Height externalapi.BlockHeight // pay-to-script-hash
	BIP0034Height externalapi.BlockHeight // block v2
	BIP0065Height externalapi.BlockHeight // block v4, CHECKLOCKTIMEVERIFY
	BIP0066Height externalapi.BlockHeight // block v3, strict DER
	CSVHeight     externalapi.BlockHeight // BIP0068, BIP0112, BIP0113
	SegwitHeight  externalapi.BlockHeight // BIP0141, BIP0143, BIP0147

	// BIP0030Exceptions are the blocks, keyed by height, allowed to create
	// a transaction whose outputs are already unspent in the UTXO set. The
	// earlier outputs are kept and the duplicates are not added.
	BIP0030Exceptions map[externalapi.BlockHeight]*externalapi.DomainHash
}

// BlocksPerRetarget returns the number of blocks between difficulty
// retargets.
func (p *Params) BlocksPerRetarget() uint64 {
	return uint64(p.TargetTimespan / p.TargetTimePerBlock)
}

// MinimumBlockVersionAtHeight returns the lowest block version a block at the
// given height may carry.
func (p *Params) MinimumBlockVersionAtHeight(height externalapi.BlockHeight) int32 {
	switch {
	case height >= p.BIP0065Height:
		return 4
	case height >= p.BIP0066Height:
		return 3
	case height >= p.BIP0034Height:
		return 2
	}
	return 1
}

// IsBIP0030Exception returns whether the block with the given hash at the
// given height may recreate unspent outputs
func (p *Params) IsBIP0030Exception(height externalapi.BlockHeight, hash *externalapi.DomainHash) bool {
	exceptionHash, ok := p.BIP0030Exceptions[height]
	return ok && exceptionHash.Equal(hash)
}

// IsCSVActive returns whether BIP0068 sequence locks and median time past
// based finality apply to a block at the given height.
func (p *Params) IsCSVActive(height externalapi.BlockHeight) bool {
	return height >= p.CSVHeight
}

// IsSegwitActive returns whether witness data is allowed in a block at the
// given height.
func (p *Params) IsSegwitActive(height externalapi.BlockHeight) bool {
	return height >= p.SegwitHeight
}

// ScriptFlagsAtHeight returns the script verification flags that consensus
// enforces for a block at the given height.
func (p *Params) ScriptFlagsAtHeight(height externalapi.BlockHeight) txscript.ScriptFlags {
	flags := txscript.ScriptFlags(0)
	if height >= p.BIP0016Height {
		flags |= txscript.ScriptBip16
	}
	if height >= p.BIP0066Height {
		flags |= txscript.ScriptVerifyDERSignatures
	}
	if height >= p.BIP0065Height {
		flags |= txscript.ScriptVerifyCheckLockTimeVerify
	}
	if p.IsCSVActive(height) {
		flags |= txscript.ScriptVerifyCheckSequenceVerify
	}
	if p.IsSegwitActive(height) {
		flags |= txscript.ScriptVerifyWitness | txscript.ScriptVerifyNullDummy
	}
	return flags
}

// MainnetParams defines the network parameters for the main network.
var MainnetParams = Params{
	Name: "mainnet",

	GenesisBlock:             genesisBlock,
	GenesisHash:              genesisHash,
	PowLimit:                 mainPowLimit,
	PowLimitBits:             0x1d00ffff,
	PowNoRetargeting:         false,
	TargetTimespan:           targetTimespan,
	TargetTimePerBlock:       targetTimePerBlock,
	RetargetAdjustmentFactor: retargetAdjustmentFactor,
	InitialSubsidy:           initialSubsidy,
	SubsidyReductionInterval: subsidyReductionInterval,
	CoinbaseMaturity:         coinbaseMaturity,

	BIP0016Height: 173805,
	BIP0034Height: 227931,
	BIP0065Height: 388381,
	BIP0066Height: 363725,
	CSVHeight:     419328,
	SegwitHeight:  481824,

	BIP0030Exceptions: map[externalapi.BlockHeight]*externalapi.DomainHash{
		91842: newHashFromStr("00000000000a4d0a398161ffc163c503763b1f4360639393e0e4c8e300e0caec"),
		91880: newHashFromStr("00000000000743f190a18c5577a3c2d2a1f610ae9601ac046a38084ccb7cd721"),
	},
}

// RegressionNetParams defines the network parameters for the regression test
// network. Not to be confused with the test network (version 3), this network
// is sometimes simply called "testnet".
var RegressionNetParams = Params{
	Name: "regtest",

	GenesisBlock:             regtestGenesisBlock,
	GenesisHash:              regtestGenesisHash,
	PowLimit:                 regressionPowLimit,
	PowLimitBits:             0x207fffff,
	PowNoRetargeting:         true,
	TargetTimespan:           targetTimespan,
	TargetTimePerBlock:       targetTimePerBlock,
	RetargetAdjustmentFactor: retargetAdjustmentFactor,
	InitialSubsidy:           initialSubsidy,
	SubsidyReductionInterval: 150,
	CoinbaseMaturity:         coinbaseMaturity,

	BIP0016Height: 0,
	BIP0034Height: 1,
	BIP0065Height: 1,
	BIP0066Height: 1,
	CSVHeight:     1,
	SegwitHeight:  0,
}

// TestnetParams defines the network parameters for the test network
// (version 3).
var TestnetParams = Params{
	Name: "testnet3",

	GenesisBlock:             testnetGenesisBlock,
	GenesisHash:              testnetGenesisHash,
	PowLimit:                 testnetPowLimit,
	PowLimitBits:             0x1d00ffff,
	PowNoRetargeting:         false,
	TargetTimespan:           targetTimespan,
	TargetTimePerBlock:       targetTimePerBlock,
	RetargetAdjustmentFactor: retargetAdjustmentFactor,
	InitialSubsidy:           initialSubsidy,
	SubsidyReductionInterval: subsidyReductionInterval,
	CoinbaseMaturity:         coinbaseMaturity,

	BIP0016Height: 514,
	BIP0034Height: 21111,
	BIP0065Height: 581885,
	BIP0066Height: 330776,
	CSVHeight:     770112,
	SegwitHeight:  834624,
}

// SimnetParams defines the network parameters for the simulation test
// network. This network is similar to the normal test network except it is
// intended for private use within a group of individuals doing simulation
// testing. Every soft fork is active from the genesis block.
var SimnetParams = Params{
	Name: "simnet",

	GenesisBlock:             simnetGenesisBlock,
	GenesisHash:              simnetGenesisHash,
	PowLimit:                 simnetPowLimit,
	PowLimitBits:             0x207fffff,
	PowNoRetargeting:         false,
	TargetTimespan:           targetTimespan,
	TargetTimePerBlock:       targetTimePerBlock,
	RetargetAdjustmentFactor: retargetAdjustmentFactor,
	InitialSubsidy:           initialSubsidy,
	SubsidyReductionInterval: subsidyReductionInterval,
	CoinbaseMaturity:         coinbaseMaturity,
}

// newHashFromStr converts the passed big-endian hex string into a
// externalapi.DomainHash. It only differs from the one available in
// externalapi in that it panics on an error since it will only (and must
// only) be called with hard-coded, and therefore known good, hashes.
func newHashFromStr(hexStr string) *externalapi.DomainHash {
	hash, err := externalapi.NewDomainHashFromString(hexStr)
	if err != nil {
		panic(err)
	}
	return hash
}
