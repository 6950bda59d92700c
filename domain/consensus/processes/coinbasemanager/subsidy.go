package coinbasemanager

import (
	"math"

	"github.com/kaspanet/btcconsensus/domain/chaincfg"
	"github.com/kaspanet/btcconsensus/domain/consensus/model/externalapi"
	"github.com/kaspanet/btcconsensus/domain/consensus/utils/constants"
)

// maxHalvings is the number of halvings after which the subsidy is zero
// regardless of its initial value.
const maxHalvings = 64

// CalcBlockSubsidy returns the subsidy amount a block at the provided height
// should have. This is mainly used for determining how much the coinbase for
// newly generated blocks awards as well as validating the coinbase for blocks
// has the expected value.
//
// The subsidy is halved every SubsidyReductionInterval blocks. Mathematically
// this is: InitialSubsidy / 2^(height/SubsidyReductionInterval)
func CalcBlockSubsidy(height externalapi.BlockHeight, params *chaincfg.Params) externalapi.Amount {
	if params.SubsidyReductionInterval == 0 {
		return params.InitialSubsidy
	}

	halvings := uint64(height) / params.SubsidyReductionInterval
	if halvings >= maxHalvings {
		return 0
	}
	return params.InitialSubsidy >> halvings
}

// TotalSupply returns the sum of the subsidies of every block from the
// genesis up to and including the block at the given height. It is computed
// in closed form over the completed halving eras and is capped at MaxMoney.
func TotalSupply(height externalapi.BlockHeight, params *chaincfg.Params) externalapi.Amount {
	blockCount := uint64(height) + 1
	if blockCount == 0 {
		blockCount = math.MaxUint64
	}
	if params.SubsidyReductionInterval == 0 {
		return capToMaxMoney(saturatingProduct(blockCount, uint64(params.InitialSubsidy)))
	}

	completedEras := blockCount / params.SubsidyReductionInterval
	blocksInCurrentEra := blockCount % params.SubsidyReductionInterval

	total := uint64(0)
	for era := uint64(0); era < completedEras && era < maxHalvings; era++ {
		eraSubsidy := uint64(params.InitialSubsidy >> era)
		if eraSubsidy == 0 {
			break
		}
		total += saturatingProduct(params.SubsidyReductionInterval, eraSubsidy)
		if total > constants.MaxMoney {
			return constants.MaxMoney
		}
	}
	if completedEras < maxHalvings {
		total += saturatingProduct(blocksInCurrentEra, uint64(params.InitialSubsidy>>completedEras))
	}
	return capToMaxMoney(total)
}

func capToMaxMoney(total uint64) externalapi.Amount {
	if total > constants.MaxMoney {
		return constants.MaxMoney
	}
	return externalapi.Amount(total)
}

// saturatingProduct multiplies a and b, saturating at MaxMoney+1 so that
// callers comparing against MaxMoney never observe a wrapped value.
func saturatingProduct(a, b uint64) uint64 {
	if a == 0 || b == 0 {
		return 0
	}
	if a > (constants.MaxMoney+1)/b {
		return constants.MaxMoney + 1
	}
	return a * b
}
