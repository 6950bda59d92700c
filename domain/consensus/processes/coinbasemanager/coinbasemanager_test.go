package coinbasemanager

import (
	"errors"
	"testing"

	"github.com/kaspanet/btcconsensus/domain/chaincfg"
	"github.com/kaspanet/btcconsensus/domain/consensus/model/externalapi"
	"github.com/kaspanet/btcconsensus/domain/consensus/ruleerrors"
	"github.com/kaspanet/btcconsensus/domain/consensus/utils/constants"
	"pgregory.net/rapid"
)

func TestCalcBlockSubsidy(t *testing.T) {
	params := &chaincfg.MainnetParams
	tests := []struct {
		height          externalapi.BlockHeight
		expectedSubsidy externalapi.Amount
	}{
		{0, 50 * constants.SatoshiPerBitcoin},
		{209999, 50 * constants.SatoshiPerBitcoin},
		{210000, 25 * constants.SatoshiPerBitcoin},
		{420000, 1250000000},
		{630000, 625000000},
		{32 * 210000, 1},
		{33 * 210000, 0},
		{64 * 210000, 0},
		{^externalapi.BlockHeight(0), 0},
	}

	for _, test := range tests {
		subsidy := CalcBlockSubsidy(test.height, params)
		if subsidy != test.expectedSubsidy {
			t.Errorf("TestCalcBlockSubsidy: height %d: Expected %d, found: %d",
				test.height, test.expectedSubsidy, subsidy)
		}
	}
}

func TestTotalSupply(t *testing.T) {
	params := &chaincfg.MainnetParams
	tests := []struct {
		height         externalapi.BlockHeight
		expectedSupply externalapi.Amount
	}{
		{0, 5000000000},
		{209999, 1050000000000000},
		{210000, 1050002500000000},
		{419999, 1575000000000000},
		{^externalapi.BlockHeight(0), 2099999997690000},
	}

	for _, test := range tests {
		supply := TotalSupply(test.height, params)
		if supply != test.expectedSupply {
			t.Errorf("TestTotalSupply: height %d: Expected %d, found: %d",
				test.height, test.expectedSupply, supply)
		}
	}
}

func TestTotalSupplyMatchesSubsidySum(t *testing.T) {
	params := &chaincfg.RegressionNetParams

	sum := externalapi.Amount(0)
	for height := externalapi.BlockHeight(0); height < 150*40; height++ {
		sum += CalcBlockSubsidy(height, params)
		supply := TotalSupply(height, params)
		if supply != sum {
			t.Fatalf("TestTotalSupplyMatchesSubsidySum: height %d: Expected %d, found: %d",
				height, sum, supply)
		}
	}
}

func TestSubsidyHalvingProperty(t *testing.T) {
	params := &chaincfg.MainnetParams
	rapid.Check(t, func(t *rapid.T) {
		height := externalapi.BlockHeight(rapid.Uint64Range(0, 70*210000).Draw(t, "height"))

		subsidy := CalcBlockSubsidy(height, params)
		halved := CalcBlockSubsidy(height+externalapi.BlockHeight(params.SubsidyReductionInterval), params)
		if halved != subsidy/2 {
			t.Fatalf("subsidy at %d is %d but %d blocks later it is %d",
				height, subsidy, params.SubsidyReductionInterval, halved)
		}
	})
}

func TestSupplyMonotonicityProperty(t *testing.T) {
	params := &chaincfg.MainnetParams
	rapid.Check(t, func(t *rapid.T) {
		low := externalapi.BlockHeight(rapid.Uint64().Draw(t, "low"))
		high := externalapi.BlockHeight(rapid.Uint64Min(uint64(low)).Draw(t, "high"))

		lowSupply := TotalSupply(low, params)
		highSupply := TotalSupply(high, params)
		if lowSupply > highSupply {
			t.Fatalf("supply decreased from %d at height %d to %d at height %d",
				lowSupply, low, highSupply, high)
		}
		if highSupply > constants.MaxMoney {
			t.Fatalf("supply %d at height %d exceeds the maximum", highSupply, high)
		}
	})
}

func TestValidateCoinbaseTransactionInContext(t *testing.T) {
	manager := New(&chaincfg.RegressionNetParams)
	coinbase := func(values ...externalapi.Amount) *externalapi.DomainTransaction {
		tx := &externalapi.DomainTransaction{Version: 1}
		for _, value := range values {
			tx.Outputs = append(tx.Outputs, &externalapi.DomainTransactionOutput{Value: value})
		}
		return tx
	}

	tests := []struct {
		name        string
		coinbase    *externalapi.DomainTransaction
		height      externalapi.BlockHeight
		fees        externalapi.Amount
		expectedErr error
	}{
		{"exact subsidy", coinbase(50 * constants.SatoshiPerBitcoin), 1, 0, nil},
		{"subsidy plus fees", coinbase(50*constants.SatoshiPerBitcoin, 10), 1, 10, nil},
		{"under paying", coinbase(1), 1, 10, nil},
		{"one too many", coinbase(50*constants.SatoshiPerBitcoin + 11), 1, 10, ruleerrors.ErrBadCoinbaseValue},
		{"after a halving", coinbase(50 * constants.SatoshiPerBitcoin), 150, 0, ruleerrors.ErrBadCoinbaseValue},
		{"above max money", coinbase(constants.MaxMoney, 1), 1, 0, ruleerrors.ErrTotalTxOutValueTooHigh},
	}

	for _, test := range tests {
		subsidy, err := manager.ValidateCoinbaseTransactionInContext(test.coinbase, test.height, test.fees)
		if !errors.Is(err, test.expectedErr) {
			t.Fatalf("TestValidateCoinbaseTransactionInContext (%s): Expected %v, found: %v",
				test.name, test.expectedErr, err)
		}
		if err == nil && subsidy != manager.CalcBlockSubsidy(test.height) {
			t.Fatalf("TestValidateCoinbaseTransactionInContext (%s): Expected subsidy %d, found: %d",
				test.name, manager.CalcBlockSubsidy(test.height), subsidy)
		}
	}
}
