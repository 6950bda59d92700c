package model

import "github.com/kaspanet/btcconsensus/domain/consensus/model/externalapi"

// CoinbaseManager exposes methods for handling the block subsidy schedule
// and blocks' coinbase transactions
type CoinbaseManager interface {
	CalcBlockSubsidy(height externalapi.BlockHeight) externalapi.Amount
	TotalSupply(height externalapi.BlockHeight) externalapi.Amount
	ValidateCoinbaseTransactionInContext(coinbaseTransaction *externalapi.DomainTransaction,
		height externalapi.BlockHeight, totalFees externalapi.Amount) (subsidy externalapi.Amount, err error)
}
