package coinbasemanager

import (
	"github.com/kaspanet/btcconsensus/domain/chaincfg"
	"github.com/kaspanet/btcconsensus/domain/consensus/model"
	"github.com/kaspanet/btcconsensus/domain/consensus/model/externalapi"
	"github.com/kaspanet/btcconsensus/domain/consensus/ruleerrors"
	"github.com/kaspanet/btcconsensus/domain/consensus/utils/constants"
	"github.com/pkg/errors"
)

type coinbaseManager struct {
	params *chaincfg.Params
}

// New instantiates a new CoinbaseManager
func New(params *chaincfg.Params) model.CoinbaseManager {
	return &coinbaseManager{
		params: params,
	}
}

func (c *coinbaseManager) CalcBlockSubsidy(height externalapi.BlockHeight) externalapi.Amount {
	return CalcBlockSubsidy(height, c.params)
}

func (c *coinbaseManager) TotalSupply(height externalapi.BlockHeight) externalapi.Amount {
	return TotalSupply(height, c.params)
}

// ValidateCoinbaseTransactionInContext makes sure the coinbase does not pay
// more than the block subsidy plus the fees collected by the rest of the
// block. It returns the subsidy of the block.
func (c *coinbaseManager) ValidateCoinbaseTransactionInContext(coinbaseTransaction *externalapi.DomainTransaction,
	height externalapi.BlockHeight, totalFees externalapi.Amount) (externalapi.Amount, error) {

	subsidy := c.CalcBlockSubsidy(height)

	totalOut := externalapi.Amount(0)
	for _, output := range coinbaseTransaction.Outputs {
		totalOut += output.Value
		if totalOut > constants.MaxMoney {
			return 0, errors.Wrapf(ruleerrors.ErrTotalTxOutValueTooHigh, "total value of coinbase "+
				"outputs exceeds max allowed value of %d", constants.MaxMoney)
		}
	}

	maxAllowed := subsidy + totalFees
	if totalFees < 0 || maxAllowed < subsidy {
		return 0, errors.Wrapf(ruleerrors.ErrFeesOverflow, "block fees of %d overflow", totalFees)
	}
	if totalOut > maxAllowed {
		return 0, errors.Wrapf(ruleerrors.ErrBadCoinbaseValue, "coinbase transaction for block at "+
			"height %d pays %s which is more than expected value of %s", height, totalOut, maxAllowed)
	}

	log.Tracef("Coinbase at height %d pays %s out of an allowed %s", height, totalOut, maxAllowed)
	return subsidy, nil
}
