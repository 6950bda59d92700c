package externalapi

import (
	"github.com/btcsuite/btcutil"
)

// Amount is a quantity of the smallest currency unit. It is signed so that
// intermediate results of subtraction can be checked before use, but a valid
// output value is always within [0, MaxMoney].
type Amount int64

// String returns the amount formatted in whole coins
func (a Amount) String() string {
	return btcutil.Amount(a).String()
}

// BlockHeight is the distance of a block from the genesis block
type BlockHeight uint64
