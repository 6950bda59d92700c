package transactionhelper

import "github.com/kaspanet/btcconsensus/domain/consensus/model/externalapi"

// IsCoinBase determines whether or not a transaction is a coinbase. A coinbase
// is a special transaction created by miners that has no inputs. This is
// represented in the block chain by a transaction with a single input that has
// a previous output transaction index set to the maximum value along with a
// zero hash.
func IsCoinBase(tx *externalapi.DomainTransaction) bool {
	// A coin base must only have one transaction input.
	if len(tx.Inputs) != 1 {
		return false
	}

	// The previous output of a coin base must have a max value index and
	// a zero hash.
	return tx.Inputs[0].PreviousOutpoint.IsNull()
}

// CoinbaseTransactionIndex is the index of the coinbase transaction in every block
const CoinbaseTransactionIndex = 0
