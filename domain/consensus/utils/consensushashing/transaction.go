package consensushashing

import (
	"github.com/kaspanet/btcconsensus/domain/consensus/model/externalapi"
	"github.com/kaspanet/btcconsensus/domain/consensus/utils/hashes"
	"github.com/kaspanet/btcconsensus/domain/consensus/utils/serialization"
	"github.com/pkg/errors"
)

// TransactionID generates the ID of a transaction: the double SHA-256 of its
// serialization without witness data.
func TransactionID(tx *externalapi.DomainTransaction) *externalapi.DomainTransactionID {
	writer := hashes.NewHashWriter()
	err := serialization.SerializeTransaction(writer, tx, false)
	if err != nil {
		// It seems like this could only happen if the writer returned an error.
		// and this writer should never return an error (no allocations or possible failures)
		// the only non-writer error path here is unknown types in `WriteElement`
		panic(errors.Wrap(err, "TransactionID() failed. this should never fail for structurally-valid transactions"))
	}
	return (*externalapi.DomainTransactionID)(writer.Finalize())
}

// TransactionHash returns the witness hash (wtxid) of a transaction: the
// double SHA-256 of its serialization with witness data. For a transaction
// without witness data it equals the transaction ID.
func TransactionHash(tx *externalapi.DomainTransaction) *externalapi.DomainHash {
	writer := hashes.NewHashWriter()
	err := serialization.SerializeTransaction(writer, tx, true)
	if err != nil {
		panic(errors.Wrap(err, "TransactionHash() failed. this should never fail for structurally-valid transactions"))
	}
	return writer.Finalize()
}

// TransactionIDs converts the provided slice of DomainTransactions
// to a corresponding slice of TransactionIDs
func TransactionIDs(txs []*externalapi.DomainTransaction) []*externalapi.DomainTransactionID {
	txIDs := make([]*externalapi.DomainTransactionID, len(txs))
	for i, tx := range txs {
		txIDs[i] = TransactionID(tx)
	}
	return txIDs
}
