package model

import (
	"github.com/kaspanet/btcconsensus/domain/consensus/model/externalapi"
	"github.com/kaspanet/btcconsensus/domain/consensus/utils/txscript"
)

// TransactionValidator exposes a set of validation classes, after which
// it's possible to determine whether either a transaction is valid
type TransactionValidator interface {
	CheckTransactionInIsolation(tx *externalapi.DomainTransaction) error
	CheckTransactionInContext(tx *externalapi.DomainTransaction, utxoSet externalapi.UTXOSet,
		height externalapi.BlockHeight, flags txscript.ScriptFlags) (fee externalapi.Amount, err error)
	CheckTransactionInputs(tx *externalapi.DomainTransaction, utxoSet externalapi.UTXOSet,
		height externalapi.BlockHeight) (fee externalapi.Amount, referencedEntries []externalapi.UTXOEntry, err error)
	CheckTransactionScripts(tx *externalapi.DomainTransaction, referencedEntries []externalapi.UTXOEntry,
		flags txscript.ScriptFlags) error
	IsFinalizedTransaction(tx *externalapi.DomainTransaction, height externalapi.BlockHeight, blockTime int64) bool
	CalcSequenceLock(tx *externalapi.DomainTransaction, referencedEntries []externalapi.UTXOEntry,
		chainContext *externalapi.ChainContext) (*externalapi.SequenceLock, error)
	SequenceLockActive(sequenceLock *externalapi.SequenceLock, height externalapi.BlockHeight, medianTimePast int64) bool
}
