package externalapi

// UTXOSet is the mapping from outpoints to unspent outputs that the
// validation core reads and mutates. Persistence is the implementer's
// concern, hence the error returns.
type UTXOSet interface {
	Get(outpoint *DomainOutpoint) (entry UTXOEntry, found bool, err error)
	Insert(outpoint *DomainOutpoint, entry UTXOEntry) error
	Remove(outpoint *DomainOutpoint) error
}

// UTXODiffApplier is implemented by UTXO sets that can apply a whole diff
// atomically. Sets that don't implement it get the diff applied entry by
// entry.
type UTXODiffApplier interface {
	ApplyDiff(diff UTXODiff) error
}

// UTXOSetIterator is implemented by UTXO sets that can enumerate their
// content. f must not modify the set.
type UTXOSetIterator interface {
	ForEach(func(outpoint *DomainOutpoint, entry UTXOEntry) error) error
}

// UTXOSetCloner is implemented by UTXO sets that can produce an independent
// copy of themselves
type UTXOSetCloner interface {
	CloneUTXOSet() (UTXOSet, error)
}
