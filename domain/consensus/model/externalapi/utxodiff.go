package externalapi

// UTXOCollection represents a collection of UTXO entries, indexed by their outpoint
type UTXOCollection interface {
	Get(outpoint *DomainOutpoint) (UTXOEntry, bool)
	Contains(outpoint *DomainOutpoint) bool
	Len() int
	// ForEach visits the entries ordered by outpoint
	ForEach(func(outpoint *DomainOutpoint, entry UTXOEntry) error) error
}

// UTXODiff represents the diff between two UTXO sets. Applying it means
// removing every outpoint in ToRemove and then adding every entry in ToAdd.
// ToRemove keeps the removed entries so the diff can be reversed exactly.
type UTXODiff interface {
	ToAdd() UTXOCollection
	ToRemove() UTXOCollection
	Reversed() UTXODiff
}
