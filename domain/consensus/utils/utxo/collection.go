package utxo

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kaspanet/btcconsensus/domain/consensus/model/externalapi"
)

// utxoCollection represents a set of UTXOs indexed by their outpoints
type utxoCollection map[externalapi.DomainOutpoint]externalapi.UTXOEntry

// NewUTXOCollection creates a UTXO collection out of the given map. The map
// is taken over, not copied.
func NewUTXOCollection(utxoMap map[externalapi.DomainOutpoint]externalapi.UTXOEntry) externalapi.UTXOCollection {
	return utxoCollection(utxoMap)
}

func (uc utxoCollection) String() string {
	utxoStrings := make([]string, 0, len(uc))
	for _, outpoint := range uc.sortedOutpoints() {
		utxoStrings = append(utxoStrings, fmt.Sprintf("%s => %d", outpoint, uc[outpoint].Amount()))
	}

	return fmt.Sprintf("[ %s ]", strings.Join(utxoStrings, ", "))
}

// add adds a new UTXO entry to this collection
func (uc utxoCollection) add(outpoint *externalapi.DomainOutpoint, entry externalapi.UTXOEntry) {
	uc[*outpoint] = entry
}

// remove removes a UTXO entry from this collection if it exists
func (uc utxoCollection) remove(outpoint *externalapi.DomainOutpoint) {
	delete(uc, *outpoint)
}

// Get returns the UTXOEntry represented by provided outpoint,
// and a boolean value indicating if said UTXOEntry is in the set or not
func (uc utxoCollection) Get(outpoint *externalapi.DomainOutpoint) (externalapi.UTXOEntry, bool) {
	entry, ok := uc[*outpoint]
	return entry, ok
}

// Contains returns a boolean value indicating whether a UTXO entry is in the set
func (uc utxoCollection) Contains(outpoint *externalapi.DomainOutpoint) bool {
	_, ok := uc[*outpoint]
	return ok
}

func (uc utxoCollection) Len() int {
	return len(uc)
}

// ForEach calls f on every entry in outpoint order and stops at the first
// error f returns
func (uc utxoCollection) ForEach(f func(outpoint *externalapi.DomainOutpoint, entry externalapi.UTXOEntry) error) error {
	for _, outpoint := range uc.sortedOutpoints() {
		outpoint := outpoint
		err := f(&outpoint, uc[outpoint])
		if err != nil {
			return err
		}
	}
	return nil
}

// clone returns a clone of this collection
func (uc utxoCollection) clone() utxoCollection {
	clone := make(utxoCollection, len(uc))
	for outpoint, entry := range uc {
		clone[outpoint] = entry
	}

	return clone
}

func (uc utxoCollection) sortedOutpoints() []externalapi.DomainOutpoint {
	outpoints := make([]externalapi.DomainOutpoint, 0, len(uc))
	for outpoint := range uc {
		outpoints = append(outpoints, outpoint)
	}
	sort.Slice(outpoints, func(i, j int) bool {
		return LessOutpoint(&outpoints[i], &outpoints[j])
	})
	return outpoints
}

// LessOutpoint orders outpoints by transaction ID bytes and then by index.
// It is the iteration order of every UTXO collection and set in this package.
func LessOutpoint(a, b *externalapi.DomainOutpoint) bool {
	if !a.TransactionID.Equal(&b.TransactionID) {
		return a.TransactionID.Less(&b.TransactionID)
	}
	return a.Index < b.Index
}
