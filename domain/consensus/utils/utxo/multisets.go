package utxo

import (
	"github.com/kaspanet/btcconsensus/domain/consensus/model"
	"github.com/kaspanet/btcconsensus/domain/consensus/model/externalapi"
)

// AddUTXOToMultiset adds the serialized outpoint and entry to multiset
func AddUTXOToMultiset(multiset model.Multiset, entry externalapi.UTXOEntry,
	outpoint *externalapi.DomainOutpoint) error {

	serializedUTXO, err := SerializeUTXO(entry, outpoint)
	if err != nil {
		return err
	}
	multiset.Add(serializedUTXO)

	return nil
}

// RemoveUTXOFromMultiset removes the serialized outpoint and entry from
// multiset
func RemoveUTXOFromMultiset(multiset model.Multiset, entry externalapi.UTXOEntry,
	outpoint *externalapi.DomainOutpoint) error {

	serializedUTXO, err := SerializeUTXO(entry, outpoint)
	if err != nil {
		return err
	}
	multiset.Remove(serializedUTXO)

	return nil
}

// AddSetToMultiset adds every entry of the set to multiset
func AddSetToMultiset(multiset model.Multiset, set externalapi.UTXOSetIterator) error {
	return set.ForEach(func(outpoint *externalapi.DomainOutpoint, entry externalapi.UTXOEntry) error {
		return AddUTXOToMultiset(multiset, entry, outpoint)
	})
}

// ApplyDiffToMultiset updates multiset the way applying diff updates the set
// it commits to
func ApplyDiffToMultiset(multiset model.Multiset, diff externalapi.UTXODiff) error {
	err := diff.ToRemove().ForEach(func(outpoint *externalapi.DomainOutpoint, entry externalapi.UTXOEntry) error {
		return RemoveUTXOFromMultiset(multiset, entry, outpoint)
	})
	if err != nil {
		return err
	}
	return diff.ToAdd().ForEach(func(outpoint *externalapi.DomainOutpoint, entry externalapi.UTXOEntry) error {
		return AddUTXOToMultiset(multiset, entry, outpoint)
	})
}
