package model

import "github.com/kaspanet/btcconsensus/domain/consensus/model/externalapi"

// Multiset represents a multiset of serialized UTXOs whose hash commits to
// the content of a UTXO set regardless of insertion order
type Multiset interface {
	Add(data []byte)
	Remove(data []byte)
	Hash() *externalapi.DomainHash
	Serialize() []byte
	Clone() Multiset
}
