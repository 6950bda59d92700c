package externalapi

// UTXOEntry houses details about an individual transaction output in a utxo
// set such as whether or not it was contained in a coinbase tx, the height of
// the block that contains the tx, its public key script, and how much it pays.
type UTXOEntry interface {
	Amount() Amount
	ScriptPublicKey() []byte
	BlockHeight() BlockHeight
	IsCoinbase() bool
	Equal(other UTXOEntry) bool
}

// OutpointAndUTXOEntryPair is an outpoint along with its
// respective UTXO entry
type OutpointAndUTXOEntryPair struct {
	Outpoint  *DomainOutpoint
	UTXOEntry UTXOEntry
}
