package utxo

import (
	"bytes"

	"github.com/kaspanet/btcconsensus/domain/consensus/model/externalapi"
)

type utxoEntry struct {
	amount          externalapi.Amount
	scriptPublicKey []byte
	blockHeight     externalapi.BlockHeight
	isCoinbase      bool
}

// NewUTXOEntry creates a new utxoEntry representing the given txOut
func NewUTXOEntry(amount externalapi.Amount, scriptPubKey []byte, isCoinbase bool,
	blockHeight externalapi.BlockHeight) externalapi.UTXOEntry {

	scriptPubKeyClone := make([]byte, len(scriptPubKey))
	copy(scriptPubKeyClone, scriptPubKey)
	return &utxoEntry{
		amount:          amount,
		scriptPublicKey: scriptPubKeyClone,
		blockHeight:     blockHeight,
		isCoinbase:      isCoinbase,
	}
}

func (u *utxoEntry) Amount() externalapi.Amount {
	return u.amount
}

// ScriptPublicKey returns the entry's script. The caller must not modify it.
func (u *utxoEntry) ScriptPublicKey() []byte {
	return u.scriptPublicKey
}

func (u *utxoEntry) BlockHeight() externalapi.BlockHeight {
	return u.blockHeight
}

func (u *utxoEntry) IsCoinbase() bool {
	return u.isCoinbase
}

// Equal returns whether entry equals to other
func (u *utxoEntry) Equal(other externalapi.UTXOEntry) bool {
	if u == nil || other == nil {
		return other == nil && u == nil
	}

	if u.Amount() != other.Amount() {
		return false
	}

	if !bytes.Equal(u.ScriptPublicKey(), other.ScriptPublicKey()) {
		return false
	}

	if u.BlockHeight() != other.BlockHeight() {
		return false
	}

	return u.IsCoinbase() == other.IsCoinbase()
}
