package utxo

import (
	"bytes"
	"io"

	"github.com/kaspanet/btcconsensus/domain/consensus/model/externalapi"
	"github.com/kaspanet/btcconsensus/domain/consensus/utils/constants"
	"github.com/kaspanet/btcconsensus/domain/consensus/utils/serialization"
	"github.com/pkg/errors"
)

// OutpointSerializeSize is the size of a serialized outpoint
const OutpointSerializeSize = externalapi.DomainHashSize + 4

// SerializeUTXO returns the byte-slice representation for given UTXOEntry-outpoint pair
func SerializeUTXO(entry externalapi.UTXOEntry, outpoint *externalapi.DomainOutpoint) ([]byte, error) {
	w := &bytes.Buffer{}

	err := serializeOutpoint(w, outpoint)
	if err != nil {
		return nil, err
	}

	err = serializeUTXOEntry(w, entry)
	if err != nil {
		return nil, err
	}

	return w.Bytes(), nil
}

// DeserializeUTXO deserializes the given byte slice to UTXOEntry-outpoint pair
func DeserializeUTXO(utxoBytes []byte) (entry externalapi.UTXOEntry, outpoint *externalapi.DomainOutpoint, err error) {
	r := bytes.NewReader(utxoBytes)
	outpoint, err = deserializeOutpoint(r)
	if err != nil {
		return nil, nil, err
	}

	entry, err = deserializeUTXOEntry(r)
	if err != nil {
		return nil, nil, err
	}

	return entry, outpoint, nil
}

// SerializeOutpoint returns the byte-slice representation of outpoint
func SerializeOutpoint(outpoint *externalapi.DomainOutpoint) []byte {
	w := bytes.NewBuffer(make([]byte, 0, OutpointSerializeSize))
	// Writes to a bytes.Buffer never fail
	_ = serializeOutpoint(w, outpoint)
	return w.Bytes()
}

// DeserializeOutpoint deserializes an outpoint serialized by SerializeOutpoint
func DeserializeOutpoint(outpointBytes []byte) (*externalapi.DomainOutpoint, error) {
	if len(outpointBytes) != OutpointSerializeSize {
		return nil, errors.Errorf("serialized outpoint must be %d bytes, got %d",
			OutpointSerializeSize, len(outpointBytes))
	}
	return deserializeOutpoint(bytes.NewReader(outpointBytes))
}

// SerializeUTXOEntry returns the byte-slice representation of entry
func SerializeUTXOEntry(entry externalapi.UTXOEntry) ([]byte, error) {
	w := &bytes.Buffer{}
	err := serializeUTXOEntry(w, entry)
	if err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// DeserializeUTXOEntry deserializes an entry serialized by SerializeUTXOEntry
func DeserializeUTXOEntry(entryBytes []byte) (externalapi.UTXOEntry, error) {
	r := bytes.NewReader(entryBytes)
	entry, err := deserializeUTXOEntry(r)
	if err != nil {
		return nil, err
	}
	if r.Len() != 0 {
		return nil, errors.Errorf("%d trailing bytes after UTXO entry", r.Len())
	}
	return entry, nil
}

func serializeOutpoint(w io.Writer, outpoint *externalapi.DomainOutpoint) error {
	return serialization.WriteElement(w, outpoint)
}

func deserializeOutpoint(r io.Reader) (*externalapi.DomainOutpoint, error) {
	outpoint := &externalapi.DomainOutpoint{}
	err := serialization.ReadElement(r, outpoint)
	if err != nil {
		return nil, err
	}
	return outpoint, nil
}

func serializeUTXOEntry(w io.Writer, entry externalapi.UTXOEntry) error {
	isCoinbase := uint8(0)
	if entry.IsCoinbase() {
		isCoinbase = 1
	}
	err := serialization.WriteElements(w, uint64(entry.BlockHeight()), entry.Amount(), isCoinbase)
	if err != nil {
		return err
	}

	return serialization.WriteVarBytes(w, entry.ScriptPublicKey())
}

func deserializeUTXOEntry(r io.Reader) (externalapi.UTXOEntry, error) {
	var blockHeight uint64
	var amount externalapi.Amount
	var isCoinbase uint8
	err := serialization.ReadElements(r, &blockHeight, &amount, &isCoinbase)
	if err != nil {
		return nil, err
	}
	if isCoinbase > 1 {
		return nil, errors.Errorf("invalid coinbase flag %d", isCoinbase)
	}

	scriptPublicKey, err := serialization.ReadVarBytes(r, constants.MaxTxSize, "scriptPublicKey")
	if err != nil {
		return nil, err
	}

	return NewUTXOEntry(amount, scriptPublicKey, isCoinbase == 1, externalapi.BlockHeight(blockHeight)), nil
}
