package serialization

import (
	"bytes"
	"io"

	"github.com/kaspanet/btcconsensus/domain/consensus/model/externalapi"
	"github.com/kaspanet/btcconsensus/domain/consensus/ruleerrors"
	"github.com/kaspanet/btcconsensus/domain/consensus/utils/constants"
	"github.com/pkg/errors"
)

const (
	// witnessMarkerByte is a special byte used to signal that the
	// transaction uses the witness encoding. It takes the place of the
	// input count, which can't legally be zero.
	witnessMarkerByte = 0x00

	// witnessFlagByte follows the marker byte. Only 0x01 is defined.
	witnessFlagByte = 0x01

	// minTxInSize is the minimum serialized size of a transaction input:
	// outpoint 36 + script length 1 + sequence 4.
	minTxInSize = 41

	// minTxOutSize is the minimum serialized size of a transaction
	// output: value 8 + script length 1.
	minTxOutSize = 9

	// maxTxInCount is the largest input count a decodable transaction may
	// declare. Anything bigger can't fit in a block.
	maxTxInCount = constants.MaxBlockSerializedSize / minTxInSize

	// maxTxOutCount is the largest output count a decodable transaction may
	// declare.
	maxTxOutCount = constants.MaxBlockSerializedSize / minTxOutSize

	// maxScriptSize is the largest script a decodable transaction may carry
	maxScriptSize = constants.MaxBlockSerializedSize

	// maxWitnessItemsPerInput is the maximum number of witness items to
	// be read for the witness data for a single input.
	maxWitnessItemsPerInput = 500_000

	// maxWitnessItemSize is the maximum allowed size for an item within
	// an input's witness data.
	maxWitnessItemSize = 11_000
)

// SerializeTransaction writes tx to w. Witness data is written using the
// BIP144 encoding when withWitness is set and tx carries any. Otherwise the
// legacy encoding is used.
func SerializeTransaction(w io.Writer, tx *externalapi.DomainTransaction, withWitness bool) error {
	err := WriteElement(w, tx.Version)
	if err != nil {
		return err
	}

	useWitness := withWitness && tx.HasWitness()
	if useWitness {
		err = WriteElements(w, uint8(witnessMarkerByte), uint8(witnessFlagByte))
		if err != nil {
			return err
		}
	}

	err = WriteVarInt(w, uint64(len(tx.Inputs)))
	if err != nil {
		return err
	}
	for _, input := range tx.Inputs {
		err = writeTransactionInput(w, input)
		if err != nil {
			return err
		}
	}

	err = WriteVarInt(w, uint64(len(tx.Outputs)))
	if err != nil {
		return err
	}
	for _, output := range tx.Outputs {
		err = writeTransactionOutput(w, output)
		if err != nil {
			return err
		}
	}

	if useWitness {
		for _, input := range tx.Inputs {
			err = writeWitness(w, input.Witness)
			if err != nil {
				return err
			}
		}
	}

	return WriteElement(w, tx.LockTime)
}

func writeTransactionInput(w io.Writer, input *externalapi.DomainTransactionInput) error {
	err := WriteElement(w, &input.PreviousOutpoint)
	if err != nil {
		return err
	}
	err = WriteVarBytes(w, input.SignatureScript)
	if err != nil {
		return err
	}
	return WriteElement(w, input.Sequence)
}

func writeTransactionOutput(w io.Writer, output *externalapi.DomainTransactionOutput) error {
	err := WriteElement(w, output.Value)
	if err != nil {
		return err
	}
	return WriteVarBytes(w, output.ScriptPublicKey)
}

func writeWitness(w io.Writer, witness [][]byte) error {
	err := WriteVarInt(w, uint64(len(witness)))
	if err != nil {
		return err
	}
	for _, item := range witness {
		err = WriteVarBytes(w, item)
		if err != nil {
			return err
		}
	}
	return nil
}

// DeserializeTransaction reads a transaction from r, accepting both the
// legacy and the BIP144 witness encodings. Every failure is a
// ruleerrors.ErrMalformedEncoding.
func DeserializeTransaction(r io.Reader) (*externalapi.DomainTransaction, error) {
	tx, err := deserializeTransaction(r)
	if err != nil {
		return nil, malformed(err, "failed to deserialize transaction")
	}
	return tx, nil
}

func deserializeTransaction(r io.Reader) (*externalapi.DomainTransaction, error) {
	tx := &externalapi.DomainTransaction{}
	err := ReadElement(r, &tx.Version)
	if err != nil {
		return nil, err
	}

	inputCount, err := ReadVarInt(r)
	if err != nil {
		return nil, err
	}

	// A zero input count is the witness marker. It must be followed by
	// the witness flag and the real input count.
	hasWitness := false
	if inputCount == witnessMarkerByte {
		var flag uint8
		err = ReadElement(r, &flag)
		if err != nil {
			return nil, err
		}
		if flag != witnessFlagByte {
			return nil, errors.Wrapf(ruleerrors.ErrMalformedEncoding,
				"witness tx but flag byte is %x", flag)
		}
		hasWitness = true

		inputCount, err = ReadVarInt(r)
		if err != nil {
			return nil, err
		}
	}

	if inputCount > maxTxInCount {
		return nil, errors.Wrapf(ruleerrors.ErrMalformedEncoding,
			"too many input transactions to fit into max message size [count %d, max %d]",
			inputCount, maxTxInCount)
	}
	tx.Inputs = make([]*externalapi.DomainTransactionInput, inputCount)
	for i := range tx.Inputs {
		tx.Inputs[i], err = readTransactionInput(r)
		if err != nil {
			return nil, err
		}
	}

	outputCount, err := ReadVarInt(r)
	if err != nil {
		return nil, err
	}
	if outputCount > maxTxOutCount {
		return nil, errors.Wrapf(ruleerrors.ErrMalformedEncoding,
			"too many output transactions to fit into max message size [count %d, max %d]",
			outputCount, maxTxOutCount)
	}
	tx.Outputs = make([]*externalapi.DomainTransactionOutput, outputCount)
	for i := range tx.Outputs {
		tx.Outputs[i], err = readTransactionOutput(r)
		if err != nil {
			return nil, err
		}
	}

	if hasWitness {
		for _, input := range tx.Inputs {
			input.Witness, err = readWitness(r)
			if err != nil {
				return nil, err
			}
		}
		// The witness encoding is only canonical if it carries witness data.
		if !tx.HasWitness() {
			return nil, errors.Wrapf(ruleerrors.ErrMalformedEncoding, "superfluous witness record")
		}
	}

	err = ReadElement(r, &tx.LockTime)
	if err != nil {
		return nil, err
	}

	return tx, nil
}

func readTransactionInput(r io.Reader) (*externalapi.DomainTransactionInput, error) {
	input := &externalapi.DomainTransactionInput{}
	err := ReadElement(r, &input.PreviousOutpoint)
	if err != nil {
		return nil, err
	}
	input.SignatureScript, err = ReadVarBytes(r, maxScriptSize, "transaction input signature script")
	if err != nil {
		return nil, err
	}
	err = ReadElement(r, &input.Sequence)
	if err != nil {
		return nil, err
	}
	return input, nil
}

func readTransactionOutput(r io.Reader) (*externalapi.DomainTransactionOutput, error) {
	output := &externalapi.DomainTransactionOutput{}
	err := ReadElement(r, &output.Value)
	if err != nil {
		return nil, err
	}
	output.ScriptPublicKey, err = ReadVarBytes(r, maxScriptSize, "transaction output public key script")
	if err != nil {
		return nil, err
	}
	return output, nil
}

func readWitness(r io.Reader) ([][]byte, error) {
	itemCount, err := ReadVarInt(r)
	if err != nil {
		return nil, err
	}
	if itemCount > maxWitnessItemsPerInput {
		return nil, errors.Wrapf(ruleerrors.ErrMalformedEncoding,
			"too many witness items to fit into max message size [count %d, max %d]",
			itemCount, maxWitnessItemsPerInput)
	}
	if itemCount == 0 {
		return nil, nil
	}

	witness := make([][]byte, 0, minInt(int(itemCount), 64))
	for i := uint64(0); i < itemCount; i++ {
		item, err := ReadVarBytes(r, maxWitnessItemSize, "script witness item")
		if err != nil {
			return nil, err
		}
		witness = append(witness, item)
	}
	return witness, nil
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// TransactionToBytes returns the serialization of tx, witness included
func TransactionToBytes(tx *externalapi.DomainTransaction) []byte {
	return transactionToBytes(tx, true)
}

// TransactionToBytesStripped returns the serialization of tx without its
// witness data
func TransactionToBytesStripped(tx *externalapi.DomainTransaction) []byte {
	return transactionToBytes(tx, false)
}

func transactionToBytes(tx *externalapi.DomainTransaction, withWitness bool) []byte {
	buf := bytes.NewBuffer(make([]byte, 0, TransactionSerializeSize(tx, withWitness)))
	err := SerializeTransaction(buf, tx, withWitness)
	if err != nil {
		// bytes.Buffer never fails writes
		panic(errors.Wrap(err, "this should never happen. Serializing to a bytes.Buffer should never fail"))
	}
	return buf.Bytes()
}

// BytesToTransaction deserializes a transaction that must span all of data
func BytesToTransaction(data []byte) (*externalapi.DomainTransaction, error) {
	r := bytes.NewReader(data)
	tx, err := DeserializeTransaction(r)
	if err != nil {
		return nil, err
	}
	if r.Len() != 0 {
		return nil, errors.Wrapf(ruleerrors.ErrMalformedEncoding,
			"%d trailing bytes after transaction", r.Len())
	}
	return tx, nil
}

// TransactionSerializeSize returns the number of bytes it would take to
// serialize tx
func TransactionSerializeSize(tx *externalapi.DomainTransaction, withWitness bool) int {
	// Version 4 bytes + LockTime 4 bytes + input and output counts.
	n := 8 + VarIntSerializeSize(uint64(len(tx.Inputs))) +
		VarIntSerializeSize(uint64(len(tx.Outputs)))

	for _, input := range tx.Inputs {
		// Outpoint 36 bytes + script length + script + sequence 4 bytes.
		n += 40 + VarIntSerializeSize(uint64(len(input.SignatureScript))) + len(input.SignatureScript)
	}

	for _, output := range tx.Outputs {
		// Value 8 bytes + script length + script.
		n += 8 + VarIntSerializeSize(uint64(len(output.ScriptPublicKey))) + len(output.ScriptPublicKey)
	}

	if withWitness && tx.HasWitness() {
		// Marker and flag bytes.
		n += 2
		for _, input := range tx.Inputs {
			n += VarIntSerializeSize(uint64(len(input.Witness)))
			for _, item := range input.Witness {
				n += VarIntSerializeSize(uint64(len(item))) + len(item)
			}
		}
	}

	return n
}

// TransactionWeight returns the BIP141 weight of tx: the size without
// witness data counts WitnessScaleFactor times, the witness data once.
func TransactionWeight(tx *externalapi.DomainTransaction) int {
	baseSize := TransactionSerializeSize(tx, false)
	totalSize := TransactionSerializeSize(tx, true)
	return baseSize*(constants.WitnessScaleFactor-1) + totalSize
}
