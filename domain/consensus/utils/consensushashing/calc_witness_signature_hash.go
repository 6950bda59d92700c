package consensushashing

import (
	"github.com/kaspanet/btcconsensus/domain/consensus/model/externalapi"
	"github.com/kaspanet/btcconsensus/domain/consensus/utils/hashes"
	"github.com/kaspanet/btcconsensus/domain/consensus/utils/serialization"
	"github.com/pkg/errors"
)

// TxSigHashes houses the partial set of sighashes introduced within BIP0143.
// They are computed once per transaction and shared by all of its inputs.
type TxSigHashes struct {
	HashPrevOuts *externalapi.DomainHash
	HashSequence *externalapi.DomainHash
	HashOutputs  *externalapi.DomainHash
}

// NewTxSigHashes computes, and returns the cached sighashes of the given
// transaction.
func NewTxSigHashes(tx *externalapi.DomainTransaction) *TxSigHashes {
	return &TxSigHashes{
		HashPrevOuts: calcHashPrevOuts(tx),
		HashSequence: calcHashSequence(tx),
		HashOutputs:  calcHashOutputs(tx),
	}
}

func calcHashPrevOuts(tx *externalapi.DomainTransaction) *externalapi.DomainHash {
	writer := hashes.NewHashWriter()
	for _, input := range tx.Inputs {
		infallibleWriteElement(writer, &input.PreviousOutpoint)
	}
	return writer.Finalize()
}

func calcHashSequence(tx *externalapi.DomainTransaction) *externalapi.DomainHash {
	writer := hashes.NewHashWriter()
	for _, input := range tx.Inputs {
		infallibleWriteElement(writer, input.Sequence)
	}
	return writer.Finalize()
}

func calcHashOutputs(tx *externalapi.DomainTransaction) *externalapi.DomainHash {
	writer := hashes.NewHashWriter()
	for _, output := range tx.Outputs {
		writeOutput(writer, output)
	}
	return writer.Finalize()
}

func writeOutput(writer hashes.HashWriter, output *externalapi.DomainTransactionOutput) {
	infallibleWriteElement(writer, output.Value)
	err := serialization.WriteVarBytes(writer, output.ScriptPublicKey)
	if err != nil {
		panic(errors.Wrap(err, "this should never happen. Hash digest should never return an error"))
	}
}

func infallibleWriteElement(writer hashes.HashWriter, element interface{}) {
	err := serialization.WriteElement(writer, element)
	if err != nil {
		// It seems like this could only happen if the writer returned an error.
		// and this writer should never return an error (no allocations or possible failures)
		// the only non-writer error path here is unknown types in `WriteElement`
		panic(errors.Wrap(err, "this should never happen. Hash digest should never return an error"))
	}
}

// CalcWitnessSignatureHash computes the sighash digest of a transaction's
// witness v0 input as defined by BIP0143. scriptCode is the script being
// executed (the implied P2PKH script for P2WPKH, the witness script for
// P2WSH) and amount is the value of the output being spent.
func CalcWitnessSignatureHash(scriptCode []byte, sigHashes *TxSigHashes, hashType SigHashType,
	tx *externalapi.DomainTransaction, idx int, amount externalapi.Amount) (*externalapi.DomainHash, error) {

	if idx < 0 || idx >= len(tx.Inputs) {
		return nil, errors.Errorf("input index %d out of range for a transaction with %d inputs",
			idx, len(tx.Inputs))
	}

	zeroHash := externalapi.NewZeroHash()
	writer := hashes.NewHashWriter()

	// First write out, then encode the transaction's version number.
	infallibleWriteElement(writer, tx.Version)

	// Next write out the possibly pre-calculated hashes for the sequence
	// numbers of all inputs, and the hashes of the previous outs for all
	// outputs.
	anyoneCanPay := hashType&SigHashAnyOneCanPay != 0
	baseType := hashType & SigHashMask

	// If anyone can pay isn't active, then we can use the cached
	// hashPrevOuts, otherwise we just write zeroes for the prev outs.
	if !anyoneCanPay {
		infallibleWriteElement(writer, sigHashes.HashPrevOuts)
	} else {
		infallibleWriteElement(writer, zeroHash)
	}

	// If the sighash isn't anyone can pay, single, or none, the use the
	// cached hash sequences, otherwise write all zeroes for the
	// hashSequence.
	if !anyoneCanPay && baseType != SigHashSingle && baseType != SigHashNone {
		infallibleWriteElement(writer, sigHashes.HashSequence)
	} else {
		infallibleWriteElement(writer, zeroHash)
	}

	input := tx.Inputs[idx]

	// Next, write the outpoint being spent.
	infallibleWriteElement(writer, &input.PreviousOutpoint)

	// The script code and the amount of the output being spent.
	err := serialization.WriteVarBytes(writer, scriptCode)
	if err != nil {
		return nil, err
	}
	infallibleWriteElement(writer, amount)
	infallibleWriteElement(writer, input.Sequence)

	// If the current signature mode isn't single, or none, then we can
	// re-use the pre-generated hashoutputs sighash fragment. Otherwise,
	// we'll serialize and add only the target output index to the signature
	// pre-image.
	switch {
	case baseType != SigHashSingle && baseType != SigHashNone:
		infallibleWriteElement(writer, sigHashes.HashOutputs)
	case baseType == SigHashSingle && idx < len(tx.Outputs):
		outputWriter := hashes.NewHashWriter()
		writeOutput(outputWriter, tx.Outputs[idx])
		infallibleWriteElement(writer, outputWriter.Finalize())
	default:
		infallibleWriteElement(writer, zeroHash)
	}

	// Finally, write out the transaction's locktime, and the sig hash
	// type.
	infallibleWriteElement(writer, tx.LockTime)
	infallibleWriteElement(writer, uint32(hashType))

	return writer.Finalize(), nil
}
