// Copyright (c) 2013-2018 The btcsuite developers
// Copyright (c) 2015-2018 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txscript

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"math/big"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/kaspanet/btcconsensus/domain/consensus/model/externalapi"
	"github.com/kaspanet/btcconsensus/domain/consensus/utils/consensushashing"
	"github.com/kaspanet/btcconsensus/domain/consensus/utils/sigverify"
	"github.com/kaspanet/btcconsensus/infrastructure/logger"
)

// ScriptFlags is a bitmask defining additional operations or tests that will be
// done when executing a script pair.
type ScriptFlags uint32

const (
	// ScriptBip16 defines whether the bip16 threshold has passed and thus
	// pay-to-script hash transactions will be fully validated.
	ScriptBip16 ScriptFlags = 1 << iota

	// ScriptDiscourageUpgradableNops defines whether to verify that
	// NOP1 through NOP10 are reserved for future soft-fork upgrades. This
	// flag must not be used for consensus critical code nor applied to
	// blocks as this flag is only for stricter standard transaction
	// checks. This flag is only applied when the above opcodes are
	// executed.
	ScriptDiscourageUpgradableNops

	// ScriptVerifyCheckLockTimeVerify defines whether to verify that
	// a transaction output is spendable based on the locktime.
	// This is BIP0065.
	ScriptVerifyCheckLockTimeVerify

	// ScriptVerifyCheckSequenceVerify defines whether to allow execution
	// pathways of a script to be restricted based on the age of the output
	// being spent. This is BIP0112.
	ScriptVerifyCheckSequenceVerify

	// ScriptVerifyCleanStack defines that the stack must contain only
	// one stack element after evaluation and that the element must be
	// true if interpreted as a boolean. This is rule 6 of BIP0062.
	// This flag should never be used without the ScriptBip16 flag.
	ScriptVerifyCleanStack

	// ScriptVerifyDERSignatures defines that signatures are required
	// to comply with the DER format. This is BIP0066.
	ScriptVerifyDERSignatures

	// ScriptVerifyLowS defines that signatures are required to comply with
	// the DER format and whose S value is <= order / 2. This is rule 5
	// of BIP0062.
	ScriptVerifyLowS

	// ScriptVerifyMinimalData defines that signatures must use the smallest
	// push operator. This is both rules 3 and 4 of BIP0062.
	ScriptVerifyMinimalData

	// ScriptVerifyNullDummy defines that the dummy argument of
	// OP_CHECKMULTISIG must be empty. This is BIP0147.
	ScriptVerifyNullDummy

	// ScriptVerifyNullFail defines that signatures must be empty if
	// a CHECKSIG or CHECKMULTISIG operation fails.
	ScriptVerifyNullFail

	// ScriptVerifySigPushOnly defines that signature scripts must contain
	// only pushed data. This is rule 2 of BIP0062.
	ScriptVerifySigPushOnly

	// ScriptVerifyStrictEncoding defines that signature scripts and
	// public keys must follow the strict encoding requirements.
	ScriptVerifyStrictEncoding

	// ScriptVerifyWitness defines whether or not to verify a transaction
	// output using a witness program template. This is BIP0141.
	ScriptVerifyWitness

	// ScriptVerifyDiscourageUpgradeableWitnessProgram makes witness
	// program with versions 1-16 non-standard.
	ScriptVerifyDiscourageUpgradeableWitnessProgram

	// ScriptVerifyMinimalIf makes a script with an OP_IF/OP_NOTIF whose
	// operand is anything other than empty vector or [0x01] non-standard.
	// It only applies to witness scripts.
	ScriptVerifyMinimalIf

	// ScriptVerifyWitnessPubKeyType makes a script within a witness program
	// that checks a signature against an uncompressed public key
	// non-standard.
	ScriptVerifyWitnessPubKeyType
)

// halforder is used to tame ECDSA malleability (see BIP0062).
var halfOrder = new(big.Int).Rsh(btcec.S256().N, 1)

// Engine is the virtual machine that executes scripts.
type Engine struct {
	scripts         [][]parsedOpcode
	scriptIdx       int
	scriptOff       int
	lastCodeSep     int
	dstack          stack // data stack
	astack          stack // alt stack
	tx              *externalapi.DomainTransaction
	txIdx           int
	condStack       []int
	numOps          int
	numSigChecks    int
	flags           ScriptFlags
	sigVerifier     sigverify.SignatureVerifier
	sigHashes       *consensushashing.TxSigHashes
	inputAmount     externalapi.Amount
	bip16           bool     // treat execution as pay-to-script-hash
	savedFirstStack [][]byte // stack from first script for bip16 scripts
	witnessVersion  int
	witnessProgram  []byte
	witnessScript   bool // a version 0 witness script is being executed
}

// hasFlag returns whether the script engine instance has the passed flag set.
func (vm *Engine) hasFlag(flag ScriptFlags) bool {
	return vm.flags&flag == flag
}

// isBranchExecuting returns whether or not the current conditional branch is
// actively executing. For example, when the data stack has an OP_FALSE on it
// and an OP_IF is encountered, the branch is inactive until an OP_ELSE or
// OP_ENDIF is encountered. It properly handles nested conditionals.
func (vm *Engine) isBranchExecuting() bool {
	if len(vm.condStack) == 0 {
		return true
	}
	return vm.condStack[len(vm.condStack)-1] == OpCondTrue
}

func (vm *Engine) isWitnessScriptActive() bool {
	return vm.witnessScript
}

// executeOpcode performs execution on the passed opcode. It takes into account
// whether or not it is hidden by conditionals, but some rules still must be
// tested in this case.
func (vm *Engine) executeOpcode(pop *parsedOpcode) error {
	// Disabled opcodes are fail on program counter.
	if pop.isDisabled() {
		str := fmt.Sprintf("attempt to execute disabled opcode %s",
			pop.opcode.name)
		return scriptError(ErrDisabledOpcode, str)
	}

	// Always-illegal opcodes are fail on program counter.
	if pop.alwaysIllegal() {
		str := fmt.Sprintf("attempt to execute reserved opcode %s",
			pop.opcode.name)
		return scriptError(ErrReservedOpcode, str)
	}

	// Note that this includes OP_RESERVED which counts as a push operation.
	if pop.opcode.value > Op16 {
		vm.numOps++
		if vm.numOps > MaxOpsPerScript {
			str := fmt.Sprintf("exceeded max operation limit of %d",
				MaxOpsPerScript)
			return scriptError(ErrTooManyOperations, str)
		}

	} else if len(pop.data) > MaxScriptElementSize {
		str := fmt.Sprintf("element size %d exceeds max allowed size %d",
			len(pop.data), MaxScriptElementSize)
		return scriptError(ErrElementTooBig, str)
	}

	// Nothing left to do when this is not a conditional opcode and it is
	// not in an executing branch.
	if !vm.isBranchExecuting() && !pop.isConditional() {
		return nil
	}

	// Ensure all executed data push opcodes use the minimal encoding when
	// the minimal data verification flag is set.
	if vm.dstack.verifyMinimalData && vm.isBranchExecuting() &&
		pop.opcode.value <= OpPushData4 {

		if err := pop.checkMinimalDataPush(); err != nil {
			return err
		}
	}

	return pop.opcode.opfunc(pop, vm)
}

// DisasmPC returns the string for the disassembly of the opcode that will be
// next to execute when Step is called.
func (vm *Engine) DisasmPC() (string, error) {
	if vm.scriptIdx >= len(vm.scripts) {
		str := fmt.Sprintf("past input scripts %v:%v %v:xxxx",
			vm.scriptIdx, vm.scriptOff, len(vm.scripts))
		return "", scriptError(ErrInvalidProgramCounter, str)
	}

	script := vm.scripts[vm.scriptIdx]
	if vm.scriptOff >= len(script) {
		return fmt.Sprintf("%02x:%04x: <end of script>", vm.scriptIdx,
			vm.scriptOff), nil
	}
	return fmt.Sprintf("%02x:%04x: %s", vm.scriptIdx, vm.scriptOff,
		script[vm.scriptOff].print(false)), nil
}

// DisasmScript returns the disassembly string for the script at the requested
// offset index. Index 0 is the signature script and 1 is the public key
// script. Redeem and witness scripts get the following indices once they
// are loaded.
func (vm *Engine) DisasmScript(idx int) (string, error) {
	if idx < 0 || idx >= len(vm.scripts) {
		str := fmt.Sprintf("script index %d >= total scripts %d", idx,
			len(vm.scripts))
		return "", scriptError(ErrInvalidIndex, str)
	}

	var disstr string
	for i := range vm.scripts[idx] {
		disstr = disstr + fmt.Sprintf("%02x:%04x: %s\n", idx, i,
			vm.scripts[idx][i].print(false))
	}
	return disstr, nil
}

// CheckErrorCondition returns nil if the running script has ended and was
// successful, leaving a a true boolean on the stack. An error otherwise,
// including if the script has not finished.
func (vm *Engine) CheckErrorCondition(finalScript bool) error {
	if finalScript {
		// Check execution is actually done. When pc is past the end
		// of script array there are no more scripts to run.
		if vm.scriptIdx < len(vm.scripts) {
			return scriptError(ErrScriptUnfinished,
				"error check when script unfinished")
		}

		// A witness script must always leave exactly one item behind.
		if vm.isWitnessScriptActive() && vm.dstack.Depth() != 1 {
			str := fmt.Sprintf("witness script left %d items on the "+
				"stack", vm.dstack.Depth())
			return scriptError(ErrCleanStack, str)
		}

		if vm.hasFlag(ScriptVerifyCleanStack) && vm.dstack.Depth() != 1 {
			str := fmt.Sprintf("stack contains %d unexpected items",
				vm.dstack.Depth()-1)
			return scriptError(ErrCleanStack, str)
		}
	}

	if vm.dstack.Depth() < 1 {
		return scriptError(ErrEmptyStack,
			"stack empty at end of script execution")
	}

	v, err := vm.dstack.PopBool()
	if err != nil {
		return err
	}
	if !v {
		// Log interesting data.
		log.Tracef("%s", logger.NewLogClosure(func() string {
			dis0, _ := vm.DisasmScript(0)
			dis1, _ := vm.DisasmScript(1)
			return fmt.Sprintf("scripts failed: script0: %s\n"+
				"script1: %s", dis0, dis1)
		}))
		return scriptError(ErrEvalFalse,
			"false stack entry at end of script execution")
	}
	return nil
}

// Step will execute the next instruction and move the program counter to the
// next opcode in the script, or the next script if the current has ended. Step
// will return true in the case that the last opcode was successfully executed.
//
// The result of calling Step or any other method is undefined if an error is
// returned.
func (vm *Engine) Step() (done bool, err error) {
	if vm.scriptIdx >= len(vm.scripts) {
		str := fmt.Sprintf("attempt to step beyond script index %d",
			len(vm.scripts))
		return true, scriptError(ErrInvalidProgramCounter, str)
	}

	script := vm.scripts[vm.scriptIdx]
	if vm.scriptOff < len(script) {
		// Execute the opcode while taking into account several things
		// such as disabled opcodes, illegal opcodes, maximum allowed
		// operations per script, maximum script element sizes, and
		// conditionals.
		if err := vm.executeOpcode(&script[vm.scriptOff]); err != nil {
			return true, err
		}

		// The number of elements in the combination of the data and
		// alt stacks must not exceed the maximum number of stack
		// elements allowed.
		combinedStackSize := len(vm.dstack.stk) + len(vm.astack.stk)
		if combinedStackSize > MaxStackSize {
			str := fmt.Sprintf("combined stack size %d > max "+
				"allowed %d", combinedStackSize, MaxStackSize)
			return false, scriptError(ErrStackOverflow, str)
		}

		vm.scriptOff++
		if vm.scriptOff < len(script) {
			return false, nil
		}
	}

	if err := vm.finishScript(); err != nil {
		return true, err
	}
	return vm.scriptIdx >= len(vm.scripts), nil
}

// finishScript runs once the current script has no opcodes left. It checks
// the conditionals are balanced, resets the per-script state, and loads the
// next script: the P2SH redeem script or the witness script, when the pair
// being verified calls for one.
func (vm *Engine) finishScript() error {
	if len(vm.condStack) != 0 {
		return scriptError(ErrUnbalancedConditional,
			"end of script reached in conditional execution")
	}

	// The alt stack doesn't persist between scripts.
	vm.astack.stk = nil

	vm.numOps = 0
	vm.numSigChecks = 0
	vm.scriptOff = 0
	vm.lastCodeSep = 0

	switch {
	case vm.scriptIdx == 0 && vm.bip16:
		vm.scriptIdx++
		vm.savedFirstStack = vm.GetStack()

	case vm.scriptIdx == 1 && vm.bip16:
		vm.scriptIdx++

		// Put us past the end for CheckErrorCondition()
		if err := vm.CheckErrorCondition(false); err != nil {
			return err
		}

		if len(vm.savedFirstStack) == 0 {
			return scriptError(ErrEmptyStack,
				"pay-to-script-hash signature script pushed nothing")
		}

		script := vm.savedFirstStack[len(vm.savedFirstStack)-1]
		pops, err := parseScript(script)
		if err != nil {
			return err
		}
		vm.scripts = append(vm.scripts, pops)

		// Set stack to be the stack from first script minus the
		// script itself
		vm.SetStack(vm.savedFirstStack[:len(vm.savedFirstStack)-1])

	case vm.witnessProgram != nil &&
		((vm.scriptIdx == 1 && !vm.bip16) || (vm.scriptIdx == 2 && vm.bip16)):

		vm.scriptIdx++

		// The script holding the program must itself succeed before
		// the witness is looked at.
		if err := vm.CheckErrorCondition(false); err != nil {
			return err
		}
		if err := vm.verifyWitnessProgram(); err != nil {
			return err
		}

	default:
		vm.scriptIdx++
	}

	return nil
}

// verifyWitnessProgram validates the stored witness program using the passed
// witness as input. Version 0 programs load their witness script as the next
// script to run.
func (vm *Engine) verifyWitnessProgram() error {
	witness := vm.tx.Inputs[vm.txIdx].Witness

	if vm.witnessVersion != 0 {
		if vm.hasFlag(ScriptVerifyDiscourageUpgradeableWitnessProgram) {
			str := fmt.Sprintf("new witness program versions "+
				"invalid: %d", vm.witnessVersion)
			return scriptError(ErrDiscourageUpgradableWitnessProgram, str)
		}

		// Programs of unknown versions succeed unconditionally so they
		// can be given meaning by a future soft fork.
		vm.SetStack([][]byte{{1}})
		return nil
	}

	var witnessScript []byte
	var stackItems [][]byte
	switch len(vm.witnessProgram) {
	case payToWitnessPubKeyHashDataSize:
		// The witness stack should consist of exactly two items: the
		// signature, and the pubkey.
		if len(witness) != 2 {
			str := fmt.Sprintf("should have exactly two items in "+
				"witness, instead have %d", len(witness))
			return scriptError(ErrWitnessProgramMismatch, str)
		}

		pkScript, err := payToPubKeyHashScript(vm.witnessProgram)
		if err != nil {
			return err
		}
		witnessScript = pkScript
		stackItems = witness

	case payToWitnessScriptHashDataSize:
		if len(witness) == 0 {
			return scriptError(ErrWitnessProgramEmpty,
				"witness program empty passed empty witness")
		}

		witnessScript = witness[len(witness)-1]
		if len(witnessScript) > MaxScriptSize {
			str := fmt.Sprintf("witness script size %d is larger "+
				"than max allowed size %d", len(witnessScript),
				MaxScriptSize)
			return scriptError(ErrScriptTooBig, str)
		}

		witnessHash := sha256.Sum256(witnessScript)
		if !bytes.Equal(witnessHash[:], vm.witnessProgram) {
			return scriptError(ErrWitnessProgramMismatch,
				"witness program hash mismatch")
		}
		stackItems = witness[:len(witness)-1]

	default:
		str := fmt.Sprintf("length of witness program must either be "+
			"%v or %v bytes, instead is %v bytes",
			payToWitnessPubKeyHashDataSize,
			payToWitnessScriptHashDataSize, len(vm.witnessProgram))
		return scriptError(ErrWitnessProgramWrongLength, str)
	}

	for _, item := range stackItems {
		if len(item) > MaxScriptElementSize {
			str := fmt.Sprintf("element size %d exceeds max "+
				"allowed size %d", len(item), MaxScriptElementSize)
			return scriptError(ErrElementTooBig, str)
		}
	}

	pops, err := parseScript(witnessScript)
	if err != nil {
		return err
	}
	vm.scripts = append(vm.scripts, pops)
	vm.SetStack(stackItems)
	vm.witnessScript = true

	return nil
}

// Execute will execute all scripts in the script engine and return either nil
// for successful validation or an error if one occurred.
func (vm *Engine) Execute() (err error) {
	done := false
	for !done {
		log.Tracef("%s", logger.NewLogClosure(func() string {
			dis, err := vm.DisasmPC()
			if err != nil {
				return fmt.Sprintf("stepping (%s)", err)
			}
			return fmt.Sprintf("stepping %s", dis)
		}))

		done, err = vm.Step()
		if err != nil {
			return err
		}
		log.Tracef("%s", logger.NewLogClosure(func() string {
			var dstr, astr string

			// if we're tracing, dump the stacks.
			if vm.dstack.Depth() != 0 {
				dstr = "Stack:\n" + vm.dstack.String()
			}
			if vm.astack.Depth() != 0 {
				astr = "AltStack:\n" + vm.astack.String()
			}

			return dstr + astr
		}))
	}

	return vm.CheckErrorCondition(true)
}

// subScript returns the script since the last OP_CODESEPARATOR.
func (vm *Engine) subScript() []parsedOpcode {
	return vm.scripts[vm.scriptIdx][vm.lastCodeSep:]
}

// checkHashTypeEncoding returns whether or not the passed hashtype adheres to
// the strict encoding requirements if enabled.
func (vm *Engine) checkHashTypeEncoding(hashType consensushashing.SigHashType) error {
	if !vm.hasFlag(ScriptVerifyStrictEncoding) {
		return nil
	}

	sigHashType := hashType & ^consensushashing.SigHashAnyOneCanPay
	if sigHashType < consensushashing.SigHashAll || sigHashType > consensushashing.SigHashSingle {
		str := fmt.Sprintf("invalid hash type 0x%x", hashType)
		return scriptError(ErrInvalidSigHashType, str)
	}
	return nil
}

// isCompressedPubKey returns true the the passed serialized public key has
// been encoded in compressed format, and false otherwise.
func isCompressedPubKey(pubKey []byte) bool {
	// The public key is only compressed if it is the correct length and
	// the format is either 0x02 or 0x03.
	return len(pubKey) == 33 && (pubKey[0] == 0x02 || pubKey[0] == 0x03)
}

// checkPubKeyEncoding returns whether or not the passed public key adheres to
// the strict encoding requirements if enabled.
func (vm *Engine) checkPubKeyEncoding(pubKey []byte) error {
	if vm.hasFlag(ScriptVerifyStrictEncoding) {
		if !isCompressedPubKey(pubKey) &&
			!(len(pubKey) == 65 && pubKey[0] == 0x04) {

			return scriptError(ErrPubKeyType, "unsupported public key type")
		}
	}

	if vm.hasFlag(ScriptVerifyWitnessPubKeyType) &&
		vm.isWitnessScriptActive() && !isCompressedPubKey(pubKey) {

		str := "only compressed keys are accepted post-segwit"
		return scriptError(ErrWitnessPubKeyType, str)
	}

	return nil
}

// checkSignatureEncoding returns whether or not the passed signature adheres to
// the strict encoding requirements if enabled. The signature is passed
// without its trailing hash type byte.
func (vm *Engine) checkSignatureEncoding(sig []byte) error {
	if !vm.hasFlag(ScriptVerifyDERSignatures) &&
		!vm.hasFlag(ScriptVerifyLowS) &&
		!vm.hasFlag(ScriptVerifyStrictEncoding) {

		return nil
	}

	// The format of a DER encoded signature is as follows:
	//
	// 0x30 <total length> 0x02 <length of R> <R> 0x02 <length of S> <S>
	//   - 0x30 is the ASN.1 identifier for a sequence
	//   - Total length is 1 byte and specifies length of all remaining data
	//   - 0x02 is the ASN.1 identifier that specifies an integer follows
	//   - Length of R is 1 byte and specifies how many bytes R occupies
	//   - R is the arbitrary length big-endian encoded number which
	//     represents the R value of the signature. DER encoding dictates
	//     that the value must be encoded using the minimum possible number
	//     of bytes. This implies the first byte can only be null if the
	//     highest bit of the next byte is set in order to prevent it from
	//     being interpreted as a negative number.
	//   - 0x02 is once again the ASN.1 integer identifier
	//   - Length of S is 1 byte and specifies how many bytes S occupies
	//   - S is the arbitrary length big-endian encoded number which
	//     represents the S value of the signature. The encoding rules are
	//     identical as those for R.
	const (
		asn1SequenceID = 0x30
		asn1IntegerID  = 0x02

		// minSigLen is the minimum length of a DER encoded signature and is
		// when both R and S are 1 byte each.
		//
		// 0x30 + <1-byte> + 0x02 + 0x01 + <byte> + 0x2 + 0x01 + <byte>
		minSigLen = 8

		// maxSigLen is the maximum length of a DER encoded signature and is
		// when both R and S are 33 bytes each. It is 33 bytes because a
		// 256-bit integer requires 32 bytes and an additional leading null
		// byte might required if the high bit is set in the value.
		//
		// 0x30 + <1-byte> + 0x02 + 0x21 + <33 bytes> + 0x2 + 0x21 + <33 bytes>
		maxSigLen = 72

		// sequenceOffset is the byte offset within the signature of the
		// expected ASN.1 sequence identifier.
		sequenceOffset = 0

		// dataLenOffset is the byte offset within the signature of the
		// expected total length of all remaining data in the signature.
		dataLenOffset = 1

		// rTypeOffset is the byte offset within the signature of the ASN.1
		// identifier for R and is expected to indicate an ASN.1 integer.
		rTypeOffset = 2

		// rLenOffset is the byte offset within the signature of the length
		// of R.
		rLenOffset = 3

		// rOffset is the byte offset within the signature of R.
		rOffset = 4
	)

	// The signature must adhere to the minimum and maximum allowed length.
	sigLen := len(sig)
	if sigLen < minSigLen {
		str := fmt.Sprintf("malformed signature: too short: %d < %d", sigLen,
			minSigLen)
		return scriptError(ErrSigTooShort, str)
	}
	if sigLen > maxSigLen {
		str := fmt.Sprintf("malformed signature: too long: %d > %d", sigLen,
			maxSigLen)
		return scriptError(ErrSigTooLong, str)
	}

	// The signature must start with the ASN.1 sequence identifier.
	if sig[sequenceOffset] != asn1SequenceID {
		str := fmt.Sprintf("malformed signature: format has wrong type: %#x",
			sig[sequenceOffset])
		return scriptError(ErrSigInvalidSeqID, str)
	}

	// The signature must indicate the correct amount of data for all elements
	// related to R and S.
	if int(sig[dataLenOffset]) != sigLen-2 {
		str := fmt.Sprintf("malformed signature: bad length: %d != %d",
			sig[dataLenOffset], sigLen-2)
		return scriptError(ErrSigInvalidDataLen, str)
	}

	// Calculate the offsets of the elements related to S and ensure S is inside
	// the signature.
	//
	// rLen specifies the length of the big-endian encoded number which
	// represents the R value of the signature.
	//
	// sTypeOffset is the offset of the ASN.1 identifier for S and, like its R
	// counterpart, is expected to indicate an ASN.1 integer.
	//
	// sLenOffset and sOffset are the byte offsets within the signature of the
	// length of S and S itself, respectively.
	rLen := int(sig[rLenOffset])
	sTypeOffset := rOffset + rLen
	sLenOffset := sTypeOffset + 1
	if sTypeOffset >= sigLen {
		str := "malformed signature: S type indicator missing"
		return scriptError(ErrSigMissingSTypeID, str)
	}
	if sLenOffset >= sigLen {
		str := "malformed signature: S length missing"
		return scriptError(ErrSigMissingSLen, str)
	}

	// The lengths of R and S must match the overall length of the signature.
	//
	// sLen specifies the length of the big-endian encoded number which
	// represents the S value of the signature.
	sOffset := sLenOffset + 1
	sLen := int(sig[sLenOffset])
	if sOffset+sLen != sigLen {
		str := "malformed signature: invalid S length"
		return scriptError(ErrSigInvalidSLen, str)
	}

	// R elements must be ASN.1 integers.
	if sig[rTypeOffset] != asn1IntegerID {
		str := fmt.Sprintf("malformed signature: R integer marker: %#x != %#x",
			sig[rTypeOffset], asn1IntegerID)
		return scriptError(ErrSigInvalidRIntID, str)
	}

	// Zero-length integers are not allowed for R.
	if rLen == 0 {
		str := "malformed signature: R length is zero"
		return scriptError(ErrSigZeroRLen, str)
	}

	// R must not be negative.
	if sig[rOffset]&0x80 != 0 {
		str := "malformed signature: R is negative"
		return scriptError(ErrSigNegativeR, str)
	}

	// Null bytes at the start of R are not allowed, unless R would otherwise be
	// interpreted as a negative number.
	if rLen > 1 && sig[rOffset] == 0x00 && sig[rOffset+1]&0x80 == 0 {
		str := "malformed signature: R value has too much padding"
		return scriptError(ErrSigTooMuchRPadding, str)
	}

	// S elements must be ASN.1 integers.
	if sig[sTypeOffset] != asn1IntegerID {
		str := fmt.Sprintf("malformed signature: S integer marker: %#x != %#x",
			sig[sTypeOffset], asn1IntegerID)
		return scriptError(ErrSigInvalidSIntID, str)
	}

	// Zero-length integers are not allowed for S.
	if sLen == 0 {
		str := "malformed signature: S length is zero"
		return scriptError(ErrSigZeroSLen, str)
	}

	// S must not be negative.
	if sig[sOffset]&0x80 != 0 {
		str := "malformed signature: S is negative"
		return scriptError(ErrSigNegativeS, str)
	}

	// Null bytes at the start of S are not allowed, unless S would otherwise be
	// interpreted as a negative number.
	if sLen > 1 && sig[sOffset] == 0x00 && sig[sOffset+1]&0x80 == 0 {
		str := "malformed signature: S value has too much padding"
		return scriptError(ErrSigTooMuchSPadding, str)
	}

	// Verify the S value is <= half the order of the curve. This check is done
	// because when it is higher, the complement modulo the order can be used
	// instead which is a shorter encoding by 1 byte. Further, without
	// enforcing this, it is possible to replace a signature in a valid
	// transaction with the complement while still being a valid signature that
	// verifies. This would result in changing the transaction hash and thus is
	// a source of malleability.
	if vm.hasFlag(ScriptVerifyLowS) {
		sValue := new(big.Int).SetBytes(sig[sOffset : sOffset+sLen])
		if sValue.Cmp(halfOrder) > 0 {
			return scriptError(ErrSigHighS, "signature is not canonical due "+
				"to unnecessarily high S value")
		}
	}

	return nil
}

// checkSignature runs the encoding checks on a signature (hash type byte
// included) and a public key, then verifies the signature against the
// signature hash of the running script. An empty signature is a plain
// failure. sigsToRemove are stripped from legacy script codes before hashing.
func (vm *Engine) checkSignature(fullSig, pubKey []byte, sigsToRemove [][]byte) (bool, error) {
	var hashType consensushashing.SigHashType
	var sig []byte
	if len(fullSig) > 0 {
		hashType = consensushashing.SigHashType(fullSig[len(fullSig)-1])
		sig = fullSig[:len(fullSig)-1]
		if err := vm.checkSignatureEncoding(sig); err != nil {
			return false, err
		}
		if err := vm.checkHashTypeEncoding(hashType); err != nil {
			return false, err
		}
	}
	if err := vm.checkPubKeyEncoding(pubKey); err != nil {
		return false, err
	}
	if len(fullSig) == 0 {
		return false, nil
	}

	vm.numSigChecks++
	if vm.numSigChecks > MaxSigChecksPerScript {
		str := fmt.Sprintf("exceeded max signature checks limit of %d",
			MaxSigChecksPerScript)
		return false, scriptError(ErrTooManySigChecks, str)
	}

	sigHash, err := vm.calcSignatureHash(hashType, sigsToRemove)
	if err != nil {
		return false, err
	}

	valid := vm.sigVerifier.VerifySignature(sigHash, sig, pubKey)
	log.Tracef("%s", logger.NewLogClosure(func() string {
		return fmt.Sprintf("signature check of input %d: sighash %s, "+
			"pubkey %x, valid %t", vm.txIdx, sigHash, pubKey, valid)
	}))
	return valid, nil
}

// calcSignatureHash computes the signature hash the running script commits
// to. Witness scripts use the BIP0143 digest over the script code since the
// last OP_CODESEPARATOR; legacy scripts additionally have the signatures and
// every OP_CODESEPARATOR removed.
func (vm *Engine) calcSignatureHash(hashType consensushashing.SigHashType,
	sigsToRemove [][]byte) (*externalapi.DomainHash, error) {

	subScript := vm.subScript()
	if vm.isWitnessScriptActive() {
		if vm.sigHashes == nil {
			vm.sigHashes = consensushashing.NewTxSigHashes(vm.tx)
		}

		scriptCode, err := unparseScript(subScript)
		if err != nil {
			return nil, err
		}
		return consensushashing.CalcWitnessSignatureHash(scriptCode,
			vm.sigHashes, hashType, vm.tx, vm.txIdx, vm.inputAmount)
	}

	for _, sig := range sigsToRemove {
		subScript = removeOpcodeByData(subScript, sig)
	}
	subScript = removeOpcode(subScript, OpCodeSeparator)
	script, err := unparseScript(subScript)
	if err != nil {
		return nil, err
	}
	return consensushashing.CalcSignatureHash(script, hashType, vm.tx, vm.txIdx)
}

// GetStack returns the contents of the primary stack as an array. where the
// last item in the array is the top of the stack.
func (vm *Engine) GetStack() [][]byte {
	return copyStack(vm.dstack.stk)
}

// SetStack sets the contents of the primary stack to the contents of the
// provided array where the last item in the array will be the top of the stack.
func (vm *Engine) SetStack(data [][]byte) {
	vm.dstack.stk = copyStack(data)
}

// copyStack returns a deep copy of stk, so that neither side sees the
// other's later writes
func copyStack(stk [][]byte) [][]byte {
	stkCopy := make([][]byte, len(stk))
	for i, item := range stk {
		stkCopy[i] = append([]byte(nil), item...)
	}
	return stkCopy
}

// NewEngine returns a new script engine for the provided public key script,
// transaction, and input index. The flags modify the behavior of the script
// engine according to the description provided by each flag. A nil
// sigVerifier selects the btcec verifier. sigHashes may be nil, in which case
// they are computed the first time a witness signature is checked.
func NewEngine(scriptPubKey []byte, tx *externalapi.DomainTransaction, txIdx int,
	flags ScriptFlags, sigVerifier sigverify.SignatureVerifier,
	sigHashes *consensushashing.TxSigHashes, inputAmount externalapi.Amount) (*Engine, error) {

	// The provided transaction input index must refer to a valid input.
	if txIdx < 0 || txIdx >= len(tx.Inputs) {
		str := fmt.Sprintf("transaction input index %d is negative or "+
			">= %d", txIdx, len(tx.Inputs))
		return nil, scriptError(ErrInvalidIndex, str)
	}
	scriptSig := tx.Inputs[txIdx].SignatureScript

	// The clean stack flag (ScriptVerifyCleanStack) is not allowed without
	// the pay-to-script-hash (P2SH) evaluation (ScriptBip16) flag.
	//
	// Recall that evaluating a P2SH script without the flag set results in
	// non-P2SH evaluation which leaves the P2SH inputs on the stack.
	// Thus, allowing the clean stack flag without the P2SH flag would make
	// it possible to have a situation where P2SH would not be a soft fork
	// when it should be.
	if flags&ScriptVerifyCleanStack == ScriptVerifyCleanStack &&
		flags&ScriptBip16 != ScriptBip16 {

		return nil, scriptError(ErrInvalidFlags,
			"invalid flags combination")
	}

	if sigVerifier == nil {
		sigVerifier = sigverify.NewBtcecVerifier()
	}

	vm := Engine{
		flags:       flags,
		tx:          tx,
		txIdx:       txIdx,
		sigVerifier: sigVerifier,
		sigHashes:   sigHashes,
		inputAmount: inputAmount,
	}

	// When both the signature script and public key script are empty the
	// result is necessarily an error since the stack would end up being
	// empty which is equivalent to a false top element. Thus, just return
	// the relevant error now as an optimization.
	if len(scriptSig) == 0 && len(scriptPubKey) == 0 {
		return nil, scriptError(ErrEvalFalse,
			"false stack entry at end of script execution")
	}

	scripts := [][]byte{scriptSig, scriptPubKey}
	vm.scripts = make([][]parsedOpcode, len(scripts))
	for i, scr := range scripts {
		if len(scr) > MaxScriptSize {
			str := fmt.Sprintf("script size %d is larger than max "+
				"allowed size %d", len(scr), MaxScriptSize)
			return nil, scriptError(ErrScriptTooBig, str)
		}
		var err error
		vm.scripts[i], err = parseScript(scr)
		if err != nil {
			return nil, err
		}
	}

	// The signature script must only contain data pushes when the
	// associated flag is set.
	if vm.hasFlag(ScriptVerifySigPushOnly) && !isPushOnly(vm.scripts[0]) {
		return nil, scriptError(ErrNotPushOnly,
			"signature script is not push only")
	}

	if vm.hasFlag(ScriptBip16) && IsPayToScriptHash(scriptPubKey) {
		// Only accept input scripts that push data for P2SH.
		if !isPushOnly(vm.scripts[0]) {
			return nil, scriptError(ErrNotPushOnly,
				"pay to script hash is not push only")
		}
		vm.bip16 = true
	}
	// Advance the program counter to the public key script if the signature
	// script is empty since there is nothing to execute for it in that case.
	if len(scriptSig) == 0 {
		vm.scriptIdx++
	}
	if vm.hasFlag(ScriptVerifyMinimalData) {
		vm.dstack.verifyMinimalData = true
		vm.astack.verifyMinimalData = true
	}

	if vm.hasFlag(ScriptVerifyWitness) {
		var witnessProgram []byte

		switch {
		case IsWitnessProgram(scriptPubKey):
			// The scriptSig must be *empty* for all native witness
			// programs, otherwise we introduce malleability.
			if len(scriptSig) != 0 {
				return nil, scriptError(ErrWitnessMalleated,
					"native witness program cannot also have a "+
						"signature script")
			}
			witnessProgram = scriptPubKey

		case vm.bip16 && len(vm.scripts[0]) > 0:
			// The redeem script of a nested witness program must be
			// the one and only canonical push of the signature script.
			redeemScript := vm.scripts[0][len(vm.scripts[0])-1].data
			if IsWitnessProgram(redeemScript) {
				if !bytes.Equal(scriptSig, pushDataScript(redeemScript)) {
					return nil, scriptError(ErrWitnessMalleatedP2SH,
						"signature script for witness nested p2sh "+
							"is not canonical")
				}
				witnessProgram = redeemScript
			}
		}

		if witnessProgram != nil {
			var err error
			vm.witnessVersion, vm.witnessProgram, err =
				ExtractWitnessProgramInfo(witnessProgram)
			if err != nil {
				return nil, err
			}
		} else if len(tx.Inputs[txIdx].Witness) != 0 {
			// If we didn't find a witness program in either the
			// pkScript or as a datapush within the sigScript, then
			// there MUST NOT be any witness data associated with
			// the input being validated.
			return nil, scriptError(ErrWitnessUnexpected,
				"non-witness inputs cannot have a witness")
		}
	}

	log.Tracef("%s", logger.NewLogClosure(func() string {
		return fmt.Sprintf("executing input %d: [%s] [%s]", txIdx,
			disasmOpcodes(vm.scripts[0]), disasmOpcodes(vm.scripts[1]))
	}))

	return &vm, nil
}

// VerifyScript builds an engine for the given input and runs it to
// completion. It returns nil when the input's scripts succeed.
func VerifyScript(scriptPubKey []byte, tx *externalapi.DomainTransaction, txIdx int,
	flags ScriptFlags, sigVerifier sigverify.SignatureVerifier,
	sigHashes *consensushashing.TxSigHashes, inputAmount externalapi.Amount) error {

	vm, err := NewEngine(scriptPubKey, tx, txIdx, flags, sigVerifier, sigHashes, inputAmount)
	if err != nil {
		return err
	}
	return vm.Execute()
}
