package ruleerrors

import (
	"fmt"

	"github.com/kaspanet/btcconsensus/domain/consensus/model/externalapi"
	"github.com/pkg/errors"
)

// Kind classifies a RuleError by the family of rules it violates
type Kind uint8

// These constants are the kinds a RuleError can carry
const (
	// StructuralError indicates a malformed size, count or encoding.
	StructuralError Kind = iota + 1

	// ResourceLimitExceeded indicates that a size, stack, opcode or sigop
	// cap was crossed.
	ResourceLimitExceeded

	// ScriptExecutionFailure indicates an opcode-level failure, including
	// signature and locktime checks.
	ScriptExecutionFailure

	// UtxoResolutionError indicates a missing, already spent or immature
	// referenced output.
	UtxoResolutionError

	// ArithmeticOverflow indicates that summing values or computing a fee
	// left the representable or allowed range.
	ArithmeticOverflow

	// ConsensusRuleViolation indicates a failed proof of work, merkle
	// mismatch, coinbase bound violation or other consensus rule.
	ConsensusRuleViolation

	// ReorganizationFailure indicates that switching to a competing chain
	// was not possible.
	ReorganizationFailure
)

var kindStrings = map[Kind]string{
	StructuralError:        "StructuralError",
	ResourceLimitExceeded:  "ResourceLimitExceeded",
	ScriptExecutionFailure: "ScriptExecutionFailure",
	UtxoResolutionError:    "UtxoResolutionError",
	ArithmeticOverflow:     "ArithmeticOverflow",
	ConsensusRuleViolation: "ConsensusRuleViolation",
	ReorganizationFailure:  "ReorganizationFailure",
}

func (k Kind) String() string {
	if s, ok := kindStrings[k]; ok {
		return s
	}
	return fmt.Sprintf("Unknown Kind (%d)", uint8(k))
}

// These constants are used to identify a specific RuleError.
var (
	// ErrMalformedEncoding indicates that a transaction, header or block
	// could not be decoded from its wire format.
	ErrMalformedEncoding = newRuleError("ErrMalformedEncoding", StructuralError)

	// ErrNoTxInputs indicates a transaction does not have any inputs. A
	// valid transaction must have at least one input.
	ErrNoTxInputs = newRuleError("ErrNoTxInputs", StructuralError)

	// ErrNoTxOutputs indicates a transaction does not have any outputs. A
	// valid transaction must have at least one output.
	ErrNoTxOutputs = newRuleError("ErrNoTxOutputs", StructuralError)

	// ErrBadTxOutValue indicates an output value for a transaction is
	// invalid in some way such as being out of range.
	ErrBadTxOutValue = newRuleError("ErrBadTxOutValue", StructuralError)

	// ErrDuplicateTxInputs indicates a transaction references the same
	// input more than once.
	ErrDuplicateTxInputs = newRuleError("ErrDuplicateTxInputs", StructuralError)

	// ErrBadCoinbaseScriptLen indicates the length of the signature script
	// for a coinbase transaction is not within the valid range.
	ErrBadCoinbaseScriptLen = newRuleError("ErrBadCoinbaseScriptLen", StructuralError)

	// ErrBadTxInput indicates a transaction input is invalid in some way
	// such as referencing a previous transaction outpoint which is out of
	// range or not referencing one at all.
	ErrBadTxInput = newRuleError("ErrBadTxInput", StructuralError)

	// ErrNoTransactions indicates the block does not have a least one
	// transaction. A valid block must have at least the coinbase
	// transaction.
	ErrNoTransactions = newRuleError("ErrNoTransactions", StructuralError)

	// ErrFirstTxNotCoinbase indicates the first transaction in a block
	// is not a coinbase transaction.
	ErrFirstTxNotCoinbase = newRuleError("ErrFirstTxNotCoinbase", StructuralError)

	// ErrMultipleCoinbases indicates a block contains more than one
	// coinbase transaction.
	ErrMultipleCoinbases = newRuleError("ErrMultipleCoinbases", StructuralError)

	// ErrNegativeTarget indicates the compact target of a header encodes a
	// negative number.
	ErrNegativeTarget = newRuleError("ErrNegativeTarget", StructuralError)

	// ErrTargetOverflow indicates the compact target of a header does not
	// fit in 256 bits.
	ErrTargetOverflow = newRuleError("ErrTargetOverflow", StructuralError)

	// ErrTxTooBig indicates the serialized size of a transaction exceeds
	// the maximum allowed.
	ErrTxTooBig = newRuleError("ErrTxTooBig", ResourceLimitExceeded)

	// ErrTooManyTxInputs indicates a transaction has more inputs than allowed
	ErrTooManyTxInputs = newRuleError("ErrTooManyTxInputs", ResourceLimitExceeded)

	// ErrTooManyTxOutputs indicates a transaction has more outputs than allowed
	ErrTooManyTxOutputs = newRuleError("ErrTooManyTxOutputs", ResourceLimitExceeded)

	// ErrBlockTooBig indicates the serialized size of a block exceeds the
	// maximum allowed.
	ErrBlockTooBig = newRuleError("ErrBlockTooBig", ResourceLimitExceeded)

	// ErrBlockWeightTooHigh indicates that the weight of a block exceeds
	// the maximum allowed.
	ErrBlockWeightTooHigh = newRuleError("ErrBlockWeightTooHigh", ResourceLimitExceeded)

	// ErrTooManySigOps indicates the total signature operation cost in a
	// block exceeds the maximum allowed.
	ErrTooManySigOps = newRuleError("ErrTooManySigOps", ResourceLimitExceeded)

	// ErrScriptResourceLimit indicates that executing a script crossed one
	// of the script engine limits, such as the stack depth, the number of
	// executed opcodes or the script size.
	ErrScriptResourceLimit = newRuleError("ErrScriptResourceLimit", ResourceLimitExceeded)

	// ErrScriptValidation indicates the result of executing transaction
	// script failed. The error covers any failure when executing scripts
	// such signature verification failures and execution past the end of
	// the stack.
	ErrScriptValidation = newRuleError("ErrScriptValidation", ScriptExecutionFailure)

	// ErrImmatureSpend indicates a transaction is attempting to spend a
	// coinbase that has not yet reached the required maturity.
	ErrImmatureSpend = newRuleError("ErrImmatureSpend", UtxoResolutionError)

	// ErrDoubleSpendInSameBlock indicates a transaction
	// that spends an output that was already spent by another
	// transaction in the same block.
	ErrDoubleSpendInSameBlock = newRuleError("ErrDoubleSpendInSameBlock", UtxoResolutionError)

	// ErrTxInValueOverflow indicates that the sum of the values referenced
	// by the inputs of a transaction overflows or exceeds the maximum
	// supply.
	ErrTxInValueOverflow = newRuleError("ErrTxInValueOverflow", ArithmeticOverflow)

	// ErrTotalTxOutValueTooHigh indicates that the sum of the output values
	// of a transaction exceeds the maximum supply.
	ErrTotalTxOutValueTooHigh = newRuleError("ErrTotalTxOutValueTooHigh", ArithmeticOverflow)

	// ErrFeesOverflow indicates that the fees collected by a block
	// overflow.
	ErrFeesOverflow = newRuleError("ErrFeesOverflow", ArithmeticOverflow)

	// ErrSpendTooHigh indicates a transaction is attempting to spend more
	// value than the sum of all of its inputs.
	ErrSpendTooHigh = newRuleError("ErrSpendTooHigh", ConsensusRuleViolation)

	// ErrBlockVersionTooOld indicates the block version is too old and is
	// no longer accepted since the majority of the network has upgraded
	// to a newer version.
	ErrBlockVersionTooOld = newRuleError("ErrBlockVersionTooOld", ConsensusRuleViolation)

	// ErrTimeTooOld indicates the time is either before the median time of
	// the last several blocks per the chain consensus rules.
	ErrTimeTooOld = newRuleError("ErrTimeTooOld", ConsensusRuleViolation)

	// ErrUnexpectedDifficulty indicates specified bits do not align with
	// the expected value either because it doesn't match the calculated
	// valued based on difficulty regarted rules.
	ErrUnexpectedDifficulty = newRuleError("ErrUnexpectedDifficulty", ConsensusRuleViolation)

	// ErrTargetTooHigh indicates specified bits do not align with
	// the expected value either because it is above the valid
	// range.
	ErrTargetTooHigh = newRuleError("ErrTargetTooHigh", ConsensusRuleViolation)

	// ErrInvalidPoW indicates that the block proof-of-work is invalid.
	ErrInvalidPoW = newRuleError("ErrInvalidPoW", ConsensusRuleViolation)

	// ErrBadMerkleRoot indicates the calculated merkle root does not match
	// the expected value.
	ErrBadMerkleRoot = newRuleError("ErrBadMerkleRoot", ConsensusRuleViolation)

	// ErrDuplicateTx indicates a block contains an identical transaction
	// (or at least two transactions which hash to the same value). A
	// valid block may only contain unique transactions.
	ErrDuplicateTx = newRuleError("ErrDuplicateTx", ConsensusRuleViolation)

	// ErrUnexpectedWitness indicates that a block includes transactions
	// with witness data, but doesn't also have a witness commitment within
	// the coinbase transaction.
	ErrUnexpectedWitness = newRuleError("ErrUnexpectedWitness", ConsensusRuleViolation)

	// ErrWitnessCommitmentMismatch indicates that the witness commitment
	// included in the block's coinbase transaction doesn't match the
	// manually computed witness commitment.
	ErrWitnessCommitmentMismatch = newRuleError("ErrWitnessCommitmentMismatch", ConsensusRuleViolation)

	// ErrUnfinalizedTx indicates a transaction has not been finalized.
	// A valid block may only contain finalized transactions.
	ErrUnfinalizedTx = newRuleError("ErrUnfinalizedTx", ConsensusRuleViolation)

	// ErrSequenceLockNotMet indicates that the relative lock times of a
	// transaction's inputs have not yet expired.
	ErrSequenceLockNotMet = newRuleError("ErrSequenceLockNotMet", ConsensusRuleViolation)

	// ErrOverwriteTx indicates a block contains a transaction that has
	// the same hash as a previous transaction which has not been fully
	// spent.
	ErrOverwriteTx = newRuleError("ErrOverwriteTx", ConsensusRuleViolation)

	// ErrBadCoinbaseHeight indicates that the signature script of the
	// coinbase transaction doesn't start with the serialized block height
	// required by BIP0034.
	ErrBadCoinbaseHeight = newRuleError("ErrBadCoinbaseHeight", ConsensusRuleViolation)

	// ErrBadCoinbaseValue indicates the amount of a coinbase value does
	// not match the expected value of the subsidy plus the sum of all fees.
	ErrBadCoinbaseValue = newRuleError("ErrBadCoinbaseValue", ConsensusRuleViolation)

	// ErrSupplyCapExceeded indicates that the tracked supply or the value
	// held by the UTXO set went above the maximum supply.
	ErrSupplyCapExceeded = newRuleError("ErrSupplyCapExceeded", ConsensusRuleViolation)

	// ErrInvariantViolation indicates that the state left by a connect,
	// disconnect or reorganization broke one of the state invariants.
	ErrInvariantViolation = newRuleError("ErrInvariantViolation", ConsensusRuleViolation)

	// ErrUnexpectedPrevBlock indicates that a block does not build upon
	// the block it is connected to.
	ErrUnexpectedPrevBlock = newRuleError("ErrUnexpectedPrevBlock", ConsensusRuleViolation)

	// ErrReorganizationFailure indicates that a block of the competing
	// chain failed to connect or that the active chain could not be
	// unwound.
	ErrReorganizationFailure = newRuleError("ErrReorganizationFailure", ReorganizationFailure)

	// ErrInsufficientChainWork indicates that the competing chain does not
	// carry strictly more work than the active chain.
	ErrInsufficientChainWork = newRuleError("ErrInsufficientChainWork", ReorganizationFailure)

	// ErrUnknownForkPoint indicates that the competing chain does not build
	// upon any block of the active chain.
	ErrUnknownForkPoint = newRuleError("ErrUnknownForkPoint", ReorganizationFailure)

	// ErrEmptyCompetingChain indicates that no competing blocks were given.
	ErrEmptyCompetingChain = newRuleError("ErrEmptyCompetingChain", ReorganizationFailure)
)

// RuleError identifies a rule violation. It is used to indicate that
// processing of a block or transaction failed due to one of the many validation
// rules. The caller can use type assertions to determine if a failure was
// specifically due to a rule violation.
type RuleError struct {
	message string
	kind    Kind
	inner   error
}

// Error satisfies the error interface and prints human-readable errors.
func (e RuleError) Error() string {
	if e.inner != nil {
		return e.message + ": " + e.inner.Error()
	}
	return e.message
}

// Unwrap satisfies the errors.Unwrap interface
func (e RuleError) Unwrap() error {
	return e.inner
}

// Cause satisfies the github.com/pkg/errors.Cause interface
func (e RuleError) Cause() error {
	return e.inner
}

// Kind returns the kind of rule the error violates
func (e RuleError) Kind() Kind {
	return e.kind
}

func newRuleError(message string, kind Kind) RuleError {
	return RuleError{message: message, kind: kind, inner: nil}
}

// KindOf returns the kind of the outermost RuleError found in err's chain.
// The second return value is false if err holds no RuleError.
func KindOf(err error) (Kind, bool) {
	var ruleErr RuleError
	if !errors.As(err, &ruleErr) {
		return 0, false
	}
	return ruleErr.kind, true
}

// Is reports whether err holds a RuleError of the given kind
func Is(err error, kind Kind) bool {
	errKind, ok := KindOf(err)
	return ok && errKind == kind
}

// Wrap returns a copy of ruleErr that wraps inner. The result satisfies
// errors.Is against ruleErr, keeps its kind, and lets errors.As reach inner.
func Wrap(ruleErr RuleError, inner error, format string, args ...interface{}) error {
	return errors.Wrapf(RuleError{
		message: ruleErr.message,
		kind:    ruleErr.kind,
		inner:   inner,
	}, format, args...)
}

// Is satisfies the errors.Is interface. Two RuleErrors match when they
// carry the same message, regardless of what they wrap.
func (e RuleError) Is(target error) bool {
	var targetRuleErr RuleError
	switch t := target.(type) {
	case RuleError:
		targetRuleErr = t
	case *RuleError:
		targetRuleErr = *t
	default:
		return false
	}
	return e.message == targetRuleErr.message
}

// ErrMissingTxOut indicates a transaction output referenced by an input
// either does not exist or has already been spent.
type ErrMissingTxOut struct {
	MissingOutpoints []*externalapi.DomainOutpoint
}

func (e ErrMissingTxOut) Error() string {
	return fmt.Sprintf("missing the following outpoint: %v", e.MissingOutpoints)
}

// NewErrMissingTxOut Creates a new ErrMissingTxOut error wrapped in a RuleError
func NewErrMissingTxOut(missingOutpoints []*externalapi.DomainOutpoint) error {
	return errors.WithStack(RuleError{
		message: "ErrMissingTxOut",
		kind:    UtxoResolutionError,
		inner:   ErrMissingTxOut{missingOutpoints},
	})
}

// InvalidTransaction is a struct containing an invalid transaction, and the error explaining why it's invalid.
type InvalidTransaction struct {
	Index int
	Error error
}

func (invalid InvalidTransaction) String() string {
	return fmt.Sprintf("(transaction %d: %s)", invalid.Index, invalid.Error)
}
