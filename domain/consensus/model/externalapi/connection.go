package externalapi

import "fmt"

// ValidationFlags are flags that modify the behavior of block validation
type ValidationFlags uint32

const (
	// BFNoPoWCheck may be set to indicate the proof of work check which
	// ensures a block hashes to a value less than the required target will
	// not be performed.
	BFNoPoWCheck ValidationFlags = 1 << iota

	// BFSkipScripts skips script execution for blocks whose scripts were
	// already verified elsewhere.
	BFSkipScripts

	// BFNone is a convenience value to specifically indicate no flags.
	BFNone ValidationFlags = 0
)

// BlockConnectionState is the state a block goes through while it is being
// connected
type BlockConnectionState uint8

// The states of a block connection
const (
	StatePending BlockConnectionState = iota
	StateHeaderValid
	StateTransactionsApplied
	StateConnected
	StateRejected
)

var blockConnectionStateStrings = map[BlockConnectionState]string{
	StatePending:             "Pending",
	StateHeaderValid:         "HeaderValid",
	StateTransactionsApplied: "TransactionsApplied",
	StateConnected:           "Connected",
	StateRejected:            "Rejected",
}

func (s BlockConnectionState) String() string {
	if str, ok := blockConnectionStateStrings[s]; ok {
		return str
	}
	return fmt.Sprintf("Unknown BlockConnectionState (%d)", uint8(s))
}

// BlockConnectionResult is the outcome of connecting a block.
// On rejection State is StateRejected and LastState records how far the
// block got.
type BlockConnectionResult struct {
	State     BlockConnectionState
	LastState BlockConnectionState
	BlockHash *DomainHash
	Height    BlockHeight
	UTXODiff  UTXODiff
	Fees      Amount
	Subsidy   Amount
	SigOpCost int
}
