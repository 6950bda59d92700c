package externalapi

// SequenceLock is the converted relative lock-time of a transaction's inputs.
// The transaction can be included in a block once the block's past median
// time is greater than Seconds and its height is greater than BlockHeight.
// A value of -1 places no restriction.
type SequenceLock struct {
	Seconds     int64
	BlockHeight int64
}
