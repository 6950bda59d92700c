package constants

const (
	// BlockVersion represents the current version of blocks mined and the
	// minimum block version this node accepts
	BlockVersion = 4

	// TransactionVersion is the current latest supported transaction version.
	TransactionVersion = 2

	// SatoshiPerBitcoin is the number of satoshi in one bitcoin (1 BTC).
	SatoshiPerBitcoin = 100_000_000

	// MaxMoney is the maximum transaction amount allowed in satoshi.
	MaxMoney = 21_000_000 * SatoshiPerBitcoin

	// MaxTxInSequenceNum is the maximum sequence number the sequence field
	// of a transaction input can be.
	MaxTxInSequenceNum uint32 = 0xffffffff

	// SequenceLockTimeDisabled is a flag that if set on a transaction
	// input's sequence number, the sequence number will not be interpreted
	// as a relative locktime.
	SequenceLockTimeDisabled = 1 << 31

	// SequenceLockTimeIsSeconds is a flag that if set on a transaction
	// input's sequence number, the relative locktime has units of 512
	// seconds.
	SequenceLockTimeIsSeconds = 1 << 22

	// SequenceLockTimeMask is a mask that extracts the relative locktime
	// when masked against the transaction input sequence number.
	SequenceLockTimeMask = 0x0000ffff

	// SequenceLockTimeGranularity is the defined time based granularity
	// for seconds-based relative time locks. When converting from seconds
	// to a sequence number, the value is right shifted by this amount,
	// therefore the granularity of relative time locks in 512 or 2^9
	// seconds. Enforced relative lock times are multiples of 512 seconds.
	SequenceLockTimeGranularity = 9

	// LockTimeThreshold is the number below which a lock time is
	// interpreted to be a block height.
	LockTimeThreshold = 500_000_000 // Tue Nov  5 00:53:20 1985 UTC

	// MaxTxSize is the maximum serialized size of a transaction without
	// its witness data.
	MaxTxSize = 1_000_000

	// MaxTxInputs is the maximum number of inputs a transaction may have
	MaxTxInputs = 1000

	// MaxTxOutputs is the maximum number of outputs a transaction may have
	MaxTxOutputs = 1000

	// MaxBlockSerializedSize is the maximum serialized size of a block,
	// witness data included.
	MaxBlockSerializedSize = 4_000_000

	// MaxBlockWeight is the maximum weight of a block
	MaxBlockWeight = 4_000_000

	// WitnessScaleFactor determines the level of "discount" witness data
	// receives compared to "base" data.
	WitnessScaleFactor = 4

	// MaxBlockSigOpsCost is the maximum number of signature operations
	// allowed for a block, counted in cost units.
	MaxBlockSigOpsCost = 80_000

	// MinCoinbaseScriptLen is the minimum length a coinbase script can be.
	MinCoinbaseScriptLen = 2

	// MaxCoinbaseScriptLen is the maximum length a coinbase script can be.
	MaxCoinbaseScriptLen = 100

	// MedianTimeBlocks is the number of previous blocks which should be
	// used to calculate the median time used to validate block timestamps.
	MedianTimeBlocks = 11
)
