package transactionvalidator

import (
	"runtime"

	"github.com/kaspanet/btcconsensus/domain/chaincfg"
	"github.com/kaspanet/btcconsensus/domain/consensus/model"
	"github.com/kaspanet/btcconsensus/domain/consensus/utils/sigverify"
)

// transactionValidator exposes a set of validation classes, after which
// it's possible to determine whether either a transaction is valid
type transactionValidator struct {
	coinbaseMaturity      uint64
	sigVerifier           sigverify.SignatureVerifier
	pastMedianTimeManager model.PastMedianTimeManager
	maxScriptWorkers      int
}

// New instantiates a new TransactionValidator. A nil sigVerifier selects the
// btcec verifier.
func New(params *chaincfg.Params, sigVerifier sigverify.SignatureVerifier,
	pastMedianTimeManager model.PastMedianTimeManager) model.TransactionValidator {

	if sigVerifier == nil {
		sigVerifier = sigverify.NewBtcecVerifier()
	}
	return &transactionValidator{
		coinbaseMaturity:      params.CoinbaseMaturity,
		sigVerifier:           sigVerifier,
		pastMedianTimeManager: pastMedianTimeManager,
		maxScriptWorkers:      runtime.NumCPU(),
	}
}
