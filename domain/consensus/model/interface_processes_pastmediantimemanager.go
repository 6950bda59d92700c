package model

import "github.com/kaspanet/btcconsensus/domain/consensus/model/externalapi"

// PastMedianTimeManager provides a method to resolve the
// past median time of a block
type PastMedianTimeManager interface {
	PastMedianTime(chainContext *externalapi.ChainContext) int64
}
