package pastmediantimemanager

import (
	"sort"

	"github.com/kaspanet/btcconsensus/domain/consensus/model"
	"github.com/kaspanet/btcconsensus/domain/consensus/model/externalapi"
	"github.com/kaspanet/btcconsensus/domain/consensus/utils/constants"
)

// pastMedianTimeManager provides a method to resolve the
// past median time of a block
type pastMedianTimeManager struct {
	medianTimeBlocks int
}

// New instantiates a new PastMedianTimeManager
func New() model.PastMedianTimeManager {
	return &pastMedianTimeManager{
		medianTimeBlocks: constants.MedianTimeBlocks,
	}
}

// PastMedianTime returns the median timestamp of the last MedianTimeBlocks
// ancestors of the block. If fewer ancestors are known all of them are used,
// and with none at all the result is 0.
func (pmtm *pastMedianTimeManager) PastMedianTime(chainContext *externalapi.ChainContext) int64 {
	headers := chainContext.PreviousHeaders
	if len(headers) > pmtm.medianTimeBlocks {
		headers = headers[len(headers)-pmtm.medianTimeBlocks:]
	}
	if len(headers) == 0 {
		return 0
	}

	timestamps := make([]int64, len(headers))
	for i, header := range headers {
		timestamps[i] = int64(header.Timestamp)
	}
	sort.Slice(timestamps, func(i, j int) bool {
		return timestamps[i] < timestamps[j]
	})

	// With an even number of timestamps the upper of the two middle values
	// is taken.
	return timestamps[len(timestamps)/2]
}
