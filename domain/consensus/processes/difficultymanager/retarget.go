// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package difficultymanager

import (
	"math/big"

	"github.com/kaspanet/btcconsensus/domain/chaincfg"
	"github.com/kaspanet/btcconsensus/domain/consensus/model/externalapi"
	"github.com/kaspanet/btcconsensus/domain/consensus/utils/math"
	"github.com/pkg/errors"
)

// NextWorkRequired calculates the required difficulty of the block that
// follows the given retarget window. The window holds the headers of the last
// retarget period ordered from oldest to newest.
//
// The actual timespan between the first and the last header of the window is
// clamped to [TargetTimespan/RetargetAdjustmentFactor,
// TargetTimespan*RetargetAdjustmentFactor] and the target of the last header
// is scaled by actualTimespan/TargetTimespan, and then clamped to PowLimit.
func NextWorkRequired(window []*externalapi.DomainBlockHeader, params *chaincfg.Params) (uint32, error) {
	if len(window) == 0 {
		return 0, errors.New("cannot calculate the required difficulty of an empty window")
	}

	lastHeader := window[len(window)-1]
	if params.PowNoRetargeting {
		return lastHeader.Bits, nil
	}

	targetTimespan := int64(params.TargetTimespan.Seconds())
	minRetargetTimespan := targetTimespan / params.RetargetAdjustmentFactor
	maxRetargetTimespan := targetTimespan * params.RetargetAdjustmentFactor

	// Limit the amount of adjustment that can occur to the previous
	// difficulty.
	actualTimespan := int64(lastHeader.Timestamp) - int64(window[0].Timestamp)
	adjustedTimespan := actualTimespan
	if actualTimespan < minRetargetTimespan {
		adjustedTimespan = minRetargetTimespan
	} else if actualTimespan > maxRetargetTimespan {
		adjustedTimespan = maxRetargetTimespan
	}

	// Calculate new target difficulty as:
	//  currentDifficulty * (adjustedTimespan / targetTimespan)
	// The result uses integer division which means it will be slightly
	// rounded down. Bitcoind also uses integer division to calculate this
	// result.
	oldTarget := math.CompactToBig(lastHeader.Bits)
	newTarget := new(big.Int).Mul(oldTarget, big.NewInt(adjustedTimespan))
	newTarget.Div(newTarget, big.NewInt(targetTimespan))

	// Limit new value to the proof of work limit.
	if newTarget.Cmp(params.PowLimit) > 0 {
		newTarget.Set(params.PowLimit)
	}

	// Log new target difficulty and return it. The new target logging is
	// intentionally converting the bits back to a number instead of using
	// newTarget since conversion to the compact representation loses
	// precision.
	newTargetBits := math.BigToCompact(newTarget)
	log.Debugf("Difficulty retarget after %d headers", len(window))
	log.Debugf("Old target %08x (%064x)", lastHeader.Bits, oldTarget)
	log.Debugf("New target %08x (%064x)", newTargetBits, math.CompactToBig(newTargetBits))
	log.Debugf("Actual timespan %d, adjusted timespan %d, target timespan %d",
		actualTimespan, adjustedTimespan, targetTimespan)

	return newTargetBits, nil
}
