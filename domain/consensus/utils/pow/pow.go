package pow

import (
	"math/big"

	"github.com/kaspanet/btcconsensus/domain/consensus/model/externalapi"
	"github.com/kaspanet/btcconsensus/domain/consensus/ruleerrors"
	"github.com/kaspanet/btcconsensus/domain/consensus/utils/consensushashing"
	"github.com/kaspanet/btcconsensus/domain/consensus/utils/hashes"
	"github.com/kaspanet/btcconsensus/domain/consensus/utils/math"
	"github.com/pkg/errors"
)

// CheckProofOfWork checks that the header's compact target is well formed,
// positive and no higher than powLimit, and that the header hash, read as a
// little endian integer, does not exceed it.
func CheckProofOfWork(header *externalapi.DomainBlockHeader, powLimit *big.Int) error {
	target, err := CheckTarget(header.Bits, powLimit)
	if err != nil {
		return err
	}

	// The block hash must be less than the claimed target.
	hash := consensushashing.HeaderHash(header)
	hashNum := hashes.ToBig(hash)
	if hashNum.Cmp(target) > 0 {
		return errors.Wrapf(ruleerrors.ErrInvalidPoW, "block hash of %064x is higher than "+
			"expected max of %064x", hashNum, target)
	}
	return nil
}

// CheckTarget expands bits strictly and verifies that the target is within
// (0, powLimit]. It returns the expanded target.
func CheckTarget(bits uint32, powLimit *big.Int) (*big.Int, error) {
	target, err := math.CompactToBigStrict(bits)
	if err != nil {
		return nil, err
	}

	// The target difficulty must be larger than zero.
	if target.Sign() <= 0 {
		return nil, errors.Wrapf(ruleerrors.ErrUnexpectedDifficulty, "block target difficulty of %064x is too low",
			target)
	}

	// The target difficulty must be less than the maximum allowed.
	if target.Cmp(powLimit) > 0 {
		return nil, errors.Wrapf(ruleerrors.ErrTargetTooHigh, "block target difficulty of %064x is "+
			"higher than max of %064x", target, powLimit)
	}
	return target, nil
}

// SolveHeader increments the header nonce until the header hash meets its
// target. It returns false if the nonce space was exhausted. It is meant for
// the low difficulty targets of test networks.
func SolveHeader(header *externalapi.DomainBlockHeader) bool {
	target := math.CompactToBig(header.Bits)
	for nonce := uint32(0); ; nonce++ {
		header.Nonce = nonce
		if hashes.ToBig(consensushashing.HeaderHash(header)).Cmp(target) <= 0 {
			return true
		}
		if nonce == ^uint32(0) {
			return false
		}
	}
}
