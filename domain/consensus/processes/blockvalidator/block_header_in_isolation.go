package blockvalidator

import (
	"github.com/kaspanet/btcconsensus/domain/consensus/model/externalapi"
	"github.com/kaspanet/btcconsensus/domain/consensus/utils/pow"
)

// ValidateHeaderInIsolation validates block headers in isolation from the current
// consensus state
func (v *blockValidator) ValidateHeaderInIsolation(header *externalapi.DomainBlockHeader,
	flags externalapi.ValidationFlags) error {

	return v.checkProofOfWork(header, flags)
}

// checkProofOfWork ensures the block header bits which indicate the target
// difficulty is in min/max range and that the block hash is less than the
// target difficulty as claimed.
//
// The flags modify the behavior of this function as follows:
//   - BFNoPoWCheck: The check to ensure the block hash is less than the target
//     difficulty is not performed.
func (v *blockValidator) checkProofOfWork(header *externalapi.DomainBlockHeader,
	flags externalapi.ValidationFlags) error {

	if flags&externalapi.BFNoPoWCheck == externalapi.BFNoPoWCheck {
		_, err := pow.CheckTarget(header.Bits, v.params.PowLimit)
		return err
	}
	return pow.CheckProofOfWork(header, v.params.PowLimit)
}
