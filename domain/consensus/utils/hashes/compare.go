package hashes

import (
	"math/big"

	"github.com/kaspanet/btcconsensus/domain/consensus/model/externalapi"
)

// ToBig converts a hash into a big.Int that can be used to perform math
// comparisons. Hashes are stored little endian, so the bytes are reversed
// first.
func ToBig(hash *externalapi.DomainHash) *big.Int {
	buf := hash.ByteArray()
	blen := len(buf)
	for i := 0; i < blen/2; i++ {
		buf[i], buf[blen-1-i] = buf[blen-1-i], buf[i]
	}

	return new(big.Int).SetBytes(buf[:])
}
