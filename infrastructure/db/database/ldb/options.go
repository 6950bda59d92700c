package ldb

import "github.com/syndtr/goleveldb/leveldb/opt"

// Options returns the leveldb options used to open a database with a block
// cache of cacheSizeMiB mebibytes. UTXO entries are small and mostly random
// keys, so compression is off and writes are buffered generously.
func Options(cacheSizeMiB int) *opt.Options {
	return &opt.Options{
		Compression:            opt.NoCompression,
		BlockCacheCapacity:     cacheSizeMiB * opt.MiB,
		WriteBuffer:            (cacheSizeMiB / 2) * opt.MiB,
		DisableSeeksCompaction: true,
	}
}
