package ldb

import "github.com/kaspanet/btcconsensus/infrastructure/logger"

var log = logger.RegisterSubSystem("KSDB")
