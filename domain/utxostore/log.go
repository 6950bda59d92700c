package utxostore

import "github.com/kaspanet/btcconsensus/infrastructure/logger"

var log = logger.RegisterSubSystem("UTXS")
