package blockvalidator

import (
	"github.com/kaspanet/btcconsensus/infrastructure/logger"
)

var log = logger.RegisterSubSystem("BVAL")
