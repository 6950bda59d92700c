package consensus

import (
	"github.com/kaspanet/btcconsensus/infrastructure/logger"
)

var log = logger.RegisterSubSystem("CNSS")
