package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/kaspanet/btcconsensus/domain/consensus"
	"github.com/kaspanet/btcconsensus/domain/consensus/model/externalapi"
	"github.com/kaspanet/btcconsensus/domain/utxostore"
	"github.com/kaspanet/btcconsensus/infrastructure/db/database/ldb"
	"github.com/kaspanet/btcconsensus/infrastructure/logger"
	"github.com/kaspanet/btcconsensus/infrastructure/os/signal"
	"github.com/kaspanet/btcconsensus/util/panics"
	"github.com/kaspanet/btcconsensus/util/profiling"
	"github.com/kaspanet/btcconsensus/version"
	"github.com/pkg/errors"
)

func main() {
	defer panics.HandlePanic(log, nil)

	cfg, err := parseConfig(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing command-line arguments: %s\n", err)
		os.Exit(1)
	}
	defer logger.BackendLog.Close()

	// Show version at startup.
	log.Infof("Version %s", version.Version())

	ctx := signal.InterruptListener(context.Background())
	if cfg.Profile != "" {
		profiling.Start(ctx, cfg.Profile, log)
	}
	err = run(ctx, cfg)
	if err != nil {
		panics.Exit(log, fmt.Sprintf("%+v", err))
	}
}

func run(ctx context.Context, cfg *configFlags) error {
	verifier, err := cfg.signatureVerifier()
	if err != nil {
		return err
	}
	params := cfg.NetParams()
	instance := consensus.NewFactory().NewConsensus(&consensus.Config{
		Params:            *params,
		SignatureVerifier: verifier,
		VerifyInvariants:  cfg.VerifyInvariants,
	})

	var store *utxostore.Store
	if cfg.UTXODir != "" {
		db, err := ldb.NewLevelDB(cfg.UTXODir, cfg.CacheSizeMiB)
		if err != nil {
			return errors.Wrapf(err, "couldn't open the UTXO store at %s", cfg.UTXODir)
		}
		defer func() {
			err := db.Close()
			if err != nil {
				log.Errorf("Error closing the UTXO store: %s", err)
			}
		}()
		store = utxostore.New(db)
	}

	flags := externalapi.BFNone
	if cfg.NoPoW {
		flags |= externalapi.BFNoPoWCheck
	}

	file, err := os.Open(cfg.BlocksFile)
	if err != nil {
		return errors.WithStack(err)
	}
	defer file.Close()

	log.Infof("Validating the %s blocks of %s", params.Name, cfg.BlocksFile)
	importer, err := newBlockImporter(instance, store, flags, time.Duration(cfg.Progress)*time.Second)
	if err != nil {
		return err
	}
	start := time.Now()
	results, err := importer.Import(ctx, file)
	if err != nil {
		return err
	}

	log.Infof("Processed %d blocks and skipped %d known blocks in %s. Tip is %s at height %d, "+
		"%s were minted", results.blocksProcessed, results.blocksSkipped, time.Since(start),
		results.tipHash, results.tipHeight, results.minted)
	return nil
}
