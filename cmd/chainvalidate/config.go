package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jessevdk/go-flags"
	"github.com/kaspanet/btcconsensus/domain/consensus/utils/sigverify"
	"github.com/kaspanet/btcconsensus/infrastructure/config"
	"github.com/kaspanet/btcconsensus/version"
	"github.com/pkg/errors"
)

const (
	defaultLogFilename    = "chainvalidate.log"
	defaultErrLogFilename = "chainvalidate_err.log"
	defaultLogLevel       = "info"
	defaultVerifier       = "btcec"
	defaultCacheSizeMiB   = 64
	defaultProgress       = 10
)

// configFlags defines the configuration options for chainvalidate.
type configFlags struct {
	ShowVersion      bool   `short:"V" long:"version" description:"Display version information and exit"`
	BlocksFile       string `short:"i" long:"blocks" description:"File holding the blocks to validate, one hex encoded block per line"`
	UTXODir          string `long:"utxodir" description:"Directory of a LevelDB UTXO store to validate against and update. The UTXO set is kept in memory if omitted"`
	CacheSizeMiB     int    `long:"cachesize" description:"LevelDB block cache size in MiB"`
	LogLevel         string `short:"d" long:"loglevel" description:"Logging level for all subsystems {trace, debug, info, warn, error, critical} -- You may also specify <subsystem>=<level>,<subsystem2>=<level>,... to set the log level for individual subsystems"`
	LogDir           string `long:"logdir" description:"Directory to log output. Logs go to stdout only if omitted"`
	VerifyInvariants bool   `long:"verify-invariants" description:"Check the chain and UTXO set invariants after every block"`
	NoPoW            bool   `long:"no-pow" description:"Skip the proof of work check of block headers"`
	Verifier         string `long:"verifier" description:"Signature verifier {btcec, secp256k1}"`
	Progress         int    `short:"p" long:"progress" description:"Log a progress message every this many seconds -- Use 0 to disable progress announcements"`
	Profile          string `long:"profile" description:"Enable HTTP profiling on given port -- NOTE port must be between 1024 and 65535"`
	config.NetworkFlags
}

func parseConfig(args []string) (*configFlags, error) {
	cfg := &configFlags{
		LogLevel:     defaultLogLevel,
		Verifier:     defaultVerifier,
		CacheSizeMiB: defaultCacheSizeMiB,
		Progress:     defaultProgress,
	}
	parser := flags.NewParser(cfg, flags.PrintErrors|flags.HelpFlag)
	_, err := parser.ParseArgs(args)

	// Show the version and exit if the version flag was specified.
	if cfg.ShowVersion {
		appName := filepath.Base(os.Args[0])
		appName = strings.TrimSuffix(appName, filepath.Ext(appName))
		fmt.Println(appName, "version", version.Version())
		os.Exit(0)
	}

	if err != nil {
		return nil, err
	}

	err = cfg.ResolveNetwork(parser)
	if err != nil {
		return nil, err
	}

	if cfg.BlocksFile == "" {
		return nil, errors.New("--blocks is required")
	}
	if _, err := cfg.signatureVerifier(); err != nil {
		return nil, err
	}
	if cfg.CacheSizeMiB <= 0 {
		return nil, errors.Errorf("--cachesize must be positive, got %d", cfg.CacheSizeMiB)
	}
	if cfg.Progress < 0 {
		return nil, errors.Errorf("--progress can't be negative, got %d", cfg.Progress)
	}

	if cfg.Profile != "" {
		profilePort, err := strconv.Atoi(cfg.Profile)
		if err != nil || profilePort < 1024 || profilePort > 65535 {
			return nil, errors.Errorf("--profile must be a port between 1024 and 65535, got %s", cfg.Profile)
		}
	}

	err = initLog(cfg.LogDir, cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

func (cfg *configFlags) signatureVerifier() (sigverify.SignatureVerifier, error) {
	switch cfg.Verifier {
	case "btcec":
		return sigverify.NewBtcecVerifier(), nil
	case "secp256k1":
		return sigverify.NewSecp256k1Verifier(), nil
	}
	return nil, errors.Errorf("unknown signature verifier %s, use btcec or secp256k1", cfg.Verifier)
}
