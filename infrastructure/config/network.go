package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/kaspanet/btcconsensus/domain/chaincfg"
	"github.com/kaspanet/btcconsensus/domain/consensus/model/externalapi"
	"github.com/kaspanet/btcconsensus/domain/consensus/utils/constants"
	"github.com/kaspanet/btcconsensus/domain/consensus/utils/math"
	"github.com/pkg/errors"
)

// NetworkFlags holds the network configuration, that is which network is selected.
type NetworkFlags struct {
	Testnet            bool   `long:"testnet" description:"Use the test network"`
	RegressionTest     bool   `long:"regtest" description:"Use the regression test network"`
	Simnet             bool   `long:"simnet" description:"Use the simulation test network"`
	OverrideParamsFile string `long:"override-params-file" description:"Overrides network params (allowed only on regtest)"`

	ActiveNetParams *chaincfg.Params
}

type overrideParamsConfig struct {
	PowLimitBits                     *uint32 `json:"powLimitBits"`
	PowNoRetargeting                 *bool   `json:"powNoRetargeting"`
	TargetTimePerBlockInMilliSeconds *int64  `json:"targetTimePerBlockInMilliSeconds"`
	InitialSubsidy                   *int64  `json:"initialSubsidy"`
	SubsidyReductionInterval         *uint64 `json:"subsidyReductionInterval"`
	CoinbaseMaturity                 *uint64 `json:"coinbaseMaturity"`
	BIP0016Height                    *uint64 `json:"bip16Height"`
	BIP0034Height                    *uint64 `json:"bip34Height"`
	BIP0065Height                    *uint64 `json:"bip65Height"`
	BIP0066Height                    *uint64 `json:"bip66Height"`
	CSVHeight                        *uint64 `json:"csvHeight"`
	SegwitHeight                     *uint64 `json:"segwitHeight"`
}

// ResolveNetwork parses the network command line argument and sets NetParams accordingly.
// It returns error if more than one network was selected, nil otherwise.
func (networkFlags *NetworkFlags) ResolveNetwork(parser *flags.Parser) error {
	// NetParams holds the selected network parameters. Default value is main-net.
	// The params are copied so that overrides never leak into the globals.
	params := chaincfg.MainnetParams
	// Multiple networks can't be selected simultaneously.
	numNets := 0
	// Count number of network flags passed; assign active network params
	// while we're at it
	if networkFlags.Testnet {
		numNets++
		params = chaincfg.TestnetParams
	}
	if networkFlags.RegressionTest {
		numNets++
		params = chaincfg.RegressionNetParams
	}
	if networkFlags.Simnet {
		numNets++
		params = chaincfg.SimnetParams
	}
	if numNets > 1 {
		message := "Multiple networks parameters (testnet, regtest, simnet) cannot be used " +
			"together. Please choose only one network"
		err := errors.Errorf(message)
		fmt.Fprintln(os.Stderr, err)
		parser.WriteHelp(os.Stderr)
		return err
	}
	networkFlags.ActiveNetParams = &params

	return networkFlags.overrideParams()
}

// NetParams returns the ActiveNetParams
func (networkFlags *NetworkFlags) NetParams() *chaincfg.Params {
	return networkFlags.ActiveNetParams
}

func (networkFlags *NetworkFlags) overrideParams() error {
	if networkFlags.OverrideParamsFile == "" {
		return nil
	}

	if !networkFlags.RegressionTest {
		return errors.Errorf("override-params-file is allowed only when using regtest")
	}

	overrideParamsFile, err := os.Open(networkFlags.OverrideParamsFile)
	if err != nil {
		return errors.WithStack(err)
	}
	defer overrideParamsFile.Close()

	decoder := json.NewDecoder(overrideParamsFile)
	decoder.DisallowUnknownFields()
	config := &overrideParamsConfig{}
	err = decoder.Decode(config)
	if err != nil {
		return errors.Wrapf(err, "couldn't decode %s", networkFlags.OverrideParamsFile)
	}

	return config.apply(networkFlags.ActiveNetParams)
}

func (config *overrideParamsConfig) apply(params *chaincfg.Params) error {
	if config.PowLimitBits != nil {
		powLimit, err := math.CompactToBigStrict(*config.PowLimitBits)
		if err != nil {
			return err
		}
		genesisTarget := math.CompactToBig(params.GenesisBlock.Header.Bits)
		if powLimit.Cmp(genesisTarget) < 0 {
			return errors.Errorf("powLimit (%s) is smaller than genesis's target (%s)", powLimit.Text(16),
				genesisTarget.Text(16))
		}
		params.PowLimit = powLimit
		params.PowLimitBits = *config.PowLimitBits
	}

	if config.PowNoRetargeting != nil {
		params.PowNoRetargeting = *config.PowNoRetargeting
	}

	if config.TargetTimePerBlockInMilliSeconds != nil {
		if *config.TargetTimePerBlockInMilliSeconds <= 0 {
			return errors.Errorf("targetTimePerBlockInMilliSeconds must be positive")
		}
		params.TargetTimePerBlock = time.Duration(*config.TargetTimePerBlockInMilliSeconds) *
			time.Millisecond
	}

	if config.InitialSubsidy != nil {
		if *config.InitialSubsidy < 0 || *config.InitialSubsidy > constants.MaxMoney {
			return errors.Errorf("initialSubsidy must be between 0 and %d", constants.MaxMoney)
		}
		params.InitialSubsidy = externalapi.Amount(*config.InitialSubsidy)
	}

	if config.SubsidyReductionInterval != nil {
		if *config.SubsidyReductionInterval == 0 {
			return errors.Errorf("subsidyReductionInterval must be positive")
		}
		params.SubsidyReductionInterval = *config.SubsidyReductionInterval
	}

	if config.CoinbaseMaturity != nil {
		params.CoinbaseMaturity = *config.CoinbaseMaturity
	}

	heights := []struct {
		value  *uint64
		target *externalapi.BlockHeight
	}{
		{config.BIP0016Height, &params.BIP0016Height},
		{config.BIP0034Height, &params.BIP0034Height},
		{config.BIP0065Height, &params.BIP0065Height},
		{config.BIP0066Height, &params.BIP0066Height},
		{config.CSVHeight, &params.CSVHeight},
		{config.SegwitHeight, &params.SegwitHeight},
	}
	for _, height := range heights {
		if height.value != nil {
			*height.target = externalapi.BlockHeight(*height.value)
		}
	}

	return nil
}
