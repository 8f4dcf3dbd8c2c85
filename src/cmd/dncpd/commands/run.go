package commands

import (
	"strings"

	"github.com/mosaicnetworks/dncp/src/config"
	"github.com/mosaicnetworks/dncp/src/dncpd"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

//NewRunCmd returns the command that starts a dncpd node
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "run",
		Short:   "Run node",
		PreRunE: loadConfig,
		RunE:    runDncpd,
	}
	AddRunFlags(cmd)
	return cmd
}

/*******************************************************************************
* RUN
*******************************************************************************/

func runDncpd(cmd *cobra.Command, args []string) error {
	engine := dncpd.NewDncpd(&_config.Dncpd)

	if err := engine.Init(); err != nil {
		_config.Dncpd.Logger().Error("Cannot initialize engine:", err)
		return err
	}

	engine.Run()

	return nil
}

/*******************************************************************************
* CONFIG
*******************************************************************************/

//AddRunFlags adds flags to the Run command
func AddRunFlags(cmd *cobra.Command) {
	c := _config.Dncpd

	cmd.Flags().String("datadir", c.DataDir, "Top-level directory for configuration")
	cmd.Flags().String("log", c.LogLevel, "debug, info, warn, error, fatal, panic")
	cmd.Flags().String("log-file", c.LogFile, "Also write info and above to this file")
	cmd.Flags().String("moniker", c.Moniker, "Optional name")

	// Network
	cmd.Flags().StringSliceP("interfaces", "i", c.Interfaces, "Interfaces to run the protocol on")
	cmd.Flags().Int("port", c.Port, "UDP port")
	cmd.Flags().String("group", c.Group, "IPv6 multicast group")
	cmd.Flags().String("transport", c.Transport, "udp, or inmem to run alone")
	cmd.Flags().String("seed", c.Seed, "Hex bytes the node identifier is derived from, instead of hardware addresses")

	// Service
	cmd.Flags().StringP("service-listen", "s", c.ServiceAddr, "Listen IP:Port for HTTP service")
	cmd.Flags().Bool("no-service", c.NoService, "Disable the HTTP service")

	// Protocol profile
	cmd.Flags().Int("node-id-length", c.NodeIDLength, "Node identifier length in bytes")
	cmd.Flags().Int("hash-length", c.HashLength, "Hash length in bytes")
	cmd.Flags().String("hash", c.Hash, "md5, sha256, xxhash")

	// Timers
	cmd.Flags().Duration("trickle-imin", c.TrickleImin, "Trickle minimum interval")
	cmd.Flags().Duration("trickle-imax", c.TrickleImax, "Trickle maximum interval")
	cmd.Flags().Int("trickle-k", c.TrickleK, "Trickle redundancy constant")
	cmd.Flags().Duration("keepalive", c.KeepaliveInterval, "Keepalive interval, 0 to disable")
	cmd.Flags().Float64("keepalive-multiplier", c.KeepaliveMultiplier, "Silent neighbors are dropped after keepalive times this")
	cmd.Flags().Int("max-multicast-size", c.MaxMulticastSize, "Largest multicast payload")
	cmd.Flags().Duration("prune-grace", c.PruneGracePeriod, "How long unreachable nodes are kept")
	cmd.Flags().Duration("min-prune-interval", c.MinPruneInterval, "Minimum time between two reachability computations")
	cmd.Flags().Uint32("collision-backoff", c.CollisionBackoff, "Update number increment when resolving an identifier collision")
}

func loadConfig(cmd *cobra.Command, args []string) error {

	configFile, err := bindFlagsLoadViper(cmd)
	if err != nil {
		return err
	}

	logger := _config.Dncpd.Logger()

	if configFile != "" {
		logger.Debugf("Using config file: %s", configFile)
	} else {
		logger.Debugf("No config file found in: %s", _config.Dncpd.DataDir)
	}

	logger.WithFields(logrus.Fields{
		"dncpd.DataDir":          _config.Dncpd.DataDir,
		"dncpd.LogLevel":         _config.Dncpd.LogLevel,
		"dncpd.LogFile":          _config.Dncpd.LogFile,
		"dncpd.Moniker":          _config.Dncpd.Moniker,
		"dncpd.Interfaces":       _config.Dncpd.Interfaces,
		"dncpd.Port":             _config.Dncpd.Port,
		"dncpd.Group":            _config.Dncpd.Group,
		"dncpd.Transport":        _config.Dncpd.Transport,
		"dncpd.ServiceAddr":      _config.Dncpd.ServiceAddr,
		"dncpd.NoService":        _config.Dncpd.NoService,
		"dncpd.NodeIDLength":     _config.Dncpd.NodeIDLength,
		"dncpd.HashLength":       _config.Dncpd.HashLength,
		"dncpd.Hash":             _config.Dncpd.Hash,
		"dncpd.TrickleImin":      _config.Dncpd.TrickleImin,
		"dncpd.TrickleImax":      _config.Dncpd.TrickleImax,
		"dncpd.TrickleK":         _config.Dncpd.TrickleK,
		"dncpd.Keepalive":        _config.Dncpd.KeepaliveInterval,
		"dncpd.PruneGracePeriod": _config.Dncpd.PruneGracePeriod,
	}).Debug("RUN")

	return nil
}

// Bind all flags and read the config into viper. It returns the config file
// that was used, if any.
func bindFlagsLoadViper(cmd *cobra.Command) (string, error) {
	// Register flags with viper. Include flags from this command and all other
	// persistent flags from the parent
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return "", err
	}

	// DNCPD_TRICKLE_IMIN overrides trickle-imin, etc.
	viper.SetEnvPrefix("DNCPD")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	// first unmarshal to read from CLI flags
	if err := viper.Unmarshal(_config); err != nil {
		return "", err
	}

	// look for config file in [datadir]/dncpd.toml (.json, .yaml also work)
	viper.SetConfigName(config.DefaultConfigFile) // name of config file (without extension)
	viper.AddConfigPath(_config.Dncpd.DataDir)    // search root directory

	// If a config file is found, read it in.
	configFile := ""
	if err := viper.ReadInConfig(); err == nil {
		configFile = viper.ConfigFileUsed()
	} else if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
		return "", err
	}

	// second unmarshal to read from config file
	return configFile, viper.Unmarshal(_config)
}
