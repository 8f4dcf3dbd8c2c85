package config

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mosaicnetworks/dncp/src/common"
	"github.com/mosaicnetworks/dncp/src/crypto"
	"github.com/mosaicnetworks/dncp/src/dncp"
	"github.com/rifflock/lfshook"
	"github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
)

// DefaultConfigFile is the base name of the configuration file looked up in
// the data directory.
const DefaultConfigFile = "dncpd"

// Default configuration values.
const (
	DefaultLogLevel            = "debug"
	DefaultPort                = 8231
	DefaultGroup               = "ff02::11"
	DefaultTransport           = "udp"
	DefaultServiceAddr         = "127.0.0.1:8000"
	DefaultNodeIDLength        = 4
	DefaultHashLength          = 8
	DefaultHash                = "md5"
	DefaultTrickleImin         = 200 * time.Millisecond
	DefaultTrickleImax         = 40 * time.Second
	DefaultTrickleK            = 1
	DefaultKeepaliveInterval   = 20 * time.Second
	DefaultKeepaliveMultiplier = 2.1
	DefaultMaxMulticastSize    = 1232
	DefaultPruneGracePeriod    = 60 * time.Second
	DefaultMinPruneInterval    = 20 * time.Millisecond
	DefaultCollisionBackoff    = 999
)

// Config contains all the configuration properties of a dncpd node.
type Config struct {
	// DataDir is the top-level directory containing the configuration file
	DataDir string `mapstructure:"datadir"`

	// LogLevel determines the chattiness of the log output.
	LogLevel string `mapstructure:"log" validate:"oneof=debug info warn error fatal panic"`

	// LogFile, when set, receives a copy of every info-and-above log line.
	LogFile string `mapstructure:"log-file"`

	// Moniker defines the friendly name of this node
	Moniker string `mapstructure:"moniker"`

	// Interfaces are the links the protocol runs on.
	Interfaces []string `mapstructure:"interfaces" validate:"dive,required"`

	// Port and Group are where DNCP traffic is sent and received.
	Port  int    `mapstructure:"port" validate:"min=0,max=65535"`
	Group string `mapstructure:"group" validate:"required,ipv6"`

	// Transport is udp, or inmem for a node that only talks to itself.
	Transport string `mapstructure:"transport" validate:"oneof=udp inmem"`

	// NoService disables the HTTP API service.
	NoService bool `mapstructure:"no-service"`

	// ServiceAddr is the address:port of the optional HTTP service.
	ServiceAddr string `mapstructure:"service-listen" validate:"omitempty,hostname_port"`

	NodeIDLength int    `mapstructure:"node-id-length" validate:"min=1,max=32"`
	HashLength   int    `mapstructure:"hash-length" validate:"min=1,max=32"`
	Hash         string `mapstructure:"hash" validate:"oneof=md5 sha256 xxhash"`

	// Trickle parameters, per endpoint.
	TrickleImin time.Duration `mapstructure:"trickle-imin" validate:"gt=0"`
	TrickleImax time.Duration `mapstructure:"trickle-imax" validate:"gtefield=TrickleImin"`
	TrickleK    int           `mapstructure:"trickle-k" validate:"min=1"`

	// KeepaliveInterval is how often the network state is multicast at
	// least. Zero disables keepalives and neighbor expiry.
	KeepaliveInterval   time.Duration `mapstructure:"keepalive" validate:"gte=0"`
	KeepaliveMultiplier float64       `mapstructure:"keepalive-multiplier" validate:"gte=1"`

	MaxMulticastSize int `mapstructure:"max-multicast-size" validate:"min=64,max=65535"`

	PruneGracePeriod time.Duration `mapstructure:"prune-grace" validate:"gte=0"`
	MinPruneInterval time.Duration `mapstructure:"min-prune-interval" validate:"gte=0"`

	CollisionBackoff uint32 `mapstructure:"collision-backoff"`

	// Seed, a hex string, replaces the hardware addresses the node
	// identifier is derived from.
	Seed string `mapstructure:"seed" validate:"omitempty,hexadecimal"`

	logger *logrus.Logger
}

// NewDefaultConfig returns a config object with default values.
func NewDefaultConfig() *Config {
	config := &Config{
		DataDir:             DefaultDataDir(),
		LogLevel:            DefaultLogLevel,
		Port:                DefaultPort,
		Group:               DefaultGroup,
		Transport:           DefaultTransport,
		ServiceAddr:         DefaultServiceAddr,
		NodeIDLength:        DefaultNodeIDLength,
		HashLength:          DefaultHashLength,
		Hash:                DefaultHash,
		TrickleImin:         DefaultTrickleImin,
		TrickleImax:         DefaultTrickleImax,
		TrickleK:            DefaultTrickleK,
		KeepaliveInterval:   DefaultKeepaliveInterval,
		KeepaliveMultiplier: DefaultKeepaliveMultiplier,
		MaxMulticastSize:    DefaultMaxMulticastSize,
		PruneGracePeriod:    DefaultPruneGracePeriod,
		MinPruneInterval:    DefaultMinPruneInterval,
		CollisionBackoff:    DefaultCollisionBackoff,
	}

	return config
}

// NewTestConfig returns a config object with default values and a special
// logger for debugging tests.
func NewTestConfig(t testing.TB, level logrus.Level) *Config {
	config := NewDefaultConfig()
	config.logger = common.NewTestLogger(t, level)
	return config
}

// Validate checks every field against its validate tag, then the rules that
// span several fields.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}
	if c.Transport == "udp" && len(c.Interfaces) == 0 {
		return fmt.Errorf("the udp transport needs at least one interface")
	}
	if size := crypto.Size(c.Hash); c.HashLength > size {
		return fmt.Errorf("hash-length %d exceeds the %d bytes of %s", c.HashLength, size, c.Hash)
	}
	return nil
}

// SeedBytes decodes Seed. It returns nil if no seed is configured.
func (c *Config) SeedBytes() ([]byte, error) {
	if c.Seed == "" {
		return nil, nil
	}
	return common.DecodeFromString(c.Seed)
}

// DncpConfig returns the protocol parameters.
func (c *Config) DncpConfig() *dncp.Config {
	conf := dncp.DefaultConfig()
	conf.NodeIdentifierLength = c.NodeIDLength
	conf.HashLength = c.HashLength
	conf.Endpoint = dncp.EndpointConfig{
		TrickleImin:          c.TrickleImin,
		TrickleImax:          c.TrickleImax,
		TrickleK:             c.TrickleK,
		KeepaliveInterval:    c.KeepaliveInterval,
		MaximumMulticastSize: c.MaxMulticastSize,
	}
	conf.KeepaliveMultiplier = c.KeepaliveMultiplier
	conf.PruneGracePeriod = c.PruneGracePeriod
	conf.MinimumPruneInterval = c.MinPruneInterval
	conf.CollisionBackoff = c.CollisionBackoff
	return conf
}

// ConfigFile returns the path of the configuration file, without extension.
func (c *Config) ConfigFile() string {
	return filepath.Join(c.DataDir, DefaultConfigFile)
}

// Logger returns a formatted logrus Entry, with prefix set to "dncpd". When
// LogFile is set, info-and-above lines are also written there.
func (c *Config) Logger() *logrus.Entry {
	if c.logger == nil {
		c.logger = logrus.New()
		c.logger.Level = LogLevel(c.LogLevel)
		c.logger.Formatter = new(prefixed.TextFormatter)

		if c.LogFile != "" {
			pathMap := lfshook.PathMap{}
			for _, l := range []logrus.Level{
				logrus.InfoLevel,
				logrus.WarnLevel,
				logrus.ErrorLevel,
				logrus.FatalLevel,
				logrus.PanicLevel,
			} {
				pathMap[l] = c.LogFile
			}
			c.logger.Hooks.Add(lfshook.NewHook(
				pathMap,
				&logrus.TextFormatter{},
			))
		}
	}
	return c.logger.WithField("prefix", "dncpd")
}

// DefaultDataDir return the default directory name for top-level dncpd config
// based on the underlying OS, attempting to respect conventions.
func DefaultDataDir() string {
	// Try to place the data folder in the user's home dir
	home := HomeDir()
	if home != "" {
		if runtime.GOOS == "darwin" {
			return filepath.Join(home, ".DNCPD")
		} else if runtime.GOOS == "windows" {
			return filepath.Join(home, "AppData", "Roaming", "DNCPD")
		} else {
			return filepath.Join(home, ".dncpd")
		}
	}
	// As we cannot guess a stable location, return empty and handle later
	return ""
}

// HomeDir returns the user's home directory.
func HomeDir() string {
	if home := os.Getenv("HOME"); home != "" {
		return home
	}
	if usr, err := user.Current(); err == nil {
		return usr.HomeDir
	}
	return ""
}

// LogLevel parses a string into a Logrus log level.
func LogLevel(l string) logrus.Level {
	switch l {
	case "debug":
		return logrus.DebugLevel
	case "info":
		return logrus.InfoLevel
	case "warn":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	case "fatal":
		return logrus.FatalLevel
	case "panic":
		return logrus.PanicLevel
	default:
		return logrus.DebugLevel
	}
}
