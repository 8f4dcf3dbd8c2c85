package node

import (
	"testing"
	"time"

	"github.com/mosaicnetworks/dncp/src/common"
	"github.com/mosaicnetworks/dncp/src/dncp"
	"github.com/sirupsen/logrus"
)

// Config ...
type Config struct {
	// Dncp is handed to the protocol core as is.
	Dncp *dncp.Config

	// Interfaces are joined and enabled by Init.
	Interfaces []string

	// HashName selects the node and network hash (md5, sha256, xxhash).
	HashName string

	// Seed, when set, replaces the transport's hardware addresses as the
	// source of the node identifier.
	Seed []byte

	// Moniker is a human readable name reported in stats.
	Moniker string

	// Validator, when set, replaces the default node data validator.
	Validator func(n *dncp.Node, data []byte) []byte

	Logger *logrus.Logger
}

// NewConfig ...
func NewConfig(dncpConf *dncp.Config,
	interfaces []string,
	hashName string,
	logger *logrus.Logger) *Config {

	return &Config{
		Dncp:       dncpConf,
		Interfaces: interfaces,
		HashName:   hashName,
		Logger:     logger,
	}
}

// DefaultConfig ...
func DefaultConfig() *Config {
	logger := logrus.New()
	logger.Level = logrus.DebugLevel

	return &Config{
		Dncp:     dncp.DefaultConfig(),
		HashName: "md5",
		Logger:   logger,
	}
}

// TestConfig returns a configuration with fast Trickle and keepalive
// timers, logging through t.
func TestConfig(t testing.TB) *Config {
	config := DefaultConfig()
	config.Dncp.Endpoint.TrickleImin = 20 * time.Millisecond
	config.Dncp.Endpoint.TrickleImax = 400 * time.Millisecond
	config.Dncp.Endpoint.KeepaliveInterval = 200 * time.Millisecond
	config.Dncp.PruneGracePeriod = time.Second
	config.Logger = common.NewTestLogger(t, logrus.DebugLevel)
	return config
}
