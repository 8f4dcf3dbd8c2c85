package config

import (
	"bytes"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func validConfig(t *testing.T) *Config {
	conf := NewTestConfig(t, logrus.DebugLevel)
	conf.Interfaces = []string{"eth0"}
	return conf
}

func TestDefaultConfigValidates(t *testing.T) {
	conf := validConfig(t)
	if err := conf.Validate(); err != nil {
		t.Fatalf("default config should be valid: %v", err)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		modify func(c *Config)
		ok     bool
	}{
		{"inmem without interfaces", func(c *Config) { c.Transport = "inmem"; c.Interfaces = nil }, true},
		{"udp without interfaces", func(c *Config) { c.Interfaces = nil }, false},
		{"empty interface name", func(c *Config) { c.Interfaces = []string{""} }, false},
		{"unknown transport", func(c *Config) { c.Transport = "tcp" }, false},
		{"unknown hash", func(c *Config) { c.Hash = "sha1" }, false},
		{"ipv4 group", func(c *Config) { c.Group = "224.0.0.1" }, false},
		{"imax below imin", func(c *Config) { c.TrickleImax = c.TrickleImin / 2 }, false},
		{"imax equal imin", func(c *Config) { c.TrickleImax = c.TrickleImin }, true},
		{"zero trickle k", func(c *Config) { c.TrickleK = 0 }, false},
		{"hash longer than md5", func(c *Config) { c.HashLength = 17 }, false},
		{"hash as long as sha256", func(c *Config) { c.Hash = "sha256"; c.HashLength = 32 }, true},
		{"hash longer than xxhash", func(c *Config) { c.Hash = "xxhash"; c.HashLength = 9 }, false},
		{"bad seed", func(c *Config) { c.Seed = "not hex" }, false},
		{"good seed", func(c *Config) { c.Seed = "0x0011aabb" }, true},
		{"bad log level", func(c *Config) { c.LogLevel = "verbose" }, false},
		{"bad service address", func(c *Config) { c.ServiceAddr = "nowhere" }, false},
		{"keepalive disabled", func(c *Config) { c.KeepaliveInterval = 0 }, true},
		{"multiplier below one", func(c *Config) { c.KeepaliveMultiplier = 0.5 }, false},
	}

	for _, tc := range cases {
		conf := validConfig(t)
		tc.modify(conf)
		err := conf.Validate()
		if tc.ok && err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.name, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("%s: expected an error", tc.name)
		}
	}
}

func TestSeedBytes(t *testing.T) {
	conf := validConfig(t)

	seed, err := conf.SeedBytes()
	if err != nil || seed != nil {
		t.Fatalf("no seed should give nil, got %x, %v", seed, err)
	}

	conf.Seed = "0x0011AABB"
	seed, err = conf.SeedBytes()
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if !bytes.Equal(seed, []byte{0x00, 0x11, 0xaa, 0xbb}) {
		t.Fatalf("seed should be 0011aabb, not %x", seed)
	}
}

func TestDncpConfig(t *testing.T) {
	conf := validConfig(t)
	conf.NodeIDLength = 8
	conf.HashLength = 16
	conf.TrickleImin = 50 * time.Millisecond
	conf.TrickleK = 3
	conf.KeepaliveInterval = 5 * time.Second
	conf.CollisionBackoff = 10

	dc := conf.DncpConfig()
	if dc.NodeIdentifierLength != 8 || dc.HashLength != 16 {
		t.Fatalf("lengths not carried over: %d %d", dc.NodeIdentifierLength, dc.HashLength)
	}
	if dc.Endpoint.TrickleImin != 50*time.Millisecond || dc.Endpoint.TrickleK != 3 {
		t.Fatalf("trickle parameters not carried over: %+v", dc.Endpoint)
	}
	if dc.Endpoint.KeepaliveInterval != 5*time.Second {
		t.Fatalf("keepalive not carried over: %v", dc.Endpoint.KeepaliveInterval)
	}
	if dc.Endpoint.MaximumMulticastSize != DefaultMaxMulticastSize {
		t.Fatalf("max multicast size not carried over: %d", dc.Endpoint.MaximumMulticastSize)
	}
	if dc.CollisionBackoff != 10 {
		t.Fatalf("collision backoff not carried over: %d", dc.CollisionBackoff)
	}
	if dc.CollisionEscalation < 1 || dc.MaximumPayloadSize == 0 {
		t.Fatalf("core defaults should be kept: %+v", dc)
	}
}

func TestLogLevel(t *testing.T) {
	levels := map[string]logrus.Level{
		"debug":   logrus.DebugLevel,
		"info":    logrus.InfoLevel,
		"warn":    logrus.WarnLevel,
		"error":   logrus.ErrorLevel,
		"fatal":   logrus.FatalLevel,
		"panic":   logrus.PanicLevel,
		"unknown": logrus.DebugLevel,
	}
	for s, l := range levels {
		if got := LogLevel(s); got != l {
			t.Fatalf("LogLevel(%s) should be %v, not %v", s, l, got)
		}
	}
}

func TestLogFile(t *testing.T) {
	dir, err := ioutil.TempDir("", "dncpd-config")
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	defer os.RemoveAll(dir)

	conf := NewDefaultConfig()
	conf.LogLevel = "debug"
	conf.LogFile = filepath.Join(dir, "dncpd.log")

	logger := conf.Logger()
	logger.Logger.Out = ioutil.Discard
	logger.Debug("debug line")
	logger.Info("info line")

	data, err := ioutil.ReadFile(conf.LogFile)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if !strings.Contains(string(data), "info line") {
		t.Fatalf("info line missing from log file: %s", data)
	}
	if strings.Contains(string(data), "debug line") {
		t.Fatalf("debug line should not reach the log file: %s", data)
	}
}
