// Package config defines the configuration for a dncpd node.
//
// Regardless of how a node is started, directly from Go code or as a
// standalone process from the command line, it uses the Config object defined
// in this package. The command line binds every field to a flag, to a DNCPD_*
// environment variable and to a key of the optional configuration file found
// in the data directory:
//
//  dncpd.toml // or dncpd.yaml, dncpd.json
//
// Protocol parameters are translated to the core's own configuration by
// DncpConfig.
package config
