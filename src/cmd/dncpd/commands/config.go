package commands

import (
	"github.com/mosaicnetworks/dncp/src/config"
)

//CLIConfig contains configuration for the Run command
type CLIConfig struct {
	Dncpd config.Config `mapstructure:",squash"`
}

//NewDefaultCLIConfig creates a CLIConfig with default values
func NewDefaultCLIConfig() *CLIConfig {
	return &CLIConfig{
		Dncpd: *config.NewDefaultConfig(),
	}
}
