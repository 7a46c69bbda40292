// SPDX-License-Identifier: MPL-2.0

package config

import "context"

// LoadOptions selects where configuration is read from. The first file found
// wins: ConfigFilePath, then LocalConfigFile in WorkDir, then the user config
// file under ConfigDirPath (or ConfigDir when empty).
type LoadOptions struct {
	ConfigFilePath string
	// WorkDir defaults to the process working directory.
	WorkDir       string
	ConfigDirPath string
}

// Provider loads configuration for one command run.
type Provider interface {
	Load(ctx context.Context, opts LoadOptions) (*Config, error)
}

// fileProvider layers a CUE file and UIDREG_* variables over the defaults.
type fileProvider struct{}

// NewProvider creates the file-backed configuration provider.
func NewProvider() Provider {
	return fileProvider{}
}

// Load resolves and decodes configuration, recording the file it came from
// in Config.Source.
func (fileProvider) Load(ctx context.Context, opts LoadOptions) (*Config, error) {
	cfg, path, err := loadWithOptions(ctx, opts)
	if err != nil {
		return nil, err
	}
	cfg.Source = path
	return cfg, nil
}
