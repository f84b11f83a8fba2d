// Package config loads toolchain settings and the desired plugin state.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/viper"

	"github.com/reglet-dev/reglet-toolchain/plugin/entities"
)

// EnvPrefix prefixes environment overrides, e.g. REGLET_TOOLCHAIN_SIGNED_ONLY.
const EnvPrefix = "REGLET_TOOLCHAIN"

// Trust modes.
const (
	TrustInteractive = "interactive"
	TrustKeys        = "keys"
	TrustAllow       = "allow"
	TrustDeny        = "deny"
)

// Config holds all toolchain settings.
// It maps directly to the structure of toolchain.yml.
type Config struct {
	InstalledPath     string   `mapstructure:"installed_path"`
	TrustedKeysPath   string   `mapstructure:"trusted_keys_path"`
	KeyringPath       string   `mapstructure:"keyring_path"`
	ArtifactDir       string   `mapstructure:"artifact_dir"`
	Repositories      []string `mapstructure:"repositories"`
	SelfUpdateCatalog string   `mapstructure:"self_update_catalog"`
	SignedOnly        bool     `mapstructure:"signed_only"`
	RequireSignature  bool     `mapstructure:"require_signature"`
	TrustMode         string   `mapstructure:"trust_mode"`
	Only              []string `mapstructure:"only"`

	// Plugins is either a map of plugin name to entry or a list of
	// "name[@constraint]" declarations.
	Plugins interface{} `mapstructure:"plugins"`
}

// Option configures Load.
type Option func(*viper.Viper)

// WithConfigFile reads settings from path instead of searching.
func WithConfigFile(path string) Option {
	return func(v *viper.Viper) { v.SetConfigFile(path) }
}

// WithSearchPaths sets the directories searched for toolchain.{yml,yaml,json,toml}.
func WithSearchPaths(dirs ...string) Option {
	return func(v *viper.Viper) {
		for _, d := range dirs {
			v.AddConfigPath(d)
		}
	}
}

// WithHome sets the base directory of the default paths.
func WithHome(home string) Option {
	return func(v *viper.Viper) { setDefaults(v, home) }
}

// Load reads configuration from a toolchain config file, environment
// variables and defaults, in decreasing precedence order.
func Load(opts ...Option) (*Config, error) {
	v := viper.New()
	v.SetConfigName("toolchain")

	// REGLET_TOOLCHAIN_ARTIFACT_DIR overrides `artifact_dir`.
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	setDefaults(v, home)

	for _, opt := range opts {
		opt(v)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper, home string) {
	base := filepath.Join(home, ".reglet")
	v.SetDefault("installed_path", filepath.Join(base, "toolchain", "installed.lock"))
	v.SetDefault("trusted_keys_path", filepath.Join(base, "trusted-keys.json"))
	v.SetDefault("keyring_path", filepath.Join(base, "toolchain", "keyring.asc"))
	v.SetDefault("artifact_dir", filepath.Join(base, "toolchain", "artifacts"))
	v.SetDefault("repositories", []string{})
	v.SetDefault("signed_only", true)
	v.SetDefault("require_signature", false)
	v.SetDefault("trust_mode", TrustInteractive)
}

// Validate checks enumerated settings.
func (c *Config) Validate() error {
	modes := []string{TrustInteractive, TrustKeys, TrustAllow, TrustDeny}
	if !slices.Contains(modes, c.TrustMode) {
		return fmt.Errorf("invalid trust_mode %q (want one of %s)", c.TrustMode, strings.Join(modes, ", "))
	}
	return nil
}

// DesiredState builds the desired plugin state from the plugins setting.
// Map entries are ordered by name; list entries keep their order.
// A version given explicitly in configuration forces reinstallation when the
// installed version is equal.
func (c *Config) DesiredState() (*entities.DesiredState, error) {
	desired, err := entities.NewDesiredState()
	if err != nil {
		return nil, err
	}

	switch p := c.Plugins.(type) {
	case nil:
	case map[string]interface{}:
		names := make([]string, 0, len(p))
		for name := range p {
			names = append(names, name)
		}
		slices.Sort(names)

		for _, name := range names {
			req, err := entities.ParsePluginEntry(name, p[name])
			if err != nil {
				return nil, err
			}
			if err := desired.Add(req); err != nil {
				return nil, err
			}
		}
	case []interface{}:
		for _, item := range p {
			decl, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("plugin declaration must be a string, got %T", item)
			}
			name, constraint, force, err := entities.ParseDeclaration(decl)
			if err != nil {
				return nil, err
			}
			if err := desired.Add(entities.PluginRequirement{Name: name, Constraint: constraint, Force: force}); err != nil {
				return nil, err
			}
		}
	case []string:
		items := make([]interface{}, len(p))
		for i, s := range p {
			items[i] = s
		}
		return (&Config{Plugins: items}).DesiredState()
	default:
		return nil, fmt.Errorf("invalid plugins setting of type %T", c.Plugins)
	}

	return desired, nil
}
