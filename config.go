package protect

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config is the explicit boundary configuration for a deployment. It is read
// once (from a file and CS_-prefixed environment overrides), validated once,
// and passed around as a value; core logic never re-reads ambient process
// state.
type Config struct {
	// Workspace identifies the engine tenant this client belongs to.
	Workspace string `mapstructure:"workspace"`

	// ClientID names this client to the access-token issuer. Optional.
	ClientID string `mapstructure:"client_id"`

	// RootKeys maps root key IDs to hex-encoded 32-byte keys for the bundled
	// development engine. Production deployments leave this empty and point
	// the client at a real engine instead.
	RootKeys map[string]string `mapstructure:"root_keys"`

	// DefaultKeyID selects which root key new encryptions use. Defaults to
	// the alphabetically first root key when empty.
	DefaultKeyID string `mapstructure:"default_key_id"`
}

// LoadConfig reads configuration from the given file (TOML, YAML, or JSON by
// extension) with environment overrides: CS_WORKSPACE, CS_CLIENT_ID, and so
// on. The result is validated before it is returned.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("CS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("protect: read config: %w", err)
	}
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("protect: parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration once at the boundary.
func (c *Config) Validate() error {
	if c.Workspace == "" {
		return fmt.Errorf("protect: config: workspace is required")
	}
	for id, hexKey := range c.RootKeys {
		key, err := hex.DecodeString(hexKey)
		if err != nil {
			return fmt.Errorf("protect: config: root key %q is not valid hex", id)
		}
		if len(key) != 32 {
			return fmt.Errorf("protect: config: root key %q must decode to 32 bytes, got %d", id, len(key))
		}
	}
	if c.DefaultKeyID != "" {
		if _, ok := c.RootKeys[c.DefaultKeyID]; !ok {
			return fmt.Errorf("protect: config: default key %q is not among root_keys", c.DefaultKeyID)
		}
	}
	return nil
}

// DevEngine builds the bundled development engine from the configured root
// keys. Key IDs are registered in sorted order so the implicit default is
// deterministic.
func (c *Config) DevEngine() (*DevEngine, error) {
	if len(c.RootKeys) == 0 {
		return nil, ErrNoRootKeys
	}
	opts := make([]DevOption, 0, len(c.RootKeys)+1)
	for _, id := range sortedMapKeys(c.RootKeys) {
		key, err := hex.DecodeString(c.RootKeys[id])
		if err != nil {
			return nil, fmt.Errorf("protect: config: root key %q is not valid hex", id)
		}
		opts = append(opts, WithRootKey(id, key))
	}
	if c.DefaultKeyID != "" {
		opts = append(opts, WithDefaultRootKey(c.DefaultKeyID))
	}
	return NewDevEngine(opts...)
}
