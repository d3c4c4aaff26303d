package protect

import (
	"context"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func testHexKey(seed string) string {
	return hex.EncodeToString(testRootKey(seed))
}

func writeTestConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfig_YAML(t *testing.T) {
	path := writeTestConfig(t, "protect.yaml", `
workspace: test-workspace
client_id: test-client
root_keys:
  v1: "`+testHexKey("v1")+`"
  v2: "`+testHexKey("v2")+`"
default_key_id: v2
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, "test-workspace", cfg.Workspace)
	require.Equal(t, "test-client", cfg.ClientID)
	require.Len(t, cfg.RootKeys, 2)
	require.Equal(t, "v2", cfg.DefaultKeyID)
}

func TestLoadConfig_TOML(t *testing.T) {
	path := writeTestConfig(t, "protect.toml", `
workspace = "test-workspace"

[root_keys]
v1 = "`+testHexKey("v1")+`"
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, "test-workspace", cfg.Workspace)
	require.Len(t, cfg.RootKeys, 1)
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	t.Setenv("CS_WORKSPACE", "from-env")
	path := writeTestConfig(t, "protect.yaml", `
workspace: from-file
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, "from-env", cfg.Workspace)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{
			name:    "missing workspace",
			cfg:     Config{},
			wantErr: "workspace is required",
		},
		{
			name: "bad hex key",
			cfg: Config{
				Workspace: "w",
				RootKeys:  map[string]string{"v1": "not-hex"},
			},
			wantErr: "not valid hex",
		},
		{
			name: "short key",
			cfg: Config{
				Workspace: "w",
				RootKeys:  map[string]string{"v1": "deadbeef"},
			},
			wantErr: "32 bytes",
		},
		{
			name: "default key not registered",
			cfg: Config{
				Workspace:    "w",
				RootKeys:     map[string]string{"v1": testHexKey("v1")},
				DefaultKeyID: "v9",
			},
			wantErr: "not among root_keys",
		},
		{
			name: "valid",
			cfg: Config{
				Workspace:    "w",
				RootKeys:     map[string]string{"v1": testHexKey("v1")},
				DefaultKeyID: "v1",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_DevEngine(t *testing.T) {
	cfg := Config{
		Workspace: "w",
		RootKeys: map[string]string{
			"v1": testHexKey("v1"),
			"v2": testHexKey("v2"),
		},
		DefaultKeyID: "v2",
	}

	engine, err := cfg.DevEngine()
	require.NoError(t, err)

	results, err := engine.Apply(context.Background(), []TermRequest{
		{Value: "configured", Table: "users", Column: "notes"},
	}, CallOptions{})
	require.NoError(t, err)
	require.NotEmpty(t, results[0].Ciphertext)
}

func TestConfig_DevEngine_NoKeys(t *testing.T) {
	cfg := Config{Workspace: "w"}
	_, err := cfg.DevEngine()
	require.ErrorIs(t, err, ErrNoRootKeys)
}
