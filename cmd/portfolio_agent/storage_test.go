package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/portfolio-core/internal/config"
	"github.com/jonathan/portfolio-core/internal/loader"
)

// flagCommand returns a command sharing the root persistent flags with
// the given values set. Flag state is restored when the test ends.
func flagCommand(t *testing.T, kv ...string) *cobra.Command {
	t.Helper()
	for _, key := range []string{"PORTFOLIO_BACKEND", "DATABASE_URL", "PORTFOLIO_MANIFEST_URL"} {
		t.Setenv(key, "")
	}

	fs := rootCmd.PersistentFlags()
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().AddFlagSet(fs)

	for i := 0; i+1 < len(kv); i += 2 {
		name := kv[i]
		require.NoError(t, fs.Set(name, kv[i+1]))
		t.Cleanup(func() {
			f := fs.Lookup(name)
			_ = f.Value.Set(f.DefValue)
			f.Changed = false
		})
	}
	return cmd
}

func useConfigFile(t *testing.T, content string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	configPath = path
	t.Cleanup(func() { configPath = "" })
}

func TestResolveConfig_Defaults(t *testing.T) {
	cfg, err := resolveConfig(flagCommand(t))
	require.NoError(t, err)

	assert.Equal(t, config.BackendFile, cfg.Backend)
	assert.Equal(t, config.DefaultDataDir, cfg.DataDir)
	assert.Equal(t, config.DefaultNamespace, cfg.Namespace)
	assert.Equal(t, config.DefaultFetchTimeoutSeconds, cfg.FetchTimeoutSeconds)
}

func TestResolveConfig_FlagsOverrideFile(t *testing.T) {
	useConfigFile(t, `{"backend": "badger", "data_dir": "/var/lib/portfolio", "namespace": "site"}`)

	cfg, err := resolveConfig(flagCommand(t, "backend", "memory"))
	require.NoError(t, err)

	assert.Equal(t, config.BackendMemory, cfg.Backend)
	assert.Equal(t, "/var/lib/portfolio", cfg.DataDir)
	assert.Equal(t, "site", cfg.Namespace)
}

func TestResolveConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		file string
		kv   []string
		want string
	}{
		{"unknown backend flag", "", []string{"backend", "s3"}, "must be one of"},
		{"postgres without url", `{"backend": "postgres"}`, nil, "database_url"},
		{"bad manifest url", "", []string{"manifest-url", "not a url"}, "valid URL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.file != "" {
				useConfigFile(t, tt.file)
			}
			_, err := resolveConfig(flagCommand(t, tt.kv...))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestResolveConfig_MissingFile(t *testing.T) {
	configPath = filepath.Join(t.TempDir(), "missing.json")
	t.Cleanup(func() { configPath = "" })

	_, err := resolveConfig(flagCommand(t))
	assert.ErrorContains(t, err, "failed to load config")
}

func TestOpenStore_FileBackendPersists(t *testing.T) {
	cfg := config.Config{Backend: config.BackendFile, DataDir: t.TempDir(), Namespace: "test"}
	ctx := context.Background()

	st, err := openStore(ctx, cfg)
	require.NoError(t, err)
	assert.Equal(t, loader.TierDefault, st.Tier())
	require.NoError(t, st.ReplaceSection("about", map[string]any{"bio": "kept"}))
	require.NoError(t, st.Close(ctx))

	reopened, err := openStore(ctx, cfg)
	require.NoError(t, err)
	defer func() { _ = reopened.Close(ctx) }()
	assert.Equal(t, loader.TierSnapshot, reopened.Tier())
	assert.Equal(t, "kept", reopened.Record("about")["bio"])
}
