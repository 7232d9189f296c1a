package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonathan/portfolio-core/internal/config"
	"github.com/jonathan/portfolio-core/internal/fetch"
	"github.com/jonathan/portfolio-core/internal/loader"
	"github.com/jonathan/portfolio-core/internal/persistence"
	"github.com/jonathan/portfolio-core/internal/store"
)

var (
	configPath       string
	backend          string
	dataDir          string
	databaseURL      string
	namespace        string
	manifestURL      string
	validateManifest bool
	verbose          bool
)

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "Path to config.json file (values can be overridden by other flags)")
	flags.StringVar(&backend, "backend", "", "Storage backend: memory, file, badger or postgres")
	flags.StringVar(&dataDir, "data-dir", "", "Directory for the file and badger backends")
	flags.StringVar(&databaseURL, "db-url", "", "PostgreSQL connection URL (defaults to DATABASE_URL env var)")
	flags.StringVar(&namespace, "namespace", "", "Key namespace within shared storage")
	flags.StringVar(&manifestURL, "manifest-url", "", "Published manifest used when nothing is stored (defaults to PORTFOLIO_MANIFEST_URL)")
	flags.BoolVar(&validateManifest, "validate-manifest", false, "Reject manifests that fail schema validation")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Print detailed debug information")
}

// resolveConfig loads --config, applies explicitly set flags on top and
// fills the rest from the built-in defaults.
func resolveConfig(cmd *cobra.Command) (config.Config, error) {
	var cfg config.Config
	if configPath != "" {
		loaded, err := config.LoadConfig(configPath)
		if err != nil {
			return cfg, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = *loaded
	}

	flags := cmd.Flags()
	if flags.Changed("backend") {
		cfg.Backend = backend
	}
	if flags.Changed("data-dir") {
		cfg.DataDir = dataDir
	}
	if flags.Changed("db-url") {
		cfg.DatabaseURL = databaseURL
	}
	if flags.Changed("namespace") {
		cfg.Namespace = namespace
	}
	if flags.Changed("manifest-url") {
		cfg.ManifestURL = manifestURL
	}
	if flags.Changed("validate-manifest") {
		cfg.ValidateManifest = validateManifest
	}
	if flags.Changed("verbose") {
		cfg.Verbose = verbose
	}

	cfg = cfg.MergeWithDefaults(config.Defaults())
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	if cfg.Verbose && configPath != "" {
		_, _ = fmt.Fprintf(os.Stderr, "Loaded config from: %s\n", configPath)
	}
	return cfg, nil
}

// openedStore is a loaded store together with the storage it owns.
type openedStore struct {
	*store.Store
	storage *persistence.Opened
}

// Close flushes and closes the store, then releases the storage.
func (o *openedStore) Close(ctx context.Context) error {
	err := o.Store.Close(ctx)
	if cerr := o.storage.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

// openStore opens the configured backend and loads the document through
// the snapshot → manifest → default tiers.
func openStore(ctx context.Context, cfg config.Config) (*openedStore, error) {
	storage, err := persistence.Open(ctx, persistence.OpenOptions{
		Backend:     cfg.Backend,
		Dir:         cfg.DataDir,
		DatabaseURL: cfg.DatabaseURL,
		Namespace:   cfg.Namespace,
		Verbose:     cfg.Verbose,
	})
	if err != nil {
		return nil, err
	}

	fetchOpts := fetch.DefaultOptions()
	if cfg.FetchTimeoutSeconds > 0 {
		fetchOpts.Timeout = time.Duration(cfg.FetchTimeoutSeconds) * time.Second
	}
	l := loader.Standard(storage.Port, cfg.ManifestURL, fetchOpts,
		loader.WithVerbose(cfg.Verbose),
		loader.WithValidateManifest(cfg.ValidateManifest),
	)

	st := store.New(storage.Port, l, store.WithVerbose(cfg.Verbose))
	if err := st.Load(ctx); err != nil {
		_ = storage.Close()
		return nil, fmt.Errorf("failed to load portfolio: %w", err)
	}
	if cfg.Verbose {
		log.Printf("[STORE] Loaded portfolio from %s tier (%s backend)", st.Tier(), storage.Backend)
	}
	return &openedStore{Store: st, storage: storage}, nil
}
