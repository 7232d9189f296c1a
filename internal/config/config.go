// Package config provides configuration loading and validation for the CLI
// and the editor server.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/jonathan/portfolio-core/internal/persistence"
)

// Storage backends for the durable key/value port.
const (
	BackendMemory   = persistence.BackendMemory
	BackendFile     = persistence.BackendFile
	BackendBadger   = persistence.BackendBadger
	BackendPostgres = persistence.BackendPostgres
)

// Defaults applied by MergeWithDefaults.
const (
	DefaultDataDir             = ".portfolio"
	DefaultNamespace           = "default"
	DefaultFetchTimeoutSeconds = 15
)

// Config represents the configuration that can be loaded from a JSON file.
// All fields are optional; missing values use defaults or CLI flags.
type Config struct {
	// Storage
	Backend     string `json:"backend,omitempty" validate:"omitempty,oneof=memory file badger postgres"`
	DataDir     string `json:"data_dir,omitempty"`                                     // Directory for the file and badger backends
	DatabaseURL string `json:"database_url,omitempty" validate:"required_if=Backend postgres"`
	Namespace   string `json:"namespace,omitempty" validate:"omitempty,max=64,printascii"` // Key namespace within a shared database

	// Sources
	ManifestURL         string `json:"manifest_url,omitempty" validate:"omitempty,url"` // Remote manifest for the second load tier
	ValidateManifest    bool   `json:"validate_manifest,omitempty"`                     // Reject manifests that fail schema validation
	FetchTimeoutSeconds int    `json:"fetch_timeout_seconds,omitempty" validate:"gte=0,lte=300"`

	// Export
	Template   string `json:"template,omitempty"`    // HTML template for the resume page
	OutputDir  string `json:"output_dir,omitempty"`  // Where exported PDFs are written
	ChromePath string `json:"chrome_path,omitempty"` // Chrome binary override
	Selector   string `json:"selector,omitempty"`    // CSS selector of the node to capture

	// Behavior
	Verbose bool `json:"verbose,omitempty"` // Print detailed debug information
}

// LoadConfig loads configuration from a JSON file.
// Returns an error if the file cannot be read or parsed.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	return &cfg, nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// Validate checks that the configuration has valid values.
// Required fields that depend on CLI flags are checked after merging.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return describeValidation(err)
	}

	if (c.Backend == BackendFile || c.Backend == BackendBadger) && c.DataDir == "" {
		return fmt.Errorf("config error: 'data_dir' is required for the %s backend", c.Backend)
	}

	if c.Template != "" {
		if _, err := os.Stat(c.Template); os.IsNotExist(err) {
			return fmt.Errorf("config error: template file not found: %s", c.Template)
		}
	}

	return nil
}

// describeValidation turns validator output into a single config error.
func describeValidation(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("config error: %w", err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("'%s' must be one of [%s]", fe.Field(), fe.Param()))
		case "required_if":
			msgs = append(msgs, fmt.Sprintf("'%s' is required when %s", fe.Field(), fe.Param()))
		case "url":
			msgs = append(msgs, fmt.Sprintf("'%s' must be a valid URL", fe.Field()))
		case "gte", "lte", "max":
			msgs = append(msgs, fmt.Sprintf("'%s' fails %s=%s", fe.Field(), fe.Tag(), fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("'%s' is invalid (%s)", fe.Field(), fe.Tag()))
		}
	}
	return fmt.Errorf("config error: %s", strings.Join(msgs, "; "))
}

// MergeWithDefaults returns a new Config with empty fields filled from defaults.
// This is used to apply config file values as defaults for CLI flags.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	if result.Backend == "" {
		result.Backend = defaults.Backend
	}
	if result.DataDir == "" {
		result.DataDir = defaults.DataDir
	}
	if result.DatabaseURL == "" {
		result.DatabaseURL = defaults.DatabaseURL
	}
	if result.Namespace == "" {
		result.Namespace = defaults.Namespace
	}
	if result.ManifestURL == "" {
		result.ManifestURL = defaults.ManifestURL
	}
	if result.FetchTimeoutSeconds == 0 {
		result.FetchTimeoutSeconds = defaults.FetchTimeoutSeconds
	}
	if result.Template == "" {
		result.Template = defaults.Template
	}
	if result.OutputDir == "" {
		result.OutputDir = defaults.OutputDir
	}
	if result.ChromePath == "" {
		result.ChromePath = defaults.ChromePath
	}
	if result.Selector == "" {
		result.Selector = defaults.Selector
	}

	// Bool fields: cannot distinguish unset from false, so we don't merge
	// (CLI flags should always win for bools)

	return result
}

// Defaults returns the built-in configuration, with DATABASE_URL and
// PORTFOLIO_MANIFEST_URL taken from the environment when set.
func Defaults() Config {
	cfg := Config{
		Backend:             BackendFile,
		DataDir:             DefaultDataDir,
		Namespace:           DefaultNamespace,
		FetchTimeoutSeconds: DefaultFetchTimeoutSeconds,
		OutputDir:           ".",
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		ManifestURL:         os.Getenv("PORTFOLIO_MANIFEST_URL"),
	}
	if backend := os.Getenv("PORTFOLIO_BACKEND"); backend != "" {
		cfg.Backend = backend
	}
	return cfg
}
