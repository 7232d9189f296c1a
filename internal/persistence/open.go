package persistence

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"

	"github.com/jonathan/portfolio-core/internal/db"
)

// Backend names accepted by Open.
const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendBadger   = "badger"
	BackendPostgres = "postgres"
)

// OpenOptions selects and configures a backend.
type OpenOptions struct {
	Backend string
	// Dir is the data directory for the file and badger backends.
	Dir         string
	DatabaseURL string
	// Namespace separates portfolios sharing a database.
	Namespace string
	Verbose   bool
}

// Opened is a port together with the resources opened for it.
type Opened struct {
	Port
	Backend string
	owned   []func() error
}

// Close closes the port, then everything opened for it.
func (o *Opened) Close() error {
	errs := []error{o.Port.Close()}
	for i := len(o.owned) - 1; i >= 0; i-- {
		errs = append(errs, o.owned[i]())
	}
	return errors.Join(errs...)
}

// Open creates the port for opts.Backend.
func Open(ctx context.Context, opts OpenOptions) (*Opened, error) {
	namespace := opts.Namespace
	if namespace == "" {
		namespace = "default"
	}

	var opened *Opened
	switch opts.Backend {
	case BackendMemory:
		opened = &Opened{Port: NewMemory()}

	case BackendFile, "":
		if opts.Dir == "" {
			return nil, fmt.Errorf("file backend requires a data directory")
		}
		port, err := NewFile(filepath.Join(opts.Dir, "kv", namespace), opts.Verbose)
		if err != nil {
			return nil, err
		}
		opened = &Opened{Port: port, Backend: BackendFile}

	case BackendBadger:
		if opts.Dir == "" {
			return nil, fmt.Errorf("badger backend requires a data directory")
		}
		bdb, err := OpenBadger(BadgerConfig{Path: filepath.Join(opts.Dir, "badger"), SyncWrites: true})
		if err != nil {
			return nil, err
		}
		opened = &Opened{
			Port:  NewBadger(bdb, namespace+"/"),
			owned: []func() error{bdb.Close},
		}

	case BackendPostgres:
		if opts.DatabaseURL == "" {
			return nil, fmt.Errorf("postgres backend requires a database URL")
		}
		database, err := db.Connect(ctx, opts.DatabaseURL)
		if err != nil {
			return nil, err
		}
		port, err := NewPostgres(ctx, database, namespace)
		if err != nil {
			database.Close()
			return nil, err
		}
		opened = &Opened{
			Port:  port,
			owned: []func() error{func() error { database.Close(); return nil }},
		}

	default:
		return nil, fmt.Errorf("unknown storage backend %q", opts.Backend)
	}

	if opened.Backend == "" {
		opened.Backend = opts.Backend
	}
	if opts.Verbose {
		log.Printf("[STORAGE] Opened %s backend (namespace %s)", opened.Backend, namespace)
	}
	return opened, nil
}
