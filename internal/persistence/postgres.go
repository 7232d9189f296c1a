package persistence

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/portfolio-core/internal/db"
)

// PostgresPort stores keys in a shared PostgreSQL table and learns about
// writes from other processes through LISTEN/NOTIFY.
type PostgresPort struct {
	db        *db.DB
	namespace string
	origin    string
	listeners listeners

	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// NewPostgres creates a port over database, scoped to namespace, and starts
// listening for changes. The caller keeps ownership of database.
func NewPostgres(ctx context.Context, database *db.DB, namespace string) (*PostgresPort, error) {
	if namespace == "" {
		namespace = "default"
	}
	if err := database.EnsureSchema(ctx); err != nil {
		return nil, err
	}

	listenCtx, cancel := context.WithCancel(context.Background())
	p := &PostgresPort{
		db:        database,
		namespace: namespace,
		origin:    uuid.New().String(),
		cancel:    cancel,
	}

	p.wg.Add(1)
	go p.listen(listenCtx)
	return p, nil
}

// Origin identifies this port in change notifications.
func (p *PostgresPort) Origin() string {
	return p.origin
}

func (p *PostgresPort) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Get reads a key.
func (p *PostgresPort) Get(ctx context.Context, key string) (string, bool, error) {
	if p.isClosed() {
		return "", false, ErrClosed
	}
	v, ok, err := p.db.GetValue(ctx, p.namespace, key)
	if err != nil {
		return "", false, &ReadError{Key: key, Cause: err}
	}
	return v, ok, nil
}

// Set writes a key and notifies other ports.
func (p *PostgresPort) Set(ctx context.Context, key, value string) error {
	if p.isClosed() {
		return &WriteError{Key: key, Message: "port closed", Cause: ErrClosed}
	}
	if err := p.db.PutValue(ctx, p.namespace, key, value, p.origin); err != nil {
		return &WriteError{Key: key, Message: "database write failed", Cause: err}
	}
	return nil
}

// Remove deletes a key and notifies other ports.
func (p *PostgresPort) Remove(ctx context.Context, key string) error {
	if p.isClosed() {
		return &WriteError{Key: key, Message: "port closed", Cause: ErrClosed}
	}
	if err := p.db.DeleteValue(ctx, p.namespace, key, p.origin); err != nil {
		return &WriteError{Key: key, Message: "database delete failed", Cause: err}
	}
	return nil
}

// OnExternalChange registers fn for writes made through other ports.
func (p *PostgresPort) OnExternalChange(fn func(Change)) func() {
	return p.listeners.add(fn)
}

// Close stops the listener. The database pool is left open.
func (p *PostgresPort) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	p.cancel()
	p.wg.Wait()
	return nil
}

// listen keeps a LISTEN connection open, reconnecting with a fixed backoff.
func (p *PostgresPort) listen(ctx context.Context) {
	defer p.wg.Done()
	const backoff = 2 * time.Second

	for {
		err := p.db.ListenChanges(ctx, func(c db.KVChange) {
			p.handle(ctx, c)
		})
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			log.Printf("[STORAGE] postgres listener stopped: %v (retrying in %s)", err, backoff)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
	}
}

func (p *PostgresPort) handle(ctx context.Context, c db.KVChange) {
	if c.Origin == p.origin || c.Namespace != p.namespace {
		return
	}
	if c.Removed {
		p.listeners.notify(Change{Key: c.Key, Removed: true})
		return
	}

	value, ok, err := p.db.GetValue(ctx, p.namespace, c.Key)
	if err != nil {
		log.Printf("[STORAGE] failed to read changed key %s: %v", c.Key, err)
		return
	}
	if !ok {
		// Removed again before we read it; the removal notification follows.
		return
	}
	p.listeners.notify(Change{Key: c.Key, Value: value})
}

// String describes the port for logs.
func (p *PostgresPort) String() string {
	return fmt.Sprintf("postgres(namespace=%s)", p.namespace)
}
