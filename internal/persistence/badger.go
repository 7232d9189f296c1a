package persistence

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/pb"
)

// BadgerConfig configures an embedded Badger store.
type BadgerConfig struct {
	// Path is the database directory. Ignored when InMemory is set.
	Path string
	// InMemory keeps everything in RAM; useful for tests.
	InMemory bool
	// SyncWrites fsyncs every write.
	SyncWrites bool
}

// OpenBadger opens a Badger database for use with NewBadger.
func OpenBadger(cfg BadgerConfig) (*badger.DB, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Path == "" {
			return nil, fmt.Errorf("badger path is required unless in-memory")
		}
		if err := os.MkdirAll(cfg.Path, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create badger directory: %w", err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithLogger(nil)

	bdb, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}
	return bdb, nil
}

// BadgerPort stores keys under a prefix in a Badger database. Every port
// opened on the same *badger.DB sees the others' writes through Subscribe.
type BadgerPort struct {
	db        *badger.DB
	prefix    []byte
	echo      *echoFilter
	listeners listeners

	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// NewBadger creates a port over bdb. The caller keeps ownership of bdb.
func NewBadger(bdb *badger.DB, prefix string) *BadgerPort {
	if prefix == "" {
		prefix = "portfolio/"
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &BadgerPort{
		db:     bdb,
		prefix: []byte(prefix),
		echo:   newEchoFilter(),
		cancel: cancel,
	}

	p.wg.Add(1)
	go p.subscribe(ctx)
	return p
}

func (p *BadgerPort) key(k string) []byte {
	return append(append([]byte{}, p.prefix...), k...)
}

func (p *BadgerPort) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Get reads a key.
func (p *BadgerPort) Get(_ context.Context, key string) (string, bool, error) {
	if p.isClosed() {
		return "", false, ErrClosed
	}

	var value []byte
	err := p.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(p.key(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return "", false, nil
		}
		return "", false, &ReadError{Key: key, Cause: err}
	}
	return string(value), true, nil
}

// Set writes a key.
func (p *BadgerPort) Set(_ context.Context, key, value string) error {
	if p.isClosed() {
		return &WriteError{Key: key, Message: "port closed", Cause: ErrClosed}
	}
	p.echo.recordSet(key, value)
	err := p.db.Update(func(txn *badger.Txn) error {
		return txn.Set(p.key(key), []byte(value))
	})
	if err != nil {
		return &WriteError{Key: key, Message: "badger write failed", Cause: err}
	}
	return nil
}

// Remove deletes a key.
func (p *BadgerPort) Remove(_ context.Context, key string) error {
	if p.isClosed() {
		return &WriteError{Key: key, Message: "port closed", Cause: ErrClosed}
	}
	p.echo.recordRemove(key)
	err := p.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(p.key(key))
	})
	if err != nil {
		return &WriteError{Key: key, Message: "badger delete failed", Cause: err}
	}
	return nil
}

// OnExternalChange registers fn for writes made through other ports.
func (p *BadgerPort) OnExternalChange(fn func(Change)) func() {
	return p.listeners.add(fn)
}

// Close stops the subscription. The database is left open.
func (p *BadgerPort) Close() error {
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

func (p *BadgerPort) subscribe(ctx context.Context) {
	defer p.wg.Done()

	match := []pb.Match{{Prefix: p.prefix}}
	err := p.db.Subscribe(ctx, func(kvs *badger.KVList) error {
		for _, kv := range kvs.Kv {
			p.handle(kv)
		}
		return nil
	}, match)
	if err != nil && ctx.Err() == nil {
		log.Printf("[STORAGE] badger subscription ended: %v", err)
	}
}

func (p *BadgerPort) handle(kv *pb.KV) {
	key := string(kv.Key[len(p.prefix):])

	change := Change{Key: key, Value: string(kv.Value)}
	if len(kv.Value) == 0 {
		if _, ok, err := p.Get(context.Background(), key); err == nil && !ok {
			change = Change{Key: key, Removed: true}
		}
	}

	if p.echo.isEcho(change) {
		return
	}
	if change.Removed {
		p.echo.recordRemove(key)
	} else {
		p.echo.recordSet(key, change.Value)
	}
	p.listeners.notify(change)
}
