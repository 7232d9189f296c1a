package persistence

import (
	"context"
	"sync"
)

// MemoryBackend is an in-process key/value space shared by any number of
// MemoryPorts, the way browser storage is shared by tabs of one origin.
type MemoryBackend struct {
	mu       sync.Mutex
	data     map[string]string
	ports    map[*MemoryPort]struct{}
	maxBytes int
}

// NewMemoryBackend creates an empty shared backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		data:  make(map[string]string),
		ports: make(map[*MemoryPort]struct{}),
	}
}

// SetQuota limits the total bytes (keys plus values) the backend accepts.
// Zero disables the limit.
func (b *MemoryBackend) SetQuota(maxBytes int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.maxBytes = maxBytes
}

// Open returns a new port attached to the backend.
func (b *MemoryBackend) Open() *MemoryPort {
	p := &MemoryPort{backend: b}
	b.mu.Lock()
	b.ports[p] = struct{}{}
	b.mu.Unlock()
	return p
}

// Value returns the raw stored value, for inspection in tests and tools.
func (b *MemoryBackend) Value(key string) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.data[key]
	return v, ok
}

func (b *MemoryBackend) sizeWith(key, value string) int {
	total := 0
	for k, v := range b.data {
		if k == key {
			continue
		}
		total += len(k) + len(v)
	}
	return total + len(key) + len(value)
}

// peers returns every open port except origin.
func (b *MemoryBackend) peers(origin *MemoryPort) []*MemoryPort {
	out := make([]*MemoryPort, 0, len(b.ports))
	for p := range b.ports {
		if p != origin {
			out = append(out, p)
		}
	}
	return out
}

// MemoryPort is one execution context's view of a MemoryBackend.
type MemoryPort struct {
	backend   *MemoryBackend
	listeners listeners

	mu     sync.Mutex
	closed bool
}

// NewMemory returns a port over a private backend.
func NewMemory() *MemoryPort {
	return NewMemoryBackend().Open()
}

// Backend returns the shared backend.
func (p *MemoryPort) Backend() *MemoryBackend {
	return p.backend
}

func (p *MemoryPort) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Get reads a key.
func (p *MemoryPort) Get(_ context.Context, key string) (string, bool, error) {
	if p.isClosed() {
		return "", false, ErrClosed
	}
	v, ok := p.backend.Value(key)
	return v, ok, nil
}

// Set writes a key and notifies the other ports.
func (p *MemoryPort) Set(_ context.Context, key, value string) error {
	if p.isClosed() {
		return &WriteError{Key: key, Message: "port closed", Cause: ErrClosed}
	}

	b := p.backend
	b.mu.Lock()
	if b.maxBytes > 0 {
		if size := b.sizeWith(key, value); size > b.maxBytes {
			b.mu.Unlock()
			return &WriteError{
				Key:     key,
				Message: "quota exceeded",
				Cause:   &QuotaExceededError{Limit: b.maxBytes, Requested: size},
			}
		}
	}
	old, existed := b.data[key]
	b.data[key] = value
	peers := b.peers(p)
	b.mu.Unlock()

	if existed && old == value {
		return nil
	}
	for _, peer := range peers {
		peer.listeners.notify(Change{Key: key, Value: value})
	}
	return nil
}

// Remove deletes a key and notifies the other ports.
func (p *MemoryPort) Remove(_ context.Context, key string) error {
	if p.isClosed() {
		return &WriteError{Key: key, Message: "port closed", Cause: ErrClosed}
	}

	b := p.backend
	b.mu.Lock()
	_, existed := b.data[key]
	delete(b.data, key)
	peers := b.peers(p)
	b.mu.Unlock()

	if !existed {
		return nil
	}
	for _, peer := range peers {
		peer.listeners.notify(Change{Key: key, Removed: true})
	}
	return nil
}

// OnExternalChange registers fn for writes made through other ports.
func (p *MemoryPort) OnExternalChange(fn func(Change)) func() {
	return p.listeners.add(fn)
}

// Close detaches the port from its backend.
func (p *MemoryPort) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	p.backend.mu.Lock()
	delete(p.backend.ports, p)
	p.backend.mu.Unlock()
	return nil
}
