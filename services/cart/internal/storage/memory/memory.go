// Package memory is an in-process storage backend. Every Store attached to
// the same Bus shares its keys, the way browser tabs share localStorage.
package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/utafrali/EcommerceGo/services/cart/internal/storage"
)

// Bus holds the shared keys and fans out change notifications.
type Bus struct {
	mu       sync.RWMutex
	data     map[string][]byte
	subs     map[uint64]*subscriber
	nextID   uint64
	writeErr error
}

type subscriber struct {
	key    string
	origin string
	ch     chan storage.Change
	done   chan struct{}
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{
		data: make(map[string][]byte),
		subs: make(map[uint64]*subscriber),
	}
}

// Attach returns a new instance on the bus with its own origin id.
func (b *Bus) Attach() *Store {
	return &Store{bus: b, origin: uuid.NewString()}
}

// FailWrites makes every subsequent Set return err. Pass nil to recover.
func (b *Bus) FailWrites(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.writeErr = err
}

// Raw returns the value under key without going through an instance.
func (b *Bus) Raw(key string) ([]byte, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	v, ok := b.data[key]
	return slices.Clone(v), ok
}

// Put writes value under key as an anonymous writer and notifies every
// watcher of the key.
func (b *Bus) Put(key string, value []byte) {
	b.set(key, value, "")
}

func (b *Bus) set(key string, value []byte, origin string) error {
	b.mu.Lock()
	if b.writeErr != nil {
		err := b.writeErr
		b.mu.Unlock()
		return err
	}
	b.data[key] = slices.Clone(value)

	var targets []*subscriber
	for _, s := range b.subs {
		if s.key == key && (origin == "" || s.origin != origin) {
			targets = append(targets, s)
		}
	}
	b.mu.Unlock()

	for _, s := range targets {
		change := storage.Change{Key: key, Value: slices.Clone(value), Origin: origin}
		select {
		case s.ch <- change:
		case <-s.done:
		}
	}
	return nil
}

func (b *Bus) subscribe(key, origin string) (uint64, *subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	s := &subscriber{
		key:    key,
		origin: origin,
		ch:     make(chan storage.Change, 16),
		done:   make(chan struct{}),
	}
	b.subs[b.nextID] = s
	return b.nextID, s
}

func (b *Bus) unsubscribe(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if s, ok := b.subs[id]; ok {
		close(s.done)
		delete(b.subs, id)
	}
}

// Store is one instance's view of the bus.
type Store struct {
	bus    *Bus
	origin string
}

var _ storage.Backend = (*Store)(nil)

// Origin returns the instance's origin id.
func (s *Store) Origin() string {
	return s.origin
}

// Get returns the value stored under key.
func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := s.bus.Raw(key)
	if !ok {
		return nil, storage.ErrNotFound
	}
	return v, nil
}

// Set stores value and notifies the other instances watching key.
func (s *Store) Set(_ context.Context, key string, value []byte) error {
	return s.bus.set(key, value, s.origin)
}

// Watch delivers changes to key made by other instances until ctx is done.
func (s *Store) Watch(ctx context.Context, key string, fn func(storage.Change)) error {
	id, sub := s.bus.subscribe(key, s.origin)
	defer s.bus.unsubscribe(id)

	for {
		select {
		case <-ctx.Done():
			return nil
		case change := <-sub.ch:
			fn(change)
		}
	}
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error {
	return nil
}

// Close is a no-op; the bus outlives its instances.
func (s *Store) Close() error {
	return nil
}
