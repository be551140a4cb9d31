// Package file stores each key as a JSON file in a directory and watches the
// directory with fsnotify, so separate processes sharing the directory see
// each other's writes.
package file

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"

	"github.com/utafrali/EcommerceGo/services/cart/internal/storage"
)

const (
	fileExt   = ".json"
	originExt = ".origin"
)

// Store is a directory-backed storage backend.
type Store struct {
	dir    string
	origin string
	logger *slog.Logger

	mu sync.Mutex
	// written holds the last bytes this instance wrote per key. A change is
	// our own only when the origin sidecar names us and the content matches;
	// the entry is dropped once another writer's change is seen.
	written map[string][]byte
}

var _ storage.Backend = (*Store)(nil)

// New creates the directory if needed and returns a store rooted at it.
func New(dir string, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir %s: %w", dir, err)
	}
	return &Store{
		dir:     dir,
		origin:  uuid.NewString(),
		logger:  logger,
		written: make(map[string][]byte),
	}, nil
}

// Path returns the file a key is stored in.
func (s *Store) Path(key string) string {
	return filepath.Join(s.dir, url.PathEscape(key)+fileExt)
}

// OriginPath returns the sidecar naming the instance that last wrote key.
func (s *Store) OriginPath(key string) string {
	return filepath.Join(s.dir, url.PathEscape(key)+originExt)
}

// Origin returns the instance's origin id.
func (s *Store) Origin() string {
	return s.origin
}

// Get reads the file for key.
func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(s.Path(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return data, nil
}

// Set writes value atomically: a temp file in the same directory is
// renamed over the target, so readers never see a partial write. The
// origin sidecar is replaced the same way just before the value.
func (s *Store) Set(_ context.Context, key string, value []byte) error {
	tmpName, err := s.writeTemp(key, value)
	if err != nil {
		return err
	}
	defer os.Remove(tmpName) //nolint:errcheck

	originTmp, err := s.writeTemp(key, []byte(s.origin))
	if err != nil {
		return err
	}
	defer os.Remove(originTmp) //nolint:errcheck

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Rename(originTmp, s.OriginPath(key)); err != nil {
		return fmt.Errorf("rename %s origin: %w", key, err)
	}
	if err := os.Rename(tmpName, s.Path(key)); err != nil {
		return fmt.Errorf("rename %s: %w", key, err)
	}
	s.written[key] = bytes.Clone(value)
	return nil
}

func (s *Store) writeTemp(key string, data []byte) (string, error) {
	tmp, err := os.CreateTemp(s.dir, ".tmp-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	name := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(name)
		return "", fmt.Errorf("write %s: %w", key, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(name)
		return "", fmt.Errorf("sync %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(name)
		return "", fmt.Errorf("close %s: %w", key, err)
	}
	return name, nil
}

// Watch reports changes to key's file made by other writers until ctx is
// done.
func (s *Store) Watch(ctx context.Context, key string, fn func(storage.Change)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close() //nolint:errcheck

	// Watch the directory: the atomic rename replaces the file's inode.
	if err := watcher.Add(s.dir); err != nil {
		return fmt.Errorf("watch %s: %w", s.dir, err)
	}

	target := filepath.Clean(s.Path(key))
	for {
		select {
		case <-ctx.Done():
			return nil
		case evt, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(evt.Name) != target {
				continue
			}
			if change, ok := s.changeFor(key, evt); ok {
				fn(change)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("storage watcher error",
				slog.String("dir", s.dir),
				slog.String("error", err.Error()),
			)
		}
	}
}

func (s *Store) changeFor(key string, evt fsnotify.Event) (storage.Change, bool) {
	switch {
	case evt.Op&(fsnotify.Create|fsnotify.Write) != 0:
		data, err := os.ReadFile(evt.Name)
		if err != nil {
			// Replaced again before we got to it; the next event covers it.
			return storage.Change{}, false
		}
		// A missing sidecar means a writer that does not record one.
		origin, _ := os.ReadFile(s.OriginPath(key))

		s.mu.Lock()
		defer s.mu.Unlock()
		if string(origin) == s.origin && bytes.Equal(data, s.written[key]) {
			return storage.Change{}, false
		}
		// Someone else wrote since; a later identical write of ours must
		// not be mistaken for that one.
		delete(s.written, key)
		return storage.Change{Key: key, Value: data, Origin: string(origin)}, true
	case evt.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		if _, err := os.Stat(evt.Name); err == nil {
			return storage.Change{}, false
		}
		return storage.Change{Key: key}, true
	default:
		return storage.Change{}, false
	}
}

// Ping checks the directory is still there.
func (s *Store) Ping(context.Context) error {
	info, err := os.Stat(s.dir)
	if err != nil {
		return fmt.Errorf("stat storage dir: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("storage path %s is not a directory", s.dir)
	}
	return nil
}

// Close is a no-op; watchers end with their context.
func (s *Store) Close() error {
	return nil
}
