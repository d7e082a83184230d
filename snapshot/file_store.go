/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package snapshot

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/acronis/go-botkit/config"
)

const fileStoreExt = ".json"

// FileStoreOpts represents options for creating a FileStore.
type FileStoreOpts struct {
	// MaxEntrySize limits the payload size of a single snapshot. 0 means no limit.
	MaxEntrySize config.ByteSize
}

// FileStore keeps one <key>.json file per key under a directory.
// Writes go through a temp file and os.Rename, so a crash never leaves
// a partially written snapshot behind.
type FileStore struct {
	dir          string
	maxEntrySize config.ByteSize
}

var _ Store = (*FileStore)(nil)

// NewFileStore creates a new file-per-key store rooted at dir.
// The directory is created if it does not exist.
func NewFileStore(dir string) (*FileStore, error) {
	return NewFileStoreWithOpts(dir, FileStoreOpts{})
}

// NewFileStoreWithOpts creates a new file-per-key store with the provided options.
func NewFileStoreWithOpts(dir string, opts FileStoreOpts) (*FileStore, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("snapshots directory is required")
	}
	dir = filepath.Clean(dir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create snapshots directory: %w", err)
	}
	return &FileStore{dir: dir, maxEntrySize: opts.MaxEntrySize}, nil
}

// Save persists the payload together with the moment it was fetched.
func (s *FileStore) Save(key string, data []byte, fetchedAt time.Time) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if s.maxEntrySize > 0 && config.ByteSize(len(data)) > s.maxEntrySize {
		return fmt.Errorf("%w: %d bytes, limit is %s", ErrTooLarge, len(data), s.maxEntrySize)
	}
	b, err := marshalEnvelope(data, fetchedAt)
	if err != nil {
		return err
	}

	tmpPath := filepath.Join(s.dir, key+fileStoreExt+"."+xid.New().String()+".tmp")
	if err = os.WriteFile(tmpPath, b, 0o600); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err = os.Rename(tmpPath, s.keyPath(key)); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename snapshot: %w", err)
	}
	return nil
}

// Load returns the stored payload and its fetch time.
func (s *FileStore) Load(key string) ([]byte, time.Time, error) {
	if err := validateKey(key); err != nil {
		return nil, time.Time{}, err
	}
	b, err := os.ReadFile(s.keyPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, time.Time{}, ErrNotFound
		}
		return nil, time.Time{}, fmt.Errorf("read snapshot: %w", err)
	}
	return unmarshalEnvelope(b)
}

// Delete removes the snapshot for the key.
func (s *FileStore) Delete(key string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if err := os.Remove(s.keyPath(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove snapshot: %w", err)
	}
	return nil
}

// Keys returns the keys of all stored snapshots.
func (s *FileStore) Keys() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read snapshots directory: %w", err)
	}
	keys := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), fileStoreExt) {
			continue
		}
		keys = append(keys, strings.TrimSuffix(entry.Name(), fileStoreExt))
	}
	return keys, nil
}

// Status reports the number of snapshots and their total size on disk.
func (s *FileStore) Status() (Status, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return Status{}, fmt.Errorf("read snapshots directory: %w", err)
	}
	var st Status
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), fileStoreExt) {
			continue
		}
		info, infoErr := entry.Info()
		if infoErr != nil {
			continue
		}
		st.Entries++
		st.SizeBytes += info.Size()
	}
	return st, nil
}

// Close implements Store. The file store holds no resources.
func (s *FileStore) Close() error {
	return nil
}

func (s *FileStore) keyPath(key string) string {
	return filepath.Join(s.dir, key+fileStoreExt)
}
