/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Errors returned by stores.
var (
	// ErrNotFound is returned by Load when there is no snapshot for the key.
	ErrNotFound = errors.New("snapshot not found")

	// ErrTooLarge is returned by Save when the payload exceeds the configured entry size limit.
	ErrTooLarge = errors.New("snapshot is too large")

	// ErrClosed is returned for operations on a closed store.
	ErrClosed = errors.New("snapshot store is closed")
)

// Store persists the last known good value per key.
//
// Save must not interpret the payload beyond requiring it to be a valid JSON
// document (the on-disk envelope embeds it as is). Implementations are safe
// for concurrent use.
type Store interface {
	// Save persists the payload together with the moment it was fetched.
	Save(key string, data []byte, fetchedAt time.Time) error

	// Load returns the stored payload and its fetch time.
	// Returns ErrNotFound when the key has no snapshot.
	Load(key string) (data []byte, fetchedAt time.Time, err error)

	// Delete removes the snapshot for the key. Deleting an absent key is not an error.
	Delete(key string) error

	// Keys returns the keys of all stored snapshots.
	Keys() ([]string, error)

	// Status reports the number of entries and their size on disk.
	Status() (Status, error)

	// Close releases resources and flushes outstanding writes.
	Close() error
}

// Syncer is implemented by stores that buffer writes. Sync blocks until all
// queued writes are committed.
type Syncer interface {
	Sync() error
}

// Status describes the state of a store for health and status surfaces.
type Status struct {
	Entries   int   `json:"entries"`
	SizeBytes int64 `json:"size_bytes"`
}

// envelope is the on-disk format of a single snapshot.
type envelope struct {
	FetchedAt time.Time       `json:"fetched_at"`
	Data      json.RawMessage `json:"data"`
}

func marshalEnvelope(data []byte, fetchedAt time.Time) ([]byte, error) {
	if !json.Valid(data) {
		return nil, fmt.Errorf("payload is not a valid JSON document")
	}
	return json.Marshal(envelope{FetchedAt: fetchedAt.UTC(), Data: data})
}

func unmarshalEnvelope(b []byte) ([]byte, time.Time, error) {
	var env envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, time.Time{}, fmt.Errorf("unmarshal snapshot envelope: %w", err)
	}
	return env.Data, env.FetchedAt, nil
}

// validateKey guards stores against keys that would escape the storage
// namespace. Callers with stricter key rules enforce them above this level.
func validateKey(key string) error {
	if key == "" {
		return fmt.Errorf("snapshot key should not be empty")
	}
	if strings.HasPrefix(key, ".") || strings.ContainsAny(key, `/\`) {
		return fmt.Errorf("invalid snapshot key %q", key)
	}
	return nil
}
