package storage

import (
	"context"
	"encoding/base64"
	"fmt"
	"sort"
	"sync"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// emptySnapshot is what Backup returns for a store with no keys.
const emptySnapshot = `{"entries":[]}`

type snapshotEntry struct {
	Key   []byte `json:"key"`
	Value []byte `json:"value"`
}

type InmemoryStore struct {
	mu     sync.RWMutex
	values map[string][]byte

	// stop willl be closed when Close() is called
	stop     chan struct{}
	stopOnce sync.Once
}

func NewInmemoryStore() *InmemoryStore {
	return &InmemoryStore{
		values: make(map[string][]byte),
		stop:   make(chan struct{}),
	}
}

func (i *InmemoryStore) Close() error {
	i.stopOnce.Do(func() {
		close(i.stop)
	})

	return nil
}

func (i *InmemoryStore) Set(ctx context.Context, key []byte, value []byte) error {
	if !i.isRunning() {
		return ErrClosed
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	stored := make([]byte, len(value))
	copy(stored, value)

	i.mu.Lock()
	i.values[string(key)] = stored
	i.mu.Unlock()

	return nil
}

func (i *InmemoryStore) Get(ctx context.Context, key []byte) ([]byte, error) {
	if !i.isRunning() {
		return nil, ErrClosed
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	i.mu.RLock()
	value, ok := i.values[string(key)]
	i.mu.RUnlock()

	if !ok {
		return nil, ErrNotFound
	}

	out := make([]byte, len(value))
	copy(out, value)

	return out, nil
}

func (i *InmemoryStore) Delete(ctx context.Context, key []byte) error {
	if !i.isRunning() {
		return ErrClosed
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	i.mu.Lock()
	_, ok := i.values[string(key)]
	delete(i.values, string(key))
	i.mu.Unlock()

	if !ok {
		return ErrNotFound
	}

	return nil
}

// Keys returns every key in lexical order.
func (i *InmemoryStore) Keys(ctx context.Context) ([][]byte, error) {
	if !i.isRunning() {
		return nil, ErrClosed
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	i.mu.RLock()
	keys := make([]string, 0, len(i.values))
	for key := range i.values {
		keys = append(keys, key)
	}
	i.mu.RUnlock()

	sort.Strings(keys)

	out := make([][]byte, 0, len(keys))
	for _, key := range keys {
		out = append(out, []byte(key))
	}

	return out, nil
}

// Restore replaces the contents of the store with a snapshot produced by
// Backup. Keys and values are base64 encoded in the snapshot so binary data
// survives the trip through JSON.
func (i *InmemoryStore) Restore(snapshot []byte) error {
	if !i.isRunning() {
		return ErrClosed
	}

	if !gjson.ValidBytes(snapshot) {
		return fmt.Errorf("Failed to restore: snapshot is not valid JSON")
	}

	entries := gjson.GetBytes(snapshot, "entries")
	if !entries.IsArray() {
		return fmt.Errorf("Failed to restore: snapshot has no entries array")
	}

	values := make(map[string][]byte)

	var err error
	entries.ForEach(func(_, entry gjson.Result) bool {
		var key, value []byte

		key, err = base64.StdEncoding.DecodeString(entry.Get("key").String())
		if err != nil {
			err = fmt.Errorf("Failed to restore key: %w", err)
			return false
		}

		value, err = base64.StdEncoding.DecodeString(entry.Get("value").String())
		if err != nil {
			err = fmt.Errorf("Failed to restore value of '%s': %w", string(key), err)
			return false
		}

		values[string(key)] = value
		return true
	})

	if err != nil {
		return err
	}

	i.mu.Lock()
	i.values = values
	i.mu.Unlock()

	return nil
}

// Backup serialises the store into a JSON snapshot, entries sorted by key.
func (i *InmemoryStore) Backup() ([]byte, error) {
	i.mu.RLock()
	keys := make([]string, 0, len(i.values))
	for key := range i.values {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	entries := make([]snapshotEntry, 0, len(keys))
	for _, key := range keys {
		entries = append(entries, snapshotEntry{
			Key:   []byte(key),
			Value: i.values[key],
		})
	}

	snapshot, err := sjson.SetBytes([]byte(emptySnapshot), "entries", entries)
	i.mu.RUnlock()

	if err != nil {
		return nil, fmt.Errorf("Failed to backup: %w", err)
	}

	return snapshot, nil
}

// isRunning returns true if Close has not been called
func (i *InmemoryStore) isRunning() bool {
	select {
	case <-i.stop:
		return false

	default:
		return true
	}
}

var _ Store = (*InmemoryStore)(nil)
