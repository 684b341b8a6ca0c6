package storage

import (
	"context"
	"errors"
)

var (
	ErrNotFound = errors.New("key not found")
	ErrClosed   = errors.New("store is closed")
)

type Store interface {
	Set(ctx context.Context, key []byte, value []byte) error
	Get(ctx context.Context, key []byte) ([]byte, error)
	Delete(ctx context.Context, key []byte) error
	Keys(ctx context.Context) ([][]byte, error)

	Restore(snapshot []byte) error
	Backup() ([]byte, error)

	Close() error
}
