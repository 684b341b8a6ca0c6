package client

import (
	"errors"
	"fmt"
)

// Error kinds surfaced by an Exchange. Match them with errors.Is; the
// underlying cause is available through errors.Unwrap / errors.As.
var (
	ErrConnection = errors.New("connection error")
	ErrWrite      = errors.New("write error")
	ErrRead       = errors.New("read error")
	ErrTimeout    = errors.New("timeout error")
)

// Error describes a failed exchange.
type Error struct {
	// Kind is one of ErrConnection, ErrWrite, ErrRead or ErrTimeout
	Kind error

	// Op is the exchange step that failed: dial, write or read
	Op string

	Addr string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s %s: %v", e.Kind, e.Op, e.Addr, e.Err)
}

func (e *Error) Is(target error) bool {
	return target == e.Kind
}

func (e *Error) Unwrap() error {
	return e.Err
}
