package client

import (
	"errors"
	"io"

	"github.com/luma/cask/protocol"
)

// DefaultReadBudget bounds how many reply bytes UntilClose will accept.
const DefaultReadBudget = 1024 * 1024

// ResponseReader decides when a reply is complete. The protocol has no reply
// terminator, so this is left up to whoever knows what the server does.
type ResponseReader interface {
	ReadResponse(r io.Reader) ([]byte, error)
}

// UntilClose reads until the peer closes the connection, or until Limit
// bytes have been read. This is what the reference server expects.
type UntilClose struct {
	Limit int64
}

func (u UntilClose) ReadResponse(r io.Reader) ([]byte, error) {
	limit := u.Limit
	if limit <= 0 {
		limit = DefaultReadBudget
	}

	return io.ReadAll(io.LimitReader(r, limit))
}

// DefaultFixedSize is the read size FixedSize falls back to without a Size.
const DefaultFixedSize = 4096

// FixedSize performs a single read of at most Size bytes and returns whatever
// arrived.
type FixedSize struct {
	Size int
}

func (f FixedSize) ReadResponse(r io.Reader) ([]byte, error) {
	size := f.Size
	if size <= 0 {
		size = DefaultFixedSize
	}

	buf := make([]byte, size)

	n, err := r.Read(buf)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}

	return buf[:n], nil
}

// Framed reads a length prefixed reply as written by protocol.WriteBulk.
type Framed struct {
	Limits protocol.Limits
}

func (f Framed) ReadResponse(r io.Reader) ([]byte, error) {
	limits := f.Limits
	if limits.MaxArgSize == 0 {
		limits = protocol.DefaultLimits()
	}

	return protocol.ReadBulk(r, limits)
}

var (
	_ ResponseReader = UntilClose{}
	_ ResponseReader = FixedSize{}
	_ ResponseReader = Framed{}
)
