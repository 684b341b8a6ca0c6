package transport

import (
	"time"

	"go.uber.org/zap"

	"github.com/luma/cask/protocol"
	"github.com/luma/cask/storage"
)

type Options struct {
	// Host to listen on
	Host string

	// Port to listen on, 0 picks a free port
	Port int

	// Reuseport controls setting SO_REUSEPORT
	Reuseport bool

	NumListeners int

	// ReadTimeout bounds how long a client may take to send its request
	ReadTimeout time.Duration

	// FramedReplies length prefixes every reply instead of relying on the
	// connection being closed to mark its end
	FramedReplies bool

	// SnapshotPath is where merge writes a snapshot of the store. Merge is a
	// no-op when it's empty.
	SnapshotPath string

	Limits protocol.Limits

	Store storage.Store

	Log *zap.Logger
}
