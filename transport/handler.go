package transport

import (
	"bytes"
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/luma/cask/protocol"
	"github.com/luma/cask/storage"
)

const dispatchTimeout = 3 * time.Second

// Handler executes decoded frames against a store and renders the reply.
type Handler struct {
	store        storage.Store
	snapshotPath string

	log *zap.Logger
}

func NewHandler(store storage.Store, snapshotPath string, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}

	return &Handler{
		store:        store,
		snapshotPath: snapshotPath,
		log:          log,
	}
}

// Dispatch runs frame and returns the reply bytes. Failures are rendered as
// ERR replies rather than returned, the client is the one that needs to know.
func (h *Handler) Dispatch(parentCtx context.Context, frame protocol.Frame) []byte {
	ctx, cancel := context.WithTimeout(parentCtx, dispatchTimeout)
	defer cancel()

	var buf bytes.Buffer

	switch frame.Command {
	case protocol.SET:
		if err := h.store.Set(ctx, frame.Args[0], frame.Args[1]); err != nil {
			h.log.Warn("Failed to set", zap.ByteString("key", frame.Args[0]), zap.Error(err))
			return errorReply(err)
		}

		protocol.WriteOk(&buf)

	case protocol.GET:
		value, err := h.store.Get(ctx, frame.Args[0])
		if err != nil {
			if !errors.Is(err, storage.ErrNotFound) {
				h.log.Warn("Failed to get", zap.ByteString("key", frame.Args[0]), zap.Error(err))
			}
			return errorReply(err)
		}

		protocol.WriteValue(&buf, value)

	case protocol.DELETE:
		if err := h.store.Delete(ctx, frame.Args[0]); err != nil {
			if !errors.Is(err, storage.ErrNotFound) {
				h.log.Warn("Failed to delete", zap.ByteString("key", frame.Args[0]), zap.Error(err))
			}
			return errorReply(err)
		}

		protocol.WriteOk(&buf)

	case protocol.MERGE:
		if h.snapshotPath != "" {
			if err := storage.SaveSnapshot(h.store, h.snapshotPath); err != nil {
				h.log.Error("Failed to write snapshot", zap.String("path", h.snapshotPath), zap.Error(err))
				return errorReply(err)
			}

			h.log.Info("Wrote snapshot", zap.String("path", h.snapshotPath))
		}

		protocol.WriteOk(&buf)

	default:
		return errorReply(protocol.ErrUnknownCommand)
	}

	return buf.Bytes()
}

func errorReply(err error) []byte {
	var buf bytes.Buffer
	protocol.WriteError(&buf, replyMessage(err))
	return buf.Bytes()
}

// replyMessage keeps the messages clients match on stable, whatever the store
// wrapped around them.
func replyMessage(err error) string {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return protocol.ErrNotFound.Error()
	case errors.Is(err, protocol.ErrUnknownCommand):
		return "unknown command"
	case errors.Is(err, protocol.ErrMalformedFrame):
		return "malformed frame"
	default:
		return err.Error()
	}
}
