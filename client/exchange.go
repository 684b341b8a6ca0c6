package client

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/luma/cask/protocol"
)

// Config describes where and how an Exchange talks to a server. It is passed
// in explicitly; the client never reads the environment itself.
type Config struct {
	// Host of the server to connect to
	Host string

	// Port of the server to connect to
	Port int

	// Timeout bounds a whole exchange, from dialing to the last byte of the
	// reply. Zero leaves it to the caller's context.
	Timeout time.Duration

	// DialTimeout bounds connection establishment alone
	DialTimeout time.Duration

	// Dial opens the connection for each exchange. Defaults to a net.Dialer
	// bounded by DialTimeout.
	Dial func(ctx context.Context, network, addr string) (net.Conn, error)

	// ResponseReader decides when the reply is complete. Defaults to
	// UntilClose with DefaultReadBudget.
	ResponseReader ResponseReader
}

func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Response is the raw reply to one request. It belongs to the caller.
type Response []byte

// Exchange performs one request per call over its own connection:
// connect, write the frame, read the reply, close. An Exchange holds no
// per-request state and is safe for concurrent use.
type Exchange struct {
	config Config
	dial   func(ctx context.Context, network, addr string) (net.Conn, error)
	reader ResponseReader

	log *zap.Logger
}

func NewExchange(config Config, log *zap.Logger) *Exchange {
	if log == nil {
		log = zap.NewNop()
	}

	reader := config.ResponseReader
	if reader == nil {
		reader = UntilClose{Limit: DefaultReadBudget}
	}

	dial := config.Dial
	if dial == nil {
		dial = (&net.Dialer{Timeout: config.DialTimeout}).DialContext
	}

	return &Exchange{
		config: config,
		dial:   dial,
		reader: reader,
		log:    log,
	}
}

func (e *Exchange) Config() Config {
	return e.config
}

// Do encodes cmd and args and performs one exchange with the server.
//
// Encoding errors (protocol.ErrUnknownCommand, protocol.ErrInvalidArity) are
// returned before any connection is opened. Transport failures are returned
// as *Error and match ErrConnection, ErrWrite, ErrRead or ErrTimeout with
// errors.Is. Cancelling ctx closes the connection immediately.
func (e *Exchange) Do(ctx context.Context, cmd protocol.Command, args ...[]byte) (Response, error) {
	frame, err := protocol.Encode(cmd, args...)
	if err != nil {
		return nil, err
	}

	log := e.log.With(
		zap.String("command", string(cmd)),
		zap.String("addr", e.config.Addr()))

	start := time.Now()

	resp, err := e.exchange(ctx, frame)
	if err != nil {
		log.Warn("Exchange failed", zap.Error(err))
		return nil, err
	}

	log.Debug("Exchange completed",
		zap.Int("requestBytes", len(frame)),
		zap.Int("responseBytes", len(resp)),
		zap.Duration("took", time.Since(start)))

	return resp, nil
}

func (e *Exchange) exchange(ctx context.Context, frame []byte) (Response, error) {
	addr := e.config.Addr()

	if e.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.config.Timeout)
		defer cancel()
	}

	conn, err := e.dial(ctx, "tcp", addr)
	if err != nil {
		return nil, e.fail(ctx, ErrConnection, "dial", err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			return nil, e.fail(ctx, ErrConnection, "dial", err)
		}
	}

	// Close the connection as soon as ctx is done so the peer sees the
	// connection go away rather than a half open stream.
	stop := make(chan struct{})
	defer close(stop)

	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stop:
		}
	}()

	n, err := conn.Write(frame)
	if err == nil && n < len(frame) {
		err = io.ErrShortWrite
	}
	if err != nil {
		return nil, e.fail(ctx, ErrWrite, "write", err)
	}

	resp, err := e.reader.ReadResponse(conn)
	if err != nil {
		return nil, e.fail(ctx, ErrRead, "read", err)
	}

	return resp, nil
}

// fail classifies err. A context that is done takes precedence over whatever
// error the closed connection produced.
func (e *Exchange) fail(ctx context.Context, kind error, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		err = ctxErr
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			kind = ErrTimeout
		}
	} else if isTimeout(err) {
		kind = ErrTimeout
	}

	return &Error{Kind: kind, Op: op, Addr: e.config.Addr(), Err: err}
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}

	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
