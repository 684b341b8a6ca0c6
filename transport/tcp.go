package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"runtime"
	"strconv"
	"sync"
	"time"

	reuseport "github.com/kavu/go_reuseport"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/luma/cask/protocol"
)

const DefaultReadTimeout = 5 * time.Second

// TCP is the reference server. Every connection carries exactly one request:
// the server reads one frame, writes its reply and closes the connection.
type TCP struct {
	cancel     context.CancelFunc
	stopWaiter sync.WaitGroup

	addr      string
	reuseport bool

	numListeners int
	listeners    []*TCPListener

	handler *Handler
	conf    connConfig

	log *zap.Logger
}

type connConfig struct {
	readTimeout   time.Duration
	framedReplies bool
	limits        protocol.Limits
}

func NewTCP(options Options) *TCP {
	numListeners := options.NumListeners
	if numListeners < 1 {
		numListeners = runtime.NumCPU()
	}

	log := options.Log
	if log == nil {
		log = zap.NewNop()
	}

	readTimeout := options.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = DefaultReadTimeout
	}

	limits := options.Limits
	if limits.MaxArgSize == 0 {
		limits = protocol.DefaultLimits()
	}

	return &TCP{
		addr:         net.JoinHostPort(options.Host, strconv.Itoa(options.Port)),
		reuseport:    options.Reuseport,
		numListeners: numListeners,
		listeners:    make([]*TCPListener, 0, numListeners),
		handler:      NewHandler(options.Store, options.SnapshotPath, log.Named("handler")),
		conf: connConfig{
			readTimeout:   readTimeout,
			framedReplies: options.FramedReplies,
			limits:        limits,
		},
		log: log,
	}
}

// Start binds every listener before returning, so Addr is usable as soon as
// Start succeeds.
func (t *TCP) Start(parentCtx context.Context) error {
	ctx, cancel := context.WithCancel(parentCtx)
	t.cancel = cancel

	t.log.Info("Starting tcp listeners", zap.Int("count", t.numListeners))

	for i := 0; i < t.numListeners; i++ {
		if err := t.startListener(ctx); err != nil {
			return multierr.Append(err, t.Close())
		}
	}

	return nil
}

// Addr returns the address of the first listener.
func (t *TCP) Addr() net.Addr {
	if len(t.listeners) == 0 {
		return nil
	}

	return t.listeners[0].Addr()
}

func (t *TCP) Handler() *Handler {
	return t.handler
}

func (t *TCP) startListener(ctx context.Context) error {
	listener, err := t.listen()
	if err != nil {
		return fmt.Errorf("Failed to listen on %s: %w", t.addr, err)
	}

	tcpListener := NewTCPListener(
		ctx,
		listener,
		t.handler,
		t.conf,
		t.log.Named("listener").With(zap.Int("listener", len(t.listeners))),
	)

	t.listeners = append(t.listeners, tcpListener)
	t.stopWaiter.Add(1)

	go func() {
		defer t.stopWaiter.Done()

		if err := tcpListener.Serve(); err != nil {
			t.log.Error("Listener stopped accepting connections", zap.Error(err))
		}
	}()

	return nil
}

func (t *TCP) listen() (net.Listener, error) {
	if t.reuseport {
		return reuseport.Listen("tcp", t.addr)
	}

	return net.Listen("tcp", t.addr)
}

// Close immediately closes all listeners and in flight connections and waits
// for them to finish.
func (t *TCP) Close() error {
	t.log.Info("Stopping TCP server")

	if t.cancel != nil {
		t.cancel()
	}

	var err error
	for _, listener := range t.listeners {
		err = multierr.Append(err, listener.Close())
	}

	t.stopWaiter.Wait()
	t.log.Info("Listeners stopped")

	return err
}

type TCPListener struct {
	ctx context.Context

	listener  net.Listener
	closeOnce sync.Once
	closeErr  error

	handler *Handler
	conf    connConfig

	mu          sync.Mutex
	activeConns map[*TCPConn]struct{}
	connWaiter  sync.WaitGroup

	log *zap.Logger
}

func NewTCPListener(
	ctx context.Context,
	listener net.Listener,
	handler *Handler,
	conf connConfig,
	log *zap.Logger,
) *TCPListener {
	return &TCPListener{
		ctx:         ctx,
		listener:    listener,
		handler:     handler,
		conf:        conf,
		activeConns: make(map[*TCPConn]struct{}),
		log:         log,
	}
}

func (t *TCPListener) Addr() net.Addr {
	return t.listener.Addr()
}

// Close stops accepting and closes every active connection.
func (t *TCPListener) Close() error {
	err := t.closeListener()

	t.mu.Lock()
	for conn := range t.activeConns {
		err = multierr.Append(err, conn.Close())
	}
	t.mu.Unlock()

	return err
}

func (t *TCPListener) closeListener() error {
	t.closeOnce.Do(func() {
		t.closeErr = t.listener.Close()
	})

	return t.closeErr
}

// Serve accepts connections until the listener is closed or its context is
// cancelled, then waits for in flight connections to finish.
func (t *TCPListener) Serve() error {
	go func() {
		<-t.ctx.Done()

		if err := t.closeListener(); err != nil {
			t.log.Warn("TCP Listener did not close cleanly", zap.Error(err))
		}
	}()

	defer func() {
		t.log.Info("Waiting for connections to finish")
		t.connWaiter.Wait()
		t.log.Info("Listener stopped")
	}()

	for {
		conn, err := t.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || t.ctx.Err() != nil {
				// The listener was closed while we were waiting for new
				// connections, that's fine.
				return nil
			}

			return err
		}

		tcpConn := NewTCPConn(t.ctx, conn, t.handler, t.conf, t.log.Named("conn"))
		t.addConn(tcpConn)
		t.connWaiter.Add(1)

		go func() {
			defer t.connWaiter.Done()
			defer t.removeConn(tcpConn)

			tcpConn.Serve()
		}()
	}
}

func (t *TCPListener) addConn(conn *TCPConn) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.activeConns[conn] = struct{}{}
}

func (t *TCPListener) removeConn(conn *TCPConn) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.activeConns, conn)
}

type TCPConn struct {
	ctx context.Context

	conn      net.Conn
	closeOnce sync.Once
	closeErr  error

	handler *Handler
	conf    connConfig

	log *zap.Logger
}

func NewTCPConn(
	ctx context.Context,
	conn net.Conn,
	handler *Handler,
	conf connConfig,
	log *zap.Logger,
) *TCPConn {
	return &TCPConn{
		ctx:     ctx,
		conn:    conn,
		handler: handler,
		conf:    conf,
		log:     log.With(zap.String("remote", conn.RemoteAddr().String())),
	}
}

func (t *TCPConn) Close() error {
	t.closeOnce.Do(func() {
		t.closeErr = t.conn.Close()
	})

	return t.closeErr
}

// Serve handles the connection's single request and closes it.
func (t *TCPConn) Serve() {
	defer t.Close()

	if err := t.conn.SetReadDeadline(time.Now().Add(t.conf.readTimeout)); err != nil {
		t.log.Warn("Failed to set read deadline", zap.Error(err))
		return
	}

	frame, err := protocol.ReadFrame(t.conn, t.conf.limits)
	if err == io.EOF {
		t.log.Debug("Client closed the connection without sending a request")
		return
	}

	if err != nil {
		t.log.Warn("Failed to read client request", zap.Error(err))

		if errors.Is(err, protocol.ErrMalformedFrame) || errors.Is(err, protocol.ErrUnknownCommand) {
			t.writeReply(errorReply(err))
		}

		return
	}

	t.log.Debug("Dispatching request",
		zap.String("command", string(frame.Command)),
		zap.Int("args", len(frame.Args)))

	t.writeReply(t.handler.Dispatch(t.ctx, frame))
}

func (t *TCPConn) writeReply(reply []byte) {
	if err := t.conn.SetWriteDeadline(time.Now().Add(t.conf.readTimeout)); err != nil {
		t.log.Warn("Failed to set write deadline", zap.Error(err))
		return
	}

	var err error
	if t.conf.framedReplies {
		err = protocol.WriteBulk(t.conn, reply)
	} else {
		err = protocol.WriteValue(t.conn, reply)
	}

	if err != nil {
		t.log.Warn("Failed to write reply", zap.Error(err))
	}
}
