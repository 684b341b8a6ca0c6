package cmd

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/luma/cask/storage"
	"github.com/luma/cask/transport"
)

var (
	// The host to listen on
	listenHost string

	// The port to listen for http requests on
	httpPort int

	// Where merge and shutdown write snapshots, and start up restores from
	snapshotPath string

	numListeners int

	useReuseport bool
)

func init() {
	flags := ServeCmd.Flags()

	flags.StringVarP(&listenHost, "listen", "a", "0.0.0.0", "The host to listen on")
	flags.IntVar(&httpPort, "http-port", 6970, "The port to listen to HTTP requests on")
	flags.StringVar(&snapshotPath, "snapshot", "", "Snapshot file to restore from and merge into")
	flags.IntVar(&numListeners, "listeners", 0, "Number of TCP listeners, defaults to the number of CPUs")
	flags.BoolVar(&useReuseport, "reuseport", true, "Set SO_REUSEPORT on the TCP listeners")
}

var ServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start up the reference Bitcask server",
	Long: `Start up the reference Bitcask server

Keys are held in memory. When a snapshot path is configured the store is
restored from it on start, and written back to it on merge and on shutdown.

Usage
	cask serve --port 6969 --snapshot /var/lib/cask/snapshot.json

`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		ctx, signalStop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer signalStop()

		if cmd.Flags().Changed("http-port") {
			conf.HTTPPort = httpPort
		}
		if cmd.Flags().Changed("snapshot") {
			conf.SnapshotPath = snapshotPath
		}

		fileLimit, err := setFileLimit()
		if err != nil {
			return err
		}

		log.Info("Set file limit", zap.Uint64("fileLimit", fileLimit))

		store := storage.NewInmemoryStore()
		defer store.Close()

		if conf.SnapshotPath != "" {
			restored, err := storage.LoadSnapshot(store, conf.SnapshotPath)
			if err != nil {
				return err
			}

			log.Info("Loaded snapshot",
				zap.String("path", conf.SnapshotPath),
				zap.Bool("restored", restored))
		}

		router := setupRouter(conf.DebugHTTP, store, log)

		s := &http.Server{
			Addr:    net.JoinHostPort(listenHost, strconv.Itoa(conf.HTTPPort)),
			Handler: router,
		}

		// Initializing the server in a goroutine so that
		// it won't block the graceful shutdown handling below
		go func() {
			if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("Http server errored", zap.Error(err))
			}
		}()

		tcp := transport.NewTCP(transport.Options{
			Host:          listenHost,
			Port:          conf.Port,
			Reuseport:     useReuseport,
			NumListeners:  numListeners,
			FramedReplies: conf.FramedReplies,
			SnapshotPath:  conf.SnapshotPath,
			Store:         store,
			Log:           log.Named("transport"),
		})

		if err := tcp.Start(ctx); err != nil {
			return err
		}

		log.Info("Listening",
			zap.String("host", listenHost),
			zap.String("addr", tcp.Addr().String()),
			zap.Int("httpPort", conf.HTTPPort),
			zap.Bool("framedReplies", conf.FramedReplies))

		// Listen for the interrupt signal.
		<-ctx.Done()

		// Restore default behavior on the interrupt signal and notify user of shutdown.
		signalStop()
		log.Info("Shutting down gracefully, press Ctrl+C again to force")

		// The context is used to inform the server it has 5 seconds to finish
		// the request it is currently handling
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.SetKeepAlivesEnabled(false)

		if err := s.Shutdown(shutdownCtx); err != nil {
			log.Error("Http server forced to shutdown", zap.Error(err))
		}

		if err := tcp.Close(); err != nil {
			log.Error("TCP server forced to shutdown", zap.Error(err))
		}

		if conf.SnapshotPath != "" {
			if err := storage.SaveSnapshot(store, conf.SnapshotPath); err != nil {
				log.Error("Failed to write snapshot on shutdown", zap.Error(err))
				return err
			}
		}

		log.Info("Exiting")
		return nil
	},
}

func setupRouter(debugHTTP bool, store storage.Store, log *zap.Logger) *gin.Engine {
	gin.DisableConsoleColor()
	if !debugHTTP {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Logs all requests, like a combined access and error log, in UTC
	r.Use(ginzap.GinzapWithConfig(log, &ginzap.Config{
		TimeFormat: time.RFC3339,
		UTC:        true,
		SkipPaths:  []string{"/ping"},
	}))

	// Logs all panic to error log
	//   - stack means whether output the stack info.
	r.Use(ginzap.RecoveryWithZap(log, true))

	r.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})

	r.GET("/keys/:key", func(c *gin.Context) {
		value, err := store.Get(c.Request.Context(), []byte(c.Param("key")))
		if errors.Is(err, storage.ErrNotFound) {
			c.String(http.StatusNotFound, err.Error())
			return
		}
		if err != nil {
			c.String(http.StatusInternalServerError, err.Error())
			return
		}

		c.Data(http.StatusOK, "application/octet-stream", value)
	})

	r.GET("/snapshot", func(c *gin.Context) {
		snapshot, err := store.Backup()
		if err != nil {
			c.String(http.StatusInternalServerError, err.Error())
			return
		}

		c.Data(http.StatusOK, "application/json", snapshot)
	})

	return r
}

func setFileLimit() (uint64, error) {
	var rLimit syscall.Rlimit

	if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &rLimit); err != nil {
		return 0, err
	}

	rLimit.Cur = rLimit.Max
	if err := syscall.Setrlimit(syscall.RLIMIT_NOFILE, &rLimit); err != nil {
		return 0, err
	}

	return rLimit.Cur, nil
}
