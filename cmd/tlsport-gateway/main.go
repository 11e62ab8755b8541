// Command tlsport-gateway runs a standalone TLS record pipeline endpoint:
// it accepts (or dials) a connection over TCP or, with --quic, QUIC,
// negotiates a hybrid ML-KEM-1024/X25519 shared secret, and drives the
// resulting traffic through a tlsport.Port that echoes every application
// message back to its sender. It exists to exercise pkg/tlsport end to
// end against a real socket, outside of the package's own fake-socket
// tests.
package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/shadowmesh/shadowmesh/pkg/config"
	"github.com/shadowmesh/shadowmesh/pkg/logging"
	"github.com/shadowmesh/shadowmesh/pkg/persistence"
	"github.com/shadowmesh/shadowmesh/pkg/tlsport"
	"github.com/shadowmesh/shadowmesh/pkg/tlsport/audit"
	"github.com/shadowmesh/shadowmesh/pkg/tlsport/bufpool"
	"github.com/shadowmesh/shadowmesh/pkg/tlsport/metrics"
	"github.com/shadowmesh/shadowmesh/pkg/tlsport/pool"
	"github.com/shadowmesh/shadowmesh/pkg/tlsport/quicsocket"
	"github.com/shadowmesh/shadowmesh/pkg/tlsport/sslcodec"
	"github.com/shadowmesh/shadowmesh/pkg/tlsport/tcpsocket"
	"github.com/shadowmesh/shadowmesh/pkg/transport"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Fatal(err)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "tlsport-gateway",
		Short: "Standalone TLS record pipeline endpoint",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config; supplies tls_port tuning, logging, and, if present, database/redis for audit and metrics")

	root.AddCommand(newServeCmd(&configPath))
	root.AddCommand(newDialCmd(&configPath))
	root.AddCommand(newConfigInitCmd())
	return root
}

// newConfigInitCmd writes a default config file an operator can edit in
// place to turn on the audit/metrics backends.
func newConfigInitCmd() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "config-init",
		Short: "Write a default config file to edit and pass to --config",
		RunE: func(cmd *cobra.Command, args []string) error {
			return config.WriteConfigFile(config.GenerateDefaultConfig(), out)
		},
	}
	cmd.Flags().StringVar(&out, "out", "tlsport-gateway.yaml", "path to write the generated config to")
	return cmd
}

// gatewayDeps holds the optional observability backends wired from config.
type gatewayDeps struct {
	cfg       tlsport.Config
	crypto    *pool.Pool
	logger    *logging.Logger
	auditSink *audit.Sink
	reporter  *metrics.Reporter
}

func parseLogLevel(level string) logging.LogLevel {
	switch level {
	case "debug":
		return logging.DEBUG
	case "warn":
		return logging.WARN
	case "error":
		return logging.ERROR
	default:
		return logging.INFO
	}
}

func loadDeps(configPath string) (*gatewayDeps, func(), error) {
	deps := &gatewayDeps{cfg: tlsport.DefaultConfig()}

	if configPath == "" {
		logger, err := logging.NewLogger("tlsport-gateway", logging.INFO, "")
		if err != nil {
			return nil, func() {}, fmt.Errorf("init logger: %w", err)
		}
		deps.logger = logger
		deps.crypto = pool.New(4)
		cleanup := func() {
			deps.crypto.Close()
			deps.logger.Close()
		}
		return deps, cleanup, nil
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, func() {}, fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.NewLogger("tlsport-gateway", parseLogLevel(cfg.Logging.Level), cfg.Logging.OutputFile)
	if err != nil {
		return nil, func() {}, fmt.Errorf("init logger: %w", err)
	}
	logger.SetMaxFileSize(int64(cfg.Logging.MaxSizeMB) * 1024 * 1024)
	logger.SetMaxBackups(cfg.Logging.MaxBackups)
	deps.logger = logger

	deps.cfg.AppBufferSize = cfg.TLSPort.AppBufferSizeKB * 1024
	deps.crypto = pool.New(cfg.TLSPort.CryptoWorkers)

	closers := []func(){deps.crypto.Close, func() { logger.Close() }}

	if cfg.Database.Host != "" {
		store, err := persistence.NewPostgresStore(persistence.Config{
			Host: cfg.Database.Host, Port: cfg.Database.Port, User: cfg.Database.User,
			Password: cfg.Database.Password, DBName: cfg.Database.DBName, SSLMode: cfg.Database.SSLMode,
		})
		if err != nil {
			logger.Warn("audit sink unavailable", logging.Fields{"error": err.Error()})
		} else {
			sink, err := audit.NewSink(store)
			if err != nil {
				logger.Warn("audit sink schema init failed", logging.Fields{"error": err.Error()})
			} else {
				deps.auditSink = sink
			}
			closers = append(closers, func() { store.Close() })
		}
	}

	if cfg.Redis.Host != "" {
		cache, err := persistence.NewRedisCache(persistence.RedisCacheConfig{
			Host: cfg.Redis.Host, Port: cfg.Redis.Port, Password: cfg.Redis.Password, DB: cfg.Redis.DB, TTL: cfg.Redis.TTL,
		})
		if err != nil {
			logger.Warn("metrics reporter unavailable", logging.Fields{"error": err.Error()})
		} else {
			deps.reporter = metrics.NewReporter(cache.Client(), cfg.Redis.TTL)
			closers = append(closers, func() { cache.Close() })
		}
	}

	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	return deps, cleanup, nil
}

func newServeCmd(configPath *string) *cobra.Command {
	var listen string
	var useQUIC bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Accept connections and echo every application message back",
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, cleanup, err := loadDeps(*configPath)
			if err != nil {
				return err
			}
			defer cleanup()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if useQUIC {
				return serveQUIC(ctx, listen, deps)
			}
			return serveTCP(ctx, listen, deps)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", ":8843", "address to accept connections on")
	cmd.Flags().BoolVar(&useQUIC, "quic", false, "accept connections over QUIC instead of TCP")
	return cmd
}

func serveTCP(ctx context.Context, listen string, deps *gatewayDeps) error {
	ln, err := net.Listen("tcp", listen)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", listen, err)
	}
	defer ln.Close()
	deps.logger.Info("listening", logging.Fields{"addr": listen, "transport": "tcp"})

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			deps.logger.Error("accept error", logging.Fields{"error": err.Error()})
			continue
		}
		go serveConn(ctx, conn, deps)
	}
}

func serveQUIC(ctx context.Context, listen string, deps *gatewayDeps) error {
	tlsConfig, err := transport.GenerateEphemeralServerTLSConfig()
	if err != nil {
		return fmt.Errorf("generate quic tls config: %w", err)
	}

	qt, err := transport.NewQUICTransport(listen, tlsConfig)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", listen, err)
	}
	defer qt.Close()
	deps.logger.Info("listening", logging.Fields{"addr": listen, "transport": "quic"})

	go func() {
		<-ctx.Done()
		qt.Close()
	}()

	for {
		qConn, err := qt.AcceptConnection(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			deps.logger.Error("accept error", logging.Fields{"error": err.Error()})
			continue
		}
		go serveQUICConn(ctx, qConn, deps)
	}
}

func serveConn(ctx context.Context, conn net.Conn, deps *gatewayDeps) {
	defer conn.Close()

	connID := connectionID(conn)
	txKey, rxKey, err := serverHandshake(conn)
	if err != nil {
		deps.logger.Error("handshake failed", logging.Fields{"remote": conn.RemoteAddr().String(), "error": err.Error()})
		return
	}
	acceptedConn(ctx, tcpsocket.New(conn), connID, txKey, rxKey, deps)
}

func serveQUICConn(ctx context.Context, qConn *transport.QUICConnection, deps *gatewayDeps) {
	defer qConn.Close()

	connID := fmt.Sprintf("quic:%p", qConn)
	txKey, rxKey, err := serverHandshake(qConn.Stream())
	if err != nil {
		deps.logger.Error("handshake failed", logging.Fields{"connection_id": connID, "error": err.Error()})
		return
	}
	acceptedConn(ctx, quicsocket.New(qConn.Stream()), connID, txKey, rxKey, deps)
}

// acceptedConn runs the serve side's echo loop over an already-handshaken
// socket, whichever transport produced it.
func acceptedConn(ctx context.Context, socket tlsport.Socket, connID string, txKey, rxKey [32]byte, deps *gatewayDeps) {
	deps.logger.Info("connection established", logging.Fields{"connection_id": connID})

	if deps.auditSink != nil {
		if err := deps.auditSink.RecordOpened(connID); err != nil {
			deps.logger.Warn("audit record failed", logging.Fields{"connection_id": connID, "error": err.Error()})
		}
	}

	runPort(ctx, socket, connID, txKey, rxKey, deps, echoHandler)

	if deps.auditSink != nil {
		if err := deps.auditSink.RecordUnregistered(connID); err != nil {
			deps.logger.Warn("audit record failed", logging.Fields{"connection_id": connID, "error": err.Error()})
		}
	}
	if deps.reporter != nil {
		if err := deps.reporter.Clear(connID); err != nil {
			deps.logger.Warn("metrics clear failed", logging.Fields{"connection_id": connID, "error": err.Error()})
		}
	}
}

func newDialCmd(configPath *string) *cobra.Command {
	var addr string
	var useQUIC bool

	cmd := &cobra.Command{
		Use:   "dial",
		Short: "Connect to a tlsport-gateway serve endpoint and send stdin lines",
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, cleanup, err := loadDeps(*configPath)
			if err != nil {
				return err
			}
			defer cleanup()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if useQUIC {
				return dialQUIC(ctx, addr, deps)
			}
			return dialTCP(ctx, addr, deps)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8843", "address of a running tlsport-gateway serve endpoint")
	cmd.Flags().BoolVar(&useQUIC, "quic", false, "dial over QUIC instead of TCP")
	return cmd
}

func dialTCP(ctx context.Context, addr string, deps *gatewayDeps) error {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()

	connID := connectionID(conn)
	txKey, rxKey, err := clientHandshake(conn)
	if err != nil {
		return fmt.Errorf("handshake with %s failed: %w", addr, err)
	}
	dialedConn(ctx, tcpsocket.New(conn), connID, txKey, rxKey, deps)
	return nil
}

func dialQUIC(ctx context.Context, addr string, deps *gatewayDeps) error {
	qt, err := transport.NewQUICTransport(":0", transport.ClientTLSConfig())
	if err != nil {
		return fmt.Errorf("init quic transport: %w", err)
	}
	defer qt.Close()

	qConn, err := qt.DialConnection(ctx, addr, addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	defer qConn.Close()

	txKey, rxKey, err := clientHandshake(qConn.Stream())
	if err != nil {
		return fmt.Errorf("handshake with %s failed: %w", addr, err)
	}
	dialedConn(ctx, quicsocket.New(qConn.Stream()), fmt.Sprintf("quic:%s", addr), txKey, rxKey, deps)
	return nil
}

// dialedConn runs the dial side's stdin-to-peer loop over an
// already-handshaken socket, whichever transport produced it.
func dialedConn(ctx context.Context, socket tlsport.Socket, connID string, txKey, rxKey [32]byte, deps *gatewayDeps) {
	deps.logger.Info("connection established", logging.Fields{"connection_id": connID})

	box := newMailbox()
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			box.Push([]byte(scanner.Text()))
		}
	}()

	runPortWithQueue(ctx, socket, connID, txKey, rxKey, deps, box, func(message []byte, _ *tlsport.Port) error {
		fmt.Printf("< %s\n", message)
		return nil
	})
}

// echoHandler reflects every received application message back to its
// sender via the port's own outbound queue.
func echoHandler(box *mailbox) tlsport.MessageHandlerFunc {
	return func(message []byte, _ *tlsport.Port) error {
		echoed := make([]byte, len(message))
		copy(echoed, message)
		box.Push(echoed)
		return nil
	}
}

// runPort wires a fresh mailbox as both the outbound queue and the
// application handler's echo target.
func runPort(ctx context.Context, socket tlsport.Socket, connID string, txKey, rxKey [32]byte, deps *gatewayDeps, handlerFor func(*mailbox) tlsport.MessageHandlerFunc) {
	box := newMailbox()
	runPortWithQueue(ctx, socket, connID, txKey, rxKey, deps, box, handlerFor(box))
}

func runPortWithQueue(ctx context.Context, socket tlsport.Socket, connID string, txKey, rxKey [32]byte, deps *gatewayDeps, queue *mailbox, handler tlsport.MessageHandlerFunc) {
	bufPool := bufpool.New(deps.cfg.AppBufferSize)
	txCodec, err := sslcodec.NewCodec(txKey, bufPool)
	if err != nil {
		deps.logger.Error("tx codec init failed", logging.Fields{"connection_id": connID, "error": err.Error()})
		return
	}
	rxCodec, err := sslcodec.NewCodec(rxKey, bufPool)
	if err != nil {
		deps.logger.Error("rx codec init failed", logging.Fields{"connection_id": connID, "error": err.Error()})
		return
	}

	reactor := newLoopReactor()
	port := tlsport.New(deps.cfg, txCodec, rxCodec, socket, handler, queue, reactor, deps.crypto)

	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	onError := func(id string, err error) {
		if deps.auditSink != nil {
			if auditErr := deps.auditSink.RecordError(id, err); auditErr != nil {
				deps.logger.Warn("audit error-record failed", logging.Fields{"connection_id": id, "error": auditErr.Error()})
			}
		}
		if deps.reporter != nil {
			if repErr := deps.reporter.IncrementPipelineError(); repErr != nil {
				deps.logger.Warn("metrics error-increment failed", logging.Fields{"connection_id": id, "error": repErr.Error()})
			}
		}
	}

	if deps.reporter != nil {
		go reportLoop(connCtx, connID, port, deps.reporter, deps.logger)
	}

	reactor.run(connCtx, connID, port, deps.logger, onError)
}
