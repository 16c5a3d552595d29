package server

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"sync/atomic"
	"syscall"
	"time"

	"go.uber.org/zap"

	"dotchat/internal/storage"
)

// Server accepts TLS sessions and hands each one to a connection
// worker managed by the shared worker set.
type Server struct {
	logger *zap.SugaredLogger
	store  *storage.Store
	cfg    config
	mgr    *manager

	shutdown atomic.Bool
}

// New returns a Server wired to the given store. A TLS configuration
// must be supplied through WithTLSConfig.
func New(logger *zap.SugaredLogger, store *storage.Store, opts ...Option) (*Server, error) {
	cfg := config{
		host:       "0.0.0.0",
		port:       DefaultPort,
		reapEvery:  defaultReapInterval,
		acceptPoll: defaultAcceptPoll,
	}
	for _, opt := range opts {
		opt.apply(&cfg)
	}
	if cfg.tlsConf == nil {
		return nil, errors.New("server: TLS configuration is required")
	}

	srv := &Server{
		logger: logger,
		store:  store,
		cfg:    cfg,
	}
	srv.mgr = newManager(logger, newHandler(logger, store), cfg.reapEvery)
	return srv, nil
}

// Shutdown asks the accept loop to drain and exit. Safe to call from
// any goroutine; the signal handler uses it.
func (s *Server) Shutdown() {
	s.shutdown.Store(true)
}

// Start runs the accept loop until SIGINT/SIGTERM or Shutdown. On exit
// every worker is asked to stop and joined, the reaper is stopped and
// the store is closed.
func (s *Server) Start() error {
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigc)
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case sig := <-sigc:
			s.logger.Infof("Caught %v, shutting down", sig)
			s.Shutdown()
		case <-done:
		}
	}()

	addr := net.JoinHostPort(s.cfg.host, strconv.FormatUint(uint64(s.cfg.port), 10))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	tcpLn := ln.(*net.TCPListener)

	s.logger.Infof("Listening for TLS connections on %s", addr)

	for !s.shutdown.Load() {
		if err := tcpLn.SetDeadline(time.Now().Add(s.cfg.acceptPoll)); err != nil {
			ln.Close()
			return err
		}
		conn, err := tcpLn.Accept()
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			s.logger.Errorf("Accept failed: %v", err)
			continue
		}

		s.logger.Infof("Accepted connection from %s", conn.RemoteAddr())
		s.mgr.enlist(tls.Server(conn, s.cfg.tlsConf))
	}

	ln.Close()

	s.logger.Info("Draining connection workers")
	s.mgr.stopAll()
	s.mgr.close()
	s.logger.Info("All workers stopped")

	s.logger.Info("Closing store")
	s.store.Close()
	s.logger.Info("Store is closed")

	return nil
}
