// Package testserver provides the end-to-end test harness used throughout
// this repository and available to downstream integration tests: it binds
// the simulator to a free port with a fresh temporary directory and a
// random token; Close stops the server and closes its store, and a
// temporary directory it created is left on disk. It mirrors
// the original Rust crate's importable `with_server` test helper rather
// than being copy-pasted per test file.
package testserver

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/exowarexyz/simulator/internal/adb"
	"github.com/exowarexyz/simulator/internal/httpserver"
	"github.com/exowarexyz/simulator/internal/kvstore"
	"github.com/exowarexyz/simulator/internal/pubsub"
	"github.com/exowarexyz/simulator/internal/store"
	"github.com/exowarexyz/simulator/internal/stream"
	"github.com/exowarexyz/simulator/internal/visibility"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Options configures a test server instance.
type Options struct {
	Directory         string
	Bounds            visibility.Bounds
	Token             string
	AllowPublicAccess bool
}

// Server is a running simulator instance bound to a free local port.
type Server struct {
	Addr  string
	Token string

	kv       *kvstore.Store
	listener net.Listener
	httpSrv  *http.Server
	done     chan struct{}
}

// Start binds a new simulator server on a free port using a fresh
// temporary directory (if opts.Directory is empty) and a random token (if
// opts.Token is empty), and begins serving in the background.
func Start(opts Options) (*Server, error) {
	if opts.Directory == "" {
		dir, err := os.MkdirTemp("", "simulator-test-*")
		if err != nil {
			return nil, fmt.Errorf("testserver: create temp directory: %w", err)
		}
		opts.Directory = dir
	}
	if opts.Token == "" {
		opts.Token = uuid.NewString()
	}

	log := zap.NewNop().Sugar()

	kv, err := kvstore.Open(opts.Directory, log)
	if err != nil {
		return nil, fmt.Errorf("testserver: open store: %w", err)
	}

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		_ = kv.Close()
		return nil, fmt.Errorf("testserver: listen: %w", err)
	}

	st := store.New(kv, opts.Bounds, log)
	adbStore := adb.New(kv)
	streamHandler := stream.New(pubsub.NewRegistry(), log)
	creds := httpserver.NewCredentials(opts.Token, opts.AllowPublicAccess)
	handler := httpserver.New(creds, st, adbStore, streamHandler, log).Handler()

	httpSrv := &http.Server{Handler: handler}
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = httpSrv.Serve(listener)
	}()

	return &Server{
		Addr:     listener.Addr().String(),
		Token:    opts.Token,
		kv:       kv,
		listener: listener,
		httpSrv:  httpSrv,
		done:     done,
	}, nil
}

// BaseURL returns the server's http:// base URL.
func (s *Server) BaseURL() string {
	return "http://" + s.Addr
}

// WSBaseURL returns the server's ws:// base URL.
func (s *Server) WSBaseURL() string {
	return "ws://" + s.Addr
}

// Close shuts the server down and releases its storage directory handle.
func (s *Server) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := s.httpSrv.Shutdown(ctx)
	<-s.done
	if closeErr := s.kv.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	return err
}
