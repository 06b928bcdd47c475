package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/exowarexyz/simulator/internal/adb"
	"github.com/exowarexyz/simulator/internal/config"
	"github.com/exowarexyz/simulator/internal/httpserver"
	"github.com/exowarexyz/simulator/internal/kvstore"
	"github.com/exowarexyz/simulator/internal/pubsub"
	"github.com/exowarexyz/simulator/internal/store"
	"github.com/exowarexyz/simulator/internal/stream"
	"github.com/exowarexyz/simulator/internal/visibility"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownGrace = 5 * time.Second

type runFlags struct {
	directory         string
	port              int
	boundMin          uint64
	boundMax          uint64
	token             string
	allowPublicAccess bool
	verbose           bool
}

func newServerCommand() *cobra.Command {
	server := &cobra.Command{
		Use:   "server",
		Short: "Run or manage the simulator server",
	}
	server.AddCommand(newServerRunCommand())
	return server
}

func newServerRunCommand() *cobra.Command {
	flags := &runFlags{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the simulator HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), flags)
		},
	}

	defaultDir, _ := config.DefaultDirectory()

	cmd.Flags().StringVar(&flags.directory, "directory", defaultDir, "filesystem path for server state")
	cmd.Flags().IntVar(&flags.port, "port", 8080, "HTTP listen port")
	cmd.Flags().Uint64Var(&flags.boundMin, "consistency-bound-min", 0, "minimum simulated visibility delay, in milliseconds")
	cmd.Flags().Uint64Var(&flags.boundMax, "consistency-bound-max", 60000, "maximum simulated visibility delay, in milliseconds")
	cmd.Flags().StringVar(&flags.token, "token", "", "bearer token required for authenticated requests")
	cmd.Flags().BoolVar(&flags.allowPublicAccess, "allow-public-access", false, "admit unauthenticated GET requests")
	cmd.Flags().BoolVarP(&flags.verbose, "verbose", "v", false, "enable debug logging")
	_ = cmd.MarkFlagRequired("token")

	return cmd
}

func runServer(ctx context.Context, flags *runFlags) error {
	if flags.boundMin > flags.boundMax {
		return fmt.Errorf("--consistency-bound-min (%d) must not exceed --consistency-bound-max (%d)", flags.boundMin, flags.boundMax)
	}

	log, err := newLogger(flags.verbose)
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer log.Sync() //nolint:errcheck
	sugar := log.Sugar()

	if err := os.MkdirAll(flags.directory, 0o755); err != nil {
		return fmt.Errorf("creating state directory %q: %w", flags.directory, err)
	}

	kv, err := kvstore.Open(flags.directory, sugar)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer kv.Close()

	bounds := visibility.Bounds{Min: flags.boundMin, Max: flags.boundMax}
	st := store.New(kv, bounds, sugar)
	adbStore := adb.New(kv)
	registry := pubsub.NewRegistry()
	streamHandler := stream.New(registry, sugar)
	creds := httpserver.NewCredentials(flags.token, flags.allowPublicAccess)
	handler := httpserver.New(creds, st, adbStore, streamHandler, sugar).Handler()

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", flags.port))
	if err != nil {
		return fmt.Errorf("binding port %d: %w", flags.port, err)
	}

	httpSrv := &http.Server{Handler: handler}

	sugar.Infow("simulator server starting",
		"directory", flags.directory,
		"port", flags.port,
		"consistency_bound_min_ms", flags.boundMin,
		"consistency_bound_max_ms", flags.boundMax,
		"allow_public_access", flags.allowPublicAccess,
	)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := httpSrv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		sugar.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})

	return group.Wait()
}

func newLogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
		cfg.Encoding = "console"
		cfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	}
	return cfg.Build()
}
