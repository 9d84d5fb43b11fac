package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/gerhard-ee/sqlgateway/internal/api"
	"github.com/gerhard-ee/sqlgateway/internal/config"
	"github.com/gerhard-ee/sqlgateway/internal/database"
	"github.com/gerhard-ee/sqlgateway/internal/state"
)

var version = "dev"

const shutdownTimeout = 15 * time.Second

type serveOptions struct {
	configPath string
	envFile    string
	listenAddr string
	sourcePath string
	logLevel   string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// newRootCmd returns the sqlgateway command. Run without a subcommand it
// behaves like serve and accepts the same flags.
func newRootCmd() *cobra.Command {
	serveCmd := newServeCmd()
	root := &cobra.Command{
		Use:          "sqlgateway",
		Short:        "HTTP gateway that runs SQL against a warehouse and loads tabular files into it",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE:         serveCmd.RunE,
	}
	root.Flags().AddFlagSet(serveCmd.Flags())
	root.AddCommand(serveCmd, newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "sqlgateway version %s\n", version)
			return err
		},
	}
}

func newServeCmd() *cobra.Command {
	opts := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP gateway",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, newLogger(cmd.ErrOrStderr(), cfg))
		},
	}

	bindServeFlags(cmd, opts)
	return cmd
}

func bindServeFlags(cmd *cobra.Command, opts *serveOptions) {
	flags := cmd.Flags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "Path to a YAML configuration file")
	flags.StringVar(&opts.envFile, "env-file", ".env", "Path to a .env file seeding unset variables")
	flags.StringVar(&opts.listenAddr, "listen", "", "HTTP listen address (overrides LISTEN_ADDR)")
	flags.StringVar(&opts.sourcePath, "source", "", "Tabular file loaded by /create (overrides SOURCE_PATH)")
	flags.StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides LOG_LEVEL)")
}

// loadConfig builds the configuration from the .env file, the optional YAML
// file and the environment, then applies explicitly set flags on top.
func loadConfig(cmd *cobra.Command, opts *serveOptions) (*config.Config, error) {
	if err := config.LoadDotEnv(opts.envFile); err != nil {
		return nil, fmt.Errorf("failed to load env file: %w", err)
	}
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed("listen") {
		cfg.ListenAddr = opts.listenAddr
	}
	if flags.Changed("source") {
		cfg.SourcePath = opts.sourcePath
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = opts.logLevel
	}
	return cfg, nil
}

func newLogger(w io.Writer, cfg *config.Config) *slog.Logger {
	handlerOpts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, handlerOpts))
	}
	return slog.New(slog.NewTextHandler(w, handlerOpts))
}

func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	connector, err := database.NewConnector(&cfg.Warehouse)
	if err != nil {
		return fmt.Errorf("failed to create warehouse connector: %w", err)
	}
	store, err := state.NewManager(cfg)
	if err != nil {
		return fmt.Errorf("failed to create state manager: %w", err)
	}

	handler := api.NewHandler(connector, store, logger, api.Options{
		SourcePath:       cfg.SourcePath,
		ProgressInterval: cfg.ProgressInterval,
		Retain:           cfg.StateRetain,
	})
	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api.NewRouter(ctx, cfg, handler, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("HTTP gateway listening",
			"addr", cfg.ListenAddr,
			"warehouse", connector.Type(),
			"source", cfg.SourcePath,
			"state_backend", cfg.StateBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
