/*
Package main is the entry point for the JustChat server.

The serve command loads configuration, initializes logging, opens the database,
builds the realtime hub and runs every long-lived loop under a suture supervisor.
On SIGINT or SIGTERM it stops accepting HTTP requests, closes every realtime
connection and lets the durable presence writer drain before exiting.
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/thejerf/suture/v4"

	"justchat/internal/app/db"
	"justchat/internal/app/message"
	"justchat/internal/app/realtime"
	"justchat/internal/app/storage"
	"justchat/internal/configs"
	"justchat/internal/handler"
	"justchat/internal/pkg/auth/jwt"
	"justchat/internal/pkg/logx"
)

// Build-time variables set via ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
)

const shutdownTimeout = 10 * time.Second

func main() {
	rootCmd := &cobra.Command{
		Use:           "justchat",
		Short:         "JustChat realtime messaging server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and WebSocket server (default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}

	migrateCmd := &cobra.Command{
		Use:       "migrate [up|down|status|redo|reset|version]",
		Short:     "Run database migrations",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"up", "down", "status", "redo", "reset", "version"},
		RunE: func(cmd *cobra.Command, args []string) error {
			command := "up"
			if len(args) == 1 {
				command = args[0]
			}
			return runMigrate(cmd.Context(), command)
		},
	}

	checkCmd := &cobra.Command{
		Use:   "check-config",
		Short: "Validate the environment configuration without starting",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configs.LoadConfig()
			if err != nil {
				return fmt.Errorf("config validation failed: %w", err)
			}
			fmt.Printf("Configuration is valid.\n")
			fmt.Printf("  Environment: %s\n", cfg.Environment)
			fmt.Printf("  Port: %d\n", cfg.Port)
			fmt.Printf("  Storage configured: %v\n", cfg.StorageConfigured())
			fmt.Printf("  Max connections: %d\n", cfg.MaxConnections)
			return nil
		},
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Show version and build info",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("JustChat %s (commit %s)\n", Version, GitCommit)
		},
	}

	rootCmd.AddCommand(serveCmd, migrateCmd, checkCmd, versionCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		os.Exit(1)
	}
}

func loadAndInitLogging() (*configs.AppConfig, error) {
	cfg, err := configs.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logx.InitGlobalLogger(logx.Options{
		Development: cfg.IsDevelopment(),
		Level:       cfg.LogLevel,
		File:        cfg.LogFile,
	})
	return cfg, nil
}

func runMigrate(ctx context.Context, command string) error {
	cfg, err := loadAndInitLogging()
	if err != nil {
		return err
	}
	defer logx.Close()

	pool, err := db.NewPool(ctx, cfg.DatabaseDSN, false)
	if err != nil {
		return err
	}
	defer pool.Close()

	return db.Migrate(ctx, pool, command)
}

func runServer() error {
	cfg, err := loadAndInitLogging()
	if err != nil {
		return err
	}
	defer logx.Close()

	logx.Logger().Info().
		Str("environment", cfg.Environment).
		Int("port", cfg.Port).
		Strs("allowed_origins", cfg.AllowedOrigins).
		Bool("storage", cfg.StorageConfigured()).
		Int("max_connections", cfg.MaxConnections).
		Msg("Configuration loaded successfully")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DatabaseDSN, true)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer pool.Close()
	queries := db.New(pool)

	blobs, err := storage.NewService(storage.ServiceConfig{
		S3BucketName:      cfg.S3BucketName,
		S3Endpoint:        cfg.S3Endpoint,
		S3AccessKeyID:     cfg.S3AccessKeyID,
		S3SecretAccessKey: cfg.S3SecretAccessKey,
		PublicBaseURL:     cfg.S3PublicBaseURL,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	if !cfg.StorageConfigured() {
		logx.Warn("S3 storage is not configured; image uploads are disabled")
	}

	hub := realtime.NewHub(queries, realtime.Options{
		Client: realtime.ClientConfig{
			WriteWait:  cfg.WSWriteWait,
			PongWait:   cfg.WSPongTimeout,
			PingPeriod: cfg.WSPingInterval,
			SendBuffer: cfg.WSSendBuffer,
		},
		PresenceCoalesce: cfg.PresenceCoalesce,
		MaxConnections:   cfg.MaxConnections,
	})

	authLimiter, messageLimiter, wsLimiter := handler.NewLimiters()

	deps := &handler.AppDeps{
		Config:         cfg,
		Hub:            hub,
		Gate:           realtime.NewGate(jwt.NewVerifier(cfg.JWTSecret), jwt.TokenFromRequest),
		Accounts:       queries,
		Messages:       message.NewService(queries, hub.Router(), hub.IsOnline),
		Storage:        blobs,
		AuthLimiter:    authLimiter,
		MessageLimiter: messageLimiter,
		WSLimiter:      wsLimiter,
	}

	server := handler.NewServer(cfg.Port, handler.Router(deps))

	spec := suture.Spec{
		EventHook:        supervisorEventHook(),
		FailureThreshold: 5,
		FailureDecay:     30,
		FailureBackoff:   15 * time.Second,
		Timeout:          shutdownTimeout,
	}

	// Realtime loops outlive the HTTP server so closing connections can still
	// broadcast presence and queue offline writes.
	core := suture.New("justchat-core", spec)
	for _, svc := range hub.Services() {
		core.Add(svc)
	}
	core.Add(authLimiter)
	core.Add(messageLimiter)
	core.Add(wsLimiter)

	api := suture.New("justchat-api", spec)
	api.Add(handler.NewServerService(server, server.Addr, shutdownTimeout))

	coreCtx, cancelCore := context.WithCancel(context.Background())
	defer cancelCore()

	coreDone := core.ServeBackground(coreCtx)
	apiDone := api.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logx.Info("Received shutdown signal. Starting graceful shutdown...")
		waitSupervisor("api", apiDone)
	case err := <-apiDone:
		logx.Error(err, "HTTP supervisor stopped unexpectedly")
		stop()
	}

	hubCtx, cancelHub := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelHub()
	if err := hub.Shutdown(hubCtx); err != nil {
		logx.Warn("Realtime shutdown incomplete", "error", err.Error())
	}

	cancelCore()
	waitSupervisor("core", coreDone)

	logx.Info("Server gracefully stopped.")
	return nil
}

// waitSupervisor waits for a supervisor's ServeBackground channel, bounded by shutdownTimeout.
func waitSupervisor(name string, done <-chan error) {
	select {
	case err, ok := <-done:
		if ok && err != nil && !errors.Is(err, context.Canceled) {
			logx.Warn("Supervisor exited with error", "supervisor", name, "error", err.Error())
		}
	case <-time.After(shutdownTimeout + time.Second):
		logx.Warn("Supervisor did not stop in time", "supervisor", name)
	}
}

// supervisorEventHook logs suture events through zerolog.
func supervisorEventHook() suture.EventHook {
	logger := logx.Component("supervisor")
	return func(e suture.Event) {
		evt := logger.Warn()
		if e.Type() == suture.EventTypeBackoff || e.Type() == suture.EventTypeResume {
			evt = logger.Info()
		}
		evt.Fields(e.Map()).Str("event", e.String()).Msg("Supervisor event")
	}
}
