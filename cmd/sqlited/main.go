package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kbarnes/sqlited/internal/config"
	"github.com/kbarnes/sqlited/internal/logging"
	"github.com/kbarnes/sqlited/internal/server"
)

var (
	version = "dev"
	commit  = "unknown"
)

var (
	cfgFile        string
	port           int
	requestWorkers int
	logLevel       string
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

var rootCmd = &cobra.Command{
	Use:   "sqlited",
	Short: "A binary-protocol SQLite server",
	Long: `sqlited accepts connections over a small MessagePack-framed binary
protocol and executes queries against per-client SQLite database handles.

Get started:
  sqlited serve
  sqlited serve --port 9999 --config /etc/sqlited/config.yaml`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("sqlited %s (%s) %s/%s\n", version, commit, runtime.GOOS, runtime.GOARCH)
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the sqlited server",
	Long: `Start the sqlited server. It binds a listening socket, drives an
epoll-based reactor over client connections, and dispatches decoded
requests to a fixed-size worker pool.`,
	Example: `  sqlited serve
  sqlited serve --port 9999
  sqlited serve --config /etc/sqlited/config.yaml`,
	RunE: runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to a config file")
	rootCmd.PersistentFlags().IntVar(&port, "port", 0, "listen port (0 keeps the config/default value)")
	rootCmd.PersistentFlags().IntVar(&requestWorkers, "request-workers", 0, "worker pool size (0 keeps the config/default value)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error (empty keeps the config/default value)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if port != 0 {
		cfg.Server.Port = port
	}
	if requestWorkers != 0 {
		cfg.Server.RequestWorkers = requestWorkers
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := logging.New(cfg.Log.Level)
	srv := server.New(cfg, logger)

	ctx := cmd.Context()
	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	logger.Info("sqlited listening", "port", cfg.Server.Port, "workers", cfg.Server.RequestWorkers)

	if err := srv.Wait(); err != nil {
		return fmt.Errorf("server exited: %w", err)
	}
	logger.Info("sqlited stopped")
	return nil
}
