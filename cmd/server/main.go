// Command server runs the demo application with the debug toolbar and its
// SQL panel.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"sqlpanel/internal/app"
	"sqlpanel/internal/config"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type serveOptions struct {
	envFile       string
	toolbarConfig string
	addr          string
}

func newRootCmd() *cobra.Command {
	opts := &serveOptions{}

	serve := &cobra.Command{
		Use:           "serve",
		Short:         "Run the demo server",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), cmd.Flags(), opts)
		},
	}
	addServeFlags(serve.Flags(), opts)

	root := &cobra.Command{
		Use:           "sqlpanel",
		Short:         "Demo web application with an in-page SQL debug panel",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          serve.RunE,
	}
	addServeFlags(root.Flags(), opts)
	root.AddCommand(serve)
	return root
}

func addServeFlags(fs *pflag.FlagSet, opts *serveOptions) {
	fs.StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	fs.StringVar(&opts.toolbarConfig, "toolbar-config", "", "YAML toolbar configuration (overrides DEBUG_TB_CONFIG)")
	fs.StringVar(&opts.addr, "addr", "", "listen address (overrides LISTEN_ADDR)")
}

// loadConfig applies flags on top of the environment. Flags win over
// environment variables, which win over the dotenv file.
func loadConfig(flags *pflag.FlagSet, opts *serveOptions) (*config.Config, error) {
	if err := config.LoadDotEnv(opts.envFile); err != nil {
		return nil, fmt.Errorf("load %s: %w", opts.envFile, err)
	}
	if flags.Changed("toolbar-config") {
		if err := os.Setenv("DEBUG_TB_CONFIG", opts.toolbarConfig); err != nil {
			return nil, err
		}
	}
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, err
	}
	if flags.Changed("addr") {
		cfg.ListenAddr = opts.addr
	}
	return cfg, nil
}

func runServe(ctx context.Context, flags *pflag.FlagSet, opts *serveOptions) error {
	cfg, err := loadConfig(flags, opts)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	logger := cfg.NewLogger(os.Stderr)
	slog.SetDefault(logger)
	for _, w := range cfg.Warnings {
		logger.Warn(w)
	}

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	a, err := app.New(ctx, app.Deps{Cfg: cfg, Logger: logger})
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Error("close database", "error", err)
		}
	}()

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      time.Minute,
		IdleTimeout:       2 * time.Minute,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", "addr", cfg.ListenAddr, "url", "http://"+hostForListenAddr(cfg.ListenAddr)+"/",
			"driver", cfg.DBDriver, "toolbar", cfg.Toolbar.Enabled)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// hostForListenAddr turns a listen address into something a browser can open.
func hostForListenAddr(listenAddr string) string {
	addr := strings.TrimSpace(listenAddr)
	if addr == "" {
		return "localhost:8080"
	}
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	switch host {
	case "", "0.0.0.0", "::":
		host = "localhost"
	}
	return net.JoinHostPort(host, port)
}
