package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"kerasbridge/internal/cli"
	"kerasbridge/internal/config"
	"kerasbridge/internal/httpapi"
	"kerasbridge/internal/manager"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "kerasd:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("kerasd", flag.ContinueOnError)
	defaultConfig := os.Getenv("KERASBRIDGE_CONFIG")
	configPath := fs.String("config", defaultConfig, "Config file (.yaml, .json or .toml)")
	addr := fs.String("addr", "", "HTTP listen address, e.g. :8080 (env KERASBRIDGE_ADDR)")
	python := fs.String("python", "", "Base Python interpreter")
	venv := fs.String("venv", "", "Virtualenv directory, created on first use")
	runtimeMode := fs.String("runtime", "", "Runtime: subprocess|memory")
	logLevel := fs.String("log-level", "", "Log level: debug|info|warn|error")
	logFormat := fs.String("log-format", "", "Log format: console|json")
	corsOrigins := fs.String("cors-origins", "", "Comma-separated CORS origins; enables CORS")
	warmup := fs.Bool("warmup", false, "Start the interpreter and import tensorflow.keras before serving")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var cfg config.Config
	if *configPath != "" {
		c, err := config.Load(*configPath)
		if err != nil {
			return err
		}
		cfg = c
	}
	if v := os.Getenv("KERASBRIDGE_ADDR"); v != "" && cfg.Addr == "" {
		cfg.Addr = v
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "addr":
			cfg.Addr = *addr
		case "python":
			cfg.Python = *python
		case "venv":
			cfg.VenvDir = *venv
		case "runtime":
			cfg.Runtime = *runtimeMode
		case "log-level":
			cfg.LogLevel = *logLevel
		case "log-format":
			cfg.LogFormat = *logFormat
		case "cors-origins":
			cfg.CORSEnabled = true
			cfg.CORSOrigins = splitCSV(*corsOrigins)
		case "warmup":
			cfg.Warmup = *warmup
		}
	})
	cfg, err := cfg.WithDefaults()
	if err != nil {
		return err
	}

	log := cli.NewLogger(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	httpapi.SetLogger(log)
	httpapi.SetMaxBodyBytes(cfg.MaxBodyBytes)
	httpapi.SetCORSOptions(cfg.CORSEnabled, cfg.CORSOrigins, nil, nil)

	baseCtx, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()
	httpapi.SetBaseContext(baseCtx)

	b := cli.NewBridge(cfg, log, cli.NewLoggingPublisher(log))
	mgr := manager.New(manager.ManagerConfig{
		Runtime:    b,
		Dependency: cfg.Dependency,
		MinVersion: cfg.MinVersion,
		MaxObjects: cfg.MaxObjects,
		Logger:     log,
	})
	defer mgr.Close()

	if cfg.Warmup {
		start := time.Now()
		if err := mgr.Warmup(baseCtx); err != nil {
			// Keep serving; /status and /readyz report the failure.
			log.Error().Err(err).Msg("warmup failed")
		} else {
			log.Info().Dur("took", time.Since(start)).Msg("warmup complete")
		}
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpapi.NewMux(mgr),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return baseCtx },
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Addr).Str("runtime", cfg.Runtime).Str("dependency", cfg.Dependency).Msg("kerasd listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Graceful shutdown (Ctrl+C / SIGTERM)
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-stop:
	}
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeoutDuration())
	defer cancel()
	err = srv.Shutdown(ctx)
	cancelBase()
	if err != nil {
		log.Warn().Err(err).Msg("graceful shutdown error")
	}
	return nil
}

func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
