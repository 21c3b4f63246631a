package cli

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"kerasbridge/internal/bridge"
	"kerasbridge/internal/config"
	"kerasbridge/internal/installer"
	"kerasbridge/internal/keras"
	"kerasbridge/internal/pyrt"
)

// NewLogger builds a zerolog logger from level and format ("console" or "json").
func NewLogger(w io.Writer, level, format string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	if format != "json" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}

// NewInstaller returns the installer described by cfg.
func NewInstaller(cfg config.Config, log zerolog.Logger) *installer.Installer {
	return installer.New(installer.Config{
		Python:      cfg.Python,
		VenvDir:     cfg.VenvDir,
		AutoInstall: cfg.AutoInstallEnabled(),
		IndexURL:    cfg.IndexURL,
		Logger:      log,
	})
}

// NewBridge wires a bridge for cfg. The memory runtime needs no Python and
// skips setup entirely.
func NewBridge(cfg config.Config, log zerolog.Logger, pub bridge.EventPublisher) *bridge.Bridge {
	bc := bridge.Config{
		Dependency:  cfg.Dependency,
		MinVersion:  cfg.MinVersion,
		SkipInstall: cfg.SkipInstall,
		Logger:      log,
		Publisher:   pub,
	}
	if cfg.Runtime == config.RuntimeMemory {
		bc.Start = func(context.Context, string) (pyrt.Interpreter, error) {
			return pyrt.NewMemory(keras.Modules...), nil
		}
		return bridge.New(bc)
	}
	bc.Env = NewInstaller(cfg, log)
	timeout := cfg.StartTimeoutDuration()
	bc.Start = func(ctx context.Context, python string) (pyrt.Interpreter, error) {
		return pyrt.StartSubprocess(ctx, pyrt.SubprocessConfig{
			Python:       python,
			StartTimeout: timeout,
			Logger:       log,
		})
	}
	return bridge.New(bc)
}

// loggingPublisher forwards bridge events to a logger at debug level.
type loggingPublisher struct{ log zerolog.Logger }

func (p loggingPublisher) Publish(e bridge.Event) {
	ev := p.log.Debug().Str("event", e.Name)
	if e.Module != "" {
		ev = ev.Str("module", e.Module)
	}
	ev.Fields(e.Fields).Msg("bridge event")
}

// NewLoggingPublisher returns an EventPublisher that logs every event.
func NewLoggingPublisher(log zerolog.Logger) bridge.EventPublisher { return loggingPublisher{log: log} }
