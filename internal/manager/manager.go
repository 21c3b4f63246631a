package manager

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"kerasbridge/internal/bridge"
	"kerasbridge/internal/keras"
	"kerasbridge/pkg/types"
)

type Manager struct {
	rt         Runtime
	log        zerolog.Logger
	dependency string
	minVersion string
	maxObjects int
	now        func() time.Time
	startTime  time.Time

	mu      sync.RWMutex
	seq     int
	objects map[string]*entry
	order   []string
}

type entry struct {
	info types.ObjectInfo
	obj  keras.Object
}

// New constructs a Manager from ManagerConfig, applying defaults.
func New(cfg ManagerConfig) *Manager {
	m := &Manager{
		rt:         cfg.Runtime,
		log:        cfg.Logger,
		dependency: cfg.Dependency,
		minVersion: cfg.MinVersion,
		maxObjects: cfg.MaxObjects,
		now:        cfg.Now,
		objects:    make(map[string]*entry),
	}
	if m.dependency == "" {
		m.dependency = bridge.DefaultDependency
		if m.minVersion == "" {
			m.minVersion = bridge.DefaultMinVersion
		}
	}
	if m.maxObjects <= 0 {
		m.maxObjects = defaultMaxObjects
	}
	if m.now == nil {
		m.now = time.Now
	}
	m.startTime = m.now()
	return m
}

// Ready reports whether the interpreter is running.
func (m *Manager) Ready() bool { return m.rt.Ready() }

// Warmup initializes the runtime and imports tensorflow.keras.
func (m *Manager) Warmup(ctx context.Context) error {
	start := m.now()
	if _, err := m.rt.Keras(ctx); err != nil {
		return err
	}
	m.log.Info().Str("event", "warmup_done").Dur("took", m.now().Sub(start)).Msg("runtime warm")
	return nil
}

// Import imports a module by dotted path and describes its handle.
func (m *Manager) Import(ctx context.Context, module string) (types.ConvertResponse, error) {
	module = strings.TrimSpace(module)
	if module == "" {
		return types.ConvertResponse{}, badRequestError{errors.New("empty module name")}
	}
	obj, err := m.rt.RootModule(ctx, module)
	if err != nil {
		return types.ConvertResponse{}, err
	}
	return m.describe(ctx, obj)
}

// Kinds lists the buildable Keras kinds.
func (m *Manager) Kinds() []string { return keras.Kinds() }

// Close stops the runtime.
func (m *Manager) Close() error { return m.rt.Close() }
