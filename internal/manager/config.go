package manager

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"kerasbridge/internal/bridge"
	"kerasbridge/internal/keras"
	"kerasbridge/internal/pyrt"
)

// Defaults applied when corresponding ManagerConfig fields are unset.
const (
	defaultMaxObjects = 1024
)

// Runtime is the bridge surface the manager drives. *bridge.Bridge implements it.
type Runtime interface {
	keras.Runtime
	RootModule(ctx context.Context, name string) (pyrt.Object, error)
	Status() bridge.Status
	Ready() bool
	Close() error
}

// ManagerConfig encapsulates all tunables for Manager construction.
type ManagerConfig struct {
	Runtime Runtime
	// Dependency and MinVersion are reported in Status.
	Dependency string
	MinVersion string
	// MaxObjects caps the object table; further builds fail with a busy error.
	MaxObjects int
	Logger     zerolog.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}
