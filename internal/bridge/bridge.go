// Package bridge owns the process-wide Python runtime and its module cache.
//
// A Bridge is created empty. The first call that needs the interpreter runs
// environment setup, dependency installation and interpreter start exactly
// once; concurrent callers wait for that single attempt and observe the same
// result. The outcome is sticky: a failed initialization is never retried.
// Imported modules are cached by dotted name with the same semantics.
package bridge

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"kerasbridge/internal/pyrt"
)

// Defaults applied when Config fields are unset.
const (
	DefaultDependency = "tensorflow"
	DefaultMinVersion = "2.0"

	KerasModule      = "tensorflow.keras"
	TensorFlowModule = "tensorflow"
)

// Environment prepares the interpreter. *installer.Installer implements it.
type Environment interface {
	SetupPython(ctx context.Context) (python, version string, err error)
	EnsureRuntimeReady(ctx context.Context, dependency, minVersion string) error
}

// StartFunc starts an interpreter for the resolved python binary.
type StartFunc func(ctx context.Context, python string) (pyrt.Interpreter, error)

// Config configures a Bridge.
type Config struct {
	// Env runs setup and installation. When nil both steps are skipped and
	// Start receives "python3".
	Env Environment
	// Dependency and MinVersion are ensured before the interpreter starts.
	Dependency string
	MinVersion string
	// SkipInstall disables the dependency step but keeps interpreter setup.
	SkipInstall bool
	// Start launches the interpreter; defaults to a pyrt subprocess.
	Start     StartFunc
	Logger    zerolog.Logger
	Publisher EventPublisher
}

// State is the lifecycle state of the runtime.
type State string

const (
	StateUninitialized State = "uninitialized"
	StateInitializing  State = "initializing"
	StateReady         State = "ready"
	StateError         State = "error"
	StateClosed        State = "closed"
)

// Status is a snapshot of the runtime.
type Status struct {
	State              State
	Error              string
	Python             string
	PythonVersion      string
	InterpreterVersion string
	Modules            []string
	InitDuration       time.Duration
}

type runtime struct {
	rt            pyrt.Interpreter
	err           error
	python        string
	pythonVersion string
	took          time.Duration
}

type module struct {
	obj pyrt.Object
	err error
}

// Bridge is safe for concurrent use.
type Bridge struct {
	cfg   Config
	log   zerolog.Logger
	pub   EventPublisher
	start StartFunc

	group        singleflight.Group
	rt           atomic.Pointer[runtime]
	modules      sync.Map // dotted name -> *module
	initializing atomic.Bool

	mu     sync.Mutex
	closed bool
}

// New returns a Bridge; nothing is started until first use.
func New(cfg Config) *Bridge {
	if strings.TrimSpace(cfg.Dependency) == "" {
		cfg.Dependency = DefaultDependency
		if cfg.MinVersion == "" {
			cfg.MinVersion = DefaultMinVersion
		}
	}
	b := &Bridge{cfg: cfg, log: cfg.Logger, pub: cfg.Publisher, start: cfg.Start}
	if b.pub == nil {
		b.pub = noopPublisher{}
	}
	if b.start == nil {
		log := cfg.Logger
		b.start = func(ctx context.Context, python string) (pyrt.Interpreter, error) {
			return pyrt.StartSubprocess(ctx, pyrt.SubprocessConfig{Python: python, Logger: log})
		}
	}
	return b
}

// Interpreter returns the running interpreter, initializing it on first use.
// A caller whose ctx ends while waiting gets ctx.Err(); the initialization
// itself keeps running and its result is kept for later callers.
func (b *Bridge) Interpreter(ctx context.Context) (pyrt.Interpreter, error) {
	if r := b.rt.Load(); r != nil {
		return r.rt, r.err
	}
	if b.isClosed() {
		return nil, pyrt.ErrClosed
	}
	ch := b.group.DoChan("runtime", func() (any, error) {
		if r := b.rt.Load(); r != nil {
			return r, nil
		}
		r := b.initRuntime(context.WithoutCancel(ctx))
		b.rt.Store(r)
		return r, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		r := res.Val.(*runtime)
		return r.rt, r.err
	}
}

func (b *Bridge) initRuntime(ctx context.Context) *runtime {
	b.initializing.Store(true)
	defer b.initializing.Store(false)
	began := time.Now()
	b.pub.Publish(Event{Name: EventInitStart, Fields: map[string]any{"dependency": b.cfg.Dependency, "min_version": b.cfg.MinVersion}})
	b.log.Info().Str("event", EventInitStart).Str("dependency", b.cfg.Dependency).Str("min_version", b.cfg.MinVersion).Msg("initializing python runtime")

	r := &runtime{python: "python3"}
	fail := func(stage Stage, err error) *runtime {
		r.err = &InitializationError{Stage: stage, Err: err}
		r.took = time.Since(began)
		initTotal.WithLabelValues("error", string(stage)).Inc()
		b.pub.Publish(Event{Name: EventInitError, Fields: map[string]any{"stage": string(stage), "error": err.Error()}})
		b.log.Error().Str("event", EventInitError).Str("stage", string(stage)).Err(err).Msg("python runtime failed")
		return r
	}

	if b.cfg.Env != nil {
		py, version, err := b.cfg.Env.SetupPython(ctx)
		if err != nil {
			return fail(StageSetup, err)
		}
		r.python, r.pythonVersion = py, version
		if !b.cfg.SkipInstall {
			if err := b.cfg.Env.EnsureRuntimeReady(ctx, b.cfg.Dependency, b.cfg.MinVersion); err != nil {
				return fail(StageInstall, err)
			}
		}
	}

	rt, err := b.start(ctx, r.python)
	if err != nil {
		return fail(StageStart, err)
	}
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		_ = rt.Close()
		return fail(StageStart, pyrt.ErrClosed)
	}
	r.rt = rt
	r.took = time.Since(began)
	initDuration.Observe(r.took.Seconds())
	initTotal.WithLabelValues("ok", "").Inc()
	b.pub.Publish(Event{Name: EventInitReady, Fields: map[string]any{"python": r.python, "version": rt.Version(), "took_ms": r.took.Milliseconds()}})
	b.log.Info().Str("event", EventInitReady).Str("python", r.python).Str("version", rt.Version()).Dur("took", r.took).Msg("python runtime ready")
	return r
}

// RootModule imports the module at dotted path name and returns its handle.
// The first call initializes the runtime; later calls hit the cache.
func (b *Bridge) RootModule(ctx context.Context, name string) (pyrt.Object, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return pyrt.Object{}, errors.New("bridge: empty module name")
	}
	if v, ok := b.modules.Load(name); ok {
		m := v.(*module)
		return m.obj, m.err
	}
	rt, err := b.Interpreter(ctx)
	if err != nil {
		return pyrt.Object{}, err
	}
	ch := b.group.DoChan("module:"+name, func() (any, error) {
		if v, ok := b.modules.Load(name); ok {
			return v, nil
		}
		m := b.importModule(context.WithoutCancel(ctx), rt, name)
		b.modules.Store(name, m)
		return m, nil
	})
	select {
	case <-ctx.Done():
		return pyrt.Object{}, ctx.Err()
	case res := <-ch:
		m := res.Val.(*module)
		return m.obj, m.err
	}
}

func (b *Bridge) importModule(ctx context.Context, rt pyrt.Interpreter, name string) *module {
	obj, err := rt.Import(ctx, name)
	if err != nil {
		importTotal.WithLabelValues("error").Inc()
		b.pub.Publish(Event{Name: EventImportError, Module: name, Fields: map[string]any{"error": err.Error()}})
		b.log.Error().Str("event", EventImportError).Str("module", name).Err(err).Msg("module import failed")
		return &module{err: &InitializationError{Stage: StageImport, Module: name, Err: err}}
	}
	importTotal.WithLabelValues("ok").Inc()
	b.pub.Publish(Event{Name: EventImportReady, Module: name})
	b.log.Debug().Str("event", EventImportReady).Str("module", name).Msg("module imported")
	return &module{obj: obj}
}

// Keras returns the tensorflow.keras module.
func (b *Bridge) Keras(ctx context.Context) (pyrt.Object, error) {
	return b.RootModule(ctx, KerasModule)
}

// TensorFlow returns the tensorflow module.
func (b *Bridge) TensorFlow(ctx context.Context) (pyrt.Object, error) {
	return b.RootModule(ctx, TensorFlowModule)
}

// State reports the lifecycle state.
func (b *Bridge) State() State {
	if b.isClosed() {
		return StateClosed
	}
	if r := b.rt.Load(); r != nil {
		if r.err != nil {
			return StateError
		}
		return StateReady
	}
	if b.initializing.Load() {
		return StateInitializing
	}
	return StateUninitialized
}

// Ready reports whether the interpreter is up.
func (b *Bridge) Ready() bool { return b.State() == StateReady }

// Status returns a snapshot including the imported module names.
func (b *Bridge) Status() Status {
	st := Status{State: b.State()}
	if r := b.rt.Load(); r != nil {
		st.Python = r.python
		st.PythonVersion = r.pythonVersion
		st.InitDuration = r.took
		if r.err != nil {
			st.Error = r.err.Error()
		} else {
			st.InterpreterVersion = r.rt.Version()
		}
	}
	b.modules.Range(func(k, v any) bool {
		if v.(*module).err == nil {
			st.Modules = append(st.Modules, k.(string))
		}
		return true
	})
	sort.Strings(st.Modules)
	return st
}

// Close stops the interpreter if one was started. It is idempotent.
func (b *Bridge) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()
	r := b.rt.Load()
	if r == nil || r.rt == nil {
		return nil
	}
	b.pub.Publish(Event{Name: EventRuntimeClose})
	b.log.Info().Str("event", EventRuntimeClose).Msg("stopping python runtime")
	return r.rt.Close()
}

func (b *Bridge) isClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}
