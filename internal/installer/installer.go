// Package installer prepares the Python environment the bridge runs in:
// it resolves (or creates) the interpreter and makes sure a pip dependency
// is present at a minimum version, installing it when allowed.
package installer

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/mod/semver"
	"golang.org/x/sync/singleflight"

	"kerasbridge/internal/common/fsutil"
)

// Config controls interpreter resolution and installation.
type Config struct {
	// Python is the base interpreter (default "python3").
	Python string
	// VenvDir, when set, is created with "python -m venv" on first setup and
	// its interpreter is used from then on.
	VenvDir string
	// AutoInstall allows pip install when the dependency is missing or too old.
	AutoInstall bool
	// IndexURL is passed to pip as --index-url when non-empty.
	IndexURL string
	Logger   zerolog.Logger
	// Runner executes commands; defaults to ExecRunner.
	Runner Runner
}

// Installer is safe for concurrent use. Concurrent ensures of the same
// dependency share one pip run.
type Installer struct {
	cfg    Config
	runner Runner
	log    zerolog.Logger
	group  singleflight.Group

	mu     sync.Mutex
	python string
}

// New returns an Installer.
func New(cfg Config) *Installer {
	r := cfg.Runner
	if r == nil {
		r = ExecRunner{}
	}
	py := strings.TrimSpace(cfg.Python)
	if py == "" {
		py = "python3"
	}
	return &Installer{cfg: cfg, runner: r, log: cfg.Logger, python: py}
}

// Python returns the interpreter currently in use.
func (i *Installer) Python() string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.python
}

// SetupPython resolves the interpreter, creating the virtualenv if one is
// configured and missing. It returns the interpreter path and its version.
func (i *Installer) SetupPython(ctx context.Context) (string, string, error) {
	base := i.Python()
	py := base
	if i.cfg.VenvDir != "" {
		dir, err := fsutil.ExpandHome(i.cfg.VenvDir)
		if err != nil {
			return "", "", err
		}
		py = venvPython(dir)
		if !fsutil.PathExists(py) {
			i.log.Info().Str("event", "venv_create").Str("dir", dir).Str("python", base).Msg("creating virtualenv")
			if out, err := i.runner.Output(ctx, base, "-m", "venv", dir); err != nil {
				return "", "", fmt.Errorf("create venv %s: %w: %s", dir, err, tail(out))
			}
		}
	}
	out, err := i.runner.Output(ctx, py, "--version")
	if err != nil {
		return "", "", fmt.Errorf("python %s unavailable: %w: %s", py, err, tail(out))
	}
	version := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(string(out)), "Python"))
	i.mu.Lock()
	i.python = py
	i.mu.Unlock()
	i.log.Debug().Str("event", "python_ready").Str("python", py).Str("version", version).Msg("python resolved")
	return py, version, nil
}

func venvPython(dir string) string {
	if runtime.GOOS == "windows" {
		return filepath.Join(dir, "Scripts", "python.exe")
	}
	return filepath.Join(dir, "bin", "python")
}

// InstalledVersion returns the installed version of dep, or "" when it is
// not installed.
func (i *Installer) InstalledVersion(ctx context.Context, dep string) (string, error) {
	out, err := i.runner.Output(ctx, i.Python(), "-m", "pip", "show", dep)
	if err != nil {
		if strings.Contains(strings.ToLower(string(out)), "not found") {
			return "", nil
		}
		return "", fmt.Errorf("pip show %s: %w: %s", dep, err, tail(out))
	}
	for _, line := range strings.Split(string(out), "\n") {
		if v, ok := strings.CutPrefix(strings.TrimSpace(line), "Version:"); ok {
			return strings.TrimSpace(v), nil
		}
	}
	return "", fmt.Errorf("pip show %s: no Version field", dep)
}

// EnsureRuntimeReady makes sure dep is installed at minVersion or newer.
// It is idempotent; an empty minVersion accepts any installed version.
func (i *Installer) EnsureRuntimeReady(ctx context.Context, dep, minVersion string) error {
	if strings.TrimSpace(dep) == "" {
		return errors.New("installer: empty dependency name")
	}
	_, err, _ := i.group.Do(dep+"@"+minVersion, func() (any, error) {
		return nil, i.ensure(ctx, dep, minVersion)
	})
	return err
}

func (i *Installer) ensure(ctx context.Context, dep, minVersion string) error {
	have, err := i.InstalledVersion(ctx, dep)
	if err != nil {
		return err
	}
	if have != "" && AtLeast(have, minVersion) {
		i.log.Debug().Str("event", "dependency_ok").Str("dep", dep).Str("version", have).Msg("dependency satisfied")
		return nil
	}
	if !i.cfg.AutoInstall {
		return &VersionError{Dependency: dep, Installed: have, Minimum: minVersion}
	}

	spec := dep
	if minVersion != "" {
		spec = dep + ">=" + minVersion
	}
	args := []string{"-m", "pip", "install", spec}
	if i.cfg.IndexURL != "" {
		args = append(args, "--index-url", i.cfg.IndexURL)
	}
	i.log.Info().Str("event", "dependency_install").Str("dep", dep).Str("installed", have).Str("minimum", minVersion).Msg("installing dependency")
	if out, err := i.runner.Output(ctx, i.Python(), args...); err != nil {
		return fmt.Errorf("pip install %s: %w: %s", spec, err, tail(out))
	}

	have, err = i.InstalledVersion(ctx, dep)
	if err != nil {
		return err
	}
	if have == "" || !AtLeast(have, minVersion) {
		return &VersionError{Dependency: dep, Installed: have, Minimum: minVersion}
	}
	i.log.Info().Str("event", "dependency_installed").Str("dep", dep).Str("version", have).Msg("dependency installed")
	return nil
}

var leadingVersion = regexp.MustCompile(`^\d+(\.\d+){0,2}`)

// AtLeast reports whether the pip version string have is >= min. Only the
// leading numeric release segment is compared; "2.16.0rc1" counts as 2.16.0.
func AtLeast(have, min string) bool {
	if strings.TrimSpace(min) == "" {
		return true
	}
	h, m := canonical(have), canonical(min)
	if h == "" || m == "" {
		return false
	}
	return semver.Compare(h, m) >= 0
}

func canonical(v string) string {
	s := leadingVersion.FindString(strings.TrimSpace(v))
	if s == "" {
		return ""
	}
	return semver.Canonical("v" + s)
}

// VersionError reports a dependency that is missing or older than required.
type VersionError struct {
	Dependency string
	Installed  string
	Minimum    string
}

func (e *VersionError) Error() string {
	if e.Installed == "" && e.Minimum == "" {
		return fmt.Sprintf("dependency %s is not installed", e.Dependency)
	}
	if e.Installed == "" {
		return fmt.Sprintf("dependency %s is not installed (need >= %s)", e.Dependency, e.Minimum)
	}
	return fmt.Sprintf("dependency %s %s is older than %s", e.Dependency, e.Installed, e.Minimum)
}

// IsVersion reports whether err is a VersionError.
func IsVersion(err error) bool {
	var ve *VersionError
	return errors.As(err, &ve)
}

func tail(out []byte) string {
	s := strings.TrimSpace(string(out))
	if len(s) > 1024 {
		s = s[len(s)-1024:]
	}
	return s
}
