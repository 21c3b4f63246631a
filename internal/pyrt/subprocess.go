package pyrt

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
)

//go:embed bridge.py
var bridgeScript string

const (
	defaultStartTimeout = 30 * time.Second
	stopGrace           = 2 * time.Second
	stderrTailBytes     = 4096
)

// SubprocessConfig configures a Python child process.
type SubprocessConfig struct {
	// Python is the interpreter binary (default "python3").
	Python string
	// Env is appended to the current environment.
	Env []string
	// StartTimeout bounds the wait for the bridge ready line.
	StartTimeout time.Duration
	Logger       zerolog.Logger
}

// Subprocess is an Interpreter backed by a python3 child process.
type Subprocess struct {
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	cl      *client
	version string
	stderr  *tailBuffer
	log     zerolog.Logger

	exited  chan struct{}
	exitErr error

	closeOnce sync.Once
}

// StartSubprocess spawns the interpreter and waits until the bridge script
// reports ready. ctx bounds only the startup; the process outlives it.
func StartSubprocess(ctx context.Context, cfg SubprocessConfig) (*Subprocess, error) {
	bin := strings.TrimSpace(cfg.Python)
	if bin == "" {
		bin = "python3"
	}
	timeout := cfg.StartTimeout
	if timeout <= 0 {
		timeout = defaultStartTimeout
	}

	cmd := exec.Command(bin, "-u", "-c", bridgeScript)
	cmd.Env = append(os.Environ(), cfg.Env...)
	stderr := &tailBuffer{max: stderrTailBytes}
	cmd.Stderr = stderr
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", bin, err)
	}
	p := &Subprocess{cmd: cmd, stdin: stdin, stderr: stderr, log: cfg.Logger, exited: make(chan struct{})}
	p.log.Info().Str("event", "interpreter_start").Str("python", bin).Int("pid", cmd.Process.Pid).Msg("python interpreter spawned")

	scanner := newScanner(stdout)
	type ready struct {
		version string
		err     error
	}
	readyCh := make(chan ready, 1)
	go func() {
		v, err := readReady(scanner)
		readyCh <- ready{version: v, err: err}
	}()

	// Wait closes stdout once the child exits; readers then see EOF.
	waitCh := make(chan struct{})
	go func() {
		p.exitErr = cmd.Wait()
		close(p.exited)
		close(waitCh)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case r := <-readyCh:
		if r.err != nil {
			p.kill()
			<-p.exited
			return nil, fmt.Errorf("interpreter handshake: %w; stderr tail: %s", r.err, stderr.String())
		}
		p.version = r.version
	case <-waitCh:
		return nil, fmt.Errorf("interpreter exited before ready: %v; stderr tail: %s", p.exitErr, stderr.String())
	case <-timer.C:
		p.kill()
		<-p.exited
		return nil, fmt.Errorf("interpreter not ready within %s", timeout)
	case <-ctx.Done():
		p.kill()
		<-p.exited
		return nil, ctx.Err()
	}

	p.cl = newClient(stdin, scanner, p.log)
	p.log.Info().Str("event", "interpreter_ready").Int("pid", cmd.Process.Pid).Str("version", p.version).Msg("python interpreter ready")
	return p, nil
}

// PID returns the child process id.
func (p *Subprocess) PID() int { return p.cmd.Process.Pid }

func (p *Subprocess) None() Object { return NoneObject }

func (p *Subprocess) Bool(v bool) Object {
	if v {
		return TrueObject
	}
	return FalseObject
}

func (p *Subprocess) Int(ctx context.Context, v int64) (Object, error) {
	return p.cl.object(ctx, "int", valueArgs{Value: v})
}

func (p *Subprocess) Float(ctx context.Context, v float64) (Object, error) {
	return p.cl.object(ctx, "float", valueArgs{Value: floatArg(v)})
}

func (p *Subprocess) Str(ctx context.Context, v string) (Object, error) {
	return p.cl.object(ctx, "str", valueArgs{Value: v})
}

func (p *Subprocess) Tuple(ctx context.Context, items []Object) (Object, error) {
	return p.cl.object(ctx, "tuple", itemsArgs{Items: refs(items)})
}

func (p *Subprocess) List(ctx context.Context, items []Object) (Object, error) {
	return p.cl.object(ctx, "list", itemsArgs{Items: refs(items)})
}

func (p *Subprocess) Import(ctx context.Context, path string) (Object, error) {
	return p.cl.object(ctx, "import", map[string]string{"path": path})
}

func (p *Subprocess) GetAttr(ctx context.Context, obj Object, name string) (Object, error) {
	return p.cl.object(ctx, "getattr", map[string]any{"ref": obj.ref, "name": name})
}

func (p *Subprocess) Call(ctx context.Context, fn Object, args []Object, kwargs map[string]Object) (Object, error) {
	ca := callArgs{Ref: fn.ref, Args: refs(args)}
	if len(kwargs) > 0 {
		ca.Kwargs = make(map[string]Ref, len(kwargs))
		for k, v := range kwargs {
			ca.Kwargs[k] = v.ref
		}
	}
	return p.cl.object(ctx, "call", ca)
}

func (p *Subprocess) Repr(ctx context.Context, obj Object) (string, error) {
	resp, err := p.cl.do(ctx, "repr", map[string]any{"ref": obj.ref})
	if err != nil {
		return "", err
	}
	return resp.Repr, nil
}

func (p *Subprocess) Version() string { return p.version }

// Close ends the bridge loop by closing stdin, then escalates to SIGTERM
// and SIGKILL if the child does not exit in time.
func (p *Subprocess) Close() error {
	p.closeOnce.Do(func() {
		_ = p.stdin.Close()
		select {
		case <-p.exited:
		case <-time.After(stopGrace):
			_ = p.cmd.Process.Signal(syscall.SIGTERM)
			select {
			case <-p.exited:
			case <-time.After(stopGrace):
				p.kill()
				<-p.exited
			}
		}
		p.log.Info().Str("event", "interpreter_stop").Int("pid", p.cmd.Process.Pid).Msg("python interpreter stopped")
	})
	var ee *exec.ExitError
	if p.exitErr != nil && !errors.As(p.exitErr, &ee) {
		return p.exitErr
	}
	return nil
}

func (p *Subprocess) kill() { _ = p.cmd.Process.Kill() }

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	mu  sync.Mutex
	max int
	buf []byte
}

func (t *tailBuffer) Write(b []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, b...)
	if len(t.buf) > t.max {
		t.buf = append([]byte(nil), t.buf[len(t.buf)-t.max:]...)
	}
	return len(b), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.buf)
}
