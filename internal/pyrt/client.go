package pyrt

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// maxLineBytes bounds a single protocol line (large reprs of tensors).
const maxLineBytes = 16 << 20

type request struct {
	ID   uint64 `json:"id"`
	Op   string `json:"op"`
	Args any    `json:"args,omitempty"`
}

type response struct {
	ID        uint64 `json:"id"`
	Ref       Ref    `json:"ref,omitempty"`
	Repr      string `json:"repr,omitempty"`
	Error     string `json:"error,omitempty"`
	ErrorType string `json:"error_type,omitempty"`
}

type readyLine struct {
	Ready   bool   `json:"ready"`
	Version string `json:"version"`
}

// client multiplexes requests over one line-oriented JSON stream.
// Writes are serialised; a reader goroutine routes replies by id.
type client struct {
	wmu sync.Mutex
	w   io.Writer
	log zerolog.Logger

	mu      sync.Mutex
	pending map[uint64]chan response
	err     error

	nextID atomic.Uint64
	done   chan struct{}
}

func newClient(w io.Writer, r *bufio.Scanner, log zerolog.Logger) *client {
	c := &client{w: w, log: log, pending: make(map[uint64]chan response), done: make(chan struct{})}
	go c.readLoop(r)
	return c
}

func newScanner(r io.Reader) *bufio.Scanner {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	return s
}

// readReady consumes the startup line written by the bridge script.
func readReady(s *bufio.Scanner) (string, error) {
	if !s.Scan() {
		if err := s.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	var rl readyLine
	if err := json.Unmarshal(s.Bytes(), &rl); err != nil {
		return "", fmt.Errorf("bad ready line %q: %w", s.Text(), err)
	}
	if !rl.Ready {
		return "", fmt.Errorf("bad ready line %q", s.Text())
	}
	return rl.Version, nil
}

func (c *client) readLoop(s *bufio.Scanner) {
	for s.Scan() {
		var resp response
		if err := json.Unmarshal(s.Bytes(), &resp); err != nil || resp.ID == 0 {
			c.log.Debug().Str("event", "interpreter_stray_output").Str("line", clip(s.Text(), 512)).Msg("skipped non-protocol line")
			continue
		}
		c.mu.Lock()
		ch, ok := c.pending[resp.ID]
		delete(c.pending, resp.ID)
		c.mu.Unlock()
		if ok {
			ch <- resp
		}
	}
	err := ErrClosed
	if serr := s.Err(); serr != nil {
		err = fmt.Errorf("%w: %v", ErrClosed, serr)
	}
	c.fail(err)
}

// fail marks the stream dead and wakes every pending caller.
func (c *client) fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return
	}
	c.err = err
	c.pending = nil
	close(c.done)
}

func (c *client) do(ctx context.Context, op string, args any) (response, error) {
	id := c.nextID.Add(1)
	ch := make(chan response, 1)
	c.mu.Lock()
	if c.err != nil {
		err := c.err
		c.mu.Unlock()
		return response{}, err
	}
	c.pending[id] = ch
	c.mu.Unlock()

	b, err := json.Marshal(request{ID: id, Op: op, Args: args})
	if err != nil {
		c.forget(id)
		return response{}, fmt.Errorf("pyrt %s: encode: %w", op, err)
	}
	b = append(b, '\n')
	c.wmu.Lock()
	_, err = c.w.Write(b)
	c.wmu.Unlock()
	if err != nil {
		c.forget(id)
		return response{}, fmt.Errorf("%w: write: %v", ErrClosed, err)
	}

	select {
	case resp := <-ch:
		if resp.Error != "" {
			return resp, &RemoteError{Op: op, Type: resp.ErrorType, Message: resp.Error}
		}
		return resp, nil
	case <-c.done:
		c.mu.Lock()
		err := c.err
		c.mu.Unlock()
		return response{}, err
	case <-ctx.Done():
		// the late reply is dropped by readLoop
		c.forget(id)
		return response{}, ctx.Err()
	}
}

func (c *client) forget(id uint64) {
	c.mu.Lock()
	if c.pending != nil {
		delete(c.pending, id)
	}
	c.mu.Unlock()
}

func (c *client) object(ctx context.Context, op string, args any) (Object, error) {
	resp, err := c.do(ctx, op, args)
	if err != nil {
		return Object{}, err
	}
	if resp.Ref == 0 {
		return Object{}, &RemoteError{Op: op, Message: "reply without reference"}
	}
	return Object{ref: resp.Ref}, nil
}

type valueArgs struct {
	Value any `json:"value"`
}

type itemsArgs struct {
	Items []Ref `json:"items"`
}

type callArgs struct {
	Ref    Ref            `json:"ref"`
	Args   []Ref          `json:"args,omitempty"`
	Kwargs map[string]Ref `json:"kwargs,omitempty"`
}

func refs(items []Object) []Ref {
	out := make([]Ref, len(items))
	for i, it := range items {
		out[i] = it.ref
	}
	return out
}

// floatArg encodes floats as strings so NaN and infinities survive JSON.
func floatArg(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
