package pyrt

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// fakePeer plays the Python side of the protocol over in-memory pipes.
type fakePeer struct {
	t       *testing.T
	reqs    *bufio.Scanner
	out     *io.PipeWriter
	next    Ref
	mu      sync.Mutex
	handler func(req map[string]any) map[string]any
}

func newFakePair(t *testing.T, handler func(req map[string]any) map[string]any) (*client, *fakePeer) {
	t.Helper()
	reqR, reqW := io.Pipe()
	respR, respW := io.Pipe()
	p := &fakePeer{t: t, reqs: bufio.NewScanner(reqR), out: respW, next: firstFreeRef, handler: handler}
	c := newClient(reqW, newScanner(respR), zerolog.Nop())
	t.Cleanup(func() { _ = respW.Close(); _ = reqW.Close() })
	return c, p
}

func (p *fakePeer) serve() {
	for p.reqs.Scan() {
		var req map[string]any
		if err := json.Unmarshal(p.reqs.Bytes(), &req); err != nil {
			p.t.Errorf("bad request: %v", err)
			return
		}
		resp := p.handler(req)
		if resp == nil {
			continue
		}
		resp["id"] = req["id"]
		b, _ := json.Marshal(resp)
		if _, err := p.out.Write(append(b, '\n')); err != nil {
			return
		}
	}
}

func (p *fakePeer) alloc() Ref {
	p.mu.Lock()
	defer p.mu.Unlock()
	r := p.next
	p.next++
	return r
}

func TestClientRoutesConcurrentReplies(t *testing.T) {
	var peer *fakePeer
	c, peer := newFakePair(t, func(req map[string]any) map[string]any {
		return map[string]any{"ref": peer.alloc()}
	})
	go peer.serve()

	const n = 32
	seen := make(chan Ref, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			obj, err := c.object(context.Background(), "int", valueArgs{Value: i})
			if err != nil {
				t.Errorf("int: %v", err)
				return
			}
			seen <- obj.Ref()
		}(i)
	}
	wg.Wait()
	close(seen)
	uniq := map[Ref]bool{}
	for r := range seen {
		uniq[r] = true
	}
	if len(uniq) != n {
		t.Fatalf("expected %d distinct refs, got %d", n, len(uniq))
	}
}

func TestClientSkipsStrayOutput(t *testing.T) {
	reqR, reqW := io.Pipe()
	respR, respW := io.Pipe()
	t.Cleanup(func() { _ = respW.Close(); _ = reqW.Close() })
	var logs bytes.Buffer
	c := newClient(reqW, newScanner(respR), zerolog.New(&logs).Level(zerolog.DebugLevel))
	go func() {
		reqs := bufio.NewScanner(reqR)
		for reqs.Scan() {
			var req request
			_ = json.Unmarshal(reqs.Bytes(), &req)
			_, _ = io.WriteString(respW, "I tensorflow/core: oneDNN custom operations are on\n")
			_, _ = io.WriteString(respW, `{"status":"noise"}`+"\n")
			b, _ := json.Marshal(response{ID: req.ID, Ref: 9})
			_, _ = respW.Write(append(b, '\n'))
		}
	}()
	obj, err := c.object(context.Background(), "int", valueArgs{Value: 1})
	if err != nil || obj.Ref() != 9 {
		t.Fatalf("object = %v, %v", obj, err)
	}
	out := logs.String()
	if strings.Count(out, "interpreter_stray_output") != 2 || !strings.Contains(out, "oneDNN") {
		t.Fatalf("stray lines not logged: %s", out)
	}
}

func TestClientRemoteError(t *testing.T) {
	c, peer := newFakePair(t, func(req map[string]any) map[string]any {
		return map[string]any{"error": "No module named 'tensorflow'", "error_type": "ModuleNotFoundError"}
	})
	go peer.serve()
	_, err := c.object(context.Background(), "import", map[string]string{"path": "tensorflow"})
	var re *RemoteError
	if !errors.As(err, &re) || re.Type != "ModuleNotFoundError" || re.Op != "import" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestClientCancelledCallKeepsStreamUsable(t *testing.T) {
	release := make(chan struct{})
	var peer *fakePeer
	c, peer := newFakePair(t, func(req map[string]any) map[string]any {
		if req["op"] == "repr" {
			<-release
		}
		return map[string]any{"ref": peer.alloc()}
	})
	go peer.serve()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := c.do(ctx, "repr", map[string]any{"ref": 4}); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline, got %v", err)
	}
	close(release)
	if _, err := c.object(context.Background(), "int", valueArgs{Value: 1}); err != nil {
		t.Fatalf("stream broken after cancel: %v", err)
	}
}

func TestClientPeerExitFailsPending(t *testing.T) {
	c, peer := newFakePair(t, func(req map[string]any) map[string]any {
		return nil
	})
	go func() {
		peer.reqs.Scan()
		_ = peer.out.Close()
	}()
	_, err := c.object(context.Background(), "int", valueArgs{Value: 1})
	if !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if _, err := c.object(context.Background(), "int", valueArgs{Value: 2}); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed after exit, got %v", err)
	}
}

func TestReadReady(t *testing.T) {
	s := newScanner(strings.NewReader(`{"ready":true,"version":"3.11.4"}` + "\n"))
	v, err := readReady(s)
	if err != nil || v != "3.11.4" {
		t.Fatalf("readReady = %q, %v", v, err)
	}
	if _, err := readReady(newScanner(strings.NewReader("Traceback\n"))); err == nil {
		t.Fatalf("expected error on garbage line")
	}
	if _, err := readReady(newScanner(strings.NewReader(""))); !errors.Is(err, io.EOF) {
		t.Fatalf("expected EOF, got %v", err)
	}
}

func TestFloatArgKeepsSpecialValues(t *testing.T) {
	cases := map[float64]string{0.001: "0.001", 1e21: "1e+21", 3: "3"}
	for in, want := range cases {
		if got := floatArg(in); got != want {
			t.Fatalf("floatArg(%v) = %q, want %q", in, got, want)
		}
	}
}
