package e2e

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"kerasbridge/internal/bridge"
	"kerasbridge/internal/httpapi"
	"kerasbridge/internal/keras"
	"kerasbridge/internal/manager"
	"kerasbridge/internal/pyrt"
)

// newServer wires the real bridge, manager and router over an in-memory
// interpreter. start, when non-nil, replaces the interpreter factory.
func newServer(t *testing.T, cfg manager.ManagerConfig, start bridge.StartFunc) (*httptest.Server, *bridge.Bridge, *bridge.MemoryPublisher) {
	t.Helper()
	if start == nil {
		start = func(context.Context, string) (pyrt.Interpreter, error) {
			return pyrt.NewMemory(keras.Modules...), nil
		}
	}
	pub := &bridge.MemoryPublisher{}
	b := bridge.New(bridge.Config{Start: start, Publisher: pub})
	cfg.Runtime = b
	mgr := manager.New(cfg)
	srv := httptest.NewServer(httpapi.NewMux(mgr))
	t.Cleanup(func() {
		srv.Close()
		_ = mgr.Close()
	})
	return srv, b, pub
}

func httpGet(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	return do(t, http.MethodGet, url, nil)
}

func httpPostJSON(t *testing.T, url string, payload string) (*http.Response, []byte) {
	t.Helper()
	return do(t, http.MethodPost, url, []byte(payload))
}

func do(t *testing.T, method, url string, payload []byte) (*http.Response, []byte) {
	t.Helper()
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(context.Background(), method, url, body)
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do req: %v", err)
	}
	b, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, b
}
