package e2e

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"kerasbridge/internal/bridge"
	"kerasbridge/internal/keras"
	"kerasbridge/internal/manager"
	"kerasbridge/internal/pyrt"
	"kerasbridge/pkg/types"
)

func TestE2E_Flow(t *testing.T) {
	srv, _, pub := newServer(t, manager.ManagerConfig{}, nil)

	resp, body := httpGet(t, srv.URL+"/healthz")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/healthz %d %s", resp.StatusCode, body)
	}
	// Nothing starts the interpreter until it is needed.
	if resp, _ = httpGet(t, srv.URL+"/readyz"); resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("/readyz initial %d", resp.StatusCode)
	}

	resp, body = httpPostJSON(t, srv.URL+"/layers", `{"kind":"GaussianNoise","params":{"stddev":0.5}}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("/layers %d %s", resp.StatusCode, body)
	}
	var noise types.ObjectInfo
	if err := json.Unmarshal(body, &noise); err != nil {
		t.Fatalf("decode: %v body=%s", err, body)
	}
	if noise.ID != "obj-1" || noise.Repr != "tensorflow.keras.layers.GaussianNoise(stddev=0.5)" {
		t.Fatalf("object = %+v", noise)
	}

	resp, body = httpPostJSON(t, srv.URL+"/layers", `{"kind":"MobileNetV1","params":{"include_top":false,"input_tensor":{"object":"obj-1"},"input_shape":{"shape":[128,128,3]}}}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("/layers mobilenet %d %s", resp.StatusCode, body)
	}

	if resp, _ = httpGet(t, srv.URL+"/readyz"); resp.StatusCode != http.StatusOK {
		t.Fatalf("/readyz after build %d", resp.StatusCode)
	}

	resp, body = httpGet(t, srv.URL+"/status")
	var st types.StatusResponse
	if err := json.Unmarshal(body, &st); err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("/status %d %s", resp.StatusCode, body)
	}
	if st.State != "ready" || st.Objects != 2 || st.InterpreterVersion == "" {
		t.Fatalf("status = %+v", st)
	}

	resp, body = httpGet(t, srv.URL+"/objects")
	var objs types.ObjectsResponse
	if err := json.Unmarshal(body, &objs); err != nil || len(objs.Objects) != 2 {
		t.Fatalf("/objects %d %s", resp.StatusCode, body)
	}

	if resp, _ = do(t, http.MethodDelete, srv.URL+"/objects/obj-1", nil); resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete %d", resp.StatusCode)
	}
	if resp, _ = httpGet(t, srv.URL+"/objects/obj-1"); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("deleted object %d", resp.StatusCode)
	}

	names := pub.Names()
	if len(names) < 2 || names[0] != bridge.EventInitStart || names[1] != bridge.EventInitReady {
		t.Fatalf("events = %v", names)
	}
}

func TestE2E_ConcurrentFirstUseStartsOnce(t *testing.T) {
	var starts atomic.Int32
	mem := pyrt.NewMemory(keras.Modules...)
	srv, _, _ := newServer(t, manager.ManagerConfig{}, func(context.Context, string) (pyrt.Interpreter, error) {
		starts.Add(1)
		return mem, nil
	})

	const n = 12
	var wg sync.WaitGroup
	codes := make([]int, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			body := fmt.Sprintf(`{"kind":"GaussianDropout","params":{"rate":0.%d}}`, i+1)
			resp, err := http.Post(srv.URL+"/layers", "application/json", strings.NewReader(body))
			if err != nil {
				return
			}
			_ = resp.Body.Close()
			codes[i] = resp.StatusCode
		}(i)
	}
	wg.Wait()
	for i, c := range codes {
		if c != http.StatusCreated {
			t.Fatalf("request %d: status %d", i, c)
		}
	}
	if got := starts.Load(); got != 1 {
		t.Fatalf("interpreter started %d times", got)
	}
}

func TestE2E_Backpressure429(t *testing.T) {
	srv, _, _ := newServer(t, manager.ManagerConfig{MaxObjects: 1}, nil)
	body := `{"kind":"GaussianNoise","params":{"stddev":1}}`
	if resp, b := httpPostJSON(t, srv.URL+"/layers", body); resp.StatusCode != http.StatusCreated {
		t.Fatalf("first build %d %s", resp.StatusCode, b)
	}
	resp, b := httpPostJSON(t, srv.URL+"/layers", body)
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d %s", resp.StatusCode, b)
	}
	var er types.ErrorResponse
	if err := json.Unmarshal(b, &er); err != nil || er.Code != http.StatusTooManyRequests {
		t.Fatalf("error body = %s", b)
	}
	// Releasing an object frees a slot.
	do(t, http.MethodDelete, srv.URL+"/objects/obj-1", nil)
	if resp, b := httpPostJSON(t, srv.URL+"/layers", body); resp.StatusCode != http.StatusCreated {
		t.Fatalf("build after delete %d %s", resp.StatusCode, b)
	}
}

func TestE2E_ErrorMapping(t *testing.T) {
	srv, _, _ := newServer(t, manager.ManagerConfig{}, nil)
	cases := []struct {
		path string
		body string
		want int
	}{
		{"/layers", `{"kind":"Dense"}`, http.StatusNotFound},
		{"/layers", `{"kind":"GaussianNoise","params":{"stddev":"loud"}}`, http.StatusBadRequest},
		{"/layers", `{"kind":"GaussianNoise","params":{"stddev":1,"mean":0}}`, http.StatusBadRequest},
		{"/layers", `{"params":{}}`, http.StatusBadRequest},
		{"/convert", `{"value":{"tuple":[1,2,3,4,5]}}`, http.StatusBadRequest},
		{"/convert", `{"value":`, http.StatusBadRequest},
		{"/import", `{"module":"keras_nonexistent"}`, http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		resp, b := httpPostJSON(t, srv.URL+tc.path, tc.body)
		if resp.StatusCode != tc.want {
			t.Fatalf("POST %s %s: status %d want %d (%s)", tc.path, tc.body, resp.StatusCode, tc.want, b)
		}
	}
}

func TestE2E_StartFailureIsSticky(t *testing.T) {
	var starts atomic.Int32
	srv, b, _ := newServer(t, manager.ManagerConfig{}, func(context.Context, string) (pyrt.Interpreter, error) {
		starts.Add(1)
		return nil, errors.New("exec: \"python3\": executable file not found in $PATH")
	})
	for i := 0; i < 3; i++ {
		resp, body := httpPostJSON(t, srv.URL+"/warmup", `{}`)
		if resp.StatusCode != http.StatusServiceUnavailable {
			t.Fatalf("warmup %d: %d %s", i, resp.StatusCode, body)
		}
	}
	if starts.Load() != 1 {
		t.Fatalf("start attempted %d times", starts.Load())
	}
	if b.State() != bridge.StateError {
		t.Fatalf("state = %v", b.State())
	}
	_, body := httpGet(t, srv.URL+"/status")
	var st types.StatusResponse
	if err := json.Unmarshal(body, &st); err != nil || st.State != "error" || st.Error == "" {
		t.Fatalf("status = %s", body)
	}
}
