package manager

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"kerasbridge/internal/bridge"
	"kerasbridge/internal/keras"
	"kerasbridge/internal/pyrt"
)

func newTestManager(t *testing.T, cfg ManagerConfig) (*Manager, *pyrt.Memory) {
	t.Helper()
	mem := pyrt.NewMemory(keras.Modules...)
	b := bridge.New(bridge.Config{Start: func(context.Context, string) (pyrt.Interpreter, error) { return mem, nil }})
	cfg.Runtime = b
	m := New(cfg)
	t.Cleanup(func() { _ = m.Close() })
	return m, mem
}

func failingManager(t *testing.T) *Manager {
	t.Helper()
	b := bridge.New(bridge.Config{Start: func(context.Context, string) (pyrt.Interpreter, error) {
		return nil, errors.New("python3: not found")
	}})
	return New(ManagerConfig{Runtime: b})
}

func TestNewDefaults(t *testing.T) {
	m, _ := newTestManager(t, ManagerConfig{})
	if m.maxObjects != defaultMaxObjects {
		t.Fatalf("maxObjects = %d", m.maxObjects)
	}
	if st := m.Status(); st.Dependency != "tensorflow>=2.0" || st.State != "uninitialized" || st.Modules == nil {
		t.Fatalf("status = %+v", st)
	}
	if m.Ready() {
		t.Fatalf("ready before warmup")
	}
}

func TestWarmupAndStatus(t *testing.T) {
	now := time.Unix(1000, 0)
	m, _ := newTestManager(t, ManagerConfig{Dependency: "tf-nightly", Now: func() time.Time { return now }})
	if err := m.Warmup(context.Background()); err != nil {
		t.Fatalf("warmup: %v", err)
	}
	now = now.Add(90 * time.Second)
	st := m.Status()
	if !m.Ready() || st.State != "ready" {
		t.Fatalf("state = %s", st.State)
	}
	if st.Dependency != "tf-nightly" || st.UptimeSeconds != 90 {
		t.Fatalf("status = %+v", st)
	}
	if len(st.Modules) != 1 || st.Modules[0] != bridge.KerasModule {
		t.Fatalf("modules = %v", st.Modules)
	}
}

func TestConvert(t *testing.T) {
	m, _ := newTestManager(t, ManagerConfig{})
	ctx := context.Background()
	cases := []struct {
		in   string
		repr string
	}{
		{`[1, 2.5, "relu", null, true]`, `[1, 2.5, 'relu', None, True]`},
		{`{"tuple":[224, 224, 3]}`, `(224, 224, 3)`},
		{`{"shape":[7]}`, `(7,)`},
		{`3`, `3`},
	}
	for _, tc := range cases {
		resp, err := m.Convert(ctx, json.RawMessage(tc.in))
		if err != nil {
			t.Fatalf("convert %s: %v", tc.in, err)
		}
		if resp.Repr != tc.repr || resp.Ref == 0 {
			t.Fatalf("convert %s = %+v want repr %s", tc.in, resp, tc.repr)
		}
	}
	resp, _ := m.Convert(ctx, json.RawMessage(`true`))
	if resp.Ref != uint64(pyrt.RefTrue) {
		t.Fatalf("true ref = %d", resp.Ref)
	}
}

func TestConvertBadInput(t *testing.T) {
	m, _ := newTestManager(t, ManagerConfig{})
	for _, in := range []string{``, `[1,`, `{"a":1}`, `{"tuple":[1,2,3,4]}`, `18446744073709551615`} {
		_, err := m.Convert(context.Background(), json.RawMessage(in))
		if !IsBadRequest(err) {
			t.Fatalf("convert %q: expected bad request, got %v", in, err)
		}
	}
}

func TestImport(t *testing.T) {
	m, _ := newTestManager(t, ManagerConfig{})
	ctx := context.Background()
	resp, err := m.Import(ctx, "tensorflow.keras.layers")
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if resp.Repr != "<module 'tensorflow.keras.layers'>" {
		t.Fatalf("repr = %q", resp.Repr)
	}
	if _, err := m.Import(ctx, "nope"); !IsUnavailable(err) {
		t.Fatalf("expected initialization error, got %v", err)
	}
	if _, err := m.Import(ctx, " "); !IsBadRequest(err) {
		t.Fatalf("expected bad request, got %v", err)
	}
}

func TestBuildLayerAndObjects(t *testing.T) {
	m, mem := newTestManager(t, ManagerConfig{})
	ctx := context.Background()
	info, err := m.BuildLayer(ctx, "GaussianNoise", map[string]json.RawMessage{"stddev": json.RawMessage(`0.1`)})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if info.ID != "obj-1" || info.Kind != "GaussianNoise" || info.Ref == 0 {
		t.Fatalf("info = %+v", info)
	}
	if info.Repr != "tensorflow.keras.layers.GaussianNoise(stddev=0.10000000149011612)" {
		t.Fatalf("repr = %q", info.Repr)
	}

	// A built object can be passed by reference.
	info2, err := m.BuildLayer(ctx, "MobileNetV1", map[string]json.RawMessage{
		"input_tensor": json.RawMessage(`{"object":"obj-1"}`),
		"include_top":  json.RawMessage(`false`),
	})
	if err != nil {
		t.Fatalf("build mobilenet: %v", err)
	}
	v, _ := mem.Lookup(pyrt.ObjectFromRef(pyrt.Ref(info2.Ref)))
	inst := v.(pyrt.Instance)
	if inst.Kwargs["input_tensor"].Ref() != pyrt.Ref(info.Ref) {
		t.Fatalf("object reference not passed through: %+v", inst.Kwargs)
	}

	objs := m.Objects()
	if len(objs) != 2 || objs[0].ID != "obj-1" || objs[1].ID != "obj-2" {
		t.Fatalf("objects = %+v", objs)
	}
	if got, err := m.Object("obj-2"); err != nil || got.Kind != "MobileNetV1" {
		t.Fatalf("object = %+v, %v", got, err)
	}
	if err := m.DeleteObject("obj-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := m.Object("obj-1"); !IsObjectNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := m.DeleteObject("obj-1"); !IsObjectNotFound(err) {
		t.Fatalf("second delete: %v", err)
	}
	if st := m.Status(); st.Objects != 1 {
		t.Fatalf("status objects = %d", st.Objects)
	}
}

func TestBuildLayerErrors(t *testing.T) {
	m, _ := newTestManager(t, ManagerConfig{MaxObjects: 1})
	ctx := context.Background()
	cases := []struct {
		name   string
		kind   string
		params map[string]json.RawMessage
		check  func(error) bool
	}{
		{"unknown kind", "Dense", nil, IsObjectNotFound},
		{"bad json", "GaussianNoise", map[string]json.RawMessage{"stddev": json.RawMessage(`{`)}, IsBadRequest},
		{"missing param", "GaussianNoise", nil, IsBadRequest},
		{"unknown param", "GaussianDropout", map[string]json.RawMessage{"rate": json.RawMessage(`0.1`), "x": json.RawMessage(`1`)}, IsBadRequest},
		{"missing object", "MobileNetV2", map[string]json.RawMessage{"input_tensor": json.RawMessage(`{"object":"obj-9"}`)}, IsObjectNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := m.BuildLayer(ctx, tc.kind, tc.params); !tc.check(err) {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
	if _, err := m.BuildLayer(ctx, "GaussianNoise", map[string]json.RawMessage{"stddev": json.RawMessage(`1`)}); err != nil {
		t.Fatalf("build: %v", err)
	}
	if _, err := m.BuildLayer(ctx, "GaussianNoise", map[string]json.RawMessage{"stddev": json.RawMessage(`1`)}); !IsTooBusy(err) {
		t.Fatalf("expected busy error, got %v", err)
	}
	// A full table does not hide an unknown kind.
	if _, err := m.BuildLayer(ctx, "Dense", nil); !IsObjectNotFound(err) || IsTooBusy(err) {
		t.Fatalf("unknown kind on a full table: %v", err)
	}
}

func TestRuntimeFailureIsUnavailable(t *testing.T) {
	m := failingManager(t)
	ctx := context.Background()
	if err := m.Warmup(ctx); !IsUnavailable(err) {
		t.Fatalf("warmup: %v", err)
	}
	if _, err := m.Convert(ctx, json.RawMessage(`1`)); !IsUnavailable(err) {
		t.Fatalf("convert: %v", err)
	}
	if _, err := m.BuildLayer(ctx, "GaussianNoise", map[string]json.RawMessage{"stddev": json.RawMessage(`1`)}); !IsUnavailable(err) {
		t.Fatalf("build: %v", err)
	}
	st := m.Status()
	if st.State != "error" || st.Error == "" {
		t.Fatalf("status = %+v", st)
	}
}
