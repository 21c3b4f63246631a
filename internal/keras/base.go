// Package keras exposes Keras classes as thin proxies over interpreter
// objects. A wrapper records its constructor arguments in Parameters,
// converts them to keyword arguments, calls the Python callable and keeps
// the returned instance handle. Wrappers are marshal Values, so a built
// layer can be passed straight into another call.
package keras

import (
	"context"
	"fmt"
	"strings"

	"kerasbridge/internal/marshal"
	"kerasbridge/internal/pyrt"
)

// Runtime is the part of the bridge wrappers need. *bridge.Bridge implements it.
type Runtime interface {
	Interpreter(ctx context.Context) (pyrt.Interpreter, error)
	Keras(ctx context.Context) (pyrt.Object, error)
}

// Modules lists the Python modules the wrappers in this package resolve.
var Modules = []string{
	"tensorflow",
	"tensorflow.keras",
	"tensorflow.keras.layers",
	"tensorflow.keras.applications",
	"tensorflow.keras.applications.mobilenet",
	"tensorflow.keras.applications.mobilenet_v2",
}

// Base holds the constructor arguments and, after Init, the instance handle.
type Base struct {
	marshal.Handle
	Parameters map[string]any
	kind       string
}

func newBase(kind string) Base {
	return Base{Parameters: make(map[string]any), kind: kind}
}

// Kind is the registry name of the wrapped class.
func (b *Base) Kind() string { return b.kind }

// Params returns a copy of the constructor arguments.
func (b *Base) Params() map[string]any {
	out := make(map[string]any, len(b.Parameters))
	for k, v := range b.Parameters {
		out[k] = v
	}
	return out
}

// Init converts Parameters to keyword arguments, calls callable and stores
// the result. Nothing is called if any parameter fails to convert.
func (b *Base) Init(ctx context.Context, m *marshal.Marshaller, callable pyrt.Object) error {
	kwargs, err := m.Kwargs(ctx, b.Parameters)
	if err != nil {
		return err
	}
	obj, err := m.Interpreter().Call(ctx, callable, nil, kwargs)
	if err != nil {
		return fmt.Errorf("keras: construct %s: %w", b.kind, err)
	}
	b.SetObject(obj)
	return nil
}

// Attr resolves a dotted attribute path below obj, e.g. "layers.Dense".
func Attr(ctx context.Context, rt pyrt.Interpreter, obj pyrt.Object, path string) (pyrt.Object, error) {
	for _, name := range strings.Split(path, ".") {
		next, err := rt.GetAttr(ctx, obj, name)
		if err != nil {
			return pyrt.Object{}, err
		}
		obj = next
	}
	return obj, nil
}

// construct resolves path below tensorflow.keras and initializes b with it.
func construct(ctx context.Context, r Runtime, b *Base, path string) error {
	root, err := r.Keras(ctx)
	if err != nil {
		return err
	}
	ip, err := r.Interpreter(ctx)
	if err != nil {
		return err
	}
	fn, err := Attr(ctx, ip, root, path)
	if err != nil {
		return fmt.Errorf("keras: resolve %s: %w", path, err)
	}
	return b.Init(ctx, marshal.New(ip), fn)
}
