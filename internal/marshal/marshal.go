package marshal

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"kerasbridge/internal/pyrt"
)

// Marshaller converts Values against one interpreter. It holds no mutable
// state and is safe for concurrent use.
type Marshaller struct {
	rt pyrt.Interpreter
}

// New returns a Marshaller for rt.
func New(rt pyrt.Interpreter) *Marshaller { return &Marshaller{rt: rt} }

// Interpreter returns the target interpreter.
func (m *Marshaller) Interpreter() pyrt.Interpreter { return m.rt }

// Convert returns the interpreter handle for v. A nil Value is None.
func (m *Marshaller) Convert(ctx context.Context, v Value) (pyrt.Object, error) {
	if err := check(v, ""); err != nil {
		return pyrt.Object{}, err
	}
	return m.convert(ctx, v)
}

// ToTuple converts values into a fixed-size sequence, preserving order.
func (m *Marshaller) ToTuple(ctx context.Context, values []Value) (pyrt.Object, error) {
	if err := checkAll(values, ""); err != nil {
		return pyrt.Object{}, err
	}
	items, err := m.convertAll(ctx, values)
	if err != nil {
		return pyrt.Object{}, err
	}
	return m.rt.Tuple(ctx, items)
}

// ToList converts values into a variable-size sequence, preserving order.
func (m *Marshaller) ToList(ctx context.Context, values []Value) (pyrt.Object, error) {
	if err := checkAll(values, ""); err != nil {
		return pyrt.Object{}, err
	}
	items, err := m.convertAll(ctx, values)
	if err != nil {
		return pyrt.Object{}, err
	}
	return m.rt.List(ctx, items)
}

// Any converts an untyped Go value; see FromGo for the accepted kinds.
func (m *Marshaller) Any(ctx context.Context, x any) (pyrt.Object, error) {
	v, err := FromGo(x)
	if err != nil {
		return pyrt.Object{}, err
	}
	return m.Convert(ctx, v)
}

// Kwargs converts a parameter mapping into keyword arguments. Every entry is
// validated before any interpreter object is created.
func (m *Marshaller) Kwargs(ctx context.Context, params map[string]any) (map[string]pyrt.Object, error) {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	vals := make([]Value, len(keys))
	for i, k := range keys {
		v, err := fromGo(params[k], "kwargs."+k)
		if err != nil {
			return nil, err
		}
		if err := check(v, "kwargs."+k); err != nil {
			return nil, err
		}
		vals[i] = v
	}
	out := make(map[string]pyrt.Object, len(keys))
	for i, k := range keys {
		obj, err := m.convert(ctx, vals[i])
		if err != nil {
			return nil, fmt.Errorf("kwargs.%s: %w", k, err)
		}
		out[k] = obj
	}
	return out, nil
}

func (m *Marshaller) convert(ctx context.Context, v Value) (pyrt.Object, error) {
	switch x := v.(type) {
	case nil, None:
		return m.rt.None(), nil
	case Bool:
		return m.rt.Bool(bool(x)), nil
	case Int:
		return m.rt.Int(ctx, int64(x))
	case Float32:
		return m.rt.Float(ctx, float64(x))
	case Float64:
		return m.rt.Float(ctx, float64(x))
	case String:
		return m.rt.Str(ctx, string(x))
	case Array:
		items, err := m.convertAll(ctx, x)
		if err != nil {
			return pyrt.Object{}, err
		}
		return m.rt.List(ctx, items)
	case Shape:
		items := make([]pyrt.Object, len(x))
		for i, d := range x {
			obj, err := m.rt.Int(ctx, int64(d))
			if err != nil {
				return pyrt.Object{}, err
			}
			items[i] = obj
		}
		return m.rt.Tuple(ctx, items)
	case Tuple1:
		return m.tuple(ctx, x.A)
	case Tuple2:
		return m.tuple(ctx, x.A, x.B)
	case Tuple3:
		return m.tuple(ctx, x.A, x.B, x.C)
	case Wrapper:
		return x.Object(), nil
	}
	return pyrt.Object{}, &UnsupportedTypeError{TypeName: fmt.Sprintf("%T", v)}
}

func (m *Marshaller) tuple(ctx context.Context, slots ...Value) (pyrt.Object, error) {
	items, err := m.convertAll(ctx, slots)
	if err != nil {
		return pyrt.Object{}, err
	}
	return m.rt.Tuple(ctx, items)
}

func (m *Marshaller) convertAll(ctx context.Context, values []Value) ([]pyrt.Object, error) {
	items := make([]pyrt.Object, len(values))
	for i, v := range values {
		obj, err := m.convert(ctx, v)
		if err != nil {
			return nil, err
		}
		items[i] = obj
	}
	return items, nil
}

// check validates a Value tree without touching the interpreter.
func check(v Value, path string) error {
	switch x := v.(type) {
	case nil, None, Bool, Int, Float32, Float64, String, Shape:
		return nil
	case Array:
		return checkAll(x, path)
	case Tuple1:
		return checkAll([]Value{x.A}, path)
	case Tuple2:
		return checkAll([]Value{x.A, x.B}, path)
	case Tuple3:
		return checkAll([]Value{x.A, x.B, x.C}, path)
	case Wrapper:
		if isNilPointer(x) || x.Object().IsZero() {
			if path == "" {
				return ErrEmptyHandle
			}
			return fmt.Errorf("%s: %w", path, ErrEmptyHandle)
		}
		return nil
	}
	return &UnsupportedTypeError{TypeName: fmt.Sprintf("%T", v), Path: path}
}

func checkAll(values []Value, path string) error {
	for i, v := range values {
		if err := check(v, path+"["+strconv.Itoa(i)+"]"); err != nil {
			return err
		}
	}
	return nil
}
