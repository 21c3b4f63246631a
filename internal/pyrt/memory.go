package pyrt

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// Values stored by Memory and returned from Lookup.
type (
	// Tuple is a fixed-size sequence of handles.
	Tuple []Object
	// List is a variable-size sequence of handles.
	List []Object
	// Module is an imported module.
	Module struct{ Name string }
	// Callable is a module attribute or bound method. Calling it yields an Instance.
	Callable struct {
		Name string
		Self Object
	}
	// Instance records one call of a Callable.
	Instance struct {
		Callee string
		Args   []Object
		Kwargs map[string]Object
	}
)

// Memory is an in-process Interpreter. Only registered modules are
// importable; every attribute of a module resolves to a Callable.
type Memory struct {
	mu      sync.RWMutex
	next    Ref
	objects map[Ref]any
	modules map[string]bool
	imports map[string]Ref
	attrs   map[attrKey]Ref
	calls   int
	closed  bool
}

type attrKey struct {
	recv Ref
	name string
}

// NewMemory returns a Memory interpreter with the given importable modules.
func NewMemory(modules ...string) *Memory {
	m := &Memory{
		next:    firstFreeRef,
		objects: make(map[Ref]any),
		modules: make(map[string]bool),
		imports: make(map[string]Ref),
		attrs:   make(map[attrKey]Ref),
	}
	for _, name := range modules {
		m.Register(name)
	}
	return m
}

// Register makes a dotted module path importable.
func (m *Memory) Register(path string) {
	m.mu.Lock()
	m.modules[path] = true
	m.mu.Unlock()
}

// Lookup returns the Go value behind obj. None maps to nil, True and False
// to the Go booleans, numbers to int64/float64, strings to string, and
// containers to Tuple/List. The second result is false for unknown handles.
func (m *Memory) Lookup(obj Object) (any, bool) {
	switch obj.ref {
	case RefNone:
		return nil, true
	case RefTrue:
		return true, true
	case RefFalse:
		return false, true
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.objects[obj.ref]
	return v, ok
}

// Calls reports how many calls have been performed.
func (m *Memory) Calls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls
}

func (m *Memory) None() Object { return NoneObject }

func (m *Memory) Bool(v bool) Object {
	if v {
		return TrueObject
	}
	return FalseObject
}

func (m *Memory) Int(_ context.Context, v int64) (Object, error) { return m.put(v) }

func (m *Memory) Float(_ context.Context, v float64) (Object, error) { return m.put(v) }

func (m *Memory) Str(_ context.Context, v string) (Object, error) { return m.put(v) }

func (m *Memory) Tuple(_ context.Context, items []Object) (Object, error) {
	if err := m.checkAll("tuple", items); err != nil {
		return Object{}, err
	}
	return m.put(Tuple(append([]Object(nil), items...)))
}

func (m *Memory) List(_ context.Context, items []Object) (Object, error) {
	if err := m.checkAll("list", items); err != nil {
		return Object{}, err
	}
	return m.put(List(append([]Object{}, items...)))
}

func (m *Memory) Import(_ context.Context, path string) (Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return Object{}, ErrClosed
	}
	if ref, ok := m.imports[path]; ok {
		return Object{ref: ref}, nil
	}
	if !m.modules[path] {
		return Object{}, &RemoteError{Op: "import", Type: "ModuleNotFoundError", Message: fmt.Sprintf("No module named '%s'", path)}
	}
	ref := m.alloc(Module{Name: path})
	m.imports[path] = ref
	return Object{ref: ref}, nil
}

func (m *Memory) GetAttr(_ context.Context, obj Object, name string) (Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return Object{}, ErrClosed
	}
	key := attrKey{recv: obj.ref, name: name}
	if ref, ok := m.attrs[key]; ok {
		return Object{ref: ref}, nil
	}
	var attr any
	switch v := m.objects[obj.ref].(type) {
	case Module:
		child := v.Name + "." + name
		if m.modules[child] {
			ref, ok := m.imports[child]
			if !ok {
				ref = m.alloc(Module{Name: child})
				m.imports[child] = ref
			}
			m.attrs[key] = ref
			return Object{ref: ref}, nil
		}
		attr = Callable{Name: child}
	case Instance:
		attr = Callable{Name: v.Callee + "." + name, Self: obj}
	default:
		return Object{}, &RemoteError{Op: "getattr", Type: "AttributeError", Message: fmt.Sprintf("%s has no attribute '%s'", m.typeName(obj), name)}
	}
	ref := m.alloc(attr)
	m.attrs[key] = ref
	return Object{ref: ref}, nil
}

func (m *Memory) Call(_ context.Context, fn Object, args []Object, kwargs map[string]Object) (Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return Object{}, ErrClosed
	}
	c, ok := m.objects[fn.ref].(Callable)
	if !ok {
		return Object{}, &RemoteError{Op: "call", Type: "TypeError", Message: fmt.Sprintf("'%s' object is not callable", m.typeName(fn))}
	}
	for _, a := range args {
		if !m.known(a) {
			return Object{}, unknownRef("call", a)
		}
	}
	kw := make(map[string]Object, len(kwargs))
	for k, v := range kwargs {
		if !m.known(v) {
			return Object{}, unknownRef("call", v)
		}
		kw[k] = v
	}
	m.calls++
	ref := m.alloc(Instance{Callee: c.Name, Args: append([]Object(nil), args...), Kwargs: kw})
	return Object{ref: ref}, nil
}

func (m *Memory) Repr(_ context.Context, obj Object) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return "", ErrClosed
	}
	if !m.known(obj) {
		return "", unknownRef("repr", obj)
	}
	return m.repr(obj), nil
}

func (m *Memory) Version() string { return "memory" }

func (m *Memory) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

func (m *Memory) put(v any) (Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return Object{}, ErrClosed
	}
	return Object{ref: m.alloc(v)}, nil
}

// alloc must be called with mu held.
func (m *Memory) alloc(v any) Ref {
	ref := m.next
	m.next++
	m.objects[ref] = v
	return ref
}

func (m *Memory) checkAll(op string, items []Object) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return ErrClosed
	}
	for _, it := range items {
		if !m.known(it) {
			return unknownRef(op, it)
		}
	}
	return nil
}

func (m *Memory) known(o Object) bool {
	if o.ref >= RefNone && o.ref < firstFreeRef {
		return true
	}
	_, ok := m.objects[o.ref]
	return ok
}

func unknownRef(op string, o Object) error {
	return &RemoteError{Op: op, Type: "LookupError", Message: fmt.Sprintf("unknown reference %d", o.ref)}
}

func (m *Memory) typeName(o Object) string {
	switch o.ref {
	case RefNone:
		return "NoneType"
	case RefTrue, RefFalse:
		return "bool"
	}
	switch m.objects[o.ref].(type) {
	case int64:
		return "int"
	case float64:
		return "float"
	case string:
		return "str"
	case Tuple:
		return "tuple"
	case List:
		return "list"
	case Module:
		return "module"
	case Callable:
		return "function"
	case Instance:
		return "object"
	}
	return "unknown"
}

// repr must be called with mu held for reading.
func (m *Memory) repr(o Object) string {
	switch o.ref {
	case RefNone:
		return "None"
	case RefTrue:
		return "True"
	case RefFalse:
		return "False"
	}
	switch v := m.objects[o.ref].(type) {
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return formatFloat(v)
	case string:
		return "'" + strings.ReplaceAll(v, "'", `\'`) + "'"
	case Tuple:
		if len(v) == 1 {
			return "(" + m.repr(v[0]) + ",)"
		}
		return "(" + m.join(v) + ")"
	case List:
		return "[" + m.join(v) + "]"
	case Module:
		return "<module '" + v.Name + "'>"
	case Callable:
		return "<function " + v.Name + ">"
	case Instance:
		keys := make([]string, 0, len(v.Kwargs))
		for k := range v.Kwargs {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(v.Args)+len(keys))
		for _, a := range v.Args {
			parts = append(parts, m.repr(a))
		}
		for _, k := range keys {
			parts = append(parts, k+"="+m.repr(v.Kwargs[k]))
		}
		return v.Callee + "(" + strings.Join(parts, ", ") + ")"
	}
	return "<unknown>"
}

func (m *Memory) join(items []Object) string {
	parts := make([]string, len(items))
	for i, it := range items {
		parts[i] = m.repr(it)
	}
	return strings.Join(parts, ", ")
}

// formatFloat mimics Python's float repr.
func formatFloat(v float64) string {
	switch {
	case math.IsNaN(v):
		return "nan"
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	}
	s := strconv.FormatFloat(v, 'g', -1, 64)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s
}
