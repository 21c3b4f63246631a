package pyrt

import (
	"context"
	"errors"
	"strconv"
)

// Ref is the interpreter-side reference of an object.
type Ref uint64

// Reserved references for the interpreter singletons.
const (
	RefNone  Ref = 1
	RefTrue  Ref = 2
	RefFalse Ref = 3

	firstFreeRef Ref = 4
)

// Object is an opaque handle to a value owned by the interpreter.
// Two Objects are equal only if they reference the same interpreter object.
// The zero Object is not a valid handle.
type Object struct {
	ref Ref
}

// Singleton handles shared by all interpreter implementations.
var (
	NoneObject  = Object{ref: RefNone}
	TrueObject  = Object{ref: RefTrue}
	FalseObject = Object{ref: RefFalse}
)

// ObjectFromRef wraps a raw reference received from an interpreter.
func ObjectFromRef(r Ref) Object { return Object{ref: r} }

// Ref returns the interpreter-side reference.
func (o Object) Ref() Ref { return o.ref }

// IsZero reports whether o is the zero (invalid) handle.
func (o Object) IsZero() bool { return o.ref == 0 }

func (o Object) String() string { return "pyobj#" + strconv.FormatUint(uint64(o.ref), 10) }

// Interpreter is an external Python runtime.
type Interpreter interface {
	// None returns the interpreter's none singleton.
	None() Object
	// Bool returns the interpreter's True or False singleton.
	Bool(v bool) Object
	Int(ctx context.Context, v int64) (Object, error)
	Float(ctx context.Context, v float64) (Object, error)
	Str(ctx context.Context, v string) (Object, error)
	// Tuple builds a fixed-size sequence from items, in order.
	Tuple(ctx context.Context, items []Object) (Object, error)
	// List builds a variable-size sequence from items, in order.
	List(ctx context.Context, items []Object) (Object, error)
	// Import resolves a dotted module path and returns the leaf module.
	Import(ctx context.Context, path string) (Object, error)
	GetAttr(ctx context.Context, obj Object, name string) (Object, error)
	Call(ctx context.Context, fn Object, args []Object, kwargs map[string]Object) (Object, error)
	// Repr renders the interpreter's repr() of obj, for debugging.
	Repr(ctx context.Context, obj Object) (string, error)
	// Version is the interpreter version reported at startup.
	Version() string
	Close() error
}

// ErrClosed is returned by operations on an interpreter that has exited or
// has been closed.
var ErrClosed = errors.New("pyrt: interpreter closed")

// RemoteError is an exception raised inside the interpreter.
type RemoteError struct {
	Op      string
	Type    string
	Message string
}

func (e *RemoteError) Error() string {
	if e.Type == "" {
		return "pyrt " + e.Op + ": " + e.Message
	}
	return "pyrt " + e.Op + ": " + e.Type + ": " + e.Message
}

// IsRemote reports whether err carries an interpreter-side exception.
func IsRemote(err error) bool {
	var re *RemoteError
	return errors.As(err, &re)
}
