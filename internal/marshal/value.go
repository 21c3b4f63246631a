// Package marshal converts Go values into interpreter handles.
//
// Value is a closed sum type. Every variant lives in this package except
// wrappers, which opt in by embedding Handle. Convert walks a Value tree
// once to validate it and only then allocates interpreter objects, so an
// unsupported leaf never leaves half-built containers behind.
package marshal

import "kerasbridge/internal/pyrt"

// Value is a convertible value.
type Value interface {
	pyValue()
}

type (
	// None converts to the interpreter's none singleton.
	None struct{}
	Int  int64
	// Float32 converts to a Python float (double precision).
	Float32 float32
	Float64 float64
	String  string
	// Bool converts to the True/False singletons, never a fresh object.
	Bool bool
	// Array converts to a list.
	Array []Value
	// Shape converts to a tuple of its dimensions.
	Shape []int

	Tuple1 struct{ A Value }
	Tuple2 struct{ A, B Value }
	Tuple3 struct{ A, B, C Value }
)

func (None) pyValue()    {}
func (Int) pyValue()     {}
func (Float32) pyValue() {}
func (Float64) pyValue() {}
func (String) pyValue()  {}
func (Bool) pyValue()    {}
func (Array) pyValue()   {}
func (Shape) pyValue()   {}
func (Tuple1) pyValue()  {}
func (Tuple2) pyValue()  {}
func (Tuple3) pyValue()  {}

// Handle carries an interpreter object that converts to itself.
// Types embedding Handle become Values.
type Handle struct {
	obj pyrt.Object
}

func (Handle) pyValue() {}

// Ref wraps an existing interpreter object.
func Ref(obj pyrt.Object) Handle { return Handle{obj: obj} }

// Object returns the carried handle.
func (h Handle) Object() pyrt.Object { return h.obj }

// SetObject replaces the carried handle.
func (h *Handle) SetObject(obj pyrt.Object) { h.obj = obj }

// Wrapper is any Value that carries its own interpreter object.
type Wrapper interface {
	Value
	Object() pyrt.Object
}

// Ints builds an Array of Int.
func Ints(xs ...int) Array {
	out := make(Array, len(xs))
	for i, x := range xs {
		out[i] = Int(x)
	}
	return out
}

// Floats builds an Array of Float64.
func Floats(xs ...float64) Array {
	out := make(Array, len(xs))
	for i, x := range xs {
		out[i] = Float64(x)
	}
	return out
}

// Strings builds an Array of String.
func Strings(xs ...string) Array {
	out := make(Array, len(xs))
	for i, x := range xs {
		out[i] = String(x)
	}
	return out
}
