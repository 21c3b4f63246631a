package marshal

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"reflect"
	"strconv"
	"strings"

	"kerasbridge/internal/pyrt"
)

// FromGo lowers an untyped Go value into a Value.
//
// Accepted: nil, Value, pyrt.Object, bool, string, signed integers,
// uint8/uint16/uint32, float32, float64, pointers to any of these (nil means
// None) and slices or arrays of accepted kinds (converted to lists).
// Anything else is an UnsupportedTypeError naming the Go type.
func FromGo(x any) (Value, error) { return fromGo(x, "") }

func fromGo(x any, path string) (Value, error) {
	switch v := x.(type) {
	case nil:
		return None{}, nil
	case Value:
		if isNilPointer(v) {
			return None{}, nil
		}
		return v, nil
	case pyrt.Object:
		return Ref(v), nil
	case bool:
		return Bool(v), nil
	case string:
		return String(v), nil
	case int:
		return Int(v), nil
	case int8:
		return Int(v), nil
	case int16:
		return Int(v), nil
	case int32:
		return Int(v), nil
	case int64:
		return Int(v), nil
	case uint8:
		return Int(v), nil
	case uint16:
		return Int(v), nil
	case uint32:
		return Int(v), nil
	case float32:
		return Float32(v), nil
	case float64:
		return Float64(v), nil
	}

	rv := reflect.ValueOf(x)
	switch rv.Kind() {
	case reflect.Pointer:
		if rv.IsNil() {
			return None{}, nil
		}
		return fromGo(rv.Elem().Interface(), path)
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return None{}, nil
		}
		out := make(Array, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			el, err := fromGo(rv.Index(i).Interface(), path+"["+strconv.Itoa(i)+"]")
			if err != nil {
				return nil, err
			}
			out[i] = el
		}
		return out, nil
	}
	return nil, &UnsupportedTypeError{TypeName: fmt.Sprintf("%T", x), Path: path}
}

// FromJSON decodes a JSON document into a Value.
//
// Integers become Int and other numbers Float64. Arrays become Array.
// Objects are only accepted in two tagged forms: {"tuple": [...]} with one
// to three items, and {"shape": [ints]}.
func FromJSON(raw []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("marshal: invalid JSON: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("marshal: invalid JSON: trailing data")
	}
	return fromJSON(doc, "")
}

func fromJSON(doc any, path string) (Value, error) {
	switch v := doc.(type) {
	case nil:
		return None{}, nil
	case bool:
		return Bool(v), nil
	case string:
		return String(v), nil
	case json.Number:
		s := v.String()
		if !strings.ContainsAny(s, ".eE") {
			n, err := v.Int64()
			if err != nil {
				return nil, fmt.Errorf("marshal: integer %s out of int64 range at %s", s, path)
			}
			return Int(n), nil
		}
		f, err := v.Float64()
		if err != nil {
			return nil, fmt.Errorf("marshal: bad number %q at %s", s, path)
		}
		return Float64(f), nil
	case []any:
		out := make(Array, len(v))
		for i, el := range v {
			x, err := fromJSON(el, path+"["+strconv.Itoa(i)+"]")
			if err != nil {
				return nil, err
			}
			out[i] = x
		}
		return out, nil
	case map[string]any:
		return taggedJSON(v, path)
	}
	return nil, &UnsupportedTypeError{TypeName: fmt.Sprintf("%T", doc), Path: path}
}

func taggedJSON(obj map[string]any, path string) (Value, error) {
	if len(obj) != 1 {
		return nil, &UnsupportedTypeError{TypeName: "object", Path: path}
	}
	if raw, ok := obj["tuple"]; ok {
		items, ok := raw.([]any)
		if !ok {
			return nil, &UnsupportedTypeError{TypeName: "object", Path: path + ".tuple"}
		}
		slots := make([]Value, len(items))
		for i, el := range items {
			x, err := fromJSON(el, path+".tuple["+strconv.Itoa(i)+"]")
			if err != nil {
				return nil, err
			}
			slots[i] = x
		}
		switch len(slots) {
		case 1:
			return Tuple1{A: slots[0]}, nil
		case 2:
			return Tuple2{A: slots[0], B: slots[1]}, nil
		case 3:
			return Tuple3{A: slots[0], B: slots[1], C: slots[2]}, nil
		}
		return nil, &UnsupportedTypeError{TypeName: "tuple" + strconv.Itoa(len(slots)), Path: path}
	}
	if raw, ok := obj["shape"]; ok {
		dims, ok := raw.([]any)
		if !ok {
			return nil, &UnsupportedTypeError{TypeName: "object", Path: path + ".shape"}
		}
		shape := make(Shape, len(dims))
		for i, d := range dims {
			n, ok := d.(json.Number)
			if !ok {
				return nil, &UnsupportedTypeError{TypeName: fmt.Sprintf("%T", d), Path: path + ".shape[" + strconv.Itoa(i) + "]"}
			}
			v, err := n.Int64()
			if err != nil {
				return nil, fmt.Errorf("marshal: shape dimension %q is not an integer", n.String())
			}
			shape[i] = int(v)
		}
		return shape, nil
	}
	return nil, &UnsupportedTypeError{TypeName: "object", Path: path}
}

func isNilPointer(x any) bool {
	rv := reflect.ValueOf(x)
	return rv.Kind() == reflect.Pointer && rv.IsNil()
}
