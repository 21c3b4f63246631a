package keras

import (
	"sort"

	"kerasbridge/internal/marshal"
)

// Params is a decoded parameter set for one Build call. Every accessor marks
// its key as consumed; done rejects whatever is left.
type Params struct {
	kind   string
	values map[string]marshal.Value
	used   map[string]bool
}

func newParams(kind string, values map[string]marshal.Value) Params {
	return Params{kind: kind, values: values, used: make(map[string]bool)}
}

func (p Params) errf(name, reason string) error {
	return &ParamError{Kind: p.kind, Name: name, Reason: reason}
}

// get returns the value for name; None counts as absent.
func (p Params) get(name string) (marshal.Value, bool) {
	p.used[name] = true
	v, ok := p.values[name]
	if !ok || v == nil {
		return nil, false
	}
	if _, none := v.(marshal.None); none {
		return nil, false
	}
	return v, true
}

func (p Params) float(name string) (float32, error) {
	v, ok := p.get(name)
	if !ok {
		return 0, p.errf(name, "required")
	}
	return p.asFloat(name, v)
}

func (p Params) floatOr(name string, def float32) (float32, error) {
	v, ok := p.get(name)
	if !ok {
		return def, nil
	}
	return p.asFloat(name, v)
}

func (p Params) asFloat(name string, v marshal.Value) (float32, error) {
	switch x := v.(type) {
	case marshal.Int:
		return float32(x), nil
	case marshal.Float32:
		return float32(x), nil
	case marshal.Float64:
		return float32(x), nil
	}
	return 0, p.errf(name, "expected a number")
}

func (p Params) intOr(name string, def int) (int, error) {
	v, ok := p.get(name)
	if !ok {
		return def, nil
	}
	n, ok := v.(marshal.Int)
	if !ok {
		return 0, p.errf(name, "expected an integer")
	}
	return int(n), nil
}

func (p Params) optInt(name string) (*int, error) {
	v, ok := p.get(name)
	if !ok {
		return nil, nil
	}
	n, ok := v.(marshal.Int)
	if !ok {
		return nil, p.errf(name, "expected an integer")
	}
	i := int(n)
	return &i, nil
}

func (p Params) boolOr(name string, def bool) (bool, error) {
	v, ok := p.get(name)
	if !ok {
		return def, nil
	}
	b, ok := v.(marshal.Bool)
	if !ok {
		return false, p.errf(name, "expected a boolean")
	}
	return bool(b), nil
}

// optString keeps def when name is missing and maps an explicit None to nil.
func (p Params) optString(name string, def *string) (*string, error) {
	p.used[name] = true
	v, ok := p.values[name]
	if !ok {
		return def, nil
	}
	switch x := v.(type) {
	case nil, marshal.None:
		return nil, nil
	case marshal.String:
		s := string(x)
		return &s, nil
	}
	return nil, p.errf(name, "expected a string or null")
}

// ints accepts a shape, a list or a tuple of integers. Absent means nil.
func (p Params) ints(name string) ([]int, error) {
	v, ok := p.get(name)
	if !ok {
		return nil, nil
	}
	var items []marshal.Value
	switch x := v.(type) {
	case marshal.Shape:
		return append([]int{}, x...), nil
	case marshal.Array:
		items = x
	case marshal.Tuple1:
		items = []marshal.Value{x.A}
	case marshal.Tuple2:
		items = []marshal.Value{x.A, x.B}
	case marshal.Tuple3:
		items = []marshal.Value{x.A, x.B, x.C}
	default:
		return nil, p.errf(name, "expected a list of integers")
	}
	out := make([]int, len(items))
	for i, it := range items {
		n, ok := it.(marshal.Int)
		if !ok {
			return nil, p.errf(name, "expected a list of integers")
		}
		out[i] = int(n)
	}
	return out, nil
}

func (p Params) value(name string) marshal.Value {
	v, _ := p.get(name)
	return v
}

func (p Params) done() error {
	var extra []string
	for k := range p.values {
		if !p.used[k] {
			extra = append(extra, k)
		}
	}
	if len(extra) == 0 {
		return nil
	}
	sort.Strings(extra)
	return p.errf(extra[0], "unknown parameter")
}

func (p Params) mobileNet() (MobileNetOptions, error) {
	o := DefaultMobileNetOptions()
	shape, err := p.ints("input_shape")
	if err != nil {
		return o, err
	}
	if shape != nil {
		o.InputShape = marshal.Shape(shape)
	}
	if o.Alpha, err = p.floatOr("alpha", o.Alpha); err != nil {
		return o, err
	}
	if o.DepthMultiplier, err = p.intOr("depth_multiplier", o.DepthMultiplier); err != nil {
		return o, err
	}
	if o.Dropout, err = p.floatOr("dropout", o.Dropout); err != nil {
		return o, err
	}
	if o.IncludeTop, err = p.boolOr("include_top", o.IncludeTop); err != nil {
		return o, err
	}
	if o.Weights, err = p.optString("weights", o.Weights); err != nil {
		return o, err
	}
	o.InputTensor = p.value("input_tensor")
	if o.Pooling, err = p.optString("pooling", o.Pooling); err != nil {
		return o, err
	}
	if o.Classes, err = p.intOr("classes", o.Classes); err != nil {
		return o, err
	}
	return o, p.done()
}
