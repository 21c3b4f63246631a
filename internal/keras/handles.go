package keras

import (
	"context"

	"kerasbridge/internal/marshal"
	"kerasbridge/internal/pyrt"
)

// StringOrInstance is an argument Keras accepts either as a name or as an
// object, such as an optimizer or an initializer.
type StringOrInstance struct{ marshal.Handle }

// StringArg converts s in the interpreter.
func StringArg(ctx context.Context, m *marshal.Marshaller, s string) (StringOrInstance, error) {
	obj, err := m.Convert(ctx, marshal.String(s))
	if err != nil {
		return StringOrInstance{}, err
	}
	return StringOrInstance{marshal.Ref(obj)}, nil
}

// InstanceArg reuses the handle of an already built wrapper.
func InstanceArg(w marshal.Wrapper) StringOrInstance {
	return StringOrInstance{marshal.Ref(w.Object())}
}

// Function is a Keras backend function handle.
type Function struct{ marshal.Handle }

func NewFunction(obj pyrt.Object) Function { return Function{marshal.Ref(obj)} }

// Iterator is a data iterator handle.
type Iterator struct{ marshal.Handle }

func NewIterator(obj pyrt.Object) Iterator { return Iterator{marshal.Ref(obj)} }

// DirectoryIterator is an image directory iterator handle.
type DirectoryIterator struct{ marshal.Handle }

func NewDirectoryIterator(obj pyrt.Object) DirectoryIterator {
	return DirectoryIterator{marshal.Ref(obj)}
}
