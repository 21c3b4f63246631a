package marshal

import "errors"

// UnsupportedTypeError reports a value outside the convertible set.
// It is a programming error and is never coerced away.
type UnsupportedTypeError struct {
	TypeName string
	// Path locates the value inside its container, e.g. "kwargs.noise_shape[1]".
	Path string
}

func (e *UnsupportedTypeError) Error() string {
	msg := "marshal: type is not supported: " + e.TypeName
	if e.Path != "" {
		msg += " at " + e.Path
	}
	return msg
}

// IsUnsupportedType reports whether err is an UnsupportedTypeError.
func IsUnsupportedType(err error) bool {
	var ue *UnsupportedTypeError
	return errors.As(err, &ue)
}

// ErrEmptyHandle is returned when a wrapper has no interpreter object yet.
var ErrEmptyHandle = errors.New("marshal: wrapper has no interpreter object")
