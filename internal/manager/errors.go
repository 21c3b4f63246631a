package manager

import (
	"errors"
	"fmt"

	"kerasbridge/internal/bridge"
	"kerasbridge/internal/keras"
	"kerasbridge/internal/marshal"
)

// badRequestError marks invalid caller input (bad JSON, unknown parameters).
type badRequestError struct{ err error }

func (e badRequestError) Error() string { return e.err.Error() }
func (e badRequestError) Unwrap() error { return e.err }

// IsBadRequest reports whether err is caused by caller input (return 400).
func IsBadRequest(err error) bool {
	var br badRequestError
	return errors.As(err, &br) || marshal.IsUnsupportedType(err) || keras.IsParam(err)
}

type objectNotFoundError struct{ id string }

func (e objectNotFoundError) Error() string { return "object not found: " + e.id }

// IsObjectNotFound reports whether err names a missing object id or an
// unknown kind (return 404).
func IsObjectNotFound(err error) bool {
	var nf objectNotFoundError
	return errors.As(err, &nf) || errors.Is(err, keras.ErrUnknownKind)
}

// tooBusyError signals that the object table is full (return 429).
type tooBusyError struct{ limit int }

func (e tooBusyError) Error() string { return fmt.Sprintf("object table full (limit %d)", e.limit) }

// IsTooBusy reports whether err indicates backpressure.
func IsTooBusy(err error) bool {
	var tb tooBusyError
	return errors.As(err, &tb)
}

// IsUnavailable reports whether the runtime could not be brought up (return 503).
func IsUnavailable(err error) bool { return bridge.IsInitialization(err) }
