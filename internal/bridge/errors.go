package bridge

import (
	"errors"
	"fmt"
)

// Stage names the initialization step that failed.
type Stage string

const (
	StageSetup   Stage = "setup"
	StageInstall Stage = "install"
	StageStart   Stage = "start"
	StageImport  Stage = "import"
)

// InitializationError reports a failure to bring up the runtime or to import
// a module. It is remembered: later calls return the same error.
type InitializationError struct {
	Stage Stage
	// Module is set for StageImport.
	Module string
	Err    error
}

func (e *InitializationError) Error() string {
	if e.Module != "" {
		return fmt.Sprintf("runtime initialization failed (%s %s): %v", e.Stage, e.Module, e.Err)
	}
	return fmt.Sprintf("runtime initialization failed (%s): %v", e.Stage, e.Err)
}

func (e *InitializationError) Unwrap() error { return e.Err }

// IsInitialization reports whether err is an InitializationError.
func IsInitialization(err error) bool {
	var ie *InitializationError
	return errors.As(err, &ie)
}
