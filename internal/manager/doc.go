// Package manager coordinates the runtime bridge for the outer surfaces.
// It is structured into small files by concern:
//
//   - manager.go: Manager type, constructor, Ready/Warmup/Import/Close.
//   - config.go: ManagerConfig and package defaults.
//   - errors.go: error types and helpers (IsBadRequest, IsObjectNotFound, IsTooBusy).
//   - convert.go: JSON value conversion.
//   - objects.go: Keras object construction and the object table.
//   - status_report.go: Status reporting.
//
// The HTTP layer and the CLI use public methods only.
package manager
