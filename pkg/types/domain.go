package types

import "encoding/json"

// ObjectInfo describes a Keras object built by the server.
type ObjectInfo struct {
	// Server-assigned identifier.
	// example: obj-1
	ID string `json:"id" example:"obj-1"`
	// Registered kind name.
	// example: GaussianNoise
	Kind string `json:"kind" example:"GaussianNoise"`
	// Interpreter-side reference of the instance.
	// example: 17
	Ref uint64 `json:"ref" example:"17"`
	// Python repr() captured at build time.
	Repr string `json:"repr"`
	// Constructor parameters as passed.
	Params map[string]json.RawMessage `json:"params,omitempty" swaggertype:"object"`
	// Unix time of construction.
	CreatedAt int64 `json:"created_at"`
}
