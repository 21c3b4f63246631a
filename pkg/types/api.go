package types

import "encoding/json"

// ConvertRequest asks the server to convert a JSON value into an
// interpreter object.
type ConvertRequest struct {
	// Value to convert. Objects are accepted only as {"tuple":[...]} or {"shape":[...]}.
	// example: {"tuple":[224,224,3]}
	Value json.RawMessage `json:"value" swaggertype:"object"`
}

// ConvertResponse describes the created interpreter object.
type ConvertResponse struct {
	// Interpreter-side reference of the object.
	// example: 42
	Ref uint64 `json:"ref" example:"42"`
	// Python repr() of the object.
	// example: (224, 224, 3)
	Repr string `json:"repr" example:"(224, 224, 3)"`
}

// LayerRequest builds a registered Keras class.
type LayerRequest struct {
	// Registered kind name.
	// example: GaussianNoise
	Kind string `json:"kind" example:"GaussianNoise"`
	// Constructor parameters; each value follows the ConvertRequest rules.
	// example: {"stddev":0.1}
	Params map[string]json.RawMessage `json:"params,omitempty" swaggertype:"object"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: invalid JSON body
	Error string `json:"error" example:"invalid JSON body"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
}

// StatusResponse reports the runtime for /status.
type StatusResponse struct {
	// Runtime state: uninitialized, initializing, ready, error or closed.
	// example: ready
	State string `json:"state" example:"ready"`
	// Sticky initialization error, if any.
	Error string `json:"error,omitempty"`
	// Interpreter binary in use.
	// example: /opt/venv/bin/python
	Python string `json:"python,omitempty" example:"/opt/venv/bin/python"`
	// example: 3.11.4
	PythonVersion string `json:"python_version,omitempty" example:"3.11.4"`
	// Version reported by the running interpreter.
	InterpreterVersion string `json:"interpreter_version,omitempty"`
	// Dependency ensured before start.
	// example: tensorflow>=2.0
	Dependency string `json:"dependency" example:"tensorflow>=2.0"`
	// Imported modules, sorted.
	Modules []string `json:"modules"`
	// Number of objects built through /layers.
	Objects int `json:"objects"`
	// Initialization time in milliseconds.
	InitMillis int64 `json:"init_ms,omitempty"`
	// Seconds since the server started.
	UptimeSeconds int64 `json:"uptime_seconds"`
}

// ObjectsResponse wraps GET /objects.
type ObjectsResponse struct {
	Objects []ObjectInfo `json:"objects"`
}

// KindsResponse lists the buildable kinds.
type KindsResponse struct {
	// example: ["AlphaDropout","GaussianNoise"]
	Kinds []string `json:"kinds"`
}
