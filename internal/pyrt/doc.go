// Package pyrt is the boundary to an external Python interpreter.
//
// An Interpreter builds interpreter-native values and hands back opaque
// Object handles. Callers never look inside a handle; they only pass it back
// into the interpreter (as a call argument, a tuple slot, an attribute
// receiver and so on).
//
// Implementations:
//
//   - Subprocess: spawns python3 with an embedded bridge script and talks
//     newline-delimited JSON over stdin/stdout. The Python side owns an
//     object table keyed by reference.
//   - Memory: in-process reference interpreter. Used by tests and by the
//     daemon's dry-run mode. Lookup exposes stored values for inspection.
//
// None, True and False use reserved references in every implementation, so
// two handles to True are identical, not merely equal.
package pyrt
