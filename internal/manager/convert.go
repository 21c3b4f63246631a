package manager

import (
	"context"
	"encoding/json"
	"errors"

	"kerasbridge/internal/marshal"
	"kerasbridge/internal/pyrt"
	"kerasbridge/pkg/types"
)

// Convert decodes a JSON value, converts it in the interpreter and returns
// the new handle with its repr.
func (m *Manager) Convert(ctx context.Context, raw json.RawMessage) (types.ConvertResponse, error) {
	v, err := decodeValue(raw)
	if err != nil {
		return types.ConvertResponse{}, err
	}
	ip, err := m.rt.Interpreter(ctx)
	if err != nil {
		return types.ConvertResponse{}, err
	}
	obj, err := marshal.New(ip).Convert(ctx, v)
	if err != nil {
		return types.ConvertResponse{}, err
	}
	return m.describe(ctx, obj)
}

func (m *Manager) describe(ctx context.Context, obj pyrt.Object) (types.ConvertResponse, error) {
	ip, err := m.rt.Interpreter(ctx)
	if err != nil {
		return types.ConvertResponse{}, err
	}
	repr, err := ip.Repr(ctx, obj)
	if err != nil {
		return types.ConvertResponse{}, err
	}
	return types.ConvertResponse{Ref: uint64(obj.Ref()), Repr: repr}, nil
}

// decodeValue maps JSON syntax errors to bad requests. Unsupported shapes
// keep their marshal error type.
func decodeValue(raw json.RawMessage) (marshal.Value, error) {
	if len(raw) == 0 {
		return nil, badRequestError{errors.New("missing value")}
	}
	v, err := marshal.FromJSON(raw)
	if err != nil {
		if marshal.IsUnsupportedType(err) {
			return nil, err
		}
		return nil, badRequestError{err}
	}
	return v, nil
}
