package manager

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"kerasbridge/internal/keras"
	"kerasbridge/internal/marshal"
	"kerasbridge/pkg/types"
)

// BuildLayer constructs a registered Keras kind and stores it under a new id.
func (m *Manager) BuildLayer(ctx context.Context, kind string, params map[string]json.RawMessage) (types.ObjectInfo, error) {
	if !keras.Known(kind) {
		return types.ObjectInfo{}, fmt.Errorf("%w: %q", keras.ErrUnknownKind, kind)
	}
	values := make(map[string]marshal.Value, len(params))
	for k, raw := range params {
		v, err := m.decodeParam(raw)
		if err != nil {
			return types.ObjectInfo{}, fmt.Errorf("param %s: %w", k, err)
		}
		values[k] = v
	}
	m.mu.RLock()
	full := len(m.objects) >= m.maxObjects
	m.mu.RUnlock()
	if full {
		return types.ObjectInfo{}, tooBusyError{limit: m.maxObjects}
	}

	obj, err := keras.Build(ctx, m.rt, kind, values)
	if err != nil {
		m.log.Warn().Str("event", "build_error").Str("kind", kind).Err(err).Msg("build failed")
		return types.ObjectInfo{}, err
	}
	desc, err := m.describe(ctx, obj.Object())
	if err != nil {
		return types.ObjectInfo{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.objects) >= m.maxObjects {
		return types.ObjectInfo{}, tooBusyError{limit: m.maxObjects}
	}
	m.seq++
	info := types.ObjectInfo{
		ID:        "obj-" + strconv.Itoa(m.seq),
		Kind:      obj.Kind(),
		Ref:       desc.Ref,
		Repr:      desc.Repr,
		Params:    params,
		CreatedAt: m.now().Unix(),
	}
	m.objects[info.ID] = &entry{info: info, obj: obj}
	m.order = append(m.order, info.ID)
	m.log.Info().Str("event", "object_built").Str("id", info.ID).Str("kind", info.Kind).Uint64("ref", info.Ref).Msg("keras object built")
	return info, nil
}

// Objects returns the built objects in construction order.
func (m *Manager) Objects() []types.ObjectInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]types.ObjectInfo, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.objects[id].info)
	}
	return out
}

// Object returns one built object.
func (m *Manager) Object(id string) (types.ObjectInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.objects[id]
	if !ok {
		return types.ObjectInfo{}, objectNotFoundError{id: id}
	}
	return e.info, nil
}

// decodeParam accepts {"object":"<id>"} as a reference to a built object in
// addition to plain JSON values.
func (m *Manager) decodeParam(raw json.RawMessage) (marshal.Value, error) {
	var ref map[string]json.RawMessage
	if json.Unmarshal(raw, &ref) == nil && len(ref) == 1 {
		if idRaw, ok := ref["object"]; ok {
			var id string
			if err := json.Unmarshal(idRaw, &id); err != nil {
				return nil, badRequestError{fmt.Errorf("object reference: %w", err)}
			}
			return m.wrapper(id)
		}
	}
	return decodeValue(raw)
}

func (m *Manager) wrapper(id string) (keras.Object, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.objects[id]
	if !ok {
		return nil, objectNotFoundError{id: id}
	}
	return e.obj, nil
}

// DeleteObject drops an object from the table. The interpreter object stays
// alive; only the server-side entry is removed.
func (m *Manager) DeleteObject(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[id]; !ok {
		return objectNotFoundError{id: id}
	}
	delete(m.objects, id)
	for i, v := range m.order {
		if v == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}
