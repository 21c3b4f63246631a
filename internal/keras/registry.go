package keras

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"kerasbridge/internal/marshal"
)

// Object is a built wrapper.
type Object interface {
	marshal.Wrapper
	Kind() string
	Params() map[string]any
}

// Builder constructs one kind from decoded parameters.
type Builder func(ctx context.Context, r Runtime, p Params) (Object, error)

// ErrUnknownKind is returned by Build for names not in the registry.
var ErrUnknownKind = errors.New("keras: unknown kind")

// ParamError reports a missing, unknown or mistyped builder parameter.
type ParamError struct {
	Kind   string
	Name   string
	Reason string
}

func (e *ParamError) Error() string {
	return fmt.Sprintf("keras: %s parameter %q: %s", e.Kind, e.Name, e.Reason)
}

// IsParam reports whether err is a ParamError.
func IsParam(err error) bool {
	var pe *ParamError
	return errors.As(err, &pe)
}

var builders = map[string]Builder{
	"GaussianNoise": func(ctx context.Context, r Runtime, p Params) (Object, error) {
		stddev, err := p.float("stddev")
		if err != nil {
			return nil, err
		}
		if err := p.done(); err != nil {
			return nil, err
		}
		return built(NewGaussianNoise(ctx, r, stddev))
	},
	"GaussianDropout": func(ctx context.Context, r Runtime, p Params) (Object, error) {
		rate, err := p.float("rate")
		if err != nil {
			return nil, err
		}
		if err := p.done(); err != nil {
			return nil, err
		}
		return built(NewGaussianDropout(ctx, r, rate))
	},
	"AlphaDropout": func(ctx context.Context, r Runtime, p Params) (Object, error) {
		rate, err := p.float("rate")
		if err != nil {
			return nil, err
		}
		shape, err := p.ints("noise_shape")
		if err != nil {
			return nil, err
		}
		seed, err := p.optInt("seed")
		if err != nil {
			return nil, err
		}
		if err := p.done(); err != nil {
			return nil, err
		}
		return built(NewAlphaDropout(ctx, r, rate, shape, seed))
	},
	"MobileNetV1": func(ctx context.Context, r Runtime, p Params) (Object, error) {
		opts, err := p.mobileNet()
		if err != nil {
			return nil, err
		}
		return built(NewMobileNetV1(ctx, r, opts))
	},
	"MobileNetV2": func(ctx context.Context, r Runtime, p Params) (Object, error) {
		opts, err := p.mobileNet()
		if err != nil {
			return nil, err
		}
		return built(NewMobileNetV2(ctx, r, opts))
	},
}

func built[T Object](o T, err error) (Object, error) {
	if err != nil {
		return nil, err
	}
	return o, nil
}

// Kinds returns the registered kind names, sorted.
func Kinds() []string {
	out := make([]string, 0, len(builders))
	for k := range builders {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Known reports whether kind is registered.
func Known(kind string) bool {
	_, ok := builders[kind]
	return ok
}

// Build constructs the wrapper registered under kind.
func Build(ctx context.Context, r Runtime, kind string, params map[string]marshal.Value) (Object, error) {
	b, ok := builders[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	return b(ctx, r, newParams(kind, params))
}
