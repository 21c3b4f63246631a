package keras

import (
	"context"

	"kerasbridge/internal/marshal"
)

// MobileNetOptions are the application constructor arguments. Start from
// DefaultMobileNetOptions; a nil InputShape, InputTensor, Weights or Pooling
// is None. Weights None means random initialization.
type MobileNetOptions struct {
	InputShape      marshal.Shape
	Alpha           float32
	DepthMultiplier int
	Dropout         float32
	IncludeTop      bool
	Weights         *string
	InputTensor     marshal.Value
	Pooling         *string
	Classes         int
}

// DefaultMobileNetOptions returns the Keras defaults: ImageNet weights,
// 1000 classes, full width.
func DefaultMobileNetOptions() MobileNetOptions {
	return MobileNetOptions{
		Alpha:           1,
		DepthMultiplier: 1,
		Dropout:         1e-3,
		IncludeTop:      true,
		Weights:         StringPtr("imagenet"),
		Pooling:         StringPtr("None"),
		Classes:         1000,
	}
}

func (o MobileNetOptions) apply(b *Base) {
	if o.InputShape != nil {
		b.Parameters["input_shape"] = o.InputShape
	} else {
		b.Parameters["input_shape"] = nil
	}
	b.Parameters["alpha"] = o.Alpha
	b.Parameters["depth_multiplier"] = o.DepthMultiplier
	b.Parameters["dropout"] = o.Dropout
	b.Parameters["include_top"] = o.IncludeTop
	b.Parameters["weights"] = optionalString(o.Weights)
	b.Parameters["input_tensor"] = o.InputTensor
	b.Parameters["pooling"] = optionalString(o.Pooling)
	b.Parameters["classes"] = o.Classes
}

// StringPtr returns a pointer to s, for the optional string options.
func StringPtr(s string) *string { return &s }

func optionalString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

// MobileNetV1 is applications.mobilenet.MobileNet. The default input size
// is 224x224 and only channels_last is supported.
type MobileNetV1 struct{ Base }

func NewMobileNetV1(ctx context.Context, r Runtime, opts MobileNetOptions) (*MobileNetV1, error) {
	n := &MobileNetV1{newBase("MobileNetV1")}
	opts.apply(&n.Base)
	if err := construct(ctx, r, &n.Base, "applications.mobilenet.MobileNet"); err != nil {
		return nil, err
	}
	return n, nil
}

// MobileNetV2 is applications.mobilenet_v2.MobileNetV2.
type MobileNetV2 struct{ Base }

func NewMobileNetV2(ctx context.Context, r Runtime, opts MobileNetOptions) (*MobileNetV2, error) {
	n := &MobileNetV2{newBase("MobileNetV2")}
	opts.apply(&n.Base)
	if err := construct(ctx, r, &n.Base, "applications.mobilenet_v2.MobileNetV2"); err != nil {
		return nil, err
	}
	return n, nil
}
