package keras

import "context"

// GaussianNoise applies additive zero-centered Gaussian noise. It is a
// regularization layer, active only at training time.
type GaussianNoise struct{ Base }

// NewGaussianNoise builds layers.GaussianNoise(stddev=stddev).
func NewGaussianNoise(ctx context.Context, r Runtime, stddev float32) (*GaussianNoise, error) {
	l := &GaussianNoise{newBase("GaussianNoise")}
	l.Parameters["stddev"] = stddev
	if err := construct(ctx, r, &l.Base, "layers.GaussianNoise"); err != nil {
		return nil, err
	}
	return l, nil
}

// GaussianDropout applies multiplicative 1-centered Gaussian noise with
// standard deviation sqrt(rate / (1 - rate)).
type GaussianDropout struct{ Base }

// NewGaussianDropout builds layers.GaussianDropout(rate=rate).
func NewGaussianDropout(ctx context.Context, r Runtime, rate float32) (*GaussianDropout, error) {
	l := &GaussianDropout{newBase("GaussianDropout")}
	l.Parameters["rate"] = rate
	if err := construct(ctx, r, &l.Base, "layers.GaussianDropout"); err != nil {
		return nil, err
	}
	return l, nil
}

// AlphaDropout keeps mean and variance of its inputs while dropping.
type AlphaDropout struct{ Base }

// NewAlphaDropout builds layers.AlphaDropout. A nil noiseShape or seed is
// passed as None.
func NewAlphaDropout(ctx context.Context, r Runtime, rate float32, noiseShape []int, seed *int) (*AlphaDropout, error) {
	l := &AlphaDropout{newBase("AlphaDropout")}
	l.Parameters["rate"] = rate
	l.Parameters["noise_shape"] = noiseShape
	l.Parameters["seed"] = seed
	if err := construct(ctx, r, &l.Base, "layers.AlphaDropout"); err != nil {
		return nil, err
	}
	return l, nil
}
