package classify

import (
	"fmt"
	"math"
)

// decodeOutputs converts raw blob values into a Result using the
// descriptor's output heads.
func decodeOutputs(outputs []OutputSpec, raw map[string][]float32) (*Result, error) {
	fields := make([]Field, 0, len(outputs))
	for _, o := range outputs {
		vals, ok := raw[o.Blob]
		if !ok {
			return nil, fmt.Errorf("missing output blob %q", o.Blob)
		}
		if len(vals) != len(o.Labels) {
			return nil, fmt.Errorf("output %q has %d values for %d labels", o.Blob, len(vals), len(o.Labels))
		}
		probs, err := activate(o.Activation, vals)
		if err != nil {
			return nil, fmt.Errorf("output %q: %w", o.Blob, err)
		}
		best := 0
		for i, p := range probs {
			if p > probs[best] {
				best = i
			}
		}
		fields = append(fields, Field{
			Name:       o.Field,
			Label:      o.Labels[best],
			Confidence: probs[best],
		})
	}
	return NewResult(fields...)
}

func activate(kind string, vals []float32) ([]float64, error) {
	out := make([]float64, len(vals))
	for i, v := range vals {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("non-finite value at %d", i)
		}
		out[i] = f
	}
	switch kind {
	case ActivationSoftmax:
		peak := out[0]
		for _, v := range out {
			peak = max(peak, v)
		}
		var sum float64
		for i, v := range out {
			out[i] = math.Exp(v - peak)
			sum += out[i]
		}
		for i := range out {
			out[i] /= sum
		}
	case ActivationSigmoid:
		for i, v := range out {
			out[i] = 1 / (1 + math.Exp(-v))
		}
	case ActivationNone:
		for i, v := range out {
			out[i] = clamp01(v)
		}
	default:
		return nil, fmt.Errorf("unknown activation %q", kind)
	}
	return out, nil
}
