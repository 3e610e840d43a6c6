// Package features turns recordings into the fixed-shape tensors a
// classifier backend declares.
//
// The transform is deterministic: scale integer samples to [-1, 1], mix
// down to mono, resample to the backend rate, normalize amplitude, then
// truncate or zero-pad at the end to the exact length the shape implies.
// Filterbank backends additionally get log mel frames, optionally CMVN
// normalized, flattened row-major.
package features

import (
	"math"

	"github.com/Laudkyle/NaviAudio/pkg/audio/fbank"
	"github.com/Laudkyle/NaviAudio/pkg/audio/pcm"
	"github.com/Laudkyle/NaviAudio/pkg/audio/resampler"
	"github.com/Laudkyle/NaviAudio/pkg/classify"
)

const maxChannels = 8

// Extractor converts recordings for one backend contract. It is safe for
// concurrent use.
type Extractor struct {
	spec    classify.FeatureSpec
	shape   classify.Shape
	samples int // mono samples after padding
	frames  int // fbank only
	fbank   *fbank.Extractor
}

// New validates that spec and shape describe a consistent contract.
// Inconsistent contracts fail with ShapeMismatch.
func New(spec classify.FeatureSpec, shape classify.Shape) (*Extractor, error) {
	spec = spec.WithDefaults()
	if err := spec.Validate(); err != nil {
		return nil, classify.NewError(classify.ShapeMismatch, "features.new", err)
	}
	if !shape.Valid() {
		return nil, classify.Errorf(classify.ShapeMismatch, "features.new", "invalid shape %v", shape)
	}
	e := &Extractor{spec: spec, shape: shape.Clone()}

	switch spec.Kind {
	case classify.FeatureWaveform:
		e.samples = shape.Size()
	case classify.FeatureFbank:
		mels := shape[len(shape)-1]
		if mels != spec.Fbank.NumMels {
			return nil, classify.Errorf(classify.ShapeMismatch, "features.new",
				"shape %v ends in %d but filterbank has %d mels", shape, mels, spec.Fbank.NumMels)
		}
		fb, err := fbank.New(spec.Fbank)
		if err != nil {
			return nil, classify.NewError(classify.ShapeMismatch, "features.new", err)
		}
		e.fbank = fb
		e.frames = shape.Size() / mels
		e.samples = spec.Fbank.SamplesForFrames(e.frames)
	}
	return e, nil
}

// Spec returns the effective feature spec.
func (e *Extractor) Spec() classify.FeatureSpec { return e.spec }

// Shape returns the output tensor shape.
func (e *Extractor) Shape() classify.Shape { return e.shape.Clone() }

// Samples returns the number of mono samples at the target rate that the
// recording is truncated or padded to.
func (e *Extractor) Samples() int { return e.samples }

// Extract converts rec into a tensor whose shape equals Shape().
func (e *Extractor) Extract(rec *pcm.Recording) (*classify.Tensor, error) {
	if rec == nil || rec.Frames() == 0 || rec.Duration() <= 0 {
		return nil, classify.Errorf(classify.EmptyRecording, "features.extract", "recording has no audio")
	}
	if err := checkFormat(rec); err != nil {
		return nil, err
	}

	mono := resampler.Downmix(toFloat(rec), rec.Channels())
	signal, err := resampler.Resample(mono, rec.SampleRate(), e.spec.SampleRate)
	if err != nil {
		return nil, classify.NewError(classify.UnsupportedFormat, "features.resample", err)
	}
	normalize(signal, e.spec)
	signal = fit(signal, e.samples)

	var data []float32
	switch e.spec.Kind {
	case classify.FeatureFbank:
		frames := e.fbank.Extract(signal)
		if e.spec.CMVN {
			fbank.CMVN(frames)
		}
		data = fbank.Flatten(frames)
	default:
		data = make([]float32, len(signal))
		for i, s := range signal {
			data[i] = float32(s)
		}
	}
	return classify.NewTensor(e.shape, data, rec)
}

func checkFormat(rec *pcm.Recording) error {
	switch rec.BitDepth() {
	case 8, 16, 24, 32:
	default:
		return classify.Errorf(classify.UnsupportedFormat, "features.extract", "%d-bit samples", rec.BitDepth())
	}
	if rec.Channels() < 1 || rec.Channels() > maxChannels {
		return classify.Errorf(classify.UnsupportedFormat, "features.extract", "%d channels", rec.Channels())
	}
	if rec.SampleRate() <= 0 {
		return classify.Errorf(classify.UnsupportedFormat, "features.extract", "sample rate %d", rec.SampleRate())
	}
	return nil
}

// toFloat scales signed integer samples by their bit depth into [-1, 1].
func toFloat(rec *pcm.Recording) []float64 {
	scale := 1 / float64(int64(1)<<(rec.BitDepth()-1))
	samples := rec.Samples()
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = max(-1, min(1, float64(s)*scale))
	}
	return out
}

// normalize scales the signal in place. Silent signals are left as is.
func normalize(x []float64, spec classify.FeatureSpec) {
	var gain float64
	switch spec.Normalize {
	case classify.NormalizePeak:
		var peak float64
		for _, s := range x {
			peak = max(peak, math.Abs(s))
		}
		if peak > 0 {
			gain = 1 / peak
		}
	case classify.NormalizeRMS:
		var sum float64
		for _, s := range x {
			sum += s * s
		}
		if rms := math.Sqrt(sum / float64(len(x))); rms > 0 {
			gain = spec.TargetRMS / rms
		}
	}
	if gain == 0 {
		return
	}
	for i, s := range x {
		x[i] = max(-1, min(1, s*gain))
	}
}

// fit truncates or zero-pads x at the end to exactly n samples.
func fit(x []float64, n int) []float64 {
	if len(x) >= n {
		return x[:n]
	}
	out := make([]float64, n)
	copy(out, x)
	return out
}
