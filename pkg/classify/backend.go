// Package classify defines the inference backend contract and its remote
// and on-device implementations.
//
// A Backend declares the input it needs (InputShape and Features) so the
// feature extractor can build a matching Tensor, then turns that Tensor
// into a Result. Every failure crossing a Backend boundary is an *Error
// with a Kind.
package classify

import (
	"context"
	"fmt"

	"github.com/Laudkyle/NaviAudio/pkg/audio/fbank"
)

// Backend runs a classifier over a feature tensor.
type Backend interface {
	// Name identifies the backend in logs and metrics.
	Name() string
	// InputShape is the exact tensor shape Classify accepts.
	InputShape() Shape
	// Features describes how to derive the tensor from audio.
	Features() FeatureSpec
	// Classify runs inference. Tensors of another shape fail with
	// ShapeMismatch.
	Classify(ctx context.Context, t *Tensor) (*Result, error)
	// Close releases model resources.
	Close() error
}

// FeatureKind selects the tensor representation.
type FeatureKind string

const (
	// FeatureWaveform feeds normalized samples directly.
	FeatureWaveform FeatureKind = "waveform"
	// FeatureFbank feeds a [frames, mels] log mel filterbank.
	FeatureFbank FeatureKind = "fbank"
)

// Normalization selects amplitude normalization.
type Normalization string

const (
	// NormalizePeak scales so the largest absolute sample is 1.
	NormalizePeak Normalization = "peak"
	// NormalizeRMS scales to a target RMS level.
	NormalizeRMS Normalization = "rms"
	// NormalizeNone leaves amplitudes unchanged.
	NormalizeNone Normalization = "none"
)

// FeatureSpec is the preprocessing contract a backend declares.
type FeatureSpec struct {
	Kind       FeatureKind   `yaml:"kind" json:"kind"`
	SampleRate int           `yaml:"sample_rate" json:"sample_rate"`
	Normalize  Normalization `yaml:"normalize" json:"normalize"`
	// TargetRMS is used with NormalizeRMS; 0 means 0.1.
	TargetRMS float64 `yaml:"target_rms,omitempty" json:"target_rms,omitempty"`
	// CMVN applies per-bin mean/variance normalization to fbank features.
	CMVN  bool         `yaml:"cmvn,omitempty" json:"cmvn,omitempty"`
	Fbank fbank.Config `yaml:"fbank,omitempty" json:"fbank,omitempty"`
}

// WithDefaults fills unset fields.
func (s FeatureSpec) WithDefaults() FeatureSpec {
	if s.Kind == "" {
		s.Kind = FeatureWaveform
	}
	if s.SampleRate == 0 {
		s.SampleRate = 16000
	}
	if s.Normalize == "" {
		s.Normalize = NormalizePeak
	}
	if s.Normalize == NormalizeRMS && s.TargetRMS == 0 {
		s.TargetRMS = 0.1
	}
	if s.Kind == FeatureFbank {
		if s.Fbank.SampleRate == 0 {
			s.Fbank.SampleRate = s.SampleRate
		}
		s.Fbank = s.Fbank.WithDefaults()
	}
	return s
}

// Validate checks the spec after defaults are applied.
func (s FeatureSpec) Validate() error {
	switch s.Kind {
	case FeatureWaveform:
	case FeatureFbank:
		if s.Fbank.SampleRate != s.SampleRate {
			return fmt.Errorf("classify: fbank sample rate %d differs from %d", s.Fbank.SampleRate, s.SampleRate)
		}
		if err := s.Fbank.Validate(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("classify: unknown feature kind %q", s.Kind)
	}
	switch s.Normalize {
	case NormalizePeak, NormalizeRMS, NormalizeNone:
	default:
		return fmt.Errorf("classify: unknown normalization %q", s.Normalize)
	}
	if s.SampleRate <= 0 {
		return fmt.Errorf("classify: sample rate %d", s.SampleRate)
	}
	return nil
}
