package resampler

import (
	"fmt"

	resampling "github.com/tphakala/go-audio-resampling"
)

// tailMillis is the length of the silent tail fed after the input so the
// filter's internal delay is flushed into the output.
const tailMillis = 100

// OutputLen returns the number of samples Resample produces for n input
// samples.
func OutputLen(n, srcRate, dstRate int) int {
	if n <= 0 || srcRate <= 0 || dstRate <= 0 {
		return 0
	}
	return int((int64(n)*int64(dstRate) + int64(srcRate)/2) / int64(srcRate))
}

// Resample converts mono samples from srcRate to dstRate. The input is not
// modified. Equal rates return a copy.
func Resample(in []float64, srcRate, dstRate int) ([]float64, error) {
	if srcRate <= 0 || dstRate <= 0 {
		return nil, fmt.Errorf("resampler: invalid rates %d -> %d", srcRate, dstRate)
	}
	if srcRate == dstRate || len(in) == 0 {
		out := make([]float64, len(in))
		copy(out, in)
		return out, nil
	}

	rs, err := resampling.New(&resampling.Config{
		InputRate:  float64(srcRate),
		OutputRate: float64(dstRate),
		Channels:   1,
		Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
	})
	if err != nil {
		return nil, fmt.Errorf("resampler: create: %w", err)
	}

	padded := make([]float64, len(in)+srcRate*tailMillis/1000)
	copy(padded, in)
	got, err := rs.Process(padded)
	if err != nil {
		return nil, fmt.Errorf("resampler: process: %w", err)
	}

	out := make([]float64, OutputLen(len(in), srcRate, dstRate))
	copy(out, got)
	for i, s := range out {
		out[i] = clamp(s)
	}
	return out, nil
}

// Downmix averages interleaved frames of the given channel count into a
// mono signal. A trailing partial frame is dropped.
func Downmix(interleaved []float64, channels int) []float64 {
	if channels <= 1 {
		out := make([]float64, len(interleaved))
		copy(out, interleaved)
		return out
	}
	frames := len(interleaved) / channels
	out := make([]float64, frames)
	for i := range frames {
		var sum float64
		for _, s := range interleaved[i*channels : (i+1)*channels] {
			sum += s
		}
		out[i] = sum / float64(channels)
	}
	return out
}

func clamp(s float64) float64 {
	if s > 1 {
		return 1
	}
	if s < -1 {
		return -1
	}
	return s
}
