// Package resampler converts blocks of float audio between sample rates
// and channel layouts.
//
// Sample rate conversion uses the pure Go polyphase resampler from
// github.com/tphakala/go-audio-resampling at high quality. Output length
// is always round(len(in) * dst / src) so that callers can rely on the
// result size.
//
// Example usage:
//
//	mono := resampler.Downmix(interleaved, 2)
//	out, err := resampler.Resample(mono, 44100, 16000)
package resampler
