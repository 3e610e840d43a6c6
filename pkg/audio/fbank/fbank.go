// Package fbank computes log mel filterbank features.
//
// The classifier front-end feeds it a mono float signal at the model
// sample rate and gets back a [frames][mels] matrix. Defaults follow the
// Kaldi convention: 25 ms Hamming window, 10 ms hop, 512-point FFT,
// 80 mel bins between 20 Hz and 7600 Hz, pre-emphasis 0.97.
package fbank

import (
	"fmt"
	"math"
)

// logFloor keeps silent bins finite.
const logFloor = 1e-10

// Config controls filterbank extraction.
type Config struct {
	SampleRate  int     `yaml:"sample_rate" json:"sample_rate"`
	WindowSize  int     `yaml:"window_size" json:"window_size"`
	HopSize     int     `yaml:"hop_size" json:"hop_size"`
	FFTSize     int     `yaml:"fft_size" json:"fft_size"`
	NumMels     int     `yaml:"num_mels" json:"num_mels"`
	LowFreq     float64 `yaml:"low_freq" json:"low_freq"`
	HighFreq    float64 `yaml:"high_freq" json:"high_freq"`
	PreEmphasis float64 `yaml:"pre_emphasis" json:"pre_emphasis"`
}

// DefaultConfig returns the 16 kHz, 80-bin configuration.
func DefaultConfig() Config {
	return Config{
		SampleRate:  16000,
		WindowSize:  400,
		HopSize:     160,
		FFTSize:     512,
		NumMels:     80,
		LowFreq:     20,
		HighFreq:    7600,
		PreEmphasis: 0.97,
	}
}

// WithDefaults fills zero fields from DefaultConfig.
func (c Config) WithDefaults() Config {
	d := DefaultConfig()
	if c.SampleRate == 0 {
		c.SampleRate = d.SampleRate
	}
	if c.WindowSize == 0 {
		c.WindowSize = d.WindowSize
	}
	if c.HopSize == 0 {
		c.HopSize = d.HopSize
	}
	if c.FFTSize == 0 {
		c.FFTSize = d.FFTSize
	}
	if c.NumMels == 0 {
		c.NumMels = d.NumMels
	}
	if c.LowFreq == 0 {
		c.LowFreq = d.LowFreq
	}
	if c.HighFreq == 0 {
		c.HighFreq = d.HighFreq
	}
	if c.PreEmphasis == 0 {
		c.PreEmphasis = d.PreEmphasis
	}
	return c
}

// Validate reports whether the configuration can be used.
func (c Config) Validate() error {
	switch {
	case c.SampleRate <= 0:
		return fmt.Errorf("fbank: sample rate %d", c.SampleRate)
	case c.WindowSize <= 1 || c.HopSize <= 0:
		return fmt.Errorf("fbank: window %d hop %d", c.WindowSize, c.HopSize)
	case c.FFTSize < c.WindowSize || c.FFTSize&(c.FFTSize-1) != 0:
		return fmt.Errorf("fbank: fft size %d must be a power of two >= window %d", c.FFTSize, c.WindowSize)
	case c.NumMels <= 0:
		return fmt.Errorf("fbank: %d mel bins", c.NumMels)
	case c.LowFreq < 0 || c.HighFreq <= c.LowFreq || c.HighFreq > float64(c.SampleRate)/2:
		return fmt.Errorf("fbank: mel range %g-%g Hz", c.LowFreq, c.HighFreq)
	}
	return nil
}

// NumFrames returns the number of frames produced from n samples.
func (c Config) NumFrames(n int) int {
	if n < c.WindowSize {
		return 0
	}
	return (n-c.WindowSize)/c.HopSize + 1
}

// SamplesForFrames returns the smallest input length that yields exactly
// the given number of frames.
func (c Config) SamplesForFrames(frames int) int {
	if frames <= 0 {
		return 0
	}
	return (frames-1)*c.HopSize + c.WindowSize
}

// Extractor computes filterbank frames. It is safe for concurrent use.
type Extractor struct {
	cfg    Config
	window []float64
	bank   []filter
}

// New creates an Extractor. The config is validated after defaults are
// applied.
func New(cfg Config) (*Extractor, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Extractor{
		cfg:    cfg,
		window: hammingWindow(cfg.WindowSize),
		bank:   melFilterBank(cfg.NumMels, cfg.FFTSize, cfg.SampleRate, cfg.LowFreq, cfg.HighFreq),
	}, nil
}

// Config returns the effective configuration.
func (e *Extractor) Config() Config { return e.cfg }

// Extract returns log mel energies for a mono signal in [-1, 1]. The result
// has NumFrames(len(samples)) rows of NumMels columns.
func (e *Extractor) Extract(samples []float64) [][]float32 {
	cfg := e.cfg
	frames := cfg.NumFrames(len(samples))
	if frames == 0 {
		return nil
	}

	re := make([]float64, cfg.FFTSize)
	im := make([]float64, cfg.FFTSize)
	power := make([]float64, cfg.FFTSize/2+1)
	out := make([][]float32, frames)

	for t := range out {
		seg := samples[t*cfg.HopSize : t*cfg.HopSize+cfg.WindowSize]
		clear(re)
		clear(im)
		re[0] = seg[0] * e.window[0]
		for i := 1; i < len(seg); i++ {
			re[i] = (seg[i] - cfg.PreEmphasis*seg[i-1]) * e.window[i]
		}
		fft(re, im)
		for k := range power {
			power[k] = re[k]*re[k] + im[k]*im[k]
		}

		row := make([]float32, cfg.NumMels)
		for m, f := range e.bank {
			energy := f.apply(power)
			row[m] = float32(math.Log(max(energy, logFloor)))
		}
		out[t] = row
	}
	return out
}

// CMVN normalizes each column to zero mean and unit variance in place.
func CMVN(frames [][]float32) {
	if len(frames) == 0 {
		return
	}
	n := float64(len(frames))
	for m := range frames[0] {
		var sum float64
		for _, row := range frames {
			sum += float64(row[m])
		}
		mean := sum / n
		var sq float64
		for _, row := range frames {
			d := float64(row[m]) - mean
			sq += d * d
		}
		std := math.Sqrt(sq / n)
		if std < logFloor {
			std = 1
		}
		for _, row := range frames {
			row[m] = float32((float64(row[m]) - mean) / std)
		}
	}
}

// Flatten lays out rows contiguously (row-major).
func Flatten(frames [][]float32) []float32 {
	if len(frames) == 0 {
		return nil
	}
	cols := len(frames[0])
	flat := make([]float32, 0, len(frames)*cols)
	for _, row := range frames {
		flat = append(flat, row...)
	}
	return flat
}
