package fbank

import (
	"math"
	"testing"
)

func sine(n, rate int, hz, amp float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = amp * math.Sin(2*math.Pi*hz*float64(i)/float64(rate))
	}
	return out
}

// noise returns deterministic pseudo-random samples with a slow envelope.
func noise(n int) []float64 {
	out := make([]float64, n)
	x := uint32(12345)
	for i := range out {
		x = x*1664525 + 1013904223
		env := 0.1 + 0.9*math.Abs(math.Sin(float64(i)/800))
		out[i] = env * (float64(x>>8)/float64(1<<24)*2 - 1)
	}
	return out
}

func TestHammingWindow(t *testing.T) {
	w := hammingWindow(400)
	if len(w) != 400 {
		t.Fatalf("len = %d, want 400", len(w))
	}
	if math.Abs(w[0]-0.08) > 0.01 {
		t.Errorf("w[0] = %f, want ~0.08", w[0])
	}
	if math.Abs(w[199]-1.0) > 0.02 {
		t.Errorf("w[199] = %f, want ~1.0", w[199])
	}
}

func TestMelConversion(t *testing.T) {
	mel := hzToMel(1000)
	if math.Abs(mel-1000.45) > 1.0 {
		t.Errorf("hzToMel(1000) = %f, want ~1000.45", mel)
	}
	if hz := melToHz(mel); math.Abs(hz-1000) > 0.1 {
		t.Errorf("melToHz(hzToMel(1000)) = %f, want 1000", hz)
	}
}

func TestMelFilterBank(t *testing.T) {
	bank := melFilterBank(80, 512, 16000, 20, 7600)
	if len(bank) != 80 {
		t.Fatalf("len(bank) = %d, want 80", len(bank))
	}
	for i, f := range bank {
		if f.lo < 0 || f.lo+len(f.weights) > 257 {
			t.Fatalf("filter %d spans [%d, %d)", i, f.lo, f.lo+len(f.weights))
		}
		var peak float64
		for _, w := range f.weights {
			peak = max(peak, w)
		}
		if peak != 1 {
			t.Errorf("filter %d peak = %f, want 1", i, peak)
		}
	}
}

func TestFFT(t *testing.T) {
	n := 8
	re := make([]float64, n)
	im := make([]float64, n)
	for i := range re {
		re[i] = 1.0 + math.Cos(2*math.Pi*float64(i)/float64(n))
	}
	fft(re, im)
	if math.Abs(re[0]-float64(n)) > 1e-9 {
		t.Errorf("DC = %f, want %d", re[0], n)
	}
	if math.Abs(re[1]-float64(n)/2) > 1e-9 {
		t.Errorf("H1 = %f, want %f", re[1], float64(n)/2)
	}
	if math.Abs(re[2]) > 1e-9 || math.Abs(im[1]) > 1e-9 {
		t.Errorf("leakage: re[2]=%g im[1]=%g", re[2], im[1])
	}
}

func TestConfigFrames(t *testing.T) {
	cfg := DefaultConfig()
	if got := cfg.NumFrames(16000); got != 98 {
		t.Errorf("NumFrames(16000) = %d, want 98", got)
	}
	if got := cfg.NumFrames(399); got != 0 {
		t.Errorf("NumFrames(399) = %d, want 0", got)
	}
	for _, frames := range []int{1, 2, 98, 300} {
		n := cfg.SamplesForFrames(frames)
		if got := cfg.NumFrames(n); got != frames {
			t.Errorf("NumFrames(SamplesForFrames(%d)) = %d", frames, got)
		}
		if got := cfg.NumFrames(n - 1); got != frames-1 {
			t.Errorf("NumFrames(SamplesForFrames(%d)-1) = %d, want %d", frames, got, frames-1)
		}
	}
}

func TestConfigValidate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	bad := DefaultConfig()
	bad.FFTSize = 300
	if bad.Validate() == nil {
		t.Error("non power-of-two FFT should be rejected")
	}
	bad = DefaultConfig()
	bad.HighFreq = 9000
	if bad.Validate() == nil {
		t.Error("high frequency above Nyquist should be rejected")
	}
	if _, err := New(Config{NumMels: 40}); err != nil {
		t.Errorf("New with partial config: %v", err)
	}
}

func TestExtract(t *testing.T) {
	ext, err := New(DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	frames := ext.Extract(sine(16000, 16000, 440, 1))
	if len(frames) != 98 {
		t.Fatalf("frames = %d, want 98", len(frames))
	}
	for i, row := range frames {
		if len(row) != 80 {
			t.Fatalf("row %d has %d mels, want 80", i, len(row))
		}
		for j, v := range row {
			if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
				t.Fatalf("frames[%d][%d] = %f", i, j, v)
			}
		}
	}
	if ext.Extract(make([]float64, 100)) != nil {
		t.Error("short input should produce no frames")
	}
}

func TestExtractSilenceIsFloor(t *testing.T) {
	ext, _ := New(DefaultConfig())
	frames := ext.Extract(make([]float64, 800))
	want := float32(math.Log(logFloor))
	for _, row := range frames {
		for _, v := range row {
			if v != want {
				t.Fatalf("silent bin = %f, want %f", v, want)
			}
		}
	}
}

func TestFlatten(t *testing.T) {
	flat := Flatten([][]float32{{1, 2, 3}, {4, 5, 6}})
	want := []float32{1, 2, 3, 4, 5, 6}
	if len(flat) != len(want) {
		t.Fatalf("len = %d, want %d", len(flat), len(want))
	}
	for i := range want {
		if flat[i] != want[i] {
			t.Errorf("flat[%d] = %f, want %f", i, flat[i], want[i])
		}
	}
	if Flatten(nil) != nil {
		t.Error("Flatten(nil) should be nil")
	}
}

func TestCMVN(t *testing.T) {
	ext, _ := New(DefaultConfig())
	frames := ext.Extract(noise(16000))
	CMVN(frames)

	for m := range frames[0] {
		var sum float64
		for _, row := range frames {
			sum += float64(row[m])
		}
		mean := sum / float64(len(frames))
		if math.Abs(mean) > 1e-3 {
			t.Errorf("mel[%d] mean = %f, want ~0", m, mean)
		}
		var sq float64
		for _, row := range frames {
			d := float64(row[m]) - mean
			sq += d * d
		}
		if std := math.Sqrt(sq / float64(len(frames))); math.Abs(std-1) > 1e-3 {
			t.Errorf("mel[%d] std = %f, want ~1", m, std)
		}
	}
}

func BenchmarkExtract(b *testing.B) {
	ext, _ := New(DefaultConfig())
	in := sine(48000, 16000, 440, 0.5)
	b.ReportAllocs()
	for range b.N {
		_ = ext.Extract(in)
	}
}
