package features

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/Laudkyle/NaviAudio/pkg/audio/pcm"
	"github.com/Laudkyle/NaviAudio/pkg/classify"
)

func toneRecording(t *testing.T, rate, channels, depth int, d time.Duration, amp float64) *pcm.Recording {
	t.Helper()
	frames := int(int64(rate) * int64(d) / int64(time.Second))
	full := float64(int64(1)<<(depth-1)) - 1
	samples := make([]int, frames*channels)
	for i := range frames {
		v := int(math.Round(amp * full * math.Sin(2*math.Pi*440*float64(i)/float64(rate))))
		for c := range channels {
			samples[i*channels+c] = v
		}
	}
	rec, err := pcm.NewRecording(samples, rate, channels, depth)
	if err != nil {
		t.Fatal(err)
	}
	return rec
}

func waveformSpec() classify.FeatureSpec {
	return classify.FeatureSpec{Kind: classify.FeatureWaveform, SampleRate: 16000}
}

func fbankSpec() classify.FeatureSpec {
	return classify.FeatureSpec{Kind: classify.FeatureFbank, SampleRate: 16000, CMVN: true}
}

func TestExtractShapeMatchesBackend(t *testing.T) {
	tests := []struct {
		name  string
		spec  classify.FeatureSpec
		shape classify.Shape
		rec   *pcm.Recording
	}{
		{"waveform short", waveformSpec(), classify.Shape{16000}, toneRecording(t, 16000, 1, 16, 300*time.Millisecond, 0.5)},
		{"waveform long", waveformSpec(), classify.Shape{1, 16000}, toneRecording(t, 16000, 1, 16, 3*time.Second, 0.5)},
		{"waveform 44k stereo", waveformSpec(), classify.Shape{16000}, toneRecording(t, 44100, 2, 16, time.Second, 0.3)},
		{"waveform 8-bit", waveformSpec(), classify.Shape{8000}, toneRecording(t, 8000, 1, 8, time.Second, 0.5)},
		{"fbank", fbankSpec(), classify.Shape{1, 98, 80}, toneRecording(t, 48000, 1, 24, 2*time.Second, 0.5)},
		{"fbank 2d", fbankSpec(), classify.Shape{50, 80}, toneRecording(t, 16000, 1, 32, 200*time.Millisecond, 0.1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ext, err := New(tt.spec, tt.shape)
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			tensor, err := ext.Extract(tt.rec)
			if err != nil {
				t.Fatalf("Extract: %v", err)
			}
			if !tensor.Shape().Equal(tt.shape) {
				t.Fatalf("shape = %v, want %v", tensor.Shape(), tt.shape)
			}
			if tensor.Len() != tt.shape.Size() {
				t.Fatalf("len = %d, want %d", tensor.Len(), tt.shape.Size())
			}
			for i, v := range tensor.Data() {
				if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
					t.Fatalf("value %d = %v", i, v)
				}
			}
			if tensor.Source() != tt.rec {
				t.Error("tensor does not reference its recording")
			}
		})
	}
}

func TestExtractDeterministic(t *testing.T) {
	rec := toneRecording(t, 44100, 2, 16, 1500*time.Millisecond, 0.4)
	for _, spec := range []classify.FeatureSpec{waveformSpec(), fbankSpec()} {
		shape := classify.Shape{16000}
		if spec.Kind == classify.FeatureFbank {
			shape = classify.Shape{98, 80}
		}
		ext, err := New(spec, shape)
		if err != nil {
			t.Fatal(err)
		}
		a, err := ext.Extract(rec)
		if err != nil {
			t.Fatal(err)
		}
		b, _ := ext.Extract(rec)
		da, db := a.Data(), b.Data()
		for i := range da {
			if da[i] != db[i] {
				t.Fatalf("%s: value %d differs: %v != %v", spec.Kind, i, da[i], db[i])
			}
		}
	}
}

func TestExtractEmptyRecording(t *testing.T) {
	ext, _ := New(waveformSpec(), classify.Shape{16000})
	empty, _ := pcm.NewRecording(nil, 16000, 1, 16)
	for _, rec := range []*pcm.Recording{nil, empty} {
		_, err := ext.Extract(rec)
		if !errors.Is(err, classify.EmptyRecording) {
			t.Fatalf("err = %v, want EmptyRecording", err)
		}
	}
}

func TestExtractUnsupportedFormat(t *testing.T) {
	ext, _ := New(waveformSpec(), classify.Shape{16000})
	odd, _ := pcm.NewRecording([]int{1, 2, 3}, 16000, 1, 12)
	many, _ := pcm.NewRecording(make([]int, 90), 16000, 9, 16)
	for _, rec := range []*pcm.Recording{odd, many} {
		if _, err := ext.Extract(rec); !errors.Is(err, classify.UnsupportedFormat) {
			t.Fatalf("%v: err = %v, want UnsupportedFormat", rec, err)
		}
	}
}

func TestWaveformPadsAndTruncatesAtEnd(t *testing.T) {
	spec := waveformSpec()
	spec.Normalize = classify.NormalizeNone
	ext, _ := New(spec, classify.Shape{8})

	short, _ := pcm.NewRecording([]int{16384, -16384, 8192}, 16000, 1, 16)
	tensor, err := ext.Extract(short)
	if err != nil {
		t.Fatal(err)
	}
	want := []float32{0.5, -0.5, 0.25, 0, 0, 0, 0, 0}
	got := tensor.Data()
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("padded = %v, want %v", got, want)
		}
	}

	long, _ := pcm.NewRecording([]int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, 16000, 1, 16)
	tensor, _ = ext.Extract(long)
	if d := tensor.Data(); d[7] != float32(8.0/32768) {
		t.Fatalf("truncation kept wrong samples: %v", d)
	}
}

func TestPeakNormalization(t *testing.T) {
	ext, _ := New(waveformSpec(), classify.Shape{16000})
	tensor, err := ext.Extract(toneRecording(t, 16000, 1, 16, time.Second, 0.1))
	if err != nil {
		t.Fatal(err)
	}
	var peak float64
	for _, v := range tensor.Data() {
		peak = max(peak, math.Abs(float64(v)))
	}
	if math.Abs(peak-1) > 1e-6 {
		t.Fatalf("peak = %v, want 1", peak)
	}
}

func TestRMSNormalization(t *testing.T) {
	spec := waveformSpec()
	spec.Normalize = classify.NormalizeRMS
	spec.TargetRMS = 0.2
	ext, _ := New(spec, classify.Shape{16000})
	tensor, _ := ext.Extract(toneRecording(t, 16000, 1, 16, time.Second, 0.05))
	var sum float64
	for _, v := range tensor.Data() {
		sum += float64(v) * float64(v)
	}
	if rms := math.Sqrt(sum / 16000); math.Abs(rms-0.2) > 1e-3 {
		t.Fatalf("rms = %v, want 0.2", rms)
	}
}

func TestSilenceStaysSilent(t *testing.T) {
	rec, _ := pcm.RecordingFromChunks(pcm.L16Mono16K, pcm.L16Mono16K.SilenceChunk(2*time.Second))
	ext, _ := New(waveformSpec(), classify.Shape{16000})
	tensor, err := ext.Extract(rec)
	if err != nil {
		t.Fatal(err)
	}
	for i, v := range tensor.Data() {
		if v != 0 {
			t.Fatalf("value %d = %v, want 0", i, v)
		}
	}
}

func TestNewRejectsInconsistentContract(t *testing.T) {
	if _, err := New(fbankSpec(), classify.Shape{98, 40}); !errors.Is(err, classify.ShapeMismatch) {
		t.Fatalf("mel mismatch err = %v", err)
	}
	if _, err := New(waveformSpec(), classify.Shape{0}); !errors.Is(err, classify.ShapeMismatch) {
		t.Fatalf("invalid shape err = %v", err)
	}
	bad := waveformSpec()
	bad.Kind = "spectrogram"
	if _, err := New(bad, classify.Shape{16000}); !errors.Is(err, classify.ShapeMismatch) {
		t.Fatalf("unknown kind err = %v", err)
	}
}

func TestFbankSampleCount(t *testing.T) {
	ext, err := New(fbankSpec(), classify.Shape{1, 98, 80})
	if err != nil {
		t.Fatal(err)
	}
	if ext.Samples() != 97*160+400 {
		t.Fatalf("Samples() = %d, want %d", ext.Samples(), 97*160+400)
	}
}
