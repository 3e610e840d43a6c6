// Package wav reads and writes RIFF/WAVE files as pcm.Recordings.
package wav

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/orcaman/writerseeker"

	"github.com/Laudkyle/NaviAudio/pkg/audio/pcm"
)

const formatPCM = 1

var (
	// ErrInvalid is returned for input that is not a RIFF/WAVE file.
	ErrInvalid = errors.New("wav: invalid file")
	// ErrUnsupported is returned for WAVE files that are not integer PCM.
	ErrUnsupported = errors.New("wav: unsupported encoding")
)

// Encode writes rec as an integer PCM WAVE file.
func Encode(w io.Writer, rec *pcm.Recording) error {
	if rec == nil {
		return errors.New("wav: nil recording")
	}
	switch rec.BitDepth() {
	case 16, 24, 32:
	default:
		return fmt.Errorf("%w: %d-bit samples", ErrUnsupported, rec.BitDepth())
	}
	ws := &writerseeker.WriterSeeker{}
	enc := wav.NewEncoder(ws, rec.SampleRate(), rec.BitDepth(), rec.Channels(), formatPCM)
	buf := &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: rec.Channels(),
			SampleRate:  rec.SampleRate(),
		},
		Data:           rec.Samples(),
		SourceBitDepth: rec.BitDepth(),
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("wav: encode: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("wav: encode: %w", err)
	}
	_, err := io.Copy(w, ws.Reader())
	return err
}

// EncodeBytes returns rec as WAVE file bytes.
func EncodeBytes(rec *pcm.Recording) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, rec); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode reads an integer PCM WAVE file. 8-bit files are converted from
// unsigned to signed samples.
func Decode(r io.ReadSeeker) (*pcm.Recording, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, ErrInvalid
	}
	if dec.WavAudioFormat != formatPCM {
		return nil, fmt.Errorf("%w: audio format %d", ErrUnsupported, dec.WavAudioFormat)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("wav: decode: %w", err)
	}
	depth := int(dec.BitDepth)
	channels := int(dec.NumChans)
	rate := int(dec.SampleRate)
	samples := buf.Data
	if depth == 8 {
		for i, s := range samples {
			samples[i] = s - 128
		}
	}
	if channels > 0 {
		samples = samples[:len(samples)-len(samples)%channels]
	}
	rec, err := pcm.NewRecording(samples, rate, channels, depth)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupported, err)
	}
	return rec, nil
}

// DecodeBytes decodes WAVE file bytes.
func DecodeBytes(data []byte) (*pcm.Recording, error) {
	return Decode(bytes.NewReader(data))
}
