// Package pcm provides PCM audio formats, chunks and recordings.
//
// Capture devices deliver audio as Chunks in a Format (16-bit mono at a
// fixed sample rate). A finished capture is assembled into a Recording,
// an immutable block of interleaved integer samples that carries its own
// sample rate, channel count and bit depth, so recordings decoded from
// WAV files are not limited to the capture formats.
//
// Example usage:
//
//	format := pcm.L16Mono16K
//	silence := format.SilenceChunk(100 * time.Millisecond)
//	rec, err := pcm.RecordingFromChunks(format, silence)
package pcm
