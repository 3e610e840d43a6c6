// Package capture records microphone audio between a start and a stop.
//
// A Capture owns one recording at a time. Start checks permission, takes
// the shared Microphone and opens a Device stream; a goroutine then
// buffers chunks until Stop, which releases the microphone and returns
// the finished pcm.Recording.
package capture

import (
	"context"

	"github.com/Laudkyle/NaviAudio/pkg/audio/pcm"
)

// Device opens input streams.
type Device interface {
	// Open starts a stream delivering audio in the requested format.
	Open(ctx context.Context, format pcm.Format) (Stream, error)
}

// Stream delivers captured audio chunks.
type Stream interface {
	// Format is the format of every chunk.
	Format() pcm.Format
	// ReadChunk blocks for the next chunk. It returns io.EOF when the
	// source is exhausted.
	ReadChunk() (pcm.Chunk, error)
	// Close stops the stream.
	Close() error
}

// Buffered is implemented by streams whose audio is already available,
// such as an unpaced replay. Capture reads a buffered stream to its end
// even when stopped early.
type Buffered interface {
	Buffered() bool
}

// DeviceFunc adapts a function to Device.
type DeviceFunc func(ctx context.Context, format pcm.Format) (Stream, error)

// Open implements Device.
func (f DeviceFunc) Open(ctx context.Context, format pcm.Format) (Stream, error) {
	return f(ctx, format)
}

// Permission reports whether microphone access is granted.
type Permission interface {
	Granted(ctx context.Context) (bool, error)
}

// PermissionFunc adapts a function to Permission.
type PermissionFunc func(ctx context.Context) (bool, error)

// Granted implements Permission.
func (f PermissionFunc) Granted(ctx context.Context) (bool, error) {
	return f(ctx)
}

// AlwaysGranted is the permission used on platforms without a consent
// prompt.
var AlwaysGranted Permission = PermissionFunc(func(context.Context) (bool, error) {
	return true, nil
})

// Denied refuses microphone access.
var Denied Permission = PermissionFunc(func(context.Context) (bool, error) {
	return false, nil
})
