// Package buffer provides a thread-safe growable buffer for streaming
// samples between a producer goroutine and its consumer.
//
// The capture pipeline writes device chunks into a Buffer from a reader
// goroutine while the session waits for the user to release. A Buffer may
// carry a limit; writes past it are truncated and report ErrFull so the
// producer knows to stop.
package buffer

import (
	"errors"
	"fmt"
	"io"
	"sync"
)

// ErrFull is returned by Write when the buffer limit is reached.
var ErrFull = errors.New("buffer: full")

// Buffer is a thread-safe growable buffer implementing io.Reader and
// io.Writer. Read blocks while the buffer is empty and open for writing.
type Buffer[T any] struct {
	writeNotify chan struct{}

	mu         sync.Mutex
	closeWrite bool
	closeErr   error
	limit      int
	written    int
	buf        []T
}

// N creates a Buffer with an initial capacity of n elements and no limit.
func N[T any](n int) *Buffer[T] {
	return &Buffer[T]{
		writeNotify: make(chan struct{}, 1),
		buf:         make([]T, 0, n),
	}
}

// Limited creates a Buffer that accepts at most limit elements in total.
func Limited[T any](limit int) *Buffer[T] {
	b := N[T](min(limit, 1<<16))
	b.limit = limit
	return b
}

// Write appends p. When a limit is set and p does not fit, the prefix that
// fits is kept and ErrFull is returned with the number of elements stored.
func (b *Buffer[T]) Write(p []T) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closeErr != nil {
		return 0, fmt.Errorf("buffer: write to closed buffer: %w", b.closeErr)
	}
	if b.closeWrite {
		return 0, fmt.Errorf("buffer: write to closed buffer: %w", io.ErrClosedPipe)
	}

	var err error
	if b.limit > 0 && b.written+len(p) > b.limit {
		p = p[:b.limit-b.written]
		err = ErrFull
	}
	b.buf = append(b.buf, p...)
	b.written += len(p)
	if len(p) > 0 {
		select {
		case b.writeNotify <- struct{}{}:
		default:
		}
	}
	return len(p), err
}

// Read moves buffered elements into p. It returns io.EOF once the write
// side is closed and everything has been read.
func (b *Buffer[T]) Read(p []T) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for len(b.buf) == 0 {
		if b.closeErr != nil {
			return 0, fmt.Errorf("buffer: read from closed buffer: %w", b.closeErr)
		}
		if b.closeWrite {
			return 0, io.EOF
		}
		b.mu.Unlock()
		<-b.writeNotify
		b.mu.Lock()
	}
	n := copy(p, b.buf)
	b.buf = b.buf[n:]
	return n, nil
}

// CloseWrite stops further writes. Buffered data remains readable.
func (b *Buffer[T]) CloseWrite() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.closeWrite {
		b.closeWrite = true
		close(b.writeNotify)
	}
	return nil
}

// CloseWithError closes both ends and drops buffered data. A nil err means
// io.ErrClosedPipe.
func (b *Buffer[T]) CloseWithError(err error) error {
	if err == nil {
		err = io.ErrClosedPipe
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closeErr != nil {
		return nil
	}
	b.closeErr = err
	b.buf = nil
	if !b.closeWrite {
		b.closeWrite = true
		close(b.writeNotify)
	}
	return nil
}

// Close is CloseWithError(nil).
func (b *Buffer[T]) Close() error {
	return b.CloseWithError(nil)
}

// Error returns the error the buffer was closed with, if any.
func (b *Buffer[T]) Error() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closeErr
}

// Len returns the number of unread elements.
func (b *Buffer[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.buf)
}

// Written returns the total number of elements accepted so far.
func (b *Buffer[T]) Written() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.written
}

// Snapshot returns a copy of the unread elements without consuming them.
func (b *Buffer[T]) Snapshot() []T {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]T, len(b.buf))
	copy(out, b.buf)
	return out
}
