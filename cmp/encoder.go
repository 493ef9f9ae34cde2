// SPDX-License-Identifier: GPL-3.0-or-later

package cmp

import (
	"os"
	"sync"
)

// Encoder turns arbitrary byte messages into a stream of fixed-size,
// self-describing fragments. Construct with [NewEncoder]; zero value is
// not usable since the chunk size must be validated.
//
// All methods are safe for concurrent use: cluster producers may push
// from multiple goroutines while the owning pipe drains [Encoder.Data]
// from a different one.
type Encoder struct {
	// ChunkSize bounds the size of header+payload per fragment.
	ChunkSize int

	// PID is stamped into every fragment header as the sender's process
	// id. Defaults to os.Getpid() at construction time; a cluster child
	// acting on behalf of another identity may override it.
	PID uint32

	mu      sync.Mutex
	counter uint32
	buf     []byte
}

// NewEncoder constructs an [Encoder] with the given chunk size, rounding
// up to [DefaultChunkSize] if it is smaller than [MinChunkSize].
func NewEncoder(chunkSize int) *Encoder {
	return &Encoder{
		ChunkSize: chunkOrDefault(chunkSize),
		PID:       uint32(os.Getpid()),
	}
}

// Push splits buffer into as many fragments as needed so that every
// fragment satisfies header+payload <= ChunkSize, appending them to the
// internal output buffer. All fragments of one call share a message id
// and the counter is incremented once the message is fully queued.
func (e *Encoder) Push(tag uint8, buffer []byte) {
	e.mu.Lock()
	defer e.mu.Unlock()

	id := e.counter
	e.counter++

	maxPayload := e.ChunkSize - HeaderSize
	if maxPayload <= 0 {
		maxPayload = DefaultChunkSize - HeaderSize
	}

	offset := 0
	for {
		remaining := len(buffer) - offset
		m := modeContinue
		n := maxPayload
		if remaining <= maxPayload {
			m = modeEnd
			n = remaining
		}

		var hdr [HeaderSize]byte
		putHeader(hdr[:], header{id: id, mode: m, mid: tag, bytes: uint16(n), pid: e.PID})
		e.buf = append(e.buf, hdr[:]...)
		e.buf = append(e.buf, buffer[offset:offset+n]...)
		offset += n

		if m == modeEnd {
			break
		}
	}
}

// Empty reports whether the output buffer currently holds no bytes.
func (e *Encoder) Empty() bool {
	return e.Size() == 0
}

// Size returns the number of bytes currently queued in the output buffer.
func (e *Encoder) Size() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.buf)
}

// Data returns the queued output bytes. The returned slice aliases the
// encoder's internal buffer and must be treated as read-only until the
// next [Encoder.Erase] or [Encoder.Push] call.
func (e *Encoder) Data() []byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.buf
}

// Erase drops the first n bytes of the output buffer, typically called
// after the owning pipe has written that many bytes to the wire.
func (e *Encoder) Erase(n int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if n >= len(e.buf) {
		e.buf = e.buf[:0]
		return
	}
	e.buf = append(e.buf[:0], e.buf[n:]...)
}
