// SPDX-License-Identifier: GPL-3.0-or-later

package cmp

import (
	"errors"
	"sync"
)

// DefaultMaxRecordSize bounds how large a reassembled record may grow
// before the decoder gives up on it. The source terminates the process on
// an allocation failure inside the decoder; a bounded decoder never needs
// to allocate past this limit in the first place, so instead of crashing
// the process we fall back to the same recovery path as a corrupted
// header: drop all decoder state and report an error, and let the owning
// channel close.
const DefaultMaxRecordSize = 32 * 1024 * 1024

// ErrCorrupted is reported when a fragment header fails its magic check.
// The decoder has already discarded its staging buffer, pending header,
// reassembly cache and output queue by the time this is returned.
var ErrCorrupted = errors.New("cmp: corrupted fragment header")

// ErrRecordTooLarge is reported when a reassembled record would exceed
// MaxRecordSize. Decoder state is discarded the same way as ErrCorrupted.
var ErrRecordTooLarge = errors.New("cmp: reassembled record exceeds MaxRecordSize")

// Record is one fully reassembled message handed back by the decoder.
type Record struct {
	// MessageID is the fragment group id the message was sent under.
	MessageID uint32
	// Tag is the 8-bit user tag the sender attached via Encoder.Push.
	Tag uint8
	// PID is the sender's process id, as stamped by the Encoder.
	PID uint32
	// Data is the fully reassembled payload.
	Data []byte
}

// Decoder reassembles fragments produced by an [Encoder] back into
// complete [Record] values. Construct with [NewDecoder]; not safe to copy
// after first use.
type Decoder struct {
	// ChunkSize is advisory, used only to size internal buffers.
	ChunkSize int

	// MaxRecordSize bounds in-flight reassembly. Zero disables the
	// bound, matching the unbounded source behavior but is not
	// recommended for untrusted peers.
	MaxRecordSize int

	// Logger receives a single Error call whenever a stream is
	// discarded for corruption or an oversize record.
	Logger Logger

	mu      sync.Mutex
	staging []byte
	hdr     *header
	cache   map[uint32][]byte
	queue   []Record
}

// NewDecoder constructs a [Decoder] with the given advisory chunk size.
func NewDecoder(chunkSize int) *Decoder {
	return &Decoder{
		ChunkSize:     chunkOrDefault(chunkSize),
		MaxRecordSize: DefaultMaxRecordSize,
		Logger:        DefaultLogger(),
		cache:         make(map[uint32][]byte),
	}
}

// Push feeds newly-received bytes into the decoder. It may complete zero
// or more records, which become available via [Decoder.Get]/[Decoder.Pop].
//
// On a corrupted header or an oversize record, Push resets all decoder
// state (staging buffer, pending header, reassembly cache, output queue)
// and returns the corresponding sentinel error; the caller is expected to
// close the owning channel, matching the framing contract.
func (d *Decoder) Push(buffer []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var buf []byte
	if len(d.staging) > 0 {
		d.staging = append(d.staging, buffer...)
		buf = d.staging
	} else {
		buf = buffer
	}

	consumed, err := d.drain(buf)
	if err != nil {
		d.logger().Error("cmp: discarding decoder state", "error", err)
		return err
	}

	switch {
	case len(d.staging) > 0:
		d.staging = d.staging[consumed:]
	case consumed < len(buf):
		d.staging = append([]byte(nil), buf[consumed:]...)
	default:
		d.staging = nil
	}
	return nil
}

func (d *Decoder) logger() Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return DefaultLogger()
}

// drain repeatedly extracts headers and payloads from buf until it is
// short of either, returning how many leading bytes were consumed.
func (d *Decoder) drain(buf []byte) (int, error) {
	total := 0
	for {
		if d.hdr == nil {
			if len(buf)-total < HeaderSize {
				return total, nil
			}
			h, ok := getHeader(buf[total : total+HeaderSize])
			if !ok {
				d.reset()
				return 0, ErrCorrupted
			}
			total += HeaderSize
			hc := h
			d.hdr = &hc
		}

		h := d.hdr
		if len(buf)-total < int(h.bytes) {
			return total, nil
		}
		payload := buf[total : total+int(h.bytes)]
		total += int(h.bytes)

		if err := d.assemble(*h, payload); err != nil {
			d.reset()
			return 0, err
		}
		d.hdr = nil
	}
}

func (d *Decoder) assemble(h header, payload []byte) error {
	if h.mode == modeEnd {
		existing, ok := d.cache[h.id]
		if d.MaxRecordSize > 0 && len(existing)+len(payload) > d.MaxRecordSize {
			return ErrRecordTooLarge
		}
		var full []byte
		if ok {
			full = append(existing, payload...)
			delete(d.cache, h.id)
		} else {
			full = append([]byte(nil), payload...)
		}
		d.queue = append(d.queue, Record{MessageID: h.id, Tag: h.mid, PID: h.pid, Data: full})
		return nil
	}

	existing := d.cache[h.id]
	if d.MaxRecordSize > 0 && len(existing)+len(payload) > d.MaxRecordSize {
		return ErrRecordTooLarge
	}
	d.cache[h.id] = append(existing, payload...)
	return nil
}

func (d *Decoder) reset() {
	d.staging = nil
	d.hdr = nil
	d.cache = make(map[uint32][]byte)
	d.queue = nil
}

// Get front-peeks the oldest completed record without removing it.
func (d *Decoder) Get() (Record, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.queue) == 0 {
		return Record{}, false
	}
	return d.queue[0], true
}

// Pop drops the oldest completed record.
func (d *Decoder) Pop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.queue) > 0 {
		d.queue = d.queue[1:]
	}
}

// Len reports how many completed records are waiting.
func (d *Decoder) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queue)
}
