// Copyright 2018 Zanicar. All rights reserved.
// Utilizes a BSD-3 license. Refer to the included LICENSE file for details.

// Package slot implements the deterministic (x, y, channel, bit) slot
// sequence generator used symmetrically by the encoder and decoder drivers
// (spec.md §4.C). Identical (image geometry, pattern, starting bit offset)
// always produces identical slot sequences.
package slot

import (
	"github.com/pkg/errors"

	"github.com/zanicar/steganocore/carrier"
	"github.com/zanicar/steganocore/pattern"
)

// ErrCapacityExceeded is returned when the pixel cursor would exceed the
// carrier's pixel count.
var ErrCapacityExceeded = errors.New("slot: capacity exceeded")

// Slot is a single carrier bit position: pixel (X, Y), channel, and the
// bit index within that channel's sample (0 = LSB).
type Slot struct {
	X, Y    int
	Channel carrier.Channel
	Bit     int
}

// Iterator walks the canonical slot sequence for a resolved pattern over a
// carrier of the given dimensions (spec.md §4.C).
//
// At each visited pixel the iterator produces |channels|*bit_frequency
// consecutive slots, cycling channels in pattern order and, within each
// channel, bit positions 0..bit_frequency-1. Every 8 emitted slots (one
// underlying byte) the pixel cursor jumps from the byte's starting pixel
// to start+perByteAdvance, where perByteAdvance is
// max(byte_spacing, ceil(8/(|channels|*bit_frequency))) — the edge policy
// of spec.md §4.C, covering both the "several pixels per byte" case
// (slotsPerPixel < 8) and the plain byte_spacing case (slotsPerPixel >= 8).
// Any slots left unused within a byte's pixel span when slotsPerPixel does
// not evenly divide 8 are discarded, keeping byte boundaries pixel-aligned
// and the sequence reproducible from (geometry, pattern, offset) alone.
type Iterator struct {
	channels     []carrier.Channel
	bitFrequency int
	width        int
	numPixels    int

	perByteAdvance int

	pixelCursor  int
	channelIdx   int
	bitIdx       int
	bitsInByte   int
	byteStart    int
	exhausted    bool
}

func slotsPerPixel(r pattern.Resolved) int {
	return len(r.Channels) * r.BitFrequency
}

// New constructs an Iterator for the resolved pattern over a width x height
// carrier, starting at the pattern's configured offset.
func New(r pattern.Resolved, width, height int) *Iterator {
	spp := slotsPerPixel(r)
	ceilDiv := (8 + spp - 1) / spp
	step := r.ByteSpacing
	if ceilDiv > step {
		step = ceilDiv
	}
	return &Iterator{
		channels:       r.Channels,
		bitFrequency:   r.BitFrequency,
		width:          width,
		numPixels:      width * height,
		perByteAdvance: step,
		pixelCursor:    r.Offset,
		byteStart:      r.Offset,
	}
}

// cursorState is the mutable cursor bookkeeping Next() advances by one slot
// at a time. It is factored out of Next() so Remaining() can replay the
// same channel/bit/byte-boundary transitions on a scratch copy instead of
// approximating them.
type cursorState struct {
	pixelCursor int
	channelIdx  int
	bitIdx      int
	bitsInByte  int
	byteStart   int
}

func (it *Iterator) state() cursorState {
	return cursorState{
		pixelCursor: it.pixelCursor,
		channelIdx:  it.channelIdx,
		bitIdx:      it.bitIdx,
		bitsInByte:  it.bitsInByte,
		byteStart:   it.byteStart,
	}
}

func (it *Iterator) setState(s cursorState) {
	it.pixelCursor = s.pixelCursor
	it.channelIdx = s.channelIdx
	it.bitIdx = s.bitIdx
	it.bitsInByte = s.bitsInByte
	it.byteStart = s.byteStart
}

// advance applies one slot's worth of bookkeeping to s — the same channel/
// bit increment and byte-boundary pixel jump Next() performs — and reports
// whether a slot was available to emit at s's starting position.
func (it *Iterator) advance(s *cursorState) bool {
	if s.pixelCursor >= it.numPixels {
		return false
	}

	s.bitIdx++
	if s.bitIdx == it.bitFrequency {
		s.bitIdx = 0
		s.channelIdx++
		if s.channelIdx == len(it.channels) {
			s.channelIdx = 0
			s.pixelCursor++
		}
	}

	s.bitsInByte++
	if s.bitsInByte == 8 {
		s.bitsInByte = 0
		s.byteStart += it.perByteAdvance
		s.pixelCursor = s.byteStart
		s.channelIdx = 0
		s.bitIdx = 0
	}

	return true
}

// Next produces the next slot in the sequence. It returns
// ErrCapacityExceeded once the pixel cursor would exceed the carrier's
// pixel count.
func (it *Iterator) Next() (Slot, error) {
	if it.exhausted || it.pixelCursor >= it.numPixels {
		it.exhausted = true
		return Slot{}, ErrCapacityExceeded
	}

	ch := it.channels[it.channelIdx]
	bit := it.bitIdx
	x := it.pixelCursor % it.width
	y := it.pixelCursor / it.width
	s := Slot{X: x, Y: y, Channel: ch, Bit: bit}

	cs := it.state()
	it.advance(&cs)
	it.setState(cs)

	return s, nil
}

// Remaining reports the exact number of slots still available before the
// iterator would exhaust, without consuming it. It replays advance() on a
// scratch cursorState rather than multiplying pixels by slots-per-pixel,
// since that naive count ignores the edge-policy slots Next() itself
// discards whenever channels*bit_frequency doesn't evenly divide 8 (see
// the byte-boundary jump in advance()). It is used for capacity
// pre-flight checks.
func (it *Iterator) Remaining() int {
	cs := it.state()
	count := 0
	for it.advance(&cs) {
		count++
	}
	return count
}
