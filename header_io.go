// Copyright 2018 Zanicar. All rights reserved.
// Utilizes a BSD-3 license. Refer to the included LICENSE file for details.

package steganocore

import (
	"github.com/pkg/errors"

	"github.com/zanicar/steganocore/bitutil"
	"github.com/zanicar/steganocore/carrier"
	"github.com/zanicar/steganocore/header"
	"github.com/zanicar/steganocore/pattern"
	"github.com/zanicar/steganocore/redundancy"
	"github.com/zanicar/steganocore/slot"
)

// writeBits MSB-expands data and writes one bit per slot the iterator
// produces, in order.
func writeBits(pix *carrier.PixelArray, it *slot.Iterator, data []byte) error {
	for _, bit := range bitutil.BitsOf(data) {
		s, err := it.Next()
		if err != nil {
			return err
		}
		sample := pix.At(s.X, s.Y, s.Channel)
		pix.Set(s.X, s.Y, s.Channel, bitutil.WriteBit(sample, s.Bit, bit))
	}
	return nil
}

// readBits reads numBytes*8 slots in order and compacts them MSB-first
// back into bytes.
func readBits(pix *carrier.PixelArray, it *slot.Iterator, numBytes int) ([]byte, error) {
	bits := make([]byte, 0, numBytes*8)
	for i := 0; i < numBytes*8; i++ {
		s, err := it.Next()
		if err != nil {
			return nil, err
		}
		sample := pix.At(s.X, s.Y, s.Channel)
		bits = append(bits, bitutil.ReadBit(sample, s.Bit))
	}
	data, _ := bitutil.BytesOf(bits)
	return data, nil
}

// readRepeatedBytes reads n*rep raw bytes from the slot sequence and
// majority-decodes them back to n bytes (spec.md §4.F's "optional
// repetition" on the header frame).
func readRepeatedBytes(pix *carrier.PixelArray, it *slot.Iterator, n, rep int) ([]byte, error) {
	repeated, err := readBits(pix, it, n*rep)
	if err != nil {
		return nil, err
	}
	if rep <= 1 {
		return repeated, nil
	}
	return redundancy.MajorityDecode(repeated, rep, 1), nil
}

// encodeHeaderFrame serializes h and applies its pattern's configured
// byte-wise repetition.
func encodeHeaderFrame(h header.Header, rep int) []byte {
	return redundancy.Repeat(h.Encode(), rep, 1)
}

// headerFixedSize is the header layout's portion preceding the optional
// descriptor section: magic(4) + version(1) + flags(1) + data length(4) +
// CRC(2), per spec.md §4.F's table.
const headerFixedSize = 4 + 1 + 1 + 4 + 2

// headerEncodedSize is the exact encoded size of a header frame for a
// header pattern hp, computed analytically rather than by encoding a
// concrete header: the descriptor section, when present, is always
// pattern.DescriptorSize (16) bytes — spec.md §6's descriptor table is a
// fixed tuple, not payload-dependent — so a header's wire size depends
// only on hp.WritePattern, never on what is actually being hidden. This
// lets the decoder size its read before it has decoded anything (needed
// for the `end` position, where the read must start at exactly
// W·H − footprint).
func headerEncodedSize(hp pattern.Header) int {
	size := headerFixedSize
	if hp.WritePattern {
		size += 2 + pattern.DescriptorSize
	}
	return size
}

// decodeHeaderFrame reads one header frame of the analytically-known size
// for hp from the slot sequence under rep-fold repetition and parses it
// (spec.md §4.F).
func decodeHeaderFrame(pix *carrier.PixelArray, it *slot.Iterator, hp pattern.Header) (header.Header, error) {
	full, err := readRepeatedBytes(pix, it, headerEncodedSize(hp), hp.Repetition)
	if err != nil {
		return header.Header{}, err
	}
	return header.Decode(full)
}

// headerFootprintPixels runs a dry iterator over resolved (starting at
// pixel 0) to find how many pixels a numBytes-long header frame occupies,
// for the `end` header position and for the `start` position's "data
// begins right after the header" rule (spec.md §2: "Header written first
// into its own slot range.").
func headerFootprintPixels(resolved pattern.Resolved, width, height, numBytes int) (int, error) {
	probe := resolved
	probe.Offset = 0
	it := slot.New(probe, width, height)
	var last slot.Slot
	for i := 0; i < numBytes*8; i++ {
		s, err := it.Next()
		if err != nil {
			return 0, err
		}
		last = s
	}
	return last.Y*width + last.X + 1, nil
}

// resolveHeaderPlacement normalizes the header's bit-placement pattern and
// computes its starting pixel offset for the requested position
// (spec.md §4.F): `start` uses the header pattern's own configured
// offset verbatim; `end` places the frame so it ends exactly at the last
// pixel of the carrier; `custom(x,y)` starts at that pixel.
func resolveHeaderPlacement(hp pattern.Header, mode carrier.Mode, width, height, encodedLen int) (pattern.Resolved, error) {
	base := pattern.Pattern{BitPlacement: hp.BitPlacement, RepetitiveRedundancy: 1}

	switch hp.Position {
	case pattern.PositionStart:
		return pattern.Normalize(base, mode)

	case pattern.PositionEnd:
		probeBase := base
		probeBase.Offset = 0
		probeResolved, err := pattern.Normalize(probeBase, mode)
		if err != nil {
			return pattern.Resolved{}, err
		}
		footprint, err := headerFootprintPixels(probeResolved, width, height, encodedLen)
		if err != nil {
			return pattern.Resolved{}, err
		}
		offset := width*height - footprint
		if offset < 0 {
			return pattern.Resolved{}, slot.ErrCapacityExceeded
		}
		endBase := base
		endBase.Offset = offset
		return pattern.Normalize(endBase, mode)

	case pattern.PositionCustom:
		customBase := base
		customBase.Offset = hp.CustomY*width + hp.CustomX
		return pattern.Normalize(customBase, mode)

	default:
		return pattern.Resolved{}, errors.Wrapf(pattern.ErrInvalidPattern, "unknown header position %d", hp.Position)
	}
}
