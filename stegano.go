// Copyright 2018 Zanicar. All rights reserved.
// Utilizes a BSD-3 license. Refer to the included LICENSE file for details.

// Package steganocore implements the steganographic codec core: a
// pattern-driven bit-placement engine (see package slot), a payload
// framing pipeline of compression, hashing, Reed–Solomon, and repetition
// (see package frame and package redundancy), and a self-describing
// in-image header (see package header). It hides payload bytes inside the
// least-significant bits of a carrier image's pixel channels and recovers
// them symmetrically; it does not parse any image container format —
// callers supply and receive a carrier.PixelArray, leaving PNG/JPEG/etc.
// decoding to a collaborator (see package png).
package steganocore

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/zanicar/steganocore/carrier"
	"github.com/zanicar/steganocore/frame"
	"github.com/zanicar/steganocore/header"
	"github.com/zanicar/steganocore/pattern"
	"github.com/zanicar/steganocore/slot"
)

// Encoder orchestrates a single encode run (component G, spec.md §4.G).
// The zero value is ready to use.
type Encoder struct{}

// DefaultEncoder is the package-level Encoder used by the Encode
// convenience function.
var DefaultEncoder = Encoder{}

// Encode frames payload per the pattern, optionally writes a header, and
// writes the framed bit stream into a clone of pix. It is a thin wrapper
// around DefaultEncoder.Encode.
func Encode(pix *carrier.PixelArray, p pattern.Pattern, payload []byte) (*carrier.PixelArray, error) {
	return DefaultEncoder.Encode(pix, p, payload)
}

// Capacity reports the usable carrier bits and bytes for (pix, p), per
// spec.md §3's invariant, without framing or writing anything. It is a
// thin wrapper around DefaultEncoder.Capacity.
func Capacity(pix *carrier.PixelArray, p pattern.Pattern) (bits, bytes int, err error) {
	return DefaultEncoder.Capacity(pix, p)
}

// Encode implements spec.md §4.G: frame the payload, verify capacity,
// optionally write a header, then write the framed stream into a cloned
// pixel array. It fails with a *Error of kind KindInvalidPattern,
// KindUnsupportedImage, or KindCapacityExceeded (or KindOther if framing
// itself fails) before any pixel is mutated; the input pix is left
// untouched on every error path.
func (Encoder) Encode(pix *carrier.PixelArray, p pattern.Pattern, payload []byte) (*carrier.PixelArray, error) {
	logger := log.With().Str("component", "encoder").Logger()

	if len(pix.Mode.Channels()) == 0 {
		return nil, wrapErr(KindUnsupportedImage, fmt.Errorf("unsupported carrier mode %v", pix.Mode))
	}

	resolved, err := pattern.Normalize(p, pix.Mode)
	if err != nil {
		return nil, wrapErr(KindInvalidPattern, err)
	}

	framed, bodyLen, rsLen, err := frame.Assemble(payload, p)
	if err != nil {
		return nil, wrapErr(KindOther, errors.Wrap(err, "steganocore: assemble frame"))
	}
	logger.Debug().
		Int("payload_len", len(payload)).
		Int("body_len", bodyLen).
		Int("rs_len", rsLen).
		Int("framed_len", len(framed)).
		Msg("frame assembled")

	var headerFootprint int
	var encodedHeader []byte
	var hdrResolved pattern.Resolved
	if p.Header.Enabled {
		encodedHeader, hdrResolved, err = buildHeaderFrame(resolved, p, pix, bodyLen)
		if err != nil {
			return nil, wrapErr(KindCapacityExceeded, errors.Wrap(err, "steganocore: header placement"))
		}
		if p.Header.Position == pattern.PositionStart {
			headerFootprint, err = headerFootprintPixels(hdrResolved, pix.Width, pix.Height, len(encodedHeader))
			if err != nil {
				return nil, wrapErr(KindCapacityExceeded, errors.Wrap(err, "steganocore: header footprint"))
			}
		}
	}

	if headerFootprint > 0 {
		resolved.Offset = headerFootprint + p.BitPlacement.Offset
	}

	it := slot.New(resolved, pix.Width, pix.Height)
	if it.Remaining() < len(framed)*8 {
		return nil, wrapErr(KindCapacityExceeded, fmt.Errorf(
			"steganocore: need %d bits, have %d", len(framed)*8, it.Remaining()))
	}

	out := pix.Clone()

	if p.Header.Enabled {
		hdrIt := slot.New(hdrResolved, pix.Width, pix.Height)
		if err := writeBits(out, hdrIt, encodedHeader); err != nil {
			return nil, wrapErr(KindCapacityExceeded, errors.Wrap(err, "steganocore: write header"))
		}
		logger.Debug().Int("header_bytes", len(encodedHeader)).Msg("header written")
	}

	if err := writeBits(out, it, framed); err != nil {
		return nil, wrapErr(KindCapacityExceeded, errors.Wrap(err, "steganocore: write frame"))
	}

	logger.Info().Int("bytes_written", len(framed)).Msg("encode complete")
	return out, nil
}

// buildHeaderFrame assembles the header's encoded, repeated frame bytes
// and resolves its placement pattern against the carrier (spec.md §4.F).
func buildHeaderFrame(dataResolved pattern.Resolved, p pattern.Pattern, pix *carrier.PixelArray, bodyLen int) ([]byte, pattern.Resolved, error) {
	flags := uint8(0)
	var descriptor []byte
	if p.Header.WriteDataSize {
		flags |= header.FlagWriteDataSize
	}
	if p.Header.WritePattern {
		flags |= header.FlagWritePattern
		descriptor = dataResolved.ToDescriptor().Encode()
	}
	if p.HashCheck != pattern.HashNone {
		flags |= header.FlagHashPresent
	}
	if p.Compression != pattern.CompressionNone {
		flags |= header.FlagCompressionPresent
	}
	if p.AdvancedRedundancy != pattern.RedundancyNone {
		flags |= header.FlagRSPresent
	}

	hdr := header.Header{Version: header.Version, Flags: flags, Descriptor: descriptor}
	if p.Header.WriteDataSize {
		hdr.DataLength = uint32(bodyLen)
	}

	encoded := encodeHeaderFrame(hdr, p.Header.Repetition)

	hdrResolved, err := resolveHeaderPlacement(p.Header, pix.Mode, pix.Width, pix.Height, len(encoded))
	if err != nil {
		return nil, pattern.Resolved{}, err
	}
	return encoded, hdrResolved, nil
}

// Capacity reports the usable carrier bits and bytes for (pix, p) — the
// supplemented capacity pre-flight query of SPEC_FULL.md §5, mirroring
// the teacher's own CalculateCapacity helper.
func (Encoder) Capacity(pix *carrier.PixelArray, p pattern.Pattern) (bits, bytes int, err error) {
	if len(pix.Mode.Channels()) == 0 {
		return 0, 0, wrapErr(KindUnsupportedImage, fmt.Errorf("unsupported carrier mode %v", pix.Mode))
	}
	resolved, nerr := pattern.Normalize(p, pix.Mode)
	if nerr != nil {
		return 0, 0, wrapErr(KindInvalidPattern, nerr)
	}
	it := slot.New(resolved, pix.Width, pix.Height)
	bits = it.Remaining()
	return bits, bits / 8, nil
}
