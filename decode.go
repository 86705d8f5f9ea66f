// Copyright 2018 Zanicar. All rights reserved.
// Utilizes a BSD-3 license. Refer to the included LICENSE file for details.

package steganocore

import (
	stderrors "errors"
	"fmt"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/zanicar/steganocore/carrier"
	"github.com/zanicar/steganocore/frame"
	"github.com/zanicar/steganocore/header"
	"github.com/zanicar/steganocore/pattern"
	"github.com/zanicar/steganocore/redundancy"
	"github.com/zanicar/steganocore/slot"
)

// ErrLengthUnknown is returned when no header was found, the caller
// supplied no DataLength, and hash-guided trimming is either disabled or
// unavailable (no hash configured) — spec.md §9's "immediate failure if
// no hash is configured" clause.
var ErrLengthUnknown = errors.New("steganocore: payload length unknown (no header, no data_length, no hash to trim by)")

// Decoder orchestrates a single decode run (component H, spec.md §4.H).
type Decoder struct {
	// EnforceProvidedPattern keeps the caller-supplied data pattern even
	// when a header carrying its own descriptor decodes successfully
	// (spec.md §4.F).
	EnforceProvidedPattern bool

	// DataLength is the post-compression, post-hash body length in
	// bytes, supplied out of band when no header (or a header without
	// write_data_size) is in play. Zero means "unknown."
	DataLength int

	// AllowQuadraticTrim enables the last-resort hash-guided trimming
	// loop of spec.md §9 when no header and no DataLength are available.
	// Quadratic in the carrier's usable bytes; off by default.
	AllowQuadraticTrim bool
}

// DefaultDecoder is the package-level Decoder used by the Decode
// convenience function.
var DefaultDecoder = Decoder{}

// Decode is a thin wrapper around DefaultDecoder.Decode.
func Decode(pix *carrier.PixelArray, p pattern.Pattern) ([]byte, error) {
	return DefaultDecoder.Decode(pix, p)
}

// Decode implements spec.md §4.H: it attempts header decode (start, then
// end, then the header pattern's configured custom position), reconciles
// the data pattern and payload length, reads the data slot sequence, and
// inverts repetition, Reed–Solomon, hashing, and compression in turn.
func (d Decoder) Decode(pix *carrier.PixelArray, p pattern.Pattern) ([]byte, error) {
	logger := log.With().Str("component", "decoder").Logger()

	if len(pix.Mode.Channels()) == 0 {
		return nil, wrapErr(KindUnsupportedImage, fmt.Errorf("unsupported carrier mode %v", pix.Mode))
	}

	dataPattern := p
	bodyLen := -1
	if d.DataLength > 0 {
		bodyLen = d.DataLength
	}

	var headerFootprint int
	if p.Header.Enabled {
		hdr, pos, footprint, err := findHeader(pix, p.Header)
		if err != nil {
			return nil, wrapErr(KindHeaderCorrupt, errors.Wrap(err, "steganocore: header decode"))
		}
		if hdr != nil {
			logger.Debug().Uint8("flags", hdr.Flags).Msg("header decoded")
			if hdr.HasDataLength() {
				bodyLen = int(hdr.DataLength)
			}
			if hdr.HasDescriptor() && !d.EnforceProvidedPattern {
				descriptor, derr := pattern.DecodeDescriptor(hdr.Descriptor)
				if derr != nil {
					return nil, wrapErr(KindHeaderCorrupt, errors.Wrap(derr, "steganocore: decode descriptor"))
				}
				dataPattern = descriptor.ToPattern()
			}
			if pos == pattern.PositionStart {
				headerFootprint = footprint
			}
		}
	}

	resolved, err := pattern.Normalize(dataPattern, pix.Mode)
	if err != nil {
		return nil, wrapErr(KindInvalidPattern, err)
	}
	if headerFootprint > 0 {
		resolved.Offset = headerFootprint + dataPattern.BitPlacement.Offset
	}
	it := slot.New(resolved, pix.Width, pix.Height)

	if bodyLen >= 0 {
		_, framedLen := frame.FramedLength(bodyLen, dataPattern)
		framed, err := readBits(pix, it, framedLen)
		if err != nil {
			return nil, wrapErr(KindCapacityExceeded, errors.Wrap(err, "steganocore: read frame"))
		}
		logger.Debug().Int("body_len", bodyLen).Int("framed_len", framedLen).Msg("frame read")
		return classify(frame.Disassemble(framed, dataPattern, bodyLen, rsLenFor(bodyLen, dataPattern)))
	}

	maxBytes := it.Remaining() / 8
	framed, err := readBits(pix, it, maxBytes)
	if err != nil {
		return nil, wrapErr(KindCapacityExceeded, errors.Wrap(err, "steganocore: read frame"))
	}
	if dataPattern.HashCheck == pattern.HashNone || !d.AllowQuadraticTrim {
		return nil, wrapErr(KindOther, ErrLengthUnknown)
	}
	logger.Debug().Int("max_bytes", maxBytes).Msg("length unknown, hash-guided trim")
	return classify(trimByHash(framed, dataPattern))
}

// rsLenFor recomputes the post-RS, pre-repetition byte length for a known
// bodyLen, matching frame.Assemble's own arithmetic.
func rsLenFor(bodyLen int, p pattern.Pattern) int {
	rsLen, _ := frame.FramedLength(bodyLen, p)
	return rsLen
}

// findHeader tries the header pattern at spec.md §4.F's documented
// positions in order — start, end, then the header pattern's own
// configured position if it names something other than start/end — and
// returns the first one that decodes with a valid CRC.
func findHeader(pix *carrier.PixelArray, hp pattern.Header) (*header.Header, pattern.HeaderPosition, int, error) {
	tried := map[pattern.HeaderPosition]bool{}
	order := []pattern.HeaderPosition{pattern.PositionStart, pattern.PositionEnd, hp.Position}

	rep := hp.Repetition
	if rep < 1 {
		rep = 1
	}

	var lastErr error
	for _, pos := range order {
		if tried[pos] {
			continue
		}
		tried[pos] = true

		candidate := hp
		candidate.Position = pos
		encodedLen := headerEncodedSize(candidate) * rep
		resolved, err := resolveHeaderPlacement(candidate, pix.Mode, pix.Width, pix.Height, encodedLen)
		if err != nil {
			lastErr = err
			continue
		}
		it := slot.New(resolved, pix.Width, pix.Height)
		hdr, err := decodeHeaderFrame(pix, it, candidate)
		if err != nil {
			lastErr = err
			continue
		}
		footprint, ferr := headerFootprintPixels(resolved, pix.Width, pix.Height, encodedLen)
		if ferr != nil {
			lastErr = ferr
			continue
		}
		return &hdr, pos, footprint, nil
	}
	if lastErr == nil {
		lastErr = header.ErrHeaderCorrupt
	}
	return nil, pattern.PositionStart, 0, lastErr
}

// trimByHash is the last-resort decode path of spec.md §9: with no known
// body length, progressively shrink the candidate framed byte range from
// the full read down to the repetition unit, accepting the first length
// whose hash verifies.
func trimByHash(framed []byte, p pattern.Pattern) ([]byte, error) {
	unit := 1
	if p.RepetitiveRedundancyMode == pattern.RepetitionBlock && p.AdvancedRedundancy == pattern.RedundancyReedSolomon {
		unit = redundancy.DeriveRSParams(p.AdvancedRedundancyCorrectionFactor).N
	}
	step := unit * p.RepetitiveRedundancy
	if step <= 0 {
		step = 1
	}

	var lastErr error
	for n := len(framed); n > 0; n -= step {
		candidate := framed[:n]
		body, err := frame.Disassemble(candidate, p, -1, -1)
		if err == nil {
			return body, nil
		}
		var integrityErr *frame.ErrIntegrityFailure
		if !stderrors.As(err, &integrityErr) {
			lastErr = err
			continue
		}
		lastErr = err
	}
	return nil, lastErr
}

// classify maps frame.Disassemble's error surface onto the core's typed
// Kinds (spec.md §7).
func classify(body []byte, err error) ([]byte, error) {
	if err == nil {
		return body, nil
	}
	var integrityErr *frame.ErrIntegrityFailure
	if stderrors.As(err, &integrityErr) {
		return nil, &Error{Kind: KindIntegrityFailure, Cause: err, Recovered: integrityErr.RecoveredBytes}
	}
	if errors.Cause(err) == redundancy.ErrUncorrectable {
		return nil, wrapErr(KindUncorrectable, err)
	}
	return nil, wrapErr(KindOther, err)
}
