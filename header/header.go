// Copyright 2018 Zanicar. All rights reserved.
// Utilizes a BSD-3 license. Refer to the included LICENSE file for details.

// Package header implements the self-describing in-image preamble of
// spec.md §4.F: a fixed little-endian layout recording payload size and
// an optional embedded pattern descriptor, terminated by a CRC-16-CCITT
// over the preceding header bytes.
package header

import (
	"bytes"
	"encoding/binary"

	"github.com/pkg/errors"
)

// Magic is the ASCII "STEG" preamble (spec.md §6).
var Magic = [4]byte{'S', 'T', 'E', 'G'}

// Version is the current header layout version.
const Version uint8 = 1

// Flag bits within the header's flags byte (spec.md §4.F).
const (
	FlagWriteDataSize uint8 = 1 << iota
	FlagWritePattern
	FlagHashPresent
	FlagCompressionPresent
	FlagRSPresent
)

// ErrHeaderCorrupt is returned when the trailing CRC-16 does not match the
// preceding header bytes.
var ErrHeaderCorrupt = errors.New("header: corrupt (CRC mismatch)")

// Header is the parsed preamble (spec.md §4.F table).
type Header struct {
	Version    uint8
	Flags      uint8
	DataLength uint32 // present iff Flags&FlagWriteDataSize != 0, else 0
	Descriptor []byte // present iff Flags&FlagWritePattern != 0
}

// HasDataLength reports whether the encoded header carries a payload
// length field.
func (h Header) HasDataLength() bool { return h.Flags&FlagWriteDataSize != 0 }

// HasDescriptor reports whether the encoded header carries a pattern
// descriptor.
func (h Header) HasDescriptor() bool { return h.Flags&FlagWritePattern != 0 }

// Encode serializes h to its canonical byte layout, appending the
// trailing CRC-16-CCITT over everything that precedes it.
func (h Header) Encode() []byte {
	var buf bytes.Buffer
	buf.Write(Magic[:])
	buf.WriteByte(h.Version)
	buf.WriteByte(h.Flags)

	if h.Flags&FlagWriteDataSize != 0 {
		_ = binary.Write(&buf, binary.LittleEndian, h.DataLength)
	} else {
		_ = binary.Write(&buf, binary.LittleEndian, uint32(0))
	}

	if h.Flags&FlagWritePattern != 0 {
		_ = binary.Write(&buf, binary.LittleEndian, uint16(len(h.Descriptor)))
		buf.Write(h.Descriptor)
	}

	crc := ChecksumCCITT(buf.Bytes())
	_ = binary.Write(&buf, binary.LittleEndian, crc)
	return buf.Bytes()
}

// EncodedSize returns the exact encoded byte length of h, without
// allocating — used by the driver to size the header's slot range before
// the payload length is finalized.
func (h Header) EncodedSize() int {
	size := len(Magic) + 1 + 1 + 4 + 2 // magic, version, flags, length, crc
	if h.Flags&FlagWritePattern != 0 {
		size += 2 + len(h.Descriptor)
	}
	return size
}

// Decode parses a header from its canonical byte encoding, verifying the
// trailing CRC-16-CCITT. It returns ErrHeaderCorrupt on a CRC mismatch or
// magic mismatch.
func Decode(b []byte) (Header, error) {
	minSize := len(Magic) + 1 + 1 + 4 + 2
	if len(b) < minSize {
		return Header{}, errors.Wrap(ErrHeaderCorrupt, "truncated header")
	}
	if !bytes.Equal(b[:4], Magic[:]) {
		return Header{}, errors.Wrap(ErrHeaderCorrupt, "bad magic")
	}

	r := bytes.NewReader(b[4:])
	var h Header
	_ = binary.Read(r, binary.LittleEndian, &h.Version)
	_ = binary.Read(r, binary.LittleEndian, &h.Flags)
	_ = binary.Read(r, binary.LittleEndian, &h.DataLength)

	offset := 10 // magic(4) + version(1) + flags(1) + length(4)
	if h.Flags&FlagWritePattern != 0 {
		if len(b) < offset+2 {
			return Header{}, errors.Wrap(ErrHeaderCorrupt, "truncated descriptor length")
		}
		lp := int(binary.LittleEndian.Uint16(b[offset : offset+2]))
		offset += 2
		if len(b) < offset+lp+2 {
			return Header{}, errors.Wrap(ErrHeaderCorrupt, "truncated descriptor")
		}
		h.Descriptor = append([]byte(nil), b[offset:offset+lp]...)
		offset += lp
	}

	if len(b) < offset+2 {
		return Header{}, errors.Wrap(ErrHeaderCorrupt, "truncated CRC")
	}
	wantCRC := binary.LittleEndian.Uint16(b[offset : offset+2])
	gotCRC := ChecksumCCITT(b[:offset])
	if wantCRC != gotCRC {
		return Header{}, ErrHeaderCorrupt
	}

	return h, nil
}
