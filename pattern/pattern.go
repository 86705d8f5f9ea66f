// Copyright 2018 Zanicar. All rights reserved.
// Utilizes a BSD-3 license. Refer to the included LICENSE file for details.

// Package pattern models the configuration that governs slot selection and
// payload framing (spec.md §3, §4.B): channel subsets, bit frequency, pixel
// spacing/offset, integrity/compression/redundancy algorithm choices, and
// the optional header sub-pattern. It validates and normalizes
// user-supplied patterns and exports a canonical fixed-layout descriptor
// for embedding in the header (spec.md §6).
package pattern

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/pkg/errors"

	"github.com/zanicar/steganocore/carrier"
)

// ErrInvalidPattern is returned for range violations or channel absence
// during normalization.
var ErrInvalidPattern = errors.New("invalid pattern")

// ChannelSelector names a channel subset before it is resolved against a
// concrete image mode.
type ChannelSelector int

const (
	// ChannelsAuto resolves to all non-alpha channels of the image mode.
	ChannelsAuto ChannelSelector = iota
	// ChannelsAll resolves to every channel of the image mode, in
	// declared order.
	ChannelsAll
	// ChannelsExplicit uses the Channels field verbatim.
	ChannelsExplicit
)

// HashAlgorithm names the integrity digest, or its absence.
type HashAlgorithm int

const (
	HashNone HashAlgorithm = iota
	HashMD5
	HashSHA256
)

// CompressionAlgorithm names the payload compression scheme, or its
// absence.
type CompressionAlgorithm int

const (
	CompressionNone CompressionAlgorithm = iota
	CompressionZlib
)

// RedundancyAlgorithm names the advanced error-correction scheme, or its
// absence.
type RedundancyAlgorithm int

const (
	RedundancyNone RedundancyAlgorithm = iota
	RedundancyReedSolomon
)

// RepetitionMode selects the unit that repetition redundancy applies to.
type RepetitionMode int

const (
	RepetitionBytePerByte RepetitionMode = iota
	RepetitionBlock
)

// HeaderPosition names where the header preamble lives in the carrier.
type HeaderPosition int

const (
	PositionStart HeaderPosition = iota
	PositionEnd
	PositionCustom
)

// Header describes the optional in-image preamble pattern (spec.md §3,
// §4.F). It embeds its own bit-placement fields, used exclusively for the
// header's own slot sequence.
type Header struct {
	Enabled        bool
	WriteDataSize  bool
	WritePattern   bool
	Position       HeaderPosition
	CustomX        int
	CustomY        int
	BitPlacement   BitPlacement
	Repetition     int // >= 1; byte-wise repetition of the header frame, spec.md §4.F "optional repetition"
}

// BitPlacement groups the fields that drive slot selection, shared between
// the top-level Pattern and its nested Header.
type BitPlacement struct {
	ChannelSelector ChannelSelector
	Channels        []carrier.Channel // used when ChannelSelector == ChannelsExplicit
	BitFrequency    int               // 1..8
	ByteSpacing     int               // >= 1
	Offset          int               // >= 0
}

// Pattern is the fully specified configuration governing one encode or
// decode run (spec.md §3).
type Pattern struct {
	BitPlacement

	HashCheck HashAlgorithm

	Compression         CompressionAlgorithm
	CompressionStrength int // 0..9

	AdvancedRedundancy                  RedundancyAlgorithm
	AdvancedRedundancyCorrectionFactor  float64 // [0, 1]

	RepetitiveRedundancy     int // >= 1
	RepetitiveRedundancyMode RepetitionMode

	Header Header
}

// Default returns a Pattern with the minimal, permissive defaults: auto
// channels, bit_frequency=1, byte_spacing=1, offset=0, no hash, no
// compression, no advanced redundancy, repetition=1, header disabled.
func Default() Pattern {
	return Pattern{
		BitPlacement: BitPlacement{
			ChannelSelector: ChannelsAuto,
			BitFrequency:    1,
			ByteSpacing:     1,
			Offset:          0,
		},
		HashCheck:                HashNone,
		Compression:              CompressionNone,
		AdvancedRedundancy:       RedundancyNone,
		RepetitiveRedundancy:     1,
		RepetitiveRedundancyMode: RepetitionBytePerByte,
		Header: Header{
			BitPlacement: BitPlacement{
				ChannelSelector: ChannelsAuto,
				BitFrequency:    1,
				ByteSpacing:     1,
				Offset:          0,
			},
			Repetition: 1,
		},
	}
}

// Resolved is a Pattern after channel-selector resolution against a
// concrete carrier mode: Channels is always the concrete, ordered,
// non-empty channel list to use.
type Resolved struct {
	Pattern
	Channels []carrier.Channel
}

// Normalize validates p's numeric ranges and resolves its channel selector
// against mode, returning a Resolved pattern ready for slot iteration.
// It fails with ErrInvalidPattern on range violations or channel absence.
func Normalize(p Pattern, mode carrier.Mode) (Resolved, error) {
	if err := validateBitPlacement(p.BitPlacement); err != nil {
		return Resolved{}, err
	}
	channels, err := resolveChannels(p.BitPlacement, mode)
	if err != nil {
		return Resolved{}, err
	}
	if p.RepetitiveRedundancy < 1 {
		return Resolved{}, errors.Wrapf(ErrInvalidPattern, "repetitive_redundancy must be >= 1, got %d", p.RepetitiveRedundancy)
	}
	if p.AdvancedRedundancy == RedundancyReedSolomon {
		if p.AdvancedRedundancyCorrectionFactor < 0 || p.AdvancedRedundancyCorrectionFactor > 1 {
			return Resolved{}, errors.Wrapf(ErrInvalidPattern, "advanced_redundancy_correction_factor must be in [0,1], got %v", p.AdvancedRedundancyCorrectionFactor)
		}
	}
	if p.Compression == CompressionZlib {
		if p.CompressionStrength < 0 || p.CompressionStrength > 9 {
			return Resolved{}, errors.Wrapf(ErrInvalidPattern, "compression_strength must be in [0,9], got %d", p.CompressionStrength)
		}
	}

	if p.Header.Enabled {
		if err := validateBitPlacement(p.Header.BitPlacement); err != nil {
			return Resolved{}, errors.Wrap(err, "header pattern")
		}
		if _, err := resolveChannels(p.Header.BitPlacement, mode); err != nil {
			return Resolved{}, errors.Wrap(err, "header pattern")
		}
		if p.Header.Repetition < 1 {
			return Resolved{}, errors.Wrapf(ErrInvalidPattern, "header repetition must be >= 1, got %d", p.Header.Repetition)
		}
	}

	return Resolved{Pattern: p, Channels: channels}, nil
}

func validateBitPlacement(bp BitPlacement) error {
	if bp.BitFrequency < 1 || bp.BitFrequency > 8 {
		return errors.Wrapf(ErrInvalidPattern, "bit_frequency must be in [1,8], got %d", bp.BitFrequency)
	}
	if bp.ByteSpacing < 1 {
		return errors.Wrapf(ErrInvalidPattern, "byte_spacing must be >= 1, got %d", bp.ByteSpacing)
	}
	if bp.Offset < 0 {
		return errors.Wrapf(ErrInvalidPattern, "offset must be >= 0, got %d", bp.Offset)
	}
	if bp.ChannelSelector == ChannelsExplicit && len(bp.Channels) == 0 {
		return errors.Wrap(ErrInvalidPattern, "explicit channel set is empty")
	}
	return nil
}

func resolveChannels(bp BitPlacement, mode carrier.Mode) ([]carrier.Channel, error) {
	modeChannels := mode.Channels()
	switch bp.ChannelSelector {
	case ChannelsAuto:
		var out []carrier.Channel
		for _, c := range modeChannels {
			if c != carrier.ChannelA {
				out = append(out, c)
			}
		}
		if len(out) == 0 {
			return nil, errors.Wrap(ErrInvalidPattern, "auto channel selection resolved to an empty set")
		}
		return out, nil
	case ChannelsAll:
		return append([]carrier.Channel(nil), modeChannels...), nil
	case ChannelsExplicit:
		present := make(map[carrier.Channel]bool, len(modeChannels))
		for _, c := range modeChannels {
			present[c] = true
		}
		out := make([]carrier.Channel, 0, len(bp.Channels))
		for _, c := range bp.Channels {
			if !present[c] {
				return nil, errors.Wrapf(ErrInvalidPattern, "channel %s not present in carrier mode %s", c, mode)
			}
			out = append(out, c)
		}
		if len(out) == 0 {
			return nil, errors.Wrap(ErrInvalidPattern, "explicit channel set is empty")
		}
		return out, nil
	default:
		return nil, errors.Wrapf(ErrInvalidPattern, "unknown channel selector %d", bp.ChannelSelector)
	}
}

// Descriptor is the canonical, fixed little-endian encoding of a pattern's
// bit-placement and framing parameters (spec.md §6), used for embedding a
// pattern inside the header preamble.
type Descriptor struct {
	ChannelMask                uint8
	BitFrequency               uint8
	ByteSpacing                uint16
	Offset                     uint32
	HashCheck                  uint8
	Compression                uint8
	CompressionStrength        uint8
	AdvancedRedundancy         uint8
	RSCorrectionFactorQ16      uint16
	RepetitiveRedundancy       uint8
	RepetitiveRedundancyMode   uint8
}

func channelMask(channels []carrier.Channel) uint8 {
	var m uint8
	for _, c := range channels {
		m |= uint8(c)
	}
	return m
}

func channelsFromMask(mask uint8) []carrier.Channel {
	var out []carrier.Channel
	for _, c := range []carrier.Channel{carrier.ChannelR, carrier.ChannelG, carrier.ChannelB, carrier.ChannelA, carrier.ChannelL} {
		if mask&uint8(c) != 0 {
			out = append(out, c)
		}
	}
	return out
}

// ToDescriptor builds the canonical descriptor for a resolved pattern.
func (r Resolved) ToDescriptor() Descriptor {
	return Descriptor{
		ChannelMask:              channelMask(r.Channels),
		BitFrequency:             uint8(r.BitFrequency),
		ByteSpacing:              uint16(r.ByteSpacing),
		Offset:                   uint32(r.Offset),
		HashCheck:                uint8(r.HashCheck),
		Compression:              uint8(r.Compression),
		CompressionStrength:      uint8(r.CompressionStrength),
		AdvancedRedundancy:       uint8(r.AdvancedRedundancy),
		RSCorrectionFactorQ16:    uint16(r.AdvancedRedundancyCorrectionFactor * 65536),
		RepetitiveRedundancy:     uint8(r.RepetitiveRedundancy),
		RepetitiveRedundancyMode: uint8(r.RepetitiveRedundancyMode),
	}
}

// Encode serializes the descriptor to its canonical little-endian byte
// layout (spec.md §6): 16 bytes.
func (d Descriptor) Encode() []byte {
	var buf bytes.Buffer
	_ = binary.Write(&buf, binary.LittleEndian, d.ChannelMask)
	_ = binary.Write(&buf, binary.LittleEndian, d.BitFrequency)
	_ = binary.Write(&buf, binary.LittleEndian, d.ByteSpacing)
	_ = binary.Write(&buf, binary.LittleEndian, d.Offset)
	_ = binary.Write(&buf, binary.LittleEndian, d.HashCheck)
	_ = binary.Write(&buf, binary.LittleEndian, d.Compression)
	_ = binary.Write(&buf, binary.LittleEndian, d.CompressionStrength)
	_ = binary.Write(&buf, binary.LittleEndian, d.AdvancedRedundancy)
	_ = binary.Write(&buf, binary.LittleEndian, d.RSCorrectionFactorQ16)
	_ = binary.Write(&buf, binary.LittleEndian, d.RepetitiveRedundancy)
	_ = binary.Write(&buf, binary.LittleEndian, d.RepetitiveRedundancyMode)
	return buf.Bytes()
}

// DescriptorSize is the fixed encoded size of a Descriptor in bytes.
const DescriptorSize = 16

// DecodeDescriptor parses a canonical descriptor from its byte encoding.
func DecodeDescriptor(b []byte) (Descriptor, error) {
	if len(b) < DescriptorSize {
		return Descriptor{}, fmt.Errorf("pattern: descriptor too short: got %d bytes, want %d", len(b), DescriptorSize)
	}
	r := bytes.NewReader(b)
	var d Descriptor
	_ = binary.Read(r, binary.LittleEndian, &d.ChannelMask)
	_ = binary.Read(r, binary.LittleEndian, &d.BitFrequency)
	_ = binary.Read(r, binary.LittleEndian, &d.ByteSpacing)
	_ = binary.Read(r, binary.LittleEndian, &d.Offset)
	_ = binary.Read(r, binary.LittleEndian, &d.HashCheck)
	_ = binary.Read(r, binary.LittleEndian, &d.Compression)
	_ = binary.Read(r, binary.LittleEndian, &d.CompressionStrength)
	_ = binary.Read(r, binary.LittleEndian, &d.AdvancedRedundancy)
	_ = binary.Read(r, binary.LittleEndian, &d.RSCorrectionFactorQ16)
	_ = binary.Read(r, binary.LittleEndian, &d.RepetitiveRedundancy)
	_ = binary.Read(r, binary.LittleEndian, &d.RepetitiveRedundancyMode)
	return d, nil
}

// ToPattern reconstructs a Pattern from a descriptor (the inverse of
// ToDescriptor), for the decoder path where only the header-embedded
// descriptor is known.
func (d Descriptor) ToPattern() Pattern {
	return Pattern{
		BitPlacement: BitPlacement{
			ChannelSelector: ChannelsExplicit,
			Channels:        channelsFromMask(d.ChannelMask),
			BitFrequency:    int(d.BitFrequency),
			ByteSpacing:     int(d.ByteSpacing),
			Offset:          int(d.Offset),
		},
		HashCheck:                          HashAlgorithm(d.HashCheck),
		Compression:                        CompressionAlgorithm(d.Compression),
		CompressionStrength:                int(d.CompressionStrength),
		AdvancedRedundancy:                 RedundancyAlgorithm(d.AdvancedRedundancy),
		AdvancedRedundancyCorrectionFactor:  float64(d.RSCorrectionFactorQ16) / 65536,
		RepetitiveRedundancy:               int(d.RepetitiveRedundancy),
		RepetitiveRedundancyMode:           RepetitionMode(d.RepetitiveRedundancyMode),
	}
}

// FromMap constructs a Pattern from a dynamic configuration dictionary,
// rejecting unknown keys and coercing types (spec.md §9's "dynamic
// configuration dictionary" design note, generalized to a typed record).
func FromMap(m map[string]interface{}) (Pattern, error) {
	p := Default()
	known := map[string]bool{
		"channels": true, "bit_frequency": true, "byte_spacing": true,
		"offset": true, "hash_check": true, "compression": true,
		"compression_strength": true, "advanced_redundancy": true,
		"advanced_redundancy_correction_factor": true,
		"repetitive_redundancy":                 true,
		"repetitive_redundancy_mode":            true,
	}
	for k := range m {
		if !known[k] {
			return Pattern{}, errors.Wrapf(ErrInvalidPattern, "unknown pattern key %q", k)
		}
	}

	if v, ok := m["channels"]; ok {
		switch vv := v.(type) {
		case string:
			switch vv {
			case "auto":
				p.ChannelSelector = ChannelsAuto
			case "all":
				p.ChannelSelector = ChannelsAll
			default:
				return Pattern{}, errors.Wrapf(ErrInvalidPattern, "unknown channels sentinel %q", vv)
			}
		case []carrier.Channel:
			p.ChannelSelector = ChannelsExplicit
			p.Channels = vv
		default:
			return Pattern{}, errors.Wrapf(ErrInvalidPattern, "channels: unsupported type %T", v)
		}
	}
	if v, ok := m["bit_frequency"]; ok {
		n, err := asInt(v, "bit_frequency")
		if err != nil {
			return Pattern{}, err
		}
		p.BitFrequency = n
	}
	if v, ok := m["byte_spacing"]; ok {
		n, err := asInt(v, "byte_spacing")
		if err != nil {
			return Pattern{}, err
		}
		p.ByteSpacing = n
	}
	if v, ok := m["offset"]; ok {
		n, err := asInt(v, "offset")
		if err != nil {
			return Pattern{}, err
		}
		p.Offset = n
	}
	if v, ok := m["hash_check"]; ok {
		s, _ := v.(string)
		switch s {
		case "none", "":
			p.HashCheck = HashNone
		case "md5":
			p.HashCheck = HashMD5
		case "sha256":
			p.HashCheck = HashSHA256
		default:
			return Pattern{}, errors.Wrapf(ErrInvalidPattern, "unknown hash_check %q", s)
		}
	}
	if v, ok := m["compression"]; ok {
		s, _ := v.(string)
		switch s {
		case "none", "":
			p.Compression = CompressionNone
		case "zlib":
			p.Compression = CompressionZlib
		default:
			return Pattern{}, errors.Wrapf(ErrInvalidPattern, "unknown compression %q", s)
		}
	}
	if v, ok := m["compression_strength"]; ok {
		n, err := asInt(v, "compression_strength")
		if err != nil {
			return Pattern{}, err
		}
		p.CompressionStrength = n
	}
	if v, ok := m["advanced_redundancy"]; ok {
		s, _ := v.(string)
		switch s {
		case "none", "":
			p.AdvancedRedundancy = RedundancyNone
		case "reed_solomon":
			p.AdvancedRedundancy = RedundancyReedSolomon
		default:
			return Pattern{}, errors.Wrapf(ErrInvalidPattern, "unknown advanced_redundancy %q", s)
		}
	}
	if v, ok := m["advanced_redundancy_correction_factor"]; ok {
		f, err := asFloat(v, "advanced_redundancy_correction_factor")
		if err != nil {
			return Pattern{}, err
		}
		p.AdvancedRedundancyCorrectionFactor = f
	}
	if v, ok := m["repetitive_redundancy"]; ok {
		n, err := asInt(v, "repetitive_redundancy")
		if err != nil {
			return Pattern{}, err
		}
		p.RepetitiveRedundancy = n
	}
	if v, ok := m["repetitive_redundancy_mode"]; ok {
		s, _ := v.(string)
		switch s {
		case "byte_per_byte", "":
			p.RepetitiveRedundancyMode = RepetitionBytePerByte
		case "block":
			p.RepetitiveRedundancyMode = RepetitionBlock
		default:
			return Pattern{}, errors.Wrapf(ErrInvalidPattern, "unknown repetitive_redundancy_mode %q", s)
		}
	}
	return p, nil
}

func asInt(v interface{}, field string) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		return int(n), nil
	default:
		return 0, errors.Wrapf(ErrInvalidPattern, "%s: unsupported type %T", field, v)
	}
}

func asFloat(v interface{}, field string) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	default:
		return 0, errors.Wrapf(ErrInvalidPattern, "%s: unsupported type %T", field, v)
	}
}
