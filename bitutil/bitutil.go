// Copyright 2018 Zanicar. All rights reserved.
// Utilizes a BSD-3 license. Refer to the included LICENSE file for details.

// Package bitutil provides the bit/byte conversions and single-sample LSB
// primitives shared by the pattern-driven placement engine: MSB-first
// bit-stream expansion and compaction, and least-significant-bit read/write
// on individual channel samples.
package bitutil

import (
	"bytes"

	"github.com/icza/bitio"
)

// BitsOf expands a byte stream into its MSB-first bit sequence: byte b
// yields (b>>7)&1, (b>>6)&1, ..., b&1.
func BitsOf(data []byte) []byte {
	bits := make([]byte, 0, len(data)*8)
	buf := bytes.NewBuffer(data)
	br := bitio.NewReader(buf)
	for i := 0; i < len(data)*8; i++ {
		b, err := br.ReadBits(1)
		if err != nil {
			break
		}
		bits = append(bits, byte(b))
	}
	return bits
}

// BytesOf compacts a bit stream (each element 0 or 1) back into bytes,
// padding the final byte with zero bits. It returns the packed bytes and
// the number of pad bits appended to the last byte.
func BytesOf(bits []byte) (data []byte, pad int) {
	pad = (8 - len(bits)%8) % 8
	var buf bytes.Buffer
	bw := bitio.NewWriter(&buf)
	for _, bit := range bits {
		_ = bw.WriteBits(uint64(bit&1), 1)
	}
	for i := 0; i < pad; i++ {
		_ = bw.WriteBits(0, 1)
	}
	_ = bw.Close()
	return buf.Bytes(), pad
}

// ReadLSBs returns the k least-significant bits of sample as a value in
// [0, 2^k).
func ReadLSBs(sample uint32, k int) uint32 {
	mask := uint32(1<<uint(k)) - 1
	return sample & mask
}

// WriteLSBs replaces the k least-significant bits of sample with v,
// leaving the upper bits unchanged. v must satisfy 0 <= v < 2^k.
func WriteLSBs(sample uint32, k int, v uint32) uint32 {
	mask := uint32(1<<uint(k)) - 1
	return (sample &^ mask) | (v & mask)
}

// ReadBit returns the single bit of sample at position bit (0 = LSB).
func ReadBit(sample uint32, bit int) byte {
	return byte((sample >> uint(bit)) & 1)
}

// WriteBit replaces the single bit of sample at position bit (0 = LSB)
// with v (0 or 1), leaving every other bit unchanged.
func WriteBit(sample uint32, bit int, v byte) uint32 {
	mask := uint32(1) << uint(bit)
	if v&1 != 0 {
		return sample | mask
	}
	return sample &^ mask
}
