package header_test

import (
	"bytes"
	"testing"

	"github.com/zanicar/steganocore/header"
)

func TestHeaderRoundTrip(t *testing.T) {
	h := header.Header{
		Version:    header.Version,
		Flags:      header.FlagWriteDataSize | header.FlagWritePattern,
		DataLength: 1234,
		Descriptor: []byte{1, 2, 3, 4, 5},
	}
	encoded := h.Encode()
	if len(encoded) != h.EncodedSize() {
		t.Fatalf("EncodedSize() = %d, Encode() produced %d bytes", h.EncodedSize(), len(encoded))
	}

	decoded, err := header.Decode(encoded)
	if err != nil {
		t.Fatal(err)
	}
	if decoded.DataLength != h.DataLength {
		t.Fatalf("got length %d, want %d", decoded.DataLength, h.DataLength)
	}
	if !bytes.Equal(decoded.Descriptor, h.Descriptor) {
		t.Fatalf("got descriptor %v, want %v", decoded.Descriptor, h.Descriptor)
	}
}

func TestHeaderDetectsCorruption(t *testing.T) {
	h := header.Header{
		Version:    header.Version,
		Flags:      header.FlagWriteDataSize,
		DataLength: 42,
	}
	encoded := h.Encode()
	encoded[len(encoded)-3] ^= 0xFF // flip every bit of a byte inside the covered region

	if _, err := header.Decode(encoded); err == nil {
		t.Fatal("expected header corruption to be detected")
	}
}

func TestHeaderRejectsBadMagic(t *testing.T) {
	h := header.Header{Version: header.Version, Flags: header.FlagWriteDataSize, DataLength: 1}
	encoded := h.Encode()
	encoded[0] = 'X'
	if _, err := header.Decode(encoded); err == nil {
		t.Fatal("expected bad magic to be detected")
	}
}

func TestChecksumCCITTKnownVector(t *testing.T) {
	// "123456789" -> 0x29B1 is the standard CRC-16/CCITT-FALSE test vector
	// (poly 0x1021, init 0xFFFF), matching spec.md §6.
	got := header.ChecksumCCITT([]byte("123456789"))
	if got != 0x29B1 {
		t.Fatalf("got %04X, want 29B1", got)
	}
}
