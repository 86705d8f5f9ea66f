package redundancy_test

import (
	"bytes"
	"testing"

	"github.com/zanicar/steganocore/redundancy"
)

func TestRSRoundTrip(t *testing.T) {
	p := redundancy.DeriveRSParams(0.2)
	data := []byte("the quick brown fox jumps over the lazy dog")

	encoded, err := redundancy.EncodeRS(data, p)
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := redundancy.DecodeRS(encoded, len(data), p)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(decoded, data) {
		t.Fatalf("got %q, want %q", decoded, data)
	}
}

func TestRSCorrectsWithinCapacity(t *testing.T) {
	p := redundancy.DeriveRSParams(0.3) // nsym = round(0.3*255) = 77, t = 38
	data := []byte("integrity-preserving payload for correction test")

	encoded, err := redundancy.EncodeRS(data, p)
	if err != nil {
		t.Fatal(err)
	}

	corrupted := append([]byte(nil), encoded...)
	flips := 2 // exhaustive erasure search cost grows fast with flip count; stay small
	for i := 0; i < flips; i++ {
		corrupted[i] ^= 0xFF
	}

	decoded, err := redundancy.DecodeRS(corrupted, len(data), p)
	if err != nil {
		t.Fatalf("expected correction within capacity, got %v", err)
	}
	if !bytes.Equal(decoded, data) {
		t.Fatalf("got %q, want %q", decoded, data)
	}
}

func TestRepetitionMajorityVoteBytePerByte(t *testing.T) {
	data := []byte{0x41, 0x42, 0x43}
	repeated := redundancy.Repeat(data, 3, 1)

	corrupted := append([]byte(nil), repeated...)
	corrupted[1] = 0x00 // flip the second copy of the first byte only

	decoded := redundancy.MajorityDecode(corrupted, 3, 1)
	if !bytes.Equal(decoded, data) {
		t.Fatalf("got %v, want %v", decoded, data)
	}
}

func TestRepetitionMajorityVoteBlockMode(t *testing.T) {
	block := []byte{0x01, 0x02, 0x03, 0x04}
	repeated := redundancy.Repeat(block, 3, len(block))

	corrupted := append([]byte(nil), repeated...)
	corrupted[len(block)] = 0xFF // corrupt one byte of the second copy

	decoded := redundancy.MajorityDecode(corrupted, 3, len(block))
	if !bytes.Equal(decoded, block) {
		t.Fatalf("got %v, want %v", decoded, block)
	}
}
