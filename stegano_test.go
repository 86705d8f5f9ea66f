package steganocore_test

import (
	"bytes"
	"testing"

	steganocore "github.com/zanicar/steganocore"
	"github.com/zanicar/steganocore/carrier"
	"github.com/zanicar/steganocore/pattern"
)

func filledCarrier(mode carrier.Mode, w, h int, value uint32) *carrier.PixelArray {
	pix := carrier.New(mode, w, h)
	for i := range pix.Samples {
		pix.Samples[i] = value
	}
	return pix
}

// TestEncodeDecodeRoundTrip covers spec.md §8 property 1: a plain pattern
// with no header, supplying the body length out of band since there is
// nothing to derive it from.
func TestEncodeDecodeRoundTrip(t *testing.T) {
	pix := filledCarrier(carrier.ModeRGBA, 8, 8, 128)
	p := pattern.Default()

	payload := []byte("Hi")
	out, err := steganocore.Encode(pix, p, payload)
	if err != nil {
		t.Fatal(err)
	}

	d := steganocore.Decoder{DataLength: len(payload)}
	got, err := d.Decode(out, p)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("got %q, want %q", got, payload)
	}
}

// TestEncodeDecodeRoundTripWithRedundancy exercises the full framing
// pipeline (hash, compression, Reed–Solomon, repetition) end to end. The
// post-compression, post-hash body length isn't knowable to a caller
// ahead of time, so the header carries it (spec.md §4.F's write_data_size
// flag) rather than being hand-computed here.
func TestEncodeDecodeRoundTripWithRedundancy(t *testing.T) {
	pix := filledCarrier(carrier.ModeRGB, 64, 64, 100)
	p := pattern.Default()
	p.HashCheck = pattern.HashSHA256
	p.Compression = pattern.CompressionZlib
	p.CompressionStrength = 6
	p.AdvancedRedundancy = pattern.RedundancyReedSolomon
	p.AdvancedRedundancyCorrectionFactor = 0.1
	p.RepetitiveRedundancy = 3
	p.Header.Enabled = true
	p.Header.WriteDataSize = true

	payload := []byte("the payload travels through the whole pipeline")
	out, err := steganocore.Encode(pix, p, payload)
	if err != nil {
		t.Fatal(err)
	}

	got, err := steganocore.Decode(out, p)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("got %q, want %q", got, payload)
	}
}

// TestHeaderIdempotence covers spec.md §8 property 6: encoding with
// header.enabled=true, write_pattern=true, then decoding with an empty
// data pattern (only the header pattern filled in) must succeed.
func TestHeaderIdempotence(t *testing.T) {
	pix := filledCarrier(carrier.ModeRGB, 32, 32, 64)
	p := pattern.Default()
	p.HashCheck = pattern.HashMD5
	p.Header.Enabled = true
	p.Header.WriteDataSize = true
	p.Header.WritePattern = true

	payload := []byte("payload")
	out, err := steganocore.Encode(pix, p, payload)
	if err != nil {
		t.Fatal(err)
	}

	decodePattern := pattern.Default()
	decodePattern.Header = p.Header
	got, err := steganocore.Decode(out, decodePattern)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("got %q, want %q", got, payload)
	}
}

// TestHeaderAtEndPosition exercises the `end` header placement alongside
// a `start`-placed data pattern, verifying the two slot ranges don't
// collide and both directions of the header search converge correctly.
func TestHeaderAtEndPosition(t *testing.T) {
	pix := filledCarrier(carrier.ModeRGB, 32, 32, 64)
	p := pattern.Default()
	p.Header.Enabled = true
	p.Header.WriteDataSize = true
	p.Header.WritePattern = true
	p.Header.Position = pattern.PositionEnd

	payload := []byte("trailing header")
	out, err := steganocore.Encode(pix, p, payload)
	if err != nil {
		t.Fatal(err)
	}

	decodePattern := pattern.Default()
	decodePattern.Header = p.Header
	got, err := steganocore.Decode(out, decodePattern)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("got %q, want %q", got, payload)
	}
}

// TestCapacityBoundary covers spec.md §8 property 7 and scenario S6: a
// 2x2 RGB carrier with bit_frequency=1 has 12 raw slots, of which the
// byte-aligned edge policy leaves 11 usable (see slot package tests), so
// one byte fits and two bytes must fail with CapacityExceeded and must not
// mutate the input. This test exercises the two-byte failure side.
func TestCapacityBoundary(t *testing.T) {
	pix := filledCarrier(carrier.ModeRGB, 2, 2, 200)
	p := pattern.Default()

	before := pix.Clone()
	_, err := steganocore.Encode(pix, p, []byte{0x01, 0x02})
	if err == nil {
		t.Fatal("expected CapacityExceeded for an oversized payload")
	}
	ce, ok := err.(*steganocore.Error)
	if !ok || ce.Kind != steganocore.KindCapacityExceeded {
		t.Fatalf("expected KindCapacityExceeded, got %v", err)
	}
	if !bytes.Equal(pix.Samples, before.Samples) {
		t.Fatal("input pixel array was mutated on a failed encode")
	}
}

// TestLSBIsolation covers spec.md §8 property 3: with bit_frequency=k,
// bits >= k of every written channel sample equal the input.
func TestLSBIsolation(t *testing.T) {
	pix := filledCarrier(carrier.ModeRGB, 8, 8, 0xAA)
	p := pattern.Default()
	p.BitFrequency = 2

	out, err := steganocore.Encode(pix, p, []byte{0xFF, 0x00})
	if err != nil {
		t.Fatal(err)
	}
	for i, before := range pix.Samples {
		after := out.Samples[i]
		if before&^0x3 != after&^0x3 {
			t.Fatalf("sample %d: upper bits changed, %08b -> %08b", i, before, after)
		}
	}
}

// TestIntegrityFailureDetected covers spec.md §8 property 5/scenario S4:
// corrupting a bit outside any configured redundancy's correction capacity
// is reported as IntegrityFailure with best-effort recovered bytes. No
// header here, so the body length is hand-derived: MD5 appends a 16-byte
// digest to the 3-byte payload, with no compression or Reed–Solomon in
// play.
func TestIntegrityFailureDetected(t *testing.T) {
	pix := filledCarrier(carrier.ModeRGB, 16, 16, 10)
	p := pattern.Default()
	p.HashCheck = pattern.HashMD5

	out, err := steganocore.Encode(pix, p, []byte("abc"))
	if err != nil {
		t.Fatal(err)
	}
	out.Samples[0] ^= 1 // flip the very first written LSB

	d := steganocore.Decoder{DataLength: 3 + 16}
	_, err = d.Decode(out, p)
	if err == nil {
		t.Fatal("expected integrity failure")
	}
	ce, ok := err.(*steganocore.Error)
	if !ok || ce.Kind != steganocore.KindIntegrityFailure {
		t.Fatalf("expected KindIntegrityFailure, got %v", err)
	}
	if ce.Recovered == nil {
		t.Fatal("expected recovered bytes to be attached")
	}
}

// TestCapacityQuery exercises the supplemented Capacity pre-flight query
// (SPEC_FULL.md §5). 12 raw slots minus the one the byte-aligned edge
// policy discards (see slot package tests) leaves 11 usable bits.
func TestCapacityQuery(t *testing.T) {
	pix := filledCarrier(carrier.ModeRGB, 2, 2, 200)
	p := pattern.Default()

	bits, bytes_, err := steganocore.Capacity(pix, p)
	if err != nil {
		t.Fatal(err)
	}
	if bits != 11 {
		t.Fatalf("got %d usable bits, want 11", bits)
	}
	if bytes_ != 1 {
		t.Fatalf("got %d usable bytes, want 1", bytes_)
	}
}

// TestQuadraticTrimRecoversLength exercises the AllowQuadraticTrim
// last-resort path (spec.md §9): no header, no DataLength, a hash
// configured so the shrink-and-verify loop has something to check against.
func TestQuadraticTrimRecoversLength(t *testing.T) {
	pix := filledCarrier(carrier.ModeRGB, 32, 32, 77)
	p := pattern.Default()
	p.HashCheck = pattern.HashMD5

	payload := []byte("trim me down to size")
	out, err := steganocore.Encode(pix, p, payload)
	if err != nil {
		t.Fatal(err)
	}

	d := steganocore.Decoder{AllowQuadraticTrim: true}
	got, err := d.Decode(out, p)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("got %q, want %q", got, payload)
	}
}

// TestQuadraticTrimDisabledFailsLengthUnknown covers the complementary
// spec.md §9 case: without AllowQuadraticTrim, the same no-header/
// no-DataLength scenario must fail fast rather than attempt the shrink loop.
func TestQuadraticTrimDisabledFailsLengthUnknown(t *testing.T) {
	pix := filledCarrier(carrier.ModeRGB, 32, 32, 77)
	p := pattern.Default()
	p.HashCheck = pattern.HashMD5

	payload := []byte("trim me down to size")
	out, err := steganocore.Encode(pix, p, payload)
	if err != nil {
		t.Fatal(err)
	}

	d := steganocore.Decoder{}
	_, err = d.Decode(out, p)
	if err == nil {
		t.Fatal("expected length-unknown failure with AllowQuadraticTrim disabled")
	}
}

// TestUnsupportedMode covers the UnsupportedImage error surface for a
// carrier mode with no declared channels.
func TestUnsupportedMode(t *testing.T) {
	pix := &carrier.PixelArray{Mode: carrier.Mode(99), Width: 1, Height: 1, Samples: []uint32{0}}
	p := pattern.Default()

	_, err := steganocore.Encode(pix, p, []byte("x"))
	ce, ok := err.(*steganocore.Error)
	if !ok || ce.Kind != steganocore.KindUnsupportedImage {
		t.Fatalf("expected KindUnsupportedImage, got %v", err)
	}
}
