package pattern_test

import (
	"testing"

	"github.com/zanicar/steganocore/carrier"
	"github.com/zanicar/steganocore/pattern"
)

func TestNormalizeAutoExcludesAlpha(t *testing.T) {
	p := pattern.Default()
	resolved, err := pattern.Normalize(p, carrier.ModeRGBA)
	if err != nil {
		t.Fatal(err)
	}
	for _, c := range resolved.Channels {
		if c == carrier.ChannelA {
			t.Fatalf("auto selection included alpha: %v", resolved.Channels)
		}
	}
	if len(resolved.Channels) != 3 {
		t.Fatalf("got %d channels, want 3", len(resolved.Channels))
	}
}

func TestNormalizeAllIncludesAlpha(t *testing.T) {
	p := pattern.Default()
	p.ChannelSelector = pattern.ChannelsAll
	resolved, err := pattern.Normalize(p, carrier.ModeRGBA)
	if err != nil {
		t.Fatal(err)
	}
	if len(resolved.Channels) != 4 {
		t.Fatalf("got %d channels, want 4", len(resolved.Channels))
	}
}

func TestNormalizeRejectsMissingChannel(t *testing.T) {
	p := pattern.Default()
	p.ChannelSelector = pattern.ChannelsExplicit
	p.Channels = []carrier.Channel{carrier.ChannelA}
	if _, err := pattern.Normalize(p, carrier.ModeRGB); err == nil {
		t.Fatal("expected error for channel not present in mode")
	}
}

func TestNormalizeRejectsBadBitFrequency(t *testing.T) {
	p := pattern.Default()
	p.BitFrequency = 9
	if _, err := pattern.Normalize(p, carrier.ModeRGB); err == nil {
		t.Fatal("expected error for bit_frequency out of range")
	}
}

func TestDescriptorRoundTrip(t *testing.T) {
	p := pattern.Default()
	p.HashCheck = pattern.HashSHA256
	p.Compression = pattern.CompressionZlib
	p.CompressionStrength = 6
	p.AdvancedRedundancy = pattern.RedundancyReedSolomon
	p.AdvancedRedundancyCorrectionFactor = 0.25
	p.RepetitiveRedundancy = 3
	p.RepetitiveRedundancyMode = pattern.RepetitionBlock

	resolved, err := pattern.Normalize(p, carrier.ModeRGB)
	if err != nil {
		t.Fatal(err)
	}
	desc := resolved.ToDescriptor()
	encoded := desc.Encode()
	if len(encoded) != pattern.DescriptorSize {
		t.Fatalf("got %d bytes, want %d", len(encoded), pattern.DescriptorSize)
	}

	decoded, err := pattern.DecodeDescriptor(encoded)
	if err != nil {
		t.Fatal(err)
	}
	got := decoded.ToPattern()
	if got.HashCheck != p.HashCheck || got.Compression != p.Compression ||
		got.RepetitiveRedundancy != p.RepetitiveRedundancy ||
		got.RepetitiveRedundancyMode != p.RepetitiveRedundancyMode {
		t.Fatalf("round-trip mismatch: got %+v", got)
	}
	if diff := got.AdvancedRedundancyCorrectionFactor - p.AdvancedRedundancyCorrectionFactor; diff > 1e-4 || diff < -1e-4 {
		t.Fatalf("correction factor drifted: got %v, want %v", got.AdvancedRedundancyCorrectionFactor, p.AdvancedRedundancyCorrectionFactor)
	}
}

func TestFromMapRejectsUnknownKey(t *testing.T) {
	_, err := pattern.FromMap(map[string]interface{}{"bogus": true})
	if err == nil {
		t.Fatal("expected error for unknown key")
	}
}

func TestFromMapCoercesTypes(t *testing.T) {
	p, err := pattern.FromMap(map[string]interface{}{
		"bit_frequency": float64(2),
		"hash_check":    "md5",
		"compression":   "zlib",
	})
	if err != nil {
		t.Fatal(err)
	}
	if p.BitFrequency != 2 || p.HashCheck != pattern.HashMD5 || p.Compression != pattern.CompressionZlib {
		t.Fatalf("got %+v", p)
	}
}
