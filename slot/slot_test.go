package slot_test

import (
	"testing"

	"github.com/zanicar/steganocore/carrier"
	"github.com/zanicar/steganocore/pattern"
	"github.com/zanicar/steganocore/slot"
)

func resolve(t *testing.T, p pattern.Pattern, mode carrier.Mode) pattern.Resolved {
	t.Helper()
	r, err := pattern.Normalize(p, mode)
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func TestIteratorDeterministic(t *testing.T) {
	p := pattern.Default()
	r := resolve(t, p, carrier.ModeRGB)

	collect := func() []slot.Slot {
		it := slot.New(r, 8, 8)
		var got []slot.Slot
		for i := 0; i < 40; i++ {
			s, err := it.Next()
			if err != nil {
				t.Fatal(err)
			}
			got = append(got, s)
		}
		return got
	}

	a := collect()
	b := collect()
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("slot %d differs: %+v vs %+v", i, a[i], b[i])
		}
	}
}

func TestIteratorCapacityExceeded(t *testing.T) {
	p := pattern.Default()
	r := resolve(t, p, carrier.ModeRGB)
	it := slot.New(r, 2, 2) // 4 pixels, spp=3 < 8, so perByteAdvance=ceil(8/3)=3:
	// byte 1 spans pixels 0-2 (using only 2 of pixel 2's 3 channels, 8 slots),
	// byte 2 starts at pixel 3 and supplies its remaining 3 slots (11 total)
	// before the pixel cursor reaches the 4-pixel carrier's capacity.
	const wantSlots = 11

	for i := 0; i < wantSlots; i++ {
		if _, err := it.Next(); err != nil {
			t.Fatalf("slot %d: unexpected error %v", i, err)
		}
	}
	if _, err := it.Next(); err == nil {
		t.Fatal("expected capacity exceeded")
	}
}

func TestRemainingMatchesActualSlotCount(t *testing.T) {
	p := pattern.Default()
	r := resolve(t, p, carrier.ModeRGB)
	it := slot.New(r, 2, 2) // same 2x2 boundary case as TestIteratorCapacityExceeded
	const wantRemaining = 11

	if got := it.Remaining(); got != wantRemaining {
		t.Fatalf("Remaining() = %d, want %d", got, wantRemaining)
	}

	count := 0
	for {
		if _, err := it.Next(); err != nil {
			break
		}
		count++
	}
	if count != wantRemaining {
		t.Fatalf("actual successful Next() calls = %d, want %d", count, wantRemaining)
	}
}

func TestIteratorByteSpacingSpreadsBeyondOnePixel(t *testing.T) {
	p := pattern.Default() // channels=auto(RGB)=3, bit_frequency=1, byte_spacing=1 => spp=3 < 8
	r := resolve(t, p, carrier.ModeRGB)
	it := slot.New(r, 100, 1)

	var pixels []int
	for i := 0; i < 8; i++ {
		s, err := it.Next()
		if err != nil {
			t.Fatal(err)
		}
		pixels = append(pixels, s.X)
	}
	// spp=3, ceil(8/3)=3, so the first byte spans pixels 0..2.
	for _, x := range pixels {
		if x > 2 {
			t.Fatalf("byte overflowed expected pixel span: got x=%d", x)
		}
	}

	s, err := it.Next()
	if err != nil {
		t.Fatal(err)
	}
	if s.X != 3 {
		t.Fatalf("second byte should start at pixel 3 (max(byte_spacing=1, ceil(8/3)=3)), got %d", s.X)
	}
}

func TestIteratorAllChannelsVisitedPerPixel(t *testing.T) {
	p := pattern.Default()
	r := resolve(t, p, carrier.ModeRGB)
	it := slot.New(r, 10, 10)

	s0, _ := it.Next()
	s1, _ := it.Next()
	s2, _ := it.Next()
	if s0.X != s1.X || s1.X != s2.X || s0.Y != s1.Y {
		t.Fatalf("expected first 3 slots on the same pixel, got %+v %+v %+v", s0, s1, s2)
	}
	seen := map[carrier.Channel]bool{s0.Channel: true, s1.Channel: true, s2.Channel: true}
	for _, c := range []carrier.Channel{carrier.ChannelR, carrier.ChannelG, carrier.ChannelB} {
		if !seen[c] {
			t.Fatalf("channel %v not visited in first pixel: %+v %+v %+v", c, s0, s1, s2)
		}
	}
}
