// Copyright 2018 Zanicar. All rights reserved.
// Utilizes a BSD-3 license. Refer to the included LICENSE file for details.

// Package png provides a steganography collaborator that outputs PNG image
// steganograms. It accepts both JPEG and PNG images as input, bridges
// image.Image to a carrier.PixelArray, and delegates the actual bit
// placement and framing to package steganocore.
package png

import (
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	"image/png"
	"io"

	"github.com/rs/zerolog/log"

	steganocore "github.com/zanicar/steganocore"
	"github.com/zanicar/steganocore/carrier"
	"github.com/zanicar/steganocore/pattern"
)

var (
	_ Concealer = SteganoPNG{}
	_ Revealer  = SteganoPNG{}
)

// Concealer is the interface that wraps the basic Conceal method.
//
// Conceal conceals data into the image read from reader and writes the
// resulting PNG steganogram to writer. Conceal must not modify the data
// slice, even temporarily.
type Concealer interface {
	Conceal(data []byte, reader io.Reader, writer io.Writer) error
}

// Revealer is the interface that wraps the basic Reveal method.
//
// Reveal uncovers the underlying data from the image read from reader and
// writes it to writer.
type Revealer interface {
	Reveal(reader io.Reader, writer io.Writer) error
}

// DefaultPattern returns the pattern SteganoPNG uses when none is
// supplied: RGB channels only (alpha rarely carries enough noise for
// proper concealment), two bits per channel, and a self-describing header
// so Reveal needs no out-of-band length or pattern — mirroring the
// teacher's own hardcoded two-LSB, in-band-length-prefix scheme, now
// expressed as a steganocore.Pattern.
func DefaultPattern() pattern.Pattern {
	p := pattern.Default()
	p.BitFrequency = 2
	p.Header.Enabled = true
	p.Header.WriteDataSize = true
	p.Header.WritePattern = true
	return p
}

// SteganoPNG implements Concealer/Revealer for PNG image steganograms.
type SteganoPNG struct {
	Pattern pattern.Pattern
}

// New returns a SteganoPNG configured with DefaultPattern.
func New() SteganoPNG {
	return SteganoPNG{Pattern: DefaultPattern()}
}

// NewWithPattern returns a SteganoPNG configured with the given pattern.
// The pattern's header should normally stay enabled with write_data_size
// (and, to let Reveal run with zero foreknowledge, write_pattern) set,
// since Reveal never receives anything beyond the steganogram itself.
func NewWithPattern(p pattern.Pattern) SteganoPNG {
	return SteganoPNG{Pattern: p}
}

// imageToCarrier decodes img's RGB channels into a carrier.PixelArray.
// RGBA values from image.Image are pre-multiplied and returned as
// uint32, so they are normalized to raw 8-bit samples the same way the
// teacher's Conceal/Reveal loops did.
func imageToCarrier(img image.Image) *carrier.PixelArray {
	bounds := img.Bounds()
	width := bounds.Max.X - bounds.Min.X
	height := bounds.Max.Y - bounds.Min.Y

	pix := carrier.New(carrier.ModeRGB, width, height)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			px, py := x-bounds.Min.X, y-bounds.Min.Y
			pix.Set(px, py, carrier.ChannelR, uint32(uint8(r/256)))
			pix.Set(px, py, carrier.ChannelG, uint32(uint8(g/256)))
			pix.Set(px, py, carrier.ChannelB, uint32(uint8(b/256)))
		}
	}
	return pix
}

// carrierToImage rebuilds an NRGBA image from pix, carrying over the
// original image's alpha channel unchanged since the carrier never
// touches it.
func carrierToImage(pix *carrier.PixelArray, src image.Image) *image.NRGBA {
	bounds := src.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, pix.Width, pix.Height))
	for y := 0; y < pix.Height; y++ {
		for x := 0; x < pix.Width; x++ {
			_, _, _, a := src.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			out.Set(x, y, color.NRGBA{
				R: uint8(pix.At(x, y, carrier.ChannelR)),
				G: uint8(pix.At(x, y, carrier.ChannelG)),
				B: uint8(pix.At(x, y, carrier.ChannelB)),
				A: uint8(a / 256),
			})
		}
	}
	return out
}

// Conceal decodes the image read from reader, hides data inside it per
// s.Pattern, and writes the resulting PNG steganogram to writer.
func (s SteganoPNG) Conceal(data []byte, r io.Reader, w io.Writer) error {
	logger := log.With().Str("component", "png").Logger()
	logger.Info().Msg("conceal")

	sourceImg, _, err := image.Decode(r)
	if err != nil {
		return fmt.Errorf("image decode: %w", err)
	}

	pix := imageToCarrier(sourceImg)
	bits, bytes, err := steganocore.Capacity(pix, s.Pattern)
	if err != nil {
		return fmt.Errorf("capacity: %w", err)
	}
	logger.Debug().Int("bits", bits).Int("bytes", bytes).Int("data_len", len(data)).Msg("capacity")

	out, err := steganocore.Encode(pix, s.Pattern, data)
	if err != nil {
		return fmt.Errorf("conceal: %w", err)
	}

	outputImg := carrierToImage(out, sourceImg)
	if err := png.Encode(w, outputImg); err != nil {
		return fmt.Errorf("image encode: %w", err)
	}

	logger.Info().Int("bytes_concealed", len(data)).Msg("conceal complete")
	return nil
}

// Reveal decodes the image read from reader, uncovers the data hidden per
// s.Pattern, and writes it to writer.
func (s SteganoPNG) Reveal(r io.Reader, w io.Writer) error {
	logger := log.With().Str("component", "png").Logger()
	logger.Info().Msg("reveal")

	sourceImg, _, err := image.Decode(r)
	if err != nil {
		return fmt.Errorf("image decode: %w", err)
	}

	pix := imageToCarrier(sourceImg)
	data, err := steganocore.Decode(pix, s.Pattern)
	if err != nil {
		return fmt.Errorf("reveal: %w", err)
	}

	n, err := w.Write(data)
	if err != nil {
		return fmt.Errorf("write revealed data: %w", err)
	}

	logger.Info().Int("bytes_revealed", n).Msg("reveal complete")
	return nil
}
