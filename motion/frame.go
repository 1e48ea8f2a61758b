/*
DESCRIPTION
  frame.go provides Frame, the raw interleaved pixel buffer consumed and
  produced by the motion Extractor, and conversions to and from the image
  package types used by the filters.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package motion

import (
	"image"
	"image/color"
)

// Pixel format constants. The extractor only handles 3 byte interleaved
// pixels downscaled by a factor of 2 in each dimension.
const (
	Channels       = 3
	DownscaleRatio = 2
	downscaleArea  = DownscaleRatio * DownscaleRatio
)

// Indicator channel values of a motion mask.
const (
	off = 0
	on  = 255
)

// Frame is a row-major, interleaved, 3 channel pixel buffer. For a motion
// mask, channel 0 holds the motion indicator and channels 1 and 2 are passed
// through untouched.
type Frame struct {
	Width  int
	Height int
	Pix    []byte
}

// NewFrame returns a zeroed Frame of the given dimensions.
func NewFrame(w, h int) *Frame {
	return &Frame{Width: w, Height: h, Pix: make([]byte, w*h*Channels)}
}

// Stride returns the number of bytes in one row of f.
func (f *Frame) Stride() int { return f.Width * Channels }

// PixOffset returns the index of the first byte of the pixel at (x, y).
func (f *Frame) PixOffset(x, y int) int { return y*f.Stride() + x*Channels }

// Active returns the number of pixels whose indicator channel is non-zero.
func (f *Frame) Active() int {
	var n int
	for i := 0; i < len(f.Pix); i += Channels {
		if f.Pix[i] != off {
			n++
		}
	}
	return n
}

// Gray copies the indicator channel of f into dst, allocating dst if it is
// nil or has the wrong bounds, and returns it.
func (f *Frame) Gray(dst *image.Gray) *image.Gray {
	r := image.Rect(0, 0, f.Width, f.Height)
	if dst == nil || dst.Rect != r {
		dst = image.NewGray(r)
	}
	for y := 0; y < f.Height; y++ {
		row := dst.Pix[y*dst.Stride : y*dst.Stride+f.Width]
		src := f.Pix[f.PixOffset(0, y):]
		for x := range row {
			row[x] = src[x*Channels]
		}
	}
	return dst
}

// FromImage fills dst with the RGB content of img, resizing dst.Pix if it is
// too small. Pixel data is written in R, G, B order.
func FromImage(img image.Image, dst *Frame) {
	b := img.Bounds()
	dst.Width, dst.Height = b.Dx(), b.Dy()
	n := dst.Width * dst.Height * Channels
	if cap(dst.Pix) < n {
		dst.Pix = make([]byte, n)
	}
	dst.Pix = dst.Pix[:n]

	switch src := img.(type) {
	case *image.RGBA:
		for y := 0; y < dst.Height; y++ {
			row := src.Pix[src.PixOffset(b.Min.X, b.Min.Y+y):]
			out := dst.Pix[dst.PixOffset(0, y):]
			for x := 0; x < dst.Width; x++ {
				copy(out[x*Channels:x*Channels+Channels], row[x*4:x*4+Channels])
			}
		}
	case *image.YCbCr:
		i := 0
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				yi, ci := src.YOffset(x, y), src.COffset(x, y)
				r, g, bl := color.YCbCrToRGB(src.Y[yi], src.Cb[ci], src.Cr[ci])
				dst.Pix[i], dst.Pix[i+1], dst.Pix[i+2] = r, g, bl
				i += Channels
			}
		}
	default:
		i := 0
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				r, g, bl, _ := img.At(x, y).RGBA()
				dst.Pix[i], dst.Pix[i+1], dst.Pix[i+2] = byte(r>>8), byte(g>>8), byte(bl>>8)
				i += Channels
			}
		}
	}
}
