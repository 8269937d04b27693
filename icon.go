package traykit

import (
	"bytes"
	"fmt"
)

// Icon is a decoded tray icon bitmap.
//
// Bytes holds 32-bit pixels in BGRA byte order (native-endian ARGB32), row
// major, without padding. This is the layout StatusNotifierItem hosts and
// Win32 icon APIs consume directly; the macOS backend swizzles it to RGBA.
// Decoding image files into this form is the caller's job.
type Icon struct {
	Width  int
	Height int
	Bytes  []byte
}

// NewIcon returns a new [Icon] and validates that the pixel buffer matches
// the dimensions.
func NewIcon(width, height int, pixels []byte) (*Icon, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("icon: invalid size %dx%d", width, height)
	}

	if len(pixels) != width*height*4 {
		return nil, fmt.Errorf("icon: expected %d bytes for %dx%d BGRA, got %d",
			width*height*4, width, height, len(pixels))
	}

	return &Icon{
		Width:  width,
		Height: height,
		Bytes:  pixels,
	}, nil
}

// Equal reports whether two icons hold the same bitmap. Either side may be
// nil; two nil icons are equal.
func (ic *Icon) Equal(other *Icon) bool {
	if ic == nil || other == nil {
		return ic == other
	}

	return ic.Width == other.Width &&
		ic.Height == other.Height &&
		bytes.Equal(ic.Bytes, other.Bytes)
}

// scaled returns a nearest-neighbor copy of the icon at the given size.
// Tray hosts do not reliably scale large pixmaps, so backends offer a few
// common sizes instead.
func (ic *Icon) scaled(width, height int) *Icon {
	if ic.Width == width && ic.Height == height {
		return ic
	}

	dst := make([]byte, width*height*4)
	for y := 0; y < height; y++ {
		sy := y * ic.Height / height
		for x := 0; x < width; x++ {
			sx := x * ic.Width / width
			s := (sy*ic.Width + sx) * 4
			d := (y*width + x) * 4
			copy(dst[d:d+4], ic.Bytes[s:s+4])
		}
	}

	return &Icon{
		Width:  width,
		Height: height,
		Bytes:  dst,
	}
}
