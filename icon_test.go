package traykit

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewIconValidation(t *testing.T) {
	tests := []struct {
		name   string
		width  int
		height int
		bytes  int
		ok     bool
	}{
		{name: "valid", width: 2, height: 2, bytes: 16, ok: true},
		{name: "short buffer", width: 2, height: 2, bytes: 15, ok: false},
		{name: "long buffer", width: 2, height: 2, bytes: 17, ok: false},
		{name: "zero width", width: 0, height: 2, bytes: 0, ok: false},
		{name: "negative height", width: 2, height: -1, bytes: 0, ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			icon, err := NewIcon(tt.width, tt.height, make([]byte, tt.bytes))
			if tt.ok {
				require.NoError(t, err)
				require.Equal(t, tt.width, icon.Width)
				require.Equal(t, tt.height, icon.Height)
			} else {
				require.Error(t, err)
			}
		})
	}
}

func TestIconEqual(t *testing.T) {
	a := mustIcon(t, 2, 2)
	b := mustIcon(t, 2, 2)
	require.True(t, a.Equal(b))

	b.Bytes[0] = 0xff
	require.False(t, a.Equal(b))

	var nilIcon *Icon
	require.True(t, nilIcon.Equal(nil))
	require.False(t, nilIcon.Equal(a))
	require.False(t, a.Equal(nil))
}

func TestIconScaled(t *testing.T) {
	// 2x2 bitmap with four distinct pixels.
	pixels := []byte{
		1, 1, 1, 1, 2, 2, 2, 2,
		3, 3, 3, 3, 4, 4, 4, 4,
	}
	icon, err := NewIcon(2, 2, pixels)
	require.NoError(t, err)

	up := icon.scaled(4, 4)
	require.Equal(t, 4, up.Width)
	require.Equal(t, 4, up.Height)
	require.Len(t, up.Bytes, 64)

	// Nearest neighbor: each source pixel fills a 2x2 block.
	pixelAt := func(ic *Icon, x, y int) byte {
		return ic.Bytes[(y*ic.Width+x)*4]
	}
	require.EqualValues(t, 1, pixelAt(up, 0, 0))
	require.EqualValues(t, 1, pixelAt(up, 1, 1))
	require.EqualValues(t, 2, pixelAt(up, 2, 0))
	require.EqualValues(t, 3, pixelAt(up, 0, 2))
	require.EqualValues(t, 4, pixelAt(up, 3, 3))

	down := up.scaled(2, 2)
	require.Equal(t, icon.Bytes, down.Bytes)

	// Same size returns the icon itself, no copy.
	require.Same(t, icon, icon.scaled(2, 2))
}
