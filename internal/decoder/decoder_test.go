package decoder

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/jaennil/guide_helper/backend/hips/internal/tile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestDecodePNG(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	src.Set(1, 2, color.NRGBA{R: 200, A: 255})
	raw := encodePNG(t, src)

	buf, err := New().Decode(raw, "png")
	require.NoError(t, err)
	require.NotNil(t, buf.Image)
	assert.Equal(t, 4, buf.Image.Bounds().Dx())
	assert.Equal(t, uint8(200), buf.Image.RGBAAt(1, 2).R)
	assert.Equal(t, uint32(4*4*4+len(raw)), buf.Size)
	assert.Equal(t, raw, buf.Raw)
}

func TestDecodeFITSPassesThrough(t *testing.T) {
	raw := []byte("SIMPLE  =                    T")
	buf, err := New().Decode(raw, "fits")
	require.NoError(t, err)
	assert.Nil(t, buf.Image)
	assert.Equal(t, uint32(len(raw)), buf.Size)
}

func TestDecodeErrors(t *testing.T) {
	_, err := New().Decode([]byte("x"), "tiff")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = New().Decode([]byte("not a png"), "png")
	assert.Error(t, err)
}

func TestSplit(t *testing.T) {
	// order 0 mosaic: 12 tiles of 2x2, three per row
	mosaic := image.NewRGBA(image.Rect(0, 0, 6, 8))
	for p := 0; p < 12; p++ {
		x, y := p%3*2, p/3*2
		for dx := 0; dx < 2; dx++ {
			for dy := 0; dy < 2; dy++ {
				mosaic.SetRGBA(x+dx, y+dy, color.RGBA{R: uint8(p * 10), A: 255})
			}
		}
	}
	allsky := &tile.Buffer{Format: "png", Image: mosaic}

	d := New()
	for _, p := range []uint64{0, 7, 11} {
		buf, err := d.Split(allsky, 0, p)
		require.NoError(t, err)
		assert.Equal(t, image.Rect(0, 0, 2, 2), buf.Image.Bounds())
		assert.Equal(t, uint8(p*10), buf.Image.RGBAAt(1, 1).R)
		assert.Equal(t, uint32(16), buf.Size)
	}

	_, err := d.Split(allsky, 0, 12)
	assert.Error(t, err)
	_, err = d.Split(&tile.Buffer{Format: "fits"}, 0, 1)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}
