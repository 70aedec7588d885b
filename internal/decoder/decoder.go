// Package decoder turns encoded HiPS tiles into in-memory buffers.
package decoder

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"math"

	"github.com/jaennil/guide_helper/backend/hips/internal/tile"
	"github.com/jaennil/guide_helper/backend/hips/pkg/healpix"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

var ErrUnsupportedFormat = errors.New("unsupported tile format")

type Decoder struct{}

func New() *Decoder {
	return &Decoder{}
}

// Decode converts raw tile bytes. Images are expanded to RGBA; FITS tiles are
// kept encoded since pixel decoding happens downstream.
func (d *Decoder) Decode(raw []byte, format string) (*tile.Buffer, error) {
	switch format {
	case "png", "jpg", "jpeg", "webp":
		src, _, err := image.Decode(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("failed to decode %s tile: %w", format, err)
		}
		img := toRGBA(src)
		return &tile.Buffer{
			Format: format,
			Raw:    raw,
			Image:  img,
			Size:   uint32(len(img.Pix) + len(raw)),
		}, nil
	case "fits":
		return &tile.Buffer{
			Format: format,
			Raw:    raw,
			Size:   uint32(len(raw)),
		}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
}

func toRGBA(src image.Image) *image.RGBA {
	if img, ok := src.(*image.RGBA); ok {
		return img
	}
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return dst
}

// Split cuts the tile of pixel out of an all-sky mosaic holding every tile of
// order, laid out row by row, floor(sqrt(npix)) tiles per row.
func (d *Decoder) Split(allsky *tile.Buffer, order uint8, pixel uint64) (*tile.Buffer, error) {
	if allsky == nil || allsky.Image == nil {
		return nil, fmt.Errorf("%w: all-sky mosaic without image", ErrUnsupportedFormat)
	}
	npix := healpix.NPix(order)
	if pixel >= npix {
		return nil, fmt.Errorf("pixel %d out of range at order %d", pixel, order)
	}

	perRow := uint64(math.Sqrt(float64(npix)))
	b := allsky.Image.Bounds()
	w := b.Dx() / int(perRow)
	if w == 0 {
		return nil, fmt.Errorf("all-sky mosaic too small: %dx%d", b.Dx(), b.Dy())
	}
	x := b.Min.X + int(pixel%perRow)*w
	y := b.Min.Y + int(pixel/perRow)*w
	if y+w > b.Max.Y {
		return nil, fmt.Errorf("all-sky mosaic too short for pixel %d", pixel)
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, w))
	draw.Copy(dst, image.Point{}, allsky.Image, image.Rect(x, y, x+w, y+w), draw.Src, nil)

	return &tile.Buffer{
		Format: "rgba",
		Image:  dst,
		Size:   uint32(len(dst.Pix)),
	}, nil
}
