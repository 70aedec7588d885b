package cache

import (
	"bytes"
	"fmt"
	"io"

	"github.com/jaennil/guide_helper/backend/hips/internal/tile"
	"github.com/ulikunitz/xz"
)

// Compressed stores tiles xz-compressed in the wrapped store. Raw FITS tiles
// shrink well; PNG and JPEG tiles barely change.
type Compressed struct {
	Store
}

func (c Compressed) Get(k tile.Key) ([]byte, bool, error) {
	data, ok, err := c.Store.Get(k)
	if err != nil || !ok {
		return nil, ok, err
	}

	r, err := xz.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, false, fmt.Errorf("xz reader: %w", err)
	}
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, false, fmt.Errorf("xz decompress: %w", err)
	}
	return out, true, nil
}

func (c Compressed) Set(k tile.Key, v []byte) error {
	var buf bytes.Buffer
	w, err := xz.NewWriter(&buf)
	if err != nil {
		return fmt.Errorf("xz writer: %w", err)
	}
	if _, err := w.Write(v); err != nil {
		return fmt.Errorf("xz compress: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("xz compress: %w", err)
	}
	return c.Store.Set(k, buf.Bytes())
}

func (c Compressed) Keys(survey string) ([]tile.Key, error) {
	if l, ok := c.Store.(Lister); ok {
		return l.Keys(survey)
	}
	return nil, nil
}
