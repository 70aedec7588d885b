package tile

import (
	"fmt"

	"github.com/jaennil/guide_helper/backend/hips/internal/moc"
	"github.com/jaennil/guide_helper/backend/hips/pkg/healpix"
)

// Kind selects survey-specific behaviour.
type Kind string

const (
	KindImage       Kind = "image"
	KindCube        Kind = "cube"
	KindProgenIndex Kind = "progen"
	KindDensityMap  Kind = "density"
)

func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindImage, KindCube, KindProgenIndex, KindDensityMap:
		return k, nil
	}
	return "", fmt.Errorf("unknown survey kind %q", s)
}

// Survey describes one tile pyramid.
type Survey struct {
	ID      string
	Kind    Kind
	BaseURL string
	Format  string
	// Depth is the number of cube slices; 1 for every other kind.
	Depth    int
	MaxOrder uint8
	// AllskyOrder is the order of the tiles merged into the all-sky mosaic,
	// or -1 when the survey does not publish one.
	AllskyOrder int
	Coverage    *moc.MOC
}

// Slices returns the valid range of Key.Extra.
func (s Survey) Slices() int {
	if s.Kind == KindCube && s.Depth > 0 {
		return s.Depth
	}
	return 1
}

func (s Survey) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("survey has no id")
	}
	if _, err := ParseKind(string(s.Kind)); err != nil {
		return err
	}
	if s.Kind == KindCube && s.Depth < 1 {
		return fmt.Errorf("cube survey %s needs a positive depth", s.ID)
	}
	if s.MaxOrder > healpix.MaxOrder {
		return fmt.Errorf("survey %s: max order %d above %d", s.ID, s.MaxOrder, healpix.MaxOrder)
	}
	if s.AllskyOrder < -1 {
		return fmt.Errorf("survey %s: negative all-sky order %d", s.ID, s.AllskyOrder)
	}
	if s.AllskyOrder > 2 {
		return fmt.Errorf("survey %s: all-sky order %d above 2", s.ID, s.AllskyOrder)
	}
	if s.AllskyOrder > int(s.MaxOrder) {
		return fmt.Errorf("survey %s: all-sky order %d above max order %d", s.ID, s.AllskyOrder, s.MaxOrder)
	}
	return nil
}

// HasAllsky reports whether keys at order are served from the mosaic.
func (s Survey) HasAllsky(order uint8) bool {
	return s.AllskyOrder >= 0 && int(order) == s.AllskyOrder
}

func (s Survey) Key(order uint8, pixel uint64, slice int) Key {
	return Key{Survey: s.ID, Order: order, Pixel: pixel, Extra: slice}
}
