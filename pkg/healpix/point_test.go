package healpix

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromPointKnownPixels(t *testing.T) {
	assert.Equal(t, Address{Order: 0, Pixel: 4}, FromPoint(0, Point{Lon: 0, Lat: 0}))
	assert.Equal(t, Address{Order: 0, Pixel: 0}, FromPoint(0, Point{Lon: 45, Lat: 90}))
	assert.Equal(t, Address{Order: 0, Pixel: 8}, FromPoint(0, Point{Lon: 45, Lat: -90}))
}

func TestFromPointWrapsLongitude(t *testing.T) {
	p := Point{Lon: 10, Lat: 20}
	assert.Equal(t, FromPoint(7, p), FromPoint(7, Point{Lon: 370, Lat: 20}))
	assert.Equal(t, FromPoint(7, p), FromPoint(7, Point{Lon: -350, Lat: 20}))
}

func TestDistance(t *testing.T) {
	assert.InDelta(t, 90, Distance(Point{Lon: 0, Lat: 0}, Point{Lon: 0, Lat: 90}), 1e-9)
	assert.InDelta(t, 180, Distance(Point{Lon: 0, Lat: 0}, Point{Lon: 180, Lat: 0}), 1e-9)
	assert.InDelta(t, 0, Distance(Point{Lon: 12, Lat: 34}, Point{Lon: 12, Lat: 34}), 1e-12)
}

func TestQueryDiscZeroRadius(t *testing.T) {
	c := Point{Lon: 123.4, Lat: -56.7}
	got := QueryDisc(6, c, 0)
	assert.Contains(t, got, FromPoint(6, c))
}

func TestQueryDiscCoversCone(t *testing.T) {
	c := Point{Lon: 200, Lat: 30}
	const order = 5
	const radius = 5.0
	got := QueryDisc(order, c, radius)

	found := map[uint64]bool{}
	for i, a := range got {
		assert.Equal(t, uint8(order), a.Order)
		if i > 0 {
			assert.Less(t, got[i-1].Pixel, a.Pixel)
		}
		found[a.Pixel] = true
	}

	// every pixel whose center lies in the cone is returned
	for p := uint64(0); p < NPix(order); p++ {
		a := Address{Order: order, Pixel: p}
		if Distance(c, a.Center()) <= radius {
			assert.True(t, found[p], "missing %s", a)
		}
	}
}

func TestQueryDiscWholeSky(t *testing.T) {
	assert.Len(t, QueryDisc(1, Point{}, 180), int(NPix(1)))
}

func TestQueryDiscCellsMatchesLeaves(t *testing.T) {
	c := Point{Lon: 83.6, Lat: 22}
	const order = 7
	leaves := QueryDisc(order, c, 4)
	cells, err := QueryDiscCells(order, c, 4, 0)
	require.NoError(t, err)
	assert.Less(t, len(cells), len(leaves))

	expanded := make([]Address, 0, len(leaves))
	for i, a := range cells {
		if i > 0 {
			prev, _ := cells[i-1].Range(MaxOrder)
			cur, _ := a.Range(MaxOrder)
			assert.Less(t, prev, cur)
			assert.False(t, cells[i-1].Overlaps(a), "%s overlaps %s", cells[i-1], a)
		}
		start, end := a.Range(order)
		for p := start; p < end; p++ {
			expanded = append(expanded, Address{Order: order, Pixel: p})
		}
	}
	assert.ElementsMatch(t, leaves, expanded)
}

func TestQueryDiscCellsWholeSky(t *testing.T) {
	cells, err := QueryDiscCells(29, Point{Lon: 1, Lat: 2}, 180, 10)
	require.NoError(t, err)
	require.Len(t, cells, 12)
	assert.Equal(t, Address{Order: 0, Pixel: 11}, cells[11])
}

func TestQueryDiscLimits(t *testing.T) {
	c := Point{Lon: 200, Lat: 30}

	_, err := QueryDiscLimit(10, c, 5, 100)
	assert.ErrorIs(t, err, ErrTooManyPixels)

	got, err := QueryDiscLimit(5, c, 5, 100)
	require.NoError(t, err)
	assert.Equal(t, QueryDisc(5, c, 5), got)

	// the walk stops at the limit instead of enumerating the deep boundary
	_, err = QueryDiscCells(MaxOrder, c, 1, 1000)
	assert.ErrorIs(t, err, ErrTooManyPixels)
}
