package moc

import (
	"testing"

	"github.com/jaennil/guide_helper/backend/hips/pkg/healpix"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type located struct {
	addr  healpix.Address
	ready bool
}

func (l located) Address() healpix.Address { return l.addr }

func TestFromTileScanFullSky(t *testing.T) {
	tiles := make([]located, 0, healpix.NPix(2))
	for p := uint64(0); p < healpix.NPix(2); p++ {
		tiles = append(tiles, located{addr: healpix.Address{Order: 2, Pixel: p}, ready: true})
	}

	m, err := FromTileScan(tiles, func(l located) bool { return l.ready }, 2, FrameICRS)
	require.NoError(t, err)

	full, err := Full(2, FrameICRS)
	require.NoError(t, err)
	assert.True(t, m.Equal(full))
	assert.Equal(t, 12, m.Len())
}

func TestFromTileScanFilters(t *testing.T) {
	tiles := []located{
		{addr: healpix.Address{Order: 3, Pixel: 1}, ready: true},
		{addr: healpix.Address{Order: 3, Pixel: 2}},
		{addr: healpix.Address{Order: 5, Pixel: 700}, ready: true},
	}
	m, err := FromTileScan(tiles, func(l located) bool { return l.ready }, 4, FrameICRS)
	require.NoError(t, err)
	assert.Equal(t, []healpix.Address{{Order: 3, Pixel: 1}, {Order: 4, Pixel: 175}}, m.Cells())

	all, err := FromTileScan(tiles, nil, 4, FrameICRS)
	require.NoError(t, err)
	assert.Equal(t, 3, all.Len())
}

func TestFromCatalog(t *testing.T) {
	points := []healpix.Point{{Lon: 10, Lat: 10}, {Lon: 250, Lat: -60}}
	m, err := FromCatalog(points, 8, 0, FrameICRS)
	require.NoError(t, err)
	assert.Equal(t, 2, m.Len())
	for _, p := range points {
		assert.True(t, m.Contains(p))
	}

	wide, err := FromCatalog(points, 8, 1, FrameICRS)
	require.NoError(t, err)
	assert.Greater(t, wide.Coverage(), m.Coverage())
	assert.True(t, wide.Contains(healpix.Point{Lon: 10.5, Lat: 10}))
	for _, p := range points {
		assert.True(t, wide.Contains(p))
	}
}

func TestFromCatalogDeepCone(t *testing.T) {
	center := healpix.Point{Lon: 10, Lat: 10}
	m, err := FromCatalog([]healpix.Point{center}, 16, 1, FrameICRS)
	require.NoError(t, err)
	assert.True(t, m.IsNormalized())
	assert.Equal(t, uint8(16), m.MaxOrder())

	var coarse int
	for _, c := range m.Cells() {
		if c.Order < 16 {
			coarse++
		}
	}
	assert.Positive(t, coarse, "interior of the cone kept as whole cells")

	for _, p := range []healpix.Point{center, {Lon: 10.5, Lat: 10}, {Lon: 10, Lat: 10.9}, {Lon: 9.2, Lat: 9.6}} {
		assert.True(t, m.Contains(p), "%v", p)
	}
	assert.False(t, m.Contains(healpix.Point{Lon: 12, Lat: 10}))

	_, err = FromCatalog([]healpix.Point{center}, healpix.MaxOrder, 1, FrameICRS)
	assert.ErrorIs(t, err, healpix.ErrTooManyPixels)
}

func TestFromAlgebra(t *testing.T) {
	a := mustMOC(t, 4, healpix.Address{Order: 3, Pixel: 10})
	b := mustMOC(t, 4, healpix.Address{Order: 4, Pixel: 40})
	c := mustMOC(t, 4, healpix.Address{Order: 4, Pixel: 41})

	got, err := FromAlgebra(OpSubtraction, []*MOC{a, b, c})
	require.NoError(t, err)
	assert.Equal(t, []healpix.Address{{Order: 4, Pixel: 42}, {Order: 4, Pixel: 43}}, got.Cells())

	single, err := FromAlgebra(OpUnion, []*MOC{a})
	require.NoError(t, err)
	assert.True(t, single.Equal(a))

	comp, err := FromAlgebra(OpComplement, []*MOC{a})
	require.NoError(t, err)
	assert.InDelta(t, 1-a.Coverage(), comp.Coverage(), 1e-12)
}

func TestFromAlgebraErrors(t *testing.T) {
	a := mustMOC(t, 4, healpix.Address{Order: 3, Pixel: 10})

	_, err := FromAlgebra(OpUnion, nil)
	assert.ErrorIs(t, err, ErrEmptyOperandList)

	_, err = FromAlgebra(OpComplement, []*MOC{a, a})
	assert.ErrorIs(t, err, ErrOperandCount)

	_, err = FromAlgebra(Op("xor"), []*MOC{a, a})
	assert.Error(t, err)
}

func TestParseOp(t *testing.T) {
	op, err := ParseOp("intersection")
	require.NoError(t, err)
	assert.Equal(t, OpIntersection, op)

	_, err = ParseOp("merge")
	assert.Error(t, err)
}
