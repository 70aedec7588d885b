package moc

import (
	"math/rand"
	"testing"

	"github.com/jaennil/guide_helper/backend/hips/pkg/healpix"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustMOC(t testing.TB, maxOrder uint8, cells ...healpix.Address) *MOC {
	t.Helper()
	m, err := New(maxOrder, FrameICRS)
	require.NoError(t, err)
	for _, c := range cells {
		require.NoError(t, m.AddAddress(c))
	}
	return m.Normalize()
}

func randomMOC(t testing.TB, r *rand.Rand, maxOrder uint8, n int) *MOC {
	t.Helper()
	m, err := New(maxOrder, FrameICRS)
	require.NoError(t, err)
	for i := 0; i < n; i++ {
		o := uint8(r.Intn(int(maxOrder) + 1))
		require.NoError(t, m.Add(o, uint64(r.Int63n(int64(healpix.NPix(o))))))
	}
	return m.Normalize()
}

func TestNewRejectsDeepOrder(t *testing.T) {
	_, err := New(30, FrameICRS)
	assert.ErrorIs(t, err, ErrInvalidCell)
}

func TestNewDefaultsToICRS(t *testing.T) {
	m, err := New(5, "")
	require.NoError(t, err)
	assert.Equal(t, FrameICRS, m.Frame())
}

func TestAddRejectsInvalidCell(t *testing.T) {
	m, err := New(5, FrameICRS)
	require.NoError(t, err)
	assert.ErrorIs(t, m.Add(1, 48), ErrInvalidCell)
}

func TestAddCoarsensToMaxOrder(t *testing.T) {
	m := mustMOC(t, 3, healpix.Address{Order: 5, Pixel: 163})
	assert.Equal(t, []healpix.Address{{Order: 3, Pixel: 10}}, m.Cells())
}

func TestNormalizeMergesSiblings(t *testing.T) {
	m := mustMOC(t, 4,
		healpix.Address{Order: 4, Pixel: 40},
		healpix.Address{Order: 4, Pixel: 41},
		healpix.Address{Order: 4, Pixel: 42},
		healpix.Address{Order: 4, Pixel: 43},
	)
	assert.Equal(t, []healpix.Address{{Order: 3, Pixel: 10}}, m.Cells())
}

func TestNormalizeDropsCoveredCells(t *testing.T) {
	m := mustMOC(t, 6,
		healpix.Address{Order: 2, Pixel: 1},
		healpix.Address{Order: 6, Pixel: 300},
		healpix.Address{Order: 6, Pixel: 300},
	)
	assert.Equal(t, []healpix.Address{{Order: 2, Pixel: 1}}, m.Cells())
}

func TestNormalizedCellsAreDisjoint(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	for i := 0; i < 50; i++ {
		cells := randomMOC(t, r, 8, 40).Cells()
		for j := range cells {
			for k := j + 1; k < len(cells); k++ {
				require.False(t, cells[j].Overlaps(cells[k]), "%s overlaps %s", cells[j], cells[k])
			}
		}
	}
}

func TestUnionOfChildrenIsParent(t *testing.T) {
	a := mustMOC(t, 4, healpix.Address{Order: 3, Pixel: 10})
	b := mustMOC(t, 4,
		healpix.Address{Order: 4, Pixel: 40},
		healpix.Address{Order: 4, Pixel: 41},
		healpix.Address{Order: 4, Pixel: 42},
		healpix.Address{Order: 4, Pixel: 43},
	)

	u, err := Union(a, b)
	require.NoError(t, err)
	assert.Equal(t, []healpix.Address{{Order: 3, Pixel: 10}}, u.Normalize().Cells())
}

func TestIntersectionWithSelf(t *testing.T) {
	r := rand.New(rand.NewSource(2))
	for i := 0; i < 30; i++ {
		a := randomMOC(t, r, 7, 25)
		got, err := Intersection(a, a)
		require.NoError(t, err)
		assert.True(t, got.Equal(a))
	}
}

func TestAlgebraLaws(t *testing.T) {
	r := rand.New(rand.NewSource(3))
	for i := 0; i < 30; i++ {
		a := randomMOC(t, r, 7, 20)
		b := randomMOC(t, r, 7, 20)

		ab, err := Union(a, b)
		require.NoError(t, err)
		ba, err := Union(b, a)
		require.NoError(t, err)
		assert.True(t, ab.Equal(ba), "union commutes")

		iab, err := Intersection(a, b)
		require.NoError(t, err)
		iba, err := Intersection(b, a)
		require.NoError(t, err)
		assert.True(t, iab.Equal(iba), "intersection commutes")

		aa, err := Union(a, a)
		require.NoError(t, err)
		assert.True(t, aa.Equal(a), "union idempotent")

		notB, err := Complement(b)
		require.NoError(t, err)
		sub, err := Subtraction(a, b)
		require.NoError(t, err)
		viaComplement, err := Intersection(a, notB)
		require.NoError(t, err)
		assert.True(t, sub.Equal(viaComplement), "a - b == a and not b")

		diff, err := Difference(a, b)
		require.NoError(t, err)
		viaParts, err := Subtraction(ab, iab)
		require.NoError(t, err)
		assert.True(t, diff.Equal(viaParts), "a xor b == (a or b) - (a and b)")

		notA, err := Complement(a)
		require.NoError(t, err)
		all, err := Union(a, notA)
		require.NoError(t, err)
		assert.InDelta(t, 1.0, all.Coverage(), 1e-12)
		none, err := Intersection(a, notA)
		require.NoError(t, err)
		assert.True(t, none.IsEmpty())

		back, err := Complement(notA)
		require.NoError(t, err)
		assert.True(t, back.Equal(a), "double complement")
	}
}

func TestOperationMaxOrderIsLargest(t *testing.T) {
	a := mustMOC(t, 3, healpix.Address{Order: 3, Pixel: 1})
	b := mustMOC(t, 8, healpix.Address{Order: 8, Pixel: 1})
	u, err := Union(a, b)
	require.NoError(t, err)
	assert.Equal(t, uint8(8), u.MaxOrder())
	assert.True(t, u.IsNormalized())
}

func TestFrameMismatch(t *testing.T) {
	a := mustMOC(t, 3, healpix.Address{Order: 3, Pixel: 1})
	b, err := New(3, FrameGalactic)
	require.NoError(t, err)

	_, err = Union(a, b)
	assert.ErrorIs(t, err, ErrFrameMismatch)
	_, err = Intersection(a, b)
	assert.ErrorIs(t, err, ErrFrameMismatch)
}

func TestCoverage(t *testing.T) {
	full, err := Full(4, FrameICRS)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, full.Coverage(), 1e-12)

	m := mustMOC(t, 0, healpix.Address{Order: 0, Pixel: 3})
	assert.InDelta(t, 1.0/12, m.Coverage(), 1e-12)

	empty, err := New(4, FrameICRS)
	require.NoError(t, err)
	assert.True(t, empty.IsEmpty())
	assert.Zero(t, empty.Coverage())
}

func TestContainsCellCenters(t *testing.T) {
	r := rand.New(rand.NewSource(4))
	m := randomMOC(t, r, 6, 30)
	for _, c := range m.Cells() {
		assert.True(t, m.Contains(c.Center()), "center of %s", c)
		assert.True(t, m.ContainsAddress(c))
		for _, child := range c.Children() {
			assert.True(t, m.ContainsAddress(child))
		}
	}

	notM, err := Complement(m)
	require.NoError(t, err)
	for _, c := range notM.Cells() {
		assert.False(t, m.Contains(c.Center()), "center of %s", c)
	}
}

func TestIntersects(t *testing.T) {
	m := mustMOC(t, 5, healpix.Address{Order: 5, Pixel: 100})
	assert.True(t, m.Intersects(healpix.Address{Order: 3, Pixel: 6}))
	assert.True(t, m.Intersects(healpix.Address{Order: 5, Pixel: 100}))
	assert.True(t, m.Intersects(healpix.Address{Order: 7, Pixel: 1601}))
	assert.False(t, m.Intersects(healpix.Address{Order: 5, Pixel: 101}))
	assert.False(t, m.Intersects(healpix.Address{Order: 3, Pixel: 7}))
	assert.False(t, m.ContainsAddress(healpix.Address{Order: 3, Pixel: 6}))
}

func TestPixels(t *testing.T) {
	m := mustMOC(t, 4,
		healpix.Address{Order: 3, Pixel: 10},
		healpix.Address{Order: 4, Pixel: 7},
	)
	assert.Equal(t, []uint64{7, 40, 41, 42, 43}, m.Pixels(4))
}

func TestSetOrderCoarsens(t *testing.T) {
	m := mustMOC(t, 6, healpix.Address{Order: 6, Pixel: 641})
	c, err := m.SetOrder(4)
	require.NoError(t, err)
	assert.Equal(t, uint8(4), c.MaxOrder())
	assert.Equal(t, []healpix.Address{{Order: 4, Pixel: 40}}, c.Cells())

	// coarsening only grows the coverage
	sub, err := Subtraction(m, c)
	require.NoError(t, err)
	assert.True(t, sub.IsEmpty())
}

func TestSetOrderRefines(t *testing.T) {
	m := mustMOC(t, 3, healpix.Address{Order: 3, Pixel: 10})
	f, err := m.SetOrder(9)
	require.NoError(t, err)
	assert.Equal(t, uint8(9), f.MaxOrder())
	assert.Equal(t, m.Cells(), f.Cells())
}

func TestReduction(t *testing.T) {
	m := mustMOC(t, 6,
		healpix.Address{Order: 6, Pixel: 0},
		healpix.Address{Order: 6, Pixel: 5},
		healpix.Address{Order: 6, Pixel: 20},
		healpix.Address{Order: 6, Pixel: 1000},
	)
	got, err := m.Reduction(2)
	require.NoError(t, err)
	assert.LessOrEqual(t, got.Len(), 2)
	assert.Less(t, got.MaxOrder(), m.MaxOrder())

	sub, err := Subtraction(m, got)
	require.NoError(t, err)
	assert.True(t, sub.IsEmpty(), "reduction never loses coverage")

	same, err := m.Reduction(10)
	require.NoError(t, err)
	assert.True(t, same.Equal(m))
}

func TestReductionStopsAtOrderZero(t *testing.T) {
	full, err := Full(3, FrameICRS)
	require.NoError(t, err)
	got, err := full.Reduction(1)
	require.NoError(t, err)
	assert.Equal(t, uint8(0), got.MaxOrder())
	assert.Equal(t, 12, got.Len())
}

type swapFrame struct{}

func (swapFrame) Convert(p healpix.Point, _, _ Frame) healpix.Point {
	return healpix.Point{Lon: p.Lon, Lat: -p.Lat}
}

func TestReproject(t *testing.T) {
	m := mustMOC(t, 0, healpix.Address{Order: 0, Pixel: 0})
	got, err := m.Reproject(FrameGalactic, swapFrame{})
	require.NoError(t, err)
	assert.Equal(t, FrameGalactic, got.Frame())
	assert.Equal(t, []healpix.Address{{Order: 0, Pixel: 8}}, got.Cells())

	same, err := m.Reproject(FrameICRS, swapFrame{})
	require.NoError(t, err)
	assert.True(t, same.Equal(m))
}

func TestNormalizeIsIdempotent(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for i := 0; i < 100; i++ {
		m := randomMOC(t, r, uint8(r.Intn(13)), 1+r.Intn(300))
		want := m.Cells()
		assert.Equal(t, want, fromRanges(toRanges(m.Cells())))

		c := m.Clone()
		c.normalized = false
		c.Normalize()
		assert.Equal(t, want, c.Cells())
		c.normalized = false
		c.Normalize()
		assert.Equal(t, want, c.Cells())
		assert.True(t, m.Equal(c))
	}
}
