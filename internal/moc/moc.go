// Package moc implements Multi-Order Coverage maps: normalized sets of
// HEALPix cells at mixed orders together with their set algebra.
package moc

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jaennil/guide_helper/backend/hips/pkg/healpix"
	"github.com/jaennil/guide_helper/backend/hips/pkg/metrics"
)

var (
	ErrFrameMismatch    = errors.New("coverage frames do not match")
	ErrInvalidCell      = errors.New("invalid coverage cell")
	ErrEmptyOperandList = errors.New("empty operand list")
	ErrOperandCount     = errors.New("wrong number of operands")
)

// Frame tags the celestial reference frame of a coverage.
type Frame string

const (
	FrameICRS     Frame = "C"
	FrameGalactic Frame = "G"
	FrameEcliptic Frame = "E"
)

// depth is the order at which cells are expressed as nested intervals.
const depth = healpix.MaxOrder

// MOC is a coverage map. Cells are kept sorted in depth-first order; after
// Normalize (and for every MOC returned by an operation) they are also
// disjoint and minimal. A MOC returned by an operation must not be modified.
type MOC struct {
	maxOrder   uint8
	frame      Frame
	cells      []healpix.Address
	normalized bool
}

func New(maxOrder uint8, frame Frame) (*MOC, error) {
	if maxOrder > healpix.MaxOrder {
		return nil, fmt.Errorf("%w: max order %d exceeds %d", ErrInvalidCell, maxOrder, healpix.MaxOrder)
	}
	if frame == "" {
		frame = FrameICRS
	}
	return &MOC{maxOrder: maxOrder, frame: frame, normalized: true}, nil
}

// Full returns the whole sphere at maxOrder.
func Full(maxOrder uint8, frame Frame) (*MOC, error) {
	m, err := New(maxOrder, frame)
	if err != nil {
		return nil, err
	}
	m.cells = make([]healpix.Address, 12)
	for p := range m.cells {
		m.cells[p] = healpix.Address{Order: 0, Pixel: uint64(p)}
	}
	return m, nil
}

func (m *MOC) MaxOrder() uint8 { return m.maxOrder }
func (m *MOC) Frame() Frame     { return m.frame }

// Add inserts a cell. Cells finer than the max order are coarsened to their
// ancestor at the max order. The MOC must be normalized before it is queried.
func (m *MOC) Add(order uint8, pixel uint64) error {
	a, err := healpix.New(order, pixel)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCell, err)
	}
	m.cells = append(m.cells, a.Ancestor(m.maxOrder))
	m.normalized = false
	return nil
}

func (m *MOC) AddAddress(a healpix.Address) error {
	return m.Add(a.Order, a.Pixel)
}

// Normalize merges complete sibling groups and drops redundant cells.
func (m *MOC) Normalize() *MOC {
	if m.normalized {
		return m
	}
	m.cells = fromRanges(toRanges(m.cells))
	m.normalized = true
	return m
}

func (m *MOC) IsNormalized() bool { return m.normalized }

func (m *MOC) IsEmpty() bool {
	return len(m.cells) == 0
}

// Len returns the number of cells.
func (m *MOC) Len() int {
	return len(m.cells)
}

// Cells returns a copy of the cells in depth-first order.
func (m *MOC) Cells() []healpix.Address {
	out := make([]healpix.Address, len(m.cells))
	copy(out, m.cells)
	return out
}

// Coverage returns the covered fraction of the sphere.
func (m *MOC) Coverage() float64 {
	var n uint64
	for _, r := range toRanges(m.cells) {
		n += r.end - r.start
	}
	return float64(n) / float64(healpix.NPix(depth))
}

// Equal compares the normalized content, frame and max order.
func (m *MOC) Equal(o *MOC) bool {
	if m.maxOrder != o.maxOrder || m.frame != o.frame {
		return false
	}
	a, b := m.normalizedCells(), o.normalizedCells()
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Clone returns a mutable copy.
func (m *MOC) Clone() *MOC {
	return &MOC{maxOrder: m.maxOrder, frame: m.frame, cells: m.Cells(), normalized: m.normalized}
}

func (m *MOC) normalizedCells() []healpix.Address {
	if m.normalized {
		return m.cells
	}
	return fromRanges(toRanges(m.cells))
}

// Contains reports whether the point falls inside the coverage.
func (m *MOC) Contains(p healpix.Point) bool {
	return m.ContainsAddress(healpix.FromPoint(m.maxOrder, p))
}

// ContainsAddress reports whether a is entirely covered.
func (m *MOC) ContainsAddress(a healpix.Address) bool {
	cells := m.normalizedCells()
	start, _ := a.Range(depth)
	i := sort.Search(len(cells), func(i int) bool {
		s, _ := cells[i].Range(depth)
		return s > start
	})
	if i == 0 {
		return false
	}
	return cells[i-1].Contains(a)
}

// Intersects reports whether any part of a is covered.
func (m *MOC) Intersects(a healpix.Address) bool {
	if m.ContainsAddress(a) {
		return true
	}
	cells := m.normalizedCells()
	start, end := a.Range(depth)
	i := sort.Search(len(cells), func(i int) bool {
		s, _ := cells[i].Range(depth)
		return s >= start
	})
	if i == len(cells) {
		return false
	}
	s, _ := cells[i].Range(depth)
	return s < end
}

// Pixels enumerates every order-level pixel covered by the MOC. order must not
// be coarser than the finest cell.
func (m *MOC) Pixels(order uint8) []uint64 {
	out := make([]uint64, 0)
	for _, r := range toRanges(m.normalizedCells()) {
		shift := 2 * uint64(depth-order)
		for p := r.start >> shift; p < (r.end+(1<<shift)-1)>>shift; p++ {
			out = append(out, p)
		}
	}
	return out
}

// SetOrder returns a copy with a new max order. Coarsening replaces every
// cell finer than newMax by its ancestor, which can only grow the coverage.
// Refining keeps the cells and only raises the ceiling.
func (m *MOC) SetOrder(newMax uint8) (*MOC, error) {
	out, err := New(newMax, m.frame)
	if err != nil {
		return nil, err
	}
	cells := m.normalizedCells()
	out.cells = make([]healpix.Address, len(cells))
	for i, c := range cells {
		out.cells[i] = c.Ancestor(newMax)
	}
	out.normalized = newMax >= m.maxOrder
	return out.Normalize(), nil
}

// Reduction lowers the max order one full order at a time and stops as soon
// as the number of cells is at most target. Order 0 is the floor.
func (m *MOC) Reduction(target int) (*MOC, error) {
	defer func(start time.Time) {
		metrics.CoverageOperationDuration.WithLabelValues("reduction").Observe(time.Since(start).Seconds())
	}(time.Now())

	cur := m.Clone().Normalize()
	for cur.Len() > target && cur.maxOrder > 0 {
		next, err := cur.SetOrder(cur.maxOrder - 1)
		if err != nil {
			return nil, err
		}
		cur = next
	}
	return cur, nil
}

// FrameConverter moves a sky position from one frame to another.
type FrameConverter interface {
	Convert(p healpix.Point, from, to Frame) healpix.Point
}

// Reproject maps the MOC into another frame by converting the center of every
// covered max-order pixel.
func (m *MOC) Reproject(to Frame, conv FrameConverter) (*MOC, error) {
	if to == m.frame {
		return m.Clone().Normalize(), nil
	}
	out, err := New(m.maxOrder, to)
	if err != nil {
		return nil, err
	}
	for _, p := range m.Pixels(m.maxOrder) {
		c := healpix.Address{Order: m.maxOrder, Pixel: p}.Center()
		if err := out.AddAddress(healpix.FromPoint(m.maxOrder, conv.Convert(c, m.frame, to))); err != nil {
			return nil, err
		}
	}
	return out.Normalize(), nil
}
