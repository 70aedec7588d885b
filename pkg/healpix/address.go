// Package healpix implements the NESTED HEALPix tessellation of the sphere:
// hierarchical pixel addresses, point lookup and cone queries.
package healpix

import (
	"errors"
	"fmt"
	"math"
)

// MaxOrder is the deepest order addressable with a 64-bit nested index.
const MaxOrder = 29

var ErrInvalidAddress = errors.New("invalid healpix address")

// Address identifies one node of the HEALPix quad-tree.
type Address struct {
	Order uint8
	Pixel uint64
}

// NPix returns the number of pixels covering the sphere at order.
func NPix(order uint8) uint64 {
	return 12 << (2 * uint64(order))
}

// NSide returns the number of pixels along a base face edge at order.
func NSide(order uint8) uint64 {
	return 1 << uint64(order)
}

func New(order uint8, pixel uint64) (Address, error) {
	a := Address{Order: order, Pixel: pixel}
	if err := a.Validate(); err != nil {
		return Address{}, err
	}
	return a, nil
}

func (a Address) Validate() error {
	if a.Order > MaxOrder {
		return fmt.Errorf("%w: order %d exceeds %d", ErrInvalidAddress, a.Order, MaxOrder)
	}
	if a.Pixel >= NPix(a.Order) {
		return fmt.Errorf("%w: pixel %d out of range at order %d", ErrInvalidAddress, a.Pixel, a.Order)
	}
	return nil
}

func (a Address) IsValid() bool {
	return a.Validate() == nil
}

// Parent returns the enclosing address one order up. The parent of an order 0
// address is itself.
func (a Address) Parent() Address {
	if a.Order == 0 {
		return a
	}
	return Address{Order: a.Order - 1, Pixel: a.Pixel >> 2}
}

// Ancestor returns the enclosing address at the given (coarser or equal) order.
func (a Address) Ancestor(order uint8) Address {
	if order >= a.Order {
		return a
	}
	return Address{Order: order, Pixel: a.Pixel >> (2 * uint64(a.Order-order))}
}

func (a Address) Children() [4]Address {
	base := a.Pixel << 2
	o := a.Order + 1
	return [4]Address{
		{Order: o, Pixel: base},
		{Order: o, Pixel: base + 1},
		{Order: o, Pixel: base + 2},
		{Order: o, Pixel: base + 3},
	}
}

// Range returns the half-open interval of pixels covered by a at the deeper
// order depth.
func (a Address) Range(depth uint8) (uint64, uint64) {
	shift := 2 * uint64(depth-a.Order)
	return a.Pixel << shift, (a.Pixel + 1) << shift
}

// Contains reports whether b is a or one of its descendants.
func (a Address) Contains(b Address) bool {
	if b.Order < a.Order {
		return false
	}
	return b.Ancestor(a.Order).Pixel == a.Pixel
}

// Overlaps reports whether one address is an ancestor of the other.
func (a Address) Overlaps(b Address) bool {
	return a.Contains(b) || b.Contains(a)
}

// Area returns the solid angle of a pixel at the address' order in steradians.
func (a Address) Area() float64 {
	return 4 * math.Pi / float64(NPix(a.Order))
}

// Compare orders addresses by (order, pixel).
func (a Address) Compare(b Address) int {
	switch {
	case a.Order < b.Order:
		return -1
	case a.Order > b.Order:
		return 1
	case a.Pixel < b.Pixel:
		return -1
	case a.Pixel > b.Pixel:
		return 1
	}
	return 0
}

func (a Address) String() string {
	return fmt.Sprintf("%d/%d", a.Order, a.Pixel)
}

// Center returns the sky position of the pixel center.
func (a Address) Center() Point {
	face, ix, iy := nestToXYF(a.Order, a.Pixel)
	ns := float64(NSide(a.Order))
	return xyfToPoint((float64(ix)+0.5)/ns, (float64(iy)+0.5)/ns, face)
}

// Corners returns the pixel vertices in N, W, S, E order.
func (a Address) Corners() [4]Point {
	face, ix, iy := nestToXYF(a.Order, a.Pixel)
	ns := float64(NSide(a.Order))
	x, y := float64(ix), float64(iy)
	return [4]Point{
		xyfToPoint((x+1)/ns, (y+1)/ns, face),
		xyfToPoint(x/ns, (y+1)/ns, face),
		xyfToPoint(x/ns, y/ns, face),
		xyfToPoint((x+1)/ns, y/ns, face),
	}
}

// Neighbours returns the distinct same-order pixels adjacent to a, by side or
// by corner. Pixels next to the polar and equatorial face vertices have seven.
func (a Address) Neighbours() []Address {
	face, ix, iy := nestToXYF(a.Order, a.Pixel)
	ns := float64(NSide(a.Order))
	seen := make(map[uint64]struct{}, 8)
	out := make([]Address, 0, 8)
	for _, d := range [8][2]float64{{-1, 0}, {-1, 1}, {0, 1}, {1, 1}, {1, 0}, {1, -1}, {0, -1}, {-1, -1}} {
		x := (float64(ix) + 0.5 + d[0]) / ns
		y := (float64(iy) + 0.5 + d[1]) / ns
		n := FromPoint(a.Order, xyfToPoint(x, y, face))
		if n.Pixel == a.Pixel {
			continue
		}
		if _, ok := seen[n.Pixel]; ok {
			continue
		}
		seen[n.Pixel] = struct{}{}
		out = append(out, n)
	}
	return out
}

// radius returns an upper bound of the angular distance (radians) between the
// pixel center and any point of the pixel.
func (a Address) radius() float64 {
	c := a.Center()
	r := 0.0
	for _, v := range a.Corners() {
		if d := angle(c, v); d > r {
			r = d
		}
	}
	// pixel edges are curved; corners alone slightly underestimate the bound
	return r * 1.2
}

func spread(v uint64) uint64 {
	v &= 0xffffffff
	v = (v | (v << 16)) & 0x0000ffff0000ffff
	v = (v | (v << 8)) & 0x00ff00ff00ff00ff
	v = (v | (v << 4)) & 0x0f0f0f0f0f0f0f0f
	v = (v | (v << 2)) & 0x3333333333333333
	v = (v | (v << 1)) & 0x5555555555555555
	return v
}

func compress(v uint64) uint64 {
	v &= 0x5555555555555555
	v = (v | (v >> 1)) & 0x3333333333333333
	v = (v | (v >> 2)) & 0x0f0f0f0f0f0f0f0f
	v = (v | (v >> 4)) & 0x00ff00ff00ff00ff
	v = (v | (v >> 8)) & 0x0000ffff0000ffff
	v = (v | (v >> 16)) & 0x00000000ffffffff
	return v
}

func nestToXYF(order uint8, pixel uint64) (int, uint64, uint64) {
	shift := 2 * uint64(order)
	face := int(pixel >> shift)
	local := pixel & ((1 << shift) - 1)
	return face, compress(local), compress(local >> 1)
}

func xyfToNest(order uint8, face int, ix, iy uint64) uint64 {
	return uint64(face)<<(2*uint64(order)) + spread(ix) + (spread(iy) << 1)
}
