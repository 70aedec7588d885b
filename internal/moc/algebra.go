package moc

import (
	"fmt"
	"time"

	"github.com/jaennil/guide_helper/backend/hips/pkg/healpix"
	"github.com/jaennil/guide_helper/backend/hips/pkg/metrics"
)

// Op is a set operation over coverages.
type Op string

const (
	OpUnion        Op = "union"
	OpIntersection Op = "intersection"
	OpSubtraction  Op = "subtraction"
	OpDifference   Op = "difference"
	OpComplement   Op = "complement"
)

func ParseOp(s string) (Op, error) {
	switch op := Op(s); op {
	case OpUnion, OpIntersection, OpSubtraction, OpDifference, OpComplement:
		return op, nil
	}
	return "", fmt.Errorf("unknown coverage operation %q", s)
}

func (op Op) keep(inA, inB bool) bool {
	switch op {
	case OpUnion:
		return inA || inB
	case OpIntersection:
		return inA && inB
	case OpSubtraction:
		return inA && !inB
	case OpDifference:
		return inA != inB
	}
	return false
}

func Union(a, b *MOC) (*MOC, error)        { return apply(OpUnion, a, b) }
func Intersection(a, b *MOC) (*MOC, error) { return apply(OpIntersection, a, b) }

// Subtraction returns a minus b.
func Subtraction(a, b *MOC) (*MOC, error) { return apply(OpSubtraction, a, b) }

// Difference returns the symmetric difference of a and b.
func Difference(a, b *MOC) (*MOC, error) { return apply(OpDifference, a, b) }

// Complement returns the rest of the sphere at a's max order.
func Complement(a *MOC) (*MOC, error) {
	full, err := Full(a.maxOrder, a.frame)
	if err != nil {
		return nil, err
	}
	return apply(OpSubtraction, full, a)
}

func apply(op Op, a, b *MOC) (*MOC, error) {
	if a.frame != b.frame {
		return nil, fmt.Errorf("%w: %s %s %s", ErrFrameMismatch, a.frame, op, b.frame)
	}
	defer func(start time.Time) {
		metrics.CoverageOperationDuration.WithLabelValues(string(op)).Observe(time.Since(start).Seconds())
	}(time.Now())

	maxOrder := a.maxOrder
	if b.maxOrder > maxOrder {
		maxOrder = b.maxOrder
	}
	rs := combine(toRanges(a.cells), toRanges(b.cells), op.keep)
	return &MOC{
		maxOrder:   maxOrder,
		frame:      a.frame,
		cells:      fromRanges(rs),
		normalized: true,
	}, nil
}

// Locatable is anything addressed by a HEALPix cell, such as a loaded tile.
type Locatable interface {
	Address() healpix.Address
}

// FromTileScan builds the coverage of every tile accepted by keep.
func FromTileScan[T Locatable](tiles []T, keep func(T) bool, maxOrder uint8, frame Frame) (*MOC, error) {
	m, err := New(maxOrder, frame)
	if err != nil {
		return nil, err
	}
	for _, t := range tiles {
		if keep != nil && !keep(t) {
			continue
		}
		if err := m.AddAddress(t.Address()); err != nil {
			return nil, err
		}
	}
	return m.Normalize(), nil
}

// MaxConeCells bounds the cells a single catalog source may contribute.
const MaxConeCells = 1 << 16

// FromCatalog builds the coverage of a list of sources at order. A positive
// radius (degrees) also covers every pixel within that distance of a source.
// Cells lying entirely inside a cone are added whole.
func FromCatalog(points []healpix.Point, order uint8, radius float64, frame Frame) (*MOC, error) {
	m, err := New(order, frame)
	if err != nil {
		return nil, err
	}
	for _, p := range points {
		if radius <= 0 {
			if err := m.AddAddress(healpix.FromPoint(order, p)); err != nil {
				return nil, err
			}
			continue
		}
		cells, err := healpix.QueryDiscCells(order, p, radius, MaxConeCells)
		if err != nil {
			return nil, err
		}
		for _, a := range cells {
			if err := m.AddAddress(a); err != nil {
				return nil, err
			}
		}
	}
	return m.Normalize(), nil
}

// FromAlgebra folds op over the operands from left to right. Complement takes
// exactly one operand.
func FromAlgebra(op Op, operands []*MOC) (*MOC, error) {
	if len(operands) == 0 {
		return nil, ErrEmptyOperandList
	}
	if op == OpComplement {
		if len(operands) != 1 {
			return nil, fmt.Errorf("%w: complement takes 1 operand, got %d", ErrOperandCount, len(operands))
		}
		return Complement(operands[0])
	}
	if _, err := ParseOp(string(op)); err != nil {
		return nil, err
	}
	acc := operands[0].Clone().Normalize()
	for _, o := range operands[1:] {
		next, err := apply(op, acc, o)
		if err != nil {
			return nil, err
		}
		acc = next
	}
	return acc, nil
}
