package usecase

import (
	"fmt"

	"github.com/jaennil/guide_helper/backend/hips/internal/moc"
	"github.com/jaennil/guide_helper/backend/hips/pkg/healpix"
	"github.com/jaennil/guide_helper/backend/hips/pkg/logger"
)

type CoverageUseCase struct {
	logger logger.Logger
}

func NewCoverageUseCase(l logger.Logger) *CoverageUseCase {
	return &CoverageUseCase{
		logger: l,
	}
}

// Algebra parses ASCII coverages and folds op over them.
func (uc *CoverageUseCase) Algebra(op moc.Op, operands []string, frame moc.Frame) (*moc.MOC, error) {
	parsed := make([]*moc.MOC, len(operands))
	for i, s := range operands {
		m, err := moc.ParseASCII(s, frame)
		if err != nil {
			return nil, fmt.Errorf("operand %d: %w", i, err)
		}
		parsed[i] = m
	}

	res, err := moc.FromAlgebra(op, parsed)
	if err != nil {
		uc.logger.Warn("coverage algebra failed", "op", op, "error", err)
		return nil, err
	}

	uc.logger.Debug("coverage algebra", "op", op, "operands", len(operands), "cells", res.Len())
	return res, nil
}

// Contains tests a point against an ASCII coverage.
func (uc *CoverageUseCase) Contains(coverage string, frame moc.Frame, p healpix.Point) (bool, error) {
	m, err := moc.ParseASCII(coverage, frame)
	if err != nil {
		return false, err
	}
	return m.Contains(p), nil
}

// Catalog builds the coverage of a list of sources.
func (uc *CoverageUseCase) Catalog(points []healpix.Point, order uint8, radius float64, frame moc.Frame) (*moc.MOC, error) {
	return moc.FromCatalog(points, order, radius, frame)
}

// Reduce coarsens a coverage until it has at most target cells.
func (uc *CoverageUseCase) Reduce(coverage string, frame moc.Frame, target int) (*moc.MOC, error) {
	m, err := moc.ParseASCII(coverage, frame)
	if err != nil {
		return nil, err
	}
	return m.Reduction(target)
}
