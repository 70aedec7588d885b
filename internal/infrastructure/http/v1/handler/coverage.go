package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jaennil/guide_helper/backend/hips/internal/infrastructure/http/v1/dto"
	"github.com/jaennil/guide_helper/backend/hips/internal/moc"
	"github.com/jaennil/guide_helper/backend/hips/pkg/healpix"
)

func frameOrDefault(s string) moc.Frame {
	if s == "" {
		return moc.FrameICRS
	}
	return moc.Frame(s)
}

func coverageResponse(m *moc.MOC) dto.CoverageResponse {
	return dto.CoverageResponse{
		MOC:      m.String(),
		MaxOrder: m.MaxOrder(),
		Cells:    m.Len(),
		Sky:      m.Coverage(),
		Empty:    m.IsEmpty(),
	}
}

func (h *Handler) CoverageAlgebra(c *gin.Context) {
	op, err := moc.ParseOp(c.Param("op"))
	if err != nil {
		h.RespondWithJSON(c, http.StatusNotFound, err.Error(), nil)
		return
	}

	var req dto.CoverageAlgebraRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.RespondWithJSON(c, http.StatusBadRequest, "failed to decode request body", nil)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.RespondWithJSON(c, http.StatusBadRequest, err.Error(), nil)
		return
	}

	res, err := h.coverageUseCase.Algebra(op, req.Operands, frameOrDefault(req.Frame))
	if err != nil {
		h.RespondWithError(c, err)
		return
	}
	if req.ReduceTo > 0 {
		if res, err = res.Reduction(req.ReduceTo); err != nil {
			h.RespondWithError(c, err)
			return
		}
	}

	h.RespondWithJSON(c, http.StatusOK, "coverage computed", coverageResponse(res))
}

func (h *Handler) CoverageContains(c *gin.Context) {
	var req dto.ContainsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.RespondWithJSON(c, http.StatusBadRequest, "lon, lat and moc query parameters are required", nil)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.RespondWithJSON(c, http.StatusBadRequest, err.Error(), nil)
		return
	}

	ok, err := h.coverageUseCase.Contains(req.MOC, frameOrDefault(req.Frame), healpix.Point{Lon: req.Lon, Lat: req.Lat})
	if err != nil {
		h.RespondWithError(c, err)
		return
	}

	h.RespondWithJSON(c, http.StatusOK, "membership tested", dto.ContainsResponse{Contains: ok})
}

func (h *Handler) CatalogCoverage(c *gin.Context) {
	var req dto.CatalogCoverageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.RespondWithJSON(c, http.StatusBadRequest, "failed to decode request body", nil)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.RespondWithJSON(c, http.StatusBadRequest, err.Error(), nil)
		return
	}

	points := make([]healpix.Point, len(req.Points))
	for i, p := range req.Points {
		points[i] = healpix.Point{Lon: p.Lon, Lat: p.Lat}
	}

	res, err := h.coverageUseCase.Catalog(points, req.Order, req.Radius, frameOrDefault(req.Frame))
	if err != nil {
		h.RespondWithError(c, err)
		return
	}

	h.RespondWithJSON(c, http.StatusOK, "coverage computed", coverageResponse(res))
}

func (h *Handler) ReduceCoverage(c *gin.Context) {
	var req dto.ReduceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.RespondWithJSON(c, http.StatusBadRequest, "failed to decode request body", nil)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.RespondWithJSON(c, http.StatusBadRequest, err.Error(), nil)
		return
	}

	res, err := h.coverageUseCase.Reduce(req.MOC, frameOrDefault(req.Frame), req.Target)
	if err != nil {
		h.RespondWithError(c, err)
		return
	}

	h.RespondWithJSON(c, http.StatusOK, "coverage reduced", coverageResponse(res))
}
