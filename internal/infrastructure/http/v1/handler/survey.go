package handler

import (
	"bytes"
	"image/png"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	perrors "github.com/jmgilman/go/errors"
	"github.com/jaennil/guide_helper/backend/hips/internal/infrastructure/http/v1/dto"
	"github.com/jaennil/guide_helper/backend/hips/internal/tile"
	"github.com/jaennil/guide_helper/backend/hips/internal/tilecache"
	"github.com/jaennil/guide_helper/backend/hips/pkg/healpix"
)

func (h *Handler) Surveys(c *gin.Context) {
	surveys := h.surveyUseCase.Surveys()
	out := make([]dto.SurveyResponse, len(surveys))
	for i, s := range surveys {
		out[i] = dto.SurveyResponse{
			ID:          s.ID,
			Kind:        string(s.Kind),
			Format:      s.Format,
			MaxOrder:    s.MaxOrder,
			Slices:      s.Slices(),
			AllskyOrder: s.AllskyOrder,
		}
		if s.Coverage != nil {
			out[i].Coverage = s.Coverage.String()
		}
	}

	h.RespondWithJSON(c, http.StatusOK, "surveys", out)
}

func (h *Handler) View(c *gin.Context) {
	var req dto.ViewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.RespondWithJSON(c, http.StatusBadRequest, "failed to decode request body", nil)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.RespondWithJSON(c, http.StatusBadRequest, err.Error(), nil)
		return
	}

	tiles, err := h.surveyUseCase.View(c.Request.Context(), c.Param("id"), tilecache.Viewport{
		Center: healpix.Point{Lon: req.Lon, Lat: req.Lat},
		Radius: req.Radius,
		Order:  req.Order,
		Slice:  req.Slice,
	})
	if err != nil {
		h.RespondWithError(c, err)
		return
	}

	h.RespondWithJSON(c, http.StatusOK, "visibility pass done", tiles)
}

// Tile serves a ready tile as PNG. Tiles still loading answer 202 and failed
// tiles 502 so that clients can draw a spinner or an error placeholder.
func (h *Handler) Tile(c *gin.Context) {
	order, err := strconv.ParseUint(c.Param("order"), 10, 8)
	if err != nil {
		h.RespondWithJSON(c, http.StatusBadRequest, "order should be integer", nil)
		return
	}
	pixel, err := strconv.ParseUint(c.Param("pixel"), 10, 64)
	if err != nil {
		h.RespondWithJSON(c, http.StatusBadRequest, "pixel should be integer", nil)
		return
	}
	slice, err := strconv.Atoi(c.DefaultQuery("slice", "0"))
	if err != nil {
		h.RespondWithJSON(c, http.StatusBadRequest, "slice should be integer", nil)
		return
	}

	v, err := h.surveyUseCase.Tile(c.Request.Context(), c.Param("id"), uint8(order), pixel, slice)
	if err != nil {
		h.RespondWithError(c, err)
		return
	}

	switch v.State {
	case tile.Ready:
	case tile.Error:
		h.RespondWithJSON(c, http.StatusBadGateway, "tile unavailable", gin.H{
			"state":     v.State.String(),
			"error":     v.Err.Error(),
			"retryable": perrors.IsRetryable(v.Err),
		})
		return
	case tile.Unknown:
		h.RespondWithJSON(c, http.StatusNotFound, "tile not requested", gin.H{"state": v.State.String()})
		return
	default:
		h.RespondWithJSON(c, http.StatusAccepted, "tile loading", gin.H{"state": v.State.String()})
		return
	}

	if v.Payload.Image == nil {
		c.Data(http.StatusOK, "application/fits", v.Payload.Raw)
		return
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, v.Payload.Image); err != nil {
		h.RespondWithError(c, err)
		return
	}
	c.Data(http.StatusOK, "image/png", buf.Bytes())
}

func (h *Handler) Stats(c *gin.Context) {
	st, err := h.surveyUseCase.Stats(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.RespondWithError(c, err)
		return
	}

	h.RespondWithJSON(c, http.StatusOK, "cache stats", st)
}

func (h *Handler) Coverage(c *gin.Context) {
	maxOrder, err := strconv.ParseUint(c.DefaultQuery("max_order", "29"), 10, 8)
	if err != nil || maxOrder > healpix.MaxOrder {
		h.RespondWithJSON(c, http.StatusBadRequest, "max_order should be an integer in [0, 29]", nil)
		return
	}

	m, err := h.surveyUseCase.Coverage(c.Request.Context(), c.Param("id"), uint8(maxOrder))
	if err != nil {
		h.RespondWithError(c, err)
		return
	}

	h.RespondWithJSON(c, http.StatusOK, "coverage of loaded tiles", coverageResponse(m))
}
