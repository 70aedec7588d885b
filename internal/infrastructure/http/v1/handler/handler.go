package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jaennil/guide_helper/backend/hips/internal/moc"
	"github.com/jaennil/guide_helper/backend/hips/internal/tilecache"
	"github.com/jaennil/guide_helper/backend/hips/internal/usecase"
	"github.com/jaennil/guide_helper/backend/hips/pkg/healpix"
	"github.com/jaennil/guide_helper/backend/hips/pkg/logger"
)

const (
	internalServerErrorText = "the server encountered an error and could not process your request"
)

type response struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

type Handler struct {
	validate        *validator.Validate
	surveyUseCase   *usecase.SurveyUseCase
	coverageUseCase *usecase.CoverageUseCase
}

func NewHandler(v *validator.Validate, suc *usecase.SurveyUseCase, cuc *usecase.CoverageUseCase) *Handler {
	return &Handler{
		validate:        v,
		surveyUseCase:   suc,
		coverageUseCase: cuc,
	}
}

func (h *Handler) RespondWithInternalServerError(c *gin.Context) {
	h.RespondWithJSON(c, http.StatusInternalServerError, internalServerErrorText, nil)
}

func (h *Handler) RespondWithJSON(c *gin.Context, code int, message string, data any) {
	success := code < 400

	r := response{
		Success: success,
		Message: message,
		Data:    data,
	}

	c.JSON(code, r)
}

// RespondWithError maps domain errors to status codes.
func (h *Handler) RespondWithError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, usecase.ErrSurveyNotFound):
		h.RespondWithJSON(c, http.StatusNotFound, err.Error(), nil)
	case errors.Is(err, moc.ErrFrameMismatch),
		errors.Is(err, moc.ErrInvalidCell),
		errors.Is(err, moc.ErrEmptyOperandList),
		errors.Is(err, moc.ErrOperandCount),
		errors.Is(err, healpix.ErrTooManyPixels),
		errors.Is(err, tilecache.ErrInvalidViewport):
		h.RespondWithJSON(c, http.StatusUnprocessableEntity, err.Error(), nil)
	default:
		l(c).Error("request failed", "path", c.FullPath(), "error", err)
		h.RespondWithInternalServerError(c)
	}
}

func l(c *gin.Context) logger.Logger {
	if v, ok := c.Get("logger"); ok {
		if lg, ok := v.(logger.Logger); ok {
			return lg
		}
	}
	return logger.FromContext(c.Request.Context())
}
