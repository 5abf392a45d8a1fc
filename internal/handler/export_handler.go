package handler

import (
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/tomengsanchez/asset-manager-api/internal/models"
	"github.com/tomengsanchez/asset-manager-api/internal/service"
	appErrors "github.com/tomengsanchez/asset-manager-api/pkg/errors"
	"github.com/tomengsanchez/asset-manager-api/pkg/response"
)

// ExportHandler exposes export job endpoints.
type ExportHandler struct {
	exports *service.ExportService
}

// NewExportHandler constructs ExportHandler.
func NewExportHandler(exports *service.ExportService) *ExportHandler {
	return &ExportHandler{exports: exports}
}

type exportRequest struct {
	Type   models.ExportType   `json:"type" binding:"required"`
	Format models.ExportFormat `json:"format" binding:"required"`
	Search string              `json:"search"`
}

// Enqueue godoc
// @Summary Enqueue an export job
// @Tags Exports
// @Accept json
// @Produce json
// @Param payload body exportRequest true "Export parameters"
// @Success 202 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /exports [post]
func (h *ExportHandler) Enqueue(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req exportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid export payload"))
		return
	}

	job, err := h.exports.Enqueue(c.Request.Context(), req.Type, models.ExportJobParams{
		Format: req.Format,
		Search: req.Search,
	}, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, job)
}

// Status godoc
// @Summary Get export job status
// @Tags Exports
// @Produce json
// @Param id path string true "Export job ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /exports/{id} [get]
func (h *ExportHandler) Status(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	job, err := h.exports.Status(c.Request.Context(), c.Param("id"), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, job)
}

// List godoc
// @Summary List the caller's export jobs
// @Tags Exports
// @Produce json
// @Param limit query int false "Maximum jobs returned"
// @Success 200 {object} response.Envelope
// @Router /exports [get]
func (h *ExportHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	jobs, err := h.exports.ListByUser(c.Request.Context(), claims.UserID, limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, jobs)
}

// Download godoc
// @Summary Download an export result
// @Description Streams the rendered file behind a signed, expiring token
// @Tags Exports
// @Produce octet-stream
// @Param token path string true "Signed download token"
// @Success 200 {file} file
// @Failure 410 {object} response.Envelope
// @Router /exports/download/{token} [get]
func (h *ExportHandler) Download(c *gin.Context) {
	_, relPath, _, err := h.exports.ParseToken(c.Param("token"), false)
	if err != nil {
		response.Error(c, err)
		return
	}

	file, err := h.exports.Open(relPath)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "export file no longer available"))
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to stat export file"))
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+filepath.Base(relPath)+`"`)
	c.DataFromReader(http.StatusOK, info.Size(), "application/octet-stream", file, nil)
}
