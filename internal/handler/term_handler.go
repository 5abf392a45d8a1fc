package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tomengsanchez/asset-manager-api/internal/service"
	appErrors "github.com/tomengsanchez/asset-manager-api/pkg/errors"
	"github.com/tomengsanchez/asset-manager-api/pkg/response"
)

// TermHandler manages taxonomy terms (asset categories, repair statuses).
type TermHandler struct {
	terms *service.TermService
}

// NewTermHandler constructs TermHandler.
func NewTermHandler(terms *service.TermService) *TermHandler {
	return &TermHandler{terms: terms}
}

type termRequest struct {
	Name string `json:"name" binding:"required"`
	Slug string `json:"slug"`
}

// List godoc
// @Summary List terms in a taxonomy
// @Tags Terms
// @Produce json
// @Param taxonomy path string true "Taxonomy" Enums(asset_category, repair_status)
// @Success 200 {object} response.Envelope
// @Router /taxonomies/{taxonomy}/terms [get]
func (h *TermHandler) List(c *gin.Context) {
	terms, err := h.terms.List(c.Request.Context(), c.Param("taxonomy"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, terms)
}

// Get godoc
// @Summary Get a term
// @Tags Terms
// @Produce json
// @Param id path int true "Term ID"
// @Success 200 {object} response.Envelope
// @Router /terms/{id} [get]
func (h *TermHandler) Get(c *gin.Context) {
	id, err := parseIDParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	term, err := h.terms.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, term)
}

// Create godoc
// @Summary Create a term
// @Tags Terms
// @Accept json
// @Produce json
// @Param taxonomy path string true "Taxonomy" Enums(asset_category, repair_status)
// @Param payload body termRequest true "Term"
// @Success 201 {object} response.Envelope
// @Router /taxonomies/{taxonomy}/terms [post]
func (h *TermHandler) Create(c *gin.Context) {
	var req termRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	term, err := h.terms.Create(c.Request.Context(), c.Param("taxonomy"), req.Name, req.Slug)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, term)
}

// Update godoc
// @Summary Update a term
// @Tags Terms
// @Accept json
// @Produce json
// @Param id path int true "Term ID"
// @Param payload body termRequest true "Term"
// @Success 200 {object} response.Envelope
// @Router /terms/{id} [put]
func (h *TermHandler) Update(c *gin.Context) {
	id, err := parseIDParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req termRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	term, err := h.terms.Update(c.Request.Context(), id, req.Name, req.Slug)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, term)
}

// Delete godoc
// @Summary Delete a term
// @Tags Terms
// @Param id path int true "Term ID"
// @Success 204
// @Router /terms/{id} [delete]
func (h *TermHandler) Delete(c *gin.Context) {
	id, err := parseIDParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := h.terms.Delete(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
