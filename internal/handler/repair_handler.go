package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tomengsanchez/asset-manager-api/internal/models"
	"github.com/tomengsanchez/asset-manager-api/internal/service"
	appErrors "github.com/tomengsanchez/asset-manager-api/pkg/errors"
	"github.com/tomengsanchez/asset-manager-api/pkg/response"
)

// RepairHandler exposes repair-request endpoints.
type RepairHandler struct {
	repairs *service.RepairService
}

// NewRepairHandler constructs RepairHandler.
func NewRepairHandler(repairs *service.RepairService) *RepairHandler {
	return &RepairHandler{repairs: repairs}
}

// List godoc
// @Summary List repair requests
// @Tags Repairs
// @Produce json
// @Param search query string false "Free-text search"
// @Param asset query int false "Filter by asset ID"
// @Param technician query string false "Filter by assigned technician user ID"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /repairs [get]
func (h *RepairHandler) List(c *gin.Context) {
	var filter models.RepairFilter
	filter.Search = strings.TrimSpace(c.Query("search"))
	if assetID, err := strconv.ParseInt(c.Query("asset"), 10, 64); err == nil {
		filter.AssetID = assetID
	}
	filter.Technician = c.Query("technician")
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	repairs, pagination, err := h.repairs.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Paginated(c, http.StatusOK, repairs, pagination)
}

// Get godoc
// @Summary Get repair request detail
// @Tags Repairs
// @Produce json
// @Param id path int true "Repair request ID"
// @Success 200 {object} response.Envelope
// @Router /repairs/{id} [get]
func (h *RepairHandler) Get(c *gin.Context) {
	id, err := parseIDParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	repair, err := h.repairs.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, repair)
}

// Create godoc
// @Summary Create repair request
// @Tags Repairs
// @Accept json
// @Produce json
// @Param payload body map[string]string true "Repair form values keyed by field"
// @Success 201 {object} response.Envelope
// @Router /repairs [post]
func (h *RepairHandler) Create(c *gin.Context) {
	h.save(c, 0)
}

// Update godoc
// @Summary Update repair request
// @Tags Repairs
// @Accept json
// @Produce json
// @Param id path int true "Repair request ID"
// @Param payload body map[string]string true "Repair form values keyed by field"
// @Success 200 {object} response.Envelope
// @Router /repairs/{id} [put]
func (h *RepairHandler) Update(c *gin.Context) {
	id, err := parseIDParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.save(c, id)
}

func (h *RepairHandler) save(c *gin.Context, id int64) {
	var form map[string]string
	if err := c.ShouldBindJSON(&form); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	repair, fieldErrors, err := h.repairs.Save(c.Request.Context(), id, form, actorFromContext(c))
	if err != nil {
		if len(fieldErrors) > 0 {
			response.ErrorWithDetails(c, err, fieldErrors)
			return
		}
		response.Error(c, err)
		return
	}
	if id == 0 {
		response.Created(c, repair)
		return
	}
	response.JSON(c, http.StatusOK, repair)
}

// Delete godoc
// @Summary Delete repair request
// @Tags Repairs
// @Param id path int true "Repair request ID"
// @Success 204
// @Router /repairs/{id} [delete]
func (h *RepairHandler) Delete(c *gin.Context) {
	id, err := parseIDParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := h.repairs.Delete(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// History godoc
// @Summary Get repair request change history
// @Tags Repairs
// @Produce json
// @Param id path int true "Repair request ID"
// @Success 200 {object} response.Envelope
// @Router /repairs/{id}/history [get]
func (h *RepairHandler) History(c *gin.Context) {
	id, err := parseIDParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	entries, err := h.repairs.History(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries)
}

// ValidationErrors godoc
// @Summary Pop stashed validation errors for a repair form
// @Tags Repairs
// @Produce json
// @Param id path int true "Repair request ID, 0 for a new request"
// @Success 200 {object} response.Envelope
// @Router /repairs/{id}/validation-errors [get]
func (h *RepairHandler) ValidationErrors(c *gin.Context) {
	id, err := parseIDParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	messages, err := h.repairs.TakeValidationErrors(c.Request.Context(), id, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, messages)
}
