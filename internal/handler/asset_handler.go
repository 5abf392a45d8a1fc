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

// AssetHandler exposes asset endpoints.
type AssetHandler struct {
	assets *service.AssetService
}

// NewAssetHandler constructs AssetHandler.
func NewAssetHandler(assets *service.AssetService) *AssetHandler {
	return &AssetHandler{assets: assets}
}

// List godoc
// @Summary List assets
// @Tags Assets
// @Produce json
// @Param search query string false "Free-text search"
// @Param category query int false "Filter by category term ID"
// @Param brand query string false "Filter by brand"
// @Param status query string false "Filter by status"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /assets [get]
func (h *AssetHandler) List(c *gin.Context) {
	var filter models.AssetFilter
	filter.Search = strings.TrimSpace(c.Query("search"))
	if category, err := strconv.ParseInt(c.Query("category"), 10, 64); err == nil {
		filter.Category = category
	}
	filter.Brand = c.Query("brand")
	filter.Status = c.Query("status")
	filter.IssuedTo = c.Query("issued_to")
	filter.Relation = c.Query("relation")
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	assets, pagination, err := h.assets.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Paginated(c, http.StatusOK, assets, pagination)
}

// Get godoc
// @Summary Get asset detail
// @Tags Assets
// @Produce json
// @Param id path int true "Asset ID"
// @Success 200 {object} response.Envelope
// @Router /assets/{id} [get]
func (h *AssetHandler) Get(c *gin.Context) {
	id, err := parseIDParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	asset, err := h.assets.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, asset)
}

// Create godoc
// @Summary Create asset
// @Tags Assets
// @Accept json
// @Produce json
// @Param payload body map[string]string true "Asset form values keyed by field"
// @Success 201 {object} response.Envelope
// @Router /assets [post]
func (h *AssetHandler) Create(c *gin.Context) {
	h.save(c, 0)
}

// Update godoc
// @Summary Update asset
// @Tags Assets
// @Accept json
// @Produce json
// @Param id path int true "Asset ID"
// @Param payload body map[string]string true "Asset form values keyed by field"
// @Success 200 {object} response.Envelope
// @Router /assets/{id} [put]
func (h *AssetHandler) Update(c *gin.Context) {
	id, err := parseIDParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.save(c, id)
}

// save runs the shared create/update flow. The payload is the raw
// form: field key to submitted value, absent keys reading as empty.
func (h *AssetHandler) save(c *gin.Context, id int64) {
	var form map[string]string
	if err := c.ShouldBindJSON(&form); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	asset, fieldErrors, err := h.assets.Save(c.Request.Context(), id, form, actorFromContext(c))
	if err != nil {
		if len(fieldErrors) > 0 {
			response.ErrorWithDetails(c, err, fieldErrors)
			return
		}
		response.Error(c, err)
		return
	}
	if id == 0 {
		response.Created(c, asset)
		return
	}
	response.JSON(c, http.StatusOK, asset)
}

// Delete godoc
// @Summary Delete asset
// @Tags Assets
// @Param id path int true "Asset ID"
// @Success 204
// @Router /assets/{id} [delete]
func (h *AssetHandler) Delete(c *gin.Context) {
	id, err := parseIDParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := h.assets.Delete(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// History godoc
// @Summary Get asset change history
// @Tags Assets
// @Produce json
// @Param id path int true "Asset ID"
// @Success 200 {object} response.Envelope
// @Router /assets/{id}/history [get]
func (h *AssetHandler) History(c *gin.Context) {
	id, err := parseIDParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	entries, err := h.assets.History(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries)
}

// ValidationErrors godoc
// @Summary Pop stashed validation errors for an asset form
// @Tags Assets
// @Produce json
// @Param id path int true "Asset ID, 0 for a new asset"
// @Success 200 {object} response.Envelope
// @Router /assets/{id}/validation-errors [get]
func (h *AssetHandler) ValidationErrors(c *gin.Context) {
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
	messages, err := h.assets.TakeValidationErrors(c.Request.Context(), id, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, messages)
}

// UploadImage godoc
// @Summary Attach an image to an asset
// @Tags Assets
// @Accept multipart/form-data
// @Produce json
// @Param id path int true "Asset ID"
// @Param file formData file true "Image file"
// @Success 201 {object} response.Envelope
// @Router /assets/{id}/image [post]
func (h *AssetHandler) UploadImage(c *gin.Context) {
	id, err := parseIDParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	file, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "image file is required"))
		return
	}
	src, err := file.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read upload"))
		return
	}
	defer src.Close()

	mimeType := file.Header.Get("Content-Type")
	if !strings.HasPrefix(mimeType, "image/") {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "only image uploads are accepted"))
		return
	}

	att, err := h.assets.SetImage(c.Request.Context(), id, file.Filename, mimeType, file.Size, src)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, att)
}

// RemoveImage godoc
// @Summary Remove an asset's image
// @Tags Assets
// @Param id path int true "Asset ID"
// @Success 204
// @Router /assets/{id}/image [delete]
func (h *AssetHandler) RemoveImage(c *gin.Context) {
	id, err := parseIDParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := h.assets.RemoveImage(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

func parseIDParam(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 0 {
		return 0, appErrors.Clone(appErrors.ErrValidation, "invalid id parameter")
	}
	return id, nil
}
