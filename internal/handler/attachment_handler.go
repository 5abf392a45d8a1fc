package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tomengsanchez/asset-manager-api/internal/service"
	appErrors "github.com/tomengsanchez/asset-manager-api/pkg/errors"
	"github.com/tomengsanchez/asset-manager-api/pkg/response"
)

// AttachmentHandler exposes attachment download endpoints.
type AttachmentHandler struct {
	attachments *service.AttachmentService
}

// NewAttachmentHandler constructs AttachmentHandler.
func NewAttachmentHandler(attachments *service.AttachmentService) *AttachmentHandler {
	return &AttachmentHandler{attachments: attachments}
}

// SignedURL godoc
// @Summary Get a signed download URL for an attachment
// @Tags Attachments
// @Produce json
// @Param id path int true "Attachment ID"
// @Success 200 {object} response.Envelope
// @Router /attachments/{id}/url [get]
func (h *AttachmentHandler) SignedURL(c *gin.Context) {
	id, err := parseIDParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	url, expiresAt, err := h.attachments.SignedURL(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"url": url, "expires_at": expiresAt})
}

// Download godoc
// @Summary Download an attachment
// @Description Streams the file behind a signed, expiring token
// @Tags Attachments
// @Produce octet-stream
// @Param token path string true "Signed download token"
// @Success 200 {file} file
// @Failure 401 {object} response.Envelope
// @Router /attachments/download/{token} [get]
func (h *AttachmentHandler) Download(c *gin.Context) {
	att, file, err := h.attachments.Resolve(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to stat attachment file"))
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+att.FileName+`"`)
	c.DataFromReader(http.StatusOK, info.Size(), att.MimeType, file, nil)
}
