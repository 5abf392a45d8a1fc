package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tomengsanchez/asset-manager-api/internal/service"
	appErrors "github.com/tomengsanchez/asset-manager-api/pkg/errors"
	"github.com/tomengsanchez/asset-manager-api/pkg/response"
)

// NoteHandler exposes note endpoints shared by assets and repair requests.
type NoteHandler struct {
	notes *service.NoteService
}

// NewNoteHandler constructs NoteHandler.
func NewNoteHandler(notes *service.NoteService) *NoteHandler {
	return &NoteHandler{notes: notes}
}

// Create godoc
// @Summary Append a note to a record
// @Tags Notes
// @Accept multipart/form-data
// @Produce json
// @Param id path int true "Record ID"
// @Param content formData string false "Note text"
// @Param files formData file false "Optional attachments"
// @Success 201 {object} response.Envelope
// @Router /records/{id}/notes [post]
func (h *NoteHandler) Create(c *gin.Context) {
	id, err := parseIDParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	content := c.PostForm("content")
	var uploads []service.NoteUpload
	if form, err := c.MultipartForm(); err == nil && form != nil {
		for _, header := range form.File["files"] {
			file, err := header.Open()
			if err != nil {
				response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "failed to read uploaded file"))
				return
			}
			defer file.Close()
			uploads = append(uploads, service.NoteUpload{
				FileName: header.Filename,
				MimeType: header.Header.Get("Content-Type"),
				Size:     header.Size,
				Reader:   file,
			})
		}
	}

	note, err := h.notes.Append(c.Request.Context(), id, content, actorFromContext(c), uploads)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, note)
}

// List godoc
// @Summary List notes on a record
// @Tags Notes
// @Produce json
// @Param id path int true "Record ID"
// @Success 200 {object} response.Envelope
// @Router /records/{id}/notes [get]
func (h *NoteHandler) List(c *gin.Context) {
	id, err := parseIDParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	notes, err := h.notes.ListByRecord(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, notes)
}
