package handler

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/univlab/campus-api/internal/service"
	appErrors "github.com/univlab/campus-api/pkg/errors"
	"github.com/univlab/campus-api/pkg/response"
)

// MaterialHandler wires HTTP endpoints to the material service.
type MaterialHandler struct {
	service *service.MaterialService
}

// NewMaterialHandler creates a new handler.
func NewMaterialHandler(svc *service.MaterialService) *MaterialHandler {
	return &MaterialHandler{service: svc}
}

// Upload godoc
// @Summary Upload course material
// @Description Store a document for a module and notify enrolled students
// @Tags Materials
// @Accept multipart/form-data
// @Produce json
// @Param module_id formData string true "Module ID"
// @Param title formData string true "Title"
// @Param file formData file true "Document"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /professor/materials [post]
func (h *MaterialHandler) Upload(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "file is required"))
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read upload"))
		return
	}
	defer file.Close()

	material, err := h.service.Upload(c.Request.Context(), claims, service.UploadMaterialRequest{
		ModuleID:  c.PostForm("module_id"),
		Title:     c.PostForm("title"),
		FileName:  fileHeader.Filename,
		MIMEType:  fileHeader.Header.Get("Content-Type"),
		SizeBytes: fileHeader.Size,
		Content:   file,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, material)
}

// ListByModule godoc
// @Summary List materials of a module
// @Tags Materials
// @Produce json
// @Param id path string true "Module ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /modules/{id}/materials [get]
func (h *MaterialHandler) ListByModule(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	materials, err := h.service.ListByModule(c.Request.Context(), claims, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, materials, nil)
}

// DownloadLink godoc
// @Summary Get a signed download link
// @Tags Materials
// @Produce json
// @Param id path string true "Material ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /materials/{id}/download [get]
func (h *MaterialHandler) DownloadLink(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	link, err := h.service.DownloadLink(c.Request.Context(), claims, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, link, nil)
}

// ServeSigned godoc
// @Summary Download a file through a signed link
// @Tags Materials
// @Produce octet-stream
// @Param token path string true "Signed token"
// @Success 200 {file} binary
// @Failure 401 {object} response.Envelope
// @Router /files/{token} [get]
func (h *MaterialHandler) ServeSigned(c *gin.Context) {
	material, file, err := h.service.OpenSigned(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close()

	c.Header("Content-Disposition", `attachment; filename="`+material.FileName+`"`)
	c.Header("Content-Type", material.MIMEType)
	if _, err := io.Copy(c.Writer, file); err != nil {
		c.Abort()
	}
}

// Delete godoc
// @Summary Delete course material
// @Tags Materials
// @Produce json
// @Param id path string true "Material ID"
// @Success 204 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /professor/materials/{id} [delete]
func (h *MaterialHandler) Delete(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if err := h.service.Delete(c.Request.Context(), claims, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
