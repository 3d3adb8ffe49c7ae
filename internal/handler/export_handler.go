package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/univlab/campus-api/internal/service"
	appErrors "github.com/univlab/campus-api/pkg/errors"
	"github.com/univlab/campus-api/pkg/response"
)

// ExportHandler wires HTTP endpoints to the export service.
type ExportHandler struct {
	service *service.ExportService
}

// NewExportHandler creates a new handler.
func NewExportHandler(svc *service.ExportService) *ExportHandler {
	return &ExportHandler{service: svc}
}

// ModuleGradeSheet godoc
// @Summary Export a module grade sheet as CSV
// @Tags Exports
// @Produce text/csv
// @Param id path string true "Module ID"
// @Param semester query int true "Semester"
// @Param academic_year query string true "Academic year"
// @Success 200 {file} binary
// @Failure 403 {object} response.Envelope
// @Router /professor/modules/{id}/grades/export [get]
func (h *ExportHandler) ModuleGradeSheet(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	file, err := h.service.ModuleGradeSheetCSV(c.Request.Context(), claims, c.Param("id"), queryInt(c, "semester", 1), c.Query("academic_year"))
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+file.FileName+`"`)
	c.Data(200, file.ContentType, file.Data)
}

// StudentTranscript godoc
// @Summary Export a student transcript as PDF
// @Tags Exports
// @Produce application/pdf
// @Param id path string true "Student ID"
// @Success 200 {file} binary
// @Failure 404 {object} response.Envelope
// @Router /admin/students/{id}/transcript [get]
func (h *ExportHandler) StudentTranscript(c *gin.Context) {
	file, err := h.service.StudentTranscriptPDF(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+file.FileName+`"`)
	c.Data(200, file.ContentType, file.Data)
}
