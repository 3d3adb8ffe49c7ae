package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/univlab/campus-api/internal/service"
	appErrors "github.com/univlab/campus-api/pkg/errors"
	"github.com/univlab/campus-api/pkg/response"
)

// AssignmentHandler wires HTTP endpoints to the assignment service.
type AssignmentHandler struct {
	service *service.AssignmentService
}

// NewAssignmentHandler creates a new handler.
func NewAssignmentHandler(svc *service.AssignmentService) *AssignmentHandler {
	return &AssignmentHandler{service: svc}
}

// Create godoc
// @Summary Publish an assignment
// @Description Create homework for a module and notify enrolled students
// @Tags Assignments
// @Accept json
// @Produce json
// @Param payload body service.CreateAssignmentRequest true "Assignment payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /professor/assignments [post]
func (h *AssignmentHandler) Create(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.CreateAssignmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid assignment payload"))
		return
	}

	assignment, err := h.service.Create(c.Request.Context(), claims, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, assignment)
}

// ListByModule godoc
// @Summary List assignments of a module
// @Tags Assignments
// @Produce json
// @Param id path string true "Module ID"
// @Success 200 {object} response.Envelope
// @Router /modules/{id}/assignments [get]
func (h *AssignmentHandler) ListByModule(c *gin.Context) {
	assignments, err := h.service.ListByModule(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, assignments, nil)
}

// Submit godoc
// @Summary Submit an answer
// @Description Upload a file for an assignment; re-upload replaces the prior one
// @Tags Assignments
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Assignment ID"
// @Param file formData file true "Answer file"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /student/assignments/{id}/submit [post]
func (h *AssignmentHandler) Submit(c *gin.Context) {
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

	submission, err := h.service.Submit(c.Request.Context(), claims, service.SubmitAssignmentRequest{
		AssignmentID: c.Param("id"),
		FileName:     fileHeader.Filename,
		MIMEType:     fileHeader.Header.Get("Content-Type"),
		SizeBytes:    fileHeader.Size,
		Content:      file,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, submission)
}

// ListSubmissions godoc
// @Summary List submissions of an assignment
// @Tags Assignments
// @Produce json
// @Param id path string true "Assignment ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /professor/assignments/{id}/submissions [get]
func (h *AssignmentHandler) ListSubmissions(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	submissions, err := h.service.ListSubmissions(c.Request.Context(), claims, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, submissions, nil)
}
