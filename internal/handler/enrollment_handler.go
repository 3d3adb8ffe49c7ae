package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/univlab/campus-api/internal/models"
	"github.com/univlab/campus-api/internal/service"
	appErrors "github.com/univlab/campus-api/pkg/errors"
	"github.com/univlab/campus-api/pkg/response"
)

// EnrollmentHandler wires HTTP endpoints to the enrollment service.
type EnrollmentHandler struct {
	service *service.EnrollmentService
}

// NewEnrollmentHandler creates a new handler.
func NewEnrollmentHandler(svc *service.EnrollmentService) *EnrollmentHandler {
	return &EnrollmentHandler{service: svc}
}

// Enroll godoc
// @Summary Enroll a student in a module
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param payload body service.EnrollRequest true "Enrollment payload"
// @Success 201 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /admin/enrollments [post]
func (h *EnrollmentHandler) Enroll(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.EnrollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid enrollment payload"))
		return
	}

	enrollment, err := h.service.Enroll(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, enrollment)
}

// List godoc
// @Summary List enrollments
// @Tags Enrollments
// @Produce json
// @Param student_id query string false "Student ID"
// @Param module_id query string false "Module ID"
// @Param academic_year query string false "Academic year"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /admin/enrollments [get]
func (h *EnrollmentHandler) List(c *gin.Context) {
	page, pageSize := pagination(c)
	filter := models.EnrollmentFilter{
		StudentID:    c.Query("student_id"),
		ModuleID:     c.Query("module_id"),
		AcademicYear: c.Query("academic_year"),
		Status:       models.EnrollmentStatus(c.Query("status")),
		Page:         page,
		PageSize:     pageSize,
	}

	enrollments, total, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollments, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total})
}

// Withdraw godoc
// @Summary Withdraw an enrollment
// @Description Mark an enrollment as withdrawn; grade history is kept
// @Tags Enrollments
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/enrollments/{id} [delete]
func (h *EnrollmentHandler) Withdraw(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if err := h.service.Withdraw(c.Request.Context(), claims.UserID, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
