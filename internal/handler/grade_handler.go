package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/univlab/campus-api/internal/service"
	appErrors "github.com/univlab/campus-api/pkg/errors"
	"github.com/univlab/campus-api/pkg/response"
)

// GradeHandler wires HTTP endpoints to the grade service.
type GradeHandler struct {
	service *service.GradeService
	metrics *service.MetricsService
}

// NewGradeHandler creates a new handler.
func NewGradeHandler(svc *service.GradeService, metrics *service.MetricsService) *GradeHandler {
	return &GradeHandler{service: svc, metrics: metrics}
}

// Submit godoc
// @Summary Submit a grade
// @Description Create or overwrite the grade record for a student, module, semester, year and type
// @Tags Grades
// @Accept json
// @Produce json
// @Param payload body service.SubmitGradeRequest true "Grade payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /professor/grades [post]
func (h *GradeHandler) Submit(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.SubmitGradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid grade payload"))
		return
	}

	grade, err := h.service.Submit(c.Request.Context(), claims, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	h.metrics.RecordGradeSubmitted()
	response.Created(c, grade)
}

// Validate godoc
// @Summary Validate a grade
// @Description Publish a grade record; the transition is one-way
// @Tags Grades
// @Produce json
// @Param id path string true "Grade ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /admin/grades/{id}/validate [patch]
func (h *GradeHandler) Validate(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	grade, err := h.service.Validate(c.Request.Context(), claims.UserID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	h.metrics.RecordGradeValidated()
	response.JSON(c, http.StatusOK, grade, nil)
}

// StudentGrades godoc
// @Summary Published grades for the authenticated student
// @Description List validated grades with semester and yearly averages
// @Tags Grades
// @Produce json
// @Param semester query int false "Semester (1 or 2)"
// @Param academic_year query string false "Academic year, e.g. 2025-2026"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /student/grades [get]
func (h *GradeHandler) StudentGrades(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	report, err := h.service.StudentGrades(c.Request.Context(), claims.UserID, queryInt(c, "semester", 0), c.Query("academic_year"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, report, nil)
}

// ModuleGrades godoc
// @Summary Grades of a module
// @Description List all grade records of a module for a semester and year
// @Tags Grades
// @Produce json
// @Param id path string true "Module ID"
// @Param semester query int true "Semester (1 or 2)"
// @Param academic_year query string true "Academic year"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /professor/modules/{id}/grades [get]
func (h *GradeHandler) ModuleGrades(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	grades, err := h.service.ModuleGrades(c.Request.Context(), claims, c.Param("id"), queryInt(c, "semester", 1), c.Query("academic_year"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, grades, nil)
}
