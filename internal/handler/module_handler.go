package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/univlab/campus-api/internal/models"
	"github.com/univlab/campus-api/internal/service"
	appErrors "github.com/univlab/campus-api/pkg/errors"
	"github.com/univlab/campus-api/pkg/response"
)

// ModuleHandler wires HTTP endpoints to the module service.
type ModuleHandler struct {
	service *service.ModuleService
}

// NewModuleHandler creates a new handler.
func NewModuleHandler(svc *service.ModuleService) *ModuleHandler {
	return &ModuleHandler{service: svc}
}

// Create godoc
// @Summary Register a module
// @Tags Modules
// @Accept json
// @Produce json
// @Param payload body service.CreateModuleRequest true "Module payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /admin/modules [post]
func (h *ModuleHandler) Create(c *gin.Context) {
	var req service.CreateModuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid module payload"))
		return
	}

	module, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, module)
}

// Get godoc
// @Summary Get a module
// @Tags Modules
// @Produce json
// @Param id path string true "Module ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /modules/{id} [get]
func (h *ModuleHandler) Get(c *gin.Context) {
	module, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, module, nil)
}

// List godoc
// @Summary List modules
// @Tags Modules
// @Produce json
// @Param search query string false "Search by code or name"
// @Param level query string false "Level"
// @Param semester query int false "Semester"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /modules [get]
func (h *ModuleHandler) List(c *gin.Context) {
	page, pageSize := pagination(c)
	filter := models.ModuleFilter{
		Search:      c.Query("search"),
		Level:       c.Query("level"),
		Semester:    queryInt(c, "semester", 0),
		ProfessorID: c.Query("professor_id"),
		Page:        page,
		PageSize:    pageSize,
	}

	modules, total, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, modules, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total})
}

// Update godoc
// @Summary Update a module
// @Tags Modules
// @Accept json
// @Produce json
// @Param id path string true "Module ID"
// @Param payload body service.UpdateModuleRequest true "Module payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/modules/{id} [put]
func (h *ModuleHandler) Update(c *gin.Context) {
	var req service.UpdateModuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid module payload"))
		return
	}

	module, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, module, nil)
}

// Delete godoc
// @Summary Delete a module
// @Tags Modules
// @Produce json
// @Param id path string true "Module ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/modules/{id} [delete]
func (h *ModuleHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
