package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/univlab/campus-api/internal/models"
	"github.com/univlab/campus-api/internal/service"
	appErrors "github.com/univlab/campus-api/pkg/errors"
	"github.com/univlab/campus-api/pkg/response"
)

// AnnouncementHandler wires HTTP endpoints to the announcement service.
type AnnouncementHandler struct {
	service *service.AnnouncementService
	metrics *service.MetricsService
}

// NewAnnouncementHandler creates a new handler.
func NewAnnouncementHandler(svc *service.AnnouncementService, metrics *service.MetricsService) *AnnouncementHandler {
	return &AnnouncementHandler{service: svc, metrics: metrics}
}

// Create godoc
// @Summary Publish an announcement
// @Description Store an announcement and notify every enrolled student
// @Tags Announcements
// @Accept json
// @Produce json
// @Param payload body service.CreateAnnouncementRequest true "Announcement payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /professor/announcements [post]
func (h *AnnouncementHandler) Create(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.CreateAnnouncementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid announcement payload"))
		return
	}

	result, err := h.service.Create(c.Request.Context(), claims, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	h.metrics.RecordDispatched(result.Notified)
	response.JSON(c, http.StatusOK, result, nil)
}

// List godoc
// @Summary List announcements of a module
// @Tags Announcements
// @Produce json
// @Param module_id query string true "Module ID"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /announcements [get]
func (h *AnnouncementHandler) List(c *gin.Context) {
	page, pageSize := pagination(c)
	filter := models.AnnouncementFilter{
		ModuleID: c.Query("module_id"),
		Page:     page,
		PageSize: pageSize,
	}

	announcements, total, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, announcements, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total})
}
