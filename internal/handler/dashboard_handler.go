package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/univlab/campus-api/internal/service"
	appErrors "github.com/univlab/campus-api/pkg/errors"
	"github.com/univlab/campus-api/pkg/response"
)

// DashboardHandler wires HTTP endpoints to the dashboard service.
type DashboardHandler struct {
	service *service.DashboardService
}

// NewDashboardHandler creates a new handler.
func NewDashboardHandler(svc *service.DashboardService) *DashboardHandler {
	return &DashboardHandler{service: svc}
}

// Student godoc
// @Summary Student overview
// @Description Published grades, averages, upcoming deadlines and unread count
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /student/dashboard [get]
func (h *DashboardHandler) Student(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	dashboard, err := h.service.Student(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dashboard, nil)
}

// Professor godoc
// @Summary Professor overview
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /professor/dashboard [get]
func (h *DashboardHandler) Professor(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	dashboard, err := h.service.Professor(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dashboard, nil)
}

// Admin godoc
// @Summary Platform counters
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admin/dashboard [get]
func (h *DashboardHandler) Admin(c *gin.Context) {
	dashboard, err := h.service.Admin(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dashboard, nil)
}
