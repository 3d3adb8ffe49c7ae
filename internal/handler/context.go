package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/univlab/campus-api/internal/middleware"
	"github.com/univlab/campus-api/internal/models"
)

// currentUser extracts the authenticated claims set by the JWT middleware.
func currentUser(c *gin.Context) (*models.JWTClaims, bool) {
	value, ok := c.Get(middleware.ContextUserKey)
	if !ok {
		return nil, false
	}
	claims, ok := value.(*models.JWTClaims)
	return claims, ok
}

func queryInt(c *gin.Context, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

func pagination(c *gin.Context) (page, pageSize int) {
	page = queryInt(c, "page", 1)
	pageSize = queryInt(c, "page_size", 20)
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return page, pageSize
}
