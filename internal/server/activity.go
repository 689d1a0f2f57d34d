package server

import (
	"net/http"
	"strings"

	auditdomain "github.com/Mr-IR0k-oo1/Billio-sub000/internal/audit/domain"
	"github.com/gin-gonic/gin"
)

func (s *Server) ListActivity(c *gin.Context) {
	var query struct {
		Action     string `form:"action"`
		EntityType string `form:"entity_type"`
		EntityID   string `form:"entity_id"`
		Limit      int    `form:"limit"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	entries, err := s.auditSvc.List(c.Request.Context(), auditdomain.ListFilter{
		TenantID:   tenantFromContext(c),
		Action:     strings.TrimSpace(query.Action),
		EntityType: strings.TrimSpace(query.EntityType),
		EntityID:   strings.TrimSpace(query.EntityID),
		Limit:      query.Limit,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": entries})
}
