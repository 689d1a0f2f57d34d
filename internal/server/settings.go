package server

import (
	"net/http"

	tenantdomain "github.com/Mr-IR0k-oo1/Billio-sub000/internal/tenant/domain"
	"github.com/gin-gonic/gin"
)

type updateSettingsRequest struct {
	InvoicePrefix          *string `json:"invoice_prefix"`
	InvoiceStartingNumber  *int64  `json:"invoice_starting_number"`
	EstimatePrefix         *string `json:"estimate_prefix"`
	EstimateStartingNumber *int64  `json:"estimate_starting_number"`
	Currency               *string `json:"currency"`
}

func (s *Server) GetSettings(c *gin.Context) {
	settings, err := s.tenantSvc.Get(c.Request.Context(), tenantFromContext(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": settings})
}

func (s *Server) UpdateSettings(c *gin.Context) {
	var req updateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	settings, err := s.tenantSvc.Update(c.Request.Context(), tenantdomain.UpdateRequest{
		TenantID:               tenantFromContext(c),
		InvoicePrefix:          req.InvoicePrefix,
		InvoiceStartingNumber:  req.InvoiceStartingNumber,
		EstimatePrefix:         req.EstimatePrefix,
		EstimateStartingNumber: req.EstimateStartingNumber,
		Currency:               req.Currency,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": settings})
}
