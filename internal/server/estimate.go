package server

import (
	"net/http"
	"strings"

	"github.com/Mr-IR0k-oo1/Billio-sub000/internal/calculator"
	documentdomain "github.com/Mr-IR0k-oo1/Billio-sub000/internal/document/domain"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type estimateRequest struct {
	ClientID     string            `json:"client_id"`
	IssueDate    string            `json:"issue_date"`
	ExpiryDate   string            `json:"expiry_date"`
	Items        []lineItemRequest `json:"items"`
	Discount     decimal.Decimal   `json:"discount"`
	DiscountType string            `json:"discount_type"`
	TaxRate      decimal.Decimal   `json:"tax_rate"`
	Currency     string            `json:"currency"`
	Notes        string            `json:"notes"`
	Terms        string            `json:"terms"`
}

func (s *Server) CreateEstimate(c *gin.Context) {
	var req estimateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	clientID, err := parseClientID(req.ClientID)
	if err != nil {
		AbortWithError(c, newValidationError("client_id", "invalid_client", "client_id is not a valid id"))
		return
	}
	issueDate, err := parseDate(req.IssueDate)
	if err != nil {
		AbortWithError(c, newValidationError("issue_date", "invalid_date", "issue_date is not a valid date"))
		return
	}
	expiryDate, err := parseDate(req.ExpiryDate)
	if err != nil {
		AbortWithError(c, newValidationError("expiry_date", "invalid_date", "expiry_date is not a valid date"))
		return
	}

	detail, err := s.documentSvc.CreateEstimate(c.Request.Context(), documentdomain.CreateEstimateRequest{
		TenantID:     tenantFromContext(c),
		ClientID:     clientID,
		IssueDate:    issueDate,
		ExpiryDate:   expiryDate,
		Items:        toLineItems(req.Items),
		Discount:     req.Discount,
		DiscountType: calculator.DiscountType(strings.TrimSpace(req.DiscountType)),
		TaxRate:      req.TaxRate,
		Currency:     req.Currency,
		Notes:        req.Notes,
		Terms:        req.Terms,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": detail})
}

func (s *Server) ListEstimates(c *gin.Context) {
	var query struct {
		Status   string `form:"status"`
		ClientID string `form:"client_id"`
		Limit    int    `form:"limit"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	req := documentdomain.ListRequest{
		TenantID: tenantFromContext(c),
		Status:   strings.TrimSpace(query.Status),
		Limit:    query.Limit,
	}
	if raw := strings.TrimSpace(query.ClientID); raw != "" {
		clientID, err := parseClientID(raw)
		if err != nil {
			AbortWithError(c, newValidationError("client_id", "invalid_client", "client_id is not a valid id"))
			return
		}
		req.ClientID = clientID
	}

	estimates, err := s.documentSvc.ListEstimates(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": estimates})
}

func (s *Server) GetEstimate(c *gin.Context) {
	estimateID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	detail, err := s.documentSvc.GetEstimate(c.Request.Context(), tenantFromContext(c), estimateID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": detail})
}

func (s *Server) UpdateEstimate(c *gin.Context) {
	estimateID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req estimateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	clientID, err := parseClientID(req.ClientID)
	if err != nil {
		AbortWithError(c, newValidationError("client_id", "invalid_client", "client_id is not a valid id"))
		return
	}
	issueDate, err := parseDate(req.IssueDate)
	if err != nil {
		AbortWithError(c, newValidationError("issue_date", "invalid_date", "issue_date is not a valid date"))
		return
	}
	expiryDate, err := parseDate(req.ExpiryDate)
	if err != nil {
		AbortWithError(c, newValidationError("expiry_date", "invalid_date", "expiry_date is not a valid date"))
		return
	}

	detail, err := s.documentSvc.UpdateEstimate(c.Request.Context(), documentdomain.UpdateEstimateRequest{
		TenantID:     tenantFromContext(c),
		EstimateID:   estimateID,
		ClientID:     clientID,
		IssueDate:    issueDate,
		ExpiryDate:   expiryDate,
		Items:        toLineItems(req.Items),
		Discount:     req.Discount,
		DiscountType: calculator.DiscountType(strings.TrimSpace(req.DiscountType)),
		TaxRate:      req.TaxRate,
		Currency:     req.Currency,
		Notes:        req.Notes,
		Terms:        req.Terms,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": detail})
}

func (s *Server) DeleteEstimate(c *gin.Context) {
	estimateID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if err := s.documentSvc.DeleteEstimate(c.Request.Context(), tenantFromContext(c), estimateID); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (s *Server) SendEstimate(c *gin.Context) {
	estimateID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	estimate, err := s.documentSvc.SendEstimate(c.Request.Context(), tenantFromContext(c), estimateID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": estimate})
}

func (s *Server) AcceptEstimate(c *gin.Context) {
	estimateID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	estimate, err := s.documentSvc.AcceptEstimate(c.Request.Context(), tenantFromContext(c), estimateID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": estimate})
}

func (s *Server) DeclineEstimate(c *gin.Context) {
	estimateID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	estimate, err := s.documentSvc.DeclineEstimate(c.Request.Context(), tenantFromContext(c), estimateID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": estimate})
}

func (s *Server) ConvertEstimate(c *gin.Context) {
	estimateID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	detail, err := s.conversion.Convert(c.Request.Context(), tenantFromContext(c), estimateID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": detail})
}
