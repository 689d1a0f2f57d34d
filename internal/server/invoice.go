package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/Mr-IR0k-oo1/Billio-sub000/internal/calculator"
	documentdomain "github.com/Mr-IR0k-oo1/Billio-sub000/internal/document/domain"
	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type lineItemRequest struct {
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

type invoiceRequest struct {
	ClientID     string            `json:"client_id"`
	IssueDate    string            `json:"issue_date"`
	DueDate      string            `json:"due_date"`
	Items        []lineItemRequest `json:"items"`
	Discount     decimal.Decimal   `json:"discount"`
	DiscountType string            `json:"discount_type"`
	TaxRate      decimal.Decimal   `json:"tax_rate"`
	Currency     string            `json:"currency"`
	Notes        string            `json:"notes"`
	Terms        string            `json:"terms"`
}

func toLineItems(items []lineItemRequest) []calculator.LineItem {
	lines := make([]calculator.LineItem, 0, len(items))
	for _, item := range items {
		lines = append(lines, calculator.LineItem{
			Description: strings.TrimSpace(item.Description),
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
		})
	}
	return lines
}

func parseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if t, err := time.Parse("2006-01-02", value); err == nil {
		return t.UTC(), nil
	}
	return time.Parse(time.RFC3339, value)
}

func parseClientID(raw string) (snowflake.ID, error) {
	return snowflake.ParseString(strings.TrimSpace(raw))
}

func (s *Server) CreateInvoice(c *gin.Context) {
	var req invoiceRequest
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
	dueDate, err := parseDate(req.DueDate)
	if err != nil {
		AbortWithError(c, newValidationError("due_date", "invalid_date", "due_date is not a valid date"))
		return
	}

	detail, err := s.documentSvc.CreateInvoice(c.Request.Context(), documentdomain.CreateInvoiceRequest{
		TenantID:     tenantFromContext(c),
		ClientID:     clientID,
		IssueDate:    issueDate,
		DueDate:      dueDate,
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

func (s *Server) ListInvoices(c *gin.Context) {
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

	invoices, err := s.documentSvc.ListInvoices(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": invoices})
}

func (s *Server) GetInvoice(c *gin.Context) {
	invoiceID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	detail, err := s.documentSvc.GetInvoice(c.Request.Context(), tenantFromContext(c), invoiceID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": detail})
}

func (s *Server) UpdateInvoice(c *gin.Context) {
	invoiceID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req invoiceRequest
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
	dueDate, err := parseDate(req.DueDate)
	if err != nil {
		AbortWithError(c, newValidationError("due_date", "invalid_date", "due_date is not a valid date"))
		return
	}

	detail, err := s.documentSvc.UpdateInvoice(c.Request.Context(), documentdomain.UpdateInvoiceRequest{
		TenantID:     tenantFromContext(c),
		InvoiceID:    invoiceID,
		ClientID:     clientID,
		IssueDate:    issueDate,
		DueDate:      dueDate,
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

func (s *Server) DeleteInvoice(c *gin.Context) {
	invoiceID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if err := s.documentSvc.DeleteInvoice(c.Request.Context(), tenantFromContext(c), invoiceID); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (s *Server) SendInvoice(c *gin.Context) {
	invoiceID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	invoice, err := s.documentSvc.SendInvoice(c.Request.Context(), tenantFromContext(c), invoiceID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": invoice})
}

func (s *Server) CancelInvoice(c *gin.Context) {
	invoiceID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	invoice, err := s.documentSvc.CancelInvoice(c.Request.Context(), tenantFromContext(c), invoiceID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": invoice})
}
