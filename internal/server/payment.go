package server

import (
	"net/http"
	"strings"
	"time"

	paymentdomain "github.com/Mr-IR0k-oo1/Billio-sub000/internal/payment/domain"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type recordPaymentRequest struct {
	Amount          decimal.Decimal `json:"amount"`
	PaymentDate     string          `json:"payment_date"`
	PaymentMethod   string          `json:"payment_method"`
	ReferenceNumber string          `json:"reference_number"`
	Notes           string          `json:"notes"`
}

func (s *Server) RecordPayment(c *gin.Context) {
	invoiceID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req recordPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	var paymentDate time.Time
	if raw := strings.TrimSpace(req.PaymentDate); raw != "" {
		parsed, err := parseDate(raw)
		if err != nil {
			AbortWithError(c, newValidationError("payment_date", "invalid_date", "payment_date is not a valid date"))
			return
		}
		paymentDate = parsed
	}

	result, err := s.paymentSvc.Record(c.Request.Context(), paymentdomain.RecordRequest{
		TenantID:        tenantFromContext(c),
		InvoiceID:       invoiceID,
		Amount:          req.Amount,
		PaymentDate:     paymentDate,
		PaymentMethod:   strings.TrimSpace(req.PaymentMethod),
		ReferenceNumber: strings.TrimSpace(req.ReferenceNumber),
		Notes:           req.Notes,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": result})
}

func (s *Server) ListPayments(c *gin.Context) {
	invoiceID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	transactions, err := s.paymentSvc.List(c.Request.Context(), tenantFromContext(c), invoiceID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": transactions})
}

func (s *Server) DeletePayment(c *gin.Context) {
	transactionID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	result, err := s.paymentSvc.Delete(c.Request.Context(), tenantFromContext(c), transactionID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": result})
}
