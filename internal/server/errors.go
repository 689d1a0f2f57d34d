package server

import (
	"errors"
	"net/http"

	"github.com/Mr-IR0k-oo1/Billio-sub000/internal/calculator"
	conversiondomain "github.com/Mr-IR0k-oo1/Billio-sub000/internal/conversion/domain"
	documentdomain "github.com/Mr-IR0k-oo1/Billio-sub000/internal/document/domain"
	numberingdomain "github.com/Mr-IR0k-oo1/Billio-sub000/internal/numbering/domain"
	paymentdomain "github.com/Mr-IR0k-oo1/Billio-sub000/internal/payment/domain"
	recurringdomain "github.com/Mr-IR0k-oo1/Billio-sub000/internal/recurring/domain"
	tenantdomain "github.com/Mr-IR0k-oo1/Billio-sub000/internal/tenant/domain"
	"github.com/gin-gonic/gin"
)

type apiError struct {
	Status  int            `json:"-"`
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func (e *apiError) Error() string { return e.Code + ": " + e.Message }

func invalidRequestError() *apiError {
	return &apiError{
		Status:  http.StatusBadRequest,
		Code:    "invalid_request",
		Message: "request body could not be parsed",
	}
}

func newValidationError(field, code, message string) *apiError {
	return &apiError{
		Status:  http.StatusBadRequest,
		Code:    code,
		Message: message,
		Details: map[string]any{"field": field},
	}
}

// AbortWithError translates domain errors into HTTP responses. Unknown
// errors are logged by the middleware and surface as a 500 without
// internals.
func AbortWithError(c *gin.Context, err error) {
	var api *apiError
	if errors.As(err, &api) {
		c.AbortWithStatusJSON(api.Status, gin.H{"error": api})
		return
	}

	var overpayment *paymentdomain.OverpaymentError
	if errors.As(err, &overpayment) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": apiError{
			Code:    "overpayment_rejected",
			Message: overpayment.Error(),
			Details: map[string]any{
				"total":        overpayment.Total.StringFixed(2),
				"already_paid": overpayment.AlreadyPaid.StringFixed(2),
				"max_payment":  overpayment.MaxPayment.StringFixed(2),
			},
		}})
		return
	}

	status := http.StatusInternalServerError
	code := "internal_error"
	switch {
	case errors.Is(err, documentdomain.ErrInvoiceNotFound),
		errors.Is(err, documentdomain.ErrEstimateNotFound),
		errors.Is(err, recurringdomain.ErrProfileNotFound),
		errors.Is(err, paymentdomain.ErrTransactionNotFound):
		status = http.StatusNotFound
		code = err.Error()
	case errors.Is(err, paymentdomain.ErrForbidden):
		status = http.StatusForbidden
		code = "forbidden"
	case errors.Is(err, documentdomain.ErrDocumentLocked),
		errors.Is(err, documentdomain.ErrDocumentHasPayments),
		errors.Is(err, documentdomain.ErrInvalidTransition),
		errors.Is(err, conversiondomain.ErrAlreadyConverted),
		errors.Is(err, recurringdomain.ErrProfileNotActive),
		errors.Is(err, recurringdomain.ErrProfileNotDue):
		status = http.StatusConflict
		code = err.Error()
	case errors.Is(err, numberingdomain.ErrAllocationConflict),
		errors.Is(err, paymentdomain.ErrConcurrentUpdate):
		status = http.StatusServiceUnavailable
		code = err.Error()
	case isValidationError(err):
		status = http.StatusBadRequest
		code = err.Error()
	}

	message := "request failed"
	if status != http.StatusInternalServerError {
		message = err.Error()
	}
	c.AbortWithStatusJSON(status, gin.H{"error": apiError{
		Code:    code,
		Message: message,
	}})
}

func isValidationError(err error) bool {
	for _, sentinel := range []error{
		documentdomain.ErrInvalidTenant,
		documentdomain.ErrInvalidClient,
		documentdomain.ErrInvalidDates,
		paymentdomain.ErrInvalidAmount,
		recurringdomain.ErrInvalidInterval,
		recurringdomain.ErrInvalidSchedule,
		tenantdomain.ErrInvalidPrefix,
		tenantdomain.ErrInvalidStart,
		tenantdomain.ErrInvalidCurrency,
		calculator.ErrNoItems,
		calculator.ErrInvalidDescription,
		calculator.ErrInvalidQuantity,
		calculator.ErrInvalidUnitPrice,
		calculator.ErrInvalidDiscount,
		calculator.ErrInvalidTaxRate,
		calculator.ErrDiscountExceedsSubtotal,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}
