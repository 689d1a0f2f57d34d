package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/Mr-IR0k-oo1/Billio-sub000/internal/calculator"
	recurringdomain "github.com/Mr-IR0k-oo1/Billio-sub000/internal/recurring/domain"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type createRecurringProfileRequest struct {
	ClientID          string            `json:"client_id"`
	Interval          string            `json:"interval"`
	IntervalCount     int               `json:"interval_count"`
	StartDate         string            `json:"start_date"`
	EndDate           string            `json:"end_date"`
	SendAutomatically bool              `json:"send_automatically"`
	Items             []lineItemRequest `json:"items"`
	Discount          decimal.Decimal   `json:"discount"`
	DiscountType      string            `json:"discount_type"`
	TaxRate           decimal.Decimal   `json:"tax_rate"`
	Currency          string            `json:"currency"`
}

func (s *Server) CreateRecurringProfile(c *gin.Context) {
	var req createRecurringProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	clientID, err := parseClientID(req.ClientID)
	if err != nil {
		AbortWithError(c, newValidationError("client_id", "invalid_client", "client_id is not a valid id"))
		return
	}
	startDate, err := parseDate(req.StartDate)
	if err != nil {
		AbortWithError(c, newValidationError("start_date", "invalid_date", "start_date is not a valid date"))
		return
	}
	var endDate *time.Time
	if raw := strings.TrimSpace(req.EndDate); raw != "" {
		parsed, err := parseDate(raw)
		if err != nil {
			AbortWithError(c, newValidationError("end_date", "invalid_date", "end_date is not a valid date"))
			return
		}
		endDate = &parsed
	}

	detail, err := s.recurringSvc.CreateProfile(c.Request.Context(), recurringdomain.CreateProfileRequest{
		TenantID:          tenantFromContext(c),
		ClientID:          clientID,
		Interval:          recurringdomain.Interval(strings.TrimSpace(req.Interval)),
		IntervalCount:     req.IntervalCount,
		StartDate:         startDate,
		EndDate:           endDate,
		SendAutomatically: req.SendAutomatically,
		Items:             toLineItems(req.Items),
		Discount:          req.Discount,
		DiscountType:      calculator.DiscountType(strings.TrimSpace(req.DiscountType)),
		TaxRate:           req.TaxRate,
		Currency:          req.Currency,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": detail})
}

func (s *Server) UpdateRecurringProfile(c *gin.Context) {
	profileID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req createRecurringProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	clientID, err := parseClientID(req.ClientID)
	if err != nil {
		AbortWithError(c, newValidationError("client_id", "invalid_client", "client_id is not a valid id"))
		return
	}
	startDate, err := parseDate(req.StartDate)
	if err != nil {
		AbortWithError(c, newValidationError("start_date", "invalid_date", "start_date is not a valid date"))
		return
	}
	var endDate *time.Time
	if raw := strings.TrimSpace(req.EndDate); raw != "" {
		parsed, err := parseDate(raw)
		if err != nil {
			AbortWithError(c, newValidationError("end_date", "invalid_date", "end_date is not a valid date"))
			return
		}
		endDate = &parsed
	}

	detail, err := s.recurringSvc.UpdateProfile(c.Request.Context(), recurringdomain.UpdateProfileRequest{
		TenantID:          tenantFromContext(c),
		ProfileID:         profileID,
		ClientID:          clientID,
		Interval:          recurringdomain.Interval(strings.TrimSpace(req.Interval)),
		IntervalCount:     req.IntervalCount,
		StartDate:         startDate,
		EndDate:           endDate,
		SendAutomatically: req.SendAutomatically,
		Items:             toLineItems(req.Items),
		Discount:          req.Discount,
		DiscountType:      calculator.DiscountType(strings.TrimSpace(req.DiscountType)),
		TaxRate:           req.TaxRate,
		Currency:          req.Currency,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": detail})
}

// RunRecurringProfile fires a profile immediately. The profile is
// resolved under the caller's tenant before the fire, which itself is
// fenced on next_run.
func (s *Server) RunRecurringProfile(c *gin.Context) {
	profileID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if _, err := s.recurringSvc.GetProfile(c.Request.Context(), tenantFromContext(c), profileID); err != nil {
		AbortWithError(c, err)
		return
	}
	result, err := s.recurringSvc.Fire(c.Request.Context(), profileID, s.clock.Now())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": result})
}

func (s *Server) ListRecurringProfiles(c *gin.Context) {
	profiles, err := s.recurringSvc.ListProfiles(c.Request.Context(), tenantFromContext(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": profiles})
}

func (s *Server) GetRecurringProfile(c *gin.Context) {
	profileID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	detail, err := s.recurringSvc.GetProfile(c.Request.Context(), tenantFromContext(c), profileID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": detail})
}

func (s *Server) PauseRecurringProfile(c *gin.Context) {
	profileID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	profile, err := s.recurringSvc.PauseProfile(c.Request.Context(), tenantFromContext(c), profileID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": profile})
}

func (s *Server) ResumeRecurringProfile(c *gin.Context) {
	profileID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	profile, err := s.recurringSvc.ResumeProfile(c.Request.Context(), tenantFromContext(c), profileID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": profile})
}

func (s *Server) DeleteRecurringProfile(c *gin.Context) {
	profileID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if err := s.recurringSvc.DeleteProfile(c.Request.Context(), tenantFromContext(c), profileID); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}
