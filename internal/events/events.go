package events

// Billing event types recorded in the outbox for dispatch.
const (
	EventInvoiceSent       = "invoice.sent"
	EventEstimateSent      = "estimate.sent"
	EventEstimateConverted = "estimate.converted"
	EventRecurringInvoice  = "recurring.invoice_created"
)

// DocumentPayload captures the minimal data needed to dispatch a
// document notification.
type DocumentPayload struct {
	DocumentID     string `json:"document_id"`
	DocumentNumber string `json:"document_number"`
	ClientID       string `json:"client_id"`
}

// ToMap converts a payload into an outbox-friendly map.
func (p DocumentPayload) ToMap() map[string]any {
	return map[string]any{
		"document_id":     p.DocumentID,
		"document_number": p.DocumentNumber,
		"client_id":       p.ClientID,
	}
}
