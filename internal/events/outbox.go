package events

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Event describes a billing event to store in the outbox.
type Event struct {
	TenantID  snowflake.ID
	Type      string
	Payload   map[string]any
	DedupeKey string
}

// Record is a stored outbox row awaiting dispatch.
type Record struct {
	ID        snowflake.ID
	TenantID  snowflake.ID
	EventType string
	Payload   datatypes.JSONMap
}

// Outbox inserts billing events into the billing_events table so dispatch
// side effects commit atomically with the mutation that caused them.
type Outbox struct {
	db    *gorm.DB
	genID *snowflake.Node
}

func NewOutbox(db *gorm.DB, genID *snowflake.Node) *Outbox {
	return &Outbox{db: db, genID: genID}
}

// Publish stores an event using the default database connection.
func (o *Outbox) Publish(ctx context.Context, event Event) error {
	return o.publish(ctx, o.db, event)
}

// PublishTx stores an event using an existing transaction.
func (o *Outbox) PublishTx(ctx context.Context, tx *gorm.DB, event Event) error {
	if tx == nil {
		return errors.New("missing_transaction")
	}
	return o.publish(ctx, tx, event)
}

func (o *Outbox) publish(ctx context.Context, db *gorm.DB, event Event) error {
	if o == nil || db == nil || o.genID == nil {
		return errors.New("outbox_unavailable")
	}
	if event.TenantID == 0 {
		return errors.New("invalid_tenant_id")
	}
	name := strings.TrimSpace(event.Type)
	if name == "" {
		return errors.New("missing_event_type")
	}

	payload := datatypes.JSONMap{}
	for key, value := range event.Payload {
		if strings.TrimSpace(key) == "" {
			continue
		}
		payload[key] = value
	}

	dedupe := strings.TrimSpace(event.DedupeKey)
	var dedupeValue any
	if dedupe != "" {
		dedupeValue = dedupe
	}

	now := time.Now().UTC()
	return db.WithContext(ctx).Exec(
		`INSERT INTO billing_events (id, tenant_id, event_type, payload, dedupe_key, published, created_at)
		 VALUES (?, ?, ?, ?, ?, false, ?)
		 ON CONFLICT (tenant_id, dedupe_key) DO NOTHING`,
		o.genID.Generate(),
		event.TenantID,
		name,
		payload,
		dedupeValue,
		now,
	).Error
}

// FetchUnpublished returns pending outbox rows, oldest first.
func (o *Outbox) FetchUnpublished(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}
	var records []Record
	err := o.db.WithContext(ctx).Raw(
		`SELECT id, tenant_id, event_type, payload
		 FROM billing_events
		 WHERE published = false
		 ORDER BY id
		 LIMIT ?`,
		limit,
	).Scan(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

// MarkPublished flags an outbox row as dispatched.
func (o *Outbox) MarkPublished(ctx context.Context, id snowflake.ID) error {
	return o.db.WithContext(ctx).Exec(
		`UPDATE billing_events SET published = true WHERE id = ?`,
		id,
	).Error
}
