package worker

import (
	"context"
	"errors"
	"time"

	"github.com/Mr-IR0k-oo1/Billio-sub000/internal/clock"
	"github.com/Mr-IR0k-oo1/Billio-sub000/internal/dispatch"
	documentdomain "github.com/Mr-IR0k-oo1/Billio-sub000/internal/document/domain"
	"github.com/Mr-IR0k-oo1/Billio-sub000/internal/events"
	recurringdomain "github.com/Mr-IR0k-oo1/Billio-sub000/internal/recurring/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log        *zap.Logger
	Clock      clock.Clock
	Recurring  recurringdomain.Service
	Documents  documentdomain.Service
	Outbox     *events.Outbox
	Dispatcher dispatch.Dispatcher
	Config     Config `optional:"true"`
}

// Worker fires due recurring profiles, drains the billing event outbox
// and sweeps lapsed document statuses. Every step tolerates concurrent
// workers: firing is fenced on next_run, outbox rows are idempotent to
// re-dispatch and the sweep is a conditional update.
type Worker struct {
	log        *zap.Logger
	clock      clock.Clock
	recurring  recurringdomain.Service
	documents  documentdomain.Service
	outbox     *events.Outbox
	dispatcher dispatch.Dispatcher
	cfg        Config
}

func NewWorker(p Params) *Worker {
	cfg := p.Config.withDefaults()
	return &Worker{
		log:        p.Log.Named("recurring.worker"),
		clock:      p.Clock,
		recurring:  p.Recurring,
		documents:  p.Documents,
		outbox:     p.Outbox,
		dispatcher: p.Dispatcher,
		cfg:        cfg,
	}
}

func (w *Worker) RunForever(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if err := w.RunOnce(ctx); err != nil {
			w.log.Warn("recurring worker run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (w *Worker) RunOnce(ctx context.Context) error {
	runCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	fired, fireErr := w.FireDue(runCtx)
	if fired > 0 {
		w.log.Info("recurring profiles fired", zap.Int("count", fired))
	}

	dispatched, drainErr := w.DrainOutbox(runCtx)
	if dispatched > 0 {
		w.log.Debug("outbox events dispatched", zap.Int("count", dispatched))
	}

	lapsed, sweepErr := w.documents.MarkLapsed(runCtx, w.clock.Now())
	if lapsed > 0 {
		w.log.Debug("lapsed documents marked", zap.Int64("count", lapsed))
	}

	return errors.Join(fireErr, drainErr, sweepErr)
}

// FireDue generates invoices for every due profile in the batch. One
// failing profile does not block the rest.
func (w *Worker) FireDue(ctx context.Context) (int, error) {
	now := w.clock.Now()
	profiles, err := w.recurring.DueProfiles(ctx, now, w.cfg.BatchSize)
	if err != nil {
		return 0, err
	}

	fired := 0
	var errs []error
	for _, profile := range profiles {
		result, err := w.recurring.Fire(ctx, profile.ID, now)
		if errors.Is(err, recurringdomain.ErrProfileNotDue) {
			// Another worker claimed this run first.
			continue
		}
		if err != nil {
			w.log.Warn("recurring profile fire failed",
				zap.String("profile_id", profile.ID.String()),
				zap.Error(err),
			)
			errs = append(errs, err)
			continue
		}
		fired++
		w.log.Info("recurring invoice generated",
			zap.String("profile_id", profile.ID.String()),
			zap.String("invoice_number", result.Invoice.Invoice.DocumentNumber),
		)
	}
	return fired, errors.Join(errs...)
}

// DrainOutbox dispatches pending billing events and marks them
// published. A dispatch failure leaves the row pending for the next
// pass.
func (w *Worker) DrainOutbox(ctx context.Context) (int, error) {
	records, err := w.outbox.FetchUnpublished(ctx, w.cfg.BatchSize)
	if err != nil {
		return 0, err
	}

	dispatched := 0
	var errs []error
	for _, record := range records {
		notification := dispatch.Notification{
			TenantID:       record.TenantID.String(),
			EventType:      record.EventType,
			DocumentID:     stringField(record.Payload, "document_id"),
			DocumentNumber: stringField(record.Payload, "document_number"),
			ClientID:       stringField(record.Payload, "client_id"),
		}
		if err := w.dispatcher.Dispatch(ctx, notification); err != nil {
			errs = append(errs, err)
			continue
		}
		if err := w.outbox.MarkPublished(ctx, record.ID); err != nil {
			errs = append(errs, err)
			continue
		}
		dispatched++
	}
	return dispatched, errors.Join(errs...)
}

func stringField(payload map[string]any, key string) string {
	value, ok := payload[key].(string)
	if !ok {
		return ""
	}
	return value
}
