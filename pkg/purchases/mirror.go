package purchases

import (
	"context"
	"encoding/json"
	"time"

	"github.com/courseloop/authd/pkg/observability"
)

// Mirror archives purchase change records to an object sink, one document
// per record. Processing is best-effort per record: one bad record never
// blocks the rest of the batch.
type Mirror struct {
	sink   ObjectSink
	logger *observability.Logger
	now    func() time.Time

	// OnRecord is invoked with the disposition of every record
	// ("mirrored", "skipped", "failed"); wired to metrics by the caller.
	OnRecord func(status string)
}

// Record dispositions reported through OnRecord.
const (
	RecordMirrored = "mirrored"
	RecordSkipped  = "skipped"
	RecordFailed   = "failed"
)

// NewMirror creates a mirror over the sink.
func NewMirror(sink ObjectSink, logger *observability.Logger) *Mirror {
	return &Mirror{sink: sink, logger: logger, now: time.Now}
}

// WithClock overrides the clock used for date partitioning.
func (m *Mirror) WithClock(now func() time.Time) *Mirror {
	m.now = now
	return m
}

// Process archives a batch and returns how many records were mirrored and
// how many failed. Remove events and records without a purchase image count
// as neither; they are skipped.
func (m *Mirror) Process(ctx context.Context, event ChangeEvent) (mirrored, failed int) {
	for _, rec := range event.Records {
		switch rec.EventName {
		case "INSERT", "MODIFY":
		default:
			m.report(RecordSkipped)
			continue
		}
		if rec.Purchase == nil {
			m.logger.WithField("event", rec.EventName).Warn("change record without purchase image")
			m.report(RecordSkipped)
			continue
		}

		if err := m.archive(ctx, *rec.Purchase); err != nil {
			m.logger.WithError(err).
				WithField("tenant_id", rec.Purchase.TenantID).
				WithField("order_id", rec.Purchase.OrderID).
				Error("purchase mirror failed")
			m.report(RecordFailed)
			failed++
			continue
		}
		m.report(RecordMirrored)
		mirrored++
	}
	return mirrored, failed
}

func (m *Mirror) archive(ctx context.Context, p PurchaseRecord) error {
	body, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return m.sink.Put(ctx, p.ObjectKey(m.now()), body)
}

func (m *Mirror) report(status string) {
	if m.OnRecord != nil {
		m.OnRecord(status)
	}
}
