package purchases

import (
	"fmt"
	"time"
)

// ChangeEvent is a batch of change records from the purchases pipeline.
type ChangeEvent struct {
	Records []ChangeRecord `json:"records"`
}

// ChangeRecord is one change notification. Only insert and modify events
// carry an image worth mirroring; remove events are acknowledged and skipped.
type ChangeRecord struct {
	EventName string          `json:"event_name"`
	Purchase  *PurchaseRecord `json:"purchase,omitempty"`
}

// PurchaseRecord is the mirrored purchase image.
type PurchaseRecord struct {
	TenantID  string  `json:"tenant_id"`
	OrderID   string  `json:"order_id"`
	UserID    string  `json:"user_id"`
	CourseID  string  `json:"course_id"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
	Timestamp string  `json:"timestamp,omitempty"`
}

// ObjectKey returns the archive location for the record, partitioned by
// mirror date and tenant.
func (p PurchaseRecord) ObjectKey(now time.Time) string {
	return fmt.Sprintf("compras/%s/tenant_%s/order_%s.json",
		now.UTC().Format("2006-01-02"), p.TenantID, p.OrderID)
}
