package catalog

import (
	"encoding/json"
	"time"
)

const (
	EventSaleRecorded         = "SaleRecorded"
	EventProductChanged       = "ProductChanged"
	EventProductDeleted       = "ProductDeleted"
	EventProductImagesChanged = "ProductImagesChanged"
	EventBannerChanged        = "BannerChanged"
	EventCategoryImageChanged = "CategoryImageChanged"
)

type Envelope struct {
	EventID       string          `json:"event_id"`      // uuid
	EventType     string          `json:"event_type"`    // one of the consts above
	EventVersion  int             `json:"event_version"` // 1
	OccurredAt    time.Time       `json:"occurred_at"`   // RFC3339
	Producer      string          `json:"producer"`      // e.g., "beyou-api"
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // usually the entity id
	Payload       json.RawMessage `json:"payload"`
}

// ChangedPayload is the payload of every catalog event: the entity touched and the pages
// that now show stale data.
type ChangedPayload struct {
	EntityID string   `json:"entity_id,omitempty"`
	Paths    []string `json:"paths"`
	Sale     *Sale    `json:"sale,omitempty"`
}
