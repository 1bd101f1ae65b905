package models

import "time"

// Lead event types.
const (
	EventLocked           = "locked"
	EventPurchased        = "purchased"
	EventView             = "VIEW"
	EventPaymentCompleted = "payment_completed"
	EventStatusChanged    = "status_changed"
)

// LeadEvent is one append-only audit record for a lead. Rows are written
// once and never updated or deleted.
type LeadEvent struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	LeadID    string `gorm:"size:36;not null;index"`
	ActorID   string `gorm:"size:64"`
	Type      string `gorm:"size:32;not null;index"`
	Metadata  string `gorm:"type:json"` // JSON object
	CreatedAt time.Time
}
