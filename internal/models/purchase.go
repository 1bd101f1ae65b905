package models

import "time"

// Purchase statuses.
const (
	PurchasePending   = "pending"
	PurchaseCompleted = "completed"
	PurchaseExpired   = "expired"
)

// Purchase records a contractor's payment for a lead, keyed by the payment
// processor's checkout session id.
type Purchase struct {
	ID           string `gorm:"primaryKey;size:36"`
	LeadID       string `gorm:"size:36;index"`
	MatchID      string `gorm:"size:36;index"`
	ContractorID string `gorm:"size:64;not null;index"`
	SessionID    string `gorm:"size:255;not null;uniqueIndex"`
	CheckoutURL  string `gorm:"size:1024"`
	AmountCents  int64
	Currency     string `gorm:"size:8;default:usd"`
	Status       string `gorm:"size:16;default:pending;index"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
	CompletedAt  *time.Time
}

// TableName keeps purchases distinct from any billing tables in the same
// database.
func (Purchase) TableName() string { return "lead_purchases" }
