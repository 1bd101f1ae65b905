package models

import "time"

// Lead statuses. A lead moves AVAILABLE → LOCKED → PURCHASED → IN_PROGRESS →
// COMPLETED; an expired LOCKED lead is treated as AVAILABLE by readers.
const (
	LeadAvailable  = "AVAILABLE"
	LeadLocked     = "LOCKED"
	LeadPurchased  = "PURCHASED"
	LeadInProgress = "IN_PROGRESS"
	LeadCompleted  = "COMPLETED"
)

// Lead is a homeowner's project opportunity offered for sale to contractors.
type Lead struct {
	ID           string     `gorm:"primaryKey;size:36"`
	ProjectID    *string    `gorm:"size:36;uniqueIndex"` // one lead per project; nil for ad-hoc leads
	HomeownerID  string     `gorm:"size:64;not null;index"`
	ContractorID *string    `gorm:"size:64;index"`
	Status       string     `gorm:"size:16;default:AVAILABLE;index"`
	LockedByID   *string    `gorm:"size:64"`
	LockedAt     *time.Time `gorm:"index"`
	PurchasedAt  *time.Time
	ViewCount    int `gorm:"not null;default:0"`

	Title          string `gorm:"size:256;not null"`
	Description    string `gorm:"type:text"`
	BudgetEstimate string `gorm:"size:64"`
	Urgency        string `gorm:"size:16"`
	City           string `gorm:"size:128;index"`
	ZipCode        string `gorm:"size:16"`
	RequiredSkills string `gorm:"type:json"` // JSON array of skill tags

	// Fields below identify the homeowner or the payment and are removed
	// from scrubbed projections.
	HomeownerName   string `gorm:"size:128"`
	HomeownerEmail  string `gorm:"size:256"`
	HomeownerPhone  string `gorm:"size:32"`
	StreetAddress   string `gorm:"size:256"`
	ScanID          string `gorm:"size:64"`
	Fingerprint     string `gorm:"size:128"`
	PaymentIntentID string `gorm:"size:128"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ProjectRef returns the lead's project id, or "" when it has none.
func (l *Lead) ProjectRef() string {
	if l.ProjectID == nil {
		return ""
	}
	return *l.ProjectID
}

// IsSold reports whether the lead has reached a purchased-or-later status.
func (l *Lead) IsSold() bool {
	switch l.Status {
	case LeadPurchased, LeadInProgress, LeadCompleted:
		return true
	}
	return false
}

// LockExpired reports whether a LOCKED lead's lock is older than d at now.
// Leads that are not locked report true.
func (l *Lead) LockExpired(now time.Time, d time.Duration) bool {
	if l.Status != LeadLocked || l.LockedAt == nil {
		return true
	}
	return now.Sub(*l.LockedAt) >= d
}
