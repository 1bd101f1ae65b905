package lead

import (
	"time"

	"github.com/zulandar/leadyard/internal/models"
)

// Viewer is the identity a projection is computed for.
type Viewer struct {
	ID   string
	Role string
}

// View is the caller-specific rendering of a lead. Identity, contact,
// scan and payment fields are empty when Scrubbed is true.
type View struct {
	ID             string     `json:"id"`
	Status         string     `json:"status"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	BudgetEstimate string     `json:"budget_estimate"`
	Urgency        string     `json:"urgency,omitempty"`
	City           string     `json:"city"`
	ZipCode        string     `json:"zip_code"`
	RequiredSkills []string   `json:"required_skills"`
	ViewCount      int        `json:"view_count"`
	Locked         bool       `json:"locked"`
	LockedAt       *time.Time `json:"locked_at,omitempty"`
	LockExpiresAt  *time.Time `json:"lock_expires_at,omitempty"`
	PurchasedAt    *time.Time `json:"purchased_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	Scrubbed       bool       `json:"scrubbed"`

	ProjectID       string  `json:"project_id,omitempty"`
	HomeownerID     string  `json:"homeowner_id,omitempty"`
	ContractorID    *string `json:"contractor_id,omitempty"`
	LockedByID      *string `json:"locked_by_id,omitempty"`
	HomeownerName   string  `json:"homeowner_name,omitempty"`
	HomeownerEmail  string  `json:"homeowner_email,omitempty"`
	HomeownerPhone  string  `json:"homeowner_phone,omitempty"`
	StreetAddress   string  `json:"street_address,omitempty"`
	ScanID          string  `json:"scan_id,omitempty"`
	Fingerprint     string  `json:"fingerprint,omitempty"`
	PaymentIntentID string  `json:"payment_intent_id,omitempty"`
}

// CanSeeFull reports whether v may see l's identity and payment fields.
//
// A homeowner always sees their own leads. A contractor sees a lead once it
// is purchased-or-later and they are its purchaser. Anyone else sees it
// only while it is PURCHASED.
func CanSeeFull(l *models.Lead, v Viewer) bool {
	if v.Role == models.RoleHomeowner && v.ID != "" && l.HomeownerID == v.ID {
		return true
	}
	if v.Role == models.RoleContractor {
		return l.IsSold() && l.ContractorID != nil && *l.ContractorID == v.ID
	}
	return l.Status == models.LeadPurchased
}

// Project renders l for v at the current time.
func Project(l *models.Lead, v Viewer) View {
	return ProjectAt(l, v, time.Now())
}

// ProjectAt renders l for v as of now. An expired lock is shown as
// AVAILABLE with no lock fields.
func ProjectAt(l *models.Lead, v Viewer, now time.Time) View {
	out := View{
		ID:             l.ID,
		Status:         l.Status,
		Title:          l.Title,
		Description:    l.Description,
		BudgetEstimate: l.BudgetEstimate,
		Urgency:        l.Urgency,
		City:           l.City,
		ZipCode:        l.ZipCode,
		RequiredSkills: Skills(l),
		ViewCount:      l.ViewCount,
		PurchasedAt:    l.PurchasedAt,
		CreatedAt:      l.CreatedAt,
	}
	if out.RequiredSkills == nil {
		out.RequiredSkills = []string{}
	}

	lockedBy := l.LockedByID
	if l.Status == models.LeadLocked {
		if l.LockExpired(now, LockDuration) {
			out.Status = models.LeadAvailable
			lockedBy = nil
		} else {
			expires := l.LockedAt.Add(LockDuration)
			out.Locked = true
			out.LockedAt = l.LockedAt
			out.LockExpiresAt = &expires
		}
	}

	if !CanSeeFull(l, v) {
		out.Scrubbed = true
		return out
	}

	out.ProjectID = l.ProjectRef()
	out.HomeownerID = l.HomeownerID
	out.ContractorID = l.ContractorID
	out.LockedByID = lockedBy
	out.HomeownerName = l.HomeownerName
	out.HomeownerEmail = l.HomeownerEmail
	out.HomeownerPhone = l.HomeownerPhone
	out.StreetAddress = l.StreetAddress
	out.ScanID = l.ScanID
	out.Fingerprint = l.Fingerprint
	out.PaymentIntentID = l.PaymentIntentID
	return out
}

// ProjectAll renders every lead in leads for v.
func ProjectAll(leads []models.Lead, v Viewer) []View {
	now := time.Now()
	out := make([]View, 0, len(leads))
	for i := range leads {
		out = append(out, ProjectAt(&leads[i], v, now))
	}
	return out
}
