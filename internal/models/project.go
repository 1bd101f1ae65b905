package models

import "time"

// Project statuses.
const (
	ProjectDraft       = "draft"
	ProjectOpenForBids = "open_for_bids"
	ProjectMatched     = "matched"
	ProjectInProgress  = "in_progress"
	ProjectCompleted   = "completed"
)

// Project is a homeowner's accessibility modification request.
type Project struct {
	ID            string `gorm:"primaryKey;size:36"`
	HomeownerID   string `gorm:"size:64;not null;index"`
	Title         string `gorm:"size:256;not null"`
	Description   string `gorm:"type:text"`
	StreetAddress string `gorm:"size:256"`
	City          string `gorm:"size:128"`
	ZipCode       string `gorm:"size:16"`
	Status        string `gorm:"size:16;default:draft;index"`
	Urgency       string `gorm:"size:16"`
	BudgetMin     int
	BudgetMax     int
	SubmittedAt   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time

	Assessments []Assessment `gorm:"foreignKey:ProjectID"`
}

// Assessment is an accessibility scan of a project's home.
type Assessment struct {
	ID          string `gorm:"primaryKey;size:36"`
	ProjectID   string `gorm:"size:36;not null;index"`
	ScanID      string `gorm:"size:64"`
	Fingerprint string `gorm:"size:128"`
	Summary     string `gorm:"type:text"`
	CreatedAt   time.Time

	Recommendations []AssessmentRecommendation `gorm:"foreignKey:AssessmentID"`
}

// AssessmentRecommendation is one free-text recommendation from a scan.
type AssessmentRecommendation struct {
	ID           uint   `gorm:"primaryKey;autoIncrement"`
	AssessmentID string `gorm:"size:36;not null;index"`
	Category     string `gorm:"size:64"`
	Detail       string `gorm:"type:text"`
	Priority     int    `gorm:"default:2"`
	CreatedAt    time.Time
}
