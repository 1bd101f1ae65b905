package models

import "time"

// Match statuses.
const (
	MatchProposed      = "proposed"
	MatchLeadPurchased = "lead_purchased"
)

// Match is a candidate pairing of a project with a contractor proposed by
// the scorer.
type Match struct {
	ID           string  `gorm:"primaryKey;size:36"`
	ProjectID    string  `gorm:"size:36;not null;uniqueIndex:idx_project_contractor"`
	ContractorID string  `gorm:"size:64;not null;uniqueIndex:idx_project_contractor"`
	Score        float64 `gorm:"default:0"`
	Status       string  `gorm:"size:16;default:proposed;index"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TableName matches the table the web app reads.
func (Match) TableName() string { return "project_matches" }
