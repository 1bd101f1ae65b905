// Package lead implements the lead lock-and-purchase workflow: exclusive
// time-boxed locks, purchase finalization, progress transitions and the
// caller-specific projection of lead records.
package lead

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/zulandar/leadyard/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CreateOpts holds parameters for opening a lead on a project.
type CreateOpts struct {
	ProjectID      string
	HomeownerID    string
	Title          string
	Description    string
	BudgetEstimate string
	Urgency        string
	City           string
	ZipCode        string
	RequiredSkills []string

	HomeownerName  string
	HomeownerEmail string
	HomeownerPhone string
	StreetAddress  string
	ScanID         string
	Fingerprint    string
}

// Create opens an AVAILABLE lead for a project. A project has at most one
// lead; if one already exists it is returned unchanged. The unique index on
// project_id settles concurrent creates for the same project.
func Create(db *gorm.DB, opts CreateOpts) (*models.Lead, error) {
	if opts.HomeownerID == "" {
		return nil, fmt.Errorf("lead: homeowner id is required")
	}
	if strings.TrimSpace(opts.Title) == "" {
		return nil, fmt.Errorf("lead: title is required")
	}

	if opts.ProjectID != "" {
		existing, err := forProject(db, opts.ProjectID)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return existing, nil
		}
	}

	skills := "[]"
	if len(opts.RequiredSkills) > 0 {
		data, err := json.Marshal(opts.RequiredSkills)
		if err != nil {
			return nil, fmt.Errorf("lead: marshal skills: %w", err)
		}
		skills = string(data)
	}

	l := models.Lead{
		ID:             uuid.NewString(),
		HomeownerID:    opts.HomeownerID,
		Status:         models.LeadAvailable,
		Title:          opts.Title,
		Description:    opts.Description,
		BudgetEstimate: opts.BudgetEstimate,
		Urgency:        opts.Urgency,
		City:           opts.City,
		ZipCode:        opts.ZipCode,
		RequiredSkills: skills,
		HomeownerName:  opts.HomeownerName,
		HomeownerEmail: opts.HomeownerEmail,
		HomeownerPhone: opts.HomeownerPhone,
		StreetAddress:  opts.StreetAddress,
		ScanID:         opts.ScanID,
		Fingerprint:    opts.Fingerprint,
	}
	if opts.ProjectID == "" {
		if err := db.Create(&l).Error; err != nil {
			return nil, fmt.Errorf("lead: create: %w", err)
		}
		return &l, nil
	}

	project := opts.ProjectID
	l.ProjectID = &project
	result := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "project_id"}},
		DoNothing: true,
	}).Create(&l)
	if result.Error != nil {
		return nil, fmt.Errorf("lead: create for project %s: %w", project, result.Error)
	}
	if result.RowsAffected == 0 {
		// A concurrent create for the same project won.
		existing, err := forProject(db, project)
		if err != nil {
			return nil, err
		}
		if existing == nil {
			return nil, fmt.Errorf("lead: create for project %s: conflicting lead vanished", project)
		}
		return existing, nil
	}
	return &l, nil
}

// forProject returns the project's lead, or nil when it has none.
func forProject(db *gorm.DB, projectID string) (*models.Lead, error) {
	var l models.Lead
	err := db.Where("project_id = ?", projectID).First(&l).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lead: check project %s: %w", projectID, err)
	}
	return &l, nil
}

// Get retrieves a lead by ID.
func Get(db *gorm.DB, id string) (*models.Lead, error) {
	var l models.Lead
	if err := db.Where("id = ?", id).First(&l).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errorf(CodeLeadNotFound, "lead %s not found", id)
		}
		return nil, fmt.Errorf("lead: get %s: %w", id, err)
	}
	return &l, nil
}

// Skills decodes a lead's required skill tags.
func Skills(l *models.Lead) []string {
	if l.RequiredSkills == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(l.RequiredSkills), &out); err != nil {
		return nil
	}
	return out
}
