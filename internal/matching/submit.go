package matching

import (
	"errors"
	"fmt"
	"time"

	"github.com/zulandar/leadyard/internal/lead"
	"github.com/zulandar/leadyard/internal/models"
	"gorm.io/gorm"
)

// SubmitRequest holds the parameters of a submission for bids.
type SubmitRequest struct {
	ProjectID   string
	HomeownerID string
	Role        string
	Urgency     string
	BudgetMin   int
	BudgetMax   int
}

// SubmitForBids opens a homeowner's project for bids, creates its AVAILABLE
// lead and hands matching to the trigger. Matching failures never fail the
// submission; trig may be nil.
func SubmitForBids(db *gorm.DB, req SubmitRequest, trig *Trigger) (*models.Lead, error) {
	if req.HomeownerID == "" {
		return nil, lead.Errorf(lead.CodeUnauthorized, "authentication required")
	}
	if req.Role != models.RoleHomeowner {
		return nil, lead.Errorf(lead.CodeForbidden, "only homeowners can submit projects")
	}

	var p models.Project
	if err := db.Where("id = ?", req.ProjectID).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, lead.Errorf(lead.CodeProjectNotFound, "project %s not found", req.ProjectID)
		}
		return nil, fmt.Errorf("matching: load project %s: %w", req.ProjectID, err)
	}
	if p.HomeownerID != req.HomeownerID {
		return nil, lead.Errorf(lead.CodeForbidden, "project %s belongs to another homeowner", p.ID)
	}

	opts := lead.CreateOpts{
		ProjectID:      p.ID,
		HomeownerID:    p.HomeownerID,
		Title:          p.Title,
		Description:    p.Description,
		BudgetEstimate: budgetEstimate(req.BudgetMin, req.BudgetMax),
		Urgency:        p.Urgency,
		City:           p.City,
		ZipCode:        p.ZipCode,
		StreetAddress:  p.StreetAddress,
	}
	if req.Urgency != "" {
		opts.Urgency = req.Urgency
	}
	// Skills and contact details enrich the lead; a lookup failure only
	// leaves them blank.
	if skills, err := ProjectSkills(db, p.ID); err == nil {
		opts.RequiredSkills = skills
	}
	var owner models.Profile
	if err := db.Where("id = ?", p.HomeownerID).First(&owner).Error; err == nil {
		opts.HomeownerName = owner.FullName
		opts.HomeownerEmail = owner.Email
		opts.HomeownerPhone = owner.Phone
	}
	var scan models.Assessment
	if err := db.Where("project_id = ?", p.ID).Order("created_at DESC").First(&scan).Error; err == nil {
		opts.ScanID = scan.ScanID
		opts.Fingerprint = scan.Fingerprint
	}

	updates := map[string]interface{}{
		"status":       models.ProjectOpenForBids,
		"submitted_at": time.Now(),
		"budget_min":   req.BudgetMin,
		"budget_max":   req.BudgetMax,
	}
	if req.Urgency != "" {
		updates["urgency"] = req.Urgency
	}

	// The project opens for bids only together with its lead.
	var l *models.Lead
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Project{}).Where("id = ?", p.ID).Updates(updates).Error; err != nil {
			return fmt.Errorf("matching: open project %s: %w", p.ID, err)
		}
		var err error
		l, err = lead.Create(tx, opts)
		return err
	})
	if err != nil {
		return nil, err
	}

	trig.Dispatch(p.ID)
	return l, nil
}

func budgetEstimate(lo, hi int) string {
	switch {
	case lo > 0 && hi > 0:
		return fmt.Sprintf("$%d-$%d", lo, hi)
	case hi > 0:
		return fmt.Sprintf("up to $%d", hi)
	case lo > 0:
		return fmt.Sprintf("from $%d", lo)
	default:
		return ""
	}
}
