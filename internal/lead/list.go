package lead

import (
	"errors"
	"fmt"
	"time"

	"github.com/zulandar/leadyard/internal/models"
	"gorm.io/gorm"
)

// defaultMarketplaceLimit caps marketplace listings when no limit is given.
const defaultMarketplaceLimit = 50

// LoadViewer resolves a verified user id to a Viewer using the profile's
// role.
func LoadViewer(db *gorm.DB, userID string) (Viewer, error) {
	if userID == "" {
		return Viewer{}, errorf(CodeUnauthorized, "authentication required")
	}
	var p models.Profile
	if err := db.Select("id", "role").Where("id = ?", userID).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Viewer{}, errorf(CodeProfileNotFound, "no profile for user %s", userID)
		}
		return Viewer{}, fmt.Errorf("lead: load profile %s: %w", userID, err)
	}
	return Viewer{ID: p.ID, Role: p.Role}, nil
}

// ListMine returns the leads relevant to v, projected for v. Homeowners get
// the leads they created, contractors the leads they bought or currently
// hold, admins every lead.
func ListMine(db *gorm.DB, v Viewer) ([]View, error) {
	q := db.Model(&models.Lead{})
	switch v.Role {
	case models.RoleHomeowner:
		q = q.Where("homeowner_id = ?", v.ID)
	case models.RoleContractor:
		q = q.Where("contractor_id = ? OR (status = ? AND locked_by_id = ?)", v.ID, models.LeadLocked, v.ID)
	case models.RoleAdmin:
	default:
		return nil, errorf(CodeForbidden, "role %q cannot list leads", v.Role)
	}

	var leads []models.Lead
	if err := q.Order("created_at DESC").Find(&leads).Error; err != nil {
		return nil, fmt.Errorf("lead: list for %s: %w", v.ID, err)
	}
	return ProjectAll(leads, v), nil
}

// MarketplaceFilter narrows the marketplace listing.
type MarketplaceFilter struct {
	City  string
	Skill string
	Limit int
}

// ListMarketplace returns leads a contractor could lock now: AVAILABLE
// leads, leads whose lock has expired, and leads the viewer holds.
func ListMarketplace(db *gorm.DB, v Viewer, f MarketplaceFilter) ([]View, error) {
	if v.Role != models.RoleContractor && v.Role != models.RoleAdmin {
		return nil, errorf(CodeForbidden, "only contractors can browse the marketplace")
	}
	if f.Limit <= 0 {
		f.Limit = defaultMarketplaceLimit
	}

	cutoff := time.Now().Add(-LockDuration)
	q := db.Model(&models.Lead{}).
		Where("status = ? OR (status = ? AND (locked_at <= ? OR locked_by_id = ?))",
			models.LeadAvailable, models.LeadLocked, cutoff, v.ID)
	if f.City != "" {
		q = q.Where("city = ?", f.City)
	}
	if f.Skill != "" {
		q = q.Where("required_skills LIKE ?", "%\""+f.Skill+"\"%")
	}

	var leads []models.Lead
	if err := q.Order("created_at DESC").Limit(f.Limit).Find(&leads).Error; err != nil {
		return nil, fmt.Errorf("lead: marketplace: %w", err)
	}
	return ProjectAll(leads, v), nil
}
