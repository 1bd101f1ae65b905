package db

import (
	"encoding/json"
	"fmt"

	"github.com/zulandar/leadyard/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AllModels returns every GORM model the lead store migrates.
func AllModels() []interface{} {
	return []interface{}{
		&models.Profile{},
		&models.Project{},
		&models.Assessment{},
		&models.AssessmentRecommendation{},
		&models.Lead{},
		&models.LeadEvent{},
		&models.Purchase{},
		&models.Match{},
	}
}

// AutoMigrate creates or updates all tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}

// SeedProfile describes a profile row to upsert, typically from a fixture
// file for local development.
type SeedProfile struct {
	ID          string   `yaml:"id"`
	Role        string   `yaml:"role"`
	FullName    string   `yaml:"full_name"`
	Email       string   `yaml:"email"`
	CompanyName string   `yaml:"company_name"`
	City        string   `yaml:"city"`
	ZipCode     string   `yaml:"zip_code"`
	Skills      []string `yaml:"skills"`
	Rating      float64  `yaml:"rating"`
}

// SeedProfiles upserts Profile rows keyed by id.
func SeedProfiles(db *gorm.DB, profiles []SeedProfile) error {
	for _, sp := range profiles {
		skills, err := MarshalJSON(sp.Skills)
		if err != nil {
			return fmt.Errorf("db: marshal skills for profile %q: %w", sp.ID, err)
		}

		p := models.Profile{
			ID:          sp.ID,
			Role:        sp.Role,
			FullName:    sp.FullName,
			Email:       sp.Email,
			CompanyName: sp.CompanyName,
			City:        sp.City,
			ZipCode:     sp.ZipCode,
			Skills:      skills,
			Rating:      sp.Rating,
		}

		result := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"role", "full_name", "email", "company_name", "city", "zip_code", "skills", "rating"}),
		}).Create(&p)
		if result.Error != nil {
			return fmt.Errorf("db: seed profile %q: %w", sp.ID, result.Error)
		}
	}
	return nil
}

// MarshalJSON marshals a value to a JSON string, returning empty string for nil.
func MarshalJSON(v interface{}) (string, error) {
	if v == nil {
		return "", nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
