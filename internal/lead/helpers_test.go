package lead

import (
	"testing"
	"time"

	"github.com/zulandar/leadyard/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openLeadTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	// A single connection keeps every goroutine on the same in-memory DB.
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&models.Lead{}, &models.LeadEvent{}, &models.Profile{}); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

func createTestLead(t *testing.T, db *gorm.DB, homeownerID string) *models.Lead {
	t.Helper()
	l, err := Create(db, CreateOpts{
		HomeownerID:    homeownerID,
		Title:          "Wheelchair ramp for front entrance",
		Description:    "Three steps, concrete porch",
		BudgetEstimate: "$3k-$6k",
		City:           "Austin",
		ZipCode:        "78701",
		RequiredSkills: []string{"Ramp Installation"},
		HomeownerName:  "Dana Reyes",
		HomeownerEmail: "dana@example.com",
		HomeownerPhone: "555-0100",
		StreetAddress:  "12 Elm St",
		ScanID:         "scan-1",
		Fingerprint:    "fp-1",
	})
	if err != nil {
		t.Fatalf("create lead: %v", err)
	}
	return l
}

func reloadLead(t *testing.T, db *gorm.DB, id string) *models.Lead {
	t.Helper()
	var l models.Lead
	if err := db.Where("id = ?", id).First(&l).Error; err != nil {
		t.Fatalf("reload lead %s: %v", id, err)
	}
	return &l
}

// backdateLock moves a lead's lock timestamp into the past.
func backdateLock(t *testing.T, db *gorm.DB, id string, age time.Duration) {
	t.Helper()
	if err := db.Model(&models.Lead{}).Where("id = ?", id).
		Update("locked_at", time.Now().Add(-age)).Error; err != nil {
		t.Fatalf("backdate lock: %v", err)
	}
}

func countEvents(t *testing.T, db *gorm.DB, leadID, typ string) int64 {
	t.Helper()
	var n int64
	db.Model(&models.LeadEvent{}).Where("lead_id = ? AND type = ?", leadID, typ).Count(&n)
	return n
}

func assertCode(t *testing.T, err error, want Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", want)
	}
	if got := CodeOf(err); got != want {
		t.Fatalf("code = %q, want %q (err = %v)", got, want, err)
	}
}

// assertLeadInvariants checks the lock-field pairing and purchaser rules.
func assertLeadInvariants(t *testing.T, l *models.Lead) {
	t.Helper()
	if (l.LockedByID == nil) != (l.LockedAt == nil) {
		t.Errorf("lead %s: locked_by_id set = %v but locked_at set = %v", l.ID, l.LockedByID != nil, l.LockedAt != nil)
	}
	if (l.ContractorID != nil) != l.IsSold() {
		t.Errorf("lead %s: contractor_id set = %v with status %s", l.ID, l.ContractorID != nil, l.Status)
	}
}
