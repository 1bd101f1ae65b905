package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/zulandar/leadyard/internal/lead"
	"github.com/zulandar/leadyard/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testSecret = "whsec_test"

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(
		&models.Profile{},
		&models.Lead{},
		&models.LeadEvent{},
		&models.Purchase{},
		&models.Match{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// lockedLead creates a lead on proj-1 locked by contractorID, plus a
// proposed match for that contractor.
func lockedLead(t *testing.T, db *gorm.DB, contractorID string) (*models.Lead, *models.Match) {
	t.Helper()
	l, err := lead.Create(db, lead.CreateOpts{
		ProjectID:   "proj-1",
		HomeownerID: "home-1",
		Title:       "Stair lift",
		City:        "Austin",
	})
	if err != nil {
		t.Fatalf("create lead: %v", err)
	}
	if _, err := lead.Lock(db, lead.LockRequest{
		LeadID:         l.ID,
		ActorID:        contractorID,
		Role:           models.RoleContractor,
		IdempotencyKey: "k",
	}); err != nil {
		t.Fatalf("lock lead: %v", err)
	}
	m := &models.Match{ID: "match-1", ProjectID: "proj-1", ContractorID: contractorID, Status: models.MatchProposed}
	if err := db.Create(m).Error; err != nil {
		t.Fatalf("create match: %v", err)
	}
	return l, m
}

// checkoutEvent builds a checkout.session.completed event payload.
func checkoutEvent(t *testing.T, eventID, sessionID, leadID, contractorID string) []byte {
	t.Helper()
	return eventPayload(t, eventID, "checkout.session.completed", map[string]interface{}{
		"id":                  sessionID,
		"object":              "checkout.session",
		"amount_total":        4900,
		"currency":            "usd",
		"client_reference_id": contractorID,
		"payment_intent":      "pi_123",
		"metadata": map[string]string{
			"lead_id":       leadID,
			"contractor_id": contractorID,
		},
	})
}

func eventPayload(t *testing.T, eventID, typ string, object map[string]interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(map[string]interface{}{
		"id":          eventID,
		"object":      "event",
		"type":        typ,
		"api_version": stripe.APIVersion,
		"created":     time.Now().Unix(),
		"data":        map[string]interface{}{"object": object},
	})
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	return data
}

// sign produces a Stripe-Signature header for payload.
func sign(payload []byte, secret string) string {
	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", ts)
	mac.Write(payload)
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func reloadLead(t *testing.T, db *gorm.DB, id string) *models.Lead {
	t.Helper()
	var l models.Lead
	if err := db.Where("id = ?", id).First(&l).Error; err != nil {
		t.Fatalf("reload lead: %v", err)
	}
	return &l
}

func countEvents(db *gorm.DB, leadID, typ string) int64 {
	var n int64
	db.Model(&models.LeadEvent{}).Where("lead_id = ? AND type = ?", leadID, typ).Count(&n)
	return n
}
