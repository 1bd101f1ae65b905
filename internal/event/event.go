// Package event appends and reads the lead audit trail.
package event

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/zulandar/leadyard/internal/models"
	"gorm.io/gorm"
)

// Entry is one event to append.
type Entry struct {
	LeadID   string
	ActorID  string
	Type     string
	Metadata map[string]interface{}
}

// Record appends an event and returns any write error. Lock and purchase
// transitions call it with the transaction that performs the mutation, so
// the event commits (or rolls back) with it.
func Record(db *gorm.DB, e Entry) (*models.LeadEvent, error) {
	if e.LeadID == "" {
		return nil, fmt.Errorf("event: lead id is required")
	}
	if e.Type == "" {
		return nil, fmt.Errorf("event: type is required")
	}

	meta := "{}"
	if len(e.Metadata) > 0 {
		data, err := json.Marshal(e.Metadata)
		if err != nil {
			return nil, fmt.Errorf("event: marshal metadata for %s: %w", e.LeadID, err)
		}
		meta = string(data)
	}

	ev := models.LeadEvent{
		LeadID:    e.LeadID,
		ActorID:   e.ActorID,
		Type:      e.Type,
		Metadata:  meta,
		CreatedAt: time.Now(),
	}
	if err := db.Create(&ev).Error; err != nil {
		return nil, fmt.Errorf("event: record %s for %s: %w", e.Type, e.LeadID, err)
	}
	return &ev, nil
}

// RecordBestEffort appends an event and logs, rather than returns, any
// failure. Used for non-critical events such as views.
func RecordBestEffort(db *gorm.DB, e Entry) {
	if _, err := Record(db, e); err != nil {
		log.Printf("event: best-effort: %v", err)
	}
}

// ForLead returns a lead's events oldest first.
func ForLead(db *gorm.DB, leadID string) ([]models.LeadEvent, error) {
	if leadID == "" {
		return nil, fmt.Errorf("event: lead id is required")
	}
	var events []models.LeadEvent
	if err := db.Where("lead_id = ?", leadID).Order("id ASC").Find(&events).Error; err != nil {
		return nil, fmt.Errorf("event: list for %s: %w", leadID, err)
	}
	return events, nil
}

// CountByType returns how many events of the given type a lead has.
func CountByType(db *gorm.DB, leadID, typ string) (int64, error) {
	var n int64
	if err := db.Model(&models.LeadEvent{}).Where("lead_id = ? AND type = ?", leadID, typ).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("event: count %s for %s: %w", typ, leadID, err)
	}
	return n, nil
}

// DecodeMetadata unmarshals an event's metadata column.
func DecodeMetadata(ev models.LeadEvent) (map[string]interface{}, error) {
	out := map[string]interface{}{}
	if ev.Metadata == "" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(ev.Metadata), &out); err != nil {
		return nil, fmt.Errorf("event: decode metadata %d: %w", ev.ID, err)
	}
	return out, nil
}
