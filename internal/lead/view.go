package lead

import (
	"log"

	"github.com/zulandar/leadyard/internal/event"
	"github.com/zulandar/leadyard/internal/models"
	"gorm.io/gorm"
)

// RecordView counts a view of a lead and appends a VIEW event. Both writes
// are best-effort: failures are logged and the returned count is 0. Views
// by the lead's own homeowner are not counted.
func RecordView(db *gorm.DB, leadID, viewerID string) int {
	result := db.Model(&models.Lead{}).
		Where("id = ? AND homeowner_id <> ?", leadID, viewerID).
		UpdateColumn("view_count", gorm.Expr("view_count + ?", 1))
	if result.Error != nil {
		log.Printf("lead: record view %s: %v", leadID, result.Error)
		return 0
	}

	var l models.Lead
	if err := db.Select("id", "view_count").Where("id = ?", leadID).First(&l).Error; err != nil {
		log.Printf("lead: read view count %s: %v", leadID, err)
		return 0
	}
	if result.RowsAffected == 0 {
		return l.ViewCount
	}

	event.RecordBestEffort(db, event.Entry{
		LeadID:  leadID,
		ActorID: viewerID,
		Type:    models.EventView,
	})
	return l.ViewCount
}
