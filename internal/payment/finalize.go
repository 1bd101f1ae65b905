package payment

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/zulandar/leadyard/internal/lead"
	"github.com/zulandar/leadyard/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Completion is a paid checkout session as reported by the processor.
type Completion struct {
	SessionID       string
	MatchID         string
	ContractorID    string
	LeadID          string
	AmountCents     int64
	Currency        string
	PaymentIntentID string
}

// Outcome describes what a Finalize call changed.
type Outcome struct {
	// Replayed is true when the session was already completed and nothing
	// was changed.
	Replayed bool
	// LeadSettled is true when the lead moved to PURCHASED.
	LeadSettled bool
	Lead        *models.Lead
}

// Finalize settles a completed checkout session: the purchase record moves
// pending → completed, the match moves to lead_purchased and the lead is
// purchased for the contractor if they still hold its lock. All writes
// share one transaction. A session that is already completed is a no-op.
//
// A lead that can no longer be settled (its lock was taken over or it was
// already sold) does not fail the call: the payment stands and the purchase
// record keeps it for reconciliation.
func Finalize(db *gorm.DB, c Completion) (*Outcome, error) {
	if c.SessionID == "" {
		return nil, fmt.Errorf("payment: finalize: session id is required")
	}

	out := &Outcome{}
	err := db.Transaction(func(tx *gorm.DB) error {
		pending := models.Purchase{
			ID:           uuid.NewString(),
			LeadID:       c.LeadID,
			MatchID:      c.MatchID,
			ContractorID: c.ContractorID,
			SessionID:    c.SessionID,
			AmountCents:  c.AmountCents,
			Currency:     c.Currency,
			Status:       models.PurchasePending,
		}
		if pending.Currency == "" {
			pending.Currency = "usd"
		}
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "session_id"}},
			DoNothing: true,
		}).Create(&pending).Error
		if err != nil {
			return fmt.Errorf("payment: finalize %s: insert purchase: %w", c.SessionID, err)
		}

		now := time.Now()
		result := tx.Model(&models.Purchase{}).
			Where("session_id = ? AND status <> ?", c.SessionID, models.PurchaseCompleted).
			Updates(map[string]interface{}{
				"status":       models.PurchaseCompleted,
				"completed_at": now,
			})
		if result.Error != nil {
			return fmt.Errorf("payment: finalize %s: complete purchase: %w", c.SessionID, result.Error)
		}
		if result.RowsAffected == 0 {
			out.Replayed = true
			return nil
		}

		var p models.Purchase
		if err := tx.Where("session_id = ?", c.SessionID).First(&p).Error; err != nil {
			return fmt.Errorf("payment: finalize %s: reload purchase: %w", c.SessionID, err)
		}
		// The stored row wins over the event for ids it already carries.
		if c.LeadID == "" {
			c.LeadID = p.LeadID
		}
		if c.MatchID == "" {
			c.MatchID = p.MatchID
		}
		if c.ContractorID == "" {
			c.ContractorID = p.ContractorID
		}

		if err := settleMatch(tx, c); err != nil {
			return err
		}
		return settleLead(tx, c, out)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func settleMatch(tx *gorm.DB, c Completion) error {
	q := tx.Model(&models.Match{})
	switch {
	case c.MatchID != "":
		q = q.Where("id = ?", c.MatchID)
	case c.LeadID != "" && c.ContractorID != "":
		q = q.Where("contractor_id = ? AND project_id = (?)", c.ContractorID,
			tx.Model(&models.Lead{}).Select("project_id").Where("id = ?", c.LeadID))
	default:
		return nil
	}
	if err := q.Update("status", models.MatchLeadPurchased).Error; err != nil {
		return fmt.Errorf("payment: finalize %s: update match: %w", c.SessionID, err)
	}
	return nil
}

func settleLead(tx *gorm.DB, c Completion, out *Outcome) error {
	if c.LeadID == "" || c.ContractorID == "" {
		return nil
	}

	meta := map[string]interface{}{
		"session_id": c.SessionID,
		"mode":       "stripe",
	}
	if c.AmountCents > 0 {
		meta["amount_cents"] = c.AmountCents
	}

	l, err := lead.CompletePurchase(tx, c.LeadID, c.ContractorID, models.EventPaymentCompleted, meta)
	if err != nil {
		var le *lead.Error
		if errors.As(err, &le) {
			log.Printf("payment: session %s paid but lead %s not settled: %v", c.SessionID, c.LeadID, err)
			return nil
		}
		return err
	}

	if c.PaymentIntentID != "" {
		if err := tx.Model(&models.Lead{}).Where("id = ?", l.ID).
			Update("payment_intent_id", c.PaymentIntentID).Error; err != nil {
			return fmt.Errorf("payment: finalize %s: record payment intent: %w", c.SessionID, err)
		}
		l.PaymentIntentID = c.PaymentIntentID
	}
	out.LeadSettled = true
	out.Lead = l
	return nil
}
