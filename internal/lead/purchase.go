package lead

import (
	"errors"
	"fmt"
	"time"

	"github.com/zulandar/leadyard/internal/event"
	"github.com/zulandar/leadyard/internal/models"
	"gorm.io/gorm"
)

// PurchaseRequest holds the parameters of a direct purchase.
type PurchaseRequest struct {
	LeadID   string
	ActorID  string
	Role     string
	MockMode bool
}

// Purchase finalizes a locked lead for its lock owner. It is the mock
// payment path; in live deployments leads are finalized only from payment
// webhooks and this call fails with PAYMENTS_LIVE_MODE.
func Purchase(db *gorm.DB, req PurchaseRequest) (*models.Lead, error) {
	if req.Role != models.RoleContractor {
		return nil, errorf(CodeForbidden, "only contractors can purchase leads")
	}
	if !req.MockMode {
		return nil, errorf(CodePaymentsLiveMode, "payments are live; leads are purchased through checkout")
	}
	if req.ActorID == "" {
		return nil, errorf(CodeUnauthorized, "actor is required")
	}

	var purchased *models.Lead
	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		purchased, err = completePurchase(tx, req.LeadID, req.ActorID, models.EventPurchased,
			map[string]interface{}{"mode": "mock"}, true)
		return err
	})
	if err != nil {
		return nil, err
	}
	return purchased, nil
}

// CompletePurchase moves a lead LOCKED by contractorID to PURCHASED and
// appends an event of the given type. The transition is a single UPDATE
// conditioned on the lead still being locked by contractorID with no
// purchaser, so two finalizers cannot both succeed. Callers pass a
// transaction.
//
// The lock's age is not checked: a paid checkout settles the lead as long
// as the payer still holds it.
func CompletePurchase(tx *gorm.DB, leadID, contractorID, eventType string, meta map[string]interface{}) (*models.Lead, error) {
	return completePurchase(tx, leadID, contractorID, eventType, meta, false)
}

// completePurchase implements CompletePurchase. With liveLock set, a lock
// older than LockDuration is treated as absent and fails with
// LEAD_NOT_LOCKED.
func completePurchase(tx *gorm.DB, leadID, contractorID, eventType string, meta map[string]interface{}, liveLock bool) (*models.Lead, error) {
	now := time.Now()
	var l models.Lead
	if err := tx.Where("id = ?", leadID).First(&l).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errorf(CodeLeadNotFound, "lead %s not found", leadID)
		}
		return nil, fmt.Errorf("lead: purchase %s: load: %w", leadID, err)
	}
	if err := purchaseBlocked(&l, contractorID); err != nil {
		return nil, err
	}
	if liveLock && l.LockExpired(now, LockDuration) {
		return nil, errorf(CodeLeadNotLocked, "lock on lead %s has expired", l.ID)
	}

	q := tx.Model(&models.Lead{}).
		Where("id = ? AND status = ? AND locked_by_id = ? AND contractor_id IS NULL",
			l.ID, models.LeadLocked, contractorID)
	if liveLock {
		q = q.Where("locked_at > ?", now.Add(-LockDuration))
	}
	result := q.Updates(map[string]interface{}{
		"status":        models.LeadPurchased,
		"contractor_id": contractorID,
		"purchased_at":  now,
		"locked_by_id":  nil,
		"locked_at":     nil,
	})
	if result.Error != nil {
		return nil, fmt.Errorf("lead: purchase %s: %w", l.ID, result.Error)
	}
	if result.RowsAffected == 0 {
		// Lost a race; report what the winner left behind.
		var fresh models.Lead
		if err := tx.Where("id = ?", l.ID).First(&fresh).Error; err != nil {
			return nil, fmt.Errorf("lead: purchase %s: reload: %w", l.ID, err)
		}
		if err := purchaseBlocked(&fresh, contractorID); err != nil {
			return nil, err
		}
		if liveLock && fresh.LockExpired(now, LockDuration) {
			return nil, errorf(CodeLeadNotLocked, "lock on lead %s has expired", l.ID)
		}
		return nil, errorf(CodeLeadNotLocked, "lead %s changed during purchase", l.ID)
	}

	if _, err := event.Record(tx, event.Entry{
		LeadID:   l.ID,
		ActorID:  contractorID,
		Type:     eventType,
		Metadata: meta,
	}); err != nil {
		return nil, err
	}

	buyer := contractorID
	l.Status = models.LeadPurchased
	l.ContractorID = &buyer
	l.PurchasedAt = &now
	l.LockedByID = nil
	l.LockedAt = nil
	return &l, nil
}

// purchaseBlocked returns the precondition failure that stops actorID from
// purchasing l, or nil.
func purchaseBlocked(l *models.Lead, actorID string) error {
	if l.Status != models.LeadLocked {
		return errorf(CodeLeadNotLocked, "lead %s is not locked (status %s)", l.ID, l.Status)
	}
	if l.LockedByID == nil || *l.LockedByID != actorID {
		return errorf(CodeNotLockOwner, "lead %s is locked by another contractor", l.ID)
	}
	if l.ContractorID != nil {
		return errorf(CodeAlreadyPurchased, "lead %s has already been purchased", l.ID)
	}
	return nil
}

// ValidTransitions maps each post-purchase status to the statuses a
// contractor may move it to.
var ValidTransitions = map[string][]string{
	models.LeadPurchased:  {models.LeadInProgress},
	models.LeadInProgress: {models.LeadCompleted},
}

// AdvanceRequest holds the parameters of a progress transition.
type AdvanceRequest struct {
	LeadID  string
	ActorID string
	Role    string
	To      string
}

// Advance moves a purchased lead forward (PURCHASED → IN_PROGRESS →
// COMPLETED). Only the purchasing contractor or an admin may advance it.
func Advance(db *gorm.DB, req AdvanceRequest) (*models.Lead, error) {
	if req.Role != models.RoleContractor && req.Role != models.RoleAdmin {
		return nil, errorf(CodeForbidden, "only the purchasing contractor can update lead progress")
	}

	var out *models.Lead
	err := db.Transaction(func(tx *gorm.DB) error {
		var l models.Lead
		if err := tx.Where("id = ?", req.LeadID).First(&l).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errorf(CodeLeadNotFound, "lead %s not found", req.LeadID)
			}
			return fmt.Errorf("lead: advance %s: load: %w", req.LeadID, err)
		}
		if req.Role == models.RoleContractor && (l.ContractorID == nil || *l.ContractorID != req.ActorID) {
			return errorf(CodeForbidden, "lead %s was not purchased by you", l.ID)
		}
		if !isValidTransition(l.Status, req.To) {
			return errorf(CodeInvalidTransition, "cannot move lead %s from %s to %s; valid transitions: %v",
				l.ID, l.Status, req.To, ValidTransitions[l.Status])
		}

		result := tx.Model(&models.Lead{}).
			Where("id = ? AND status = ?", l.ID, l.Status).
			Update("status", req.To)
		if result.Error != nil {
			return fmt.Errorf("lead: advance %s: %w", l.ID, result.Error)
		}
		if result.RowsAffected == 0 {
			return errorf(CodeInvalidTransition, "lead %s changed during update", l.ID)
		}

		if _, err := event.Record(tx, event.Entry{
			LeadID:   l.ID,
			ActorID:  req.ActorID,
			Type:     models.EventStatusChanged,
			Metadata: map[string]interface{}{"from": l.Status, "to": req.To},
		}); err != nil {
			return err
		}

		l.Status = req.To
		out = &l
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// isValidTransition checks whether a progress transition is allowed.
func isValidTransition(from, to string) bool {
	for _, v := range ValidTransitions[from] {
		if v == to {
			return true
		}
	}
	return false
}
