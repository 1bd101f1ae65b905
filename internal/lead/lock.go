package lead

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/zulandar/leadyard/internal/event"
	"github.com/zulandar/leadyard/internal/models"
	"gorm.io/gorm"
)

// LockDuration is how long a lock stays exclusive. Expiry is evaluated
// lazily at the next lock attempt or read; nothing sweeps stale locks.
const LockDuration = 10 * time.Minute

// maxLockAttempts bounds re-evaluation when a racing writer changes the
// lead between the read and the conditional update.
const maxLockAttempts = 3

// errLockRaced signals that the conditional update matched no row.
var errLockRaced = errors.New("lead: lock raced")

// LockRequest holds the parameters of a lock attempt.
type LockRequest struct {
	LeadID         string
	ActorID        string
	Role           string
	IdempotencyKey string
}

// LockResult is the outcome of a successful lock.
type LockResult struct {
	Lead *models.Lead
	// PaymentToken is an opaque token the client passes to payment
	// initiation. It is not stored.
	PaymentToken string
	// Reentrant is true when the caller already held an unexpired lock and
	// nothing was mutated.
	Reentrant bool
}

// Lock reserves a lead for one contractor for LockDuration.
//
// A lead held by the caller is returned unchanged. A lead held by another
// contractor fails with LEAD_LOCKED until the lock expires, after which it
// is taken over. The status, owner and timestamp are written by a single
// UPDATE conditioned on the lead still being lockable, and the locked event
// is appended in the same transaction.
func Lock(db *gorm.DB, req LockRequest) (*LockResult, error) {
	if req.Role != models.RoleContractor {
		return nil, errorf(CodeForbidden, "only contractors can lock leads")
	}
	if strings.TrimSpace(req.IdempotencyKey) == "" {
		return nil, errorf(CodeMissingIdempotencyKey, "an idempotency key is required to lock a lead")
	}
	if req.ActorID == "" {
		return nil, errorf(CodeUnauthorized, "actor is required")
	}

	for range maxLockAttempts {
		res, err := tryLock(db, req, time.Now())
		if errors.Is(err, errLockRaced) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return res, nil
	}
	return nil, errorf(CodeLeadLocked, "lead %s is being reserved by another contractor", req.LeadID)
}

func tryLock(db *gorm.DB, req LockRequest, now time.Time) (*LockResult, error) {
	var res *LockResult

	err := db.Transaction(func(tx *gorm.DB) error {
		var l models.Lead
		if err := tx.Where("id = ?", req.LeadID).First(&l).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errorf(CodeLeadNotFound, "lead %s not found", req.LeadID)
			}
			return fmt.Errorf("lead: lock %s: load: %w", req.LeadID, err)
		}

		if l.IsSold() {
			return errorf(CodeLeadAlreadyPurchased, "lead %s has already been purchased", l.ID)
		}

		var previousOwner string
		if l.Status == models.LeadLocked && l.LockedByID != nil {
			previousOwner = *l.LockedByID
		}

		if !l.LockExpired(now, LockDuration) {
			if previousOwner == req.ActorID {
				res = &LockResult{Lead: &l, Reentrant: true}
				return nil
			}
			return errorf(CodeLeadLocked, "lead %s is locked by another contractor", l.ID)
		}

		cutoff := now.Add(-LockDuration)
		result := tx.Model(&models.Lead{}).
			Where("id = ?", l.ID).
			Where("status = ? OR (status = ? AND (locked_at IS NULL OR locked_at <= ?))",
				models.LeadAvailable, models.LeadLocked, cutoff).
			Updates(map[string]interface{}{
				"status":       models.LeadLocked,
				"locked_by_id": req.ActorID,
				"locked_at":    now,
			})
		if result.Error != nil {
			return fmt.Errorf("lead: lock %s: %w", l.ID, result.Error)
		}
		if result.RowsAffected == 0 {
			return errLockRaced
		}

		meta := map[string]interface{}{"idempotency_key": req.IdempotencyKey}
		if previousOwner != "" {
			meta["previous_owner"] = previousOwner
		}
		if _, err := event.Record(tx, event.Entry{
			LeadID:   l.ID,
			ActorID:  req.ActorID,
			Type:     models.EventLocked,
			Metadata: meta,
		}); err != nil {
			return err
		}

		actor := req.ActorID
		l.Status = models.LeadLocked
		l.LockedByID = &actor
		l.LockedAt = &now
		res = &LockResult{Lead: &l}
		return nil
	})
	if err != nil {
		return nil, err
	}

	token, err := paymentToken()
	if err != nil {
		return nil, err
	}
	res.PaymentToken = token
	return res, nil
}

// Unlock releases an unexpired lock held by actorID, returning the lead to
// AVAILABLE. Releasing a lock the caller does not hold is a no-op.
func Unlock(db *gorm.DB, leadID, actorID string) error {
	result := db.Model(&models.Lead{}).
		Where("id = ? AND status = ? AND locked_by_id = ?", leadID, models.LeadLocked, actorID).
		Updates(map[string]interface{}{
			"status":       models.LeadAvailable,
			"locked_by_id": nil,
			"locked_at":    nil,
		})
	if result.Error != nil {
		return fmt.Errorf("lead: unlock %s: %w", leadID, result.Error)
	}
	return nil
}

// ReleaseExpired returns every lead whose lock has expired to AVAILABLE.
// Readers already treat such locks as absent; this only normalizes stored
// rows for reporting.
func ReleaseExpired(db *gorm.DB, now time.Time) (int64, error) {
	result := db.Model(&models.Lead{}).
		Where("status = ? AND locked_at <= ?", models.LeadLocked, now.Add(-LockDuration)).
		Updates(map[string]interface{}{
			"status":       models.LeadAvailable,
			"locked_by_id": nil,
			"locked_at":    nil,
		})
	if result.Error != nil {
		return 0, fmt.Errorf("lead: release expired locks: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// paymentToken generates an opaque payment-initiation token.
func paymentToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("lead: generate payment token: %w", err)
	}
	return "pit_" + hex.EncodeToString(b), nil
}
