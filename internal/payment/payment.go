// Package payment settles lead purchases made through Stripe Checkout.
//
// A checkout session is created while the contractor holds the lead lock;
// Stripe later reports the completed session through a signed webhook and
// the Finalizer settles the purchase record, the match and the lead.
// Deliveries are deduplicated on the checkout session id.
package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/zulandar/leadyard/internal/lead"
	"github.com/zulandar/leadyard/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Metadata keys attached to checkout sessions.
const (
	metaLeadID       = "lead_id"
	metaContractorID = "contractor_id"
	metaMatchID      = "match_id"
)

// sessionCreator abstracts the Stripe checkout session API, enabling test mocks.
type sessionCreator interface {
	New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

// Gateway creates checkout sessions for locked leads.
type Gateway struct {
	DB         *gorm.DB
	PriceCents int64
	Currency   string
	SuccessURL string
	CancelURL  string

	sessions sessionCreator
}

// GatewayOpts holds parameters for creating a Gateway.
type GatewayOpts struct {
	SecretKey  string
	PriceCents int64
	Currency   string
	SuccessURL string
	CancelURL  string
	// For testing: inject a mock session API instead of Stripe.
	Sessions sessionCreator
}

// NewGateway creates a Gateway backed by the Stripe API.
func NewGateway(db *gorm.DB, opts GatewayOpts) (*Gateway, error) {
	if opts.Sessions == nil && opts.SecretKey == "" {
		return nil, fmt.Errorf("payment: stripe secret key is required")
	}
	if opts.PriceCents <= 0 {
		return nil, fmt.Errorf("payment: lead price must be positive")
	}

	g := &Gateway{
		DB:         db,
		PriceCents: opts.PriceCents,
		Currency:   opts.Currency,
		SuccessURL: opts.SuccessURL,
		CancelURL:  opts.CancelURL,
		sessions:   opts.Sessions,
	}
	if g.Currency == "" {
		g.Currency = string(stripe.CurrencyUSD)
	}
	if g.sessions == nil {
		sc := &client.API{}
		sc.Init(opts.SecretKey, nil)
		g.sessions = sc.CheckoutSessions
	}
	return g, nil
}

// CheckoutRequest identifies the lead and the contractor paying for it.
type CheckoutRequest struct {
	LeadID       string
	ContractorID string
	// IdempotencyKey is the key of the lock the checkout pays for. It is
	// forwarded to Stripe so a retried request cannot open a second session.
	IdempotencyKey string
}

// Checkout is a created checkout session.
type Checkout struct {
	SessionID string `json:"session_id"`
	URL       string `json:"url"`
	MatchID   string `json:"match_id,omitempty"`
}

// CreateCheckout opens a Stripe checkout session for a lead the contractor
// currently holds and records a pending purchase for it. A pending session
// already opened under the current lock is returned instead of a new one.
func (g *Gateway) CreateCheckout(ctx context.Context, req CheckoutRequest) (*Checkout, error) {
	l, err := lead.Get(g.DB.WithContext(ctx), req.LeadID)
	if err != nil {
		return nil, err
	}
	if l.Status != models.LeadLocked || l.LockExpired(time.Now(), lead.LockDuration) {
		return nil, lead.Errorf(lead.CodeLeadNotLocked, "lock lead %s before checking out", l.ID)
	}
	if l.LockedByID == nil || *l.LockedByID != req.ContractorID {
		return nil, lead.Errorf(lead.CodeNotLockOwner, "lead %s is locked by another contractor", l.ID)
	}

	existing, err := pendingCheckout(g.DB.WithContext(ctx), l, req.ContractorID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return &Checkout{SessionID: existing.SessionID, URL: existing.CheckoutURL, MatchID: existing.MatchID}, nil
	}

	matchID, err := matchFor(g.DB.WithContext(ctx), l.ProjectRef(), req.ContractorID)
	if err != nil {
		return nil, err
	}

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(g.SuccessURL),
		CancelURL:         stripe.String(g.CancelURL),
		ClientReferenceID: stripe.String(req.ContractorID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(g.Currency),
				UnitAmount: stripe.Int64(g.PriceCents),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String("Lead: " + l.Title),
				},
			},
			Quantity: stripe.Int64(1),
		}},
	}
	params.Context = ctx
	if req.IdempotencyKey != "" {
		// Scoped to this lock so a key reused on a later lock gets a new session.
		params.SetIdempotencyKey(fmt.Sprintf("checkout-%s-%s-%d-%s",
			l.ID, req.ContractorID, l.LockedAt.UnixMilli(), req.IdempotencyKey))
	}
	params.AddMetadata(metaLeadID, l.ID)
	params.AddMetadata(metaContractorID, req.ContractorID)
	if matchID != "" {
		params.AddMetadata(metaMatchID, matchID)
	}

	sess, err := g.sessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("payment: create checkout for lead %s: %w", l.ID, err)
	}

	p := models.Purchase{
		ID:           uuid.NewString(),
		LeadID:       l.ID,
		MatchID:      matchID,
		ContractorID: req.ContractorID,
		SessionID:    sess.ID,
		CheckoutURL:  sess.URL,
		AmountCents:  g.PriceCents,
		Currency:     g.Currency,
		Status:       models.PurchasePending,
	}
	// Stripe replays the session for a repeated idempotency key; the row may
	// already exist.
	err = g.DB.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "session_id"}}, DoNothing: true}).
		Create(&p).Error
	if err != nil {
		return nil, fmt.Errorf("payment: record pending purchase %s: %w", sess.ID, err)
	}

	return &Checkout{SessionID: sess.ID, URL: sess.URL, MatchID: matchID}, nil
}

// pendingCheckout returns the contractor's pending purchase opened since the
// lead was last locked, or nil.
func pendingCheckout(db *gorm.DB, l *models.Lead, contractorID string) (*models.Purchase, error) {
	if l.LockedAt == nil {
		return nil, nil
	}
	var p models.Purchase
	err := db.Where("lead_id = ? AND contractor_id = ? AND status = ? AND created_at >= ?",
		l.ID, contractorID, models.PurchasePending, *l.LockedAt).
		Order("created_at DESC").
		First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("payment: find pending checkout for lead %s: %w", l.ID, err)
	}
	return &p, nil
}

// matchFor returns the id of the contractor's match on a project, or "".
func matchFor(db *gorm.DB, projectID, contractorID string) (string, error) {
	if projectID == "" {
		return "", nil
	}
	var m models.Match
	err := db.Select("id").Where("project_id = ? AND contractor_id = ?", projectID, contractorID).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("payment: find match for %s/%s: %w", projectID, contractorID, err)
	}
	return m.ID, nil
}
