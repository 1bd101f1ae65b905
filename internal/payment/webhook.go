package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
	"github.com/zulandar/leadyard/internal/background"
	"github.com/zulandar/leadyard/internal/metrics"
	"github.com/zulandar/leadyard/internal/notify"
	"gorm.io/gorm"
)

// eventCheckoutCompleted is the only event type acted on.
const eventCheckoutCompleted = "checkout.session.completed"

// Webhook rejection reasons. Each is reported to the processor as 400.
var (
	ErrInvalidSignature = errors.New("payment: invalid webhook signature")
	ErrUnsignedRejected = errors.New("payment: webhook secret not configured")
	ErrMalformedEvent   = errors.New("payment: malformed webhook event")
)

// Finalizer verifies payment webhooks and settles completed sessions.
type Finalizer struct {
	DB            *gorm.DB
	WebhookSecret string
	// AllowUnsigned trusts unsigned payloads when WebhookSecret is empty.
	// Configuration validation keeps it off in production.
	AllowUnsigned bool

	Metrics  *metrics.Metrics   // optional
	Notifier notify.Notifier    // optional
	Runner   *background.Runner // runs notifications; optional
}

// Result summarizes a handled delivery.
type Result struct {
	EventID   string
	EventType string
	Handled   bool
	Outcome   *Outcome
}

// HandleEvent verifies and processes one webhook delivery. Errors wrapping
// ErrInvalidSignature, ErrUnsignedRejected or ErrMalformedEvent mean the
// delivery was rejected before any mutation; any other error is a store
// failure and the processor should redeliver.
func (f *Finalizer) HandleEvent(ctx context.Context, payload []byte, signature string) (*Result, error) {
	evt, err := f.parse(payload, signature)
	if err != nil {
		f.Metrics.RecordWebhook("", rejectionLabel(err))
		return nil, err
	}

	res := &Result{EventID: evt.ID, EventType: string(evt.Type)}
	if res.EventType != eventCheckoutCompleted {
		f.Metrics.RecordWebhook(res.EventType, "ignored")
		return res, nil
	}

	if evt.Data == nil || len(evt.Data.Raw) == 0 {
		f.Metrics.RecordWebhook(res.EventType, "malformed")
		return nil, fmt.Errorf("%w: event %s has no data", ErrMalformedEvent, evt.ID)
	}
	var sess stripe.CheckoutSession
	if err := json.Unmarshal(evt.Data.Raw, &sess); err != nil {
		f.Metrics.RecordWebhook(res.EventType, "malformed")
		return nil, fmt.Errorf("%w: decode session: %v", ErrMalformedEvent, err)
	}

	c := completionFromSession(&sess)
	out, err := Finalize(f.DB.WithContext(ctx), c)
	if err != nil {
		f.Metrics.RecordWebhook(res.EventType, "error")
		return nil, err
	}
	res.Handled = true
	res.Outcome = out

	switch {
	case out.Replayed:
		f.Metrics.RecordWebhook(res.EventType, "replayed")
		log.Printf("payment: session %s already completed, ignoring redelivery", c.SessionID)
	default:
		f.Metrics.RecordWebhook(res.EventType, metrics.OutcomeOK)
		if out.LeadSettled {
			f.Metrics.RecordPurchase("webhook", metrics.OutcomeOK)
			f.announce(c, out)
		}
	}
	return res, nil
}

func (f *Finalizer) parse(payload []byte, signature string) (stripe.Event, error) {
	if f.WebhookSecret != "" {
		evt, err := webhook.ConstructEventWithOptions(payload, signature, f.WebhookSecret,
			webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
		if err != nil {
			return stripe.Event{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
		}
		return evt, nil
	}
	if !f.AllowUnsigned {
		return stripe.Event{}, ErrUnsignedRejected
	}

	var evt stripe.Event
	if err := json.Unmarshal(payload, &evt); err != nil {
		return stripe.Event{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	return evt, nil
}

func (f *Finalizer) announce(c Completion, out *Outcome) {
	if f.Notifier == nil || f.Runner == nil {
		return
	}
	info := notify.PurchaseInfo{
		LeadID:       c.LeadID,
		ContractorID: c.ContractorID,
		Mode:         "stripe",
		AmountCents:  c.AmountCents,
		Currency:     c.Currency,
	}
	if out.Lead != nil {
		info.Title = out.Lead.Title
		info.City = out.Lead.City
	}
	f.Runner.Go("notify purchase "+c.LeadID, func(ctx context.Context) error {
		return f.Notifier.Notify(ctx, notify.FormatPurchase(info))
	})
}

func completionFromSession(sess *stripe.CheckoutSession) Completion {
	c := Completion{
		SessionID:    sess.ID,
		LeadID:       sess.Metadata[metaLeadID],
		MatchID:      sess.Metadata[metaMatchID],
		ContractorID: sess.Metadata[metaContractorID],
		AmountCents:  sess.AmountTotal,
		Currency:     string(sess.Currency),
	}
	if c.ContractorID == "" {
		c.ContractorID = sess.ClientReferenceID
	}
	if sess.PaymentIntent != nil {
		c.PaymentIntentID = sess.PaymentIntent.ID
	}
	return c
}

func rejectionLabel(err error) string {
	switch {
	case errors.Is(err, ErrInvalidSignature):
		return "invalid_signature"
	case errors.Is(err, ErrUnsignedRejected):
		return "unsigned"
	default:
		return "malformed"
	}
}
