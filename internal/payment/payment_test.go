package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/zulandar/leadyard/internal/lead"
	"github.com/zulandar/leadyard/internal/models"
)

type mockSessions struct {
	params []*stripe.CheckoutSessionParams
	err    error
}

func (m *mockSessions) New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	m.params = append(m.params, params)
	if m.err != nil {
		return nil, m.err
	}
	id := fmt.Sprintf("cs_test_%d", len(m.params))
	return &stripe.CheckoutSession{ID: id, URL: "https://checkout.example/" + id}, nil
}

func newTestGateway(t *testing.T, sessions *mockSessions) (*Gateway, *mockSessions) {
	t.Helper()
	db := openTestDB(t)
	g, err := NewGateway(db, GatewayOpts{
		PriceCents: 4900,
		SuccessURL: "https://app.example/leads/success",
		CancelURL:  "https://app.example/leads/cancel",
		Sessions:   sessions,
	})
	if err != nil {
		t.Fatalf("NewGateway: %v", err)
	}
	return g, sessions
}

func TestNewGateway_Validation(t *testing.T) {
	db := openTestDB(t)
	if _, err := NewGateway(db, GatewayOpts{PriceCents: 100}); err == nil {
		t.Error("expected error without a secret key")
	}
	if _, err := NewGateway(db, GatewayOpts{SecretKey: "sk_test_x"}); err == nil {
		t.Error("expected error for a zero price")
	}
	g, err := NewGateway(db, GatewayOpts{SecretKey: "sk_test_x", PriceCents: 100})
	if err != nil {
		t.Fatalf("NewGateway: %v", err)
	}
	if g.Currency != "usd" {
		t.Errorf("Currency = %q, want usd", g.Currency)
	}
}

func TestCreateCheckout(t *testing.T) {
	g, sessions := newTestGateway(t, &mockSessions{})
	l, m := lockedLead(t, g.DB, "con-a")

	co, err := g.CreateCheckout(context.Background(), CheckoutRequest{LeadID: l.ID, ContractorID: "con-a"})
	if err != nil {
		t.Fatalf("CreateCheckout: %v", err)
	}
	if co.SessionID != "cs_test_1" || co.URL == "" || co.MatchID != m.ID {
		t.Errorf("checkout = %+v", co)
	}

	if len(sessions.params) != 1 {
		t.Fatalf("sessions created = %d, want 1", len(sessions.params))
	}
	p := sessions.params[0]
	if p.Metadata[metaLeadID] != l.ID || p.Metadata[metaContractorID] != "con-a" || p.Metadata[metaMatchID] != m.ID {
		t.Errorf("metadata = %v", p.Metadata)
	}
	if *p.ClientReferenceID != "con-a" {
		t.Errorf("ClientReferenceID = %q", *p.ClientReferenceID)
	}
	if *p.LineItems[0].PriceData.UnitAmount != 4900 {
		t.Errorf("UnitAmount = %d", *p.LineItems[0].PriceData.UnitAmount)
	}

	var pur models.Purchase
	if err := g.DB.First(&pur, "session_id = ?", "cs_test_1").Error; err != nil {
		t.Fatalf("load purchase: %v", err)
	}
	if pur.Status != models.PurchasePending || pur.LeadID != l.ID || pur.MatchID != m.ID {
		t.Errorf("purchase = %+v", pur)
	}

	// Checkout does not settle the lead.
	if got := reloadLead(t, g.DB, l.ID); got.Status != models.LeadLocked {
		t.Errorf("lead status = %q, want LOCKED", got.Status)
	}
}

func TestCreateCheckout_Rejections(t *testing.T) {
	g, sessions := newTestGateway(t, &mockSessions{})
	l, _ := lockedLead(t, g.DB, "con-a")
	open, err := lead.Create(g.DB, lead.CreateOpts{ProjectID: "proj-2", HomeownerID: "home-1", Title: "Ramp"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	tests := []struct {
		name string
		req  CheckoutRequest
		want lead.Code
	}{
		{"not locked", CheckoutRequest{LeadID: open.ID, ContractorID: "con-a"}, lead.CodeLeadNotLocked},
		{"other owner", CheckoutRequest{LeadID: l.ID, ContractorID: "con-b"}, lead.CodeNotLockOwner},
		{"unknown lead", CheckoutRequest{LeadID: "nope", ContractorID: "con-a"}, lead.CodeLeadNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := g.CreateCheckout(context.Background(), tt.req)
			if got := lead.CodeOf(err); got != tt.want {
				t.Errorf("code = %q, want %q (err %v)", got, tt.want, err)
			}
		})
	}
	if len(sessions.params) != 0 {
		t.Errorf("sessions created = %d, want 0", len(sessions.params))
	}
}

func TestCreateCheckout_ProcessorError(t *testing.T) {
	g, _ := newTestGateway(t, &mockSessions{err: errors.New("card network down")})
	l, _ := lockedLead(t, g.DB, "con-a")

	if _, err := g.CreateCheckout(context.Background(), CheckoutRequest{LeadID: l.ID, ContractorID: "con-a"}); err == nil {
		t.Fatal("expected error")
	}
	var n int64
	g.DB.Model(&models.Purchase{}).Count(&n)
	if n != 0 {
		t.Errorf("purchase rows = %d, want 0", n)
	}
}

func TestCreateCheckout_RetryReusesSession(t *testing.T) {
	g, sessions := newTestGateway(t, &mockSessions{})
	l, _ := lockedLead(t, g.DB, "con-a")
	req := CheckoutRequest{LeadID: l.ID, ContractorID: "con-a", IdempotencyKey: "k"}

	first, err := g.CreateCheckout(context.Background(), req)
	if err != nil {
		t.Fatalf("first CreateCheckout: %v", err)
	}
	second, err := g.CreateCheckout(context.Background(), req)
	if err != nil {
		t.Fatalf("second CreateCheckout: %v", err)
	}
	if *first != *second {
		t.Errorf("second checkout = %+v, want %+v", second, first)
	}
	if len(sessions.params) != 1 {
		t.Errorf("sessions created = %d, want 1", len(sessions.params))
	}
	if key := sessions.params[0].IdempotencyKey; key == nil ||
		!strings.HasPrefix(*key, "checkout-"+l.ID+"-con-a-") || !strings.HasSuffix(*key, "-k") {
		t.Errorf("IdempotencyKey = %v", key)
	}

	var n int64
	g.DB.Model(&models.Purchase{}).Where("lead_id = ? AND status = ?", l.ID, models.PurchasePending).Count(&n)
	if n != 1 {
		t.Errorf("pending purchases = %d, want 1", n)
	}
}

func TestCreateCheckout_NewLockNewSession(t *testing.T) {
	g, sessions := newTestGateway(t, &mockSessions{})
	l, _ := lockedLead(t, g.DB, "con-a")

	first, err := g.CreateCheckout(context.Background(), CheckoutRequest{LeadID: l.ID, ContractorID: "con-a", IdempotencyKey: "k"})
	if err != nil {
		t.Fatalf("CreateCheckout: %v", err)
	}

	g.DB.Model(&models.Lead{}).Where("id = ?", l.ID).Update("locked_at", time.Now().Add(-lead.LockDuration-time.Minute))
	if _, err := lead.Lock(g.DB, lead.LockRequest{LeadID: l.ID, ActorID: "con-a", Role: models.RoleContractor, IdempotencyKey: "k2"}); err != nil {
		t.Fatalf("relock: %v", err)
	}

	second, err := g.CreateCheckout(context.Background(), CheckoutRequest{LeadID: l.ID, ContractorID: "con-a", IdempotencyKey: "k2"})
	if err != nil {
		t.Fatalf("CreateCheckout after relock: %v", err)
	}
	if second.SessionID == first.SessionID {
		t.Errorf("session %s reused across locks", second.SessionID)
	}
	if len(sessions.params) != 2 {
		t.Errorf("sessions created = %d, want 2", len(sessions.params))
	}
}
