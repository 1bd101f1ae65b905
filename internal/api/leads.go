package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/leadyard/internal/auth"
	"github.com/zulandar/leadyard/internal/event"
	"github.com/zulandar/leadyard/internal/lead"
	"github.com/zulandar/leadyard/internal/models"
	"github.com/zulandar/leadyard/internal/notify"
	"github.com/zulandar/leadyard/internal/payment"
	"gorm.io/gorm"
)

func (s *server) db(c *gin.Context) *gorm.DB {
	return s.opts.DB.WithContext(c.Request.Context())
}

func (s *server) handleLock(c *gin.Context) {
	v, ok := s.viewer(c)
	if !ok {
		return
	}

	res, err := lead.Lock(s.db(c), lead.LockRequest{
		LeadID:         c.Param("id"),
		ActorID:        v.ID,
		Role:           v.Role,
		IdempotencyKey: c.GetHeader("Idempotency-Key"),
	})
	if err != nil {
		s.opts.Metrics.RecordLock(outcomeLabel(err))
		writeError(c, err)
		return
	}
	if res.Reentrant {
		s.opts.Metrics.RecordLock("reentrant")
	} else {
		s.opts.Metrics.RecordLock(outcomeLabel(nil))
	}

	body := gin.H{
		"lead":          lead.Project(res.Lead, v),
		"payment_token": res.PaymentToken,
		"reentrant":     res.Reentrant,
	}
	if !s.opts.MockPayments {
		co, err := s.opts.Gateway.CreateCheckout(c.Request.Context(), payment.CheckoutRequest{
			LeadID:         res.Lead.ID,
			ContractorID:   v.ID,
			IdempotencyKey: c.GetHeader("Idempotency-Key"),
		})
		if err != nil {
			writeError(c, err)
			return
		}
		body["checkout"] = co
	}
	c.JSON(http.StatusOK, body)
}

func (s *server) handlePurchase(c *gin.Context) {
	v, ok := s.viewer(c)
	if !ok {
		return
	}

	l, err := lead.Purchase(s.db(c), lead.PurchaseRequest{
		LeadID:   c.Param("id"),
		ActorID:  v.ID,
		Role:     v.Role,
		MockMode: s.opts.MockPayments,
	})
	s.opts.Metrics.RecordPurchase("mock", outcomeLabel(err))
	if err != nil {
		writeError(c, err)
		return
	}

	s.announce("notify purchase "+l.ID, notify.FormatPurchase(notify.PurchaseInfo{
		LeadID:       l.ID,
		Title:        l.Title,
		City:         l.City,
		ContractorID: v.ID,
		Mode:         "mock",
	}))
	c.JSON(http.StatusOK, gin.H{"lead": lead.Project(l, v)})
}

type statusRequest struct {
	Status string `json:"status" binding:"required"`
}

func (s *server) handleStatus(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "body must be {\"status\": \"IN_PROGRESS\"|\"COMPLETED\"}")
		return
	}
	v, ok := s.viewer(c)
	if !ok {
		return
	}

	l, err := lead.Advance(s.db(c), lead.AdvanceRequest{
		LeadID:  c.Param("id"),
		ActorID: v.ID,
		Role:    v.Role,
		To:      req.Status,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"lead": lead.Project(l, v)})
}

// eventView is the wire form of a lead event.
type eventView struct {
	ID        uint            `json:"id"`
	Type      string          `json:"type"`
	ActorID   string          `json:"actor_id,omitempty"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

func (s *server) handleEvents(c *gin.Context) {
	v, ok := s.viewer(c)
	if !ok {
		return
	}
	if v.Role != models.RoleAdmin {
		writeError(c, lead.Errorf(lead.CodeForbidden, "only admins can read the audit trail"))
		return
	}

	l, err := lead.Get(s.db(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	events, err := event.ForLead(s.db(c), l.ID)
	if err != nil {
		writeError(c, err)
		return
	}

	out := make([]eventView, 0, len(events))
	for _, e := range events {
		ev := eventView{ID: e.ID, Type: e.Type, ActorID: e.ActorID, CreatedAt: e.CreatedAt}
		if e.Metadata != "" {
			ev.Metadata = json.RawMessage(e.Metadata)
		}
		out = append(out, ev)
	}
	c.JSON(http.StatusOK, gin.H{"lead_id": l.ID, "events": out})
}

// handleView always reports success; counting is best-effort.
func (s *server) handleView(c *gin.Context) {
	count := lead.RecordView(s.db(c), c.Param("id"), auth.UserID(c))
	s.opts.Metrics.RecordView()
	c.JSON(http.StatusOK, gin.H{"view_count": count})
}

func (s *server) handleMine(c *gin.Context) {
	v, ok := s.viewer(c)
	if !ok {
		return
	}
	views, err := lead.ListMine(s.db(c), v)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"leads": views})
}

func (s *server) handleMarketplace(c *gin.Context) {
	f := lead.MarketplaceFilter{
		City:  c.Query("city"),
		Skill: c.Query("skill"),
	}
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			badRequest(c, "limit must be a non-negative integer")
			return
		}
		f.Limit = n
	}

	v, ok := s.viewer(c)
	if !ok {
		return
	}
	views, err := lead.ListMarketplace(s.db(c), v, f)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"leads": views})
}

// announce posts msg on the background runner when a notifier is set.
func (s *server) announce(name string, msg notify.Message) {
	if s.opts.Notifier == nil || s.opts.Runner == nil {
		return
	}
	s.opts.Runner.Go(name, func(ctx context.Context) error {
		return s.opts.Notifier.Notify(ctx, msg)
	})
}
