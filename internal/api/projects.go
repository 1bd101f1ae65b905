package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/leadyard/internal/matching"
	"github.com/zulandar/leadyard/internal/payment"
)

// maxWebhookBytes matches the processor's own payload ceiling.
const maxWebhookBytes = 65536

type submitRequest struct {
	Urgency   string `json:"urgency"`
	BudgetMin int    `json:"budget_min"`
	BudgetMax int    `json:"budget_max"`
}

func (s *server) handleSubmit(c *gin.Context) {
	var req submitRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid submission body")
			return
		}
	}
	if req.BudgetMin < 0 || req.BudgetMax < 0 || (req.BudgetMax > 0 && req.BudgetMax < req.BudgetMin) {
		badRequest(c, "budget range is invalid")
		return
	}

	v, ok := s.viewer(c)
	if !ok {
		return
	}
	l, err := matching.SubmitForBids(s.db(c), matching.SubmitRequest{
		ProjectID:   c.Param("id"),
		HomeownerID: v.ID,
		Role:        v.Role,
		Urgency:     req.Urgency,
		BudgetMin:   req.BudgetMin,
		BudgetMax:   req.BudgetMax,
	}, s.opts.Trigger)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "lead_id": l.ID})
}

func (s *server) handleStripeWebhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBytes))
	if err != nil {
		badRequest(c, "unreadable body")
		return
	}

	res, err := s.opts.Finalizer.HandleEvent(c.Request.Context(), payload, c.GetHeader("Stripe-Signature"))
	switch {
	case errors.Is(err, payment.ErrInvalidSignature),
		errors.Is(err, payment.ErrUnsignedRejected),
		errors.Is(err, payment.ErrMalformedEvent):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"code": "INVALID_WEBHOOK", "error": err.Error()})
		return
	case err != nil:
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true, "handled": res.Handled})
}
