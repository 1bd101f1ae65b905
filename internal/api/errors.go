package api

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/leadyard/internal/lead"
	"github.com/zulandar/leadyard/internal/metrics"
)

// codeInternal is reported for store and other unclassified failures.
const codeInternal = "INTERNAL"

// statusFor maps a failure code to its HTTP status.
func statusFor(code lead.Code) int {
	switch code {
	case lead.CodeUnauthorized:
		return http.StatusUnauthorized
	case lead.CodeForbidden:
		return http.StatusForbidden
	case lead.CodeMissingIdempotencyKey:
		return http.StatusBadRequest
	case lead.CodeLeadNotFound, lead.CodeProfileNotFound, lead.CodeProjectNotFound:
		return http.StatusNotFound
	case lead.CodeLeadLocked,
		lead.CodeLeadAlreadyPurchased,
		lead.CodeLeadNotLocked,
		lead.CodeNotLockOwner,
		lead.CodeAlreadyPurchased,
		lead.CodePaymentsLiveMode,
		lead.CodeInvalidTransition:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err as {"code", "error"}. Unclassified errors are
// logged and reported generically.
func writeError(c *gin.Context, err error) {
	var le *lead.Error
	if errors.As(err, &le) {
		c.AbortWithStatusJSON(statusFor(le.Code), gin.H{"code": le.Code, "error": le.Message})
		return
	}
	log.Printf("api: %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"code": codeInternal, "error": "internal error"})
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"code": "BAD_REQUEST", "error": msg})
}

// outcomeLabel turns an operation error into a metrics label.
func outcomeLabel(err error) string {
	if err == nil {
		return metrics.OutcomeOK
	}
	if code := lead.CodeOf(err); code != "" {
		return string(code)
	}
	return "error"
}
