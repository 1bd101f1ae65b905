// Package auth verifies identity-provider bearer tokens. Only the subject
// is trusted; the caller's role is read from the profiles table.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// contextKey is the gin context key holding the verified user id.
const contextKey = "auth.user_id"

// ErrNoToken is returned when a request carries no bearer token.
var ErrNoToken = errors.New("auth: no bearer token")

// Verifier signs and verifies HS256 tokens whose subject is the user id.
type Verifier struct {
	secret []byte
	issuer string
}

// NewVerifier creates a Verifier. When issuer is non-empty tokens must
// carry a matching iss claim.
func NewVerifier(secret, issuer string) *Verifier {
	return &Verifier{secret: []byte(secret), issuer: issuer}
}

// Sign issues a token for userID valid for ttl. Used by the CLI to mint
// development tokens and by tests.
func (v *Verifier) Sign(userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		Issuer:    v.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, nil
}

// Verify parses token and returns its subject.
func (v *Verifier) Verify(token string) (string, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	var claims jwt.RegisteredClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return "", fmt.Errorf("auth: verify token: %w", err)
	}
	if !parsed.Valid || claims.Subject == "" {
		return "", errors.New("auth: token has no subject")
	}
	return claims.Subject, nil
}

// FromRequest verifies the Authorization bearer token on r.
func (v *Verifier) FromRequest(r *http.Request) (string, error) {
	h := r.Header.Get("Authorization")
	if h == "" {
		return "", ErrNoToken
	}
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", ErrNoToken
	}
	return v.Verify(strings.TrimSpace(token))
}

// Required rejects requests without a valid token with 401.
func (v *Verifier) Required() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := v.FromRequest(c.Request)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code":  "UNAUTHORIZED",
				"error": "authentication required",
			})
			return
		}
		c.Set(contextKey, userID)
		c.Next()
	}
}

// Optional records the user id when a valid token is present and lets
// anonymous requests through. An invalid token is treated as anonymous.
func (v *Verifier) Optional() gin.HandlerFunc {
	return func(c *gin.Context) {
		if userID, err := v.FromRequest(c.Request); err == nil {
			c.Set(contextKey, userID)
		}
		c.Next()
	}
}

// UserID returns the verified user id set by Required or Optional, or "".
func UserID(c *gin.Context) string {
	return c.GetString(contextKey)
}
