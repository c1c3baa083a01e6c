// Package identity resolves who is making a request.
// An empty user ID means the caller is anonymous.
package identity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"auction-core/utils"
)

const (
	// HeaderUserID is trusted only when no JWT secret is configured
	HeaderUserID = "X-User-ID"

	ginUserKey = "identity.user_id"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
	ErrMissingClaim = errors.New("missing required claim")
)

// Verifier checks HS256 bearer tokens and extracts the subject
type Verifier struct {
	secret []byte
}

func NewVerifier(secret []byte) *Verifier {
	return &Verifier{secret: secret}
}

// Verify validates the token and returns its "sub" claim
func (v *Verifier) Verify(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrExpiredToken
		}
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	sub, err := token.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", fmt.Errorf("%w: sub", ErrMissingClaim)
	}
	return sub, nil
}

// Generate issues a token for userID, used by tooling and tests
func (v *Verifier) Generate(userID string, expiresIn time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
	})
	signed, err := token.SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("identity: sign token: %w", err)
	}
	return signed, nil
}

// Middleware stores the caller's user ID on the gin context.
// With a verifier, a present but invalid bearer token is rejected with 401;
// a missing token leaves the caller anonymous. Without a verifier the
// X-User-ID header is taken as is.
func Middleware(v *Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := ""
		if v == nil {
			userID = strings.TrimSpace(c.GetHeader(HeaderUserID))
		} else if raw := c.GetHeader("Authorization"); raw != "" {
			tokenString, ok := strings.CutPrefix(raw, "Bearer ")
			if !ok {
				abortUnauthorized(c, ErrInvalidToken)
				return
			}
			sub, err := v.Verify(strings.TrimSpace(tokenString))
			if err != nil {
				abortUnauthorized(c, err)
				return
			}
			userID = sub
		}

		c.Set(ginUserKey, userID)
		c.Request = c.Request.WithContext(WithUser(c.Request.Context(), userID))
		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, err error) {
	utils.Warn("identity: rejected credentials", map[string]any{"path": c.FullPath(), "error": err.Error()})
	utils.JSONError(c, http.StatusUnauthorized, err, "invalid credentials")
	c.Abort()
}

// UserID returns the caller resolved by Middleware, or "" when anonymous
func UserID(c *gin.Context) string {
	return c.GetString(ginUserKey)
}

type userKey struct{}

func WithUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userKey{}, userID)
}

// FromContext returns the user attached by WithUser, or "" if none
func FromContext(ctx context.Context) string {
	userID, _ := ctx.Value(userKey{}).(string)
	return userID
}
