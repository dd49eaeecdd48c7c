// Package auth creates and verifies the signed tokens used on the
// self-service management surface.  A manage token is minted only after
// a customer proves ownership of a booking by passing the one-time code
// check; it is scoped to that single booking and short-lived, so a
// leaked token cannot be replayed against other bookings or kept
// around.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Scopes carried in the token's scope claim.
const (
	ScopeManage = "manage"
	ScopeAdmin  = "admin"
)

var (
	ErrInvalidToken = errors.New("auth: invalid token")
	ErrWrongScope   = errors.New("auth: wrong token scope")
)

// ManageToken is a signed HS256 JWT bound to one booking.
type ManageToken struct {
	Token string    `json:"token"`
	Exp   time.Time `json:"expires_at"`
}

// Claims extracted from a verified token.
type Claims struct {
	BookingID string
	Scope     string
}

// NewManageToken signs a token whose subject is the booking ID.  The
// holder may read, reschedule, or cancel exactly that booking until the
// token expires.
func NewManageToken(secret, bookingID string, ttl time.Duration) (ManageToken, error) {
	exp := time.Now().UTC().Add(ttl)
	claims := jwt.MapClaims{
		"sub":   bookingID,
		"scope": ScopeManage,
		"exp":   exp.Unix(),
		"iat":   time.Now().UTC().Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString([]byte(secret))
	if err != nil {
		return ManageToken{}, err
	}
	return ManageToken{Token: signed, Exp: exp}, nil
}

// NewAdminToken signs a token with administrative scope.  Issued out of
// band to operators; the server only verifies, never mints, these at
// request time.
func NewAdminToken(secret, operator string, ttl time.Duration) (ManageToken, error) {
	exp := time.Now().UTC().Add(ttl)
	claims := jwt.MapClaims{
		"sub":   operator,
		"scope": ScopeAdmin,
		"exp":   exp.Unix(),
		"iat":   time.Now().UTC().Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString([]byte(secret))
	if err != nil {
		return ManageToken{}, err
	}
	return ManageToken{Token: signed, Exp: exp}, nil
}

// Parse verifies the signature and expiry of a token and returns its
// claims.  Only HS256 is accepted; any other algorithm in the header is
// rejected outright to rule out algorithm substitution.
func Parse(secret, token string) (Claims, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(secret), nil
	})
	if err != nil || !parsed.Valid {
		return Claims{}, ErrInvalidToken
	}
	mc, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, ErrInvalidToken
	}
	sub, _ := mc["sub"].(string)
	scope, _ := mc["scope"].(string)
	if sub == "" || scope == "" {
		return Claims{}, ErrInvalidToken
	}
	return Claims{BookingID: sub, Scope: scope}, nil
}

// ParseManage verifies a token, requires the manage scope bound to the
// given booking, and returns the verified claims.  Admin-scoped tokens
// pass for any booking.
func ParseManage(secret, token, bookingID string) (Claims, error) {
	claims, err := Parse(secret, token)
	if err != nil {
		return Claims{}, err
	}
	switch claims.Scope {
	case ScopeAdmin:
		return claims, nil
	case ScopeManage:
		if claims.BookingID != bookingID {
			return Claims{}, ErrWrongScope
		}
		return claims, nil
	}
	return Claims{}, ErrWrongScope
}
