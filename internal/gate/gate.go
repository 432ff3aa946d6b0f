// Package gate resolves a socket handshake to an authenticated identity.
package gate

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/weiawesome/wes-io-chat/internal/domain"
	"github.com/weiawesome/wes-io-chat/pkg/jwt"
	"github.com/weiawesome/wes-io-chat/pkg/middleware"
)

var (
	// ErrNoCredential means the handshake carried no session token.
	ErrNoCredential = fmt.Errorf("%w: no credential", domain.ErrAdmission)
	// ErrInvalidCredential means the token failed validation.
	ErrInvalidCredential = fmt.Errorf("%w: invalid credential", domain.ErrAdmission)
)

// Resolver turns a handshake into a user id.
type Resolver interface {
	Resolve(r *http.Request) (string, error)
}

// TokenGate admits handshakes carrying a valid session token in the
// Authorization header, the token query parameter or the session cookie.
type TokenGate struct {
	validator  middleware.TokenValidator
	cookieName string
}

var _ Resolver = (*TokenGate)(nil)

func NewTokenGate(validator middleware.TokenValidator, cookieName string) *TokenGate {
	return &TokenGate{
		validator:  validator,
		cookieName: cookieName,
	}
}

// Resolve implements Resolver. Every error wraps domain.ErrAdmission.
func (g *TokenGate) Resolve(r *http.Request) (string, error) {
	token := middleware.TokenFromRequest(r, g.cookieName)
	if token == "" {
		return "", ErrNoCredential
	}

	claims, err := g.validator.ValidateToken(token)
	if err != nil {
		if errors.Is(err, jwt.ErrExpiredToken) {
			return "", fmt.Errorf("%w: %w", ErrInvalidCredential, err)
		}
		return "", ErrInvalidCredential
	}
	return claims.UserID, nil
}
