package http

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v4"

	"timed-quiz-service/internal/domain"
)

var (
	errMissingToken = domain.UnauthenticatedError("unauthorized request")
	errInvalidToken = domain.UnauthenticatedError("invalid access token")
)

// Authenticator turns HS256 bearer tokens into identities. Claims: sub (user
// id), role, name (display name).
type Authenticator struct {
	secret []byte
}

func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{secret: []byte(secret)}
}

// Identify returns nil without error when the request carries no token.
func (a *Authenticator) Identify(r *http.Request) (*domain.Identity, error) {
	raw := bearerToken(r)
	if raw == "" {
		return nil, nil
	}

	tok, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil || !tok.Valid {
		return nil, errInvalidToken
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errInvalidToken
	}

	id := &domain.Identity{
		UserID:      stringClaim(claims, "sub"),
		Role:        stringClaim(claims, "role"),
		DisplayName: stringClaim(claims, "name"),
	}
	if id.UserID == "" {
		return nil, errInvalidToken
	}
	return id, nil
}

// Sign issues a token for id. Used by tests and local tooling; the service
// itself never issues tokens.
func (a *Authenticator) Sign(id domain.Identity) (string, error) {
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  id.UserID,
		"role": id.Role,
		"name": id.DisplayName,
	})
	return tok.SignedString(a.secret)
}

type identityHandler func(w http.ResponseWriter, r *http.Request, caller domain.Identity)

type optionalIdentityHandler func(w http.ResponseWriter, r *http.Request, caller *domain.Identity)

func (api *API) required(next identityHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := api.auth.Identify(r)
		if err == nil && id == nil {
			err = errMissingToken
		}
		if err != nil {
			api.fail(w, r, err)
			return
		}
		next(w, r, *id)
	}
}

// optional lets anonymous requests through; a token that is present but bad is
// still rejected.
func (api *API) optional(next optionalIdentityHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := api.auth.Identify(r)
		if err != nil {
			api.fail(w, r, err)
			return
		}
		next(w, r, id)
	}
}

func bearerToken(r *http.Request) string {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	if c, err := r.Cookie("accessToken"); err == nil {
		return strings.TrimSpace(c.Value)
	}
	return ""
}

func stringClaim(claims jwt.MapClaims, key string) string {
	v, ok := claims[key]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

