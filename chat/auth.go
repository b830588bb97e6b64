package chat

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/hupe1980/marketingmesh/credential"
)

// ErrUnauthorized is returned by authenticators that reject a request.
var ErrUnauthorized = errors.New("unauthorized")

// Identity is the authenticated caller of a request.
type Identity struct {
	UserID string
	Token  string
	// Trusted marks identities asserted by an upstream authenticating proxy.
	// Only trusted identities may replace another token of the same user.
	Trusted bool
}

// Anonymous reports whether the caller presented no credentials.
func (i Identity) Anonymous() bool { return i.Token == "" }

// Authenticator resolves the identity of a request. Returning an empty
// Identity with a nil error admits the request anonymously.
type Authenticator func(r *http.Request) (Identity, error)

// UserIDHeader carries the user identity set by an authenticating proxy.
// It is only honoured by TrustedHeaderAuthenticator.
const UserIDHeader = "X-User-ID"

// BearerAuthenticator reads "Authorization: Bearer <token>" (or the
// access_token query parameter, for browser WebSocket clients). The user
// identity is derived from the token; client supplied identity headers are
// ignored.
func BearerAuthenticator(r *http.Request) (Identity, error) {
	token, err := bearerToken(r)
	if err != nil || token == "" {
		return Identity{}, err
	}

	return Identity{UserID: tokenUserID(token), Token: token}, nil
}

// TrustedHeaderAuthenticator is BearerAuthenticator for deployments behind
// a proxy that authenticates users and sets X-User-ID. The header is taken
// as a trusted identity; without it the identity is derived from the token.
func TrustedHeaderAuthenticator(r *http.Request) (Identity, error) {
	id, err := BearerAuthenticator(r)
	if err != nil || id.Anonymous() {
		return id, err
	}

	if userID := strings.TrimSpace(r.Header.Get(UserIDHeader)); userID != "" {
		id.UserID = userID
		id.Trusted = true
	}

	return id, nil
}

func bearerToken(r *http.Request) (string, error) {
	if h := r.Header.Get(echo.HeaderAuthorization); h != "" {
		scheme, value, ok := strings.Cut(h, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(value) == "" {
			return "", ErrUnauthorized
		}
		return strings.TrimSpace(value), nil
	}

	return r.URL.Query().Get("access_token"), nil
}

func tokenUserID(token string) string {
	sum := sha256.Sum256([]byte(token))
	return "user-" + hex.EncodeToString(sum[:8])
}

const identityKey = "chat.identity"

// authMiddleware authenticates every request and records the caller's token
// in the credential store under the caller's identity. An untrusted caller
// cannot replace an unexpired token held by the same identity.
func authMiddleware(auth Authenticator, creds *credential.Store, required bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id, err := auth(c.Request())
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid credentials")
			}

			if id.Anonymous() && required {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing bearer token")
			}

			if !id.Anonymous() && creds != nil {
				if id.Trusted {
					creds.Put(id.UserID, id.Token)
				} else if err := creds.Claim(id.UserID, id.Token); err != nil {
					return echo.NewHTTPError(http.StatusUnauthorized, "invalid credentials")
				}
			}

			c.Set(identityKey, id)

			return next(c)
		}
	}
}

func identityFrom(c echo.Context) Identity {
	id, _ := c.Get(identityKey).(Identity)
	return id
}
