package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/autexline/api/internal/platform/auth"
)

// staticVerifier resolves bearer tokens to fixed identities for tests.
type staticVerifier struct {
	identities map[string]*auth.Identity
}

func (v *staticVerifier) VerifyToken(_ context.Context, token string) (*auth.Identity, error) {
	identity, ok := v.identities[token]
	if !ok {
		return nil, auth.ErrTokenInvalid
	}
	return identity, nil
}

func newTestAuthenticator() *auth.Authenticator {
	return auth.NewAuthenticator(&staticVerifier{identities: map[string]*auth.Identity{
		"dealer-token": {UID: "dealer-1", Email: "d1@example.com", Name: "Dealer One", Role: "dealer", AccountStatus: "active"},
		"agent-token":  {UID: "agent-1", Email: "a1@example.com", Name: "Agent One", Role: "agent", AccountStatus: "active"},
		"admin-token":  {UID: "admin-1", Email: "admin@example.com", Name: "Admin", Role: "admin", AccountStatus: "active"},
		"other-token":  {UID: "dealer-2", Email: "d2@example.com", Name: "Dealer Two", Role: "dealer", AccountStatus: "active"},
	}})
}

func authedRequest(method, target, token, body string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}
