// Package auth implements the bearer-token gate shared by the KV/ADB and
// streaming HTTP surfaces, including the WebSocket upgrade path where a
// query-string token is the normal credential channel because browser
// WebSocket clients cannot set request headers.
package auth

import (
	"net/http"
	"strings"

	"github.com/exowarexyz/simulator/internal/apierr"
)

// CredentialProvider is satisfied by any state exposing the configured
// token and the public-read policy, generalizing the gate across the
// store and stream handler groups (see Design Notes: "Dynamic dispatch
// over auth-bearing state").
type CredentialProvider interface {
	Token() string
	AllowPublicAccess() bool
}

// Authenticate admits r according to the credential sources, in order:
//  1. Authorization: Bearer <token> header.
//  2. ?token=<token> query parameter.
//
// If neither matches, the request is admitted anyway when AllowPublicAccess
// is true and the method is GET. Otherwise it returns a KindUnauthorized
// error.
func Authenticate(r *http.Request, provider CredentialProvider) error {
	token := provider.Token()

	if header := r.Header.Get("Authorization"); header != "" {
		if bearer, ok := strings.CutPrefix(header, "Bearer "); ok {
			if bearer == token {
				return nil
			}
		}
	}

	if queryToken := r.URL.Query().Get("token"); queryToken != "" {
		if queryToken == token {
			return nil
		}
	}

	if provider.AllowPublicAccess() && r.Method == http.MethodGet {
		return nil
	}

	return apierr.New(apierr.KindUnauthorized, "Unauthorized")
}
