package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/exowarexyz/simulator/internal/apierr"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	token      string
	publicRead bool
}

func (p fakeProvider) Token() string          { return p.token }
func (p fakeProvider) AllowPublicAccess() bool { return p.publicRead }

func TestNoCredentialsNoPublicAccess(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/store/kv/a2V5", nil)
	err := Authenticate(r, fakeProvider{token: "secret"})
	require.True(t, isUnauthorized(err))
}

func TestWrongBearerToken(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/store/kv/a2V5", nil)
	r.Header.Set("Authorization", "Bearer wrong")
	err := Authenticate(r, fakeProvider{token: "secret"})
	require.True(t, isUnauthorized(err))
}

func TestCorrectBearerToken(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/store/kv/a2V5", nil)
	r.Header.Set("Authorization", "Bearer secret")
	require.NoError(t, Authenticate(r, fakeProvider{token: "secret"}))
}

func TestCorrectQueryToken(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/stream/s?token=secret", nil)
	require.NoError(t, Authenticate(r, fakeProvider{token: "secret"}))
}

func TestPublicAccessAllowsGet(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/store/kv/a2V5", nil)
	require.NoError(t, Authenticate(r, fakeProvider{token: "secret", publicRead: true}))
}

func TestPublicAccessDoesNotAllowPost(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/store/kv/a2V5", nil)
	err := Authenticate(r, fakeProvider{token: "secret", publicRead: true})
	require.True(t, isUnauthorized(err))
}

func isUnauthorized(err error) bool {
	var apiErr *apierr.Error
	return errors.As(err, &apiErr) && apiErr.Kind == apierr.KindUnauthorized
}
