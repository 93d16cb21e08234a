package identity

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/fablab-reservation/internal/config"
)

func newIdP(t *testing.T, deleteStatus int, deletes *int32) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.Form.Get("grant_type"))
		assert.Equal(t, "lab-api", r.Form.Get("audience"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"access_token": "admin-token", "token_type": "Bearer", "expires_in": 3600})
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer good" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"sub": "auth0|123", "email": " Ana@School.EDU ", "name": "Ana"})
	})
	mux.HandleFunc("/api/v2/users/", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "Bearer admin-token", r.Header.Get("Authorization"))
		assert.Equal(t, "/api/v2/users/auth0|123", r.URL.Path)
		atomic.AddInt32(deletes, 1)
		w.WriteHeader(deleteStatus)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func provider(srv *httptest.Server) *HTTPProvider {
	return NewHTTPProvider(config.IdentityConfig{
		BaseURL:      srv.URL,
		ClientID:     "id",
		ClientSecret: "secret",
		Audience:     "lab-api",
	}, srv.Client())
}

func TestUserInfo(t *testing.T) {
	var n int32
	p := provider(newIdP(t, http.StatusNoContent, &n))

	prof, err := p.UserInfo(context.Background(), "good")
	require.NoError(t, err)
	assert.Equal(t, Profile{Subject: "auth0|123", Email: "ana@school.edu", Name: "Ana"}, prof)

	_, err = p.UserInfo(context.Background(), "bad")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestDeleteUser(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr bool
	}{
		{"no content", http.StatusNoContent, false},
		{"already gone", http.StatusNotFound, false},
		{"server error", http.StatusInternalServerError, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var n int32
			p := provider(newIdP(t, tt.status, &n))
			err := p.DeleteUser(context.Background(), "auth0|123")
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, int32(1), atomic.LoadInt32(&n), "no retries")
		})
	}
}
