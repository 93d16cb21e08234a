// Package identity talks to the external identity provider that
// authenticates users.  This service never sees passwords: sign-in
// exchanges the provider's token for a profile, and account deletion
// asks the provider to forget the subject.
package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/iliyamo/fablab-reservation/internal/config"
)

// ErrUnauthorized is returned when the provider rejects a user token.
var ErrUnauthorized = errors.New("identity provider rejected token")

// Profile is the subset of the provider's userinfo response we use.
type Profile struct {
	Subject string `json:"sub"`
	Email   string `json:"email"`
	Name    string `json:"name"`
}

// Provider is the identity provider collaborator.
type Provider interface {
	UserInfo(ctx context.Context, token string) (Profile, error)
	DeleteUser(ctx context.Context, subject string) error
}

// HTTPProvider calls the provider's userinfo endpoint with the user's
// bearer token and its admin API with a client-credentials token.
// Neither call is retried.
type HTTPProvider struct {
	baseURL string
	client  *http.Client
	admin   *http.Client
}

// NewHTTPProvider builds a provider from cfg.  client is used for
// userinfo calls and as the transport of the admin client; nil means a
// client with a 10s timeout.
func NewHTTPProvider(cfg config.IdentityConfig, client *http.Client) *HTTPProvider {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	tokenURL := cfg.TokenURL
	if tokenURL == "" {
		tokenURL = strings.TrimRight(cfg.BaseURL, "/") + "/oauth/token"
	}
	cc := clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     tokenURL,
	}
	if cfg.Audience != "" {
		cc.EndpointParams = url.Values{"audience": {cfg.Audience}}
	}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, client)
	admin := cc.Client(ctx)
	admin.Timeout = client.Timeout
	return &HTTPProvider{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  client,
		admin:   admin,
	}
}

func (p *HTTPProvider) UserInfo(ctx context.Context, token string) (Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/userinfo", nil)
	if err != nil {
		return Profile{}, fmt.Errorf("build userinfo request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := p.client.Do(req)
	if err != nil {
		return Profile{}, fmt.Errorf("userinfo request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return Profile{}, ErrUnauthorized
	case resp.StatusCode != http.StatusOK:
		return Profile{}, fmt.Errorf("userinfo returned %s", resp.Status)
	}

	var prof Profile
	if err := json.NewDecoder(resp.Body).Decode(&prof); err != nil {
		return Profile{}, fmt.Errorf("decode userinfo response: %w", err)
	}
	prof.Email = strings.ToLower(strings.TrimSpace(prof.Email))
	if prof.Subject == "" || prof.Email == "" {
		return Profile{}, fmt.Errorf("userinfo response missing sub or email")
	}
	return prof, nil
}

// DeleteUser removes subject at the provider.  A 404 counts as success.
func (p *HTTPProvider) DeleteUser(ctx context.Context, subject string) error {
	u := p.baseURL + "/api/v2/users/" + url.PathEscape(subject)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, u, nil)
	if err != nil {
		return fmt.Errorf("build delete request: %w", err)
	}
	resp, err := p.admin.Do(req)
	if err != nil {
		return fmt.Errorf("delete user request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent, http.StatusAccepted, http.StatusNotFound:
		return nil
	}
	return fmt.Errorf("delete user returned %s", resp.Status)
}
