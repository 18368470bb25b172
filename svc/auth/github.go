package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"

	"github.com/dmitrymomot/devscout/pkg/session"
)

const githubAPIBaseURL = "https://api.github.com"

// GitHubConfig holds GitHub OAuth app credentials.
type GitHubConfig struct {
	ClientID     string `env:"GITHUB_OAUTH_CLIENT_ID,required"`
	ClientSecret string `env:"GITHUB_OAUTH_CLIENT_SECRET,required"`
	RedirectURI  string `env:"OAUTH_REDIRECT_URI" envDefault:"http://localhost:8080/auth/callback"`
}

// GitHubProvider implements Provider for GitHub OAuth apps.
type GitHubProvider struct {
	oauth      *oauth2.Config
	httpClient *http.Client
	apiBaseURL string
}

// GitHubOption configures the provider, mainly for tests.
type GitHubOption func(*GitHubProvider)

// WithHTTPClient overrides the HTTP client used for API calls.
func WithHTTPClient(c *http.Client) GitHubOption {
	return func(p *GitHubProvider) {
		if c != nil {
			p.httpClient = c
		}
	}
}

// WithAPIBaseURL points the provider at a different API host.
func WithAPIBaseURL(baseURL string) GitHubOption {
	return func(p *GitHubProvider) {
		if baseURL != "" {
			p.apiBaseURL = baseURL
		}
	}
}

// NewGitHubProvider creates a GitHub-backed identity provider requesting
// the read:user and user:email scopes.
func NewGitHubProvider(cfg GitHubConfig, opts ...GitHubOption) *GitHubProvider {
	p := &GitHubProvider{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Scopes:       []string{"read:user", "user:email"},
			Endpoint:     github.Endpoint,
		},
		httpClient: http.DefaultClient,
		apiBaseURL: githubAPIBaseURL,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

func (p *GitHubProvider) AuthURL(state string) string {
	return p.oauth.AuthCodeURL(state)
}

func (p *GitHubProvider) ExchangeCode(ctx context.Context, code string) (string, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)

	token, err := p.oauth.Exchange(ctx, code)
	if err != nil {
		return "", errors.Join(ErrExchangeFailed, err)
	}
	if token.AccessToken == "" {
		return "", ErrExchangeFailed
	}
	return token.AccessToken, nil
}

func (p *GitHubProvider) FetchIdentity(ctx context.Context, accessToken string) (session.Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.apiBaseURL+"/user", nil)
	if err != nil {
		return session.Identity{}, errors.Join(ErrIdentityFetchFailed, err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/vnd.github.v3+json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return session.Identity{}, errors.Join(ErrIdentityFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return session.Identity{}, fmt.Errorf("%w: unexpected status %d", ErrIdentityFetchFailed, resp.StatusCode)
	}

	var payload struct {
		ID        int64  `json:"id"`
		Login     string `json:"login"`
		Name      string `json:"name"`
		Email     string `json:"email"`
		AvatarURL string `json:"avatar_url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return session.Identity{}, errors.Join(ErrIdentityFetchFailed, err)
	}

	return session.Identity{
		UserID:    payload.ID,
		Login:     payload.Login,
		Name:      payload.Name,
		Email:     payload.Email,
		AvatarURL: payload.AvatarURL,
	}, nil
}

// Revoke deletes the whole OAuth app grant, not just the token, so the
// next login shows the GitHub authorization screen again.
func (p *GitHubProvider) Revoke(ctx context.Context, accessToken string) error {
	body, err := json.Marshal(map[string]string{"access_token": accessToken})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/applications/%s/grant", p.apiBaseURL, p.oauth.ClientID)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.SetBasicAuth(p.oauth.ClientID, p.oauth.ClientSecret)
	req.Header.Set("Accept", "application/vnd.github.v3+json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	// 404 means the grant is already gone, which is the desired state.
	if resp.StatusCode >= 300 && resp.StatusCode != http.StatusNotFound {
		return fmt.Errorf("revoke grant: unexpected status %d", resp.StatusCode)
	}
	return nil
}
