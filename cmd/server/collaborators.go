package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/dmitrymomot/devscout/pkg/session"
)

// upstreamConfig points at the paid collaborator services.
type upstreamConfig struct {
	ProfileAPIURL string        `env:"PROFILE_API_URL,required"`
	SearchAPIURL  string        `env:"SEARCH_API_URL,required"`
	Timeout       time.Duration `env:"UPSTREAM_TIMEOUT" envDefault:"60s"`
}

// upstream is a thin JSON-over-HTTP client for both collaborators. The
// real work happens behind these endpoints; this binary only meters
// and forwards.
type upstream struct {
	cfg    upstreamConfig
	client *http.Client
}

func newUpstream(cfg upstreamConfig) *upstream {
	return &upstream{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

func (u *upstream) Generate(ctx context.Context, identity session.Identity, input json.RawMessage) (json.RawMessage, error) {
	return u.post(ctx, u.cfg.ProfileAPIURL, map[string]any{
		"login": identity.Login,
		"name":  identity.DisplayName(),
		"input": input,
	})
}

func (u *upstream) Search(ctx context.Context, profile, query json.RawMessage) (json.RawMessage, error) {
	return u.post(ctx, u.cfg.SearchAPIURL, map[string]any{
		"profile": profile,
		"query":   query,
	})
}

func (u *upstream) post(ctx context.Context, url string, payload map[string]any) (json.RawMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := u.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("upstream %s: unexpected status %d", url, resp.StatusCode)
	}

	var out json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}
