// Package authapi is the identity store adapter for the external auth
// service's admin REST API. It is pure I/O: every response is translated into
// either a typed value or a sentinel error, and "already registered" answers
// surface as sentinel.ErrConflict so the saga can take the link path.
package authapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"caretrip/internal/identity"
	"caretrip/internal/platform/config"
	"caretrip/pkg/domain"
	"caretrip/pkg/platform/sentinel"
)

// Client talks to the auth service admin API using a service-role key.
type Client struct {
	baseURL    string
	serviceKey string
	http       *http.Client
}

// New builds a Client from identity configuration. The HTTP client timeout is
// the per-call budget; a timed-out call is treated like any other failed step.
func New(cfg config.IdentityConfig) *Client {
	timeout := cfg.CallTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		serviceKey: cfg.ServiceKey,
		http:       &http.Client{Timeout: timeout},
	}
}

type userPayload struct {
	ID             string         `json:"id,omitempty"`
	Email          string         `json:"email,omitempty"`
	Password       string         `json:"password,omitempty"`
	EmailConfirmed bool           `json:"email_confirm,omitempty"`
	UserMetadata   map[string]any `json:"user_metadata,omitempty"`
	ConfirmedAt    *time.Time     `json:"email_confirmed_at,omitempty"`
}

type errorPayload struct {
	Code    string `json:"error_code"`
	Message string `json:"msg"`
}

// Create provisions a new identity. Returns sentinel.ErrConflict when the
// store reports the email is already registered; that answer is authoritative
// over any pre-flight check the caller performed.
func (c *Client) Create(ctx context.Context, params identity.CreateParams) (identity.Identity, error) {
	body := userPayload{
		Email:          params.Email,
		Password:       params.Credential,
		EmailConfirmed: params.Confirmed,
		UserMetadata:   params.Metadata,
	}
	var out userPayload
	if err := c.do(ctx, http.MethodPost, "/admin/users", body, &out); err != nil {
		return identity.Identity{}, err
	}
	return decodeIdentity(out)
}

// Update patches an existing identity's credential, confirmation flag, or
// metadata. Metadata entries merge server-side.
func (c *Client) Update(ctx context.Context, id domain.IdentityID, params identity.UpdateParams) (identity.Identity, error) {
	body := map[string]any{}
	if params.Credential != nil {
		body["password"] = *params.Credential
	}
	if params.Confirmed != nil {
		body["email_confirm"] = *params.Confirmed
	}
	if params.Metadata != nil {
		body["user_metadata"] = params.Metadata
	}
	var out userPayload
	if err := c.do(ctx, http.MethodPut, "/admin/users/"+id.String(), body, &out); err != nil {
		return identity.Identity{}, err
	}
	return decodeIdentity(out)
}

// Delete removes an identity. Used only as a compensating action or explicit
// deprovisioning. Deleting an absent identity is not an error; compensation
// must be idempotent.
func (c *Client) Delete(ctx context.Context, id domain.IdentityID) error {
	err := c.do(ctx, http.MethodDelete, "/admin/users/"+id.String(), nil, nil)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil
	}
	return err
}

// Get fetches an identity with its metadata and confirmation state.
func (c *Client) Get(ctx context.Context, id domain.IdentityID) (identity.Identity, error) {
	var out userPayload
	if err := c.do(ctx, http.MethodGet, "/admin/users/"+id.String(), nil, &out); err != nil {
		return identity.Identity{}, err
	}
	return decodeIdentity(out)
}

// FindByEmail resolves the identity registered for an email address.
func (c *Client) FindByEmail(ctx context.Context, email string) (identity.Identity, error) {
	var out struct {
		Users []userPayload `json:"users"`
	}
	path := "/admin/users?email=" + url.QueryEscape(email)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return identity.Identity{}, err
	}
	if len(out.Users) == 0 {
		return identity.Identity{}, sentinel.ErrNotFound
	}
	return decodeIdentity(out.Users[0])
}

// GenerateLink asks the store for a one-time action link. The store resolves
// the target identity as part of generation.
func (c *Client) GenerateLink(ctx context.Context, kind identity.LinkType, email, redirectTo string) (identity.Link, error) {
	body := map[string]any{
		"type":        string(kind),
		"email":       email,
		"redirect_to": redirectTo,
	}
	var out struct {
		ActionLink string `json:"action_link"`
		UserID     string `json:"user_id"`
	}
	if err := c.do(ctx, http.MethodPost, "/admin/generate_link", body, &out); err != nil {
		return identity.Link{}, err
	}
	identityID, err := domain.ParseIdentityID(out.UserID)
	if err != nil {
		return identity.Link{}, fmt.Errorf("generate link: bad user id in response: %w", err)
	}
	return identity.Link{URL: out.ActionLink, IdentityID: identityID}, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.serviceKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", sentinel.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	var payload errorPayload
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	_ = json.Unmarshal(raw, &payload)

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return sentinel.ErrNotFound
	case resp.StatusCode == http.StatusConflict,
		payload.Code == "email_exists",
		payload.Code == "user_already_exists":
		return sentinel.ErrConflict
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: identity store returned %d: %s", sentinel.ErrUnavailable, resp.StatusCode, payload.Message)
	default:
		return fmt.Errorf("identity store returned %d: %s", resp.StatusCode, payload.Message)
	}
}

func decodeIdentity(p userPayload) (identity.Identity, error) {
	id, err := domain.ParseIdentityID(p.ID)
	if err != nil {
		return identity.Identity{}, fmt.Errorf("bad identity id in response: %w", err)
	}
	return identity.Identity{
		ID:        id,
		Email:     p.Email,
		Confirmed: p.EmailConfirmed || p.ConfirmedAt != nil,
		Metadata:  p.UserMetadata,
	}, nil
}
