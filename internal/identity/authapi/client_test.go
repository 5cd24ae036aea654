package authapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"caretrip/internal/identity"
	"caretrip/internal/platform/config"
	"caretrip/pkg/domain"
	"caretrip/pkg/platform/sentinel"
)

type AuthAPISuite struct {
	suite.Suite
	ctx context.Context
}

func (s *AuthAPISuite) SetupSuite() {
	s.ctx = context.Background()
}

func TestAuthAPISuite(t *testing.T) {
	suite.Run(t, new(AuthAPISuite))
}

func (s *AuthAPISuite) newClient(handler http.HandlerFunc) (*Client, *httptest.Server) {
	server := httptest.NewServer(handler)
	s.T().Cleanup(server.Close)
	client := New(config.IdentityConfig{
		BaseURL:     server.URL,
		ServiceKey:  "service-key",
		CallTimeout: 2 * time.Second,
	})
	return client, server
}

func (s *AuthAPISuite) TestCreateSendsServiceKeyAndDecodesIdentity() {
	identityID := uuid.NewString()
	client, _ := s.newClient(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(s.T(), http.MethodPost, r.Method)
		assert.Equal(s.T(), "/admin/users", r.URL.Path)
		assert.Equal(s.T(), "Bearer service-key", r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(s.T(), json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(s.T(), "ana@clinic.example.com", body["email"])
		assert.Equal(s.T(), "staff", body["user_metadata"].(map[string]any)["account_type"])

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":            identityID,
			"email":         "ana@clinic.example.com",
			"user_metadata": map[string]any{"account_type": "staff"},
		})
	})

	ident, err := client.Create(s.ctx, identity.CreateParams{
		Email:    "ana@clinic.example.com",
		Metadata: map[string]any{"account_type": "staff"},
	})
	require.NoError(s.T(), err)
	assert.Equal(s.T(), identityID, ident.ID.String())
	assert.Equal(s.T(), "staff", ident.Metadata["account_type"])
}

func (s *AuthAPISuite) TestCreateConflictByStatusAndByErrorCode() {
	s.Run("409 status", func() {
		client, _ := s.newClient(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusConflict)
		})
		_, err := client.Create(s.ctx, identity.CreateParams{Email: "dup@example.com"})
		assert.ErrorIs(s.T(), err, sentinel.ErrConflict)
	})

	s.Run("422 with email_exists code", func() {
		client, _ := s.newClient(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusUnprocessableEntity)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"error_code": "email_exists",
				"msg":        "A user with this email address has already been registered",
			})
		})
		_, err := client.Create(s.ctx, identity.CreateParams{Email: "dup@example.com"})
		assert.ErrorIs(s.T(), err, sentinel.ErrConflict)
	})
}

func (s *AuthAPISuite) TestFindByEmail() {
	identityID := uuid.NewString()
	client, _ := s.newClient(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(s.T(), "ana@clinic.example.com", r.URL.Query().Get("email"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"users": []map[string]any{{
				"id":                 identityID,
				"email":              "ana@clinic.example.com",
				"email_confirmed_at": time.Now(),
			}},
		})
	})

	ident, err := client.FindByEmail(s.ctx, "ana@clinic.example.com")
	require.NoError(s.T(), err)
	assert.Equal(s.T(), identityID, ident.ID.String())
	assert.True(s.T(), ident.Confirmed)
}

func (s *AuthAPISuite) TestFindByEmail_EmptyListIsNotFound() {
	client, _ := s.newClient(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"users": []any{}})
	})

	_, err := client.FindByEmail(s.ctx, "nobody@example.com")
	assert.ErrorIs(s.T(), err, sentinel.ErrNotFound)
}

func (s *AuthAPISuite) TestDeleteTreatsNotFoundAsSuccess() {
	client, _ := s.newClient(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	err := client.Delete(s.ctx, domain.IdentityID(uuid.New()))
	assert.NoError(s.T(), err, "compensation must tolerate an already-deleted identity")
}

func (s *AuthAPISuite) TestGenerateLink() {
	identityID := uuid.NewString()
	client, _ := s.newClient(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(s.T(), "/admin/generate_link", r.URL.Path)

		var body map[string]any
		require.NoError(s.T(), json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(s.T(), "invite", body["type"])
		assert.Equal(s.T(), "https://app.example/onboarding", body["redirect_to"])

		_ = json.NewEncoder(w).Encode(map[string]any{
			"action_link": "https://auth.example/verify?token=tok",
			"user_id":     identityID,
		})
	})

	link, err := client.GenerateLink(s.ctx, identity.LinkInvite, "ana@clinic.example.com", "https://app.example/onboarding")
	require.NoError(s.T(), err)
	assert.Equal(s.T(), identityID, link.IdentityID.String())
	assert.Contains(s.T(), link.URL, "token=tok")
}

func (s *AuthAPISuite) TestServerErrorsAreUnavailable() {
	client, _ := s.newClient(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := client.FindByEmail(s.ctx, "ana@clinic.example.com")
	assert.ErrorIs(s.T(), err, sentinel.ErrUnavailable)
}

func (s *AuthAPISuite) TestUnreachableServerIsUnavailable() {
	client := New(config.IdentityConfig{
		BaseURL:     "http://127.0.0.1:1",
		CallTimeout: 500 * time.Millisecond,
	})

	_, err := client.FindByEmail(s.ctx, "ana@clinic.example.com")
	assert.ErrorIs(s.T(), err, sentinel.ErrUnavailable)
}
