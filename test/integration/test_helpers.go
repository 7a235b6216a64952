//go:build integration

package integration

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"go-auth-service/internal/config"
	"go-auth-service/internal/handler"
	"go-auth-service/internal/middleware"
	"go-auth-service/internal/repository"
	"go-auth-service/internal/router"
	"go-auth-service/internal/service"
	"go-auth-service/internal/token"
)

const testJWTSecret = "integration-test-secret-0123456789"

func newAuthServer(t *testing.T) (*httptest.Server, *service.AuthService) {
	t.Helper()

	store := repository.NewMemoryStore()
	issuer := token.NewIssuer(testJWTSecret, "auth-test", "auth-test", 15*time.Minute)
	refresh := token.NewRefreshManager(240 * time.Hour)
	authService := service.NewAuthService(store, issuer, refresh)
	authMiddleware := middleware.NewAuthMiddleware(authService)
	authHandler := handler.NewAuthHandler(authService, false)

	cfg := &config.Config{
		ServerPort:       "8080",
		RequestTimeout:   30 * time.Second,
		JWTSecret:        testJWTSecret,
		JWTIssuer:        "auth-test",
		JWTAudience:      "auth-test",
		JWTAccessTTL:     15 * time.Minute,
		RefreshTokenTTL:  240 * time.Hour,
		CORSOrigins:      []string{"*"},
		RateLimitRPM:     1000,
		AuthRateLimitRPM: 1000,
	}

	health := func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}

	server := httptest.NewServer(router.New(cfg, authMiddleware, authHandler, health))
	t.Cleanup(server.Close)

	return server, authService
}

type apiEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type authResultPayload struct {
	Authenticated          bool      `json:"authenticated"`
	Message                string    `json:"message"`
	Username               string    `json:"username"`
	Email                  string    `json:"email"`
	Roles                  []string  `json:"roles"`
	AccessToken            string    `json:"access_token"`
	RefreshToken           string    `json:"refresh_token"`
	RefreshTokenExpiration time.Time `json:"refresh_token_expiration"`
}

func postJSON(t *testing.T, url string, payload any, accessToken string) (*http.Response, apiEnvelope) {
	t.Helper()

	body, err := json.Marshal(payload)
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	return resp, decodeEnvelope(t, resp.Body)
}

func getJSON(t *testing.T, url string, accessToken string) (*http.Response, apiEnvelope) {
	t.Helper()

	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	return resp, decodeEnvelope(t, resp.Body)
}

func decodeEnvelope(t *testing.T, r io.Reader) apiEnvelope {
	t.Helper()

	var env apiEnvelope
	require.NoError(t, json.NewDecoder(r).Decode(&env))
	return env
}

func decodeAuthResult(t *testing.T, env apiEnvelope) authResultPayload {
	t.Helper()

	var result authResultPayload
	require.NoError(t, json.Unmarshal(env.Data, &result))
	return result
}

func registerAndLogin(t *testing.T, baseURL string, username string, email string, password string) authResultPayload {
	t.Helper()

	resp, _ := postJSON(t, baseURL+"/api/v1/auth/register", map[string]string{
		"first_name": "Test",
		"last_name":  "User",
		"username":   username,
		"email":      email,
		"password":   password,
	}, "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	loginResp, env := postJSON(t, baseURL+"/api/v1/auth/login", map[string]string{
		"email":    email,
		"password": password,
	}, "")
	require.Equal(t, http.StatusOK, loginResp.StatusCode)

	return decodeAuthResult(t, env)
}
