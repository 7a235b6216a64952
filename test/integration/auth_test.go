//go:build integration

package integration

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegisterLoginRefreshFlow(t *testing.T) {
	server, _ := newAuthServer(t)

	login := registerAndLogin(t, server.URL, "alice", "alice@x.com", "pw123456")
	require.True(t, login.Authenticated)
	require.Equal(t, []string{"User"}, login.Roles)
	require.NotEmpty(t, login.AccessToken)
	require.NotEmpty(t, login.RefreshToken)

	meResp, meEnv := getJSON(t, server.URL+"/api/v1/auth/me", login.AccessToken)
	require.Equal(t, http.StatusOK, meResp.StatusCode)
	require.True(t, meEnv.Success)

	refreshResp, refreshEnv := postJSON(t, server.URL+"/api/v1/auth/refresh", map[string]string{
		"refresh_token": login.RefreshToken,
	}, "")
	require.Equal(t, http.StatusOK, refreshResp.StatusCode)
	rotated := decodeAuthResult(t, refreshEnv)
	require.NotEqual(t, login.RefreshToken, rotated.RefreshToken)

	// The rotated-out token is single use.
	replayResp, replayEnv := postJSON(t, server.URL+"/api/v1/auth/refresh", map[string]string{
		"refresh_token": login.RefreshToken,
	}, "")
	require.Equal(t, http.StatusBadRequest, replayResp.StatusCode)
	require.Equal(t, "Inactive token", replayEnv.Error.Message)
}

func TestRefreshCookieTransport(t *testing.T) {
	server, _ := newAuthServer(t)

	login := registerAndLogin(t, server.URL, "carol", "carol@x.com", "pw123456")

	// Refresh with the cookie only, no body token.
	req, err := http.NewRequest(http.MethodPost, server.URL+"/api/v1/auth/refresh", nil)
	require.NoError(t, err)
	req.AddCookie(&http.Cookie{Name: "refreshToken", Value: login.RefreshToken})

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var rotatedCookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == "refreshToken" {
			rotatedCookie = c
		}
	}
	require.NotNil(t, rotatedCookie)
	require.NotEqual(t, login.RefreshToken, rotatedCookie.Value)
	require.True(t, rotatedCookie.HttpOnly)
}

func TestLoginFailuresAreGeneric(t *testing.T) {
	server, _ := newAuthServer(t)
	registerAndLogin(t, server.URL, "dave", "dave@x.com", "pw123456")

	wrongPassword, env1 := postJSON(t, server.URL+"/api/v1/auth/login", map[string]string{
		"email": "dave@x.com", "password": "wrongpw",
	}, "")
	require.Equal(t, http.StatusBadRequest, wrongPassword.StatusCode)

	unknownEmail, env2 := postJSON(t, server.URL+"/api/v1/auth/login", map[string]string{
		"email": "nobody@x.com", "password": "pw123456",
	}, "")
	require.Equal(t, http.StatusBadRequest, unknownEmail.StatusCode)

	require.Equal(t, "Email or Password is incorrect", env1.Error.Message)
	require.Equal(t, env1.Error.Message, env2.Error.Message)
}

func TestRegisterValidation(t *testing.T) {
	server, _ := newAuthServer(t)

	resp, env := postJSON(t, server.URL+"/api/v1/auth/register", map[string]string{
		"first_name": "Eve",
		"last_name":  "Adams",
		"username":   "eve",
		"email":      "not-an-email",
		"password":   "pw123456",
	}, "")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "VALIDATION_FAILURE", env.Error.Code)

	short, shortEnv := postJSON(t, server.URL+"/api/v1/auth/register", map[string]string{
		"first_name": "Eve",
		"last_name":  "Adams",
		"username":   "eve",
		"email":      "eve@x.com",
		"password":   "pw1",
	}, "")
	require.Equal(t, http.StatusBadRequest, short.StatusCode)
	require.Equal(t, "VALIDATION_FAILURE", shortEnv.Error.Code)
}

func TestRevokeEndpoint(t *testing.T) {
	server, _ := newAuthServer(t)
	login := registerAndLogin(t, server.URL, "frank", "frank@x.com", "pw123456")

	revokeResp, _ := postJSON(t, server.URL+"/api/v1/auth/revoke", map[string]string{
		"refresh_token": login.RefreshToken,
	}, "")
	require.Equal(t, http.StatusOK, revokeResp.StatusCode)

	// The revoked token can no longer refresh.
	refreshResp, env := postJSON(t, server.URL+"/api/v1/auth/refresh", map[string]string{
		"refresh_token": login.RefreshToken,
	}, "")
	require.Equal(t, http.StatusBadRequest, refreshResp.StatusCode)
	require.Equal(t, "Inactive token", env.Error.Message)

	// Revoking an unknown token is a bad request, not a fault.
	badResp, _ := postJSON(t, server.URL+"/api/v1/auth/revoke", map[string]string{
		"refresh_token": "unknown",
	}, "")
	require.Equal(t, http.StatusBadRequest, badResp.StatusCode)
}

func TestRoleGatedEndpoints(t *testing.T) {
	server, svc := newAuthServer(t)
	login := registerAndLogin(t, server.URL, "grace", "grace@x.com", "pw123456")

	// A plain user cannot reach Admin-gated routes.
	securedResp, _ := getJSON(t, server.URL+"/api/v1/secured", login.AccessToken)
	require.Equal(t, http.StatusForbidden, securedResp.StatusCode)

	// Promote via the service, then log in again for fresh role claims.
	me, meEnv := getJSON(t, server.URL+"/api/v1/auth/me", login.AccessToken)
	require.Equal(t, http.StatusOK, me.StatusCode)
	var profile struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(meEnv.Data, &profile))
	require.NoError(t, svc.AddRole(context.Background(), profile.ID, "Admin"))

	relogin, env := postJSON(t, server.URL+"/api/v1/auth/login", map[string]string{
		"email": "grace@x.com", "password": "pw123456",
	}, "")
	require.Equal(t, http.StatusOK, relogin.StatusCode)
	admin := decodeAuthResult(t, env)

	securedOK, _ := getJSON(t, server.URL+"/api/v1/secured", admin.AccessToken)
	require.Equal(t, http.StatusOK, securedOK.StatusCode)

	// Re-login reused the refresh token issued before promotion.
	require.Equal(t, login.RefreshToken, admin.RefreshToken)
}

func TestProtectedEndpointRejectsMissingToken(t *testing.T) {
	server, _ := newAuthServer(t)

	resp, _ := getJSON(t, server.URL+"/api/v1/auth/me", "")
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	bad, _ := getJSON(t, server.URL+"/api/v1/auth/me", "garbage-token")
	require.Equal(t, http.StatusUnauthorized, bad.StatusCode)
}
