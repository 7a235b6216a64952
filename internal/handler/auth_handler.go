package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"go-auth-service/internal/middleware"
	"go-auth-service/internal/model"
	"go-auth-service/internal/service"
	"go-auth-service/pkg/apierror"
)

const refreshCookieName = "refreshToken"

type AuthHandler struct {
	service       *service.AuthService
	secureCookies bool
}

func NewAuthHandler(service *service.AuthService, secureCookies bool) *AuthHandler {
	return &AuthHandler{service: service, secureCookies: secureCookies}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var payload model.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, apierror.New("BAD_REQUEST", "invalid JSON body", "", http.StatusBadRequest))
		return
	}

	if err := validateRegister(payload); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.service.Register(r.Context(), payload)
	if err != nil {
		writeError(w, err)
		return
	}
	if !result.Authenticated {
		writeError(w, apierror.New("BAD_REQUEST", result.Message, "", http.StatusBadRequest))
		return
	}

	writeSuccess(w, http.StatusCreated, result)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var payload model.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, apierror.New("BAD_REQUEST", "invalid JSON body", "", http.StatusBadRequest))
		return
	}

	if strings.TrimSpace(payload.Email) == "" || payload.Password == "" {
		writeError(w, apierror.New("BAD_REQUEST", "email and password are required", "", http.StatusBadRequest))
		return
	}

	result, err := h.service.Login(r.Context(), payload)
	if err != nil {
		writeError(w, err)
		return
	}
	if !result.Authenticated {
		writeError(w, apierror.New("BAD_REQUEST", result.Message, "", http.StatusBadRequest))
		return
	}

	h.setRefreshCookie(w, result.RefreshToken, result.RefreshTokenExpiration)
	writeSuccess(w, http.StatusOK, result)
}

// Refresh rotates the refresh token taken from the JSON body or, for
// browser clients, from the secure cookie.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	result, err := h.service.RefreshToken(r.Context(), h.refreshTokenFromRequest(r))
	if err != nil {
		writeError(w, err)
		return
	}
	if !result.Authenticated {
		writeError(w, apierror.New("BAD_REQUEST", result.Message, "", http.StatusBadRequest))
		return
	}

	h.setRefreshCookie(w, result.RefreshToken, result.RefreshTokenExpiration)
	writeSuccess(w, http.StatusOK, result)
}

// Revoke invalidates a refresh token outside of rotation (logout,
// device revocation). A missing or inactive token is a bad request,
// never a server fault.
func (h *AuthHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	tokenString := h.refreshTokenFromRequest(r)
	if tokenString == "" {
		writeError(w, apierror.New("BAD_REQUEST", "Token is required", "", http.StatusBadRequest))
		return
	}

	revoked, err := h.service.RevokeToken(r.Context(), tokenString)
	if err != nil {
		writeError(w, err)
		return
	}
	if !revoked {
		writeError(w, apierror.New("BAD_REQUEST", "Token is invalid", "", http.StatusBadRequest))
		return
	}

	h.clearRefreshCookie(w)
	writeSuccess(w, http.StatusOK, map[string]any{"revoked": true})
}

func (h *AuthHandler) AddRole(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var payload model.AddRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, apierror.New("BAD_REQUEST", "invalid JSON body", "", http.StatusBadRequest))
		return
	}

	if strings.TrimSpace(payload.UserID) == "" || strings.TrimSpace(payload.Role) == "" {
		writeError(w, apierror.New("BAD_REQUEST", "user_id and role are required", "", http.StatusBadRequest))
		return
	}

	if err := h.service.AddRole(r.Context(), payload.UserID, payload.Role); err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]any{"assigned": true, "role": payload.Role})
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, apierror.New("UNAUTHORIZED", "authentication required", "", http.StatusUnauthorized))
		return
	}

	user, err := h.service.GetUserByID(r.Context(), claims.UserID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, user)
}

func (h *AuthHandler) refreshTokenFromRequest(r *http.Request) string {
	var payload model.RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err == nil {
		if token := strings.TrimSpace(payload.RefreshToken); token != "" {
			return token
		}
	}

	if cookie, err := r.Cookie(refreshCookieName); err == nil {
		return strings.TrimSpace(cookie.Value)
	}

	return ""
}

func (h *AuthHandler) setRefreshCookie(w http.ResponseWriter, token string, expires time.Time) {
	if token == "" {
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    token,
		Path:     "/api/v1/auth",
		Expires:  expires,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteNoneMode,
	})
}

func (h *AuthHandler) clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    "",
		Path:     "/api/v1/auth",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteNoneMode,
	})
}

func validateRegister(payload model.RegisterRequest) error {
	type rule struct {
		field string
		value string
		max   int
	}

	for _, r := range []rule{
		{"first_name", strings.TrimSpace(payload.FirstName), 50},
		{"last_name", strings.TrimSpace(payload.LastName), 50},
		{"username", strings.TrimSpace(payload.Username), 50},
	} {
		if r.value == "" {
			return apierror.New("VALIDATION_FAILURE", fmt.Sprintf("%s is required", r.field), r.field, http.StatusBadRequest)
		}
		if len(r.value) > r.max {
			return apierror.New("VALIDATION_FAILURE", fmt.Sprintf("%s must not exceed %d characters", r.field, r.max), r.field, http.StatusBadRequest)
		}
	}

	email := strings.TrimSpace(payload.Email)
	if email == "" {
		return apierror.New("VALIDATION_FAILURE", "email is required", "email", http.StatusBadRequest)
	}
	if parsed, err := mail.ParseAddress(email); err != nil || parsed.Address != email {
		return apierror.New("VALIDATION_FAILURE", "invalid email address", "email", http.StatusBadRequest)
	}

	if len(payload.Password) < 6 || len(payload.Password) > 100 {
		return apierror.New("VALIDATION_FAILURE", "password must be between 6 and 100 characters", "password", http.StatusBadRequest)
	}

	return nil
}
