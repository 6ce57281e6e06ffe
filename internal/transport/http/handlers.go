package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/pribylovaa/go-session-core/internal/auth"
	"github.com/pribylovaa/go-session-core/internal/service"
	"github.com/pribylovaa/go-session-core/internal/storage"
	"github.com/pribylovaa/go-session-core/internal/token"
)

type handlers struct {
	auth *auth.Auth
}

func newHandlers(a *auth.Auth) *handlers {
	return &handlers{auth: a}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Device   string `json:"device,omitempty"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type logoutRequest struct {
	AccessToken  string `json:"access_token,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

type changePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

type sessionResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

type claimsResponse struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

func (h *handlers) Login(w http.ResponseWriter, r *http.Request) {
	var in loginRequest
	if err := decodeStrict(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_argument", "invalid request body")
		return
	}

	session, err := h.auth.Login(r.Context(), in.Username, in.Password, in.Device)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, sessionResponse{
		AccessToken:  session.AccessToken,
		RefreshToken: session.RefreshToken,
		ExpiresIn:    int64(session.AccessTTL.Seconds()),
	})
}

func (h *handlers) Refresh(w http.ResponseWriter, r *http.Request) {
	var in refreshRequest
	if err := decodeStrict(r, &in); err != nil || in.RefreshToken == "" {
		writeError(w, http.StatusBadRequest, "invalid_argument", "invalid request body")
		return
	}

	session, err := h.auth.Refresh(r.Context(), in.RefreshToken)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, sessionResponse{
		AccessToken:  session.AccessToken,
		RefreshToken: session.RefreshToken,
		ExpiresIn:    int64(session.AccessTTL.Seconds()),
	})
}

func (h *handlers) Logout(w http.ResponseWriter, r *http.Request) {
	var in logoutRequest
	if err := decodeStrict(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_argument", "invalid request body")
		return
	}

	if in.AccessToken == "" {
		in.AccessToken = bearerToken(r)
	}

	if err := h.auth.Logout(r.Context(), in.AccessToken, in.RefreshToken); err != nil {
		writeDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// LogoutAll отзывает все сессии владельца предъявленного access-токена.
func (h *handlers) LogoutAll(w http.ResponseWriter, r *http.Request) {
	claims, err := h.auth.Authenticate(r.Context(), bearerToken(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	count, err := h.auth.LogoutAll(r.Context(), claims.UserID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int64{"revoked": count})
}

func (h *handlers) Validate(w http.ResponseWriter, r *http.Request) {
	claims, err := h.auth.Authenticate(r.Context(), bearerToken(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, claimsResponse{
		UserID:   claims.UserID,
		Username: claims.Username,
		Email:    claims.Email,
		Role:     claims.Role,
	})
}

func (h *handlers) ChangePassword(w http.ResponseWriter, r *http.Request) {
	claims, err := h.auth.Authenticate(r.Context(), bearerToken(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	var in changePasswordRequest
	if err := decodeStrict(r, &in); err != nil || in.NewPassword == "" {
		writeError(w, http.StatusBadRequest, "invalid_argument", "invalid request body")
		return
	}

	if err := h.auth.ChangePassword(r.Context(), claims.UserID, in.OldPassword, in.NewPassword); err != nil {
		writeDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// bearerToken достаёт токен из Authorization: Bearer <...>.
func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return strings.TrimSpace(h[7:])
	}

	return ""
}

// writeJSON — единый ответ JSON с нужным Content-Type.
func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

// decodeStrict — строгий JSON-декодер: запрещаем неизвестные поля.
func decodeStrict(r *http.Request, value any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(value)
}

type errorResponse struct {
	Error apiError `json:"error"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: apiError{Code: code, Message: message}})
}

// writeDomainError маппит доменные ошибки в HTTP-статусы.
// Краткие безопасные message, без утечки деталей.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrAccessRevoked),
		errors.Is(err, service.ErrRefreshInvalid),
		errors.Is(err, service.ErrRefreshExpired),
		errors.Is(err, service.ErrUserInactive),
		errors.Is(err, token.ErrMalformed),
		errors.Is(err, token.ErrBadSignature),
		errors.Is(err, token.ErrExpired):
		writeError(w, http.StatusUnauthorized, "unauthenticated", "authentication failed")
	case errors.Is(err, storage.ErrUnavailable):
		writeError(w, http.StatusServiceUnavailable, "unavailable", "temporarily unavailable")
	default:
		writeError(w, http.StatusInternalServerError, "internal", "internal error")
	}
}
