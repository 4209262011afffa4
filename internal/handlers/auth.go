package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/alexedwards/scs/v2"
	"gorm.io/gorm"

	"foodgram/internal/accounts"
	"foodgram/internal/apperr"
	"foodgram/internal/composition"
	"foodgram/internal/config"
	applog "foodgram/internal/log"
	"foodgram/internal/relations"
	"foodgram/internal/shopping"
	"foodgram/models"
)

const (
	sessionAuthenticatedKey = "auth:authenticated"
	sessionUserIDKey        = "auth:user:id"
	sessionUserEmailKey     = "auth:user:email"
	sessionUserNameKey      = "auth:user:name"
)

var (
	sessionManager *scs.SessionManager
	database       *gorm.DB
	limits         = config.DefaultLimits()
	tokens         *accounts.Tokens
)

// Configure installs the shared dependencies used by the HTTP handlers.
func Configure(sm *scs.SessionManager, db *gorm.DB, l config.Limits, t *accounts.Tokens) {
	sessionManager = sm
	database = db
	limits = l
	tokens = t
}

func accountService() *accounts.Service {
	return accounts.NewService(database, limits)
}

func recipeValidator() *composition.Validator {
	return composition.NewValidator(composition.NewCatalog(database), limits)
}

func recipeWriter() *composition.Writer {
	return composition.NewWriter(database, limits)
}

func relationGuard() *relations.Guard {
	return relations.NewGuard(database)
}

func shoppingEngine() *shopping.Engine {
	return shopping.NewEngine(database)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AuthToken string `json:"auth_token"`
}

// TokenLogin checks credentials, starts a session and, when token auth is
// configured, returns a signed API token.
func TokenLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if database == nil {
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
		return
	}

	var payload loginRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		applog.Debug(r.Context(), "invalid login payload", "error", err)
		writeJSONError(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	user, err := accountService().Authenticate(r.Context(), payload.Email, payload.Password)
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	if sessionManager != nil {
		if err := establishSession(r, user); err != nil {
			applog.Error(r.Context(), "failed to establish session", "error", err)
			writeJSONError(w, http.StatusInternalServerError, "unable to sign in")
			return
		}
	}

	response := tokenResponse{}
	if tokens.Enabled() {
		token, _, err := tokens.Issue(user)
		if err != nil {
			applog.Error(r.Context(), "failed to issue token", "error", err, "userID", user.ID)
			writeJSONError(w, http.StatusInternalServerError, "unable to sign in")
			return
		}
		response.AuthToken = token
	}

	applog.Info(r.Context(), "user logged in", "userID", user.ID)
	writeJSON(w, http.StatusOK, response)
}

// TokenLogout destroys the current session. Signed tokens simply expire.
// The route is mounted behind RequireAuthentication.
func TokenLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if ActiveSession(r) {
		if err := sessionManager.Destroy(r.Context()); err != nil {
			applog.Error(r.Context(), "failed to destroy session", "error", err)
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func establishSession(r *http.Request, user *models.User) error {
	if sessionManager == nil {
		return errors.New("session manager not configured")
	}
	if err := sessionManager.RenewToken(r.Context()); err != nil {
		return err
	}
	sessionManager.Put(r.Context(), sessionAuthenticatedKey, true)
	sessionManager.Put(r.Context(), sessionUserIDKey, int(user.ID))
	sessionManager.Put(r.Context(), sessionUserEmailKey, user.Email)
	sessionManager.Put(r.Context(), sessionUserNameKey, user.Username)
	return nil
}

// RequireAuthentication rejects requests without a session or API token.
func RequireAuthentication(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := currentUserID(r); !ok {
			writeJSONError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ActiveSession returns true when the current request has an authenticated session.
func ActiveSession(r *http.Request) bool {
	if sessionManager == nil {
		return false
	}
	return sessionManager.GetBool(r.Context(), sessionAuthenticatedKey) && sessionManager.GetInt(r.Context(), sessionUserIDKey) > 0
}

// currentUserID resolves the caller from an Authorization header
// ("Token <jwt>" or "Bearer <jwt>") or, failing that, the session.
func currentUserID(r *http.Request) (uint, bool) {
	if header := strings.TrimSpace(r.Header.Get("Authorization")); header != "" {
		scheme, raw, found := strings.Cut(header, " ")
		if !found || !(strings.EqualFold(scheme, "Token") || strings.EqualFold(scheme, "Bearer")) {
			return 0, false
		}
		id, err := tokens.Parse(raw)
		if err != nil {
			applog.Debug(r.Context(), "rejected api token", "error", err)
			return 0, false
		}
		return id, userExists(r, id)
	}

	if sessionManager == nil {
		return 0, false
	}
	id := sessionManager.GetInt(r.Context(), sessionUserIDKey)
	if id <= 0 {
		return 0, false
	}
	return uint(id), userExists(r, uint(id))
}

// userExists guards against tokens and sessions that outlive their account.
// Without a database there is nothing to check against.
func userExists(r *http.Request, id uint) bool {
	if database == nil {
		return true
	}
	var count int64
	if err := database.WithContext(r.Context()).Model(&models.User{}).Where("id = ?", id).Count(&count).Error; err != nil {
		applog.Error(r.Context(), "failed to resolve current user", "error", err, "userID", id)
		return false
	}
	if count == 0 {
		applog.Debug(r.Context(), "credentials reference a deleted user", "userID", id)
		return false
	}
	return true
}

// writeAppError maps core errors onto JSON responses.
func writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperr.StatusCode(err)
	appErr, ok := apperr.As(err)
	if !ok || status == http.StatusInternalServerError {
		applog.Error(r.Context(), "request failed", "error", err, "path", r.URL.Path)
		writeJSONError(w, http.StatusInternalServerError, "internal error")
		return
	}
	applog.Debug(r.Context(), "request rejected", "code", appErr.Code(), "error", appErr.Message)
	writeJSON(w, status, errorResponse{Error: appErr.Message, Code: appErr.Code(), IDs: appErr.IDs})
}
