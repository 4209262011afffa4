package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"foodgram/internal/accounts"
	applog "foodgram/internal/log"
	"foodgram/internal/relations"
)

type signupRequest struct {
	Email     string `json:"email"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Password  string `json:"password"`
}

type setPasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// Users serves /api/users/ and its nested resources.
func Users(w http.ResponseWriter, r *http.Request) {
	if database == nil {
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
		return
	}

	segments := splitResourcePath(r.URL.Path, "/api/users")
	switch {
	case len(segments) == 0:
		switch r.Method {
		case http.MethodGet:
			listUsers(w, r)
		case http.MethodPost:
			signup(w, r)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	case len(segments) == 1 && segments[0] == "me":
		switch r.Method {
		case http.MethodGet:
			currentUser(w, r)
		case http.MethodDelete:
			deleteAccount(w, r)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	case len(segments) == 1 && segments[0] == "set_password":
		requireMethod(w, r, http.MethodPost, setPassword)
	case len(segments) == 1 && segments[0] == "subscriptions":
		requireMethod(w, r, http.MethodGet, listSubscriptions)
	default:
		authorID, ok := parseID(segments[0])
		if !ok || len(segments) > 2 {
			writeJSONError(w, http.StatusNotFound, "not found")
			return
		}
		if len(segments) == 1 {
			requireMethod(w, r, http.MethodGet, func(w http.ResponseWriter, r *http.Request) {
				userDetail(w, r, authorID)
			})
			return
		}
		if segments[1] != "subscribe" {
			writeJSONError(w, http.StatusNotFound, "not found")
			return
		}
		subscribe(w, r, authorID)
	}
}

func requireMethod(w http.ResponseWriter, r *http.Request, method string, next http.HandlerFunc) {
	if r.Method != method {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	next(w, r)
}

func listUsers(w http.ResponseWriter, r *http.Request) {
	viewer, _ := currentUserID(r)
	limit, offset := pagination(r)
	users, total, err := accountService().List(r.Context(), limit, offset)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	results, err := newProjector(r.Context(), relationGuard(), viewer).users(users)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pageResponse[userResponse]{Count: total, Results: results})
}

func signup(w http.ResponseWriter, r *http.Request) {
	var payload signupRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		applog.Debug(r.Context(), "invalid signup payload", "error", err)
		writeJSONError(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	user, err := accountService().Signup(r.Context(), accounts.SignupInput{
		Email:     payload.Email,
		Username:  payload.Username,
		FirstName: payload.FirstName,
		LastName:  payload.LastName,
		Password:  payload.Password,
	})
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	applog.Info(r.Context(), "user signed up", "userID", user.ID)
	response, err := newProjector(r.Context(), relationGuard(), 0).user(*user)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, response)
}

func currentUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(r)
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	userDetail(w, r, userID)
}

// deleteAccount removes the caller, their relations and session. Their
// recipes stay in the catalog without an author.
func deleteAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(r)
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	if err := accountService().Delete(r.Context(), userID); err != nil {
		writeAppError(w, r, err)
		return
	}
	if sessionManager != nil {
		if err := sessionManager.Destroy(r.Context()); err != nil {
			applog.Error(r.Context(), "failed to destroy session", "error", err)
		}
	}
	applog.Info(r.Context(), "account deleted", "userID", userID)
	w.WriteHeader(http.StatusNoContent)
}

func userDetail(w http.ResponseWriter, r *http.Request, userID uint) {
	viewer, _ := currentUserID(r)
	user, err := accountService().Get(r.Context(), userID)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	response, err := newProjector(r.Context(), relationGuard(), viewer).user(*user)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, response)
}

func setPassword(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(r)
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var payload setPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	if err := accountService().SetPassword(r.Context(), userID, payload.CurrentPassword, payload.NewPassword); err != nil {
		writeAppError(w, r, err)
		return
	}
	applog.Info(r.Context(), "password changed", "userID", userID)
	w.WriteHeader(http.StatusNoContent)
}

// recipesLimit reads the recipes_limit query parameter used by subscription
// responses.
func recipesLimit(r *http.Request) int {
	if value, err := strconv.Atoi(r.URL.Query().Get("recipes_limit")); err == nil && value >= 0 {
		return value
	}
	return limits.RecipesLimit
}

func listSubscriptions(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(r)
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	limit, offset := pagination(r)
	summaries, total, err := accountService().Subscriptions(r.Context(), userID, limit, offset, recipesLimit(r))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	results, err := newProjector(r.Context(), relationGuard(), userID).subscriptions(summaries)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pageResponse[subscriptionResponse]{Count: total, Results: results})
}

func subscribe(w http.ResponseWriter, r *http.Request, authorID uint) {
	userID, ok := currentUserID(r)
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	guard := relationGuard()
	switch r.Method {
	case http.MethodPost:
		if err := guard.Add(r.Context(), relations.Subscription, userID, authorID); err != nil {
			writeAppError(w, r, err)
			return
		}
		author, err := accountService().Get(r.Context(), authorID)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		summary, err := accountService().AuthorSummary(r.Context(), *author, recipesLimit(r))
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		results, err := newProjector(r.Context(), guard, userID).subscriptions([]accounts.AuthorSummary{summary})
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, results[0])
	case http.MethodDelete:
		if err := guard.Remove(r.Context(), relations.Subscription, userID, authorID); err != nil {
			writeAppError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}
