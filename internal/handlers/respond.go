package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	applog "foodgram/internal/log"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
	IDs   []uint `json:"ids,omitempty"`
}

type pageResponse[T any] struct {
	Count   int64 `json:"count"`
	Results []T   `json:"results"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		applog.Error(context.Background(), "failed to encode json response", "error", err)
	}
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// splitResourcePath strips prefix and returns the remaining path segments.
func splitResourcePath(path, prefix string) []string {
	rest := strings.Trim(strings.TrimPrefix(path, prefix), "/")
	if rest == "" {
		return nil
	}
	return strings.Split(rest, "/")
}

func parseID(value string) (uint, bool) {
	id, err := strconv.ParseUint(value, 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

// pagination reads limit and page query parameters.
func pagination(r *http.Request) (limit, offset int) {
	limit = limits.PageSize
	if value, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && value > 0 {
		limit = value
	}
	if page, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && page > 1 {
		offset = (page - 1) * limit
	}
	return limit, offset
}
