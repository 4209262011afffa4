package handlers

import (
	"errors"
	"net/http"
	"strings"

	"gorm.io/gorm"

	"foodgram/models"
)

// Tags serves the read only tag catalog.
func Tags(w http.ResponseWriter, r *http.Request) {
	if database == nil {
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	segments := splitResourcePath(r.URL.Path, "/api/tags")
	switch len(segments) {
	case 0:
		var tags []models.Tag
		if err := database.WithContext(r.Context()).Order("id asc").Find(&tags).Error; err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, tags)
	case 1:
		id, ok := parseID(segments[0])
		if !ok {
			writeJSONError(w, http.StatusNotFound, "not found")
			return
		}
		var tag models.Tag
		if err := database.WithContext(r.Context()).First(&tag, id).Error; err != nil {
			writeLookupError(w, r, err, "tag not found")
			return
		}
		writeJSON(w, http.StatusOK, tag)
	default:
		writeJSONError(w, http.StatusNotFound, "not found")
	}
}

// Ingredients serves the read only ingredient catalog. The name query
// parameter filters by case insensitive prefix.
func Ingredients(w http.ResponseWriter, r *http.Request) {
	if database == nil {
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	segments := splitResourcePath(r.URL.Path, "/api/ingredients")
	switch len(segments) {
	case 0:
		query := database.WithContext(r.Context()).Order("name asc, measurement_unit asc")
		if prefix := models.NormalizeName(r.URL.Query().Get("name")); prefix != "" {
			query = query.Where(`name LIKE ? ESCAPE '\'`, escapeLike(prefix)+"%")
		}
		var ingredients []models.Ingredient
		if err := query.Find(&ingredients).Error; err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, ingredients)
	case 1:
		id, ok := parseID(segments[0])
		if !ok {
			writeJSONError(w, http.StatusNotFound, "not found")
			return
		}
		var ingredient models.Ingredient
		if err := database.WithContext(r.Context()).First(&ingredient, id).Error; err != nil {
			writeLookupError(w, r, err, "ingredient not found")
			return
		}
		writeJSON(w, http.StatusOK, ingredient)
	default:
		writeJSONError(w, http.StatusNotFound, "not found")
	}
}

func writeLookupError(w http.ResponseWriter, r *http.Request, err error, message string) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		writeJSONError(w, http.StatusNotFound, message)
		return
	}
	writeAppError(w, r, err)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(value string) string {
	return likeEscaper.Replace(value)
}
