package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"foodgram/internal/apperr"
	"foodgram/internal/composition"
	applog "foodgram/internal/log"
	"foodgram/internal/recipes"
	"foodgram/internal/relations"
	"foodgram/internal/views/pages"
	"foodgram/models"
)

// recipeRequest is the create and patch payload. Absent fields decode to
// nil; on patch they are left untouched.
type recipeRequest struct {
	Ingredients *[]composition.Entry `json:"ingredients"`
	Tags        *[]uint              `json:"tags"`
	Name        *string              `json:"name"`
	Text        *string              `json:"text"`
	CookingTime *int                 `json:"cooking_time"`
}

// Recipes serves /api/recipes/ and its nested resources.
func Recipes(w http.ResponseWriter, r *http.Request) {
	if database == nil {
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
		return
	}

	segments := splitResourcePath(r.URL.Path, "/api/recipes")
	if len(segments) == 0 {
		switch r.Method {
		case http.MethodGet:
			listRecipes(w, r)
		case http.MethodPost:
			createRecipe(w, r)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
		return
	}

	if len(segments) == 1 && segments[0] == "download_shopping_cart" {
		requireMethod(w, r, http.MethodGet, downloadShoppingCart)
		return
	}

	recipeID, ok := parseID(segments[0])
	if !ok || len(segments) > 2 {
		writeJSONError(w, http.StatusNotFound, "not found")
		return
	}

	if len(segments) == 1 {
		switch r.Method {
		case http.MethodGet:
			recipeDetail(w, r, recipeID)
		case http.MethodPatch:
			updateRecipe(w, r, recipeID)
		case http.MethodDelete:
			deleteRecipe(w, r, recipeID)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
		return
	}

	switch segments[1] {
	case "favorite":
		toggleRecipeRelation(w, r, relations.Favorite, recipeID)
	case "shopping_cart":
		toggleRecipeRelation(w, r, relations.Cart, recipeID)
	default:
		writeJSONError(w, http.StatusNotFound, "not found")
	}
}

func listRecipes(w http.ResponseWriter, r *http.Request) {
	viewer, _ := currentUserID(r)
	filter, err := recipes.ParseFilter(r.URL.Query(), viewer, limits.PageSize)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	page, err := recipes.List(r.Context(), database, filter)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	results, err := newProjector(r.Context(), relationGuard(), viewer).recipes(page.Results)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pageResponse[recipeResponse]{Count: page.Count, Results: results})
}

func decodeRecipeRequest(w http.ResponseWriter, r *http.Request) (recipeRequest, bool) {
	var payload recipeRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		applog.Debug(r.Context(), "invalid recipe payload", "error", err)
		writeJSONError(w, http.StatusBadRequest, "invalid request payload")
		return recipeRequest{}, false
	}
	return payload, true
}

func createRecipe(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(r)
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	payload, ok := decodeRecipeRequest(w, r)
	if !ok {
		return
	}

	var tagIDs []uint
	if payload.Tags != nil {
		tagIDs = *payload.Tags
	}
	var entries []composition.Entry
	if payload.Ingredients != nil {
		entries = *payload.Ingredients
	}
	resolved, err := recipeValidator().Validate(r.Context(), tagIDs, entries)
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	fields := composition.RecipeFields{}
	if payload.Name != nil {
		fields.Name = *payload.Name
	}
	if payload.Text != nil {
		fields.Text = *payload.Text
	}
	if payload.CookingTime != nil {
		fields.CookingTime = *payload.CookingTime
	}

	recipeID, err := recipeWriter().Create(r.Context(), userID, fields, resolved.Tags, resolved.Ingredients)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	applog.Info(r.Context(), "recipe created", "recipeID", recipeID, "userID", userID)
	writeRecipe(w, r, recipeID, userID, http.StatusCreated)
}

func recipeDetail(w http.ResponseWriter, r *http.Request, recipeID uint) {
	viewer, _ := currentUserID(r)
	writeRecipe(w, r, recipeID, viewer, http.StatusOK)
}

// loadRecipe reads the recipe with its author attached.
func loadRecipe(r *http.Request, recipeID uint) (*models.Recipe, error) {
	recipe, err := recipeWriter().Load(r.Context(), recipeID)
	if err != nil {
		return nil, err
	}
	if recipe.AuthorID != nil {
		author, err := accountService().Get(r.Context(), *recipe.AuthorID)
		if err != nil && !errors.Is(err, apperr.ErrNotFound) {
			return nil, err
		}
		recipe.Author = author
	}
	return recipe, nil
}

func writeRecipe(w http.ResponseWriter, r *http.Request, recipeID, viewer uint, status int) {
	recipe, err := loadRecipe(r, recipeID)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	response, err := newProjector(r.Context(), relationGuard(), viewer).recipe(*recipe)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, status, response)
}

// authorize loads the recipe and checks that userID wrote it.
func authorize(w http.ResponseWriter, r *http.Request, recipeID uint) (uint, bool) {
	userID, ok := currentUserID(r)
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, "authentication required")
		return 0, false
	}
	recipe, err := recipeWriter().Load(r.Context(), recipeID)
	if err != nil {
		writeAppError(w, r, err)
		return 0, false
	}
	if recipe.AuthorID == nil || *recipe.AuthorID != userID {
		applog.Warn(r.Context(), "recipe change by non-author rejected", "recipeID", recipeID, "userID", userID)
		writeJSONError(w, http.StatusForbidden, "only the author can change this recipe")
		return 0, false
	}
	return userID, true
}

func updateRecipe(w http.ResponseWriter, r *http.Request, recipeID uint) {
	userID, ok := authorize(w, r, recipeID)
	if !ok {
		return
	}
	payload, ok := decodeRecipeRequest(w, r)
	if !ok {
		return
	}

	validator := recipeValidator()
	var tags []models.Tag
	if payload.Tags != nil {
		resolved, err := validator.ResolveTags(r.Context(), *payload.Tags)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		tags = resolved
	}
	var lines []composition.ResolvedIngredient
	if payload.Ingredients != nil {
		resolved, err := validator.ResolveIngredients(r.Context(), *payload.Ingredients)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		lines = resolved
	}

	update := composition.RecipeUpdate{Name: payload.Name, Text: payload.Text, CookingTime: payload.CookingTime}
	if _, err := recipeWriter().Replace(r.Context(), recipeID, update, tags, lines); err != nil {
		writeAppError(w, r, err)
		return
	}
	applog.Info(r.Context(), "recipe updated", "recipeID", recipeID, "userID", userID)
	writeRecipe(w, r, recipeID, userID, http.StatusOK)
}

func deleteRecipe(w http.ResponseWriter, r *http.Request, recipeID uint) {
	userID, ok := authorize(w, r, recipeID)
	if !ok {
		return
	}
	if err := recipeWriter().Delete(r.Context(), recipeID); err != nil {
		writeAppError(w, r, err)
		return
	}
	applog.Info(r.Context(), "recipe deleted", "recipeID", recipeID, "userID", userID)
	w.WriteHeader(http.StatusNoContent)
}

func toggleRecipeRelation(w http.ResponseWriter, r *http.Request, kind relations.Kind, recipeID uint) {
	userID, ok := currentUserID(r)
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	guard := relationGuard()
	switch r.Method {
	case http.MethodPost:
		if err := guard.Add(r.Context(), kind, userID, recipeID); err != nil {
			writeAppError(w, r, err)
			return
		}
		recipe, err := recipeWriter().Load(r.Context(), recipeID)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, shortRecipe(*recipe))
	case http.MethodDelete:
		if err := guard.Remove(r.Context(), kind, userID, recipeID); err != nil {
			writeAppError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func downloadShoppingCart(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(r)
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	format, ok := pages.ParseShoppingListFormat(r.URL.Query().Get("format"))
	if !ok {
		writeJSONError(w, http.StatusBadRequest, "format must be one of txt, csv, html")
		return
	}

	user, err := accountService().Get(r.Context(), userID)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	items, err := shoppingEngine().ShoppingList(r.Context(), userID)
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	data := pages.ShoppingListData{
		Owner:       user.DisplayName(),
		Username:    user.Username,
		GeneratedAt: time.Now(),
		Items:       items,
	}
	var body bytes.Buffer
	if err := pages.RenderShoppingList(r.Context(), &body, format, data); err != nil {
		writeAppError(w, r, err)
		return
	}

	applog.Info(r.Context(), "shopping list downloaded", "userID", userID, "items", len(items), "format", string(format))
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, pages.ShoppingListFilename(user.Username, format)))
	w.WriteHeader(http.StatusOK)
	if _, err := body.WriteTo(w); err != nil {
		applog.Error(r.Context(), "failed to write shopping list", "error", err)
	}
}
