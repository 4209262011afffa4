// Package recipes lists recipes through a single composed filter.
package recipes

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"gorm.io/gorm"

	"foodgram/internal/apperr"
	"foodgram/models"
)

// Filter is the complete set of list predicates. Zero values disable a
// predicate. FavoritedOnly and InCartOnly are relative to ViewerID; an
// anonymous viewer matches nothing when either is set.
type Filter struct {
	AuthorID      uint
	TagSlugs      []string
	FavoritedOnly bool
	InCartOnly    bool
	ViewerID      uint

	Limit  int
	Offset int
}

// ParseFilter reads author, tags, is_favorited, is_in_shopping_cart, limit
// and page from query values.
func ParseFilter(values url.Values, viewerID uint, defaultLimit int) (Filter, error) {
	filter := Filter{ViewerID: viewerID, Limit: defaultLimit}

	if raw := strings.TrimSpace(values.Get("author")); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return Filter{}, apperr.Validationf(apperr.ErrInvalidField, "author must be a numeric id, got %q", raw)
		}
		filter.AuthorID = uint(id)
	}

	for _, slug := range values["tags"] {
		if slug = strings.ToLower(strings.TrimSpace(slug)); slug != "" {
			filter.TagSlugs = append(filter.TagSlugs, slug)
		}
	}

	filter.FavoritedOnly = truthy(values.Get("is_favorited"))
	filter.InCartOnly = truthy(values.Get("is_in_shopping_cart"))

	if raw := strings.TrimSpace(values.Get("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			return Filter{}, apperr.Validationf(apperr.ErrInvalidField, "limit must be a positive integer, got %q", raw)
		}
		filter.Limit = limit
	}
	if raw := strings.TrimSpace(values.Get("page")); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil || page < 1 {
			return Filter{}, apperr.Validationf(apperr.ErrInvalidField, "page must be a positive integer, got %q", raw)
		}
		filter.Offset = (page - 1) * filter.Limit
	}

	return filter, nil
}

func truthy(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes":
		return true
	default:
		return false
	}
}

// Apply adds the filter predicates to a query over recipes. Paging is not
// applied.
func (f Filter) Apply(db *gorm.DB) *gorm.DB {
	query := db.Model(&models.Recipe{})

	if f.AuthorID != 0 {
		query = query.Where("recipes.author_id = ?", f.AuthorID)
	}
	if len(f.TagSlugs) > 0 {
		tagged := db.Session(&gorm.Session{NewDB: true}).
			Table("recipe_tags").
			Select("recipe_tags.recipe_id").
			Joins("JOIN tags ON tags.id = recipe_tags.tag_id").
			Where("tags.slug IN ?", f.TagSlugs)
		query = query.Where("recipes.id IN (?)", tagged)
	}
	if f.FavoritedOnly {
		query = f.relatedTo(db, query, "favorites")
	}
	if f.InCartOnly {
		query = f.relatedTo(db, query, "shopping_carts")
	}
	return query
}

func (f Filter) relatedTo(db, query *gorm.DB, table string) *gorm.DB {
	if f.ViewerID == 0 {
		return query.Where("1 = 0")
	}
	related := db.Session(&gorm.Session{NewDB: true}).
		Table(table).
		Select("recipe_id").
		Where("user_id = ?", f.ViewerID)
	return query.Where("recipes.id IN (?)", related)
}

// Page is one slice of a recipe listing.
type Page struct {
	Count   int64
	Results []models.Recipe
}

// List counts and loads the recipes matching filter, newest first, with
// tags, lines and authors preloaded.
func List(ctx context.Context, db *gorm.DB, filter Filter) (Page, error) {
	base := db.WithContext(ctx)

	var page Page
	if err := filter.Apply(base).Count(&page.Count).Error; err != nil {
		return Page{}, fmt.Errorf("count recipes: %w", err)
	}

	query := filter.Apply(base).
		Preload("Author").
		Preload("Tags", func(db *gorm.DB) *gorm.DB { return db.Order("tags.id asc") }).
		Preload("Ingredients", func(db *gorm.DB) *gorm.DB { return db.Order("position asc, id asc") }).
		Preload("Ingredients.Ingredient").
		Order("recipes.created_at desc, recipes.id desc")
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}
	if err := query.Find(&page.Results).Error; err != nil {
		return Page{}, fmt.Errorf("list recipes: %w", err)
	}
	return page, nil
}
