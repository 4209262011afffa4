package composition

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"gorm.io/gorm"

	"foodgram/internal/apperr"
	"foodgram/internal/config"
	applog "foodgram/internal/log"
	"foodgram/models"
)

// RecipeFields are the scalar attributes of a new recipe.
type RecipeFields struct {
	Name        string
	Text        string
	CookingTime int
}

// RecipeUpdate carries the scalar attributes to change. Nil fields are left
// untouched.
type RecipeUpdate struct {
	Name        *string
	Text        *string
	CookingTime *int
}

// Writer persists a recipe with its tag links and composition lines as one
// unit. It does not check authorship.
type Writer struct {
	db     *gorm.DB
	limits config.Limits
}

// NewWriter returns a Writer bound to db.
func NewWriter(db *gorm.DB, limits config.Limits) *Writer {
	return &Writer{db: db, limits: limits}
}

// Create inserts the recipe, its tag links and its lines in one transaction
// and returns the new recipe id.
func (w *Writer) Create(ctx context.Context, authorID uint, fields RecipeFields, tags []models.Tag, ingredients []ResolvedIngredient) (uint, error) {
	fields.Name = strings.TrimSpace(fields.Name)
	fields.Text = strings.TrimSpace(fields.Text)
	if err := w.checkName(fields.Name); err != nil {
		return 0, err
	}
	if err := w.checkText(fields.Text); err != nil {
		return 0, err
	}
	if err := w.checkCookingTime(fields.CookingTime); err != nil {
		return 0, err
	}

	recipe := models.Recipe{
		AuthorID:    &authorID,
		Name:        fields.Name,
		Text:        fields.Text,
		CookingTime: fields.CookingTime,
	}

	err := w.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Tags", "Ingredients", "Author").Create(&recipe).Error; err != nil {
			return duplicateOr(err, fields.Name, "create recipe")
		}
		if err := insertTags(tx, recipe.ID, tags); err != nil {
			return err
		}
		return insertLines(tx, recipe.ID, ingredients)
	})
	if err != nil {
		return 0, err
	}

	applog.Debug(ctx, "recipe created", "recipeID", recipe.ID, "authorID", authorID, "lines", len(ingredients), "tags", len(tags))
	return recipe.ID, nil
}

// Replace updates the supplied fields and, for non-nil tags or ingredients,
// swaps the whole tag set or line set for the new one. Everything happens in
// one transaction.
func (w *Writer) Replace(ctx context.Context, recipeID uint, update RecipeUpdate, tags []models.Tag, ingredients []ResolvedIngredient) (*models.Recipe, error) {
	updates := map[string]any{}
	if update.Name != nil {
		name := strings.TrimSpace(*update.Name)
		if err := w.checkName(name); err != nil {
			return nil, err
		}
		updates["name"] = name
	}
	if update.Text != nil {
		text := strings.TrimSpace(*update.Text)
		if err := w.checkText(text); err != nil {
			return nil, err
		}
		updates["text"] = text
	}
	if update.CookingTime != nil {
		if err := w.checkCookingTime(*update.CookingTime); err != nil {
			return nil, err
		}
		updates["cooking_time"] = *update.CookingTime
	}

	err := w.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var recipe models.Recipe
		if err := tx.Select("id", "name").First(&recipe, recipeID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound(apperr.ErrRecipeNotFound, fmt.Sprintf("recipe %d not found", recipeID), recipeID)
			}
			return fmt.Errorf("load recipe %d: %w", recipeID, err)
		}

		if len(updates) > 0 {
			if err := tx.Model(&models.Recipe{ID: recipeID}).Updates(updates).Error; err != nil {
				name, _ := updates["name"].(string)
				return duplicateOr(err, name, "update recipe")
			}
		}

		if tags != nil {
			if err := tx.Where("recipe_id = ?", recipeID).Delete(&models.RecipeTag{}).Error; err != nil {
				return fmt.Errorf("clear recipe tags: %w", err)
			}
			if err := insertTags(tx, recipeID, tags); err != nil {
				return err
			}
		}

		if ingredients != nil {
			if err := tx.Where("recipe_id = ?", recipeID).Delete(&models.RecipeIngredient{}).Error; err != nil {
				return fmt.Errorf("clear recipe lines: %w", err)
			}
			if err := insertLines(tx, recipeID, ingredients); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	applog.Debug(ctx, "recipe replaced", "recipeID", recipeID, "fields", len(updates), "tagsReplaced", tags != nil, "linesReplaced", ingredients != nil)
	return w.Load(ctx, recipeID)
}

// Delete removes the recipe together with its lines, tag links and every
// favorite or cart entry pointing at it.
func (w *Writer) Delete(ctx context.Context, recipeID uint) error {
	return w.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, dependent := range []any{&models.RecipeIngredient{}, &models.RecipeTag{}, &models.Favorite{}, &models.ShoppingCart{}} {
			if err := tx.Where("recipe_id = ?", recipeID).Delete(dependent).Error; err != nil {
				return fmt.Errorf("delete recipe dependents: %w", err)
			}
		}
		result := tx.Delete(&models.Recipe{}, recipeID)
		if result.Error != nil {
			return fmt.Errorf("delete recipe %d: %w", recipeID, result.Error)
		}
		if result.RowsAffected == 0 {
			return apperr.NotFound(apperr.ErrRecipeNotFound, fmt.Sprintf("recipe %d not found", recipeID), recipeID)
		}
		return nil
	})
}

// Load reads a recipe with its tags and lines, lines in submission order.
func (w *Writer) Load(ctx context.Context, recipeID uint) (*models.Recipe, error) {
	var recipe models.Recipe
	err := w.db.WithContext(ctx).
		Preload("Tags", func(db *gorm.DB) *gorm.DB { return db.Order("tags.id asc") }).
		Preload("Ingredients", func(db *gorm.DB) *gorm.DB { return db.Order("position asc, id asc") }).
		Preload("Ingredients.Ingredient").
		First(&recipe, recipeID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound(apperr.ErrRecipeNotFound, fmt.Sprintf("recipe %d not found", recipeID), recipeID)
		}
		return nil, fmt.Errorf("load recipe %d: %w", recipeID, err)
	}
	return &recipe, nil
}

func insertTags(tx *gorm.DB, recipeID uint, tags []models.Tag) error {
	if len(tags) == 0 {
		return nil
	}
	rows := make([]models.RecipeTag, 0, len(tags))
	for _, tag := range tags {
		rows = append(rows, models.RecipeTag{RecipeID: recipeID, TagID: tag.ID})
	}
	if err := tx.Create(&rows).Error; err != nil {
		return fmt.Errorf("link recipe tags: %w", err)
	}
	return nil
}

func insertLines(tx *gorm.DB, recipeID uint, ingredients []ResolvedIngredient) error {
	if len(ingredients) == 0 {
		return nil
	}
	rows := make([]models.RecipeIngredient, 0, len(ingredients))
	for position, ingredient := range ingredients {
		rows = append(rows, models.RecipeIngredient{
			RecipeID:     recipeID,
			IngredientID: ingredient.IngredientID,
			Amount:       ingredient.Amount,
			Position:     position,
		})
	}
	if err := tx.Omit("Ingredient").Create(&rows).Error; err != nil {
		return fmt.Errorf("insert recipe lines: %w", err)
	}
	return nil
}

func duplicateOr(err error, name, action string) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return apperr.Validationf(apperr.ErrDuplicateRecipe, "a recipe named %q already exists for this author", name)
	}
	return fmt.Errorf("%s: %w", action, err)
}

func (w *Writer) checkName(name string) error {
	if name == "" {
		return apperr.Validation(apperr.ErrInvalidField, "recipe name must not be empty")
	}
	if limit := w.limits.RecipeNameMaxLen; limit > 0 && utf8.RuneCountInString(name) > limit {
		return apperr.Validationf(apperr.ErrInvalidField, "recipe name must be at most %d characters", limit)
	}
	return nil
}

func (w *Writer) checkText(text string) error {
	if text == "" {
		return apperr.Validation(apperr.ErrInvalidField, "recipe text must not be empty")
	}
	if limit := w.limits.RecipeTextMaxLen; limit > 0 && utf8.RuneCountInString(text) > limit {
		return apperr.Validationf(apperr.ErrInvalidField, "recipe text must be at most %d characters", limit)
	}
	return nil
}

func (w *Writer) checkCookingTime(minutes int) error {
	if minutes < w.limits.CookingTimeMin || minutes > w.limits.CookingTimeMax {
		return apperr.Validationf(apperr.ErrInvalidCookingTime,
			"cooking time must be between %d and %d minutes", w.limits.CookingTimeMin, w.limits.CookingTimeMax)
	}
	return nil
}
