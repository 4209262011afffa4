// Package relations manages the per-user memberships (favorites, shopping
// cart entries and author subscriptions) with at most one row per pair.
package relations

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"foodgram/internal/apperr"
	applog "foodgram/internal/log"
	"foodgram/models"
)

// Kind names a relation table.
type Kind string

const (
	Favorite     Kind = "favorite"
	Cart         Kind = "shopping_cart"
	Subscription Kind = "subscription"
)

// Lookup answers membership questions for response projections.
type Lookup interface {
	Has(ctx context.Context, kind Kind, userID, targetID uint) (bool, error)
	Targets(ctx context.Context, kind Kind, userID uint, targetIDs []uint) (map[uint]bool, error)
}

type relationDef struct {
	model        any
	targetColumn string
	noun         string
	row          func(userID, targetID uint) any
	rows         func(userID uint, targetIDs []uint) any
	resolve      func(tx *gorm.DB, userID, targetID uint) error
}

var relationDefs = map[Kind]relationDef{
	Favorite: {
		model:        &models.Favorite{},
		targetColumn: "recipe_id",
		noun:         "favorites",
		row: func(userID, targetID uint) any {
			return &models.Favorite{UserID: userID, RecipeID: targetID}
		},
		rows: func(userID uint, targetIDs []uint) any {
			rows := make([]models.Favorite, 0, len(targetIDs))
			for _, id := range targetIDs {
				rows = append(rows, models.Favorite{UserID: userID, RecipeID: id})
			}
			return &rows
		},
		resolve: resolveRecipe,
	},
	Cart: {
		model:        &models.ShoppingCart{},
		targetColumn: "recipe_id",
		noun:         "shopping cart",
		row: func(userID, targetID uint) any {
			return &models.ShoppingCart{UserID: userID, RecipeID: targetID}
		},
		rows: func(userID uint, targetIDs []uint) any {
			rows := make([]models.ShoppingCart, 0, len(targetIDs))
			for _, id := range targetIDs {
				rows = append(rows, models.ShoppingCart{UserID: userID, RecipeID: id})
			}
			return &rows
		},
		resolve: resolveRecipe,
	},
	Subscription: {
		model:        &models.Subscription{},
		targetColumn: "author_id",
		noun:         "subscriptions",
		row: func(userID, targetID uint) any {
			return &models.Subscription{UserID: userID, AuthorID: targetID}
		},
		rows: func(userID uint, targetIDs []uint) any {
			rows := make([]models.Subscription, 0, len(targetIDs))
			for _, id := range targetIDs {
				rows = append(rows, models.Subscription{UserID: userID, AuthorID: id})
			}
			return &rows
		},
		resolve: resolveAuthor,
	},
}

func lookupDef(kind Kind) (relationDef, error) {
	def, ok := relationDefs[kind]
	if !ok {
		return relationDef{}, fmt.Errorf("unknown relation kind %q", kind)
	}
	return def, nil
}

// requireUser rejects relation writes for users that no longer exist.
func requireUser(tx *gorm.DB, userID uint) error {
	var count int64
	if err := tx.Model(&models.User{}).Where("id = ?", userID).Count(&count).Error; err != nil {
		return fmt.Errorf("resolve user %d: %w", userID, err)
	}
	if count == 0 {
		return apperr.NotFound(apperr.ErrUserNotFound, fmt.Sprintf("user %d not found", userID), userID)
	}
	return nil
}

func resolveRecipe(tx *gorm.DB, _, recipeID uint) error {
	var count int64
	if err := tx.Model(&models.Recipe{}).Where("id = ?", recipeID).Count(&count).Error; err != nil {
		return fmt.Errorf("resolve recipe %d: %w", recipeID, err)
	}
	if count == 0 {
		return apperr.NotFound(apperr.ErrRecipeNotFound, fmt.Sprintf("recipe %d not found", recipeID), recipeID)
	}
	return nil
}

func resolveAuthor(tx *gorm.DB, userID, authorID uint) error {
	if userID == authorID {
		return apperr.Validation(apperr.ErrSelfSubscription, "you cannot subscribe to yourself", authorID)
	}
	var count int64
	if err := tx.Model(&models.User{}).Where("id = ?", authorID).Count(&count).Error; err != nil {
		return fmt.Errorf("resolve author %d: %w", authorID, err)
	}
	if count == 0 {
		return apperr.NotFound(apperr.ErrUserNotFound, fmt.Sprintf("user %d not found", authorID), authorID)
	}
	return nil
}

// Guard adds and removes relation rows. Uniqueness is left to the storage
// layer so concurrent adds for the same pair resolve to one winner.
type Guard struct {
	db *gorm.DB
}

// NewGuard returns a Guard bound to db.
func NewGuard(db *gorm.DB) *Guard {
	return &Guard{db: db}
}

// Add creates the (user, target) relation of the given kind.
func (g *Guard) Add(ctx context.Context, kind Kind, userID, targetID uint) error {
	def, err := lookupDef(kind)
	if err != nil {
		return err
	}

	err = g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requireUser(tx, userID); err != nil {
			return err
		}
		if err := def.resolve(tx, userID, targetID); err != nil {
			return err
		}
		if err := tx.Create(def.row(userID, targetID)).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apperr.Conflict(apperr.ErrAlreadyExists, fmt.Sprintf("already in %s", def.noun), targetID)
			}
			return fmt.Errorf("insert %s relation: %w", kind, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	applog.Debug(ctx, "relation added", "kind", string(kind), "userID", userID, "targetID", targetID)
	return nil
}

// Remove deletes the (user, target) relation of the given kind.
func (g *Guard) Remove(ctx context.Context, kind Kind, userID, targetID uint) error {
	def, err := lookupDef(kind)
	if err != nil {
		return err
	}

	result := g.db.WithContext(ctx).
		Where("user_id = ? AND "+def.targetColumn+" = ?", userID, targetID).
		Delete(def.model)
	if result.Error != nil {
		return fmt.Errorf("delete %s relation: %w", kind, result.Error)
	}
	if result.RowsAffected == 0 {
		return apperr.NotFound(apperr.ErrRelationNotFound, fmt.Sprintf("not in %s", def.noun), targetID)
	}

	applog.Debug(ctx, "relation removed", "kind", string(kind), "userID", userID, "targetID", targetID)
	return nil
}

// Initialize is an explicit, optional bootstrap step that ensures the given
// relations exist. Existing rows are kept and every target must exist. It
// returns the number of rows created.
func (g *Guard) Initialize(ctx context.Context, userID uint, kind Kind, targetIDs []uint) (int64, error) {
	def, err := lookupDef(kind)
	if err != nil {
		return 0, err
	}
	targetIDs = uniqueIDs(targetIDs)
	if len(targetIDs) == 0 {
		return 0, nil
	}

	var created int64
	err = g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requireUser(tx, userID); err != nil {
			return err
		}
		for _, id := range targetIDs {
			if err := def.resolve(tx, userID, id); err != nil {
				return err
			}
		}
		result := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(def.rows(userID, targetIDs))
		if result.Error != nil {
			return fmt.Errorf("initialize %s relations: %w", kind, result.Error)
		}
		created = result.RowsAffected
		return nil
	})
	if err != nil {
		return 0, err
	}

	applog.Debug(ctx, "relations initialized", "kind", string(kind), "userID", userID, "created", created)
	return created, nil
}

// Has reports whether the relation exists.
func (g *Guard) Has(ctx context.Context, kind Kind, userID, targetID uint) (bool, error) {
	found, err := g.Targets(ctx, kind, userID, []uint{targetID})
	if err != nil {
		return false, err
	}
	return found[targetID], nil
}

// Targets returns which of targetIDs the user is related to. A zero userID
// (anonymous viewer) is related to nothing.
func (g *Guard) Targets(ctx context.Context, kind Kind, userID uint, targetIDs []uint) (map[uint]bool, error) {
	def, err := lookupDef(kind)
	if err != nil {
		return nil, err
	}
	found := make(map[uint]bool, len(targetIDs))
	if userID == 0 || len(targetIDs) == 0 {
		return found, nil
	}

	var ids []uint
	err = g.db.WithContext(ctx).
		Model(def.model).
		Where("user_id = ? AND "+def.targetColumn+" IN ?", userID, targetIDs).
		Pluck(def.targetColumn, &ids).Error
	if err != nil {
		return nil, fmt.Errorf("lookup %s relations: %w", kind, err)
	}
	for _, id := range ids {
		found[id] = true
	}
	return found, nil
}

// PurgeUser removes every relation owned by or pointing at userID. It runs
// on the caller's transaction.
func PurgeUser(tx *gorm.DB, userID uint) error {
	if err := tx.Where("user_id = ?", userID).Delete(&models.Favorite{}).Error; err != nil {
		return fmt.Errorf("purge favorites: %w", err)
	}
	if err := tx.Where("user_id = ?", userID).Delete(&models.ShoppingCart{}).Error; err != nil {
		return fmt.Errorf("purge shopping cart: %w", err)
	}
	if err := tx.Where("user_id = ? OR author_id = ?", userID, userID).Delete(&models.Subscription{}).Error; err != nil {
		return fmt.Errorf("purge subscriptions: %w", err)
	}
	return nil
}

func uniqueIDs(ids []uint) []uint {
	seen := make(map[uint]struct{}, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

var _ Lookup = (*Guard)(nil)
