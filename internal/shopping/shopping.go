// Package shopping builds the consolidated shopping list of a user's cart.
package shopping

import (
	"context"
	"fmt"
	"sort"

	"gorm.io/gorm"

	"foodgram/internal/apperr"
	applog "foodgram/internal/log"
	"foodgram/models"
)

// Item is one consolidated entry of a shopping list.
type Item struct {
	Name   string `json:"name"`
	Unit   string `json:"unit"`
	Amount int    `json:"amount"`
}

// Line is a single composition line of a recipe in the cart.
type Line struct {
	Name   string
	Unit   string
	Amount int
}

// Aggregate groups lines by (name, unit), sums their amounts and orders the
// result by name, then unit.
func Aggregate(lines []Line) []Item {
	type key struct{ name, unit string }
	totals := make(map[key]int, len(lines))
	for _, line := range lines {
		totals[key{line.Name, line.Unit}] += line.Amount
	}

	items := make([]Item, 0, len(totals))
	for k, amount := range totals {
		items = append(items, Item{Name: k.name, Unit: k.unit, Amount: amount})
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Name != items[j].Name {
			return items[i].Name < items[j].Name
		}
		return items[i].Unit < items[j].Unit
	})
	return items
}

// Engine reads cart contents. It never writes.
type Engine struct {
	db *gorm.DB
}

// NewEngine returns an Engine bound to db.
func NewEngine(db *gorm.DB) *Engine {
	return &Engine{db: db}
}

// ShoppingList returns the aggregated ingredients of every recipe in the
// user's cart. Both reads share one transaction so the list reflects a
// single cart state.
func (e *Engine) ShoppingList(ctx context.Context, userID uint) ([]Item, error) {
	var lines []Line
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var carts int64
		if err := tx.Model(&models.ShoppingCart{}).Where("user_id = ?", userID).Count(&carts).Error; err != nil {
			return fmt.Errorf("count cart entries: %w", err)
		}
		if carts == 0 {
			return apperr.EmptyCart(userID)
		}

		return tx.Table("recipe_ingredients AS ri").
			Select("i.name AS name, i.measurement_unit AS unit, ri.amount AS amount").
			Joins("JOIN ingredients AS i ON i.id = ri.ingredient_id").
			Joins("JOIN shopping_carts AS sc ON sc.recipe_id = ri.recipe_id").
			Where("sc.user_id = ?", userID).
			Scan(&lines).Error
	})
	if err != nil {
		return nil, err
	}

	items := Aggregate(lines)
	applog.Debug(ctx, "shopping list built", "userID", userID, "lines", len(lines), "items", len(items))
	return items, nil
}
