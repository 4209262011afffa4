package composition

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"foodgram/internal/apperr"
	"foodgram/internal/config"
	"foodgram/models"
)

// Amount is the raw quantity of an ingredient entry. It decodes from either
// a JSON number or a JSON string and is only interpreted by the Validator.
type Amount string

// AmountOf formats n as an Amount.
func AmountOf(n int) Amount {
	return Amount(strconv.Itoa(n))
}

func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = Amount(s)
		return nil
	}
	if bytes.Equal(data, []byte("null")) {
		*a = ""
		return nil
	}
	*a = Amount(data)
	return nil
}

// Entry is one requested (ingredient, amount) pair.
type Entry struct {
	ID     uint   `json:"id"`
	Amount Amount `json:"amount"`
}

// ResolvedIngredient is a validated composition line ready for persistence.
type ResolvedIngredient struct {
	IngredientID uint
	Amount       int
	Ingredient   models.Ingredient
}

// Resolved is the outcome of a successful validation.
type Resolved struct {
	Tags        []models.Tag
	Ingredients []ResolvedIngredient
}

// Validator checks composition requests against the catalog before any
// write happens. It has no side effects.
type Validator struct {
	catalog Catalog
	limits  config.Limits
}

// NewValidator builds a Validator enforcing limits.
func NewValidator(catalog Catalog, limits config.Limits) *Validator {
	return &Validator{catalog: catalog, limits: limits}
}

// Validate resolves tag ids and ingredient entries. Tags are checked first.
func (v *Validator) Validate(ctx context.Context, tagIDs []uint, entries []Entry) (Resolved, error) {
	tags, err := v.ResolveTags(ctx, tagIDs)
	if err != nil {
		return Resolved{}, err
	}
	ingredients, err := v.ResolveIngredients(ctx, entries)
	if err != nil {
		return Resolved{}, err
	}
	return Resolved{Tags: tags, Ingredients: ingredients}, nil
}

// ResolveTags treats tagIDs as a set and returns the matching tags in
// first-appearance order.
func (v *Validator) ResolveTags(ctx context.Context, tagIDs []uint) ([]models.Tag, error) {
	ids := uniqueIDs(tagIDs)
	if len(ids) == 0 {
		return nil, apperr.Validation(apperr.ErrMissingTags, "at least one tag is required")
	}

	found, err := v.catalog.TagsByID(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load tags: %w", err)
	}
	byID := make(map[uint]models.Tag, len(found))
	for _, tag := range found {
		byID[tag.ID] = tag
	}

	var missing []uint
	tags := make([]models.Tag, 0, len(ids))
	for _, id := range ids {
		tag, ok := byID[id]
		if !ok {
			missing = append(missing, id)
			continue
		}
		tags = append(tags, tag)
	}
	if len(missing) > 0 {
		sort.Slice(missing, func(i, j int) bool { return missing[i] < missing[j] })
		return nil, apperr.Validation(apperr.ErrUnknownTag, fmt.Sprintf("unknown tag ids: %s", joinIDs(missing)), missing...)
	}
	return tags, nil
}

// ResolveIngredients parses every amount, collapses repeated ingredient ids
// keeping the last amount, and checks the catalog. Lines keep the position
// at which their ingredient first appeared.
func (v *Validator) ResolveIngredients(ctx context.Context, entries []Entry) ([]ResolvedIngredient, error) {
	if len(entries) == 0 {
		return nil, apperr.Validation(apperr.ErrMissingIngredients, "at least one ingredient is required")
	}

	amounts := make(map[uint]int, len(entries))
	order := make([]uint, 0, len(entries))
	for _, entry := range entries {
		amount, err := v.parseAmount(entry)
		if err != nil {
			return nil, err
		}
		if _, seen := amounts[entry.ID]; !seen {
			order = append(order, entry.ID)
		}
		amounts[entry.ID] = amount
	}

	found, err := v.catalog.IngredientsByID(ctx, order)
	if err != nil {
		return nil, fmt.Errorf("load ingredients: %w", err)
	}
	byID := make(map[uint]models.Ingredient, len(found))
	for _, ingredient := range found {
		byID[ingredient.ID] = ingredient
	}

	var missing []uint
	resolved := make([]ResolvedIngredient, 0, len(order))
	for _, id := range order {
		ingredient, ok := byID[id]
		if !ok {
			missing = append(missing, id)
			continue
		}
		resolved = append(resolved, ResolvedIngredient{IngredientID: id, Amount: amounts[id], Ingredient: ingredient})
	}
	if len(missing) > 0 {
		sort.Slice(missing, func(i, j int) bool { return missing[i] < missing[j] })
		return nil, apperr.Validation(apperr.ErrUnknownIngredient, fmt.Sprintf("unknown ingredient ids: %s", joinIDs(missing)), missing...)
	}
	return resolved, nil
}

func (v *Validator) parseAmount(entry Entry) (int, error) {
	raw := strings.TrimSpace(string(entry.Amount))
	invalid := func() error {
		return apperr.Validation(apperr.ErrInvalidAmount,
			fmt.Sprintf("amount for ingredient %d must be an integer between %d and %d", entry.ID, v.limits.AmountMin, v.limits.AmountMax),
			entry.ID)
	}
	if raw == "" || strings.Trim(raw, "0123456789") != "" {
		return 0, invalid()
	}
	amount, err := strconv.Atoi(raw)
	if err != nil {
		return 0, invalid()
	}
	if amount < v.limits.AmountMin || amount > v.limits.AmountMax {
		return 0, invalid()
	}
	return amount, nil
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

func joinIDs(ids []uint) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatUint(uint64(id), 10)
	}
	return strings.Join(parts, ", ")
}
