package shopping

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"foodgram/internal/apperr"
	"foodgram/internal/testutil"
)

func TestAggregateGroupsByNameAndUnit(t *testing.T) {
	t.Parallel()

	items := Aggregate([]Line{
		{Name: "Flour", Unit: "g", Amount: 200},
		{Name: "Sugar", Unit: "g", Amount: 50},
		{Name: "Flour", Unit: "g", Amount: 100},
		{Name: "Egg", Unit: "pcs", Amount: 2},
	})

	assert.Equal(t, []Item{
		{Name: "Egg", Unit: "pcs", Amount: 2},
		{Name: "Flour", Unit: "g", Amount: 300},
		{Name: "Sugar", Unit: "g", Amount: 50},
	}, items)
}

func TestAggregateKeepsUnitsApart(t *testing.T) {
	t.Parallel()

	items := Aggregate([]Line{
		{Name: "milk", Unit: "ml", Amount: 200},
		{Name: "milk", Unit: "cup", Amount: 1},
		{Name: "milk", Unit: "ml", Amount: 50},
	})

	assert.Equal(t, []Item{
		{Name: "milk", Unit: "cup", Amount: 1},
		{Name: "milk", Unit: "ml", Amount: 250},
	}, items)
}

func TestAggregateEmpty(t *testing.T) {
	t.Parallel()
	assert.Empty(t, Aggregate(nil))
}

func TestShoppingListAcrossCart(t *testing.T) {
	t.Parallel()
	db := testutil.OpenDB(t)
	user := testutil.SeedUser(t, db, "shopper")
	flour := testutil.SeedIngredient(t, db, "flour", "g")
	sugar := testutil.SeedIngredient(t, db, "sugar", "g")
	egg := testutil.SeedIngredient(t, db, "egg", "pcs")

	recipeA := testutil.SeedRecipe(t, db, user, "recipe a", map[uint]int{flour.ID: 200, sugar.ID: 50})
	recipeB := testutil.SeedRecipe(t, db, user, "recipe b", map[uint]int{flour.ID: 100, egg.ID: 2})
	testutil.SeedRecipe(t, db, user, "not in cart", map[uint]int{flour.ID: 1000})
	testutil.SeedCart(t, db, user, recipeA)
	testutil.SeedCart(t, db, user, recipeB)

	other := testutil.SeedUser(t, db, "other")
	testutil.SeedCart(t, db, other, recipeA)

	items, err := NewEngine(db).ShoppingList(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, []Item{
		{Name: "egg", Unit: "pcs", Amount: 2},
		{Name: "flour", Unit: "g", Amount: 300},
		{Name: "sugar", Unit: "g", Amount: 50},
	}, items)
}

func TestShoppingListEmptyCart(t *testing.T) {
	t.Parallel()
	db := testutil.OpenDB(t)
	user := testutil.SeedUser(t, db, "empty")

	_, err := NewEngine(db).ShoppingList(context.Background(), user.ID)
	assert.ErrorIs(t, err, apperr.ErrEmptyCart)
}
