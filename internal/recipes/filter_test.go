package recipes

import (
	"context"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"foodgram/internal/apperr"
	"foodgram/internal/testutil"
	"foodgram/models"
)

func names(page Page) []string {
	out := make([]string, 0, len(page.Results))
	for _, recipe := range page.Results {
		out = append(out, recipe.Name)
	}
	return out
}

func TestParseFilter(t *testing.T) {
	t.Parallel()

	values := url.Values{
		"author":              {"7"},
		"tags":                {"Breakfast", " dinner ", ""},
		"is_favorited":        {"1"},
		"is_in_shopping_cart": {"0"},
		"limit":               {"2"},
		"page":                {"3"},
	}
	filter, err := ParseFilter(values, 5, 6)
	require.NoError(t, err)
	assert.Equal(t, Filter{
		AuthorID:      7,
		TagSlugs:      []string{"breakfast", "dinner"},
		FavoritedOnly: true,
		ViewerID:      5,
		Limit:         2,
		Offset:        4,
	}, filter)
}

func TestParseFilterRejectsBadValues(t *testing.T) {
	t.Parallel()

	for _, values := range []url.Values{
		{"author": {"me"}},
		{"limit": {"0"}},
		{"page": {"-1"}},
	} {
		_, err := ParseFilter(values, 0, 6)
		assert.ErrorIs(t, err, apperr.ErrInvalidField, "values %v", values)
	}
}

func TestListAppliesPredicates(t *testing.T) {
	t.Parallel()
	db := testutil.OpenDB(t)
	ctx := context.Background()

	chef := testutil.SeedUser(t, db, "chef")
	baker := testutil.SeedUser(t, db, "baker")
	breakfast := testutil.SeedTag(t, db, "breakfast", "#ff0000")
	dinner := testutil.SeedTag(t, db, "dinner", "#00ff00")
	lunch := testutil.SeedTag(t, db, "lunch", "#0000ff")
	egg := testutil.SeedIngredient(t, db, "egg", "pcs")

	omelette := testutil.SeedRecipe(t, db, chef, "omelette", map[uint]int{egg.ID: 3}, breakfast, lunch)
	stew := testutil.SeedRecipe(t, db, chef, "stew", map[uint]int{egg.ID: 1}, dinner)
	brioche := testutil.SeedRecipe(t, db, baker, "brioche", map[uint]int{egg.ID: 4}, breakfast)
	testutil.SeedFavorite(t, db, baker, omelette)
	testutil.SeedFavorite(t, db, baker, stew)
	testutil.SeedCart(t, db, baker, brioche)

	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{"all newest first", Filter{}, []string{"brioche", "stew", "omelette"}},
		{"by author", Filter{AuthorID: chef.ID}, []string{"stew", "omelette"}},
		{"tags any of without duplicates", Filter{TagSlugs: []string{"breakfast", "lunch"}}, []string{"brioche", "omelette"}},
		{"favorited", Filter{FavoritedOnly: true, ViewerID: baker.ID}, []string{"stew", "omelette"}},
		{"in cart", Filter{InCartOnly: true, ViewerID: baker.ID}, []string{"brioche"}},
		{"combined", Filter{FavoritedOnly: true, ViewerID: baker.ID, TagSlugs: []string{"dinner"}}, []string{"stew"}},
		{"anonymous favorited", Filter{FavoritedOnly: true}, []string{}},
		{"paged", Filter{Limit: 1, Offset: 1}, []string{"stew"}},
	}

	for _, tt := range tests {
		page, err := List(ctx, db, tt.filter)
		require.NoError(t, err, tt.name)
		assert.Equal(t, tt.want, names(page), tt.name)
		if tt.filter.Limit == 0 {
			assert.Equal(t, int64(len(tt.want)), page.Count, tt.name)
		}
	}

	page, err := List(ctx, db, Filter{AuthorID: chef.ID, Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Count, "count ignores paging")
	require.Len(t, page.Results, 1)
	assert.NotNil(t, page.Results[0].Author)
	assert.NotEmpty(t, page.Results[0].Ingredients)
	assert.IsType(t, models.Recipe{}, page.Results[0])
}
