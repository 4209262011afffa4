// Package testutil opens isolated sqlite databases and seeds catalog fixtures
// for package tests.
package testutil

import (
	"fmt"
	"regexp"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"foodgram/internal/config"
	"foodgram/internal/db"
	"foodgram/models"
)

var (
	unsafeName = regexp.MustCompile(`[^a-zA-Z0-9_]+`)
	sequence   atomic.Uint64
)

// OpenDB returns a migrated in-memory database private to tb. The pool is
// limited to one connection, so queries issued while a transaction is open
// must go through that transaction.
func OpenDB(tb testing.TB) *gorm.DB {
	tb.Helper()

	name := fmt.Sprintf("%s_%d", unsafeName.ReplaceAllString(tb.Name(), "_"), sequence.Add(1))
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)

	database, err := gorm.Open(sqlite.Open(dsn), db.GormConfig(logger.Silent))
	require.NoError(tb, err, "open sqlite database")

	sqlDB, err := database.DB()
	require.NoError(tb, err, "get sql db")
	sqlDB.SetMaxOpenConns(1)

	require.NoError(tb, db.AutoMigrate(database), "migrate schema")

	tb.Cleanup(func() {
		_ = sqlDB.Close()
	})
	return database
}

// Limits returns the default bounds.
func Limits() config.Limits {
	return config.DefaultLimits()
}

// SeedUser inserts a user with the given username.
func SeedUser(tb testing.TB, database *gorm.DB, username string) *models.User {
	tb.Helper()
	user := &models.User{
		Email:        username + "@example.com",
		Username:     username,
		FirstName:    username,
		PasswordHash: "hash",
	}
	require.NoError(tb, database.Create(user).Error, "seed user %s", username)
	return user
}

// SeedTag inserts a tag whose slug matches its name.
func SeedTag(tb testing.TB, database *gorm.DB, name, color string) *models.Tag {
	tb.Helper()
	tag := &models.Tag{Name: name, Color: color, Slug: name}
	require.NoError(tb, database.Create(tag).Error, "seed tag %s", name)
	return tag
}

// SeedIngredient inserts a catalog ingredient.
func SeedIngredient(tb testing.TB, database *gorm.DB, name, unit string) *models.Ingredient {
	tb.Helper()
	ingredient := &models.Ingredient{Name: name, MeasurementUnit: unit}
	require.NoError(tb, database.Create(ingredient).Error, "seed ingredient %s", name)
	return ingredient
}

// SeedRecipe inserts a recipe row with the given composition lines
// (ingredient id to amount), bypassing validation.
func SeedRecipe(tb testing.TB, database *gorm.DB, author *models.User, name string, lines map[uint]int, tags ...*models.Tag) *models.Recipe {
	tb.Helper()
	recipe := &models.Recipe{Name: name, Text: name + " text", CookingTime: 10}
	if author != nil {
		recipe.AuthorID = &author.ID
	}
	require.NoError(tb, database.Omit("Tags", "Ingredients").Create(recipe).Error, "seed recipe %s", name)

	position := 0
	for ingredientID, amount := range lines {
		line := &models.RecipeIngredient{RecipeID: recipe.ID, IngredientID: ingredientID, Amount: amount, Position: position}
		require.NoError(tb, database.Omit("Ingredient").Create(line).Error, "seed line for %s", name)
		position++
	}
	for _, tag := range tags {
		require.NoError(tb, database.Create(&models.RecipeTag{RecipeID: recipe.ID, TagID: tag.ID}).Error, "seed tag link for %s", name)
	}
	return recipe
}

// SeedCart puts recipe into the shopping cart of user.
func SeedCart(tb testing.TB, database *gorm.DB, user *models.User, recipe *models.Recipe) {
	tb.Helper()
	require.NoError(tb, database.Create(&models.ShoppingCart{UserID: user.ID, RecipeID: recipe.ID}).Error)
}

// SeedFavorite marks recipe as a favorite of user.
func SeedFavorite(tb testing.TB, database *gorm.DB, user *models.User, recipe *models.Recipe) {
	tb.Helper()
	require.NoError(tb, database.Create(&models.Favorite{UserID: user.ID, RecipeID: recipe.ID}).Error)
}
