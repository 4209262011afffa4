// Package mock provides an in-memory demo catalog for local runs.
package mock

import (
	"context"
	"fmt"
	"sync/atomic"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"foodgram/internal/accounts"
	"foodgram/internal/composition"
	"foodgram/internal/config"
	"foodgram/internal/db"
	applog "foodgram/internal/log"
	"foodgram/internal/relations"
	"foodgram/models"
)

// Demo account credentials.
const (
	DemoEmail    = "demo@foodgram.local"
	DemoPassword = "foodgram"
)

var instance atomic.Uint64

// New returns an in-memory sqlite database seeded with a demo user, tags,
// ingredients and recipes.
func New(ctx context.Context) (*gorm.DB, error) {
	applog.Debug(ctx, "initialising mock database")

	dsn := fmt.Sprintf("file:foodgram-mock-%d?mode=memory&cache=shared", instance.Add(1))
	database, err := gorm.Open(sqlite.Open(dsn), db.GormConfig(logger.Silent))
	if err != nil {
		return nil, err
	}
	sqlDB, err := database.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(database); err != nil {
		return nil, err
	}

	if err := seed(ctx, database, config.DefaultLimits()); err != nil {
		return nil, err
	}

	applog.Debug(ctx, "mock database ready")
	return database, nil
}

type demoRecipe struct {
	name        string
	text        string
	cookingTime int
	tags        []string
	lines       []composition.Entry
}

func seed(ctx context.Context, database *gorm.DB, limits config.Limits) error {
	applog.Debug(ctx, "seeding mock database")

	users := accounts.NewService(database, limits)
	demo, err := users.Signup(ctx, accounts.SignupInput{
		Email:     DemoEmail,
		Username:  "demo",
		FirstName: "Demo",
		LastName:  "Cook",
		Password:  DemoPassword,
	})
	if err != nil {
		return fmt.Errorf("seed demo user: %w", err)
	}
	baker, err := users.Signup(ctx, accounts.SignupInput{
		Email:     "baker@foodgram.local",
		Username:  "baker",
		FirstName: "Bea",
		LastName:  "Baker",
		Password:  DemoPassword,
	})
	if err != nil {
		return fmt.Errorf("seed baker: %w", err)
	}

	tags := []models.Tag{
		{Name: "breakfast", Color: "#E26C2D", Slug: "breakfast"},
		{Name: "lunch", Color: "#49B64E", Slug: "lunch"},
		{Name: "dinner", Color: "#8775D2", Slug: "dinner"},
	}
	for i := range tags {
		if err := tags[i].CheckLength(limits.TagMaxLen); err != nil {
			return fmt.Errorf("seed tags: %w", err)
		}
	}
	if err := database.WithContext(ctx).Create(&tags).Error; err != nil {
		return fmt.Errorf("seed tags: %w", err)
	}
	tagIDs := make(map[string]uint, len(tags))
	for _, tag := range tags {
		tagIDs[tag.Slug] = tag.ID
	}

	ingredients := []models.Ingredient{
		{Name: "flour", MeasurementUnit: "g"},
		{Name: "sugar", MeasurementUnit: "g"},
		{Name: "egg", MeasurementUnit: "pcs"},
		{Name: "milk", MeasurementUnit: "ml"},
		{Name: "butter", MeasurementUnit: "g"},
		{Name: "tomato", MeasurementUnit: "pcs"},
		{Name: "salt", MeasurementUnit: "pinch"},
	}
	if err := database.WithContext(ctx).Create(&ingredients).Error; err != nil {
		return fmt.Errorf("seed ingredients: %w", err)
	}
	ingredientIDs := make(map[string]uint, len(ingredients))
	for _, ingredient := range ingredients {
		ingredientIDs[ingredient.Name] = ingredient.ID
	}
	line := func(name string, amount int) composition.Entry {
		return composition.Entry{ID: ingredientIDs[name], Amount: composition.AmountOf(amount)}
	}

	validator := composition.NewValidator(composition.NewCatalog(database), limits)
	writer := composition.NewWriter(database, limits)
	create := func(authorID uint, recipe demoRecipe) (uint, error) {
		ids := make([]uint, 0, len(recipe.tags))
		for _, slug := range recipe.tags {
			ids = append(ids, tagIDs[slug])
		}
		resolved, err := validator.Validate(ctx, ids, recipe.lines)
		if err != nil {
			return 0, err
		}
		return writer.Create(ctx, authorID, composition.RecipeFields{
			Name:        recipe.name,
			Text:        recipe.text,
			CookingTime: recipe.cookingTime,
		}, resolved.Tags, resolved.Ingredients)
	}

	pancakes, err := create(baker.ID, demoRecipe{
		name:        "Pancakes",
		text:        "Whisk everything into a smooth batter and fry thin rounds in butter.",
		cookingTime: 25,
		tags:        []string{"breakfast"},
		lines:       []composition.Entry{line("flour", 200), line("milk", 300), line("egg", 2), line("butter", 20)},
	})
	if err != nil {
		return fmt.Errorf("seed pancakes: %w", err)
	}
	shortbread, err := create(baker.ID, demoRecipe{
		name:        "Shortbread",
		text:        "Rub butter into flour and sugar, press into a tin and bake until pale gold.",
		cookingTime: 45,
		tags:        []string{"breakfast", "dinner"},
		lines:       []composition.Entry{line("flour", 300), line("butter", 200), line("sugar", 100)},
	})
	if err != nil {
		return fmt.Errorf("seed shortbread: %w", err)
	}
	if _, err := create(demo.ID, demoRecipe{
		name:        "Tomato salad",
		text:        "Slice the tomatoes and season with salt.",
		cookingTime: 5,
		tags:        []string{"lunch"},
		lines:       []composition.Entry{line("tomato", 3), line("salt", 1)},
	}); err != nil {
		return fmt.Errorf("seed tomato salad: %w", err)
	}

	guard := relations.NewGuard(database)
	if _, err := guard.Initialize(ctx, demo.ID, relations.Favorite, []uint{pancakes}); err != nil {
		return fmt.Errorf("seed favorites: %w", err)
	}
	if _, err := guard.Initialize(ctx, demo.ID, relations.Cart, []uint{pancakes, shortbread}); err != nil {
		return fmt.Errorf("seed shopping cart: %w", err)
	}
	if _, err := guard.Initialize(ctx, demo.ID, relations.Subscription, []uint{baker.ID}); err != nil {
		return fmt.Errorf("seed subscriptions: %w", err)
	}
	return nil
}
