package mock

import (
	"context"
	"testing"

	"foodgram/internal/accounts"
	"foodgram/internal/config"
	"foodgram/internal/shopping"
	"foodgram/models"
)

func TestNewSeedsExpectedRecords(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db, err := New(ctx)
	if err != nil {
		t.Fatalf("mock database initialization failed: %v", err)
	}

	var recipes []models.Recipe
	if err := db.WithContext(ctx).Find(&recipes).Error; err != nil {
		t.Fatalf("query recipes: %v", err)
	}
	if len(recipes) != 3 {
		t.Fatalf("expected 3 seeded recipes, got %d", len(recipes))
	}

	var lines []models.RecipeIngredient
	if err := db.WithContext(ctx).Find(&lines).Error; err != nil {
		t.Fatalf("query recipe lines: %v", err)
	}
	if len(lines) == 0 {
		t.Fatal("expected seeded recipe lines")
	}

	user, err := accounts.NewService(db, config.DefaultLimits()).Authenticate(ctx, DemoEmail, DemoPassword)
	if err != nil {
		t.Fatalf("expected demo credentials to work: %v", err)
	}

	items, err := shopping.NewEngine(db).ShoppingList(ctx, user.ID)
	if err != nil {
		t.Fatalf("shopping list: %v", err)
	}
	amounts := make(map[string]int, len(items))
	for _, item := range items {
		amounts[item.Name+"/"+item.Unit] = item.Amount
	}
	if amounts["flour/g"] != 500 || amounts["butter/g"] != 220 {
		t.Fatalf("unexpected aggregated demo cart: %+v", items)
	}
}

func TestNewReturnsIsolatedDatabases(t *testing.T) {
	t.Parallel()

	first, err := New(context.Background())
	if err != nil {
		t.Fatalf("first mock database: %v", err)
	}
	second, err := New(context.Background())
	if err != nil {
		t.Fatalf("second mock database: %v", err)
	}

	var count int64
	if err := second.Model(&models.User{}).Count(&count).Error; err != nil {
		t.Fatalf("count users: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 users in a fresh mock database, got %d", count)
	}
	if first == second {
		t.Fatal("expected distinct database handles")
	}
}
