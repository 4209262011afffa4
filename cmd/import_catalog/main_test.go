package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gorm.io/gorm"

	"foodgram/internal/apperr"
	"foodgram/internal/config"
	"foodgram/internal/testutil"
	"foodgram/models"
)

func withImportDatabase(t *testing.T) *gorm.DB {
	t.Helper()
	db := testutil.OpenDB(t)
	original := openDatabase
	openDatabase = func() (*gorm.DB, config.Limits, error) { return db, testutil.Limits(), nil }
	t.Cleanup(func() { openDatabase = original })
	return db
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestImportIngredientsCSVIsIdempotent(t *testing.T) {
	db := withImportDatabase(t)
	path := writeFile(t, "ingredients.csv", "абрикосовое варенье,г\nFlour, g\n\nflour,G\nsugar,g\n")

	for i := 0; i < 2; i++ {
		var out bytes.Buffer
		if err := run(context.Background(), []string{"-kind", "ingredients", "-file", path}, &out); err != nil {
			t.Fatalf("run #%d: %v", i+1, err)
		}
		if !strings.Contains(out.String(), "Imported 4 ingredients from ingredients.csv") {
			t.Fatalf("unexpected output %q", out.String())
		}
	}

	var ingredients []models.Ingredient
	if err := db.Order("name asc").Find(&ingredients).Error; err != nil {
		t.Fatalf("query ingredients: %v", err)
	}
	if len(ingredients) != 3 {
		t.Fatalf("expected 3 distinct ingredients, got %+v", ingredients)
	}
	if ingredients[0].Name != "flour" || ingredients[0].MeasurementUnit != "g" {
		t.Fatalf("expected normalized flour, got %+v", ingredients[0])
	}
}

func TestImportTagsJSONUpdatesExisting(t *testing.T) {
	db := withImportDatabase(t)
	testutil.SeedTag(t, db, "breakfast", "#000000")

	path := writeFile(t, "tags.json", `[
		{"name": "Breakfast", "color": "#FA0", "slug": "breakfast"},
		{"name": "Late Dinner", "color": "8775d2"}
	]`)

	var out bytes.Buffer
	if err := run(context.Background(), []string{"-kind", "tags", "-file", path}, &out); err != nil {
		t.Fatalf("run: %v", err)
	}

	var tags []models.Tag
	if err := db.Order("id asc").Find(&tags).Error; err != nil {
		t.Fatalf("query tags: %v", err)
	}
	if len(tags) != 2 {
		t.Fatalf("expected 2 tags, got %+v", tags)
	}
	if tags[0].Color != "#ffaa00" {
		t.Fatalf("expected existing tag color to be updated, got %q", tags[0].Color)
	}
	if tags[1].Slug != "late_dinner" || tags[1].Color != "#8775d2" {
		t.Fatalf("unexpected new tag %+v", tags[1])
	}
}

func TestImportTagsCSVWithHeader(t *testing.T) {
	db := withImportDatabase(t)
	path := writeFile(t, "tags.csv", "slug,name,color\nlunch,Lunch,#49b64e\n")

	if err := run(context.Background(), []string{"-kind", "tags", "-file", path}, &bytes.Buffer{}); err == nil {
		t.Fatal("expected a header not starting with name to be read as data and rejected")
	}

	path = writeFile(t, "tags-named.csv", "name,color,slug\nLunch,#49b64e,lunch\n")
	if err := run(context.Background(), []string{"-kind", "tags", "-file", path}, &bytes.Buffer{}); err != nil {
		t.Fatalf("run: %v", err)
	}
	var tag models.Tag
	if err := db.Where("slug = ?", "lunch").First(&tag).Error; err != nil {
		t.Fatalf("expected lunch tag: %v", err)
	}
}

func TestImportTagsRejectsOverlongNames(t *testing.T) {
	db := withImportDatabase(t)
	original := openDatabase
	limits := testutil.Limits()
	limits.TagMaxLen = 8
	openDatabase = func() (*gorm.DB, config.Limits, error) { return db, limits, nil }
	t.Cleanup(func() { openDatabase = original })

	path := writeFile(t, "tags.csv", "brunch,#ffaa00,brunch\n"+strings.Repeat("a", 9)+",#00ff00,long\n")
	err := run(context.Background(), []string{"-kind", "tags", "-file", path}, &bytes.Buffer{})
	if !errors.Is(err, apperr.ErrInvalidField) {
		t.Fatalf("expected invalid_field for an overlong tag name, got %v", err)
	}
	if !strings.Contains(err.Error(), "record 2") {
		t.Fatalf("expected the failing record to be named, got %v", err)
	}

	var tags []models.Tag
	if err := db.Find(&tags).Error; err != nil {
		t.Fatalf("query tags: %v", err)
	}
	if len(tags) != 1 || tags[0].Slug != "brunch" {
		t.Fatalf("expected only the short tag to be stored, got %+v", tags)
	}
}

func TestImportMultipleFilesInOrder(t *testing.T) {
	db := withImportDatabase(t)
	first := writeFile(t, "pantry.csv", "sugar,g\nflour,g\n")
	second := writeFile(t, "dairy.json", `[{"name": "Milk", "measurement_unit": "ml"}, {"name": "sugar", "measurement_unit": "g"}]`)

	var out bytes.Buffer
	if err := run(context.Background(), []string{"-file", first + "," + second}, &out); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out.String(), "Imported 4 ingredients from pantry.csv, dairy.json") {
		t.Fatalf("unexpected output %q", out.String())
	}

	var ingredients []models.Ingredient
	if err := db.Order("id asc").Find(&ingredients).Error; err != nil {
		t.Fatalf("query ingredients: %v", err)
	}
	if len(ingredients) != 3 {
		t.Fatalf("expected 3 distinct ingredients, got %+v", ingredients)
	}
	if ingredients[0].Name != "sugar" || ingredients[2].Name != "milk" {
		t.Fatalf("expected rows imported in file order, got %+v", ingredients)
	}
}

func TestImportMultipleFilesStopsOnParseError(t *testing.T) {
	db := withImportDatabase(t)
	good := writeFile(t, "good.csv", "sugar,g\n")
	bad := writeFile(t, "bad.json", `{"name": "not an array"}`)

	err := run(context.Background(), []string{"-file", good + "," + bad}, &bytes.Buffer{})
	if err == nil || !strings.Contains(err.Error(), "bad.json") {
		t.Fatalf("expected parse error naming bad.json, got %v", err)
	}

	var count int64
	if err := db.Model(&models.Ingredient{}).Count(&count).Error; err != nil {
		t.Fatalf("count ingredients: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected nothing imported, got %d", count)
	}
}

func TestRunRejectsInvalidArguments(t *testing.T) {
	withImportDatabase(t)
	path := writeFile(t, "ingredients.csv", "flour,g\n")

	tests := []struct {
		name string
		args []string
	}{
		{name: "unknown kind", args: []string{"-kind", "units", "-file", path}},
		{name: "missing file", args: []string{"-file", filepath.Join(t.TempDir(), "absent.csv")}},
		{name: "empty file flag", args: []string{"-file", ""}},
		{name: "unknown flag", args: []string{"-bogus"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if err := run(context.Background(), tc.args, &bytes.Buffer{}); err == nil {
				t.Fatal("expected an error")
			}
		})
	}
}

func TestParseCSVSkipsBlankLines(t *testing.T) {
	rows, err := parseCSV(strings.NewReader("flour,g\n\n  sugar , kg\n"), ingredientColumns)
	if err != nil {
		t.Fatalf("parseCSV: %v", err)
	}
	if len(rows) != 2 || rows[1]["name"] != "sugar" || rows[1]["measurement_unit"] != "kg" {
		t.Fatalf("unexpected rows %+v", rows)
	}
}

func TestSlugify(t *testing.T) {
	if got := slugify("  Late Dinner! "); got != "late_dinner" {
		t.Fatalf("expected late_dinner, got %q", got)
	}
}
