package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"foodgram/internal/config"
	"foodgram/internal/db"
	applog "foodgram/internal/log"
	"foodgram/models"
)

var openDatabase = func() (*gorm.DB, config.Limits, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, config.Limits{}, fmt.Errorf("load config: %w", err)
	}
	if err := applog.Configure(cfg.Logging); err != nil {
		return nil, config.Limits{}, fmt.Errorf("configure logging: %w", err)
	}
	database, err := db.Configure(cfg.Database)
	return database, cfg.Limits, err
}

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "import failed: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	flags := flag.NewFlagSet("import_catalog", flag.ContinueOnError)
	flags.SetOutput(out)
	kind := flags.String("kind", "ingredients", "catalog to import: ingredients or tags")
	files := flags.String("file", "data/ingredients.csv", "comma separated CSV, JSON or PDF files to read")
	if err := flags.Parse(args); err != nil {
		return err
	}

	var columns []string
	switch *kind {
	case "ingredients":
		columns = ingredientColumns
	case "tags":
		columns = tagColumns
	default:
		return fmt.Errorf("unknown kind %q, expected ingredients or tags", *kind)
	}

	var paths []string
	for _, path := range strings.Split(*files, ",") {
		if path = strings.TrimSpace(path); path != "" {
			paths = append(paths, path)
		}
	}
	if len(paths) == 0 {
		return errors.New("file path must not be empty")
	}
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("locate file: %w", err)
		}
	}

	rows, err := readAll(ctx, paths, columns)
	if err != nil {
		return err
	}

	database, limits, err := openDatabase()
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}

	imported := 0
	for idx, row := range rows {
		err := database.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if *kind == "tags" {
				return upsertTag(tx, row, limits)
			}
			return upsertIngredient(tx, row)
		})
		if err != nil {
			return fmt.Errorf("record %d (%s): %w", idx+1, row["name"], err)
		}
		imported++
	}

	names := make([]string, 0, len(paths))
	for _, path := range paths {
		names = append(names, filepath.Base(path))
	}
	applog.Info(ctx, "catalog imported", "kind", *kind, "rows", imported, "files", len(paths))
	fmt.Fprintf(out, "Imported %d %s from %s\n", imported, *kind, strings.Join(names, ", "))
	return nil
}

// readAll parses every file concurrently and concatenates the rows in the
// order the files were given.
func readAll(ctx context.Context, paths []string, columns []string) ([]catalogRow, error) {
	parsed := make([][]catalogRow, len(paths))
	group, _ := errgroup.WithContext(ctx)
	for idx, path := range paths {
		idx, path := idx, path
		group.Go(func() error {
			rows, err := readRows(path, columns)
			if err != nil {
				return fmt.Errorf("read %s: %w", filepath.Base(path), err)
			}
			parsed[idx] = rows
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	var rows []catalogRow
	for _, chunk := range parsed {
		rows = append(rows, chunk...)
	}
	return rows, nil
}

func upsertIngredient(tx *gorm.DB, row catalogRow) error {
	ingredient := models.Ingredient{
		Name:            models.NormalizeName(row["name"]),
		MeasurementUnit: models.NormalizeName(row["measurement_unit"]),
	}
	err := tx.Where("name = ? AND measurement_unit = ?", ingredient.Name, ingredient.MeasurementUnit).
		FirstOrCreate(&ingredient).Error
	if err != nil {
		return fmt.Errorf("get or create ingredient %q: %w", ingredient.Name, err)
	}
	return nil
}

func upsertTag(tx *gorm.DB, row catalogRow, limits config.Limits) error {
	slug := strings.ToLower(strings.TrimSpace(row["slug"]))
	if slug == "" {
		slug = slugify(row["name"])
	}
	if err := (&models.Tag{Name: row["name"], Slug: slug}).CheckLength(limits.TagMaxLen); err != nil {
		return err
	}

	var existing models.Tag
	err := tx.Where("slug = ?", slug).First(&existing).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		tag := models.Tag{Name: row["name"], Color: row["color"], Slug: slug}
		if err := tx.Create(&tag).Error; err != nil {
			return fmt.Errorf("create tag %q: %w", slug, err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("find tag %q: %w", slug, err)
	}

	existing.Name = row["name"]
	existing.Color = row["color"]
	if err := tx.Save(&existing).Error; err != nil {
		return fmt.Errorf("update tag %q: %w", slug, err)
	}
	return nil
}
