package composition

import (
	"context"

	"gorm.io/gorm"

	"foodgram/models"
)

// Catalog answers which tags and ingredients exist.
type Catalog interface {
	TagsByID(ctx context.Context, ids []uint) ([]models.Tag, error)
	IngredientsByID(ctx context.Context, ids []uint) ([]models.Ingredient, error)
}

// GormCatalog reads the catalog tables through gorm.
type GormCatalog struct {
	db *gorm.DB
}

// NewCatalog returns a Catalog backed by db.
func NewCatalog(db *gorm.DB) *GormCatalog {
	return &GormCatalog{db: db}
}

func (c *GormCatalog) TagsByID(ctx context.Context, ids []uint) ([]models.Tag, error) {
	var tags []models.Tag
	if len(ids) == 0 {
		return tags, nil
	}
	err := c.db.WithContext(ctx).Where("id IN ?", ids).Find(&tags).Error
	return tags, err
}

func (c *GormCatalog) IngredientsByID(ctx context.Context, ids []uint) ([]models.Ingredient, error) {
	var ingredients []models.Ingredient
	if len(ids) == 0 {
		return ingredients, nil
	}
	err := c.db.WithContext(ctx).Where("id IN ?", ids).Find(&ingredients).Error
	return ingredients, err
}
