package models

import "time"

// Recipe is authored by a single user. The author reference is cleared, not
// cascaded, when the user goes away.
type Recipe struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	AuthorID    *uint     `gorm:"uniqueIndex:idx_recipe_author_name;index" json:"author_id"`
	Author      *User     `gorm:"foreignKey:AuthorID;constraint:OnDelete:SET NULL" json:"-"`
	Name        string    `gorm:"not null;size:200;uniqueIndex:idx_recipe_author_name" json:"name"`
	Text        string    `gorm:"type:text;not null" json:"text"`
	CookingTime int       `gorm:"not null" json:"cooking_time"`
	CreatedAt   time.Time `gorm:"autoCreateTime;index" json:"pub_date"`
	UpdatedAt   time.Time `json:"-"`

	Tags        []Tag              `gorm:"many2many:recipe_tags" json:"tags"`
	Ingredients []RecipeIngredient `gorm:"foreignKey:RecipeID;constraint:OnDelete:CASCADE" json:"ingredients"`
}

// RecipeTag is the join row linking a recipe to a tag.
type RecipeTag struct {
	RecipeID uint `gorm:"primaryKey"`
	TagID    uint `gorm:"primaryKey;index"`
}

// RecipeIngredient is a composition line: one amount of one ingredient in
// one recipe. A recipe holds at most one line per ingredient.
type RecipeIngredient struct {
	ID           uint        `gorm:"primaryKey" json:"-"`
	RecipeID     uint        `gorm:"not null;uniqueIndex:idx_recipe_ingredient" json:"-"`
	IngredientID uint        `gorm:"not null;uniqueIndex:idx_recipe_ingredient;index" json:"id"`
	Amount       int         `gorm:"not null" json:"amount"`
	Position     int         `gorm:"not null;default:0" json:"-"`
	Ingredient   *Ingredient `gorm:"foreignKey:IngredientID" json:"ingredient,omitempty"`
}
