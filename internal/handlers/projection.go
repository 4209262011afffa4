package handlers

import (
	"context"
	"time"

	"foodgram/internal/accounts"
	"foodgram/internal/relations"
	"foodgram/models"
)

type userResponse struct {
	ID           uint   `json:"id"`
	Email        string `json:"email"`
	Username     string `json:"username"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	IsSubscribed bool   `json:"is_subscribed"`
}

type recipeIngredientResponse struct {
	ID              uint   `json:"id"`
	Name            string `json:"name"`
	MeasurementUnit string `json:"measurement_unit"`
	Amount          int    `json:"amount"`
}

type recipeResponse struct {
	ID               uint                       `json:"id"`
	Tags             []models.Tag               `json:"tags"`
	Author           *userResponse              `json:"author"`
	Ingredients      []recipeIngredientResponse `json:"ingredients"`
	IsFavorited      bool                       `json:"is_favorited"`
	IsInShoppingCart bool                       `json:"is_in_shopping_cart"`
	Name             string                     `json:"name"`
	Text             string                     `json:"text"`
	CookingTime      int                        `json:"cooking_time"`
	PubDate          time.Time                  `json:"pub_date"`
}

type shortRecipeResponse struct {
	ID          uint   `json:"id"`
	Name        string `json:"name"`
	CookingTime int    `json:"cooking_time"`
}

type subscriptionResponse struct {
	userResponse
	Recipes      []shortRecipeResponse `json:"recipes"`
	RecipesCount int64                 `json:"recipes_count"`
}

// projector renders models for one viewer. Membership flags come from a
// relations.Lookup so anonymous viewers see them all false.
type projector struct {
	ctx    context.Context
	lookup relations.Lookup
	viewer uint
}

func newProjector(ctx context.Context, lookup relations.Lookup, viewer uint) projector {
	return projector{ctx: ctx, lookup: lookup, viewer: viewer}
}

func (p projector) user(user models.User) (userResponse, error) {
	users, err := p.users([]models.User{user})
	if err != nil {
		return userResponse{}, err
	}
	return users[0], nil
}

func (p projector) users(users []models.User) ([]userResponse, error) {
	ids := make([]uint, 0, len(users))
	for _, user := range users {
		ids = append(ids, user.ID)
	}
	followed, err := p.lookup.Targets(p.ctx, relations.Subscription, p.viewer, ids)
	if err != nil {
		return nil, err
	}
	out := make([]userResponse, 0, len(users))
	for _, user := range users {
		out = append(out, userResponse{
			ID:           user.ID,
			Email:        user.Email,
			Username:     user.Username,
			FirstName:    user.FirstName,
			LastName:     user.LastName,
			IsSubscribed: followed[user.ID],
		})
	}
	return out, nil
}

func (p projector) recipe(recipe models.Recipe) (recipeResponse, error) {
	out, err := p.recipes([]models.Recipe{recipe})
	if err != nil {
		return recipeResponse{}, err
	}
	return out[0], nil
}

func (p projector) recipes(recipes []models.Recipe) ([]recipeResponse, error) {
	ids := make([]uint, 0, len(recipes))
	var authors []models.User
	seen := make(map[uint]bool)
	for _, recipe := range recipes {
		ids = append(ids, recipe.ID)
		if recipe.Author != nil && !seen[recipe.Author.ID] {
			seen[recipe.Author.ID] = true
			authors = append(authors, *recipe.Author)
		}
	}

	favorites, err := p.lookup.Targets(p.ctx, relations.Favorite, p.viewer, ids)
	if err != nil {
		return nil, err
	}
	carts, err := p.lookup.Targets(p.ctx, relations.Cart, p.viewer, ids)
	if err != nil {
		return nil, err
	}
	projected, err := p.users(authors)
	if err != nil {
		return nil, err
	}
	byID := make(map[uint]userResponse, len(projected))
	for _, author := range projected {
		byID[author.ID] = author
	}

	out := make([]recipeResponse, 0, len(recipes))
	for _, recipe := range recipes {
		item := recipeResponse{
			ID:               recipe.ID,
			Tags:             recipe.Tags,
			Ingredients:      make([]recipeIngredientResponse, 0, len(recipe.Ingredients)),
			IsFavorited:      favorites[recipe.ID],
			IsInShoppingCart: carts[recipe.ID],
			Name:             recipe.Name,
			Text:             recipe.Text,
			CookingTime:      recipe.CookingTime,
			PubDate:          recipe.CreatedAt,
		}
		if item.Tags == nil {
			item.Tags = []models.Tag{}
		}
		if recipe.Author != nil {
			author := byID[recipe.Author.ID]
			item.Author = &author
		}
		for _, line := range recipe.Ingredients {
			entry := recipeIngredientResponse{ID: line.IngredientID, Amount: line.Amount}
			if line.Ingredient != nil {
				entry.Name = line.Ingredient.Name
				entry.MeasurementUnit = line.Ingredient.MeasurementUnit
			}
			item.Ingredients = append(item.Ingredients, entry)
		}
		out = append(out, item)
	}
	return out, nil
}

func shortRecipe(recipe models.Recipe) shortRecipeResponse {
	return shortRecipeResponse{ID: recipe.ID, Name: recipe.Name, CookingTime: recipe.CookingTime}
}

func (p projector) subscriptions(summaries []accounts.AuthorSummary) ([]subscriptionResponse, error) {
	authors := make([]models.User, 0, len(summaries))
	for _, summary := range summaries {
		authors = append(authors, summary.Author)
	}
	projected, err := p.users(authors)
	if err != nil {
		return nil, err
	}
	out := make([]subscriptionResponse, 0, len(summaries))
	for i, summary := range summaries {
		item := subscriptionResponse{
			userResponse: projected[i],
			Recipes:      make([]shortRecipeResponse, 0, len(summary.Recipes)),
			RecipesCount: summary.RecipesCount,
		}
		for _, recipe := range summary.Recipes {
			item.Recipes = append(item.Recipes, shortRecipe(recipe))
		}
		out = append(out, item)
	}
	return out, nil
}
