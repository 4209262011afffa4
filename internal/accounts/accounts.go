// Package accounts owns user signup, credentials and account removal.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"foodgram/internal/apperr"
	"foodgram/internal/config"
	applog "foodgram/internal/log"
	"foodgram/internal/relations"
	"foodgram/models"
)

var usernamePattern = regexp.MustCompile(`^[\w.@+-]+$`)

// SignupInput is a new account request.
type SignupInput struct {
	Email     string
	Username  string
	FirstName string
	LastName  string
	Password  string
}

// Service manages users.
type Service struct {
	db     *gorm.DB
	limits config.Limits
}

// NewService returns a Service bound to db.
func NewService(db *gorm.DB, limits config.Limits) *Service {
	return &Service{db: db, limits: limits}
}

// Signup validates in and stores a user with a bcrypt password hash.
func (s *Service) Signup(ctx context.Context, in SignupInput) (*models.User, error) {
	if err := s.validateSignup(in); err != nil {
		return nil, err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &models.User{
		Email:        in.Email,
		Username:     in.Username,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		PasswordHash: string(hashed),
	}
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperr.Conflict(apperr.ErrAlreadyExists, "a user with this email or username already exists")
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	applog.Info(ctx, "user signed up", "userID", user.ID, "username", user.Username)
	return user, nil
}

func (s *Service) validateSignup(in SignupInput) error {
	if _, err := mail.ParseAddress(strings.TrimSpace(in.Email)); err != nil {
		return apperr.Validationf(apperr.ErrInvalidField, "email %q is not valid", in.Email)
	}
	username := strings.TrimSpace(in.Username)
	length := utf8.RuneCountInString(username)
	if length < s.limits.UsernameMinLen || length > s.limits.UsernameMaxLen {
		return apperr.Validationf(apperr.ErrInvalidField, "username must be between %d and %d characters", s.limits.UsernameMinLen, s.limits.UsernameMaxLen)
	}
	if !usernamePattern.MatchString(username) {
		return apperr.Validationf(apperr.ErrInvalidField, "username %q may only contain letters, digits and @/./+/-/_", username)
	}
	if strings.EqualFold(username, "me") {
		return apperr.Validation(apperr.ErrInvalidField, "username \"me\" is reserved")
	}
	if strings.TrimSpace(in.Password) == "" {
		return apperr.Validation(apperr.ErrInvalidField, "password must not be empty")
	}
	return nil
}

// Authenticate returns the user matching email and password.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.Validation(apperr.ErrInvalidCredentials, "invalid email or password")
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, apperr.Validation(apperr.ErrInvalidCredentials, "invalid email or password")
	}
	return &user, nil
}

// SetPassword replaces the password after checking the current one.
func (s *Service) SetPassword(ctx context.Context, userID uint, current, next string) error {
	user, err := s.Get(ctx, userID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(current)); err != nil {
		return apperr.Validation(apperr.ErrInvalidCredentials, "current password is incorrect")
	}
	if strings.TrimSpace(next) == "" {
		return apperr.Validation(apperr.ErrInvalidField, "new password must not be empty")
	}
	if next == current {
		return apperr.Validation(apperr.ErrInvalidField, "new password must differ from the current one")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(next), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.db.WithContext(ctx).Model(&models.User{ID: userID}).Update("password_hash", string(hashed)).Error; err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	applog.Info(ctx, "password changed", "userID", userID)
	return nil
}

// Get loads a user by id.
func (s *Service) Get(ctx context.Context, userID uint) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound(apperr.ErrUserNotFound, fmt.Sprintf("user %d not found", userID), userID)
		}
		return nil, fmt.Errorf("load user %d: %w", userID, err)
	}
	return &user, nil
}

// List returns one page of users ordered by id and the total count.
func (s *Service) List(ctx context.Context, limit, offset int) ([]models.User, int64, error) {
	var total int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}
	var users []models.User
	query := s.db.WithContext(ctx).Order("id asc").Offset(offset)
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&users).Error; err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	return users, total, nil
}

// Delete removes the user and every relation involving them. Their recipes
// survive without an author.
func (s *Service) Delete(ctx context.Context, userID uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := relations.PurgeUser(tx, userID); err != nil {
			return err
		}
		if err := tx.Model(&models.Recipe{}).Where("author_id = ?", userID).Update("author_id", nil).Error; err != nil {
			return fmt.Errorf("detach recipes: %w", err)
		}
		result := tx.Delete(&models.User{}, userID)
		if result.Error != nil {
			return fmt.Errorf("delete user %d: %w", userID, result.Error)
		}
		if result.RowsAffected == 0 {
			return apperr.NotFound(apperr.ErrUserNotFound, fmt.Sprintf("user %d not found", userID), userID)
		}
		return nil
	})
}

// AuthorSummary is a followed author with a preview of their recipes.
type AuthorSummary struct {
	Author       models.User
	RecipesCount int64
	Recipes      []models.Recipe
}

// Subscriptions lists the authors userID follows with at most recipesLimit
// of their newest recipes each.
func (s *Service) Subscriptions(ctx context.Context, userID uint, limit, offset, recipesLimit int) ([]AuthorSummary, int64, error) {
	db := s.db.WithContext(ctx)
	followed := db.Session(&gorm.Session{NewDB: true}).Model(&models.Subscription{}).Select("author_id").Where("user_id = ?", userID)

	var total int64
	if err := db.Model(&models.User{}).Where("id IN (?)", followed).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count subscriptions: %w", err)
	}

	var authors []models.User
	query := db.Where("id IN (?)", followed).Order("username asc").Offset(offset)
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&authors).Error; err != nil {
		return nil, 0, fmt.Errorf("list subscriptions: %w", err)
	}

	summaries := make([]AuthorSummary, 0, len(authors))
	for _, author := range authors {
		summary, err := s.AuthorSummary(ctx, author, recipesLimit)
		if err != nil {
			return nil, 0, err
		}
		summaries = append(summaries, summary)
	}
	return summaries, total, nil
}

// AuthorSummary counts the author's recipes and loads the newest ones. A
// zero recipesLimit loads none and a negative one loads all.
func (s *Service) AuthorSummary(ctx context.Context, author models.User, recipesLimit int) (AuthorSummary, error) {
	db := s.db.WithContext(ctx)
	summary := AuthorSummary{Author: author, Recipes: []models.Recipe{}}
	if err := db.Model(&models.Recipe{}).Where("author_id = ?", author.ID).Count(&summary.RecipesCount).Error; err != nil {
		return AuthorSummary{}, fmt.Errorf("count recipes of %d: %w", author.ID, err)
	}
	if recipesLimit == 0 {
		return summary, nil
	}
	query := db.Where("author_id = ?", author.ID).Order("created_at desc, id desc")
	if recipesLimit > 0 {
		query = query.Limit(recipesLimit)
	}
	if err := query.Find(&summary.Recipes).Error; err != nil {
		return AuthorSummary{}, fmt.Errorf("load recipes of %d: %w", author.ID, err)
	}
	return summary, nil
}
