// Package apperr defines the error kinds returned by the catalog core and
// their mapping onto HTTP status codes.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kinds.
var (
	ErrValidation = errors.New("validation error")
	ErrConflict   = errors.New("conflict")
	ErrNotFound   = errors.New("not found")
	ErrEmptyCart  = errors.New("empty_cart")
)

// Reasons. The text doubles as the machine readable code sent to clients.
var (
	ErrMissingTags        = errors.New("missing_tags")
	ErrUnknownTag         = errors.New("unknown_tag")
	ErrMissingIngredients = errors.New("missing_ingredients")
	ErrInvalidAmount      = errors.New("invalid_amount")
	ErrUnknownIngredient  = errors.New("unknown_ingredient")
	ErrDuplicateRecipe    = errors.New("duplicate_recipe_name")
	ErrInvalidCookingTime = errors.New("invalid_cooking_time")
	ErrInvalidField       = errors.New("invalid_field")
	ErrSelfSubscription   = errors.New("self_subscription")
	ErrInvalidCredentials = errors.New("invalid_credentials")

	ErrAlreadyExists = errors.New("already_exists")

	ErrRecipeNotFound   = errors.New("recipe_not_found")
	ErrUserNotFound     = errors.New("user_not_found")
	ErrRelationNotFound = errors.New("relation_not_found")
)

// Error is a categorised, per-request failure. errors.Is matches both its
// kind and its reason.
type Error struct {
	Kind    error
	Reason  error
	Message string
	IDs     []uint
}

func (e *Error) Error() string {
	return e.Message
}

// Is reports whether target is the kind or the reason of e.
func (e *Error) Is(target error) bool {
	return target == e.Kind || target == e.Reason
}

// Code returns the reason code, falling back to the kind.
func (e *Error) Code() string {
	if e.Reason != nil {
		return e.Reason.Error()
	}
	return e.Kind.Error()
}

func newError(kind, reason error, msg string, ids []uint) *Error {
	return &Error{Kind: kind, Reason: reason, Message: msg, IDs: ids}
}

// Validation builds a validation failure.
func Validation(reason error, msg string, ids ...uint) *Error {
	return newError(ErrValidation, reason, msg, ids)
}

// Validationf builds a validation failure with a formatted message.
func Validationf(reason error, format string, args ...any) *Error {
	return newError(ErrValidation, reason, fmt.Sprintf(format, args...), nil)
}

// Conflict builds a conflict failure.
func Conflict(reason error, msg string, ids ...uint) *Error {
	return newError(ErrConflict, reason, msg, ids)
}

// NotFound builds a not-found failure.
func NotFound(reason error, msg string, ids ...uint) *Error {
	return newError(ErrNotFound, reason, msg, ids)
}

// EmptyCart builds the failure returned when a shopping list is requested
// for a user with no cart entries.
func EmptyCart(userID uint) *Error {
	return newError(ErrEmptyCart, ErrEmptyCart, "shopping cart is empty", []uint{userID})
}

// As extracts an *Error from err.
func As(err error) (*Error, bool) {
	var target *Error
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// StatusCode maps an error onto the HTTP status the API responds with.
// Conflicts answer 400 to keep the contract of the existing clients.
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrValidation), errors.Is(err, ErrConflict), errors.Is(err, ErrEmptyCart):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
