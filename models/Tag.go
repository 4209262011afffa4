package models

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"gorm.io/gorm"

	"foodgram/internal/apperr"
)

var slugPattern = regexp.MustCompile(`^[-a-z0-9_]+$`)

// Tag labels recipes. Name, color and slug are each unique.
type Tag struct {
	ID    uint   `gorm:"primaryKey" json:"id"`
	Name  string `gorm:"not null;size:200;uniqueIndex" json:"name"`
	Color string `gorm:"not null;size:7;uniqueIndex" json:"color"`
	Slug  string `gorm:"not null;size:200;uniqueIndex" json:"slug"`
}

// BeforeSave normalizes all three identities to lower case.
func (t *Tag) BeforeSave(*gorm.DB) error {
	t.Name = NormalizeName(t.Name)
	t.Slug = strings.ToLower(strings.TrimSpace(t.Slug))
	if t.Name == "" {
		return apperr.Validation(apperr.ErrInvalidField, "tag name must not be empty")
	}
	if !slugPattern.MatchString(t.Slug) {
		return apperr.Validationf(apperr.ErrInvalidField, "tag slug %q is invalid", t.Slug)
	}
	color, err := NormalizeColor(t.Color)
	if err != nil {
		return err
	}
	t.Color = color
	return nil
}

// CheckLength rejects a tag whose name or slug is longer than maxLen runes.
func (t *Tag) CheckLength(maxLen int) error {
	if n := utf8.RuneCountInString(NormalizeName(t.Name)); n > maxLen {
		return apperr.Validationf(apperr.ErrInvalidField, "tag name must be at most %d characters, got %d", maxLen, n)
	}
	if n := utf8.RuneCountInString(strings.TrimSpace(t.Slug)); n > maxLen {
		return apperr.Validationf(apperr.ErrInvalidField, "tag slug must be at most %d characters, got %d", maxLen, n)
	}
	return nil
}

// NormalizeColor accepts #rgb or #rrggbb (with or without the hash) and
// returns the lower-case #rrggbb form.
func NormalizeColor(value string) (string, error) {
	color := strings.ToLower(strings.TrimLeft(strings.TrimSpace(value), " #"))
	if len(color) != 3 && len(color) != 6 {
		return "", apperr.Validationf(apperr.ErrInvalidField, "color %q must have 3 or 6 hex digits", value)
	}
	for _, r := range color {
		if !strings.ContainsRune("0123456789abcdef", r) {
			return "", apperr.Validationf(apperr.ErrInvalidField, "color %q is not hexadecimal", value)
		}
	}
	if len(color) == 3 {
		color = string([]byte{color[0], color[0], color[1], color[1], color[2], color[2]})
	}
	return "#" + color, nil
}
