package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config captures the runtime configuration for the application.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Logging  LoggingConfig
	Auth     AuthConfig
	Limits   Limits
}

// ServerConfig configures the HTTP server runtime behavior.
type ServerConfig struct {
	Addr string
}

// DatabaseConfig contains the database connection settings.
type DatabaseConfig struct {
	URL             string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	UseMock         bool
}

// LoggingConfig controls the global logger.
type LoggingConfig struct {
	Level string
	File  string
}

// AuthConfig groups browser session and API token settings.
type AuthConfig struct {
	Session SessionConfig
	Token   TokenConfig
}

// SessionConfig controls the cookie backed sessions.
type SessionConfig struct {
	Lifetime     time.Duration
	CookieName   string
	CookieDomain string
	CookieSecure bool
}

// TokenConfig controls API token issuance.
type TokenConfig struct {
	Secret string
	TTL    time.Duration
}

// Limits are the bounds enforced on user supplied catalog data.
type Limits struct {
	CookingTimeMin   int `yaml:"cooking_time_min"`
	CookingTimeMax   int `yaml:"cooking_time_max"`
	AmountMin        int `yaml:"amount_min"`
	AmountMax        int `yaml:"amount_max"`
	UsernameMinLen   int `yaml:"username_min_len"`
	UsernameMaxLen   int `yaml:"username_max_len"`
	TagMaxLen        int `yaml:"tag_max_len"`
	RecipeNameMaxLen int `yaml:"recipe_name_max_len"`
	RecipeTextMaxLen int `yaml:"recipe_text_max_len"`
	RecipesLimit     int `yaml:"recipes_limit"`
	PageSize         int `yaml:"page_size"`
}

// DefaultLimits returns the bounds used when nothing overrides them.
func DefaultLimits() Limits {
	return Limits{
		CookingTimeMin:   1,
		CookingTimeMax:   300,
		AmountMin:        1,
		AmountMax:        5000,
		UsernameMinLen:   3,
		UsernameMaxLen:   32,
		TagMaxLen:        32,
		RecipeNameMaxLen: 200,
		RecipeTextMaxLen: 5000,
		RecipesLimit:     3,
		PageSize:         6,
	}
}

// Load inspects the environment and builds a Config value. A .env file in the
// working directory is applied first when present.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Config{}

	cfg.Server = ServerConfig{
		Addr: firstNonEmpty(
			os.Getenv("SERVER_ADDR"),
			os.Getenv("ADDR"),
			":8080",
		),
	}

	cfg.Database = DatabaseConfig{
		URL: firstNonEmpty(
			os.Getenv("DATABASE_URL"),
			os.Getenv("DB_URL"),
			"",
		),
		MaxIdleConns:    parseIntWithDefault(os.Getenv("DATABASE_MAX_IDLE_CONNS"), 0),
		MaxOpenConns:    parseIntWithDefault(os.Getenv("DATABASE_MAX_OPEN_CONNS"), 0),
		ConnMaxLifetime: parseDurationWithDefault(os.Getenv("DATABASE_CONN_MAX_LIFETIME"), 0),
		ConnMaxIdleTime: parseDurationWithDefault(os.Getenv("DATABASE_CONN_MAX_IDLE_TIME"), 0),
		UseMock:         parseBoolWithDefault(os.Getenv("DATABASE_USE_MOCK"), false),
	}

	cfg.Logging = LoggingConfig{
		Level: firstNonEmpty(os.Getenv("LOG_LEVEL"), "info"),
		File:  strings.TrimSpace(os.Getenv("LOG_FILE")),
	}

	cfg.Auth = AuthConfig{
		Session: SessionConfig{
			Lifetime:     parseDurationWithDefault(os.Getenv("SESSION_LIFETIME"), 12*time.Hour),
			CookieName:   firstNonEmpty(os.Getenv("SESSION_COOKIE_NAME"), "foodgram_session"),
			CookieDomain: strings.TrimSpace(os.Getenv("SESSION_COOKIE_DOMAIN")),
			CookieSecure: parseBoolWithDefault(os.Getenv("SESSION_COOKIE_SECURE"), true),
		},
		Token: TokenConfig{
			Secret: firstNonEmpty(os.Getenv("TOKEN_SECRET"), os.Getenv("JWT_SECRET")),
			TTL:    parseDurationWithDefault(os.Getenv("TOKEN_TTL"), 24*time.Hour),
		},
	}

	limits, err := loadLimits(os.Getenv("LIMITS_FILE"))
	if err != nil {
		return Config{}, err
	}
	cfg.Limits = limits

	if strings.TrimSpace(cfg.Server.Addr) == "" {
		return Config{}, fmt.Errorf("server address must not be empty")
	}

	return cfg, nil
}

// loadLimits layers the defaults, an optional YAML file and LIMIT_* variables.
func loadLimits(path string) (Limits, error) {
	limits := DefaultLimits()

	if path = strings.TrimSpace(path); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Limits{}, fmt.Errorf("read limits file: %w", err)
		}
		if err := yaml.Unmarshal(data, &limits); err != nil {
			return Limits{}, fmt.Errorf("parse limits file: %w", err)
		}
	}

	limits.CookingTimeMin = parseIntWithDefault(os.Getenv("LIMIT_COOKING_TIME_MIN"), limits.CookingTimeMin)
	limits.CookingTimeMax = parseIntWithDefault(os.Getenv("LIMIT_COOKING_TIME_MAX"), limits.CookingTimeMax)
	limits.AmountMin = parseIntWithDefault(os.Getenv("LIMIT_AMOUNT_MIN"), limits.AmountMin)
	limits.AmountMax = parseIntWithDefault(os.Getenv("LIMIT_AMOUNT_MAX"), limits.AmountMax)
	limits.UsernameMinLen = parseIntWithDefault(os.Getenv("LIMIT_USERNAME_MIN_LEN"), limits.UsernameMinLen)
	limits.UsernameMaxLen = parseIntWithDefault(os.Getenv("LIMIT_USERNAME_MAX_LEN"), limits.UsernameMaxLen)
	limits.TagMaxLen = parseIntWithDefault(os.Getenv("LIMIT_TAG_MAX_LEN"), limits.TagMaxLen)
	limits.RecipeNameMaxLen = parseIntWithDefault(os.Getenv("LIMIT_RECIPE_NAME_MAX_LEN"), limits.RecipeNameMaxLen)
	limits.RecipeTextMaxLen = parseIntWithDefault(os.Getenv("LIMIT_RECIPE_TEXT_MAX_LEN"), limits.RecipeTextMaxLen)
	limits.RecipesLimit = parseIntWithDefault(os.Getenv("LIMIT_RECIPES_LIMIT"), limits.RecipesLimit)
	limits.PageSize = parseIntWithDefault(os.Getenv("LIMIT_PAGE_SIZE"), limits.PageSize)

	if err := limits.Validate(); err != nil {
		return Limits{}, err
	}
	return limits, nil
}

// Validate rejects inverted or non-positive bounds.
func (l Limits) Validate() error {
	if l.CookingTimeMin < 1 || l.CookingTimeMax < l.CookingTimeMin {
		return fmt.Errorf("invalid cooking time bounds [%d, %d]", l.CookingTimeMin, l.CookingTimeMax)
	}
	if l.AmountMin < 1 || l.AmountMax < l.AmountMin {
		return fmt.Errorf("invalid amount bounds [%d, %d]", l.AmountMin, l.AmountMax)
	}
	if l.UsernameMinLen < 1 || l.UsernameMaxLen < l.UsernameMinLen {
		return fmt.Errorf("invalid username length bounds [%d, %d]", l.UsernameMinLen, l.UsernameMaxLen)
	}
	if l.TagMaxLen < 1 {
		return fmt.Errorf("invalid tag length bound %d", l.TagMaxLen)
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}

func parseIntWithDefault(value string, def int) int {
	value = strings.TrimSpace(value)
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func parseDurationWithDefault(value string, def time.Duration) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return def
	}
	return parsed
}

func parseBoolWithDefault(value string, def bool) bool {
	value = strings.TrimSpace(value)
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return def
	}
	return parsed
}
