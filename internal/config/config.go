package config

import (
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	// EnvDevelopment enables verbose logs and error details in responses.
	EnvDevelopment = "development"
	// EnvProduction hides internal error detail from clients.
	EnvProduction = "production"

	defaultJWTSecret = "change-me"
)

// Config holds application level configuration loaded from the environment.
// It is read once at startup and never mutated afterwards.
type Config struct {
	AppEnv     string
	ServerPort string

	DBDriver    string
	DatabaseDSN string
	ResetDB     bool

	RedisAddr string
	RedisDB   int
	RedisPass string

	JWTSecret         string
	JWTExpiresIn      time.Duration
	CookieExpiresDays int
	CookieSecure      bool
	BcryptCost        int
	ResetTokenTTL     time.Duration

	MailHost     string
	MailPort     int
	MailUsername string
	MailPassword string
	MailFrom     string

	// PublicBaseURL is the externally visible origin used in emailed links.
	PublicBaseURL string

	DemoMode    bool
	SwaggerHost string

	// Used by cmd/seed only.
	SeedAdminEmail    string
	SeedAdminPassword string
	SeedUsersURL      string
}

// IsDevelopment reports whether the process runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == EnvDevelopment
}

// CookieMaxAge is the lifetime of the session cookie.
func (c *Config) CookieMaxAge() time.Duration {
	return time.Duration(c.CookieExpiresDays) * 24 * time.Hour
}

// Validate rejects settings that are only acceptable on a developer machine.
func (c *Config) Validate() error {
	if c.IsDevelopment() {
		return nil
	}
	var errs []error
	if c.JWTSecret == "" || c.JWTSecret == defaultJWTSecret {
		errs = append(errs, errors.New("JWT_SECRET must be set outside development"))
	}
	if c.PublicBaseURL == "" {
		errs = append(errs, errors.New("PUBLIC_BASE_URL must be set outside development"))
	}
	return errors.Join(errs...)
}

// Load builds Config from a local .env file (if any) and the process environment.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", slog.Any("error", err))
	}
	return fromViper(newViper())
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("APP_ENV", EnvDevelopment)
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("DB_DRIVER", "mysql")
	v.SetDefault("DATABASE_DSN", "user:password@tcp(localhost:3306)/taskhub?charset=utf8mb4&parseTime=True&loc=Local")
	v.SetDefault("RESET_DB", false)
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("JWT_SECRET", defaultJWTSecret)
	v.SetDefault("JWT_EXPIRES_IN", 90*24*time.Hour)
	v.SetDefault("JWT_COOKIE_EXPIRES_IN", 90)
	v.SetDefault("COOKIE_SECURE", false)
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("RESET_TOKEN_TTL", 10*time.Minute)
	v.SetDefault("MAIL_PORT", 587)
	v.SetDefault("MAIL_FROM", "taskhub <no-reply@taskhub.local>")
	v.SetDefault("DEMO_MODE", false)
	return v
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		AppEnv:            v.GetString("APP_ENV"),
		ServerPort:        v.GetString("SERVER_PORT"),
		DBDriver:          strings.ToLower(v.GetString("DB_DRIVER")),
		DatabaseDSN:       v.GetString("DATABASE_DSN"),
		ResetDB:           v.GetBool("RESET_DB"),
		RedisAddr:         v.GetString("REDIS_ADDR"),
		RedisDB:           v.GetInt("REDIS_DB"),
		RedisPass:         v.GetString("REDIS_PASSWORD"),
		JWTSecret:         v.GetString("JWT_SECRET"),
		JWTExpiresIn:      v.GetDuration("JWT_EXPIRES_IN"),
		CookieExpiresDays: v.GetInt("JWT_COOKIE_EXPIRES_IN"),
		CookieSecure:      v.GetBool("COOKIE_SECURE"),
		BcryptCost:        v.GetInt("BCRYPT_COST"),
		ResetTokenTTL:     v.GetDuration("RESET_TOKEN_TTL"),
		MailHost:          v.GetString("MAIL_HOST"),
		MailPort:          v.GetInt("MAIL_PORT"),
		MailUsername:      v.GetString("MAIL_USERNAME"),
		MailPassword:      v.GetString("MAIL_PASSWORD"),
		MailFrom:          v.GetString("MAIL_FROM"),
		PublicBaseURL:     strings.TrimRight(v.GetString("PUBLIC_BASE_URL"), "/"),
		DemoMode:          v.GetBool("DEMO_MODE"),
		SwaggerHost:       v.GetString("SWAGGER_HOST"),
		SeedAdminEmail:    v.GetString("SEED_ADMIN_EMAIL"),
		SeedAdminPassword: v.GetString("SEED_ADMIN_PASSWORD"),
		SeedUsersURL:      v.GetString("SEED_USERS_URL"),
	}
}
