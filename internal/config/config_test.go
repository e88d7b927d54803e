package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := fromViper(newViper())

	assert.Equal(t, EnvDevelopment, cfg.AppEnv)
	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, "mysql", cfg.DBDriver)
	assert.Equal(t, 90*24*time.Hour, cfg.JWTExpiresIn)
	assert.Equal(t, 12, cfg.BcryptCost)
	assert.Equal(t, 10*time.Minute, cfg.ResetTokenTTL)
	assert.Equal(t, 90*24*time.Hour, cfg.CookieMaxAge())
	assert.False(t, cfg.DemoMode)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("APP_ENV", EnvProduction)
	t.Setenv("DB_DRIVER", "Postgres")
	t.Setenv("JWT_EXPIRES_IN", "1h")
	t.Setenv("RESET_TOKEN_TTL", "30s")
	t.Setenv("DEMO_MODE", "true")
	t.Setenv("REDIS_DB", "3")

	cfg := fromViper(newViper())

	assert.False(t, cfg.IsDevelopment())
	assert.Equal(t, "postgres", cfg.DBDriver)
	assert.Equal(t, time.Hour, cfg.JWTExpiresIn)
	assert.Equal(t, 30*time.Second, cfg.ResetTokenTTL)
	assert.True(t, cfg.DemoMode)
	assert.Equal(t, 3, cfg.RedisDB)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr []string
	}{
		{name: "development accepts defaults"},
		{
			name:    "production with default secret",
			env:     map[string]string{"APP_ENV": EnvProduction, "PUBLIC_BASE_URL": "https://app.taskhub.io"},
			wantErr: []string{"JWT_SECRET"},
		},
		{
			name:    "production without public url",
			env:     map[string]string{"APP_ENV": EnvProduction, "JWT_SECRET": "s3cr3t-value"},
			wantErr: []string{"PUBLIC_BASE_URL"},
		},
		{
			name:    "production with neither",
			env:     map[string]string{"APP_ENV": EnvProduction},
			wantErr: []string{"JWT_SECRET", "PUBLIC_BASE_URL"},
		},
		{
			name: "production fully configured",
			env:  map[string]string{"APP_ENV": EnvProduction, "JWT_SECRET": "s3cr3t-value", "PUBLIC_BASE_URL": "https://app.taskhub.io/"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			err := fromViper(newViper()).Validate()
			if len(tt.wantErr) == 0 {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			for _, want := range tt.wantErr {
				assert.Contains(t, err.Error(), want)
			}
		})
	}
}

func TestLoad_PublicBaseURLTrimsSlash(t *testing.T) {
	t.Setenv("PUBLIC_BASE_URL", "https://app.taskhub.io/")
	assert.Equal(t, "https://app.taskhub.io", fromViper(newViper()).PublicBaseURL)
}
