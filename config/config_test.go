package config

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Setenv("GO_ENV", "test")
	t.Setenv("DATABASE_URL", ":memory:")
	t.Setenv("DATABASE_DRIVER", "sqlite")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("TOKEN_TTL", "2h")
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://a.test,http://b.test")
	t.Setenv("SURVEY_FEE", "750000")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.IsTest())
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 2*time.Hour, cfg.TokenTTL)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, "750000", cfg.SurveyFee.String())
	assert.Equal(t, "BCA", cfg.VABank)
	assert.Equal(t, "local", cfg.StorageDriver)
	assert.Equal(t, 5*time.Minute, cfg.DashboardCacheTTL)
	assert.Same(t, cfg, GetConfig())
}

func TestLoadRequiresDatabaseURL(t *testing.T) {
	t.Setenv("GO_ENV", "test")
	t.Setenv("DATABASE_URL", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name: "valid local storage",
			cfg:  Config{GoEnv: "production", DatabaseDriver: "postgres", DatabaseURL: "postgres://x", JWTSecret: "s", StorageDriver: "local"},
		},
		{
			name:    "missing jwt secret outside test",
			cfg:     Config{GoEnv: "production", DatabaseDriver: "postgres", DatabaseURL: "postgres://x", StorageDriver: "local"},
			wantErr: true,
		},
		{
			name: "missing jwt secret in test",
			cfg:  Config{GoEnv: "test", DatabaseDriver: "sqlite", DatabaseURL: ":memory:", StorageDriver: "local"},
		},
		{
			name:    "s3 without bucket",
			cfg:     Config{GoEnv: "test", DatabaseDriver: "sqlite", DatabaseURL: ":memory:", StorageDriver: "s3"},
			wantErr: true,
		},
		{
			name:    "unknown driver",
			cfg:     Config{GoEnv: "test", DatabaseDriver: "mysql", DatabaseURL: "x", StorageDriver: "local"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestExternalLoginEnabled(t *testing.T) {
	cfg := &Config{}
	assert.False(t, cfg.ExternalLoginEnabled())

	cfg.IdentityIssuer = "https://issuer.test/"
	cfg.IdentityAudience = "triloka"
	assert.True(t, cfg.ExternalLoginEnabled())
}

func TestConnectRedis(t *testing.T) {
	client, err := ConnectRedis(&Config{})
	assert.NoError(t, err)
	assert.Nil(t, client)

	mr := miniredis.RunT(t)
	client, err = ConnectRedis(&Config{RedisAddr: mr.Addr()})
	require.NoError(t, err)
	require.NotNil(t, client)
	assert.NoError(t, client.Close())
}
