package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_DefaultsAndEnv(t *testing.T) {
	t.Setenv("JWT_SECRET", "from-env")
	t.Setenv("REMOTE_TIMEOUT", "3s")

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.JWT.Secret)
	assert.Equal(t, 3*time.Second, cfg.Remote.Timeout)
	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, 2*time.Second, cfg.Cache.DedupeInterval)
	assert.Equal(t, 7*24*time.Hour, cfg.Draft.TTL)
	assert.Equal(t, "fittrack", cfg.Database.Name)
}

func TestLoadConfig_File(t *testing.T) {
	dir := t.TempDir()
	yaml := `
server:
  address: ":9090"
jwt:
  secret: "file-secret"
  expiration: "30m"
s3:
  bucket_name: "avatars"
ratelimit:
  per_minute: 20
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o600))

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Address)
	assert.Equal(t, "file-secret", cfg.JWT.Secret)
	assert.Equal(t, 30*time.Minute, cfg.JWT.Expiration)
	assert.Equal(t, "avatars", cfg.S3.BucketName)
	assert.Equal(t, 20, cfg.RateLimit.PerMinute)
}

func TestLoadConfig_RequiresSecret(t *testing.T) {
	_, err := LoadConfig(t.TempDir())
	assert.EqualError(t, err, "jwt.secret is required")
}
