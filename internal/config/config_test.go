package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestLoadFrom_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)

	cfg, err := LoadFrom("")
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, DefaultLocation, cfg.DefaultLocation)
	assert.Equal(t, 30*24*time.Hour, cfg.JWTTTL)
	assert.Empty(t, cfg.KafkaBrokers)
}

func TestLoadFrom_RejectsShortSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "short")

	_, err := LoadFrom("")
	assert.Error(t, err)
}

func TestLoadFrom_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gym.yaml")
	content := "http_port: \"9090\"\n" +
		"jwt_secret: " + testSecret + "\n" +
		"default_location: UAN\n" +
		"kafka_brokers: [\"k1:9092\"]\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("HTTP_PORT", "7070")
	t.Setenv("KAFKA_BROKERS", "a:9092, b:9092,")
	t.Setenv("JWT_TTL", "12h")

	cfg, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, "7070", cfg.HTTPPort)
	assert.Equal(t, "UAN", cfg.DefaultLocation)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 12*time.Hour, cfg.JWTTTL)
}

func TestLoadFrom_BadDuration(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("IDEMPOTENCY_TTL", "soon")

	_, err := LoadFrom("")
	assert.Error(t, err)
}
