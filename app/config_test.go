package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfig(t *testing.T) {
	content := `PORT=4000
ENVIRONMENT=test
VERSION=1.0.0
BASE_URL=http://localhost:4000
POSTGRES_HOST=localhost
POSTGRES_PORT=5432
POSTGRES_USER=postgres
POSTGRES_PASSWORD=secret
POSTGRES_DB=chronicle
MAIL_HOST=smtp.example.com
MAIL_PORT=587
MAIL_USER=mailer
MAIL_PASSWORD=mailpass
MAIL_SENDER=Chronicle <no-reply@example.com>
RABBITMQ_HOST=localhost
RABBITMQ_PORT=5672
RABBITMQ_USER=guest
RABBITMQ_PASSWORD=guest
`

	path := filepath.Join(t.TempDir(), ".env")
	err := os.WriteFile(path, []byte(content), 0644)
	assert.NoError(t, err)

	cfg, err := loadConfig(path)
	assert.NoError(t, err)

	assert.Equal(t, "4000", cfg.Port)
	assert.Equal(t, "test", cfg.Environment)
	assert.Equal(t, "http://localhost:4000", cfg.BaseURL)
	assert.Equal(t, "localhost", cfg.DB.Host)
	assert.Equal(t, "chronicle", cfg.DB.Name)
	assert.Equal(t, "smtp.example.com", cfg.Mail.Host)
	assert.Equal(t, 587, cfg.Mail.Port)
	assert.Equal(t, "Chronicle <no-reply@example.com>", cfg.Mail.Sender)
	assert.Equal(t, "guest", cfg.RabbitMQ.User)

	// limiter falls back to its defaults when unset
	assert.Equal(t, float64(2), cfg.Limiter.RPS)
	assert.Equal(t, 4, cfg.Limiter.Burst)
	assert.True(t, cfg.Limiter.Enabled)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := loadConfig(filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)
}
