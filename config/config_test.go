package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("PDF_TIMEOUT", "")
	t.Setenv("INVOICE_PREFIX", "")
	t.Setenv("RECONCILE_SCHEDULE", "")

	cfg := Load()

	assert.Equal(t, "INV", cfg.Business.InvoicePrefix)
	assert.Equal(t, 60*time.Second, cfg.Business.PDFTimeout)
	assert.Equal(t, 24*time.Hour, cfg.Business.IdempotencyTTL)
	assert.Equal(t, "@every 15m", cfg.Reconcile.Schedule)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PDF_TIMEOUT", "30")
	t.Setenv("TOKEN_TTL", "2h")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("PUBLIC_BASE_URL", "https://assets.example.com/")

	cfg := Load()

	assert.Equal(t, 30*time.Second, cfg.Business.PDFTimeout)
	assert.Equal(t, 2*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "https://assets.example.com", cfg.Business.PublicBaseURL)
}

func TestGetDuration_Invalid(t *testing.T) {
	t.Setenv("SOME_TIMEOUT", "soon")
	assert.Equal(t, time.Minute, getDuration("SOME_TIMEOUT", time.Minute))
}
