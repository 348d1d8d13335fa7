package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("HTTP_ADDR", "")
	t.Setenv("CHECKOUT_SUCCESS_HOLD", "")
	cfg := Load()
	assert.Equal(t, ":8081", cfg.HTTPAddr)
	assert.Equal(t, "http://localhost:5000/api", cfg.BackendURL)
	assert.Equal(t, 3*time.Second, cfg.CheckoutSuccessHold)
	assert.Equal(t, []string{"kafka:9092"}, cfg.KafkaBrokers)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "k1:9092, ,k2:9092")
	t.Setenv("CHECKOUT_SUCCESS_HOLD", "5s")
	t.Setenv("REQUEST_TIMEOUT", "not-a-duration")
	t.Setenv("JOURNAL_WORKERS", "-2")
	t.Setenv("STORE_ID", "store-42")

	cfg := Load()
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 5*time.Second, cfg.CheckoutSuccessHold)
	assert.Equal(t, 10*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 4, cfg.JournalWorkers)
	assert.Equal(t, "store-42", cfg.StoreID)
}
