package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadRequiresDatabaseAndRedis(t *testing.T) {
	_, err := LoadForTests(map[string]string{
		"DATABASE_URL": "",
		"REDIS_URL":    "",
	})
	require.Error(t, err)

	_, err = LoadForTests(map[string]string{
		"DATABASE_URL": "postgres://localhost/bazaar",
		"REDIS_URL":    "",
	})
	require.Error(t, err)
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadForTests(map[string]string{
		"DATABASE_URL":     "postgres://localhost/bazaar",
		"REDIS_URL":        "redis://localhost:6379",
		"DEFAULT_CURRENCY": "",
		"PORT":             "",
	})
	require.NoError(t, err)
	require.Equal(t, "AED", cfg.DefaultCurrency)
	require.Equal(t, ":8080", cfg.HTTPAddr())
	require.Equal(t, 20, cfg.CatalogDefaultLimit)
	require.Equal(t, "sandbox", cfg.PaymentProvider)
	require.Equal(t, 1, cfg.CouponPerUserLimit)
}

func TestHTTPAddrPassthrough(t *testing.T) {
	cfg := &Config{Port: ":9000"}
	require.Equal(t, ":9000", cfg.HTTPAddr())
	cfg.Port = "9001"
	require.Equal(t, ":9001", cfg.HTTPAddr())
}
