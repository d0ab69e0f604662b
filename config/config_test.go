package config

import (
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeEnv(vars map[string]string) func(string) string {
	return func(k string) string { return vars[k] }
}

func TestParse_Defaults(t *testing.T) {
	cfg, err := parse(nil, fakeEnv(nil))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "shop.db", cfg.DBPath)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.True(t, cfg.LogJSON)
	assert.Empty(t, cfg.RedisAddr)
	assert.Equal(t, time.Hour, cfg.CacheTTL)
	assert.Equal(t, 10*time.Second, cfg.LockTTL)
	assert.Equal(t, "465", cfg.SMTPPort)
	assert.Equal(t, "50000.00", cfg.AlertThreshold.String())
	assert.Equal(t, "IN", cfg.PhoneRegion)
	assert.Equal(t, 24*time.Hour, cfg.OverdueInterval)
	assert.Equal(t, []string{"http://localhost:5173", "http://localhost:8080"}, cfg.AllowedOrigins)
}

func TestParse_EnvThenFlags(t *testing.T) {
	env := fakeEnv(map[string]string{
		"SHOP_PORT":             "9000",
		"SHOP_DB_PATH":          "/data/env.db",
		"SHOP_REDIS_ADDR":       "redis:6379",
		"SHOP_REDIS_DB":         "2",
		"SHOP_LOG_JSON":         "false",
		"SHOP_ALERT_THRESHOLD":  "25000.5",
		"SHOP_ALLOWED_ORIGINS":  " https://shop.example , ,https://admin.shop.example",
		"SHOP_OVERDUE_INTERVAL": "0s",
	})

	cfg, err := parse([]string{"-port=3000", "-alert-threshold=1000"}, env)
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Port, "flag overrides env")
	assert.Equal(t, "/data/env.db", cfg.DBPath)
	assert.Equal(t, "redis:6379", cfg.RedisAddr)
	assert.Equal(t, 2, cfg.RedisDB)
	assert.False(t, cfg.LogJSON)
	assert.Equal(t, "1000.00", cfg.AlertThreshold.String())
	assert.Equal(t, time.Duration(0), cfg.OverdueInterval)
	assert.Equal(t, []string{"https://shop.example", "https://admin.shop.example"}, cfg.AllowedOrigins)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		env  map[string]string
		want string
	}{
		{"bad port env", nil, map[string]string{"SHOP_PORT": "eighty"}, "SHOP_PORT"},
		{"bad bool env", nil, map[string]string{"SHOP_LOG_JSON": "maybe"}, "SHOP_LOG_JSON"},
		{"bad duration env", nil, map[string]string{"SHOP_CACHE_TTL": "forever"}, "SHOP_CACHE_TTL"},
		{"first bad env wins", nil, map[string]string{"SHOP_PORT": "x", "SHOP_CACHE_TTL": "y"}, "SHOP_PORT"},
		{"bad threshold", []string{"-alert-threshold=lots"}, nil, "alert-threshold"},
		{"unknown flag", []string{"-nope"}, nil, "nope"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parse(tt.args, fakeEnv(tt.env))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestNewLogger(t *testing.T) {
	logg := NewLogger("debug", true)
	assert.Equal(t, logrus.DebugLevel, logg.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, logg.Formatter)

	logg = NewLogger("shouting", false)
	assert.Equal(t, logrus.InfoLevel, logg.GetLevel())
	assert.IsType(t, &logrus.TextFormatter{}, logg.Formatter)
}

func TestLogError(t *testing.T) {
	logger, hook := test.NewNullLogger()

	LogError(logger, "api", "CreateEntry", "insert failed", map[string]string{"id": "e-1"}, errors.New("disk full"))
	LogError(logger, "main", "main", "shutdown", nil, errors.New("timeout"))

	require.Len(t, hook.Entries, 2)
	first := hook.Entries[0]
	assert.Equal(t, logrus.ErrorLevel, first.Level)
	assert.Equal(t, "disk full", first.Message)
	assert.Equal(t, "api", first.Data["module"])
	assert.Equal(t, "CreateEntry", first.Data["funcName"])
	assert.Equal(t, "insert failed", first.Data["context"])
	assert.Contains(t, first.Data, "data")
	assert.NotContains(t, hook.Entries[1].Data, "data")
}
