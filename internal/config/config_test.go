package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.LoadDefaults()

	assert.Equal(t, ":8080", cfg.EndpointAddrHTTP)
	assert.Equal(t, "whatsapp-files", cfg.S3Bucket)
	assert.Equal(t, "https://web.whatsapp.com/", cfg.WebClientURL)
	assert.Equal(t, 30*time.Second, cfg.QRWaitTimeout)
	assert.Equal(t, 24*time.Hour, cfg.TokenValidityDuration)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestParseEnv_Overlay(t *testing.T) {
	t.Setenv("MEDIASYNC_HTTP_ADDR", ":9090")
	t.Setenv("MEDIASYNC_SECRET_KEY", "env-secret")
	t.Setenv("MEDIASYNC_QR_WAIT_TIMEOUT", "45s")
	t.Setenv("MEDIASYNC_LOG_FORMAT", "console")

	cfg := &Config{}
	cfg.LoadDefaults()
	parseEnv(cfg)

	assert.Equal(t, ":9090", cfg.EndpointAddrHTTP)
	assert.Equal(t, "env-secret", cfg.SecretKey)
	assert.Equal(t, 45*time.Second, cfg.QRWaitTimeout)
	assert.Equal(t, "console", cfg.LogFormat)
	// Untouched fields keep their defaults.
	assert.Equal(t, "whatsapp-files", cfg.S3Bucket)
}

func TestParseEnv_MalformedDurationIgnored(t *testing.T) {
	t.Setenv("MEDIASYNC_QR_WAIT_TIMEOUT", "soon")

	cfg := &Config{}
	cfg.LoadDefaults()
	parseEnv(cfg)

	assert.Equal(t, 30*time.Second, cfg.QRWaitTimeout)
}

func TestParseEnv_ScanRoots(t *testing.T) {
	t.Setenv("MEDIASYNC_SCAN_ROOTS", "/srv/media:/mnt/phone")

	cfg := &Config{}
	cfg.LoadDefaults()
	parseEnv(cfg)

	assert.Equal(t, []string{"/srv/media", "/mnt/phone"}, cfg.ScanRoots)
}
