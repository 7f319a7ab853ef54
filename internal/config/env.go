package config

import (
	"os"
	"strings"
	"time"
)

// parseEnv overlays configuration values from MEDIASYNC_* environment
// variables. Unset or empty variables leave the current value in place;
// malformed durations are ignored rather than aborting startup.
func parseEnv(config *Config) {
	if v := os.Getenv("MEDIASYNC_HTTP_ADDR"); v != "" {
		config.EndpointAddrHTTP = v
	}
	if v := os.Getenv("MEDIASYNC_DATABASE_DSN"); v != "" {
		config.DatabaseDSN = v
	}
	if v := os.Getenv("MEDIASYNC_SECRET_KEY"); v != "" {
		config.SecretKey = v
	}
	if v := os.Getenv("MEDIASYNC_TOKEN_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			config.TokenValidityDuration = d
		}
	}
	if v := os.Getenv("MEDIASYNC_S3_ROOT_USER"); v != "" {
		config.S3RootUser = v
	}
	if v := os.Getenv("MEDIASYNC_S3_ROOT_PASSWORD"); v != "" {
		config.S3RootPassword = v
	}
	if v := os.Getenv("MEDIASYNC_S3_BUCKET"); v != "" {
		config.S3Bucket = v
	}
	if v := os.Getenv("MEDIASYNC_S3_REGION"); v != "" {
		config.S3Region = v
	}
	if v := os.Getenv("MEDIASYNC_S3_ENDPOINT"); v != "" {
		config.S3BaseEndpoint = v
	}
	if v := os.Getenv("MEDIASYNC_DATA_DIR"); v != "" {
		config.DataDir = v
	}
	if v := os.Getenv("MEDIASYNC_WEB_CLIENT_URL"); v != "" {
		config.WebClientURL = v
	}
	if v := os.Getenv("MEDIASYNC_QR_WAIT_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			config.QRWaitTimeout = d
		}
	}
	if v := os.Getenv("MEDIASYNC_SCAN_ROOTS"); v != "" {
		roots := strings.Split(v, string(os.PathListSeparator))
		cleaned := roots[:0]
		for _, r := range roots {
			if r = strings.TrimSpace(r); r != "" {
				cleaned = append(cleaned, r)
			}
		}
		if len(cleaned) > 0 {
			config.ScanRoots = cleaned
		}
	}
	if v := os.Getenv("MEDIASYNC_LOG_FORMAT"); v != "" {
		config.LogFormat = v
	}
}
