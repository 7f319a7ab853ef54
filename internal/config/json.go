package config

import (
	"encoding/json"
	"os"

	"github.com/nileshh/whatsapp-media-sync/internal/flagx"
	"github.com/nileshh/whatsapp-media-sync/internal/timex"
)

// JSONConfig defines a configuration structure tailored for JSON
// unmarshalling. It uses timex.Duration for interval fields, which allows
// parsing both string values such as "30s" and integer nanoseconds.
//
// This struct is an intermediate DTO used only for reading JSON
// configuration files. After unmarshalling, its fields are copied into
// the runtime Config struct which uses time.Duration.
type JSONConfig struct {
	EndpointAddrHTTP      string         `json:"endpoint_addr_http"`
	DatabaseDSN           string         `json:"database_dsn"`
	SecretKey             string         `json:"secret_key"`
	TokenValidityDuration timex.Duration `json:"token_validity_duration"`
	S3RootUser            string         `json:"s3_root_user"`
	S3RootPassword        string         `json:"s3_root_password"`
	S3Bucket              string         `json:"s3_bucket"`
	S3Region              string         `json:"s3_region"`
	S3BaseEndpoint        string         `json:"s3_base_endpoint"`
	DataDir               string         `json:"data_dir"`
	WebClientURL          string         `json:"web_client_url"`
	QRWaitTimeout         timex.Duration `json:"qr_wait_timeout"`
	ScanRoots             []string       `json:"scan_roots"`
	LogFormat             string         `json:"log_format"`
}

// parseJSON loads configuration values from a JSON file into the provided
// Config instance. The file path comes from the -c or -config flags; when
// neither is set, no JSON file is loaded. Unreadable or invalid files
// panic, since running with a half-applied config is worse than not
// starting.
func parseJSON(config *Config) {
	jsonConfigFile := flagx.JSONConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	c := &JSONConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	if c.EndpointAddrHTTP != "" {
		config.EndpointAddrHTTP = c.EndpointAddrHTTP
	}
	if c.DatabaseDSN != "" {
		config.DatabaseDSN = c.DatabaseDSN
	}
	if c.SecretKey != "" {
		config.SecretKey = c.SecretKey
	}
	if c.TokenValidityDuration.Duration != 0 {
		config.TokenValidityDuration = c.TokenValidityDuration.Duration
	}
	if c.S3RootUser != "" {
		config.S3RootUser = c.S3RootUser
	}
	if c.S3RootPassword != "" {
		config.S3RootPassword = c.S3RootPassword
	}
	if c.S3Bucket != "" {
		config.S3Bucket = c.S3Bucket
	}
	if c.S3Region != "" {
		config.S3Region = c.S3Region
	}
	if c.S3BaseEndpoint != "" {
		config.S3BaseEndpoint = c.S3BaseEndpoint
	}
	if c.DataDir != "" {
		config.DataDir = c.DataDir
	}
	if c.WebClientURL != "" {
		config.WebClientURL = c.WebClientURL
	}
	if c.QRWaitTimeout.Duration != 0 {
		config.QRWaitTimeout = c.QRWaitTimeout.Duration
	}
	if len(c.ScanRoots) > 0 {
		config.ScanRoots = c.ScanRoots
	}
	if c.LogFormat != "" {
		config.LogFormat = c.LogFormat
	}
}
