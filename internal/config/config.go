package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	HTTPAddr    string // FEEDPULSE_HTTP_ADDR (default ":8080")
	GRPCAddr    string // FEEDPULSE_GRPC_ADDR (default ":9090")
	NATSURL     string // FEEDPULSE_NATS_URL (optional, empty = no mirror or ingest)
	DatabaseURL string // FEEDPULSE_DATABASE_URL (optional, empty = no archive)
	AuthToken   string // FEEDPULSE_AUTH_TOKEN (optional, empty = auth disabled)

	// Engine settings
	HistoryCap     int           // FEEDPULSE_HISTORY_CAP (default 100)
	HandlerTimeout time.Duration // FEEDPULSE_HANDLER_TIMEOUT (default 0 = unbounded)
	ScenarioFile   string        // FEEDPULSE_SCENARIO_FILE (optional YAML simulation scenario)
	PresenceIdle   time.Duration // FEEDPULSE_PRESENCE_IDLE (default 15m; actors quiet this long are idle)

	// Export settings
	ExportInterval   time.Duration // FEEDPULSE_EXPORT_INTERVAL (default 0 = disabled)
	ExportS3Bucket   string        // FEEDPULSE_EXPORT_S3_BUCKET (enables S3 when set)
	ExportS3Endpoint string        // FEEDPULSE_EXPORT_S3_ENDPOINT (custom endpoint for MinIO)
	ExportS3Region   string        // FEEDPULSE_EXPORT_S3_REGION (default "us-east-1")
	ExportS3Key      string        // FEEDPULSE_EXPORT_S3_KEY (default "feedpulse/events.jsonl")
	ExportGitRepo    string        // FEEDPULSE_EXPORT_GIT_REPO (enables git when set; path to clone)
	ExportGitFile    string        // FEEDPULSE_EXPORT_GIT_FILE (default "events.jsonl")
	ExportGitBranch  string        // FEEDPULSE_EXPORT_GIT_BRANCH (default "main")
}

func Load() (*Config, error) {
	c := &Config{
		HTTPAddr:         envOrDefault("FEEDPULSE_HTTP_ADDR", ":8080"),
		GRPCAddr:         envOrDefault("FEEDPULSE_GRPC_ADDR", ":9090"),
		NATSURL:          os.Getenv("FEEDPULSE_NATS_URL"),
		DatabaseURL:      os.Getenv("FEEDPULSE_DATABASE_URL"),
		AuthToken:        os.Getenv("FEEDPULSE_AUTH_TOKEN"),
		ScenarioFile:     os.Getenv("FEEDPULSE_SCENARIO_FILE"),
		ExportS3Bucket:   os.Getenv("FEEDPULSE_EXPORT_S3_BUCKET"),
		ExportS3Endpoint: os.Getenv("FEEDPULSE_EXPORT_S3_ENDPOINT"),
		ExportS3Region:   envOrDefault("FEEDPULSE_EXPORT_S3_REGION", "us-east-1"),
		ExportS3Key:      envOrDefault("FEEDPULSE_EXPORT_S3_KEY", "feedpulse/events.jsonl"),
		ExportGitRepo:    os.Getenv("FEEDPULSE_EXPORT_GIT_REPO"),
		ExportGitFile:    envOrDefault("FEEDPULSE_EXPORT_GIT_FILE", "events.jsonl"),
		ExportGitBranch:  envOrDefault("FEEDPULSE_EXPORT_GIT_BRANCH", "main"),
	}

	capStr := envOrDefault("FEEDPULSE_HISTORY_CAP", "100")
	n, err := strconv.Atoi(capStr)
	if err != nil {
		return nil, fmt.Errorf("FEEDPULSE_HISTORY_CAP: %w", err)
	}
	if n <= 0 {
		return nil, fmt.Errorf("FEEDPULSE_HISTORY_CAP: must be positive, got %d", n)
	}
	c.HistoryCap = n

	if c.HandlerTimeout, err = durationEnv("FEEDPULSE_HANDLER_TIMEOUT", "0s"); err != nil {
		return nil, err
	}
	if c.PresenceIdle, err = durationEnv("FEEDPULSE_PRESENCE_IDLE", "15m"); err != nil {
		return nil, err
	}
	if c.ExportInterval, err = durationEnv("FEEDPULSE_EXPORT_INTERVAL", "0s"); err != nil {
		return nil, err
	}
	if c.ExportInterval > 0 && c.DatabaseURL == "" {
		return nil, fmt.Errorf("FEEDPULSE_EXPORT_INTERVAL requires FEEDPULSE_DATABASE_URL")
	}

	return c, nil
}

func durationEnv(key, fallback string) (time.Duration, error) {
	d, err := time.ParseDuration(envOrDefault(key, fallback))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: must not be negative", key)
	}
	return d, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
