package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/alfredjeanlab/forms/internal/model"
)

// Store drivers accepted by FORMS_STORE.
const (
	StorePostgres = "postgres"
	StoreBolt     = "bolt"
)

// Config is the server configuration, read from FORMS_* environment variables.
type Config struct {
	Store       string // FORMS_STORE (default "postgres"; "bolt" for an embedded file)
	DatabaseURL string // FORMS_DATABASE_URL (required for postgres)
	BoltPath    string // FORMS_BOLT_PATH (default "forms.db")
	GRPCAddr    string // FORMS_GRPC_ADDR (default ":9090")
	HTTPAddr    string // FORMS_HTTP_ADDR (default ":8080")
	NATSURL     string // FORMS_NATS_URL (optional, empty = no events)
	AuthToken   string // FORMS_AUTH_TOKEN (optional, empty = auth disabled)

	DeletePolicy      model.DeletePolicy // FORMS_DELETE_POLICY (default "reject")
	StrictSubmissions bool               // FORMS_STRICT_SUBMISSIONS (default false)
	StoreTimeout      time.Duration      // FORMS_STORE_TIMEOUT (default 10s)

	// Sync settings
	SyncInterval   time.Duration // FORMS_SYNC_INTERVAL (default 0 = disabled)
	SyncS3Bucket   string        // FORMS_SYNC_S3_BUCKET (enables S3 when set)
	SyncS3Endpoint string        // FORMS_SYNC_S3_ENDPOINT (custom endpoint for MinIO)
	SyncS3Region   string        // FORMS_SYNC_S3_REGION (default "us-east-1")
	SyncS3Key      string        // FORMS_SYNC_S3_KEY (default "forms/backup.jsonl")
	SyncGitRepo    string        // FORMS_SYNC_GIT_REPO (local clone; enables git when set)
	SyncGitFile    string        // FORMS_SYNC_GIT_FILE (default "forms.jsonl")
	SyncGitBranch  string        // FORMS_SYNC_GIT_BRANCH (default "main")
	SyncFile       string        // FORMS_SYNC_FILE (local snapshot path; enables file sync when set)
}

func Load() (*Config, error) {
	c := &Config{
		Store:          envOrDefault("FORMS_STORE", StorePostgres),
		DatabaseURL:    os.Getenv("FORMS_DATABASE_URL"),
		BoltPath:       envOrDefault("FORMS_BOLT_PATH", "forms.db"),
		GRPCAddr:       envOrDefault("FORMS_GRPC_ADDR", ":9090"),
		HTTPAddr:       envOrDefault("FORMS_HTTP_ADDR", ":8080"),
		NATSURL:        os.Getenv("FORMS_NATS_URL"),
		AuthToken:      os.Getenv("FORMS_AUTH_TOKEN"),
		DeletePolicy:   model.DeletePolicy(envOrDefault("FORMS_DELETE_POLICY", string(model.DeleteReject))),
		SyncS3Bucket:   os.Getenv("FORMS_SYNC_S3_BUCKET"),
		SyncS3Endpoint: os.Getenv("FORMS_SYNC_S3_ENDPOINT"),
		SyncS3Region:   envOrDefault("FORMS_SYNC_S3_REGION", "us-east-1"),
		SyncS3Key:      envOrDefault("FORMS_SYNC_S3_KEY", "forms/backup.jsonl"),
		SyncGitRepo:    os.Getenv("FORMS_SYNC_GIT_REPO"),
		SyncGitFile:    envOrDefault("FORMS_SYNC_GIT_FILE", "forms.jsonl"),
		SyncGitBranch:  envOrDefault("FORMS_SYNC_GIT_BRANCH", "main"),
		SyncFile:       os.Getenv("FORMS_SYNC_FILE"),
	}

	switch c.Store {
	case StorePostgres:
		if c.DatabaseURL == "" {
			return nil, fmt.Errorf("FORMS_DATABASE_URL is required when FORMS_STORE=%s", StorePostgres)
		}
	case StoreBolt:
	default:
		return nil, fmt.Errorf("FORMS_STORE: unknown store %q (want %s or %s)", c.Store, StorePostgres, StoreBolt)
	}

	if !c.DeletePolicy.IsValid() {
		return nil, fmt.Errorf("FORMS_DELETE_POLICY: unknown policy %q (want %s or %s)",
			c.DeletePolicy, model.DeleteReject, model.DeleteCascade)
	}

	strict, err := strconv.ParseBool(envOrDefault("FORMS_STRICT_SUBMISSIONS", "false"))
	if err != nil {
		return nil, fmt.Errorf("FORMS_STRICT_SUBMISSIONS: %w", err)
	}
	c.StrictSubmissions = strict

	if c.StoreTimeout, err = durationEnv("FORMS_STORE_TIMEOUT", "10s"); err != nil {
		return nil, err
	}
	if c.StoreTimeout <= 0 {
		return nil, fmt.Errorf("FORMS_STORE_TIMEOUT must be positive, got %s", c.StoreTimeout)
	}
	if c.SyncInterval, err = durationEnv("FORMS_SYNC_INTERVAL", "0"); err != nil {
		return nil, err
	}

	return c, nil
}

// SyncEnabled reports whether periodic sync should run: it needs both an
// interval and at least one destination.
func (c *Config) SyncEnabled() bool {
	return c.SyncInterval > 0 && (c.SyncS3Bucket != "" || c.SyncGitRepo != "" || c.SyncFile != "")
}

func durationEnv(key, fallback string) (time.Duration, error) {
	d, err := time.ParseDuration(envOrDefault(key, fallback))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
