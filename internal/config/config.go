// Package config loads the callsheet service configuration from CALLSHEET_*
// environment variables.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/alfredjeanlab/callsheet/internal/model"
)

type Config struct {
	// Gateway: Tencent Docs, or a local workbook.
	TencentClientID     string // CALLSHEET_TENCENT_CLIENT_ID
	TencentClientSecret string // CALLSHEET_TENCENT_CLIENT_SECRET
	TencentFileID       string // CALLSHEET_TENCENT_FILE_ID
	TencentSheetID      string // CALLSHEET_TENCENT_SHEET_ID
	TencentBaseURL      string // CALLSHEET_TENCENT_BASE_URL (default "https://docs.qq.com")
	Workbook            string // CALLSHEET_WORKBOOK (path to .xlsx; used when no Tencent file is set)
	WorkbookSheet       string // CALLSHEET_WORKBOOK_SHEET (default first sheet)

	// Schema
	Schema     string // CALLSHEET_SCHEMA (simple|extended, default "simple")
	SchemaFile string // CALLSHEET_SCHEMA_FILE (.toml/.yaml; overrides Schema)

	// Claim protocol
	SettleDelay    time.Duration // CALLSHEET_SETTLE_DELAY (default 500ms)
	VerifyAttempts int           // CALLSHEET_VERIFY_ATTEMPTS (default 1)

	// Service
	HTTPAddr  string     // CALLSHEET_HTTP_ADDR (default ":8080")
	GRPCAddr  string     // CALLSHEET_GRPC_ADDR (default ":9090")
	AuthToken string     // CALLSHEET_AUTH_TOKEN (optional, empty = auth disabled)
	NATSURL   string     // CALLSHEET_NATS_URL (optional, empty = no events)
	LogLevel  slog.Level // CALLSHEET_LOG_LEVEL (default info)

	// Journal: postgres wins over sqlite; neither disables journaling.
	DatabaseURL string // CALLSHEET_DATABASE_URL
	JournalPath string // CALLSHEET_JOURNAL_PATH

	// Presence
	IdleAfter time.Duration // CALLSHEET_IDLE_AFTER (default 15m)

	// Hooks
	HooksFile string // CALLSHEET_HOOKS_FILE (.toml/.yaml list of event hooks)

	// Sync settings
	SyncInterval   time.Duration // CALLSHEET_SYNC_INTERVAL (default 0 = disabled)
	SyncS3Bucket   string        // CALLSHEET_SYNC_S3_BUCKET (enables S3 when set)
	SyncS3Endpoint string        // CALLSHEET_SYNC_S3_ENDPOINT (custom endpoint for MinIO)
	SyncS3Region   string        // CALLSHEET_SYNC_S3_REGION (default "us-east-1")
	SyncS3Key      string        // CALLSHEET_SYNC_S3_KEY (default "callsheet/snapshot.xlsx")
	SyncDir        string        // CALLSHEET_SYNC_DIR (enables a local copy when set)
}

func Load() (*Config, error) {
	c := &Config{
		TencentClientID:     os.Getenv("CALLSHEET_TENCENT_CLIENT_ID"),
		TencentClientSecret: os.Getenv("CALLSHEET_TENCENT_CLIENT_SECRET"),
		TencentFileID:       os.Getenv("CALLSHEET_TENCENT_FILE_ID"),
		TencentSheetID:      os.Getenv("CALLSHEET_TENCENT_SHEET_ID"),
		TencentBaseURL:      envOrDefault("CALLSHEET_TENCENT_BASE_URL", "https://docs.qq.com"),
		Workbook:            os.Getenv("CALLSHEET_WORKBOOK"),
		WorkbookSheet:       os.Getenv("CALLSHEET_WORKBOOK_SHEET"),
		Schema:              envOrDefault("CALLSHEET_SCHEMA", model.SchemaSimple),
		SchemaFile:          os.Getenv("CALLSHEET_SCHEMA_FILE"),
		HTTPAddr:            envOrDefault("CALLSHEET_HTTP_ADDR", ":8080"),
		GRPCAddr:            envOrDefault("CALLSHEET_GRPC_ADDR", ":9090"),
		AuthToken:           os.Getenv("CALLSHEET_AUTH_TOKEN"),
		NATSURL:             os.Getenv("CALLSHEET_NATS_URL"),
		DatabaseURL:         os.Getenv("CALLSHEET_DATABASE_URL"),
		JournalPath:         os.Getenv("CALLSHEET_JOURNAL_PATH"),
		HooksFile:           os.Getenv("CALLSHEET_HOOKS_FILE"),
		SyncS3Bucket:        os.Getenv("CALLSHEET_SYNC_S3_BUCKET"),
		SyncS3Endpoint:      os.Getenv("CALLSHEET_SYNC_S3_ENDPOINT"),
		SyncS3Region:        envOrDefault("CALLSHEET_SYNC_S3_REGION", "us-east-1"),
		SyncS3Key:           envOrDefault("CALLSHEET_SYNC_S3_KEY", "callsheet/snapshot.xlsx"),
		SyncDir:             os.Getenv("CALLSHEET_SYNC_DIR"),
	}

	if c.TencentFileID == "" && c.Workbook == "" {
		return nil, fmt.Errorf("CALLSHEET_TENCENT_FILE_ID or CALLSHEET_WORKBOOK is required")
	}
	if c.TencentFileID != "" {
		for _, req := range []struct{ key, val string }{
			{"CALLSHEET_TENCENT_CLIENT_ID", c.TencentClientID},
			{"CALLSHEET_TENCENT_CLIENT_SECRET", c.TencentClientSecret},
			{"CALLSHEET_TENCENT_SHEET_ID", c.TencentSheetID},
		} {
			if req.val == "" {
				return nil, fmt.Errorf("%s is required with CALLSHEET_TENCENT_FILE_ID", req.key)
			}
		}
	}

	var err error
	if c.SettleDelay, err = envDuration("CALLSHEET_SETTLE_DELAY", "500ms"); err != nil {
		return nil, err
	}
	if c.IdleAfter, err = envDuration("CALLSHEET_IDLE_AFTER", "15m"); err != nil {
		return nil, err
	}
	if c.SyncInterval, err = envDuration("CALLSHEET_SYNC_INTERVAL", "0"); err != nil {
		return nil, err
	}

	attempts := envOrDefault("CALLSHEET_VERIFY_ATTEMPTS", "1")
	c.VerifyAttempts, err = strconv.Atoi(attempts)
	if err != nil || c.VerifyAttempts < 1 {
		return nil, fmt.Errorf("CALLSHEET_VERIFY_ATTEMPTS: want a positive integer, got %q", attempts)
	}

	if c.LogLevel, err = ParseLevel(os.Getenv("CALLSHEET_LOG_LEVEL")); err != nil {
		return nil, fmt.Errorf("CALLSHEET_LOG_LEVEL: %w", err)
	}
	return c, nil
}

// Columns resolves the configured schema: the schema file when set,
// otherwise the named built-in layout.
func (c *Config) Columns() (model.ColumnMap, error) {
	if c.SchemaFile != "" {
		return LoadSchema(c.SchemaFile)
	}
	return model.ColumnsFor(c.Schema)
}

// SheetName identifies the sheet events and the journal are tagged with.
func (c *Config) SheetName() string {
	if c.TencentFileID != "" {
		return c.TencentFileID + "/" + c.TencentSheetID
	}
	if c.WorkbookSheet != "" {
		return c.Workbook + "#" + c.WorkbookSheet
	}
	return c.Workbook
}

// ParseLevel maps debug|info|warn|error to a slog level. Empty is info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("unknown level %q", s)
}

func envDuration(key, fallback string) (time.Duration, error) {
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
