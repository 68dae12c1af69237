package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alfredjeanlab/callsheet/internal/model"
)

// allEnvVars lists every variable Load reads; each test starts from a clean slate.
var allEnvVars = []string{
	"CALLSHEET_TENCENT_CLIENT_ID", "CALLSHEET_TENCENT_CLIENT_SECRET", "CALLSHEET_TENCENT_FILE_ID",
	"CALLSHEET_TENCENT_SHEET_ID", "CALLSHEET_TENCENT_BASE_URL", "CALLSHEET_WORKBOOK",
	"CALLSHEET_WORKBOOK_SHEET", "CALLSHEET_SCHEMA", "CALLSHEET_SCHEMA_FILE",
	"CALLSHEET_SETTLE_DELAY", "CALLSHEET_VERIFY_ATTEMPTS", "CALLSHEET_HTTP_ADDR",
	"CALLSHEET_GRPC_ADDR", "CALLSHEET_AUTH_TOKEN", "CALLSHEET_NATS_URL", "CALLSHEET_LOG_LEVEL",
	"CALLSHEET_DATABASE_URL", "CALLSHEET_JOURNAL_PATH", "CALLSHEET_IDLE_AFTER", "CALLSHEET_HOOKS_FILE",
	"CALLSHEET_SYNC_INTERVAL", "CALLSHEET_SYNC_S3_BUCKET", "CALLSHEET_SYNC_S3_ENDPOINT",
	"CALLSHEET_SYNC_S3_REGION", "CALLSHEET_SYNC_S3_KEY", "CALLSHEET_SYNC_DIR",
}

func clearAllEnv(t *testing.T) {
	t.Helper()
	for _, key := range allEnvVars {
		t.Setenv(key, "")
	}
}

var tencentEnv = map[string]string{
	"CALLSHEET_TENCENT_CLIENT_ID":     "app",
	"CALLSHEET_TENCENT_CLIENT_SECRET": "s3cret",
	"CALLSHEET_TENCENT_FILE_ID":       "DQm9Ab",
	"CALLSHEET_TENCENT_SHEET_ID":      "BB08J2",
}

func with(base map[string]string, extra ...string) map[string]string {
	out := make(map[string]string, len(base)+len(extra)/2)
	for k, v := range base {
		out[k] = v
	}
	for i := 0; i+1 < len(extra); i += 2 {
		out[extra[i]] = extra[i+1]
	}
	return out
}

func TestLoad(t *testing.T) {
	for _, tc := range []struct {
		name    string
		env     map[string]string
		wantErr string
		check   func(t *testing.T, c *Config)
	}{
		{
			name:    "MissingGateway",
			env:     map[string]string{},
			wantErr: "CALLSHEET_TENCENT_FILE_ID or CALLSHEET_WORKBOOK",
		},
		{
			name:    "TencentMissingSecret",
			env:     with(tencentEnv, "CALLSHEET_TENCENT_CLIENT_SECRET", ""),
			wantErr: "CALLSHEET_TENCENT_CLIENT_SECRET",
		},
		{
			name: "TencentDefaults",
			env:  tencentEnv,
			check: func(t *testing.T, c *Config) {
				if c.TencentBaseURL != "https://docs.qq.com" || c.HTTPAddr != ":8080" || c.GRPCAddr != ":9090" {
					t.Errorf("defaults = %q %q %q", c.TencentBaseURL, c.HTTPAddr, c.GRPCAddr)
				}
				if c.SettleDelay != 500*time.Millisecond || c.VerifyAttempts != 1 {
					t.Errorf("protocol = %v / %d", c.SettleDelay, c.VerifyAttempts)
				}
				if c.LogLevel != slog.LevelInfo || c.IdleAfter != 15*time.Minute {
					t.Errorf("log level %v, idle after %v", c.LogLevel, c.IdleAfter)
				}
				if c.SyncInterval != 0 || c.SyncS3Region != "us-east-1" || c.SyncS3Key != "callsheet/snapshot.xlsx" {
					t.Errorf("sync = %v %q %q", c.SyncInterval, c.SyncS3Region, c.SyncS3Key)
				}
				if c.SheetName() != "DQm9Ab/BB08J2" {
					t.Errorf("SheetName = %q", c.SheetName())
				}
			},
		},
		{
			name: "WorkbookCustom",
			env: map[string]string{
				"CALLSHEET_WORKBOOK":        "/data/leads.xlsx",
				"CALLSHEET_WORKBOOK_SHEET":  "Leads",
				"CALLSHEET_SETTLE_DELAY":    "2s",
				"CALLSHEET_VERIFY_ATTEMPTS": "3",
				"CALLSHEET_LOG_LEVEL":       "DEBUG",
				"CALLSHEET_SYNC_INTERVAL":   "10m",
				"CALLSHEET_SYNC_DIR":        "/backups",
				"CALLSHEET_JOURNAL_PATH":    "/data/journal.db",
			},
			check: func(t *testing.T, c *Config) {
				if c.SettleDelay != 2*time.Second || c.VerifyAttempts != 3 {
					t.Errorf("protocol = %v / %d", c.SettleDelay, c.VerifyAttempts)
				}
				if c.LogLevel != slog.LevelDebug {
					t.Errorf("log level = %v", c.LogLevel)
				}
				if c.SyncInterval != 10*time.Minute || c.SyncDir != "/backups" || c.JournalPath != "/data/journal.db" {
					t.Errorf("sync/journal = %v %q %q", c.SyncInterval, c.SyncDir, c.JournalPath)
				}
				if c.SheetName() != "/data/leads.xlsx#Leads" {
					t.Errorf("SheetName = %q", c.SheetName())
				}
			},
		},
		{
			name:    "BadSettleDelay",
			env:     with(tencentEnv, "CALLSHEET_SETTLE_DELAY", "soon"),
			wantErr: "CALLSHEET_SETTLE_DELAY",
		},
		{
			name:    "NegativeSettleDelay",
			env:     with(tencentEnv, "CALLSHEET_SETTLE_DELAY", "-1s"),
			wantErr: "must not be negative",
		},
		{
			name:    "ZeroVerifyAttempts",
			env:     with(tencentEnv, "CALLSHEET_VERIFY_ATTEMPTS", "0"),
			wantErr: "CALLSHEET_VERIFY_ATTEMPTS",
		},
		{
			name:    "BadSyncInterval",
			env:     with(tencentEnv, "CALLSHEET_SYNC_INTERVAL", "not-a-duration"),
			wantErr: "CALLSHEET_SYNC_INTERVAL",
		},
		{
			name:    "BadLogLevel",
			env:     with(tencentEnv, "CALLSHEET_LOG_LEVEL", "loud"),
			wantErr: "CALLSHEET_LOG_LEVEL",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			clearAllEnv(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}

			cfg, err := Load()
			if tc.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
					t.Fatalf("expected error containing %q, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			tc.check(t, cfg)
		})
	}
}

func TestConfig_Columns(t *testing.T) {
	for _, tc := range []struct {
		schema string
		want   model.ColumnMap
		err    bool
	}{
		{"simple", model.SimpleColumns(), false},
		{"Extended", model.ExtendedColumns(), false},
		{"wide", model.ColumnMap{}, true},
	} {
		t.Run(tc.schema, func(t *testing.T) {
			got, err := (&Config{Schema: tc.schema}).Columns()
			if tc.err {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil || got != tc.want {
				t.Fatalf("Columns() = %+v, %v", got, err)
			}
		})
	}
}

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadSchema(t *testing.T) {
	simple := model.SimpleColumns()
	shifted := model.SimpleColumns()
	shifted.Assignee = 20 // U
	shifted.Note = 21     // V

	for _, tc := range []struct {
		name    string
		file    string
		body    string
		want    model.ColumnMap
		wantErr string
	}{
		{
			name: "toml letters",
			file: "schema.toml",
			body: `
account = "A"
processed = "B"
selected = "C"
contact_id = "E"
phone = "M"
location = "O"
device = "P"
assignee = "Q"
note = "R"
`,
			want: simple,
		},
		{
			name: "yaml mixed",
			file: "schema.yaml",
			body: `
account: A
processed: 1
selected: c
contact_id: E
phone: 12
location: O
device: P
assignee: U
note: 21
exclude: "-"
`,
			want: shifted,
		},
		{
			name:    "missing required",
			file:    "schema.yml",
			body:    "account: A\nprocessed: B\nselected: C\nnote: R\n",
			wantErr: `"assignee" is required`,
		},
		{
			name:    "duplicate",
			file:    "schema.toml",
			body:    "account = \"A\"\nprocessed = \"B\"\nselected = \"C\"\nassignee = \"Q\"\nnote = 16\n",
			wantErr: "both map to index 16",
		},
		{
			name:    "unknown field",
			file:    "schema.toml",
			body:    "acount = \"A\"\n",
			wantErr: `unknown field "acount"`,
		},
		{
			name:    "bad letter",
			file:    "schema.toml",
			body:    "account = \"A1\"\n",
			wantErr: `bad column "A1"`,
		},
		{
			name:    "negative index",
			file:    "schema.yaml",
			body:    "account: -2\n",
			wantErr: "negative",
		},
		{
			name:    "unsupported extension",
			file:    "schema.json",
			body:    "{}",
			wantErr: "unsupported extension",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got, err := LoadSchema(writeFile(t, tc.file, tc.body))
			if tc.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
					t.Fatalf("expected error containing %q, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("LoadSchema: %v", err)
			}
			if got != tc.want {
				t.Fatalf("LoadSchema =\n%+v\nwant\n%+v", got, tc.want)
			}
		})
	}
}

func TestLoadSchema_Missing(t *testing.T) {
	if _, err := LoadSchema(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Fatal("expected error for a missing file")
	}
}

func TestEnvOrDefault(t *testing.T) {
	for _, tc := range []struct {
		name     string
		key      string
		envVal   string
		fallback string
		want     string
	}{
		{"EmptyUsesDefault", "TEST_ENVDEFAULT_EMPTY", "", "default-val", "default-val"},
		{"SetUsesEnv", "TEST_ENVDEFAULT_SET", "custom", "default-val", "custom"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(tc.key, tc.envVal)
			got := envOrDefault(tc.key, tc.fallback)
			if got != tc.want {
				t.Errorf("envOrDefault(%q, %q) = %q, want %q", tc.key, tc.fallback, got, tc.want)
			}
		})
	}
}
