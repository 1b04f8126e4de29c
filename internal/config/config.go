// Package config provides application configuration with multi-source priority.
//
// Sources, highest priority first:
//  1. Environment variables (.env is loaded by the CLI before commands run)
//  2. Config file (~/.insights/config.yaml, or ./config.yaml)
//  3. Defaults
//
// Categories:
//   - Warehouse: local PostgreSQL analytical store (also hosts the pgvector index)
//   - Sources: ClickHouse, MongoDB, ClickUp, Search Console, GA4, BigQuery
//   - Fathom: meetings API for transcript sync
//   - RAG: Gemini embedder/chat models for transcript search
//
// Secrets (passwords, API keys) come only from the environment; they are never
// written to the config file and never logged.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrInvalidPostgres indicates the warehouse connection settings are invalid.
	ErrInvalidPostgres = errors.New("invalid warehouse postgres settings")

	// ErrMissingMongoURI indicates MONGO_URI is not set.
	ErrMissingMongoURI = errors.New("missing MONGO_URI")

	// ErrInvalidClickHouse indicates the ClickHouse connection settings are invalid.
	ErrInvalidClickHouse = errors.New("invalid clickhouse settings")

	// ErrMissingClickUpKey indicates CLICKUP_API_KEY is not set.
	ErrMissingClickUpKey = errors.New("missing CLICKUP_API_KEY")

	// ErrMissingGoogleCredentials indicates the service account file is missing.
	ErrMissingGoogleCredentials = errors.New("missing Google service account credentials")

	// ErrMissingFathomKey indicates FATHOM_API_KEY is not set.
	ErrMissingFathomKey = errors.New("missing FATHOM_API_KEY")

	// ErrMissingGeminiKey indicates GEMINI_API_KEY is not set.
	ErrMissingGeminiKey = errors.New("missing GEMINI_API_KEY")

	// ErrInvalidRAG indicates the RAG settings are out of range.
	ErrInvalidRAG = errors.New("invalid rag settings")
)

// Defaults for the transcript RAG pipeline.
const (
	// DefaultEmbedderModel is the Gemini embedding model. It outputs 3072
	// dimensions by default but supports truncation; the documents table
	// stores 768-dimension vectors (see rag.VectorDimension).
	DefaultEmbedderModel = "gemini-embedding-001"

	// DefaultChatModel answers transcript questions.
	DefaultChatModel = "gemini-2.5-flash"

	// DefaultTopK is the number of chunks retrieved per question.
	DefaultTopK = 5

	// DefaultChunkTurns is the number of conversation turns per chunk.
	DefaultChunkTurns = 15
)

// Config stores application configuration.
type Config struct {
	// Warehouse (PostgreSQL)
	PostgresHost     string `mapstructure:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password"` // SENSITIVE
	PostgresDBName   string `mapstructure:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode"`

	// ClickHouse source (production log store, read-only user)
	ClickHouseHost     string `mapstructure:"clickhouse_host"`
	ClickHousePort     int    `mapstructure:"clickhouse_port"`
	ClickHouseDB       string `mapstructure:"clickhouse_db"`
	ClickHouseUser     string `mapstructure:"clickhouse_user"`
	ClickHousePassword string `mapstructure:"clickhouse_password"` // SENSITIVE

	// MongoDB source (production application database)
	MongoURI      string `mapstructure:"mongo_uri"` // SENSITIVE (contains credentials)
	MongoDatabase string `mapstructure:"mongo_database"`

	// ClickUp source
	ClickUpAPIKey     string `mapstructure:"clickup_api_key"` // SENSITIVE
	ClickUpOrdersList string `mapstructure:"clickup_orders_list"`

	// Google sources (Search Console, GA4, BigQuery)
	GoogleCredentialsFile string `mapstructure:"google_credentials_file"`
	GSCSiteURL            string `mapstructure:"gsc_site_url"`
	GA4PropertyID         string `mapstructure:"ga4_property_id"`
	BigQueryProject       string `mapstructure:"bigquery_project"`
	BigQueryGSCDataset    string `mapstructure:"bigquery_gsc_dataset"`
	BigQueryClarity       string `mapstructure:"bigquery_clarity_dataset"`

	// Fathom meetings API
	FathomAPIKey        string `mapstructure:"fathom_api_key"`        // SENSITIVE
	FathomWebhookSecret string `mapstructure:"fathom_webhook_secret"` // SENSITIVE

	// Transcript RAG
	GeminiAPIKey  string `mapstructure:"gemini_api_key"` // SENSITIVE
	EmbedderModel string `mapstructure:"embedder_model"`
	ChatModel     string `mapstructure:"chat_model"`
	RAGTopK       int    `mapstructure:"rag_top_k"`
	ChunkTurns    int    `mapstructure:"chunk_turns"`

	// DataDir holds transcript archives and the sync state file.
	DataDir string `mapstructure:"data_dir"`
}

// Load loads configuration.
// Priority: environment variables > config file > defaults.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".insights")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)
	v.AddConfigPath(".")

	setDefaults(v, configDir)
	bindEnvVariables(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("config file not found, using defaults",
			"search_paths", []string{configDir, "."})
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper, configDir string) {
	// Warehouse
	v.SetDefault("postgres_host", "localhost")
	v.SetDefault("postgres_port", 5432)
	v.SetDefault("postgres_user", "insights")
	v.SetDefault("postgres_password", "insights_dev_password")
	v.SetDefault("postgres_db_name", "insights")
	v.SetDefault("postgres_ssl_mode", "disable")

	// ClickHouse (HTTP port is 8123; the native protocol port is 9000)
	v.SetDefault("clickhouse_port", 9000)
	v.SetDefault("clickhouse_db", "fatgrid_logs_prod_db")
	v.SetDefault("clickhouse_user", "readonly_user")

	v.SetDefault("mongo_database", "getlinks_pro_prod")

	v.SetDefault("gsc_site_url", "https://fatgrid.com/")
	v.SetDefault("bigquery_gsc_dataset", "searchconsole")
	v.SetDefault("bigquery_clarity_dataset", "clarity")

	// RAG
	v.SetDefault("embedder_model", DefaultEmbedderModel)
	v.SetDefault("chat_model", DefaultChatModel)
	v.SetDefault("rag_top_k", DefaultTopK)
	v.SetDefault("chunk_turns", DefaultChunkTurns)

	v.SetDefault("data_dir", filepath.Join(configDir, "fathom"))
}

// bindEnvVariables binds the environment variables used by the original
// shell workflow, so an existing .env keeps working unchanged.
func bindEnvVariables(v *viper.Viper) {
	bindings := map[string]string{
		"postgres_host":            "POSTGRES_HOST",
		"postgres_port":            "POSTGRES_PORT",
		"postgres_user":            "POSTGRES_USER",
		"postgres_password":        "POSTGRES_PASSWORD",
		"postgres_db_name":         "POSTGRES_DB",
		"clickhouse_host":          "CLICKHOUSE_HOST",
		"clickhouse_port":          "CLICKHOUSE_PORT",
		"clickhouse_db":            "CLICKHOUSE_DB",
		"clickhouse_user":          "CLICKHOUSE_USER",
		"clickhouse_password":      "CLICKHOUSE_PASSWORD",
		"mongo_uri":                "MONGO_URI",
		"mongo_database":           "MONGO_DATABASE",
		"clickup_api_key":          "CLICKUP_API_KEY",
		"clickup_orders_list":      "CLICKUP_ORDERS_LIST",
		"google_credentials_file":  "GOOGLE_SERVICE_ACCOUNT_FILE",
		"gsc_site_url":             "GSC_SITE_URL",
		"ga4_property_id":          "GA4_PROPERTY_ID",
		"bigquery_project":         "BIGQUERY_PROJECT",
		"bigquery_gsc_dataset":     "BIGQUERY_GSC_DATASET",
		"bigquery_clarity_dataset": "BIGQUERY_CLARITY_DATASET",
		"fathom_api_key":           "FATHOM_API_KEY",
		"fathom_webhook_secret":    "FATHOM_WEBHOOK_SECRET",
		"gemini_api_key":           "GEMINI_API_KEY",
		"data_dir":                 "INSIGHTS_DATA_DIR",
	}
	for key, env := range bindings {
		// BindEnv only errors when called without arguments.
		_ = v.BindEnv(key, env)
	}
}

// quoteDSNValue quotes a value for the key=value DSN format so passwords with
// spaces or quotes survive parsing.
func quoteDSNValue(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `'`, `\'`)
	return "'" + s + "'"
}

// PostgresDSN returns the warehouse DSN for the pgx driver.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.PostgresHost,
		c.PostgresPort,
		c.PostgresUser,
		quoteDSNValue(c.PostgresPassword),
		c.PostgresDBName,
		c.PostgresSSLMode,
	)
}

// PostgresURL returns the warehouse URL for golang-migrate.
func (c *Config) PostgresURL() string {
	u := &url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.PostgresUser, c.PostgresPassword),
		Host:     fmt.Sprintf("%s:%d", c.PostgresHost, c.PostgresPort),
		Path:     c.PostgresDBName,
		RawQuery: fmt.Sprintf("sslmode=%s", c.PostgresSSLMode),
	}
	return u.String()
}

// TranscriptsDir returns the directory where transcript archives are stored.
func (c *Config) TranscriptsDir() string {
	return filepath.Join(c.DataDir, "transcripts")
}

// StateFile returns the path of the transcript sync state file.
func (c *Config) StateFile() string {
	return filepath.Join(c.DataDir, "sync_state.json")
}
