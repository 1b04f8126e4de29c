package config

import (
	"fmt"
	"os"
)

// Validate checks the settings every command depends on.
// Per-source credentials are checked lazily by the Validate* helpers so
// that, say, a transcript sync does not demand ClickHouse credentials.
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	if c.PostgresHost == "" {
		return fmt.Errorf("%w: host cannot be empty", ErrInvalidPostgres)
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: port must be between 1 and 65535, got %d", ErrInvalidPostgres, c.PostgresPort)
	}
	if c.PostgresDBName == "" {
		return fmt.Errorf("%w: database name cannot be empty", ErrInvalidPostgres)
	}

	if c.RAGTopK < 1 || c.RAGTopK > 20 {
		return fmt.Errorf("%w: rag_top_k must be between 1 and 20, got %d", ErrInvalidRAG, c.RAGTopK)
	}
	if c.ChunkTurns < 1 {
		return fmt.Errorf("%w: chunk_turns must be positive, got %d", ErrInvalidRAG, c.ChunkTurns)
	}
	if c.EmbedderModel == "" || c.ChatModel == "" {
		return fmt.Errorf("%w: embedder_model and chat_model cannot be empty", ErrInvalidRAG)
	}

	return nil
}

// ValidateMongo checks the MongoDB source settings.
func (c *Config) ValidateMongo() error {
	if c.MongoURI == "" {
		return fmt.Errorf("%w: set MONGO_URI in .env or the environment", ErrMissingMongoURI)
	}
	return nil
}

// ValidateClickHouse checks the ClickHouse source settings.
func (c *Config) ValidateClickHouse() error {
	if c.ClickHouseHost == "" {
		return fmt.Errorf("%w: host cannot be empty", ErrInvalidClickHouse)
	}
	if c.ClickHousePort < 1 || c.ClickHousePort > 65535 {
		return fmt.Errorf("%w: port must be between 1 and 65535, got %d", ErrInvalidClickHouse, c.ClickHousePort)
	}
	if c.ClickHouseDB == "" {
		return fmt.Errorf("%w: database cannot be empty", ErrInvalidClickHouse)
	}
	return nil
}

// ValidateClickUp checks the ClickUp source settings.
func (c *Config) ValidateClickUp() error {
	if c.ClickUpAPIKey == "" {
		return fmt.Errorf("%w: set CLICKUP_API_KEY in .env or the environment", ErrMissingClickUpKey)
	}
	if c.ClickUpOrdersList == "" {
		return fmt.Errorf("%w: clickup_orders_list cannot be empty", ErrMissingClickUpKey)
	}
	return nil
}

// ValidateGoogle checks the shared Google service account settings used by
// the Search Console, GA4 and BigQuery sources.
func (c *Config) ValidateGoogle() error {
	if c.GoogleCredentialsFile == "" {
		return fmt.Errorf("%w: set GOOGLE_SERVICE_ACCOUNT_FILE", ErrMissingGoogleCredentials)
	}
	if _, err := os.Stat(c.GoogleCredentialsFile); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMissingGoogleCredentials, c.GoogleCredentialsFile, err)
	}
	return nil
}

// ValidateFathom checks the Fathom API settings.
func (c *Config) ValidateFathom() error {
	if c.FathomAPIKey == "" {
		return fmt.Errorf("%w: set FATHOM_API_KEY in .env or the environment", ErrMissingFathomKey)
	}
	return nil
}

// ValidateRAG checks the settings needed to embed and answer.
func (c *Config) ValidateRAG() error {
	if c.GeminiAPIKey == "" {
		return fmt.Errorf("%w: set GEMINI_API_KEY in .env or the environment", ErrMissingGeminiKey)
	}
	return nil
}
