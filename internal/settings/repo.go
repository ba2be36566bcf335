package settings

import (
	"context"
	"database/sql"
)

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) Get(ctx context.Context) (*Settings, error) {
	s := &Settings{}
	query := `SELECT id, gemini_api_key, chat_model, embedding_provider, embedding_model, embedding_dimension, max_tokens_per_chunk, overlap_tokens, summary_max_word_count, enable_summary, enable_image_alt_text, incremental_ingestion, collection FROM ingestion_settings WHERE id = 1`
	err := r.db.QueryRowContext(ctx, query).Scan(
		&s.ID, &s.GeminiAPIKey, &s.ChatModel, &s.EmbeddingProvider, &s.EmbeddingModel,
		&s.EmbeddingDimension, &s.MaxTokensPerChunk, &s.OverlapTokens, &s.SummaryMaxWordCount,
		&s.EnableSummary, &s.EnableImageAltText, &s.IncrementalIngestion, &s.Collection,
	)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r *PostgresRepo) Update(ctx context.Context, s *Settings) error {
	query := `
		UPDATE ingestion_settings
		SET gemini_api_key = $1, chat_model = $2, embedding_provider = $3, embedding_model = $4, embedding_dimension = $5, max_tokens_per_chunk = $6, overlap_tokens = $7, summary_max_word_count = $8, enable_summary = $9, enable_image_alt_text = $10, incremental_ingestion = $11, collection = $12, updated_at = NOW()
		WHERE id = 1
	`
	_, err := r.db.ExecContext(ctx, query,
		s.GeminiAPIKey, s.ChatModel, s.EmbeddingProvider, s.EmbeddingModel,
		s.EmbeddingDimension, s.MaxTokensPerChunk, s.OverlapTokens, s.SummaryMaxWordCount,
		s.EnableSummary, s.EnableImageAltText, s.IncrementalIngestion, s.Collection,
	)
	return err
}
