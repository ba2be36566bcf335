package settings_test

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"textvault/internal/settings"
)

func TestPostgresRepo_Get(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := settings.NewPostgresRepo(db)

	t.Run("Success", func(t *testing.T) {
		rows := sqlmock.NewRows([]string{
			"id", "gemini_api_key", "chat_model", "embedding_provider", "embedding_model",
			"embedding_dimension", "max_tokens_per_chunk", "overlap_tokens", "summary_max_word_count",
			"enable_summary", "enable_image_alt_text", "incremental_ingestion", "collection",
		}).AddRow(1, "key1", "gemini-2.0-flash", "gemini", "gemini-embedding-001", 3072, 500, 50, 40, true, false, true, "UploadChunk")

		mock.ExpectQuery(regexp.QuoteMeta("SELECT id, gemini_api_key, chat_model, embedding_provider, embedding_model, embedding_dimension, max_tokens_per_chunk, overlap_tokens, summary_max_word_count, enable_summary, enable_image_alt_text, incremental_ingestion, collection FROM ingestion_settings WHERE id = 1")).
			WillReturnRows(rows)

		s, err := repo.Get(context.Background())
		assert.NoError(t, err)
		assert.NotNil(t, s)
		assert.Equal(t, "gemini-embedding-001", s.EmbeddingModel)
		assert.Equal(t, 3072, s.EmbeddingDimension)
		assert.True(t, s.IncrementalIngestion)
	})

	t.Run("Error", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta("SELECT id")).
			WillReturnError(sqlmock.ErrCancelled)

		s, err := repo.Get(context.Background())
		assert.Error(t, err)
		assert.Nil(t, s)
	})
}

func TestPostgresRepo_Update(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := settings.NewPostgresRepo(db)

	t.Run("Success", func(t *testing.T) {
		s := &settings.Settings{
			GeminiAPIKey:         "k",
			ChatModel:            "gemini-2.0-flash",
			EmbeddingProvider:    "gemini",
			EmbeddingModel:       "gemini-embedding-001",
			EmbeddingDimension:   3072,
			MaxTokensPerChunk:    500,
			OverlapTokens:        50,
			SummaryMaxWordCount:  40,
			EnableSummary:        true,
			IncrementalIngestion: true,
			Collection:           "UploadChunk",
		}

		mock.ExpectExec("UPDATE ingestion_settings").
			WithArgs(s.GeminiAPIKey, s.ChatModel, s.EmbeddingProvider, s.EmbeddingModel,
				s.EmbeddingDimension, s.MaxTokensPerChunk, s.OverlapTokens, s.SummaryMaxWordCount,
				s.EnableSummary, s.EnableImageAltText, s.IncrementalIngestion, s.Collection).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := repo.Update(context.Background(), s)
		assert.NoError(t, err)
	})
}
