package settings

import (
	"context"
)

// Settings is the runtime pipeline configuration. It lives in a single
// database row so deployments can retune chunking, enrichment and
// embedding without a restart; the pipeline builder re-reads it per build.
type Settings struct {
	ID                   int    `json:"-"`
	GeminiAPIKey         string `json:"gemini_api_key"`
	ChatModel            string `json:"chat_model"`
	EmbeddingProvider    string `json:"embedding_provider"`
	EmbeddingModel       string `json:"embedding_model"`
	EmbeddingDimension   int    `json:"embedding_dimension"`
	MaxTokensPerChunk    int    `json:"max_tokens_per_chunk"`
	OverlapTokens        int    `json:"overlap_tokens"`
	SummaryMaxWordCount  int    `json:"summary_max_word_count"`
	EnableSummary        bool   `json:"enable_summary"`
	EnableImageAltText   bool   `json:"enable_image_alt_text"`
	IncrementalIngestion bool   `json:"incremental_ingestion"`
	Collection           string `json:"collection"`
}

type Repository interface {
	Get(ctx context.Context) (*Settings, error)
	Update(ctx context.Context, s *Settings) error
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Get(ctx context.Context) (*Settings, error) {
	return s.repo.Get(ctx)
}

func (s *Service) Update(ctx context.Context, set *Settings) error {
	return s.repo.Update(ctx, set)
}
