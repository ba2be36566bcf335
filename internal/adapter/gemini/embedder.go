package gemini

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/generative-ai-go/genai"
)

// DynamicEmbedder embeds text with the embedding model named in the
// current runtime settings.
type DynamicEmbedder struct {
	client *DynamicClient
}

func NewDynamicEmbedder(client *DynamicClient) *DynamicEmbedder {
	return &DynamicEmbedder{client: client}
}

func (e *DynamicEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	client, set, err := e.client.get(ctx)
	if err != nil {
		return nil, err
	}

	slog.DebugContext(ctx, "embedding content", "model", set.EmbeddingModel, "length", len(text))
	model := client.EmbeddingModel(set.EmbeddingModel)
	res, err := model.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, err
	}

	if res.Embedding == nil || len(res.Embedding.Values) == 0 {
		return nil, fmt.Errorf("empty embedding received")
	}
	return res.Embedding.Values, nil
}
