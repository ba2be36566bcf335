package gemini

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
)

// DynamicChat generates text with the chat model named in the current
// runtime settings. The enrichers (summaries, image alt text) sit on top
// of it.
type DynamicChat struct {
	client *DynamicClient
}

func NewDynamicChat(client *DynamicClient) *DynamicChat {
	return &DynamicChat{client: client}
}

func (c *DynamicChat) Generate(ctx context.Context, prompt string) (string, error) {
	client, set, err := c.client.get(ctx)
	if err != nil {
		return "", err
	}

	model := client.GenerativeModel(set.ChatModel)
	res, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", err
	}
	if len(res.Candidates) == 0 || res.Candidates[0].Content == nil {
		return "", fmt.Errorf("empty completion received")
	}

	var sb strings.Builder
	for _, part := range res.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			sb.WriteString(string(t))
		}
	}
	return sb.String(), nil
}
