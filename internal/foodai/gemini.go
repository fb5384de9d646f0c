package foodai

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// Completer はプロンプトに対するテキスト応答を返すLLMクライアントのインターフェース。
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// GeminiClient はGoogle Gemini APIを使用するCompleter。
type GeminiClient struct {
	client    *genai.Client
	modelName string
}

// NewGeminiClient はAPIキーとモデル名からGeminiClientを生成する。
func NewGeminiClient(ctx context.Context, apiKey, modelName string) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &GeminiClient{client: client, modelName: modelName}, nil
}

// Complete はプロンプトを1回送信し、応答テキストを連結して返す。再試行はしない。
func (c *GeminiClient) Complete(ctx context.Context, prompt string) (string, error) {
	model := c.client.GenerativeModel(c.modelName)
	model.SetTemperature(0.2)

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("empty response from gemini")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("no text in gemini response")
	}
	return sb.String(), nil
}

// Close は基盤のクライアントを閉じる。
func (c *GeminiClient) Close() error {
	return c.client.Close()
}

var _ Completer = (*GeminiClient)(nil)
