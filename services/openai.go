package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	openaigo "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const (
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
	DefaultOpenAIModel   = "gpt-4o-mini"

	openAIMaxRetries     = 3
	openAIRequestTimeout = 75 * time.Second
)

const jsonSystemPrompt = "You are an interview assistant. Reply with a single JSON object and nothing else."

// OpenAIService completes prompts against any OpenAI-compatible chat endpoint
type OpenAIService struct {
	client openaigo.Client
	model  string
}

func NewOpenAIService(apiKey, baseURL, model string, timeout time.Duration) (*OpenAIService, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("api key is required")
	}
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultOpenAIBaseURL
	}
	if strings.TrimSpace(model) == "" {
		model = DefaultOpenAIModel
	}
	if timeout <= 0 {
		timeout = openAIRequestTimeout
	}

	client := openaigo.NewClient(
		option.WithBaseURL(strings.TrimRight(strings.TrimSpace(baseURL), "/")),
		option.WithAPIKey(strings.TrimSpace(apiKey)),
		option.WithMaxRetries(openAIMaxRetries),
		option.WithRequestTimeout(timeout),
	)

	return &OpenAIService{client: client, model: strings.TrimSpace(model)}, nil
}

func (o *OpenAIService) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := o.client.Chat.Completions.New(ctx, openaigo.ChatCompletionNewParams{
		Model: openaigo.ChatModel(o.model),
		Messages: []openaigo.ChatCompletionMessageParamUnion{
			openaigo.SystemMessage(jsonSystemPrompt),
			openaigo.UserMessage(prompt),
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
