package extraction

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// LLMClient abstracts the chat completions API for testability.
type LLMClient interface {
	CreateChatCompletion(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error)
}

type openaiClient struct {
	client openai.Client
}

func NewOpenAIClient(apiKey string) LLMClient {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &openaiClient{client: client}
}

// NewCompatibleClient builds a client for any OpenAI-compatible endpoint;
// used for the fallback provider.
func NewCompatibleClient(apiKey, baseURL string) LLMClient {
	client := openai.NewClient(option.WithAPIKey(apiKey), option.WithBaseURL(baseURL))
	return &openaiClient{client: client}
}

func (c *openaiClient) CreateChatCompletion(
	ctx context.Context,
	params openai.ChatCompletionNewParams,
) (*openai.ChatCompletion, error) {
	return c.client.Chat.Completions.New(ctx, params)
}

// Generator is one model behind the uniform text-in/text-out contract.
type Generator struct {
	client LLMClient
	model  string
	name   string
}

func NewGenerator(name string, client LLMClient, model string) *Generator {
	return &Generator{client: client, model: model, name: name}
}

func (g *Generator) Name() string { return g.name }

func (g *Generator) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	completion, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionNewParams{
		Model: g.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt),
		},
	})
	if err != nil {
		return "", err
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("no choices in LLM response")
	}
	return completion.Choices[0].Message.Content, nil
}
