package insights

import (
	"context"
	"errors"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

const (
	defaultModel       = openai.GPT4oMini
	defaultMaxTokens   = 400
	defaultTemperature = 0.7
)

var (
	// ErrMissingAPIKey indicates the OpenAI generator was configured without a key.
	ErrMissingAPIKey = errors.New("insights: api key required")
	// ErrEmptyCompletion indicates the model returned no usable text.
	ErrEmptyCompletion = errors.New("insights: empty completion")
)

// Completion is the text a Generator produced and the model that produced it.
type Completion struct {
	Text  string
	Model string
}

// Generator turns a prompt into free text.
type Generator interface {
	Generate(ctx context.Context, system, prompt string) (Completion, error)
}

// OpenAIConfig configures the chat-completions generator.
type OpenAIConfig struct {
	APIKey      string
	Model       string
	BaseURL     string
	MaxTokens   int
	Temperature float32
}

// OpenAIGenerator calls an OpenAI-compatible chat completions endpoint.
type OpenAIGenerator struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
}

// NewOpenAIGenerator constructs a generator. BaseURL may point at any
// OpenAI-compatible server.
func NewOpenAIGenerator(cfg OpenAIConfig) (*OpenAIGenerator, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	clientConfig := openai.DefaultConfig(apiKey)
	if baseURL := strings.TrimSpace(cfg.BaseURL); baseURL != "" {
		clientConfig.BaseURL = strings.TrimRight(baseURL, "/")
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	temperature := cfg.Temperature
	if temperature <= 0 {
		temperature = defaultTemperature
	}
	return &OpenAIGenerator{
		client:      openai.NewClientWithConfig(clientConfig),
		model:       model,
		maxTokens:   maxTokens,
		temperature: temperature,
	}, nil
}

// Generate sends the system and user messages and returns the first choice.
func (g *OpenAIGenerator) Generate(ctx context.Context, system, prompt string) (Completion, error) {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if strings.TrimSpace(system) != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: prompt})

	response, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       g.model,
		Messages:    messages,
		MaxTokens:   g.maxTokens,
		Temperature: g.temperature,
	})
	if err != nil {
		return Completion{}, err
	}
	if len(response.Choices) == 0 {
		return Completion{}, ErrEmptyCompletion
	}
	text := strings.TrimSpace(response.Choices[0].Message.Content)
	if text == "" {
		return Completion{}, ErrEmptyCompletion
	}
	model := response.Model
	if model == "" {
		model = g.model
	}
	return Completion{Text: text, Model: model}, nil
}
