package llm

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

type openaiClient struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
}

func newOpenAIClient(apiKey, model string, opts *clientOptions) (*openaiClient, error) {
	config := openai.DefaultConfig(apiKey)
	if opts.baseURL != "" {
		config.BaseURL = opts.baseURL
	}
	return newOpenAIWithConfig(config, model, opts), nil
}

// newAzureClient talks to an Azure OpenAI deployment. The base URL is the
// resource endpoint and model is the deployment name.
func newAzureClient(apiKey, deployment string, opts *clientOptions) (*openaiClient, error) {
	if strings.TrimSpace(opts.baseURL) == "" {
		return nil, fmt.Errorf("azure: endpoint is required")
	}
	config := openai.DefaultAzureConfig(apiKey, opts.baseURL)
	config.AzureModelMapperFunc = func(string) string { return deployment }
	return newOpenAIWithConfig(config, deployment, opts), nil
}

func newOpenAIWithConfig(config openai.ClientConfig, model string, opts *clientOptions) *openaiClient {
	return &openaiClient{
		client:      openai.NewClientWithConfig(config),
		model:       model,
		temperature: opts.temperature,
		maxTokens:   opts.maxTokens,
	}
}

func (c *openaiClient) Complete(ctx context.Context, messages []Message) (string, error) {
	msgs := make([]openai.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		msgs[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    msgs,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("openai completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai: no choices in response")
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
