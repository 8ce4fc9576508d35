// Package generator produces AI content from rendered prompts via OpenAI.
package generator

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// Result is the generated text plus token accounting.
type Result struct {
	Content          string
	Model            string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// OpenAI generates content through the chat completions API.
type OpenAI struct {
	client *openai.Client
	model  string
}

// New creates an OpenAI generator. model defaults to gpt-4o.
func New(apiKey, model string) *OpenAI {
	if model == "" {
		model = openai.GPT4o
	}
	return &OpenAI{
		client: openai.NewClient(apiKey),
		model:  model,
	}
}

// Generate runs a single chat completion over the rendered prompt.
func (g *OpenAI) Generate(ctx context.Context, prompt string) (*Result, error) {
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "You are an assistant that produces written content from video transcripts.",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("chat completion returned no choices")
	}

	return &Result{
		Content:          resp.Choices[0].Message.Content,
		Model:            resp.Model,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	}, nil
}
