// Package openai provides a core.Generator backed by the OpenAI Chat
// Completions API (non-streaming).
package openai

import (
	"context"
	"fmt"

	"github.com/contractguard/contractguard/core"
	"github.com/openai/openai-go"
)

// Options configure the OpenAI generator.
// Fields mirror a subset of Chat Completion parameters intentionally kept
// minimal; extend via functional options without breaking callers.
type Options struct {
	Model               string
	Temperature         float64
	MaxCompletionTokens int64
}

// Generator wraps the OpenAI Chat Completions API behind the core.Generator interface.
type Generator struct {
	client *openai.Client
	opts   Options
}

// NewGenerator creates a new OpenAI generator using the official client.
func NewGenerator(optFns ...func(o *Options)) *Generator {
	client := openai.NewClient()
	return NewGeneratorFromClient(&client, optFns...)
}

// NewGeneratorFromClient creates a new OpenAI generator from an existing client.
func NewGeneratorFromClient(client *openai.Client, optFns ...func(o *Options)) *Generator {
	opts := Options{
		Model:               openai.ChatModelGPT4oMini,
		Temperature:         0.2,
		MaxCompletionTokens: 4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Generator{client: client, opts: opts}
}

// Generate implements core.Generator using a single non-streaming completion.
func (g *Generator) Generate(ctx context.Context, req core.GenerateRequest) (string, error) {
	var messages []openai.ChatCompletionMessageParamUnion
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	messages = append(messages, openai.UserMessage(req.Prompt))

	resp, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:               g.opts.Model,
		Messages:            messages,
		Temperature:         openai.Float(g.opts.Temperature),
		MaxCompletionTokens: openai.Int(g.opts.MaxCompletionTokens),
	})
	if err != nil {
		return "", fmt.Errorf("openai api error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai api error: no choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}

// Info implements core.Generator.
func (g *Generator) Info() core.GeneratorInfo {
	return core.GeneratorInfo{Name: g.opts.Model, Provider: "openai"}
}
