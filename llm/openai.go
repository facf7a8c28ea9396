// OpenAI Provider implementation using go-openai library.
//
// Information Hiding:
// - API endpoint and authentication
// - Request/response format for OpenAI Chat Completions API
// - Inline images as base64 data URLs
//
// Also serves OpenAI-compatible backends (e.g. DeepSeek) via a custom
// base URL.

package llm

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIProvider implements the Provider interface for OpenAI.
type OpenAIProvider struct {
	client *openai.Client
	name   string
}

// NewOpenAIProvider creates a new OpenAI provider for one API key.
func NewOpenAIProvider(apiKey string) *OpenAIProvider {
	return &OpenAIProvider{
		client: openai.NewClient(apiKey),
		name:   "openai",
	}
}

// NewOpenAICompatibleProvider creates a provider for an OpenAI-compatible
// backend served at baseURL.
func NewOpenAICompatibleProvider(name, apiKey, baseURL string) *OpenAIProvider {
	config := openai.DefaultConfig(apiKey)
	config.BaseURL = baseURL

	return &OpenAIProvider{
		client: openai.NewClientWithConfig(config),
		name:   name,
	}
}

// Name returns the provider name.
func (p *OpenAIProvider) Name() string {
	return p.name
}

// Generate executes one completion request.
func (p *OpenAIProvider) Generate(ctx context.Context, req Request) (Response, error) {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if req.Instruction != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.Instruction,
		})
	}
	messages = append(messages, convertToOpenAIMessage(req.Parts))

	chatReq := openai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    messages,
		Temperature: req.Gen.Temperature,
		TopP:        req.Gen.TopP,
		MaxTokens:   int(req.Gen.MaxOutputTokens),
	}

	resp, err := p.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return Response{}, classifyOpenAIError(err)
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return Response{}, NewClassifiedError(ErrClassMalformedResponse, 0,
			errors.New("empty response from chat completion"))
	}

	return Response{
		Text:         resp.Choices[0].Message.Content,
		FinishReason: string(resp.Choices[0].FinishReason),
	}, nil
}

// convertToOpenAIMessage converts request parts to a single user message.
// Inline data becomes a base64 data URL image part.
func convertToOpenAIMessage(parts []Part) openai.ChatCompletionMessage {
	hasInline := false
	for _, p := range parts {
		if p.IsInline() {
			hasInline = true
			break
		}
	}

	if !hasInline {
		content := ""
		for _, p := range parts {
			content += p.Text
		}
		return openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleUser,
			Content: content,
		}
	}

	msg := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser}
	for _, p := range parts {
		if p.IsInline() {
			url := fmt.Sprintf("data:%s;base64,%s", p.MIMEType, base64.StdEncoding.EncodeToString(p.Data))
			msg.MultiContent = append(msg.MultiContent, openai.ChatMessagePart{
				Type:     openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{URL: url},
			})
		} else {
			msg.MultiContent = append(msg.MultiContent, openai.ChatMessagePart{
				Type: openai.ChatMessagePartTypeText,
				Text: p.Text,
			})
		}
	}
	return msg
}

// classifyOpenAIError maps a go-openai error to a classified error.
func classifyOpenAIError(err error) *ClassifiedError {
	if errors.Is(err, context.DeadlineExceeded) {
		return NewClassifiedError(ErrClassTimeout, 0, err)
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return classifyStatus(apiErr.HTTPStatusCode, fmt.Errorf("chat completion failed: %w", err))
	}
	return NewClassifiedError(ErrClassUnknown, 0, fmt.Errorf("chat completion failed: %w", err))
}

// Verify OpenAIProvider implements Provider
var _ Provider = (*OpenAIProvider)(nil)
