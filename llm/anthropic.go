// Anthropic Provider implementation using official anthropic-sdk-go.
//
// Information Hiding:
// - API endpoint and authentication
// - Request/response format for Anthropic Messages API
// - Inline images as base64 image blocks

package llm

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// anthropicDefaultMaxTokens applies when the request leaves max output
// tokens unset; the Messages API requires a value.
const anthropicDefaultMaxTokens = 4096

// AnthropicProvider implements the Provider interface for Anthropic Claude.
type AnthropicProvider struct {
	client anthropic.Client
}

// NewAnthropicProvider creates a new Anthropic provider for one API key.
func NewAnthropicProvider(apiKey string) *AnthropicProvider {
	client := anthropic.NewClient(
		option.WithAPIKey(apiKey),
	)

	return &AnthropicProvider{client: client}
}

// Name returns the provider name.
func (p *AnthropicProvider) Name() string {
	return "anthropic"
}

// Generate executes one completion request.
func (p *AnthropicProvider) Generate(ctx context.Context, req Request) (Response, error) {
	maxTokens := int64(req.Gen.MaxOutputTokens)
	if maxTokens == 0 {
		maxTokens = anthropicDefaultMaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(convertToAnthropicBlocks(req.Parts)...),
		},
	}

	if req.Gen.Temperature != 0 {
		params.Temperature = anthropic.Float(float64(req.Gen.Temperature))
	}
	if req.Gen.TopP != 0 {
		params.TopP = anthropic.Float(float64(req.Gen.TopP))
	}
	if req.Gen.TopK != 0 {
		params.TopK = anthropic.Int(int64(req.Gen.TopK))
	}
	if req.Instruction != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: req.Instruction},
		}
	}

	message, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return Response{}, classifyAnthropicError(err)
	}

	content := ""
	for _, block := range message.Content {
		switch variant := block.AsAny().(type) {
		case anthropic.TextBlock:
			content += variant.Text
		}
	}

	if content == "" {
		return Response{}, NewClassifiedError(ErrClassMalformedResponse, 0,
			errors.New("empty response from Anthropic"))
	}

	return Response{
		Text:         content,
		FinishReason: string(message.StopReason),
	}, nil
}

// convertToAnthropicBlocks converts request parts to message content blocks.
func convertToAnthropicBlocks(parts []Part) []anthropic.ContentBlockParamUnion {
	blocks := make([]anthropic.ContentBlockParamUnion, 0, len(parts))
	for _, p := range parts {
		if p.IsInline() {
			blocks = append(blocks, anthropic.NewImageBlockBase64(
				p.MIMEType, base64.StdEncoding.EncodeToString(p.Data)))
		} else {
			blocks = append(blocks, anthropic.NewTextBlock(p.Text))
		}
	}
	return blocks
}

// classifyAnthropicError maps an anthropic SDK error to a classified error.
func classifyAnthropicError(err error) *ClassifiedError {
	if errors.Is(err, context.DeadlineExceeded) {
		return NewClassifiedError(ErrClassTimeout, 0, err)
	}
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return classifyStatus(apiErr.StatusCode, fmt.Errorf("message request failed: %w", err))
	}
	return NewClassifiedError(ErrClassUnknown, 0, fmt.Errorf("message request failed: %w", err))
}

// Verify AnthropicProvider implements Provider
var _ Provider = (*AnthropicProvider)(nil)
