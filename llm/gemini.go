// Google Gemini Provider implementation using official google.golang.org/genai SDK.
//
// Information Hiding:
// - API authentication and client creation
// - Request/response format for Gemini API
// - System instruction handling via config
// - HTTP status extraction for error classification

package llm

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

// GeminiProvider implements the Provider interface for Google Gemini.
type GeminiProvider struct {
	client  *genai.Client
	initErr error // Stores client initialization error for deferred reporting
}

// NewGeminiProvider creates a new Gemini provider for one API key.
// If client initialization fails, the error is stored and returned on first use.
func NewGeminiProvider(apiKey string) *GeminiProvider {
	ctx := context.Background()
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return &GeminiProvider{
			initErr: NewClassifiedError(ErrClassConfiguration, 0,
				fmt.Errorf("failed to initialize Gemini client: %w", err)),
		}
	}

	return &GeminiProvider{client: client}
}

// Name returns the provider name.
func (p *GeminiProvider) Name() string {
	return "gemini"
}

// Generate executes one completion request.
func (p *GeminiProvider) Generate(ctx context.Context, req Request) (Response, error) {
	if p.initErr != nil {
		return Response{}, p.initErr
	}

	config := &genai.GenerateContentConfig{}
	if req.Gen.Temperature != 0 {
		config.Temperature = genai.Ptr(req.Gen.Temperature)
	}
	if req.Gen.TopP != 0 {
		config.TopP = genai.Ptr(req.Gen.TopP)
	}
	if req.Gen.TopK != 0 {
		config.TopK = genai.Ptr(float32(req.Gen.TopK))
	}
	if req.Gen.MaxOutputTokens != 0 {
		config.MaxOutputTokens = req.Gen.MaxOutputTokens
	}
	if req.Instruction != "" {
		config.SystemInstruction = genai.NewContentFromText(req.Instruction, genai.RoleUser)
	}

	contents := []*genai.Content{convertToGeminiContent(req.Parts)}

	response, err := p.client.Models.GenerateContent(ctx, req.Model, contents, config)
	if err != nil {
		return Response{}, classifyGeminiError(err)
	}

	text := response.Text()
	if text == "" {
		return Response{}, NewClassifiedError(ErrClassMalformedResponse, 0,
			errors.New("empty response from Gemini"))
	}

	return Response{
		Text:         text,
		FinishReason: geminiFinishReason(response),
	}, nil
}

// convertToGeminiContent converts request parts to a single user content.
func convertToGeminiContent(parts []Part) *genai.Content {
	content := &genai.Content{Role: genai.RoleUser}
	for _, p := range parts {
		if p.IsInline() {
			content.Parts = append(content.Parts, &genai.Part{
				InlineData: &genai.Blob{MIMEType: p.MIMEType, Data: p.Data},
			})
		} else {
			content.Parts = append(content.Parts, &genai.Part{Text: p.Text})
		}
	}
	return content
}

// geminiFinishReason extracts the finish reason of the first candidate.
func geminiFinishReason(response *genai.GenerateContentResponse) string {
	if len(response.Candidates) == 0 {
		return ""
	}
	return string(response.Candidates[0].FinishReason)
}

// classifyGeminiError maps a genai SDK error to a classified error.
func classifyGeminiError(err error) *ClassifiedError {
	if errors.Is(err, context.DeadlineExceeded) {
		return NewClassifiedError(ErrClassTimeout, 0, err)
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return classifyStatus(apiErr.Code, fmt.Errorf("gemini request failed: %w", err))
	}
	return NewClassifiedError(ErrClassUnknown, 0, fmt.Errorf("gemini request failed: %w", err))
}

// Verify GeminiProvider implements Provider
var _ Provider = (*GeminiProvider)(nil)
