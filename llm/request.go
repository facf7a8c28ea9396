// Package llm provides completion providers and shared request types.
package llm

// Part is one element of a completion prompt: either plain text or an
// inline binary payload with a MIME type (page images from extraction).
type Part struct {
	Text     string
	Data     []byte
	MIMEType string
}

// TextPart creates a text part.
func TextPart(text string) Part {
	return Part{Text: text}
}

// InlinePart creates an inline binary part.
func InlinePart(mimeType string, data []byte) Part {
	return Part{MIMEType: mimeType, Data: data}
}

// IsInline reports whether the part carries inline binary data.
func (p Part) IsInline() bool {
	return len(p.Data) > 0
}

// GenConfig holds generation parameters. Zero values are omitted from the
// outbound request so the backend applies its own defaults.
type GenConfig struct {
	Temperature     float32
	TopP            float32
	TopK            int32
	MaxOutputTokens int32
}

// Request is exactly one completion call: a model identifier, ordered
// content parts, and generation parameters.
type Request struct {
	Model       string
	Instruction string // system instruction, may be empty
	Parts       []Part
	Gen         GenConfig
}

// HasInlineData reports whether any part carries inline binary data.
func (r Request) HasInlineData() bool {
	for _, p := range r.Parts {
		if p.IsInline() {
			return true
		}
	}
	return false
}

// WithoutInlineData returns a copy of the request with inline parts
// removed and text parts intact. Used for reduced-capability retries
// against tiers that reject image input; text content is never dropped.
func (r Request) WithoutInlineData() Request {
	parts := make([]Part, 0, len(r.Parts))
	for _, p := range r.Parts {
		if !p.IsInline() {
			parts = append(parts, p)
		}
	}
	out := r
	out.Parts = parts
	return out
}

// Response is a successful completion result.
type Response struct {
	Text         string
	FinishReason string
}
