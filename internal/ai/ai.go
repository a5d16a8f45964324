// Package ai is the invocation abstraction over the two generation
// backends: the hosted chat-completion API and the locally-resident model
// spawned as a child process. Consumers build a Request, hand it to the
// Selector, and always get a usable GenerationResult back.
package ai

import (
	"context"

	"github.com/eduintel/eduintel/internal/i18n"
)

// DefaultSystem is the assistant persona used when the caller does not
// supply a system preamble.
const DefaultSystem = "You are EduIntel, an advanced AI educational assistant. Be helpful, accurate, and educational."

// Request describes one text generation call.
type Request struct {
	// Prompt is the user instruction. Must be non-empty.
	Prompt string

	// System is the system preamble, without a language directive; the
	// invoker appends the directive for Language itself. Empty selects
	// DefaultSystem.
	System string

	// Language is a tag from the supported closed set. Unknown tags are
	// treated as English.
	Language string

	// MaxTokens is the response token ceiling. Callers pick the per-feature
	// budget (plain chat vs long-form generation).
	MaxTokens int
}

// systemMessage returns the full system message: preamble plus the
// language directive.
func (req Request) systemMessage() string {
	sys := req.System
	if sys == "" {
		sys = DefaultSystem
	}
	return sys + " " + i18n.Directive(req.Language)
}

// Result is a successful generation.
type Result struct {
	Text  string
	Model string
}

// Invoker is the call-and-normalize contract to one backend.
type Invoker interface {
	Invoke(ctx context.Context, req Request) (*Result, error)

	// ModelID returns the model identifier this invoker is configured with.
	ModelID() string
}

// VisionRequest describes one image analysis call.
type VisionRequest struct {
	// ImageDataURL is a data URL with explicit MIME type and base64 payload.
	ImageDataURL string
	Question     string
	Language     string
	MaxTokens    int
}

// VisionResult is a successful image analysis.
type VisionResult struct {
	Description string
	Answer      string
	Model       string
}

// VisionInvoker analyzes an uploaded image against a question.
type VisionInvoker interface {
	AnalyzeImage(ctx context.Context, req VisionRequest) (*VisionResult, error)
}
