package ai

import (
	"context"
	"log/slog"

	"github.com/eduintel/eduintel/internal/model"
)

// Backends bundles the invokers the Selector routes between.
type Backends struct {
	Local        Invoker
	Remote       Invoker
	LocalVision  VisionInvoker
	RemoteVision VisionInvoker
}

// Selector routes a generation request to the backend it names and
// normalizes every failure into a GenerationResult. It never returns an
// error to feature code: callers always receive either text or an
// ErrorKind they can translate into user-facing fallback copy.
type Selector struct {
	backends Backends
}

// NewSelector creates a Selector over the given backends.
func NewSelector(b Backends) *Selector {
	return &Selector{backends: b}
}

// Generate dispatches the request and converts any invoker failure into a
// result with ErrorKind set and empty text.
func (s *Selector) Generate(ctx context.Context, req model.GenerationRequest, maxTokens int) model.GenerationResult {
	inv := s.backends.Remote
	if req.Backend == model.BackendLocal {
		inv = s.backends.Local
	}

	res, err := inv.Invoke(ctx, Request{
		Prompt:    req.Prompt,
		System:    req.System,
		Language:  req.Language,
		MaxTokens: maxTokens,
	})
	if err != nil {
		slog.Error("generation failed",
			"backend", req.Backend,
			"model", inv.ModelID(),
			"kind", Kind(err),
			"error", err,
		)
		return model.GenerationResult{
			Model:     inv.ModelID(),
			ErrorKind: Kind(err),
			Detail:    err.Error(),
		}
	}

	return model.GenerationResult{Text: res.Text, Model: res.Model}
}

// AnalyzeImage dispatches an image analysis to the named backend. Unlike
// Generate it surfaces the error: the caller owns the final static
// fallback tier and its localization.
func (s *Selector) AnalyzeImage(ctx context.Context, backend model.Backend, req VisionRequest) (*VisionResult, error) {
	inv := s.backends.RemoteVision
	if backend == model.BackendLocal {
		inv = s.backends.LocalVision
	}
	return inv.AnalyzeImage(ctx, req)
}
