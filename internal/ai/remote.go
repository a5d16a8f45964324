package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// Sampling temperature for all remote generations.
const remoteTemperature = 0.7

// RemoteConfig configures the hosted chat-completion backend.
type RemoteConfig struct {
	// BaseURL of the OpenAI-compatible API.
	BaseURL string

	// APIKey authenticates the server to the API. It is read from server
	// configuration only and never leaves this process.
	APIKey string

	// Model is the chat model identifier.
	Model string

	// VisionModel is the multimodal model used for image analysis.
	VisionModel string
}

// Remote invokes a hosted OpenAI-compatible chat-completion API.
type Remote struct {
	client      *openai.Client
	model       string
	visionModel string
}

// NewRemote creates the remote invoker.
func NewRemote(cfg RemoteConfig) *Remote {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &Remote{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       cfg.Model,
		visionModel: cfg.VisionModel,
	}
}

// ModelID returns the configured chat model identifier.
func (r *Remote) ModelID() string { return r.model }

// Invoke sends one chat completion request. Failures are classified into
// the invoker error taxonomy so the selector can map them to fallback copy.
func (r *Remote) Invoke(ctx context.Context, req Request) (*Result, error) {
	resp, err := r.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: r.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.systemMessage()},
			{Role: openai.ChatMessageRoleUser, Content: req.Prompt},
		},
		Temperature: remoteTemperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return nil, classifyRemoteErr(err)
	}
	if len(resp.Choices) == 0 {
		return nil, &ErrParse{Err: errors.New("response contained no choices")}
	}
	return &Result{Text: resp.Choices[0].Message.Content, Model: r.model}, nil
}

// AnalyzeImage runs the two remote analysis tiers: first the multimodal
// model with the image attached, then a text-only description of the task.
// The static apology tier lives with the caller.
func (r *Remote) AnalyzeImage(ctx context.Context, req VisionRequest) (*VisionResult, error) {
	resp, err := r.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: r.visionModel,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: visionInstruction(req)},
					{
						Type:     openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{URL: req.ImageDataURL},
					},
				},
			},
		},
		MaxTokens: req.MaxTokens,
	})
	if err == nil && len(resp.Choices) > 0 {
		return splitVisionReply(resp.Choices[0].Message.Content, r.visionModel), nil
	}

	// The multimodal tier failed. Fall back to a text-only request against
	// the chat model so the user still gets a best-effort answer.
	textRes, textErr := r.Invoke(ctx, Request{
		Prompt:    fmt.Sprintf("Analyze this image and answer: %q. The image could not be transmitted, so explain what information would be needed and give general guidance.", req.Question),
		Language:  req.Language,
		MaxTokens: req.MaxTokens,
	})
	if textErr != nil {
		if err != nil {
			return nil, classifyRemoteErr(err)
		}
		return nil, textErr
	}
	return &VisionResult{
		Description: "Image analysis was unavailable; this is a text-only response.",
		Answer:      textRes.Text,
		Model:       r.model,
	}, nil
}

func visionInstruction(req VisionRequest) string {
	return fmt.Sprintf("Describe this image in detail, then answer the question: %s\n\nFormat your reply as:\nDescription: <what the image shows>\nAnswer: <answer to the question>", req.Question)
}

// splitVisionReply pulls the Description/Answer sections out of the model
// reply. If the model ignored the format, the whole text becomes the answer.
func splitVisionReply(text, modelID string) *VisionResult {
	res := &VisionResult{Answer: strings.TrimSpace(text), Model: modelID}
	const descTag, ansTag = "Description:", "Answer:"
	di := strings.Index(text, descTag)
	ai := strings.Index(text, ansTag)
	if di >= 0 && ai > di {
		res.Description = strings.TrimSpace(text[di+len(descTag) : ai])
		res.Answer = strings.TrimSpace(text[ai+len(ansTag):])
	}
	return res
}

// classifyRemoteErr maps go-openai errors onto the invoker taxonomy.
func classifyRemoteErr(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &ErrRemoteRejected{Status: apiErr.HTTPStatusCode, Body: apiErr.Message}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &ErrRemoteRejected{Status: reqErr.HTTPStatusCode, Body: reqErr.Error()}
	}
	return &ErrNetwork{Err: err}
}
