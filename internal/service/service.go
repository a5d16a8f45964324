// Package service implements the feature operations behind the HTTP API.
// It builds prompts, routes them through the backend selector, recovers
// structured payloads, records history and turns every failure into
// localized user-facing text so no feature ever surfaces a bare error.
package service

import (
	"context"
	"log/slog"
	"regexp"
	"strconv"
	"time"

	"github.com/eduintel/eduintel/internal/ai"
	"github.com/eduintel/eduintel/internal/i18n"
	"github.com/eduintel/eduintel/internal/imaging"
	"github.com/eduintel/eduintel/internal/model"
	"github.com/eduintel/eduintel/internal/prompt"
	"github.com/eduintel/eduintel/internal/quiz"
	"github.com/eduintel/eduintel/internal/store"
)

// Config bounds the per-feature generation budgets.
type Config struct {
	// ChatMaxTokens caps conversational replies.
	ChatMaxTokens int

	// LongformMaxTokens caps structured generations (curricula, study
	// plans, quizzes).
	LongformMaxTokens int

	// VisionMaxTokens caps image analysis replies.
	VisionMaxTokens int

	// Imaging bounds the upload compression pass.
	Imaging imaging.Options
}

// DefaultConfig mirrors the budgets the backends are tuned for.
func DefaultConfig() Config {
	return Config{
		ChatMaxTokens:     2000,
		LongformMaxTokens: 6000,
		VisionMaxTokens:   1024,
		Imaging:           imaging.DefaultOptions(),
	}
}

// Service wires the feature operations together.
type Service struct {
	selector *ai.Selector
	store    *store.Store
	cfg      Config
}

func New(selector *ai.Selector, st *store.Store, cfg Config) *Service {
	return &Service{selector: selector, store: st, cfg: cfg}
}

// generate runs one prompt through the selector, records the call and
// substitutes localized fallback text when the backend failed. The
// returned result always carries usable text.
func (s *Service) generate(ctx context.Context, feature model.Feature, req model.GenerationRequest, maxTokens int) model.GenerationResult {
	start := time.Now()
	res := s.selector.Generate(ctx, req, maxTokens)

	s.log(model.GenerationRecord{
		Feature:   feature,
		Backend:   req.Backend,
		Model:     res.Model,
		Language:  req.Language,
		Duration:  time.Since(start).Milliseconds(),
		ErrorKind: res.ErrorKind,
	})

	if !res.OK() {
		lctx := i18n.WithLocalizer(ctx, i18n.NewLocalizer(req.Language))
		res.Text = i18n.T(lctx, "RemoteUnavailable")
	}
	return res
}

func (s *Service) log(rec model.GenerationRecord) {
	if s.store == nil {
		return
	}
	if _, err := s.store.LogGeneration(rec); err != nil {
		slog.Warn("failed to record generation", "feature", rec.Feature, "error", err)
	}
}

// Chat answers a free-form message. system overrides the default persona
// preamble when non-empty; the language directive is appended either way.
func (s *Service) Chat(ctx context.Context, message, system string, backend model.Backend, lang string) model.GenerationResult {
	return s.generate(ctx, model.FeatureChat, model.GenerationRequest{
		Prompt:   message,
		System:   system,
		Backend:  backend,
		Language: lang,
	}, s.cfg.ChatMaxTokens)
}

// GenerateQuiz builds a quiz. The boolean reports whether the questions
// came from the model; false means the deterministic placeholders were
// substituted because recovery failed.
func (s *Service) GenerateQuiz(ctx context.Context, spec model.QuizSpec, backend model.Backend, lang string) (model.QuizData, bool, error) {
	p, err := prompt.Quiz(spec, lang)
	if err != nil {
		return model.QuizData{}, false, err
	}
	res := s.generate(ctx, model.FeatureQuiz, model.GenerationRequest{Prompt: p, Backend: backend, Language: lang}, s.cfg.LongformMaxTokens)
	if !res.OK() {
		return quiz.Fallback(spec), false, nil
	}
	data, recovered := quiz.Extract(res.Text, spec)
	return data, recovered, nil
}

// GenerateCurriculum builds a structured curriculum.
func (s *Service) GenerateCurriculum(ctx context.Context, cfg model.CurriculumConfig, backend model.Backend, lang string) (model.GenerationResult, error) {
	p, err := prompt.Curriculum(cfg, lang)
	if err != nil {
		return model.GenerationResult{}, err
	}
	return s.generate(ctx, model.FeatureCurriculum, model.GenerationRequest{Prompt: p, Backend: backend, Language: lang}, s.cfg.LongformMaxTokens), nil
}

// GenerateStudyPlan builds a day-by-day study plan anchored at today.
func (s *Service) GenerateStudyPlan(ctx context.Context, cfg model.StudyPlanConfig, backend model.Backend, lang string) (model.GenerationResult, error) {
	p, err := prompt.StudyPlan(cfg, lang)
	if err != nil {
		return model.GenerationResult{}, err
	}
	return s.generate(ctx, model.FeatureStudyPlan, model.GenerationRequest{Prompt: p, Backend: backend, Language: lang}, s.cfg.LongformMaxTokens), nil
}

// TeacherFeedback reviews a teaching approach.
func (s *Service) TeacherFeedback(ctx context.Context, cfg model.TeacherFeedbackConfig, backend model.Backend, lang string) (model.GenerationResult, error) {
	p, err := prompt.TeacherFeedback(cfg, lang)
	if err != nil {
		return model.GenerationResult{}, err
	}
	return s.generate(ctx, model.FeatureFeedback, model.GenerationRequest{Prompt: p, Backend: backend, Language: lang}, s.cfg.LongformMaxTokens), nil
}

// PracticeQuestion produces one practice question.
func (s *Service) PracticeQuestion(ctx context.Context, cfg model.PracticeConfig, backend model.Backend, lang string) (model.GenerationResult, error) {
	p, err := prompt.PracticeQuestion(cfg, lang)
	if err != nil {
		return model.GenerationResult{}, err
	}
	return s.generate(ctx, model.FeaturePractice, model.GenerationRequest{Prompt: p, Backend: backend, Language: lang}, s.cfg.ChatMaxTokens), nil
}

var scoreRe = regexp.MustCompile(`Score:\s*(\d+)`)

// EvaluatePracticeAnswer scores a student answer. The model is asked for
// a "Score: N/100" line; when it is missing or out of range the score
// defaults to 70 so grading never blocks on a chatty reply. The result is
// recorded for the dashboard.
func (s *Service) EvaluatePracticeAnswer(ctx context.Context, cfg model.PracticeConfig, question, answer string, backend model.Backend, lang string) (int, model.GenerationResult, error) {
	p, err := prompt.PracticeEvaluation(question, answer, lang)
	if err != nil {
		return 0, model.GenerationResult{}, err
	}
	res := s.generate(ctx, model.FeatureEvaluation, model.GenerationRequest{Prompt: p, Backend: backend, Language: lang}, s.cfg.ChatMaxTokens)

	score := 70
	if m := scoreRe.FindStringSubmatch(res.Text); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n >= 0 && n <= 100 {
			score = n
		}
	}

	if s.store != nil && res.OK() {
		if _, err := s.store.SavePracticeResult(model.PracticeResult{
			Subject:  cfg.Subject,
			Topic:    cfg.Topic,
			Score:    score,
			Feedback: res.Text,
		}); err != nil {
			slog.Warn("failed to record practice result", "error", err)
		}
	}
	return score, res, nil
}

// LearningSummary produces a revision summary for a topic.
func (s *Service) LearningSummary(ctx context.Context, cfg model.PracticeConfig, backend model.Backend, lang string) (model.GenerationResult, error) {
	p, err := prompt.LearningSummary(cfg, lang)
	if err != nil {
		return model.GenerationResult{}, err
	}
	return s.generate(ctx, model.FeatureSummary, model.GenerationRequest{Prompt: p, Backend: backend, Language: lang}, s.cfg.ChatMaxTokens), nil
}

// ExploreConcept explains a single concept, optionally within a subject.
func (s *Service) ExploreConcept(ctx context.Context, concept, subject string, backend model.Backend, lang string) (model.GenerationResult, error) {
	p, err := prompt.Concept(concept, subject, lang)
	if err != nil {
		return model.GenerationResult{}, err
	}
	return s.generate(ctx, model.FeatureConcept, model.GenerationRequest{Prompt: p, Backend: backend, Language: lang}, s.cfg.ChatMaxTokens), nil
}

// GenerateContent produces teaching material of the given type.
func (s *Service) GenerateContent(ctx context.Context, contentType, topic string, backend model.Backend, lang string) (model.GenerationResult, error) {
	p, err := prompt.Content(contentType, topic, lang)
	if err != nil {
		return model.GenerationResult{}, err
	}
	return s.generate(ctx, model.FeatureContent, model.GenerationRequest{Prompt: p, Backend: backend, Language: lang}, s.cfg.LongformMaxTokens), nil
}

// EvaluateCode reviews a code submission.
func (s *Service) EvaluateCode(ctx context.Context, cfg model.CodeReviewConfig, backend model.Backend, lang string) (model.GenerationResult, error) {
	p, err := prompt.CodeReview(cfg, lang)
	if err != nil {
		return model.GenerationResult{}, err
	}
	return s.generate(ctx, model.FeatureCode, model.GenerationRequest{Prompt: p, Backend: backend, Language: lang}, s.cfg.ChatMaxTokens), nil
}

// SolveMath solves a math problem step by step.
func (s *Service) SolveMath(ctx context.Context, problem string, backend model.Backend, lang string) (model.GenerationResult, error) {
	p, err := prompt.MathProblem(problem, lang)
	if err != nil {
		return model.GenerationResult{}, err
	}
	return s.generate(ctx, model.FeatureMath, model.GenerationRequest{Prompt: p, Backend: backend, Language: lang}, s.cfg.ChatMaxTokens), nil
}

// PrepareImage compresses an uploaded image for transmission.
func (s *Service) PrepareImage(data []byte) (model.ImagePayload, error) {
	return imaging.Compress(data, s.cfg.Imaging)
}

// AnalyzeImage answers a question about an uploaded image. When every
// backend tier fails, the final tier is a static localized reply so the
// feature still responds.
func (s *Service) AnalyzeImage(ctx context.Context, payload model.ImagePayload, question string, backend model.Backend, lang string) *ai.VisionResult {
	start := time.Now()
	res, err := s.selector.AnalyzeImage(ctx, backend, ai.VisionRequest{
		ImageDataURL: payload.DataURL,
		Question:     question,
		Language:     lang,
		MaxTokens:    s.cfg.VisionMaxTokens,
	})

	rec := model.GenerationRecord{
		Feature:  model.FeatureImage,
		Backend:  backend,
		Language: lang,
		Duration: time.Since(start).Milliseconds(),
	}
	if err != nil {
		rec.ErrorKind = ai.Kind(err)
	} else {
		rec.Model = res.Model
	}
	s.log(rec)

	if err != nil {
		slog.Error("image analysis failed", "backend", backend, "kind", ai.Kind(err), "error", err)
		lctx := i18n.WithLocalizer(ctx, i18n.NewLocalizer(lang))
		return &ai.VisionResult{
			Description: i18n.Td(lctx, "VisionFallbackDescription", map[string]any{"Question": question}),
			Answer:      i18n.T(lctx, "VisionFallbackAnswer"),
			Model:       "unavailable",
		}
	}
	return res
}

// RecordQuizResult stores a completed quiz score.
func (s *Service) RecordQuizResult(res model.QuizResult) (string, error) {
	return s.store.SaveQuizResult(res)
}

// History returns the most recent generation records.
func (s *Service) History(limit int) ([]model.GenerationRecord, error) {
	return s.store.ListGenerations(limit)
}

// Stats aggregates usage for the dashboard.
func (s *Service) Stats() (model.UsageStats, error) {
	return s.store.Stats()
}

// Export builds the full history snapshot.
func (s *Service) Export() (*model.HistoryExport, error) {
	return s.store.Export()
}

// ResetHistory wipes the learning history.
func (s *Service) ResetHistory() error {
	return s.store.Reset()
}
