// Package handler exposes the feature operations as a JSON API. Generation
// endpoints reply 200 even when a backend failed: the body carries the
// fallback text plus an errorKind field the UI can surface, so a flaky
// backend degrades the answer instead of breaking the page.
package handler

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/eduintel/eduintel/internal/i18n"
	"github.com/eduintel/eduintel/internal/imaging"
	"github.com/eduintel/eduintel/internal/model"
	"github.com/eduintel/eduintel/internal/service"
)

// maxUploadBytes bounds image uploads before compression.
const maxUploadBytes = 50 << 20

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// Config holds handler-level settings.
type Config struct {
	// AdminPasswordHash is the bcrypt hash guarding the admin endpoints.
	// Empty disables them.
	AdminPasswordHash string

	// DefaultLanguage is used when a request carries no language at all.
	DefaultLanguage string
}

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	svc    *service.Service
	config Config
}

// New creates a new Handler.
func New(svc *service.Service, cfg Config) *Handler {
	return &Handler{svc: svc, config: cfg}
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Use(i18n.Middleware(i18n.Normalize(h.config.DefaultLanguage)))

	r.Post("/api/generate", h.handleGenerate)
	r.Post("/api/chat", h.handleGenerate)
	r.Post("/api/qwen", h.handleLocalGenerate)
	r.Post("/api/quiz", h.handleQuiz)
	r.Post("/api/quiz/result", h.handleQuizResult)
	r.Post("/api/curriculum", h.handleCurriculum)
	r.Post("/api/studyplan", h.handleStudyPlan)
	r.Post("/api/feedback", h.handleFeedback)
	r.Post("/api/content", h.handleContent)
	r.Post("/api/concept", h.handleConcept)
	r.Post("/api/math", h.handleMath)
	r.Post("/api/code", h.handleCode)
	r.Post("/api/practice/question", h.handlePracticeQuestion)
	r.Post("/api/practice/evaluate", h.handlePracticeEvaluate)
	r.Post("/api/practice/summary", h.handlePracticeSummary)
	r.Post("/api/image", h.handleImage)
	r.Post("/api/qwen/image", h.handleLocalImage)
	r.Get("/api/history", h.handleHistory)
	r.Get("/api/stats", h.handleStats)
	r.Get("/api/export", h.handleExport)
	r.Post("/api/admin/reset", h.handleAdminReset)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

// language resolves the request language: explicit body field first, then
// the X-Language header the UI sends on every call, then the server default.
func (h *Handler) language(r *http.Request, bodyLang string) string {
	if i18n.IsSupported(bodyLang) {
		return bodyLang
	}
	if lang := r.Header.Get("X-Language"); i18n.IsSupported(lang) {
		return lang
	}
	return i18n.Normalize(h.config.DefaultLanguage)
}

// generationResponse is the common reply shape for text features. Callers
// detect failure by the presence of the error field; the status is 200
// either way and text still carries displayable fallback copy.
type generationResponse struct {
	Text      string          `json:"text"`
	Model     string          `json:"model"`
	Error     string          `json:"error,omitempty"`
	ErrorKind model.ErrorKind `json:"errorKind,omitempty"`
}

func writeGeneration(w http.ResponseWriter, res model.GenerationResult) {
	writeJSON(w, http.StatusOK, generationResponse{
		Text:      res.Text,
		Model:     res.Model,
		Error:     res.Detail,
		ErrorKind: res.ErrorKind,
	})
}

type generateRequest struct {
	Prompt       string `json:"prompt"`
	Message      string `json:"message"`
	SystemPrompt string `json:"systemPrompt"`
	Backend      string `json:"backend"`
	Language     string `json:"language"`
}

func (h *Handler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	prompt := req.Prompt
	if prompt == "" {
		prompt = req.Message
	}
	if prompt == "" {
		writeError(w, http.StatusBadRequest, "prompt is required")
		return
	}
	res := h.svc.Chat(r.Context(), prompt, req.SystemPrompt, model.ParseBackend(req.Backend), h.language(r, req.Language))
	writeGeneration(w, res)
}

// handleLocalGenerate always targets the local model, mirroring the
// dedicated endpoint the UI uses for offline mode.
func (h *Handler) handleLocalGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	prompt := req.Prompt
	if prompt == "" {
		prompt = req.Message
	}
	if prompt == "" {
		writeError(w, http.StatusBadRequest, "prompt is required")
		return
	}
	res := h.svc.Chat(r.Context(), prompt, req.SystemPrompt, model.BackendLocal, h.language(r, req.Language))
	writeGeneration(w, res)
}

type quizRequest struct {
	model.QuizSpec
	Backend  string `json:"backend"`
	Language string `json:"language"`
}

func (h *Handler) handleQuiz(w http.ResponseWriter, r *http.Request) {
	var req quizRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Subject == "" || req.Topic == "" {
		writeError(w, http.StatusBadRequest, "subject and topic are required")
		return
	}
	if req.Count < 1 || req.Count > 20 {
		writeError(w, http.StatusBadRequest, "count must be between 1 and 20")
		return
	}
	if !model.ValidFormat(req.Format) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown format %q", req.Format))
		return
	}

	data, recovered, err := h.svc.GenerateQuiz(r.Context(), req.QuizSpec, model.ParseBackend(req.Backend), h.language(r, req.Language))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"questions": data.Questions,
		"recovered": recovered,
	})
}

func (h *Handler) handleQuizResult(w http.ResponseWriter, r *http.Request) {
	var req model.QuizResult
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Total <= 0 || req.Score < 0 || req.Score > req.Total {
		writeError(w, http.StatusBadRequest, "score must be between 0 and total")
		return
	}
	id, err := h.svc.RecordQuizResult(req)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id})
}

type curriculumRequest struct {
	model.CurriculumConfig
	Backend  string `json:"backend"`
	Language string `json:"language"`
}

func (h *Handler) handleCurriculum(w http.ResponseWriter, r *http.Request) {
	var req curriculumRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Subject == "" {
		writeError(w, http.StatusBadRequest, "subject is required")
		return
	}
	res, err := h.svc.GenerateCurriculum(r.Context(), req.CurriculumConfig, model.ParseBackend(req.Backend), h.language(r, req.Language))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeGeneration(w, res)
}

type studyPlanRequest struct {
	model.StudyPlanConfig
	Backend  string `json:"backend"`
	Language string `json:"language"`
}

func (h *Handler) handleStudyPlan(w http.ResponseWriter, r *http.Request) {
	var req studyPlanRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ExamDate == "" || len(req.Subjects) == 0 {
		writeError(w, http.StatusBadRequest, "examDate and subjects are required")
		return
	}
	res, err := h.svc.GenerateStudyPlan(r.Context(), req.StudyPlanConfig, model.ParseBackend(req.Backend), h.language(r, req.Language))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeGeneration(w, res)
}

type feedbackRequest struct {
	model.TeacherFeedbackConfig
	Backend  string `json:"backend"`
	Language string `json:"language"`
}

func (h *Handler) handleFeedback(w http.ResponseWriter, r *http.Request) {
	var req feedbackRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.svc.TeacherFeedback(r.Context(), req.TeacherFeedbackConfig, model.ParseBackend(req.Backend), h.language(r, req.Language))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeGeneration(w, res)
}

type contentRequest struct {
	ContentType string `json:"contentType"`
	Topic       string `json:"topic"`
	Backend     string `json:"backend"`
	Language    string `json:"language"`
}

func (h *Handler) handleContent(w http.ResponseWriter, r *http.Request) {
	var req contentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ContentType == "" || req.Topic == "" {
		writeError(w, http.StatusBadRequest, "contentType and topic are required")
		return
	}
	res, err := h.svc.GenerateContent(r.Context(), req.ContentType, req.Topic, model.ParseBackend(req.Backend), h.language(r, req.Language))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeGeneration(w, res)
}

type conceptRequest struct {
	Concept  string `json:"concept"`
	Subject  string `json:"subject"`
	Backend  string `json:"backend"`
	Language string `json:"language"`
}

func (h *Handler) handleConcept(w http.ResponseWriter, r *http.Request) {
	var req conceptRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Concept == "" {
		writeError(w, http.StatusBadRequest, "concept is required")
		return
	}
	res, err := h.svc.ExploreConcept(r.Context(), req.Concept, req.Subject, model.ParseBackend(req.Backend), h.language(r, req.Language))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeGeneration(w, res)
}

type mathRequest struct {
	Problem  string `json:"problem"`
	Backend  string `json:"backend"`
	Language string `json:"language"`
}

func (h *Handler) handleMath(w http.ResponseWriter, r *http.Request) {
	var req mathRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Problem == "" {
		writeError(w, http.StatusBadRequest, "problem is required")
		return
	}
	res, err := h.svc.SolveMath(r.Context(), req.Problem, model.ParseBackend(req.Backend), h.language(r, req.Language))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeGeneration(w, res)
}

type codeRequest struct {
	model.CodeReviewConfig
	Backend string `json:"backend"`
	Lang    string `json:"lang"`
}

func (h *Handler) handleCode(w http.ResponseWriter, r *http.Request) {
	var req codeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Code == "" {
		writeError(w, http.StatusBadRequest, "code is required")
		return
	}
	res, err := h.svc.EvaluateCode(r.Context(), req.CodeReviewConfig, model.ParseBackend(req.Backend), h.language(r, req.Lang))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeGeneration(w, res)
}

type practiceRequest struct {
	model.PracticeConfig
	Backend  string `json:"backend"`
	Language string `json:"language"`
}

func (h *Handler) handlePracticeQuestion(w http.ResponseWriter, r *http.Request) {
	var req practiceRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Subject == "" || req.Topic == "" {
		writeError(w, http.StatusBadRequest, "subject and topic are required")
		return
	}
	res, err := h.svc.PracticeQuestion(r.Context(), req.PracticeConfig, model.ParseBackend(req.Backend), h.language(r, req.Language))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeGeneration(w, res)
}

type practiceEvaluateRequest struct {
	model.PracticeConfig
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Backend  string `json:"backend"`
	Language string `json:"language"`
}

func (h *Handler) handlePracticeEvaluate(w http.ResponseWriter, r *http.Request) {
	var req practiceEvaluateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Question == "" || req.Answer == "" {
		writeError(w, http.StatusBadRequest, "question and answer are required")
		return
	}
	score, res, err := h.svc.EvaluatePracticeAnswer(r.Context(), req.PracticeConfig, req.Question, req.Answer, model.ParseBackend(req.Backend), h.language(r, req.Language))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"score":     score,
		"feedback":  res.Text,
		"model":     res.Model,
		"errorKind": res.ErrorKind,
	})
}

func (h *Handler) handlePracticeSummary(w http.ResponseWriter, r *http.Request) {
	var req practiceRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Subject == "" || req.Topic == "" {
		writeError(w, http.StatusBadRequest, "subject and topic are required")
		return
	}
	res, err := h.svc.LearningSummary(r.Context(), req.PracticeConfig, model.ParseBackend(req.Backend), h.language(r, req.Language))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeGeneration(w, res)
}

func (h *Handler) handleImage(w http.ResponseWriter, r *http.Request) {
	h.analyzeImage(w, r, model.BackendRemote)
}

func (h *Handler) handleLocalImage(w http.ResponseWriter, r *http.Request) {
	h.analyzeImage(w, r, model.BackendLocal)
}

// analyzeImage accepts either a multipart upload (field "image") or a JSON
// body carrying a `data:` URL in imageData, compresses the image server-side
// and runs it through the vision backend.
func (h *Handler) analyzeImage(w http.ResponseWriter, r *http.Request, backend model.Backend) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	var data []byte
	var question, lang string
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var req struct {
			ImageData string `json:"imageData"`
			Question  string `json:"question"`
			Language  string `json:"language"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
			return
		}
		if req.ImageData == "" {
			writeError(w, http.StatusBadRequest, "imageData is required")
			return
		}
		var err error
		if _, data, err = imaging.DecodeDataURL(req.ImageData); err != nil {
			writeError(w, http.StatusBadRequest, "invalid image data URL: "+err.Error())
			return
		}
		question, lang = req.Question, req.Language
	} else {
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			writeError(w, http.StatusBadRequest, "invalid multipart form: "+err.Error())
			return
		}
		file, _, err := r.FormFile("image")
		if err != nil {
			writeError(w, http.StatusBadRequest, "image file is required")
			return
		}
		defer file.Close()
		if data, err = io.ReadAll(file); err != nil {
			writeError(w, http.StatusBadRequest, "read image: "+err.Error())
			return
		}
		question, lang = r.FormValue("question"), r.FormValue("language")
	}

	if question == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}

	payload, err := h.svc.PrepareImage(data)
	if err != nil {
		writeError(w, http.StatusBadRequest, "unsupported image: "+err.Error())
		return
	}

	res := h.svc.AnalyzeImage(r.Context(), payload, question, backend, h.language(r, lang))
	writeJSON(w, http.StatusOK, map[string]any{
		"description":    res.Description,
		"answer":         res.Answer,
		"model":          res.Model,
		"originalSize":   payload.OriginalSize,
		"compressedSize": payload.CompressedSize,
	})
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > 1000 {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 1000")
			return
		}
		limit = n
	}
	records, err := h.svc.History(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if records == nil {
		records = []model.GenerationRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"generations": records})
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Stats()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	export, err := h.svc.Export()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Disposition", `attachment; filename="eduintel-history.json"`)
	writeJSON(w, http.StatusOK, export)
}
