package model

import "time"

// Backend identifies the generation-serving target.
type Backend string

const (
	// BackendLocal routes requests to the locally-resident model process.
	BackendLocal Backend = "local"
	// BackendRemote routes requests to the hosted chat-completion API.
	BackendRemote Backend = "remote"
)

// ParseBackend maps a wire value to a Backend, defaulting to Remote.
// The UI historically sends "qwen" for the local model.
func ParseBackend(s string) Backend {
	switch s {
	case "local", "qwen":
		return BackendLocal
	default:
		return BackendRemote
	}
}

// ErrorKind classifies a failed generation for logging and fallback selection.
type ErrorKind string

const (
	ErrKindNone           ErrorKind = ""
	ErrKindNetwork        ErrorKind = "network_failure"
	ErrKindRemoteRejected ErrorKind = "remote_rejected"
	ErrKindModelNotFound  ErrorKind = "model_not_found"
	ErrKindProcess        ErrorKind = "process_failure"
	ErrKindParse          ErrorKind = "parse_failure"
	ErrKindUnknown        ErrorKind = "unknown"
)

// GenerationRequest is a single prompt dispatched to one backend.
type GenerationRequest struct {
	Prompt   string
	System   string
	Backend  Backend
	Language string
}

// GenerationResult is the normalized outcome of a generation call.
// Exactly one of Text or ErrorKind is meaningful: on error Text is empty
// and the caller constructs any user-facing fallback message itself.
type GenerationResult struct {
	Text      string
	Model     string
	ErrorKind ErrorKind
	// Detail carries the underlying error message. It is logged for
	// operators and embedded as the error field in API replies; it is
	// never substituted for the displayable fallback text.
	Detail string
}

// OK reports whether the generation succeeded.
func (r GenerationResult) OK() bool { return r.ErrorKind == ErrKindNone }

// QuestionFormat is the requested quiz question style.
type QuestionFormat string

const (
	FormatMultipleChoice QuestionFormat = "multiple-choice"
	FormatTrueFalse      QuestionFormat = "true-false"
	FormatShortAnswer    QuestionFormat = "short-answer"
	FormatMixed          QuestionFormat = "mixed"
)

// ValidFormat checks a wire value against the closed format set.
func ValidFormat(f QuestionFormat) bool {
	switch f {
	case FormatMultipleChoice, FormatTrueFalse, FormatShortAnswer, FormatMixed:
		return true
	}
	return false
}

// QuizSpec describes a quiz generation request.
type QuizSpec struct {
	Subject string         `json:"subject"`
	Topic   string         `json:"topic"`
	Level   string         `json:"level"`
	Format  QuestionFormat `json:"format"`
	Count   int            `json:"count"`
}

// QuizQuestion is one generated question.
//
// Invariants by format: multiple-choice carries exactly 4 options and
// CorrectAnswer equals one of them; true-false carries ["True","False"];
// short-answer carries no options.
type QuizQuestion struct {
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correctAnswer"`
	Explanation   string   `json:"explanation"`
}

// QuizData is the structured payload recovered from model output.
type QuizData struct {
	Questions []QuizQuestion `json:"questions"`
}

// ImagePayload is a compressed, transmission-ready image.
type ImagePayload struct {
	MimeType       string `json:"mimeType"`
	DataURL        string `json:"dataURL"`
	OriginalSize   int    `json:"originalSize"`
	CompressedSize int    `json:"compressedSize"`
}

// StudyPlanConfig are the inputs for study plan generation.
type StudyPlanConfig struct {
	ExamDate    string   `json:"examDate"`
	HoursPerDay int      `json:"hoursPerDay"`
	Subjects    []string `json:"subjects"`
}

// CurriculumConfig are the inputs for curriculum generation.
type CurriculumConfig struct {
	Subject  string `json:"subject"`
	Duration string `json:"duration"`
	Grade    string `json:"grade"`
	Focus    string `json:"focus"`
}

// TeacherFeedbackConfig are the inputs for teacher consulting feedback.
type TeacherFeedbackConfig struct {
	TeachingMethod string `json:"teachingMethod"`
	Curriculum     string `json:"curriculum"`
	Challenges     string `json:"challenges"`
}

// PracticeConfig identifies a practice drill topic.
type PracticeConfig struct {
	Subject string `json:"subject"`
	Topic   string `json:"topic"`
}

// CodeReviewConfig are the inputs for code evaluation.
type CodeReviewConfig struct {
	Code        string `json:"code"`
	Description string `json:"description"`
	Language    string `json:"language"`
}

// Feature names a user-facing capability, recorded with every generation.
type Feature string

const (
	FeatureChat        Feature = "chat"
	FeatureQuiz        Feature = "quiz"
	FeatureCurriculum  Feature = "curriculum"
	FeatureStudyPlan   Feature = "study_plan"
	FeatureFeedback    Feature = "teacher_feedback"
	FeaturePractice    Feature = "practice"
	FeatureEvaluation  Feature = "practice_evaluation"
	FeatureSummary     Feature = "learning_summary"
	FeatureConcept     Feature = "concept"
	FeatureContent     Feature = "content"
	FeatureCode        Feature = "code_evaluation"
	FeatureMath        Feature = "math"
	FeatureImage       Feature = "image_analysis"
)

// GenerationRecord is one row of the server-side generation log.
type GenerationRecord struct {
	ID        string    `json:"id"`
	Feature   Feature   `json:"feature"`
	Backend   Backend   `json:"backend"`
	Model     string    `json:"model"`
	Language  string    `json:"language"`
	Duration  int64     `json:"durationMs"`
	ErrorKind ErrorKind `json:"errorKind,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// QuizResult records a completed quiz for the dashboard.
type QuizResult struct {
	ID        string    `json:"id"`
	Subject   string    `json:"subject"`
	Topic     string    `json:"topic"`
	Score     int       `json:"score"`
	Total     int       `json:"total"`
	CreatedAt time.Time `json:"createdAt"`
}

// PracticeResult records a scored practice answer.
type PracticeResult struct {
	ID        string    `json:"id"`
	Subject   string    `json:"subject"`
	Topic     string    `json:"topic"`
	Score     int       `json:"score"`
	Feedback  string    `json:"feedback"`
	CreatedAt time.Time `json:"createdAt"`
}
