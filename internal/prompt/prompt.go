// Package prompt builds the natural-language instructions sent to the
// generation backends. Every builder is a pure function over its inputs:
// feature parameters go in, a single instruction string comes out, always
// ending with the language directive so the model answers in the user's
// language.
package prompt

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/eduintel/eduintel/internal/i18n"
	"github.com/eduintel/eduintel/internal/model"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.tmpl"))

// now is swappable for tests.
var now = time.Now

func build(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// Quiz builds the structured quiz generation prompt. The instruction demands
// a pure-JSON reply; the post processor recovers the payload regardless.
func Quiz(spec model.QuizSpec, lang string) (string, error) {
	return build("quiz.tmpl", struct {
		Count     int
		Format    model.QuestionFormat
		Subject   string
		Topic     string
		Level     string
		Directive string
	}{spec.Count, spec.Format, spec.Subject, spec.Topic, spec.Level, i18n.Directive(lang)})
}

// Curriculum builds the curriculum generation prompt.
func Curriculum(cfg model.CurriculumConfig, lang string) (string, error) {
	return build("curriculum.tmpl", struct {
		model.CurriculumConfig
		Directive string
	}{cfg, i18n.Directive(lang)})
}

// StudyPlan builds the day-by-day study plan prompt anchored at today's date.
func StudyPlan(cfg model.StudyPlanConfig, lang string) (string, error) {
	return build("studyplan.tmpl", struct {
		Today       string
		ExamDate    string
		HoursPerDay int
		Subjects    string
		Directive   string
	}{now().Format("2006-01-02"), cfg.ExamDate, cfg.HoursPerDay, strings.Join(cfg.Subjects, ", "), i18n.Directive(lang)})
}

// TeacherFeedback builds the educational-consultant feedback prompt.
func TeacherFeedback(cfg model.TeacherFeedbackConfig, lang string) (string, error) {
	return build("feedback.tmpl", struct {
		model.TeacherFeedbackConfig
		Directive string
	}{cfg, i18n.Directive(lang)})
}

// PracticeQuestion builds a single practice question prompt.
func PracticeQuestion(cfg model.PracticeConfig, lang string) (string, error) {
	return build("practice_question.tmpl", struct {
		model.PracticeConfig
		Directive string
	}{cfg, i18n.Directive(lang)})
}

// PracticeEvaluation builds the answer-scoring prompt. The model is asked for
// a "Score: N/100" line which the service layer parses back out.
func PracticeEvaluation(question, answer, lang string) (string, error) {
	return build("practice_eval.tmpl", struct {
		Question, Answer, Directive string
	}{question, answer, i18n.Directive(lang)})
}

// LearningSummary builds the topic summary prompt.
func LearningSummary(cfg model.PracticeConfig, lang string) (string, error) {
	return build("summary.tmpl", struct {
		model.PracticeConfig
		Directive string
	}{cfg, i18n.Directive(lang)})
}

// Concept builds the structured concept exploration prompt. Subject may be
// empty, in which case the context clause is omitted.
func Concept(concept, subject, lang string) (string, error) {
	return build("concept.tmpl", struct {
		Concept, Subject, Directive string
	}{concept, subject, i18n.Directive(lang)})
}

// Content builds the free-form content generation prompt.
func Content(contentType, topic, lang string) (string, error) {
	return build("content.tmpl", struct {
		ContentType, Topic, Directive string
	}{contentType, topic, i18n.Directive(lang)})
}

// CodeReview builds the code evaluation prompt.
func CodeReview(cfg model.CodeReviewConfig, lang string) (string, error) {
	return build("code.tmpl", struct {
		model.CodeReviewConfig
		Directive string
	}{cfg, i18n.Directive(lang)})
}

// MathProblem builds the step-by-step math solving prompt.
func MathProblem(problem, lang string) (string, error) {
	return build("math.tmpl", struct {
		Problem, Directive string
	}{problem, i18n.Directive(lang)})
}
