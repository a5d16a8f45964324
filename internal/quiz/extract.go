// Package quiz recovers structured quiz payloads from free-form model
// output. Models are asked for pure JSON but routinely wrap it in prose or
// markdown fences; this package digs the object out, validates it, and
// falls back to deterministic placeholder questions when recovery fails so
// the quiz feature never returns an empty screen.
package quiz

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/eduintel/eduintel/internal/model"
)

// Extract recovers a quiz from raw model output. The second return value
// reports whether the payload came from the model; false means every
// question is a synthesized placeholder.
func Extract(raw string, spec model.QuizSpec) (model.QuizData, bool) {
	data, err := parse(raw)
	if err != nil {
		slog.Warn("quiz recovery failed, synthesizing fallback", "error", err)
		return Fallback(spec), false
	}
	if err := check(data, spec); err != nil {
		slog.Warn("quiz payload rejected, synthesizing fallback", "error", err)
		return Fallback(spec), false
	}
	return data, true
}

// parse digs a JSON object out of raw text and decodes it.
func parse(raw string) (model.QuizData, error) {
	text := extractJSON(raw)
	if text == "" {
		return model.QuizData{}, fmt.Errorf("no JSON object found in output")
	}

	var doc any
	if err := json.Unmarshal([]byte(text), &doc); err != nil {
		return model.QuizData{}, fmt.Errorf("decode quiz payload: %w", err)
	}
	if err := schema().Validate(doc); err != nil {
		return model.QuizData{}, fmt.Errorf("quiz payload schema: %w", err)
	}

	var data model.QuizData
	if err := json.Unmarshal([]byte(text), &data); err != nil {
		return model.QuizData{}, fmt.Errorf("decode quiz payload: %w", err)
	}
	return data, nil
}

// extractJSON strips markdown code fences and slices from the first "{"
// to the last "}". Returns "" when no object is present.
func extractJSON(raw string) string {
	text := strings.TrimSpace(raw)
	if after, ok := strings.CutPrefix(text, "```json"); ok {
		text = after
	} else if after, ok := strings.CutPrefix(text, "```"); ok {
		text = after
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return ""
	}
	return text[start : end+1]
}

// check enforces the count and per-format invariants. Any violation
// rejects the whole payload; partial repair would mix model questions with
// placeholders of a different style.
func check(data model.QuizData, spec model.QuizSpec) error {
	if len(data.Questions) != spec.Count {
		return fmt.Errorf("got %d questions, want %d", len(data.Questions), spec.Count)
	}
	for i, q := range data.Questions {
		if err := checkQuestion(q, spec.Format); err != nil {
			return fmt.Errorf("question %d: %w", i+1, err)
		}
	}
	return nil
}

func checkQuestion(q model.QuizQuestion, format model.QuestionFormat) error {
	switch format {
	case model.FormatMultipleChoice:
		return checkMultipleChoice(q)
	case model.FormatTrueFalse:
		return checkTrueFalse(q)
	case model.FormatShortAnswer:
		return checkShortAnswer(q)
	case model.FormatMixed:
		// Mixed quizzes accept any one valid shape per question.
		if checkMultipleChoice(q) == nil || checkTrueFalse(q) == nil || checkShortAnswer(q) == nil {
			return nil
		}
		return fmt.Errorf("matches no question shape")
	}
	return fmt.Errorf("unknown format %q", format)
}

func checkMultipleChoice(q model.QuizQuestion) error {
	if len(q.Options) != 4 {
		return fmt.Errorf("multiple-choice needs 4 options, got %d", len(q.Options))
	}
	for _, opt := range q.Options {
		if opt == q.CorrectAnswer {
			return nil
		}
	}
	return fmt.Errorf("correct answer %q is not among the options", q.CorrectAnswer)
}

func checkTrueFalse(q model.QuizQuestion) error {
	if len(q.Options) != 2 || q.Options[0] != "True" || q.Options[1] != "False" {
		return fmt.Errorf("true-false needs options [True False], got %v", q.Options)
	}
	if q.CorrectAnswer != "True" && q.CorrectAnswer != "False" {
		return fmt.Errorf("true-false answer must be True or False, got %q", q.CorrectAnswer)
	}
	return nil
}

func checkShortAnswer(q model.QuizQuestion) error {
	if len(q.Options) != 0 {
		return fmt.Errorf("short-answer must not carry options, got %d", len(q.Options))
	}
	return nil
}

// Fallback synthesizes a deterministic placeholder quiz honoring the
// requested count and format. Mixed format cycles through the three
// shapes; true-false answers alternate so the quiz is not one long
// column of "True".
func Fallback(spec model.QuizSpec) model.QuizData {
	questions := make([]model.QuizQuestion, spec.Count)
	for i := range questions {
		format := spec.Format
		if format == model.FormatMixed {
			switch i % 3 {
			case 0:
				format = model.FormatMultipleChoice
			case 1:
				format = model.FormatTrueFalse
			case 2:
				format = model.FormatShortAnswer
			}
		}
		questions[i] = fallbackQuestion(i, format, spec)
	}
	return model.QuizData{Questions: questions}
}

func fallbackQuestion(i int, format model.QuestionFormat, spec model.QuizSpec) model.QuizQuestion {
	n := i + 1
	switch format {
	case model.FormatTrueFalse:
		answer := "True"
		if i%2 == 1 {
			answer = "False"
		}
		return model.QuizQuestion{
			Question:      fmt.Sprintf("Statement %d about %s: %s is an important topic in %s.", n, spec.Topic, spec.Topic, spec.Subject),
			Options:       []string{"True", "False"},
			CorrectAnswer: answer,
			Explanation:   fmt.Sprintf("Review your %s materials on %s to verify this statement.", spec.Subject, spec.Topic),
		}
	case model.FormatShortAnswer:
		return model.QuizQuestion{
			Question:      fmt.Sprintf("Question %d: Briefly explain a key aspect of %s in %s.", n, spec.Topic, spec.Subject),
			CorrectAnswer: fmt.Sprintf("A concise explanation of %s.", spec.Topic),
			Explanation:   fmt.Sprintf("Any accurate summary of %s at the %s level is acceptable.", spec.Topic, spec.Level),
		}
	default:
		options := []string{
			fmt.Sprintf("A core principle of %s", spec.Topic),
			"An unrelated concept",
			"A common misconception",
			"None of the above",
		}
		return model.QuizQuestion{
			Question:      fmt.Sprintf("Question %d: Which of the following best relates to %s in %s?", n, spec.Topic, spec.Subject),
			Options:       options,
			CorrectAnswer: options[0],
			Explanation:   fmt.Sprintf("This placeholder was generated because the model reply could not be read. Regenerate the quiz for real %s questions.", spec.Topic),
		}
	}
}
