package quiz

import (
	"fmt"
	"strings"
	"testing"

	"github.com/eduintel/eduintel/internal/model"
)

func mcSpec(count int) model.QuizSpec {
	return model.QuizSpec{
		Subject: "Math",
		Topic:   "Algebra",
		Level:   "intermediate",
		Format:  model.FormatMultipleChoice,
		Count:   count,
	}
}

func mcPayload(count int) string {
	var b strings.Builder
	b.WriteString(`{"questions":[`)
	for i := 0; i < count; i++ {
		if i > 0 {
			b.WriteString(",")
		}
		fmt.Fprintf(&b, `{"question":"Q%d","options":["a","b","c","d"],"correctAnswer":"a","explanation":"because"}`, i+1)
	}
	b.WriteString(`]}`)
	return b.String()
}

func TestExtractPlainJSON(t *testing.T) {
	data, ok := Extract(mcPayload(2), mcSpec(2))
	if !ok {
		t.Fatal("expected recovery from clean JSON")
	}
	if len(data.Questions) != 2 {
		t.Fatalf("got %d questions, want 2", len(data.Questions))
	}
	if data.Questions[0].Question != "Q1" {
		t.Errorf("first question = %q", data.Questions[0].Question)
	}
}

func TestExtractFencedJSON(t *testing.T) {
	raw := "```json\n" + mcPayload(1) + "\n```"
	if _, ok := Extract(raw, mcSpec(1)); !ok {
		t.Fatal("expected recovery from fenced JSON")
	}
}

func TestExtractProseWrappedJSON(t *testing.T) {
	raw := "Sure! Here is your quiz:\n\n" + mcPayload(3) + "\n\nGood luck!"
	data, ok := Extract(raw, mcSpec(3))
	if !ok {
		t.Fatal("expected recovery from prose-wrapped JSON")
	}
	if len(data.Questions) != 3 {
		t.Fatalf("got %d questions, want 3", len(data.Questions))
	}
}

func TestExtractRejectsWrongCount(t *testing.T) {
	if _, ok := Extract(mcPayload(2), mcSpec(5)); ok {
		t.Fatal("count mismatch must force the fallback")
	}
}

func TestExtractRejectsBadMultipleChoice(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{
			"three options",
			`{"questions":[{"question":"Q","options":["a","b","c"],"correctAnswer":"a","explanation":""}]}`,
		},
		{
			"answer not among options",
			`{"questions":[{"question":"Q","options":["a","b","c","d"],"correctAnswer":"e","explanation":""}]}`,
		},
		{
			"empty question text",
			`{"questions":[{"question":"","options":["a","b","c","d"],"correctAnswer":"a","explanation":""}]}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, ok := Extract(tt.raw, mcSpec(1)); ok {
				t.Error("invalid payload must force the fallback")
			}
		})
	}
}

func TestExtractRejectsGarbage(t *testing.T) {
	for _, raw := range []string{"", "no json here", "{broken", "[1,2,3]"} {
		data, ok := Extract(raw, mcSpec(2))
		if ok {
			t.Errorf("Extract(%q) reported recovery", raw)
		}
		if len(data.Questions) != 2 {
			t.Errorf("fallback for %q produced %d questions, want 2", raw, len(data.Questions))
		}
	}
}

func TestExtractTrueFalse(t *testing.T) {
	raw := `{"questions":[{"question":"Is water wet?","options":["True","False"],"correctAnswer":"True","explanation":"yes"}]}`
	spec := mcSpec(1)
	spec.Format = model.FormatTrueFalse
	if _, ok := Extract(raw, spec); !ok {
		t.Fatal("expected recovery of valid true-false quiz")
	}

	bad := `{"questions":[{"question":"Q","options":["Yes","No"],"correctAnswer":"Yes","explanation":""}]}`
	if _, ok := Extract(bad, spec); ok {
		t.Fatal("non-True/False options must force the fallback")
	}
}

func TestExtractShortAnswerRejectsOptions(t *testing.T) {
	raw := `{"questions":[{"question":"Q","options":["a"],"correctAnswer":"a","explanation":""}]}`
	spec := mcSpec(1)
	spec.Format = model.FormatShortAnswer
	if _, ok := Extract(raw, spec); ok {
		t.Fatal("short-answer questions with options must force the fallback")
	}
}

func TestFallbackHonorsCountAndFormat(t *testing.T) {
	spec := mcSpec(5)
	data := Fallback(spec)
	if len(data.Questions) != 5 {
		t.Fatalf("got %d questions, want 5", len(data.Questions))
	}
	for i, q := range data.Questions {
		if err := checkQuestion(q, model.FormatMultipleChoice); err != nil {
			t.Errorf("question %d: %v", i+1, err)
		}
	}
}

func TestFallbackMixedCyclesShapes(t *testing.T) {
	spec := mcSpec(6)
	spec.Format = model.FormatMixed
	data := Fallback(spec)

	wantShapes := []model.QuestionFormat{
		model.FormatMultipleChoice,
		model.FormatTrueFalse,
		model.FormatShortAnswer,
	}
	for i, q := range data.Questions {
		want := wantShapes[i%3]
		if err := checkQuestion(q, want); err != nil {
			t.Errorf("question %d should be %s: %v", i+1, want, err)
		}
	}
}

func TestFallbackTrueFalseAlternates(t *testing.T) {
	spec := mcSpec(4)
	spec.Format = model.FormatTrueFalse
	data := Fallback(spec)
	for i, q := range data.Questions {
		want := "True"
		if i%2 == 1 {
			want = "False"
		}
		if q.CorrectAnswer != want {
			t.Errorf("question %d answer = %q, want %q", i+1, q.CorrectAnswer, want)
		}
	}
}

func TestExtractJSONSlicing(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`{"a":1}`, `{"a":1}`},
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{"prefix {\"a\":1} suffix", `{"a":1}`},
		{"no braces", ""},
		{"}{", ""},
	}
	for _, tt := range tests {
		if got := extractJSON(tt.in); got != tt.want {
			t.Errorf("extractJSON(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
