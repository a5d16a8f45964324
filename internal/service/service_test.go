package service

import (
	"context"
	"os"
	"testing"

	"github.com/eduintel/eduintel/internal/ai"
	"github.com/eduintel/eduintel/internal/i18n"
	"github.com/eduintel/eduintel/internal/model"
	"github.com/eduintel/eduintel/internal/store"
)

func TestMain(m *testing.M) {
	if err := i18n.Init("en"); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

func newTestService(t *testing.T, local, remote *ai.MockInvoker) *Service {
	t.Helper()
	st, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	sel := ai.NewSelector(ai.Backends{Local: local, Remote: remote})
	return New(sel, st, DefaultConfig())
}

func TestChatRoutesToRequestedBackend(t *testing.T) {
	local := ai.NewMockInvoker("local-model").QueueResult("local says hi")
	remote := ai.NewMockInvoker("remote-model").QueueResult("remote says hi")
	svc := newTestService(t, local, remote)

	res := svc.Chat(context.Background(), "hello", "", model.BackendLocal, "en")
	if res.Text != "local says hi" {
		t.Errorf("local text = %q", res.Text)
	}
	res = svc.Chat(context.Background(), "hello", "", model.BackendRemote, "en")
	if res.Text != "remote says hi" {
		t.Errorf("remote text = %q", res.Text)
	}
	if len(local.Requests) != 1 || len(remote.Requests) != 1 {
		t.Errorf("requests local=%d remote=%d, want 1 each", len(local.Requests), len(remote.Requests))
	}
}

func TestChatFailureYieldsLocalizedFallback(t *testing.T) {
	remote := ai.NewMockInvoker("remote-model").QueueError(&ai.ErrNetwork{Err: context.DeadlineExceeded})
	svc := newTestService(t, ai.NewMockInvoker("local"), remote)

	res := svc.Chat(context.Background(), "hello", "", model.BackendRemote, "en")
	if res.OK() {
		t.Fatal("expected failed result")
	}
	if res.ErrorKind != model.ErrKindNetwork {
		t.Errorf("kind = %q, want network_failure", res.ErrorKind)
	}
	if res.Text == "" {
		t.Error("failed result must still carry user-facing text")
	}

	history, err := svc.History(10)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("expected 1 history record, got %d", len(history))
	}
	if history[0].ErrorKind != model.ErrKindNetwork {
		t.Errorf("recorded kind = %q, want network_failure", history[0].ErrorKind)
	}
}

func TestGenerateQuizRecoversModelPayload(t *testing.T) {
	payload := `{"questions":[{"question":"Q1","options":["a","b","c","d"],"correctAnswer":"b","explanation":"e"}]}`
	remote := ai.NewMockInvoker("remote-model").QueueResult("Here you go:\n" + payload)
	svc := newTestService(t, ai.NewMockInvoker("local"), remote)

	spec := model.QuizSpec{Subject: "Math", Topic: "Algebra", Level: "easy", Format: model.FormatMultipleChoice, Count: 1}
	data, recovered, err := svc.GenerateQuiz(context.Background(), spec, model.BackendRemote, "en")
	if err != nil {
		t.Fatalf("GenerateQuiz: %v", err)
	}
	if !recovered {
		t.Fatal("expected recovery from model payload")
	}
	if data.Questions[0].CorrectAnswer != "b" {
		t.Errorf("answer = %q, want b", data.Questions[0].CorrectAnswer)
	}
}

func TestGenerateQuizFallsBackOnBackendFailure(t *testing.T) {
	remote := ai.NewMockInvoker("remote-model").QueueError(&ai.ErrRemoteRejected{Status: 500})
	svc := newTestService(t, ai.NewMockInvoker("local"), remote)

	spec := model.QuizSpec{Subject: "Math", Topic: "Algebra", Level: "easy", Format: model.FormatTrueFalse, Count: 3}
	data, recovered, err := svc.GenerateQuiz(context.Background(), spec, model.BackendRemote, "en")
	if err != nil {
		t.Fatalf("GenerateQuiz: %v", err)
	}
	if recovered {
		t.Fatal("expected fallback questions")
	}
	if len(data.Questions) != 3 {
		t.Fatalf("fallback produced %d questions, want 3", len(data.Questions))
	}
}

func TestEvaluatePracticeAnswerParsesScore(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  int
	}{
		{"clean score line", "Good work.\nScore: 85/100\nKeep going.", 85},
		{"no score line", "Nice answer, keep practicing.", 70},
		{"out of range", "Score: 250/100", 70},
		{"zero", "Score: 0/100, incorrect.", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			remote := ai.NewMockInvoker("remote-model").QueueResult(tt.reply)
			svc := newTestService(t, ai.NewMockInvoker("local"), remote)

			cfg := model.PracticeConfig{Subject: "Math", Topic: "Algebra"}
			score, res, err := svc.EvaluatePracticeAnswer(context.Background(), cfg, "2+2?", "4", model.BackendRemote, "en")
			if err != nil {
				t.Fatalf("EvaluatePracticeAnswer: %v", err)
			}
			if score != tt.want {
				t.Errorf("score = %d, want %d", score, tt.want)
			}
			if res.Text != tt.reply {
				t.Errorf("feedback = %q", res.Text)
			}
		})
	}
}

func TestAnalyzeImageStaticFallback(t *testing.T) {
	sel := ai.NewSelector(ai.Backends{
		RemoteVision: &ai.MockVisionInvoker{Err: &ai.ErrNetwork{Err: context.DeadlineExceeded}},
	})
	st, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	svc := New(sel, st, DefaultConfig())

	payload := model.ImagePayload{MimeType: "image/png", DataURL: "data:image/png;base64,AAAA"}
	res := svc.AnalyzeImage(context.Background(), payload, "what is this?", model.BackendRemote, "en")
	if res.Answer == "" || res.Description == "" {
		t.Fatal("static fallback must carry description and answer")
	}
	if res.Model != "unavailable" {
		t.Errorf("model = %q, want unavailable", res.Model)
	}
}

func TestAnalyzeImageSuccess(t *testing.T) {
	mock := &ai.MockVisionInvoker{Res: &ai.VisionResult{Description: "a cat", Answer: "it is a cat", Model: "vision-model"}}
	sel := ai.NewSelector(ai.Backends{RemoteVision: mock})
	st, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	svc := New(sel, st, DefaultConfig())

	payload := model.ImagePayload{MimeType: "image/png", DataURL: "data:image/png;base64,AAAA"}
	res := svc.AnalyzeImage(context.Background(), payload, "what animal?", model.BackendRemote, "en")
	if res.Answer != "it is a cat" {
		t.Errorf("answer = %q", res.Answer)
	}
	if len(mock.Requests) != 1 || mock.Requests[0].Question != "what animal?" {
		t.Errorf("vision request not forwarded: %+v", mock.Requests)
	}
}
