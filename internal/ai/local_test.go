package ai

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestLocal(t *testing.T) *Local {
	t.Helper()
	l, err := NewLocal(LocalConfig{WorkDir: t.TempDir(), Python: "python3"})
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	return l
}

func TestNewLocalWritesDrivers(t *testing.T) {
	l := newTestLocal(t)
	for _, name := range []string{"qwen_inference.py", "image_inference.py"} {
		path := filepath.Join(l.workDir, "models", name)
		info, err := os.Stat(path)
		if err != nil {
			t.Fatalf("driver %s not written: %v", name, err)
		}
		if info.Mode().Perm() != 0o755 {
			t.Errorf("driver %s mode = %v, want 0755", name, info.Mode().Perm())
		}
	}
}

func TestNewLocalKeepsExistingDriver(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "models", "qwen_inference.py")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("# customized"), 0o755); err != nil {
		t.Fatal(err)
	}

	if _, err := NewLocal(LocalConfig{WorkDir: dir}); err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "# customized" {
		t.Error("existing driver script was overwritten")
	}
}

func TestInvokeWithoutModelReturnsSetupGuidance(t *testing.T) {
	// Point at an interpreter that cannot exist: if the invoker wrongly
	// spawned a process the result would be the process-failure text, not
	// the setup instructions.
	l, err := NewLocal(LocalConfig{WorkDir: t.TempDir(), Python: "/nonexistent/python3"})
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}

	res, err := l.Invoke(context.Background(), Request{Prompt: "hi", Language: "en"})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if res.Model != setupRequiredModel {
		t.Errorf("model = %q, want %q", res.Model, setupRequiredModel)
	}
	if !strings.Contains(res.Text, LocalModelID) {
		t.Errorf("setup text missing model id: %q", res.Text)
	}
	if !strings.Contains(res.Text, "pip install openvino-genai") {
		t.Errorf("setup text missing install command: %q", res.Text)
	}
}

func installFakeModel(t *testing.T, l *Local) {
	t.Helper()
	if err := os.MkdirAll(filepath.Join(l.workDir, "models", localModelDir), 0o755); err != nil {
		t.Fatal(err)
	}
}

func installFakeDriver(t *testing.T, l *Local, name, script string) {
	t.Helper()
	path := filepath.Join(l.workDir, "models", name)
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
}

func TestInvokeParsesDriverOutput(t *testing.T) {
	l, err := NewLocal(LocalConfig{WorkDir: t.TempDir(), Python: "sh"})
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	installFakeModel(t, l)
	installFakeDriver(t, l, "qwen_inference.py", "echo '{\"text\":\"local answer\",\"model\":\"qwen2.5-7b-int4\"}'\n")

	res, err := l.Invoke(context.Background(), Request{Prompt: "hi", Language: "en"})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if res.Text != "local answer" {
		t.Errorf("text = %q", res.Text)
	}
	if res.Model != "qwen2.5-7b-int4" {
		t.Errorf("model = %q", res.Model)
	}
}

// captureLogs swaps the default logger for one writing into the returned
// buffer for the duration of the test.
func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return &buf
}

func TestInvokeProcessFailureDegrades(t *testing.T) {
	logs := captureLogs(t)

	l, err := NewLocal(LocalConfig{WorkDir: t.TempDir(), Python: "sh"})
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	installFakeModel(t, l)
	installFakeDriver(t, l, "qwen_inference.py", "echo 'pipeline exploded' >&2\nexit 1\n")

	res, err := l.Invoke(context.Background(), Request{Prompt: "my question", Language: "en"})
	if err != nil {
		t.Fatalf("Invoke must not fail: %v", err)
	}
	if res.Model != localModelName {
		t.Errorf("model = %q", res.Model)
	}
	if !strings.Contains(res.Text, "my question") {
		t.Errorf("degraded text should echo the prompt: %q", res.Text)
	}
	if !strings.Contains(logs.String(), "pipeline exploded") {
		t.Errorf("stderr diagnostic not logged: %q", logs.String())
	}
	if !strings.Contains(logs.String(), "exitCode=1") {
		t.Errorf("exit code not logged: %q", logs.String())
	}
}

func TestAnalyzeImageFailureLogsDiagnostic(t *testing.T) {
	logs := captureLogs(t)

	l, err := NewLocal(LocalConfig{WorkDir: t.TempDir(), Python: "sh"})
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	installFakeModel(t, l)
	installFakeDriver(t, l, "image_inference.py", "echo '{\"error\":\"no vision pipeline\"}'\nexit 1\n")

	res, err := l.AnalyzeImage(context.Background(), VisionRequest{
		ImageDataURL: "data:image/jpeg;base64,aGVsbG8=",
		Question:     "q",
		Language:     "en",
	})
	if err != nil {
		t.Fatalf("AnalyzeImage must not fail: %v", err)
	}
	if res.Model != localModelName {
		t.Errorf("model = %q", res.Model)
	}
	if !strings.Contains(logs.String(), "local image analysis failed") {
		t.Errorf("diagnostic not logged: %q", logs.String())
	}
}

func TestInvokeUnparseableOutputDegrades(t *testing.T) {
	l, err := NewLocal(LocalConfig{WorkDir: t.TempDir(), Python: "sh"})
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	installFakeModel(t, l)
	installFakeDriver(t, l, "qwen_inference.py", "echo 'not json at all'\n")

	res, err := l.Invoke(context.Background(), Request{Prompt: "my question", Language: "en"})
	if err != nil {
		t.Fatalf("Invoke must not fail: %v", err)
	}
	if res.Text == "" {
		t.Error("degraded result must carry text")
	}
}

func TestQwenDriverChatTemplateAndSampling(t *testing.T) {
	driver := string(qwenDriver)
	wants := []string{
		// Role-tagged chat template with end-of-turn stripping.
		"<|im_start|>system",
		"<|im_start|>user",
		"<|im_start|>assistant",
		"<|im_end|>",
		// Lazy weight download when the directory is missing.
		"snapshot_download",
		LocalModelID,
		// Fixed sampling configuration.
		"top_p = 0.9",
		"top_k = 50",
		"repetition_penalty = 1.1",
		"do_sample = True",
	}
	for _, want := range wants {
		if !strings.Contains(driver, want) {
			t.Errorf("driver missing %q", want)
		}
	}
}

func TestAnalyzeImageWithoutModelFallsBack(t *testing.T) {
	l := newTestLocal(t)
	res, err := l.AnalyzeImage(context.Background(), VisionRequest{
		ImageDataURL: "data:image/jpeg;base64,aGVsbG8=",
		Question:     "what is this?",
		Language:     "en",
	})
	if err != nil {
		t.Fatalf("AnalyzeImage: %v", err)
	}
	if res.Model != setupRequiredModel {
		t.Errorf("model = %q", res.Model)
	}
	if !strings.Contains(res.Description, "what is this?") {
		t.Errorf("fallback description should echo the question: %q", res.Description)
	}
}

func TestAnalyzeImageCleansUpTempFile(t *testing.T) {
	l, err := NewLocal(LocalConfig{WorkDir: t.TempDir(), Python: "sh"})
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	installFakeModel(t, l)
	installFakeDriver(t, l, "image_inference.py", "echo '{\"description\":\"a photo\",\"answer\":\"yes\"}'\n")

	res, err := l.AnalyzeImage(context.Background(), VisionRequest{
		ImageDataURL: "data:image/jpeg;base64,aGVsbG8=",
		Question:     "q",
		Language:     "en",
	})
	if err != nil {
		t.Fatalf("AnalyzeImage: %v", err)
	}
	if res.Answer != "yes" {
		t.Errorf("answer = %q", res.Answer)
	}

	entries, err := os.ReadDir(filepath.Join(l.workDir, "temp"))
	if err != nil {
		t.Fatalf("read temp dir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("temp dir should be empty, found %d entries", len(entries))
	}
}
