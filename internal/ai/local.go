package ai

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/eduintel/eduintel/internal/i18n"
	"github.com/eduintel/eduintel/internal/imaging"
)

// Canonical identifier of the locally installable model.
const LocalModelID = "OpenVINO/Qwen2.5-7B-Instruct-int4-ov"

// localModelDir is the directory name the converted model lives under.
const localModelDir = "Qwen2.5-7B-Instruct-int4-ov"

const (
	localModelName     = "qwen2.5-7b-int4"
	setupRequiredModel = "qwen-setup-required"
)

//go:embed driver/qwen_inference.py
var qwenDriver []byte

//go:embed driver/image_inference.py
var imageDriver []byte

// LocalConfig configures the local model invoker.
type LocalConfig struct {
	// WorkDir is the directory the model, driver scripts and temp files
	// live under.
	WorkDir string

	// Python is the interpreter binary used to spawn the drivers.
	Python string
}

// Local invokes the on-disk Qwen model through a short-lived Python
// process. It deliberately never returns an error: when the model is not
// installed or the process fails, the result carries guidance text so the
// feature keeps working in a degraded mode.
type Local struct {
	workDir string
	python  string
}

// NewLocal creates the local invoker and materializes the driver scripts
// under <workDir>/models if they are not already present.
func NewLocal(cfg LocalConfig) (*Local, error) {
	python := cfg.Python
	if python == "" {
		python = "python3"
	}
	l := &Local{workDir: cfg.WorkDir, python: python}

	modelsDir := filepath.Join(cfg.WorkDir, "models")
	if err := os.MkdirAll(modelsDir, 0o755); err != nil {
		return nil, fmt.Errorf("create models dir: %w", err)
	}
	for name, content := range map[string][]byte{
		"qwen_inference.py":  qwenDriver,
		"image_inference.py": imageDriver,
	} {
		path := filepath.Join(modelsDir, name)
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			if err := os.WriteFile(path, content, 0o755); err != nil {
				return nil, fmt.Errorf("write driver %s: %w", name, err)
			}
		}
	}
	return l, nil
}

// ModelID returns the local model name.
func (l *Local) ModelID() string { return localModelName }

// findModel returns the first existing candidate model directory.
func (l *Local) findModel() (string, bool) {
	candidates := []string{
		filepath.Join(l.workDir, "models", localModelDir),
		filepath.Join(l.workDir, localModelDir),
	}
	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && info.IsDir() {
			return c, true
		}
	}
	return "", false
}

// setupInstructions is the degraded-mode reply shown when the model
// directory is absent. No process is spawned in that case.
func (l *Local) setupInstructions() string {
	target := filepath.Join(l.workDir, "models", localModelDir)
	return fmt.Sprintf(`The local Qwen model is not installed yet. To set it up:

1. Install the runtime:
   pip install openvino-genai huggingface_hub

2. Download the model:
   huggingface-cli download %s --local-dir %s

3. Retry your request. No data leaves this machine once the local model is running.`, LocalModelID, target)
}

type driverArgs struct {
	Prompt       string `json:"prompt"`
	SystemPrompt string `json:"systemPrompt"`
	Language     string `json:"language"`
	ModelPath    string `json:"modelPath"`
}

type driverReply struct {
	Text  string `json:"text"`
	Model string `json:"model"`
	Error string `json:"error"`
}

// Invoke runs one generation through the driver process. The returned
// result is always usable; degraded modes carry guidance text instead of
// model output.
func (l *Local) Invoke(ctx context.Context, req Request) (*Result, error) {
	lctx := i18n.WithLocalizer(ctx, i18n.NewLocalizer(req.Language))

	modelPath, ok := l.findModel()
	if !ok {
		return &Result{Text: l.setupInstructions(), Model: setupRequiredModel}, nil
	}

	args, err := json.Marshal(driverArgs{
		Prompt:       req.Prompt,
		SystemPrompt: req.systemMessage(),
		Language:     req.Language,
		ModelPath:    modelPath,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal driver args: %w", err)
	}

	driverPath := filepath.Join(l.workDir, "models", "qwen_inference.py")
	stdout, runErr := l.run(ctx, driverPath, string(args))

	var reply driverReply
	parseErr := json.Unmarshal(bytes.TrimSpace(stdout), &reply)

	switch {
	case runErr != nil, parseErr == nil && reply.Error != "":
		logDriverFailure("local generation failed", runErr, reply.Error)
		return &Result{
			Text:  i18n.Td(lctx, "LocalProcessFailure", map[string]any{"Prompt": req.Prompt}),
			Model: localModelName,
		}, nil
	case parseErr != nil || reply.Text == "":
		slog.Warn("local driver produced unusable output", "model", localModelName, "parseError", parseErr)
		return &Result{
			Text:  i18n.Td(lctx, "LocalAck", map[string]any{"Prompt": req.Prompt}),
			Model: localModelName,
		}, nil
	}

	model := reply.Model
	if model == "" {
		model = localModelName
	}
	return &Result{Text: reply.Text, Model: model}, nil
}

// AnalyzeImage writes the uploaded image to a temp file, runs the vision
// driver against it and removes the file afterwards regardless of outcome.
func (l *Local) AnalyzeImage(ctx context.Context, req VisionRequest) (*VisionResult, error) {
	lctx := i18n.WithLocalizer(ctx, i18n.NewLocalizer(req.Language))

	fallback := &VisionResult{
		Description: i18n.Td(lctx, "LocalImageFallbackDescription", map[string]any{"Question": req.Question}),
		Answer:      i18n.T(lctx, "LocalImageFallbackAnswer"),
		Model:       setupRequiredModel,
	}

	modelPath, ok := l.findModel()
	if !ok {
		return fallback, nil
	}

	_, imgData, err := imaging.DecodeDataURL(req.ImageDataURL)
	if err != nil {
		return nil, &ErrParse{Err: fmt.Errorf("decode image data url: %w", err)}
	}

	tempDir := filepath.Join(l.workDir, "temp")
	if err := os.MkdirAll(tempDir, 0o755); err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	imgPath := filepath.Join(tempDir, "image_"+uuid.NewString()+".jpg")
	if err := os.WriteFile(imgPath, imgData, 0o644); err != nil {
		return nil, fmt.Errorf("write temp image: %w", err)
	}
	defer os.Remove(imgPath)

	driverPath := filepath.Join(l.workDir, "models", "image_inference.py")
	stdout, runErr := l.run(ctx, driverPath, imgPath, req.Question, modelPath)

	var reply struct {
		Description string `json:"description"`
		Answer      string `json:"answer"`
		Error       string `json:"error"`
	}
	parseErr := json.Unmarshal(bytes.TrimSpace(stdout), &reply)
	if runErr != nil || parseErr != nil || reply.Error != "" || reply.Answer == "" {
		logDriverFailure("local image analysis failed", runErr, reply.Error)
		fallback.Model = localModelName
		return fallback, nil
	}

	return &VisionResult{
		Description: reply.Description,
		Answer:      reply.Answer,
		Model:       localModelName,
	}, nil
}

// logDriverFailure records the driver diagnostic for operators. The caller
// still returns degraded text to the user; this is the only place the exit
// code and captured stderr surface.
func logDriverFailure(msg string, runErr error, driverErr string) {
	attrs := []any{"model", localModelName}
	var procErr *ErrProcess
	switch {
	case errors.As(runErr, &procErr):
		attrs = append(attrs, "exitCode", procErr.ExitCode, "stderr", procErr.Stderr)
	case runErr != nil:
		attrs = append(attrs, "error", runErr)
	}
	if driverErr != "" {
		attrs = append(attrs, "driverError", driverErr)
	}
	slog.Error(msg, attrs...)
}

// run spawns the interpreter on a driver script and returns its stdout.
func (l *Local) run(ctx context.Context, script string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, l.python, append([]string{script}, args...)...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		return stdout.Bytes(), &ErrProcess{ExitCode: exitCode, Stderr: stderr.String(), Err: err}
	}
	return stdout.Bytes(), nil
}
