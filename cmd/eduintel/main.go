package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"

	"github.com/eduintel/eduintel/internal/ai"
	"github.com/eduintel/eduintel/internal/handler"
	appI18n "github.com/eduintel/eduintel/internal/i18n"
	"github.com/eduintel/eduintel/internal/imaging"
	"github.com/eduintel/eduintel/internal/service"
	"github.com/eduintel/eduintel/internal/store"
)

func main() {
	// Local development keeps the API key in a .env file; missing is fine.
	_ = godotenv.Load()

	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "eduintel",
		Short: "AI-powered educational assistant server",
	}

	serve := serveCmd()
	root.AddCommand(serve, exportCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `eduintel --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.String("db", "eduintel.db", "SQLite database path")
	f.String("workdir", ".", "Working directory for local model, drivers and temp files")
	f.StringP("lang", "l", "en", "Default language (en, es, fr, de, zh, hi, ar, pt, ru, ja)")
	f.String("python", "python3", "Python interpreter for the local model drivers")
	f.String("remote-url", "https://api.groq.com/openai/v1", "OpenAI-compatible API base URL")
	f.String("remote-key", "", "API key for the remote backend (or set EDUINTEL_REMOTE_KEY)")
	f.String("remote-model", "llama-3.3-70b-versatile", "Remote chat model")
	f.String("remote-vision-model", "meta-llama/llama-4-scout-17b-16e-instruct", "Remote vision model")
	f.Int("chat-max-tokens", 2000, "Token budget for conversational replies")
	f.Int("longform-max-tokens", 6000, "Token budget for structured generations")
	f.Int("vision-max-tokens", 1024, "Token budget for image analysis")
	f.Int("image-max-edge", 1920, "Longest allowed image edge in pixels")
	f.Int("image-quality", 85, "JPEG quality for re-encoded uploads")
	f.Int("image-threshold-mb", 20, "Image size in MB above which uploads are always re-encoded")
	f.String("admin-password", "", "Admin password for history reset (or set EDUINTEL_ADMIN_PASSWORD; empty disables)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the learning history as JSON",
		RunE:  runExport,
	}
	f := cmd.Flags()
	f.String("db", "eduintel.db", "SQLite database path")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	return cmd
}

func setupLogging(cmd *cobra.Command) {
	v := viperForCmd(cmd)

	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("EDUINTEL")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("eduintel")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/eduintel")
	v.AddConfigPath("/etc/eduintel")
	v.AddConfigPath("/data")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	remoteKey := v.GetString("remote-key")
	if remoteKey == "" {
		slog.Warn("no remote API key configured; remote generations will be rejected until EDUINTEL_REMOTE_KEY is set")
	}
	remote := ai.NewRemote(ai.RemoteConfig{
		BaseURL:     v.GetString("remote-url"),
		APIKey:      remoteKey,
		Model:       v.GetString("remote-model"),
		VisionModel: v.GetString("remote-vision-model"),
	})

	local, err := ai.NewLocal(ai.LocalConfig{
		WorkDir: v.GetString("workdir"),
		Python:  v.GetString("python"),
	})
	if err != nil {
		return fmt.Errorf("init local backend: %w", err)
	}

	selector := ai.NewSelector(ai.Backends{
		Local:        local,
		Remote:       remote,
		LocalVision:  local,
		RemoteVision: remote,
	})

	svc := service.New(selector, db, service.Config{
		ChatMaxTokens:     v.GetInt("chat-max-tokens"),
		LongformMaxTokens: v.GetInt("longform-max-tokens"),
		VisionMaxTokens:   v.GetInt("vision-max-tokens"),
		Imaging: imaging.Options{
			MaxEdge:        v.GetInt("image-max-edge"),
			Quality:        v.GetInt("image-quality"),
			ThresholdBytes: int64(v.GetInt("image-threshold-mb")) << 20,
		},
	})

	handlerCfg := handler.Config{DefaultLanguage: lang}
	if password := v.GetString("admin-password"); password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("hash admin password: %w", err)
		}
		handlerCfg.AdminPasswordHash = string(hash)
	}

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	handler.New(svc, handlerCfg).Routes(r)

	addr := v.GetString("addr")
	slog.Info("starting server",
		"addr", addr,
		"remote_url", v.GetString("remote-url"),
		"remote_model", v.GetString("remote-model"),
		"vision_model", v.GetString("remote-vision-model"),
		"workdir", v.GetString("workdir"),
		"lang", lang,
	)
	return http.ListenAndServe(addr, r)
}

func runExport(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	export, err := db.Export()
	if err != nil {
		return fmt.Errorf("export history: %w", err)
	}

	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}

	outPath := v.GetString("output")
	var w io.Writer
	if outPath == "" || outPath == "-" {
		w = os.Stdout
	} else {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	_, _ = fmt.Fprintln(w)

	return nil
}
