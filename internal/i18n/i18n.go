package i18n

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

var jsonUnmarshal = json.Unmarshal

//go:embed locales/*.json
var localeFS embed.FS

type ctxKey struct{}

var bundle *i18n.Bundle

// Supported is the closed set of UI languages. Requests carrying any other
// tag fall back to English.
var Supported = []string{"en", "es", "fr", "de", "zh", "hi", "ar", "pt", "ru", "ja"}

// directives are the per-language instructions appended to every system
// preamble so the model answers in the user's language.
var directives = map[string]string{
	"en": "Respond in English.",
	"es": "Responde en español.",
	"fr": "Répondez en français.",
	"de": "Antworten Sie auf Deutsch.",
	"zh": "请用中文回答。",
	"hi": "हिंदी में उत्तर दें।",
	"ar": "أجب باللغة العربية.",
	"pt": "Responda em português.",
	"ru": "Отвечайте на русском языке.",
	"ja": "日本語で答えてください。",
}

// IsSupported checks a language tag against the closed set.
func IsSupported(lang string) bool {
	_, ok := directives[lang]
	return ok
}

// Normalize returns lang if supported, otherwise "en".
func Normalize(lang string) string {
	if IsSupported(lang) {
		return lang
	}
	return "en"
}

// Directive returns the language instruction for a tag, defaulting to English.
func Directive(lang string) string {
	return directives[Normalize(lang)]
}

// Init loads the translation bundle with the given default language tag.
func Init(lang string) error {
	tag, err := language.Parse(Normalize(lang))
	if err != nil {
		return fmt.Errorf("parse language %q: %w", lang, err)
	}

	bundle = i18n.NewBundle(tag)
	bundle.RegisterUnmarshalFunc("json", jsonUnmarshal)

	entries, err := localeFS.ReadDir("locales")
	if err != nil {
		return fmt.Errorf("read locales dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		data, err := localeFS.ReadFile("locales/" + e.Name())
		if err != nil {
			return fmt.Errorf("read locale file %s: %w", e.Name(), err)
		}
		bundle.MustParseMessageFileBytes(data, e.Name())
		slog.Debug("loaded locale file", "file", e.Name())
	}

	return nil
}

// NewLocalizer creates a localizer for the given language.
func NewLocalizer(lang string) *i18n.Localizer {
	return i18n.NewLocalizer(bundle, Normalize(lang))
}

// WithLocalizer stores a localizer in the context.
func WithLocalizer(ctx context.Context, loc *i18n.Localizer) context.Context {
	return context.WithValue(ctx, ctxKey{}, loc)
}

// localizerFromCtx retrieves the localizer from context.
func localizerFromCtx(ctx context.Context) *i18n.Localizer {
	if loc, ok := ctx.Value(ctxKey{}).(*i18n.Localizer); ok {
		return loc
	}
	// Fallback: return English localizer.
	return i18n.NewLocalizer(bundle, "en")
}

// T translates a message by ID.
func T(ctx context.Context, msgID string) string {
	loc := localizerFromCtx(ctx)
	s, err := loc.Localize(&i18n.LocalizeConfig{MessageID: msgID})
	if err != nil {
		slog.Warn("missing translation", "id", msgID, "error", err)
		return msgID
	}
	return s
}

// Td translates a message by ID with template data.
func Td(ctx context.Context, msgID string, data map[string]any) string {
	loc := localizerFromCtx(ctx)
	s, err := loc.Localize(&i18n.LocalizeConfig{
		MessageID:    msgID,
		TemplateData: data,
	})
	if err != nil {
		slog.Warn("missing translation", "id", msgID, "error", err)
		return msgID
	}
	return s
}
