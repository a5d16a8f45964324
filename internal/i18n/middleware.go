package i18n

import "net/http"

// Middleware injects a per-request localizer into the request context.
// The language comes from the X-Language header when present and supported,
// otherwise the server default is used.
func Middleware(defaultLang string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			lang := r.Header.Get("X-Language")
			if !IsSupported(lang) {
				lang = defaultLang
			}
			ctx := WithLocalizer(r.Context(), NewLocalizer(lang))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
