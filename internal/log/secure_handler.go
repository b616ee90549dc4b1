package log

import (
	"context"
	"io"
	"log/slog"
	"regexp"
	"strings"
)

// sensitiveKeys contains attribute keys that are always masked.
var sensitiveKeys = map[string]bool{
	// Personal data found in listings
	"phone":     true,
	"telephone": true,
	"tel":       true,
	"mobile":    true,
	"email":     true,
	"e-mail":    true,

	// Browser and network
	"cookie":              true,
	"set-cookie":          true,
	"authorization":       true,
	"proxy":               true,
	"proxy-authorization": true,

	// Credentials
	"password":    true,
	"passwd":      true,
	"secret":      true,
	"token":       true,
	"api_key":     true,
	"apikey":      true,
	"credential":  true,
	"credentials": true,
}

// sensitiveKeywords mark a key as sensitive when they appear anywhere in it,
// e.g. "business_phone" or "proxy_url".
var sensitiveKeywords = []string{
	"phone", "email", "password", "passwd", "secret",
	"token", "credential", "cookie", "proxy",
}

// sensitivePatterns contains patterns of values that are masked whatever
// their key.
var sensitivePatterns = []*regexp.Regexp{
	// E-mail addresses
	regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[A-Za-z]{2,}$`),

	// Bearer tokens
	regexp.MustCompile(`(?i)^bearer\s+.+`),
}

// phoneCharset and datePattern tell phone numbers such as
// "+972 3-555-0100" or "(555) 010-2000" apart from dates.
var (
	phoneCharset = regexp.MustCompile(`^\+?[\d\s().-]+$`)
	datePattern  = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
)

// userinfoPattern finds URLs that carry credentials.
var userinfoPattern = regexp.MustCompile(`[A-Za-z][A-Za-z0-9+.-]*://[^/\s@]+@`)

// MaskValue is the string used to replace sensitive values.
const MaskValue = "***REDACTED***"

// SecureHandler wraps an slog.Handler to mask personal and secret data.
// It works with any underlying handler (text, JSON, etc.).
type SecureHandler struct {
	// handler is the underlying slog handler that receives sanitized records.
	handler slog.Handler

	// allowed holds lower-cased keys that are never masked.
	allowed map[string]bool
}

// HandlerOption configures a SecureHandler.
type HandlerOption func(*SecureHandler)

// WithAllowedKeys disables masking for the given attribute keys.
func WithAllowedKeys(keys ...string) HandlerOption {
	return func(h *SecureHandler) {
		for _, k := range keys {
			h.allowed[strings.ToLower(k)] = true
		}
	}
}

// NewSecureHandler creates a new SecureHandler wrapping the given handler.
// If handler is nil, the returned SecureHandler will use slog.Default().Handler().
func NewSecureHandler(handler slog.Handler, opts ...HandlerOption) *SecureHandler {
	if handler == nil {
		handler = slog.Default().Handler()
	}
	h := &SecureHandler{handler: handler, allowed: make(map[string]bool)}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Enabled reports whether the handler handles records at the given level.
func (h *SecureHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// Handle sanitizes the record's attributes and passes it to the underlying handler.
func (h *SecureHandler) Handle(ctx context.Context, r slog.Record) error {
	sanitized := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	r.Attrs(func(a slog.Attr) bool {
		sanitized.AddAttrs(h.sanitizeAttr(a))
		return true
	})
	return h.handler.Handle(ctx, sanitized)
}

// WithAttrs returns a new handler with the given attributes added.
// Attributes are sanitized before being added.
func (h *SecureHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	sanitizedAttrs := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		sanitizedAttrs[i] = h.sanitizeAttr(a)
	}
	return &SecureHandler{handler: h.handler.WithAttrs(sanitizedAttrs), allowed: h.allowed}
}

// WithGroup returns a new handler with the given group name.
func (h *SecureHandler) WithGroup(name string) slog.Handler {
	return &SecureHandler{handler: h.handler.WithGroup(name), allowed: h.allowed}
}

// sanitizeAttr sanitizes a single attribute, recursively handling groups.
func (h *SecureHandler) sanitizeAttr(a slog.Attr) slog.Attr {
	a.Value = a.Value.Resolve()

	if a.Value.Kind() == slog.KindGroup {
		attrs := a.Value.Group()
		sanitizedAttrs := make([]slog.Attr, len(attrs))
		for i, groupAttr := range attrs {
			sanitizedAttrs[i] = h.sanitizeAttr(groupAttr)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(sanitizedAttrs...)}
	}

	keyLower := strings.ToLower(a.Key)
	if h.allowed[keyLower] {
		return a
	}
	if sensitiveKeys[keyLower] || containsSensitiveKeyword(keyLower) {
		return slog.String(a.Key, MaskValue)
	}

	if a.Value.Kind() == slog.KindString {
		strVal := a.Value.String()
		if isSensitiveValue(strVal) {
			return slog.String(a.Key, MaskValue)
		}
		if masked, ok := maskUserinfo(strVal); ok {
			return slog.String(a.Key, masked)
		}
	}

	return a
}

// containsSensitiveKeyword checks if the key contains sensitive keywords.
func containsSensitiveKeyword(key string) bool {
	for _, keyword := range sensitiveKeywords {
		if strings.Contains(key, keyword) {
			return true
		}
	}
	return false
}

// isSensitiveValue checks if a value matches sensitive patterns.
func isSensitiveValue(value string) bool {
	v := strings.TrimSpace(value)
	if isPhoneLike(v) {
		return true
	}
	for _, pattern := range sensitivePatterns {
		if pattern.MatchString(v) {
			return true
		}
	}
	return false
}

// isPhoneLike reports whether v has the shape and digit count of a phone
// number.
func isPhoneLike(v string) bool {
	if !phoneCharset.MatchString(v) || datePattern.MatchString(v) {
		return false
	}
	digits := 0
	for _, c := range v {
		if c >= '0' && c <= '9' {
			digits++
		}
	}
	return digits >= 7 && digits <= 15
}

// maskUserinfo replaces the credentials of URLs in value.
// It reports whether anything was replaced.
func maskUserinfo(value string) (string, bool) {
	if !userinfoPattern.MatchString(value) {
		return value, false
	}
	return userinfoPattern.ReplaceAllStringFunc(value, func(m string) string {
		scheme, _, _ := strings.Cut(m, "://")
		return scheme + "://" + MaskValue + "@"
	}), true
}

// NewSecureLogger creates a new text slog.Logger with secure handling.
// verbose selects the Debug level; otherwise only warnings and errors are
// logged.
func NewSecureLogger(w io.Writer, verbose bool, opts ...HandlerOption) *slog.Logger {
	return slog.New(NewSecureHandler(slog.NewTextHandler(w, handlerOptions(verbose)), opts...))
}

// NewSecureJSONLogger creates a new slog.Logger with secure handling
// that outputs JSON format. Useful for structured log aggregation.
func NewSecureJSONLogger(w io.Writer, verbose bool, opts ...HandlerOption) *slog.Logger {
	return slog.New(NewSecureHandler(slog.NewJSONHandler(w, handlerOptions(verbose)), opts...))
}

// New returns NewSecureJSONLogger when format is "json" and
// NewSecureLogger otherwise.
func New(w io.Writer, format string, verbose bool, opts ...HandlerOption) *slog.Logger {
	if strings.EqualFold(format, "json") {
		return NewSecureJSONLogger(w, verbose, opts...)
	}
	return NewSecureLogger(w, verbose, opts...)
}

func handlerOptions(verbose bool) *slog.HandlerOptions {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return &slog.HandlerOptions{Level: level}
}
