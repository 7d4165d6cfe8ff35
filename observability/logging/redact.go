package logging

import (
	"log/slog"
	"strings"
)

// RedactedValue replaces sensitive fields in logs.
const RedactedValue = "[REDACTED]"

var redactionAllowlist = map[string]struct{}{
	"service":    {},
	"env":        {},
	"message":    {},
	"severity":   {},
	"timestamp":  {},
	"error":      {},
	"kind":       {},
	"op":         {},
	"asset":      {},
	"caller":     {},
	"route":      {},
	"status":     {},
	"request_id": {},
}

// sensitiveKeys are masked by every logger built by Setup, whatever the
// call site passes.
var sensitiveKeys = map[string]struct{}{
	"authorization": {},
	"token":         {},
	"secret":        {},
	"password":      {},
	"passphrase":    {},
}

// IsAllowlisted reports whether the key is exempt from redaction.
func IsAllowlisted(key string) bool {
	_, ok := redactionAllowlist[normalizeKey(key)]
	return ok
}

// IsSensitive reports whether values logged under key are always masked.
func IsSensitive(key string) bool {
	_, ok := sensitiveKeys[normalizeKey(key)]
	return ok
}

// MaskField returns an attribute that hides value unless key is allowlisted.
// Empty values pass through.
func MaskField(key, value string) slog.Attr {
	if strings.TrimSpace(value) == "" || IsAllowlisted(key) {
		return slog.String(key, value)
	}
	return slog.String(key, RedactedValue)
}

// redactAttr masks string values recorded under sensitive keys.
func redactAttr(attr slog.Attr) slog.Attr {
	if !IsSensitive(attr.Key) {
		return attr
	}
	if attr.Value.Kind() == slog.KindString {
		return MaskField(attr.Key, attr.Value.String())
	}
	return slog.String(attr.Key, RedactedValue)
}

func normalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}
