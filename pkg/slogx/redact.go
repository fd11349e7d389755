package slogx

import (
	"log/slog"
	"strings"
)

// Redacted replaces the value of any secret-bearing attribute.
const Redacted = "[REDACTED]"

var sensitiveKeys = []string{
	"password",
	"token",
	"secret",
	"authorization",
	"api_key",
	"pepper",
	"master_key",
}

// Redact is a slog ReplaceAttr hook. Attributes whose key contains one of the
// sensitive names are replaced, at any group depth.
func Redact(_ []string, a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindGroup {
		return a
	}
	if IsSensitive(a.Key) {
		return slog.String(a.Key, Redacted)
	}
	return a
}

// IsSensitive reports whether an attribute key names secret material.
func IsSensitive(key string) bool {
	key = strings.ToLower(key)
	for _, s := range sensitiveKeys {
		if strings.Contains(key, s) {
			return true
		}
	}
	return false
}
