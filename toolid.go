package llmrt

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"
)

const (
	historyPrefix   = "hist_tool_"
	openAIPrefix    = "call_"
	anthropicPrefix = "toolu_"

	minSanitizedIDLen = 6
)

// ToHistoryID converts a wire-form tool-call ID to canonical history form.
// call_X and toolu_X both map to hist_tool_X; hist_tool_X is left alone; any
// other shape is treated as opaque and wrapped as hist_tool_<raw>.
func ToHistoryID(id string) string {
	switch {
	case strings.HasPrefix(id, historyPrefix):
		return id
	case strings.HasPrefix(id, openAIPrefix):
		return historyPrefix + strings.TrimPrefix(id, openAIPrefix)
	case strings.HasPrefix(id, anthropicPrefix):
		return historyPrefix + strings.TrimPrefix(id, anthropicPrefix)
	default:
		return historyPrefix + id
	}
}

// ToOpenAIID converts a canonical or wire-form ID to OpenAI's call_* form.
// It is deterministic and idempotent for a given input within one process.
func ToOpenAIID(id string) string {
	return rewriteID(id, openAIPrefix)
}

// ToAnthropicID converts a canonical or wire-form ID to Anthropic's toolu_*
// form. Deterministic and idempotent for a given input within one process.
func ToAnthropicID(id string) string {
	return rewriteID(id, anthropicPrefix)
}

func rewriteID(id, targetPrefix string) string {
	suffix := stripKnownPrefix(id)
	suffix = sanitizeSuffix(suffix)
	if suffix == "" {
		suffix = derivedSuffix(id)
	}
	return targetPrefix + suffix
}

func stripKnownPrefix(id string) string {
	switch {
	case strings.HasPrefix(id, historyPrefix):
		return strings.TrimPrefix(id, historyPrefix)
	case strings.HasPrefix(id, openAIPrefix):
		return strings.TrimPrefix(id, openAIPrefix)
	case strings.HasPrefix(id, anthropicPrefix):
		return strings.TrimPrefix(id, anthropicPrefix)
	default:
		return id
	}
}

// sanitizeSuffix strips every character outside [A-Za-z0-9_].
func sanitizeSuffix(suffix string) string {
	var b strings.Builder
	b.Grow(len(suffix))
	for _, r := range suffix {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// derivedSuffix produces a deterministic-per-input suffix of at least
// minSanitizedIDLen characters, used when sanitization yields an empty
// string (e.g. an ID made entirely of punctuation).
func derivedSuffix(original string) string {
	sum := sha1.Sum([]byte(original))
	hexDigest := hex.EncodeToString(sum[:])
	if len(hexDigest) < minSanitizedIDLen {
		return hexDigest
	}
	return hexDigest[:minSanitizedIDLen]
}
