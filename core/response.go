package core

import (
	"encoding/json"
	"regexp"
	"strings"
)

// ParseKind tags how a raw model response was interpreted.
type ParseKind int

const (
	// ParseStructured means the response carried the expected JSON
	// envelope with a user-facing reply and reasoning.
	ParseStructured ParseKind = iota

	// ParseFallback means the envelope was absent or malformed and the
	// raw text is used verbatim as the user reply.
	ParseFallback
)

// ParsedResponse is the tagged result of interpreting a raw model
// response. The parse is a deterministic attempt, never exception
// driven: a malformed envelope yields a Fallback result, not an error.
type ParsedResponse struct {
	Kind      ParseKind
	UserText  string
	Reasoning string
}

var fencedJSON = regexp.MustCompile("(?s)```json\\s*(.*?)```")

// ParseModelResponse interprets raw model output. It first looks for a
// JSON envelope inside a ```json fenced block, then tries the raw text
// as JSON, and finally falls back to treating the whole response as
// the user reply.
func ParseModelResponse(raw string) ParsedResponse {
	candidate := strings.TrimSpace(raw)
	if m := fencedJSON.FindStringSubmatch(raw); m != nil {
		candidate = strings.TrimSpace(m[1])
	}

	var envelope struct {
		ResponseToUser *string `json:"response_to_user"`
		Reasoning      string  `json:"reasoning"`
	}
	if err := json.Unmarshal([]byte(candidate), &envelope); err == nil && envelope.ResponseToUser != nil {
		reasoning := envelope.Reasoning
		if reasoning == "" {
			reasoning = "No reasoning provided."
		}
		return ParsedResponse{
			Kind:      ParseStructured,
			UserText:  *envelope.ResponseToUser,
			Reasoning: reasoning,
		}
	}

	return ParsedResponse{
		Kind:     ParseFallback,
		UserText: strings.TrimSpace(raw),
	}
}
