package llm

import (
	"encoding/json"
	"errors"
	"regexp"
)

// ErrNoJSON is returned when a reply contains no parsable JSON payload.
var ErrNoJSON = errors.New("no JSON payload in analyzer reply")

// Greedy so nested brackets stay inside the match; models often wrap JSON in prose or fences.
var (
	arrayPattern  = regexp.MustCompile(`(?s)\[.*\]`)
	objectPattern = regexp.MustCompile(`(?s)\{.*\}`)
)

// ExtractJSONArray returns the outermost bracketed span of raw if it is valid JSON.
func ExtractJSONArray(raw string) (json.RawMessage, error) {
	return extract(arrayPattern, raw)
}

// ExtractJSONObject returns the outermost braced span of raw if it is valid JSON.
func ExtractJSONObject(raw string) (json.RawMessage, error) {
	return extract(objectPattern, raw)
}

func extract(pattern *regexp.Regexp, raw string) (json.RawMessage, error) {
	match := pattern.FindString(raw)
	if match == "" || !json.Valid([]byte(match)) {
		return nil, ErrNoJSON
	}
	return json.RawMessage(match), nil
}
