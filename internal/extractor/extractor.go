// Package extractor provides utilities for extracting structured
// payloads from LLM responses.
package extractor

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/tildaslashalef/prtwin/internal/loggy"
)

var (
	codeBlockRegex = regexp.MustCompile("```(?:[a-zA-Z0-9_+-]*)\n?([\\s\\S]*?)```")
)

// JSONExtractor extracts structured data from LLM responses
type JSONExtractor struct {
	logger *loggy.Logger
}

// NewJSONExtractor creates a new JSONExtractor
func NewJSONExtractor(logger *loggy.Logger) *JSONExtractor {
	return &JSONExtractor{
		logger: logger,
	}
}

// ExtractObject finds the JSON object in the content. It prefers fenced
// code blocks and falls back to a brace-depth scan of the raw content.
func (e *JSONExtractor) ExtractObject(content string) (string, error) {
	// Try fenced code blocks first
	for _, match := range codeBlockRegex.FindAllStringSubmatch(content, -1) {
		if len(match) > 1 {
			potential := strings.TrimSpace(match[1])
			if strings.HasPrefix(potential, "{") && strings.HasSuffix(potential, "}") {
				return potential, nil
			}
		}
	}

	// Fall back to the first balanced object in the raw content
	startIdx := strings.Index(content, "{")
	if startIdx >= 0 {
		depth := 0
		inString := false
		escaped := false
		for i, char := range content[startIdx:] {
			if escaped {
				escaped = false
				continue
			}
			switch char {
			case '\\':
				escaped = inString
			case '"':
				inString = !inString
			case '{':
				if !inString {
					depth++
				}
			case '}':
				if !inString {
					depth--
					if depth == 0 {
						return content[startIdx : startIdx+i+1], nil
					}
				}
			}
		}
	}

	e.logger.Debug("No JSON object found in LLM response", "content_length", len(content))
	return "", fmt.Errorf("no JSON object found in content")
}

// ExtractCodeBlock returns the contents of the first fenced code block,
// or the trimmed raw content when no fence is present. LLMs asked for
// plain text still wrap it in fences often enough that both shapes must
// be accepted.
func ExtractCodeBlock(content string) string {
	if match := codeBlockRegex.FindStringSubmatch(content); len(match) > 1 {
		return strings.TrimRight(strings.TrimLeft(match[1], "\n"), " \t")
	}
	return strings.TrimSpace(content)
}
