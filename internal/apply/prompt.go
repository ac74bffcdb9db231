package apply

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/go-enry/go-enry/v2"

	"github.com/tildaslashalef/prtwin/internal/changeset"
	"github.com/tildaslashalef/prtwin/internal/difference"
)

// synthesisSystemPrompt frames the model as a precise patch author
const synthesisSystemPrompt = `You are a precise code editor. You rewrite one region of a file edit to honor a confirmed change instruction.
You return only the rewritten region inside a single fenced code block. No explanation, no surrounding prose.
You change nothing beyond what the instruction requires.`

// synthesisPromptTemplate renders one hunk rewrite request
const synthesisPromptTemplate = `Rewrite the "current result" region below so it satisfies the instruction.

File: {{ .Path }}{{ if .Language }} ({{ .Language }}){{ end }}

## Difference

{{ .Description }}

Instruction: {{ .Instruction }}
Category: {{ .Category }}

## Original region (before the reference change)

` + "```" + `
{{ .OldText }}
` + "```" + `

## Current result (after the reference change)

` + "```" + `
{{ .NewText }}
` + "```" + `

Return the full replacement for the "current result" region, preserving every line the instruction does not touch, including indentation and blank lines.`

type synthesisData struct {
	Path        string
	Language    string
	Description string
	Instruction string
	Category    string
	OldText     string
	NewText     string
}

var synthesisPrompt = template.Must(template.New("synthesis").Parse(synthesisPromptTemplate))

// buildSynthesisPrompt renders the rewrite request for one difference
// against one hunk
func buildSynthesisPrompt(path string, hunk changeset.Hunk, d *difference.Difference) (string, error) {
	data := synthesisData{
		Path:        path,
		Language:    enry.GetLanguage(path, nil),
		Description: d.Description,
		Instruction: d.EffectiveInstruction(),
		Category:    string(d.Category),
		OldText:     strings.TrimRight(hunk.OldText, "\n"),
		NewText:     strings.TrimRight(hunk.NewText, "\n"),
	}

	var sb strings.Builder
	if err := synthesisPrompt.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("rendering synthesis prompt: %w", err)
	}

	return sb.String(), nil
}
