package derive

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/tildaslashalef/prtwin/internal/changeset"
)

// systemPrompt frames the model as a changeset analyst
const systemPrompt = `You are an expert code reviewer comparing a reference pull request against a stated intent.
You identify the concrete, minimal set of differences between what the reference changes do and what the intent asks for.
You respond with valid JSON only, matching the requested schema exactly. No prose before or after the JSON.`

// promptTemplate renders the reference changeset and intent into the
// derivation prompt
const promptTemplate = `Analyze the reference changeset below and derive the differences needed to satisfy the intent.

## Intent

{{ .Intent }}

## Reference changeset

Source: {{ .Ref }}
{{- if .Title }}
Title: {{ .Title }}
{{- end }}

{{ range .Files -}}
### {{ .Path }} ({{ .Kind }}{{ if .OldPath }}, was {{ .OldPath }}{{ end }})
{{ if .Summarized -}}
(large file: {{ .Added }} lines added, {{ .Removed }} lines removed; hunks omitted)
{{ else -}}
{{ range .Hunks -}}
#### hunk {{ .Index }} (old lines {{ .OldStart }}-{{ .OldEnd }})
old:
` + "```" + `
{{ .OldText }}
` + "```" + `
new:
` + "```" + `
{{ .NewText }}
` + "```" + `
{{ end -}}
{{ end }}
{{ end -}}

## Output format

Return a JSON object with this exact shape:

{
  "differences": [
    {
      "description": "human-readable summary of one difference",
      "category": "constant-value | identifier-rename | config-value | structural | other",
      "path": "file path from the changeset above",
      "hunk": 0,
      "instruction": "the exact target value or precise change instruction"
    }
  ]
}

Rules:
- "path" must name a file listed above and "hunk" must be one of its hunk indexes.
- "instruction" must be concrete enough to apply without further context.
- Derive only differences implied by the intent; do not invent unrelated changes.
- Return {"differences": []} when the intent is already satisfied.`

type promptHunk struct {
	Index    int
	OldStart int
	OldEnd   int
	OldText  string
	NewText  string
}

type promptFile struct {
	Path       string
	OldPath    string
	Kind       string
	Summarized bool
	Added      int
	Removed    int
	Hunks      []promptHunk
}

type promptData struct {
	Ref    string
	Title  string
	Intent string
	Files  []promptFile
}

var derivePrompt = template.Must(template.New("derive").Parse(promptTemplate))

// buildPrompt renders the derivation prompt. Files whose hunk text
// exceeds sizeCutoff bytes are summarized by line counts instead of
// inlined, keeping the prompt inside the model's context window.
func buildPrompt(cs *changeset.ChangeSet, intent string, sizeCutoff int) (string, error) {
	data := promptData{
		Ref:    cs.Ref,
		Title:  cs.Title,
		Intent: intent,
	}

	for _, fe := range cs.Edits {
		pf := promptFile{
			Path:    fe.Path,
			OldPath: fe.OldPath,
			Kind:    string(fe.Kind),
		}

		size := 0
		for _, h := range fe.Hunks {
			size += len(h.OldText) + len(h.NewText)
		}

		if sizeCutoff > 0 && size > sizeCutoff {
			pf.Summarized = true
			for _, h := range fe.Hunks {
				pf.Added += changeset.CountLines(h.NewText)
				pf.Removed += changeset.CountLines(h.OldText)
			}
		} else {
			for i, h := range fe.Hunks {
				pf.Hunks = append(pf.Hunks, promptHunk{
					Index:    i,
					OldStart: h.OldStart,
					OldEnd:   h.OldEnd(),
					OldText:  strings.TrimRight(h.OldText, "\n"),
					NewText:  strings.TrimRight(h.NewText, "\n"),
				})
			}
		}

		data.Files = append(data.Files, pf)
	}

	var sb strings.Builder
	if err := derivePrompt.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("rendering derivation prompt: %w", err)
	}

	return sb.String(), nil
}
