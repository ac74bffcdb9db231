// Package confirm implements the interactive confirmation flow: each
// proposed difference is presented for accept, reject, or edit.
package confirm

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/tildaslashalef/prtwin/internal/changeset"
	"github.com/tildaslashalef/prtwin/internal/difference"
	"github.com/tildaslashalef/prtwin/internal/pipeline"
)

// Interactive returns a confirmation callback that prompts for each
// pending difference with a full-screen terminal prompt. onFirst, if
// non-nil, runs once with the reference changeset before the first
// prompt is shown.
func Interactive(onFirst func(ref *changeset.ChangeSet)) pipeline.ConfirmFunc {
	return func(ctx context.Context, req pipeline.ConfirmRequest) (pipeline.Decision, error) {
		if err := ctx.Err(); err != nil {
			return pipeline.Decision{}, err
		}

		if req.Position == 1 && onFirst != nil {
			onFirst(req.Reference)
		}

		// Re-presented edits push the position past the derived count
		position := req.Position
		if position > req.Total {
			position = req.Total
		}
		label := fmt.Sprintf("difference %d of %d", position, req.Total)

		model := NewModel(req.Difference, hunkPreview(req.Reference, req.Difference), label)
		final, err := tea.NewProgram(model, tea.WithContext(ctx)).Run()
		if err != nil {
			return pipeline.Decision{}, fmt.Errorf("running confirmation prompt: %w", err)
		}

		m, ok := final.(Model)
		if !ok || m.Aborted() {
			return pipeline.Decision{}, pipeline.ErrCancelled
		}

		decision, decided := m.Decision()
		if !decided {
			return pipeline.Decision{}, pipeline.ErrCancelled
		}
		return decision, nil
	}
}

// AutoAccept returns a callback that accepts every difference without
// prompting, used for --yes runs
func AutoAccept() pipeline.ConfirmFunc {
	return func(ctx context.Context, req pipeline.ConfirmRequest) (pipeline.Decision, error) {
		if err := ctx.Err(); err != nil {
			return pipeline.Decision{}, err
		}
		return pipeline.Decision{Action: pipeline.ActionAccept}, nil
	}
}

// hunkPreview renders the first origin's hunk as a small +/- diff
func hunkPreview(ref *changeset.ChangeSet, d *difference.Difference) string {
	if ref == nil || len(d.Origins) == 0 {
		return ""
	}

	origin := d.Origins[0]
	fe, ok := ref.Edit(origin.Path)
	if !ok || origin.HunkIndex < 0 || origin.HunkIndex >= len(fe.Hunks) {
		return ""
	}

	hunk := fe.Hunks[origin.HunkIndex]
	var sb strings.Builder
	for _, line := range splitLines(hunk.OldText) {
		sb.WriteString("-" + line + "\n")
	}
	for _, line := range splitLines(hunk.NewText) {
		sb.WriteString("+" + line + "\n")
	}
	return sb.String()
}

func splitLines(s string) []string {
	s = strings.TrimRight(s, "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}
