// Package apply deterministically materializes confirmed differences
// into a new changeset, synthesizing rewritten regions via an LLM.
package apply

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"

	"github.com/tildaslashalef/prtwin/internal/changeset"
	"github.com/tildaslashalef/prtwin/internal/config"
	"github.com/tildaslashalef/prtwin/internal/difference"
	"github.com/tildaslashalef/prtwin/internal/extractor"
	"github.com/tildaslashalef/prtwin/internal/llm"
	"github.com/tildaslashalef/prtwin/internal/loggy"
	"github.com/tildaslashalef/prtwin/internal/ulid"
)

// Reason classifies why a difference could not be applied
type Reason string

const (
	// ReasonOverlappingTarget means two differences target overlapping regions
	ReasonOverlappingTarget Reason = "overlapping-target"
	// ReasonSynthesisFailed means no usable rewrite could be produced
	ReasonSynthesisFailed Reason = "synthesis-failed"
	// ReasonEditConflict means the target region no longer matches its base
	ReasonEditConflict Reason = "edit-conflict"
	// ReasonNoEditableRegion means the target file carries no text hunks
	// to rewrite (binary, rename-only)
	ReasonNoEditableRegion Reason = "no-editable-region"
)

// Conflict records one or more differences left unapplied and why
type Conflict struct {
	IDs    []string `json:"ids"`
	Path   string   `json:"path"`
	Reason Reason   `json:"reason"`
	Detail string   `json:"detail,omitempty"`
}

// Result is the outcome of one application pass
type Result struct {
	ChangeSet *changeset.ChangeSet
	Applied   []string            // difference IDs fully applied, in proposal order
	Produced  map[string][]string // difference ID -> file paths it shaped
	Conflicts []Conflict
}

// Options tune one application pass
type Options struct {
	IncludeUnchanged bool // carry reference files untouched by any difference
	Concurrency      int  // concurrent per-file synthesis; 1 means sequential
}

// Applier turns confirmed differences into a new changeset
type Applier struct {
	llmClient llm.Client
	config    *config.Config
	logger    *loggy.Logger
}

// NewApplier creates a new applier
func NewApplier(client llm.Client, cfg *config.Config, logger *loggy.Logger) *Applier {
	return &Applier{
		llmClient: client,
		config:    cfg,
		logger:    logger,
	}
}

// task is one difference applied against one origin hunk
type task struct {
	diff      *difference.Difference
	hunkIndex int
	order     int // proposal order, for deterministic tie-breaking
}

// Apply produces a new changeset from the reference changeset and the
// confirmed differences. The pass is deterministic for a given input:
// the same confirmed batch against the same reference yields the same
// grouping, ordering, and conflict decisions.
func (a *Applier) Apply(ctx context.Context, ref *changeset.ChangeSet, confirmed []*difference.Difference, opts Options) (*Result, error) {
	result := &Result{
		Produced: make(map[string][]string),
	}

	byPath, conflicts := a.planTasks(ref, confirmed)
	result.Conflicts = conflicts

	paths := make([]string, 0, len(byPath))
	for path := range byPath {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	outcomes := make([]fileResult, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			outcome, err := a.applyFile(gctx, ref, path, byPath[path])
			if err != nil {
				return err
			}
			outcomes[i] = outcome
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	produced := make(map[string]*changeset.FileEdit)
	appliedByDiff := make(map[string][]string)
	for i, path := range paths {
		outcome := outcomes[i]
		result.Conflicts = append(result.Conflicts, outcome.conflicts...)
		if outcome.edit != nil {
			produced[path] = outcome.edit
			for _, id := range outcome.applied {
				appliedByDiff[id] = append(appliedByDiff[id], path)
			}
		}
	}

	// Assemble the output changeset in reference order
	out := &changeset.ChangeSet{
		ID:         ulid.ChangeSetID(),
		Ref:        ref.Ref,
		Title:      ref.Title,
		Body:       ref.Body,
		BaseBranch: ref.BaseBranch,
	}
	for _, fe := range ref.Edits {
		if edit, ok := produced[fe.Path]; ok {
			out.Edits = append(out.Edits, *edit)
		} else if opts.IncludeUnchanged {
			copied := fe
			copied.Hunks = append([]changeset.Hunk(nil), fe.Hunks...)
			out.Edits = append(out.Edits, copied)
		}
	}
	result.ChangeSet = out

	// Applied IDs in proposal order, only counting differences none of
	// whose targets conflicted
	conflicted := make(map[string]bool)
	for _, c := range result.Conflicts {
		for _, id := range c.IDs {
			conflicted[id] = true
		}
	}
	for _, d := range confirmed {
		if paths, ok := appliedByDiff[d.ID]; ok && !conflicted[d.ID] {
			result.Applied = append(result.Applied, d.ID)
			result.Produced[d.ID] = paths
		}
	}

	sort.Slice(result.Conflicts, func(i, j int) bool {
		ci, cj := result.Conflicts[i], result.Conflicts[j]
		if ci.Path != cj.Path {
			return ci.Path < cj.Path
		}
		return strings.Join(ci.IDs, ",") < strings.Join(cj.IDs, ",")
	})

	a.logger.Info("Application pass complete",
		"changeset", out.ID,
		"files", len(out.Edits),
		"applied", len(result.Applied),
		"conflicts", len(result.Conflicts))

	return result, nil
}

// planTasks expands differences into per-file tasks, rejecting targets
// that cannot be resolved and pairs of differences whose targets overlap
func (a *Applier) planTasks(ref *changeset.ChangeSet, confirmed []*difference.Difference) (map[string][]task, []Conflict) {
	var conflicts []Conflict
	byPath := make(map[string][]task)
	dropped := make(map[string]bool)

	for order, d := range confirmed {
		for _, origin := range d.Origins {
			fe, ok := ref.Edit(origin.Path)
			switch {
			case ok && origin.HunkIndex < 0:
				// Hunkless files are addressable but carry nothing a
				// synthesis call could rewrite
				conflicts = append(conflicts, Conflict{
					IDs:    []string{d.ID},
					Path:   origin.Path,
					Reason: ReasonNoEditableRegion,
					Detail: "file has no text hunks to rewrite",
				})
				dropped[d.ID] = true
				continue
			case !ok || origin.HunkIndex >= len(fe.Hunks):
				conflicts = append(conflicts, Conflict{
					IDs:    []string{d.ID},
					Path:   origin.Path,
					Reason: ReasonEditConflict,
					Detail: "target region not present in reference changeset",
				})
				dropped[d.ID] = true
				continue
			}
			byPath[origin.Path] = append(byPath[origin.Path], task{diff: d, hunkIndex: origin.HunkIndex, order: order})
		}
	}

	// Distinct differences aiming at overlapping regions cannot both
	// win; neither is applied.
	for path, tasks := range byPath {
		fe, _ := ref.Edit(path)
		for i := 0; i < len(tasks); i++ {
			for j := i + 1; j < len(tasks); j++ {
				ti, tj := tasks[i], tasks[j]
				if ti.diff.ID == tj.diff.ID {
					continue
				}
				if fe.Hunks[ti.hunkIndex].OverlapsOld(fe.Hunks[tj.hunkIndex]) {
					if !dropped[ti.diff.ID] || !dropped[tj.diff.ID] {
						ids := []string{ti.diff.ID, tj.diff.ID}
						sort.Strings(ids)
						conflicts = append(conflicts, Conflict{
							IDs:    ids,
							Path:   path,
							Reason: ReasonOverlappingTarget,
							Detail: fmt.Sprintf("both target old lines around %d", fe.Hunks[ti.hunkIndex].OldStart),
						})
					}
					dropped[ti.diff.ID] = true
					dropped[tj.diff.ID] = true
				}
			}
		}
	}

	// Remove every task of a dropped difference, on every file it touches
	for path, tasks := range byPath {
		kept := tasks[:0]
		seen := make(map[string]bool)
		for _, t := range tasks {
			if dropped[t.diff.ID] {
				continue
			}
			// A difference listing the same hunk twice applies once
			key := t.diff.ID + "#" + fmt.Sprint(t.hunkIndex)
			if seen[key] {
				continue
			}
			seen[key] = true
			kept = append(kept, t)
		}
		if len(kept) == 0 {
			delete(byPath, path)
			continue
		}
		// Ascending target position, proposal order on ties
		sort.SliceStable(kept, func(i, j int) bool {
			fe, _ := ref.Edit(path)
			hi, hj := fe.Hunks[kept[i].hunkIndex], fe.Hunks[kept[j].hunkIndex]
			if hi.OldStart != hj.OldStart {
				return hi.OldStart < hj.OldStart
			}
			return kept[i].order < kept[j].order
		})
		byPath[path] = kept
	}

	return byPath, conflicts
}

type fileResult struct {
	edit      *changeset.FileEdit
	applied   []string
	conflicts []Conflict
}

// applyFile rewrites one file's edit, task by task. A synthesis failure
// skips that task only; an edit conflict abandons the whole file.
func (a *Applier) applyFile(ctx context.Context, ref *changeset.ChangeSet, path string, tasks []task) (fileResult, error) {
	source, _ := ref.Edit(path)
	current := *source
	current.Hunks = append([]changeset.Hunk(nil), source.Hunks...)

	var res fileResult
	appliedAny := false

	for _, t := range tasks {
		if err := ctx.Err(); err != nil {
			return fileResult{}, err
		}

		target := current.Hunks[t.hunkIndex]
		newText, err := a.synthesize(ctx, path, target, t.diff)
		if err != nil {
			if ctx.Err() != nil {
				return fileResult{}, ctx.Err()
			}
			a.logger.Warn("Synthesis failed",
				"difference", t.diff.ID,
				"path", path,
				"error", err)
			res.conflicts = append(res.conflicts, Conflict{
				IDs:    []string{t.diff.ID},
				Path:   path,
				Reason: ReasonSynthesisFailed,
				Detail: err.Error(),
			})
			continue
		}

		replacement := changeset.Hunk{
			OldStart: target.OldStart,
			OldLines: target.OldLines,
			OldText:  target.OldText,
			NewText:  newText,
		}

		next, err := changeset.ApplyHunk(current, replacement)
		if err != nil {
			if errors.Is(err, changeset.ErrEditConflict) {
				// Stale base: nothing applied to this file can be trusted
				res.conflicts = append(res.conflicts, Conflict{
					IDs:    []string{t.diff.ID},
					Path:   path,
					Reason: ReasonEditConflict,
					Detail: err.Error(),
				})
				for _, id := range res.applied {
					res.conflicts = append(res.conflicts, Conflict{
						IDs:    []string{id},
						Path:   path,
						Reason: ReasonEditConflict,
						Detail: "file abandoned after conflicting edit",
					})
				}
				res.applied = nil
				res.edit = nil
				return res, nil
			}
			return fileResult{}, err
		}

		current = next
		res.applied = append(res.applied, t.diff.ID)
		appliedAny = true
	}

	if appliedAny {
		res.edit = &current
	}
	return res, nil
}

// synthesize asks the LLM to rewrite one hunk's new side per the
// difference's effective instruction
func (a *Applier) synthesize(ctx context.Context, path string, hunk changeset.Hunk, d *difference.Difference) (string, error) {
	prompt, err := buildSynthesisPrompt(path, hunk, d)
	if err != nil {
		return "", err
	}

	var content string
	operation := func() error {
		resp, err := a.llmClient.GenerateCompletion(ctx, llm.GenerateRequest{
			System:    synthesisSystemPrompt,
			Prompt:    prompt,
			MaxTokens: a.config.Apply.MaxTokens,
		})
		if err != nil {
			if !llm.IsTransient(err) {
				return backoff.Permanent(err)
			}
			return err
		}

		content = extractor.ExtractCodeBlock(resp.Content)
		if strings.TrimSpace(content) == "" {
			return fmt.Errorf("empty rewrite for %s", path)
		}
		return nil
	}

	err = backoff.Retry(operation,
		backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(a.config.Apply.MaxRetries)), ctx))
	if err != nil {
		return "", err
	}

	// Hunk text is newline-terminated by construction
	if !strings.HasSuffix(content, "\n") {
		content += "\n"
	}

	return content, nil
}
