package apply

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tildaslashalef/prtwin/internal/changeset"
	"github.com/tildaslashalef/prtwin/internal/config"
	"github.com/tildaslashalef/prtwin/internal/difference"
	"github.com/tildaslashalef/prtwin/internal/llm"
	"github.com/tildaslashalef/prtwin/internal/loggy"
)

type fakeLLM struct {
	generate func(req llm.GenerateRequest) (*llm.GenerateResponse, error)
}

func (f *fakeLLM) GenerateCompletion(_ context.Context, req llm.GenerateRequest) (*llm.GenerateResponse, error) {
	return f.generate(req)
}

func testApplier(client llm.Client) *Applier {
	cfg := config.New()
	cfg.Apply.MaxRetries = 1
	cfg.Apply.MaxTokens = 4096
	return NewApplier(client, cfg, loggy.NewNoopLogger())
}

func referenceChangeSet(t *testing.T) *changeset.ChangeSet {
	t.Helper()

	cs := changeset.New("https://github.com/acme/widgets/pull/42")
	require.NoError(t, cs.AddEdit(changeset.FileEdit{
		Path: "config.go",
		Kind: changeset.KindModified,
		Hunks: []changeset.Hunk{
			{
				OldStart: 3, OldLines: 1, NewStart: 3, NewLines: 1,
				OldText: "const threshold = 5\n",
				NewText: "const threshold = 10\n",
			},
			{
				OldStart: 9, OldLines: 1, NewStart: 9, NewLines: 1,
				OldText: "const burst = 1\n",
				NewText: "const burst = 2\n",
			},
		},
	}))
	require.NoError(t, cs.AddEdit(changeset.FileEdit{
		Path: "untouched.go",
		Kind: changeset.KindModified,
		Hunks: []changeset.Hunk{
			{OldStart: 1, OldLines: 1, NewStart: 1, NewLines: 1, OldText: "a\n", NewText: "b\n"},
		},
	}))
	return cs
}

// rewriteByInstruction answers each synthesis request by substituting
// the instruction value into the region it was asked to rewrite
func rewriteByInstruction(req llm.GenerateRequest) (*llm.GenerateResponse, error) {
	switch {
	case strings.Contains(req.Prompt, "Instruction: 50"):
		return &llm.GenerateResponse{Content: "```go\nconst threshold = 50\n```"}, nil
	case strings.Contains(req.Prompt, "Instruction: 7"):
		return &llm.GenerateResponse{Content: "```go\nconst burst = 7\n```"}, nil
	default:
		return nil, errors.New("unexpected prompt")
	}
}

func TestApply(t *testing.T) {
	ref := referenceChangeSet(t)

	confirmed := []*difference.Difference{
		difference.New("threshold should be 50", difference.CategoryConstantValue,
			[]difference.Origin{{Path: "config.go", HunkIndex: 0}}, "50"),
		difference.New("burst should be 7", difference.CategoryConstantValue,
			[]difference.Origin{{Path: "config.go", HunkIndex: 1}}, "7"),
	}
	for _, d := range confirmed {
		d.Status = difference.StatusAccepted
	}

	result, err := testApplier(&fakeLLM{generate: rewriteByInstruction}).
		Apply(context.Background(), ref, confirmed, Options{})
	require.NoError(t, err)

	assert.Empty(t, result.Conflicts)
	assert.Equal(t, []string{confirmed[0].ID, confirmed[1].ID}, result.Applied)

	// Only the touched file appears; the produced changeset is fresh
	require.Len(t, result.ChangeSet.Edits, 1)
	assert.NotEqual(t, ref.ID, result.ChangeSet.ID)
	assert.Equal(t, ref.Ref, result.ChangeSet.Ref)

	edit := result.ChangeSet.Edits[0]
	assert.Equal(t, "config.go", edit.Path)
	assert.Equal(t, "const threshold = 50\n", edit.Hunks[0].NewText)
	assert.Equal(t, "const burst = 7\n", edit.Hunks[1].NewText)
	// Old sides are untouched: the produced edit still applies to the same base
	assert.Equal(t, "const threshold = 5\n", edit.Hunks[0].OldText)

	assert.Equal(t, []string{"config.go"}, result.Produced[confirmed[0].ID])
}

func TestApplyIncludeUnchanged(t *testing.T) {
	ref := referenceChangeSet(t)

	confirmed := []*difference.Difference{
		difference.New("threshold should be 50", difference.CategoryConstantValue,
			[]difference.Origin{{Path: "config.go", HunkIndex: 0}}, "50"),
	}

	result, err := testApplier(&fakeLLM{generate: rewriteByInstruction}).
		Apply(context.Background(), ref, confirmed, Options{IncludeUnchanged: true})
	require.NoError(t, err)

	require.Len(t, result.ChangeSet.Edits, 2)
	assert.Equal(t, "config.go", result.ChangeSet.Edits[0].Path)
	assert.Equal(t, "untouched.go", result.ChangeSet.Edits[1].Path)
	// The pass-through file is a verbatim copy
	assert.Equal(t, ref.Edits[1].Hunks, result.ChangeSet.Edits[1].Hunks)
}

func TestApplyOverlappingTargets(t *testing.T) {
	ref := referenceChangeSet(t)

	// Two distinct differences aiming at the same hunk
	a := difference.New("threshold to 50", difference.CategoryConstantValue,
		[]difference.Origin{{Path: "config.go", HunkIndex: 0}}, "50")
	b := difference.New("threshold to 60", difference.CategoryConstantValue,
		[]difference.Origin{{Path: "config.go", HunkIndex: 0}}, "60")
	c := difference.New("burst to 7", difference.CategoryConstantValue,
		[]difference.Origin{{Path: "config.go", HunkIndex: 1}}, "7")

	result, err := testApplier(&fakeLLM{generate: rewriteByInstruction}).
		Apply(context.Background(), ref, []*difference.Difference{a, b, c}, Options{})
	require.NoError(t, err)

	// Neither overlapping difference is applied; the third one is
	require.Len(t, result.Conflicts, 1)
	conflict := result.Conflicts[0]
	assert.Equal(t, ReasonOverlappingTarget, conflict.Reason)
	assert.ElementsMatch(t, []string{a.ID, b.ID}, conflict.IDs)
	assert.Equal(t, "config.go", conflict.Path)

	assert.Equal(t, []string{c.ID}, result.Applied)
	require.Len(t, result.ChangeSet.Edits, 1)
	assert.Equal(t, "const burst = 7\n", result.ChangeSet.Edits[0].Hunks[1].NewText)
	// The hunk no difference survived for keeps its reference content
	assert.Equal(t, "const threshold = 10\n", result.ChangeSet.Edits[0].Hunks[0].NewText)
}

func TestApplySynthesisFailure(t *testing.T) {
	ref := referenceChangeSet(t)

	failing := &fakeLLM{generate: func(req llm.GenerateRequest) (*llm.GenerateResponse, error) {
		if strings.Contains(req.Prompt, "Instruction: 50") {
			return nil, llm.ErrBadRequest
		}
		return rewriteByInstruction(req)
	}}

	a := difference.New("threshold to 50", difference.CategoryConstantValue,
		[]difference.Origin{{Path: "config.go", HunkIndex: 0}}, "50")
	b := difference.New("burst to 7", difference.CategoryConstantValue,
		[]difference.Origin{{Path: "config.go", HunkIndex: 1}}, "7")

	result, err := testApplier(failing).
		Apply(context.Background(), ref, []*difference.Difference{a, b}, Options{})
	require.NoError(t, err)

	// The failed difference is reported; the other one still lands
	require.Len(t, result.Conflicts, 1)
	assert.Equal(t, ReasonSynthesisFailed, result.Conflicts[0].Reason)
	assert.Equal(t, []string{a.ID}, result.Conflicts[0].IDs)

	assert.Equal(t, []string{b.ID}, result.Applied)
	require.Len(t, result.ChangeSet.Edits, 1)
	assert.Equal(t, "const burst = 7\n", result.ChangeSet.Edits[0].Hunks[1].NewText)
}

func TestApplyUnknownTarget(t *testing.T) {
	ref := referenceChangeSet(t)

	d := difference.New("phantom", difference.CategoryOther,
		[]difference.Origin{{Path: "missing.go", HunkIndex: 0}}, "x")

	result, err := testApplier(&fakeLLM{generate: rewriteByInstruction}).
		Apply(context.Background(), ref, []*difference.Difference{d}, Options{})
	require.NoError(t, err)

	require.Len(t, result.Conflicts, 1)
	assert.Equal(t, ReasonEditConflict, result.Conflicts[0].Reason)
	assert.Empty(t, result.Applied)
	assert.Empty(t, result.ChangeSet.Edits)
}

func TestApplyHunklessTarget(t *testing.T) {
	ref := referenceChangeSet(t)
	require.NoError(t, ref.AddEdit(changeset.FileEdit{Path: "logo.png", Kind: changeset.KindAdded}))

	d := difference.New("different asset", difference.CategoryOther,
		[]difference.Origin{{Path: "logo.png", HunkIndex: -1}}, "use the dark logo")

	result, err := testApplier(&fakeLLM{generate: rewriteByInstruction}).
		Apply(context.Background(), ref, []*difference.Difference{d}, Options{})
	require.NoError(t, err)

	require.Len(t, result.Conflicts, 1)
	assert.Equal(t, ReasonNoEditableRegion, result.Conflicts[0].Reason)
	assert.Equal(t, "logo.png", result.Conflicts[0].Path)
	assert.Empty(t, result.Applied)
}

func TestApplyDeterministic(t *testing.T) {
	ref := referenceChangeSet(t)

	confirmed := []*difference.Difference{
		difference.New("threshold should be 50", difference.CategoryConstantValue,
			[]difference.Origin{{Path: "config.go", HunkIndex: 0}}, "50"),
		difference.New("burst should be 7", difference.CategoryConstantValue,
			[]difference.Origin{{Path: "config.go", HunkIndex: 1}}, "7"),
	}

	applier := testApplier(&fakeLLM{generate: rewriteByInstruction})

	first, err := applier.Apply(context.Background(), ref, confirmed, Options{Concurrency: 4})
	require.NoError(t, err)
	second, err := applier.Apply(context.Background(), ref, confirmed, Options{Concurrency: 4})
	require.NoError(t, err)

	assert.Equal(t, first.Applied, second.Applied)
	assert.Equal(t, first.Conflicts, second.Conflicts)
	require.Len(t, second.ChangeSet.Edits, len(first.ChangeSet.Edits))
	for i := range first.ChangeSet.Edits {
		assert.Equal(t, first.ChangeSet.Edits[i].Hunks, second.ChangeSet.Edits[i].Hunks)
	}
}

func TestApplyCancelled(t *testing.T) {
	ref := referenceChangeSet(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	confirmed := []*difference.Difference{
		difference.New("threshold should be 50", difference.CategoryConstantValue,
			[]difference.Origin{{Path: "config.go", HunkIndex: 0}}, "50"),
	}

	_, err := testApplier(&fakeLLM{generate: rewriteByInstruction}).
		Apply(ctx, ref, confirmed, Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSynthesizeHonorsOverride(t *testing.T) {
	var sawInstruction string
	client := &fakeLLM{generate: func(req llm.GenerateRequest) (*llm.GenerateResponse, error) {
		for _, line := range strings.Split(req.Prompt, "\n") {
			if strings.HasPrefix(line, "Instruction: ") {
				sawInstruction = strings.TrimPrefix(line, "Instruction: ")
			}
		}
		return &llm.GenerateResponse{Content: "const threshold = 75"}, nil
	}}

	d := difference.New("threshold", difference.CategoryConstantValue,
		[]difference.Origin{{Path: "config.go", HunkIndex: 0}}, "50")
	d.Override = "75"

	hunk := changeset.Hunk{OldStart: 3, OldLines: 1, OldText: "const threshold = 5\n", NewText: "const threshold = 10\n"}

	got, err := testApplier(client).synthesize(context.Background(), "config.go", hunk, d)
	require.NoError(t, err)

	assert.Equal(t, "75", sawInstruction)
	// Missing trailing newline is restored
	assert.Equal(t, "const threshold = 75\n", got)
}
