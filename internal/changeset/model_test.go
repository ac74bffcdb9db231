package changeset

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEditKind(t *testing.T) {
	tests := []struct {
		status string
		want   EditKind
	}{
		{"added", KindAdded},
		{"removed", KindDeleted},
		{"deleted", KindDeleted},
		{"renamed", KindRenamed},
		{"modified", KindModified},
		{"changed", KindModified},
		{"MODIFIED", KindModified},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseEditKind(tt.status))
		})
	}
}

func TestHunkOverlapsOld(t *testing.T) {
	tests := []struct {
		name string
		a, b Hunk
		want bool
	}{
		{
			name: "disjoint ranges",
			a:    Hunk{OldStart: 1, OldLines: 3},
			b:    Hunk{OldStart: 10, OldLines: 3},
			want: false,
		},
		{
			name: "identical ranges",
			a:    Hunk{OldStart: 5, OldLines: 2},
			b:    Hunk{OldStart: 5, OldLines: 2},
			want: true,
		},
		{
			name: "partial overlap",
			a:    Hunk{OldStart: 5, OldLines: 4},
			b:    Hunk{OldStart: 8, OldLines: 4},
			want: true,
		},
		{
			name: "adjacent ranges do not overlap",
			a:    Hunk{OldStart: 5, OldLines: 3},
			b:    Hunk{OldStart: 8, OldLines: 3},
			want: false,
		},
		{
			name: "insertion inside a range",
			a:    Hunk{OldStart: 6, OldLines: 0},
			b:    Hunk{OldStart: 5, OldLines: 4},
			want: true,
		},
		{
			name: "insertions at the same anchor",
			a:    Hunk{OldStart: 6, OldLines: 0},
			b:    Hunk{OldStart: 6, OldLines: 0},
			want: true,
		},
		{
			name: "insertions at different anchors",
			a:    Hunk{OldStart: 6, OldLines: 0},
			b:    Hunk{OldStart: 9, OldLines: 0},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.OverlapsOld(tt.b))
			assert.Equal(t, tt.want, tt.b.OverlapsOld(tt.a))
		})
	}
}

func TestFileEditNormalize(t *testing.T) {
	fe := FileEdit{
		Path: "main.go",
		Kind: KindModified,
		Hunks: []Hunk{
			{OldStart: 40, OldLines: 3},
			{OldStart: 10, OldLines: 3},
			{OldStart: 25, OldLines: 3},
		},
	}

	require.NoError(t, fe.Normalize())
	assert.Equal(t, 10, fe.Hunks[0].OldStart)
	assert.Equal(t, 25, fe.Hunks[1].OldStart)
	assert.Equal(t, 40, fe.Hunks[2].OldStart)
}

func TestFileEditNormalizeOverlap(t *testing.T) {
	fe := FileEdit{
		Path: "main.go",
		Kind: KindModified,
		Hunks: []Hunk{
			{OldStart: 10, OldLines: 5},
			{OldStart: 12, OldLines: 5},
		},
	}

	err := fe.Normalize()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "overlap")
}

func TestChangeSetAddEdit(t *testing.T) {
	cs := New("https://github.com/acme/widgets/pull/42")
	require.NotEmpty(t, cs.ID)
	assert.True(t, strings.HasPrefix(cs.ID, "cs-"))

	require.NoError(t, cs.AddEdit(FileEdit{Path: "a.go", Kind: KindModified}))
	require.NoError(t, cs.AddEdit(FileEdit{Path: "b.go", Kind: KindAdded}))

	err := cs.AddEdit(FileEdit{Path: "a.go", Kind: KindDeleted})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate path")

	edit, ok := cs.Edit("b.go")
	require.True(t, ok)
	assert.Equal(t, KindAdded, edit.Kind)

	_, ok = cs.Edit("missing.go")
	assert.False(t, ok)
}

func TestDiffSummaryStableUnderHunkOrder(t *testing.T) {
	hunks := []Hunk{
		{OldStart: 10, OldLines: 2, NewStart: 10, NewLines: 2, OldText: "a\nb\n", NewText: "a\nB\n"},
		{OldStart: 30, OldLines: 1, NewStart: 30, NewLines: 2, OldText: "x\n", NewText: "x\ny\n"},
	}

	forward := New("ref")
	require.NoError(t, forward.AddEdit(FileEdit{Path: "f.go", Kind: KindModified, Hunks: []Hunk{hunks[0], hunks[1]}}))

	reversed := New("ref")
	require.NoError(t, reversed.AddEdit(FileEdit{Path: "f.go", Kind: KindModified, Hunks: []Hunk{hunks[1], hunks[0]}}))

	assert.Equal(t, forward.DiffSummary(), reversed.DiffSummary())
}

func TestDiffSummaryCounts(t *testing.T) {
	cs := New("ref")
	require.NoError(t, cs.AddEdit(FileEdit{
		Path: "counted.go",
		Kind: KindModified,
		Hunks: []Hunk{
			{OldStart: 1, OldLines: 2, NewStart: 1, NewLines: 3, OldText: "a\nb\n", NewText: "a\nb\nc\n"},
		},
	}))
	require.NoError(t, cs.AddEdit(FileEdit{
		Path:      "reported.go",
		Kind:      KindModified,
		Additions: 7,
		Deletions: 2,
	}))

	summary := cs.DiffSummary()
	require.Len(t, summary, 2)

	assert.Equal(t, "counted.go", summary[0].Path)
	assert.Equal(t, 3, summary[0].Added)
	assert.Equal(t, 2, summary[0].Removed)

	// Reported counts win over hunk-derived ones
	assert.Equal(t, 7, summary[1].Added)
	assert.Equal(t, 2, summary[1].Removed)

	added, removed := cs.TotalChanges()
	assert.Equal(t, 10, added)
	assert.Equal(t, 4, removed)
}

func TestCountLines(t *testing.T) {
	assert.Equal(t, 0, CountLines(""))
	assert.Equal(t, 1, CountLines("a"))
	assert.Equal(t, 1, CountLines("a\n"))
	assert.Equal(t, 2, CountLines("a\nb"))
	assert.Equal(t, 2, CountLines("a\nb\n"))
}
