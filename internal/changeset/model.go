// Package changeset models the file-level content of a pull request
// as an ordered set of file edits, each made of line-range hunks.
package changeset

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tildaslashalef/prtwin/internal/ulid"
)

// EditKind represents the kind of change applied to a file
type EditKind string

const (
	// KindAdded represents a newly created file
	KindAdded EditKind = "added"
	// KindModified represents an edited file
	KindModified EditKind = "modified"
	// KindDeleted represents a removed file
	KindDeleted EditKind = "deleted"
	// KindRenamed represents a moved file
	KindRenamed EditKind = "renamed"
)

// ParseEditKind maps a GitHub file status string to an EditKind
func ParseEditKind(status string) EditKind {
	switch strings.ToLower(status) {
	case "added":
		return KindAdded
	case "removed", "deleted":
		return KindDeleted
	case "renamed":
		return KindRenamed
	default:
		return KindModified
	}
}

// Hunk represents a contiguous region of old/new text within one file's edit
type Hunk struct {
	OldStart int    `json:"old_start"`
	OldLines int    `json:"old_lines"`
	NewStart int    `json:"new_start"`
	NewLines int    `json:"new_lines"`
	OldText  string `json:"old_text"`
	NewText  string `json:"new_text"`
}

// OldEnd returns the last line of the hunk's old range.
// A pure-insertion hunk (OldLines == 0) ends before it starts.
func (h Hunk) OldEnd() int {
	return h.OldStart + h.OldLines - 1
}

// OverlapsOld reports whether two hunks touch overlapping or identical
// old-range line spans. Zero-length ranges overlap when anchored at the
// same line.
func (h Hunk) OverlapsOld(other Hunk) bool {
	if h.OldLines == 0 && other.OldLines == 0 {
		return h.OldStart == other.OldStart
	}
	if h.OldLines == 0 {
		return other.OldStart <= h.OldStart && h.OldStart <= other.OldEnd()
	}
	if other.OldLines == 0 {
		return h.OldStart <= other.OldStart && other.OldStart <= h.OldEnd()
	}
	return h.OldStart <= other.OldEnd() && other.OldStart <= h.OldEnd()
}

// FileEdit represents all changes to a single file
type FileEdit struct {
	Path      string   `json:"path"`
	OldPath   string   `json:"old_path,omitempty"` // set for renamed files
	Kind      EditKind `json:"kind"`
	Hunks     []Hunk   `json:"hunks"`
	Additions int      `json:"additions"`
	Deletions int      `json:"deletions"`
}

// Normalize sorts the edit's hunks by ascending old-range start and
// verifies that no two hunks overlap.
func (fe *FileEdit) Normalize() error {
	sort.SliceStable(fe.Hunks, func(i, j int) bool {
		return fe.Hunks[i].OldStart < fe.Hunks[j].OldStart
	})

	for i := 1; i < len(fe.Hunks); i++ {
		if fe.Hunks[i].OverlapsOld(fe.Hunks[i-1]) {
			return fmt.Errorf("file %s: hunks at old lines %d and %d overlap",
				fe.Path, fe.Hunks[i-1].OldStart, fe.Hunks[i].OldStart)
		}
	}

	return nil
}

// ChangeSet represents the full set of file-level edits comprising a PR's content
type ChangeSet struct {
	ID         string     `json:"id"`
	Ref        string     `json:"ref"` // reference PR URL or commit range
	Title      string     `json:"title,omitempty"`
	Body       string     `json:"body,omitempty"`
	Author     string     `json:"author,omitempty"`
	BaseBranch string     `json:"base_branch,omitempty"`
	HeadBranch string     `json:"head_branch,omitempty"`
	Edits      []FileEdit `json:"edits"`
}

// New creates an empty changeset for the given reference
func New(ref string) *ChangeSet {
	return &ChangeSet{
		ID:  ulid.ChangeSetID(),
		Ref: ref,
	}
}

// AddEdit appends a file edit, enforcing path uniqueness within the changeset
func (cs *ChangeSet) AddEdit(fe FileEdit) error {
	for _, existing := range cs.Edits {
		if existing.Path == fe.Path {
			return fmt.Errorf("duplicate path in changeset: %s", fe.Path)
		}
	}

	if err := fe.Normalize(); err != nil {
		return err
	}

	cs.Edits = append(cs.Edits, fe)
	return nil
}

// Edit returns the file edit for the given path, if present
func (cs *ChangeSet) Edit(path string) (*FileEdit, bool) {
	for i := range cs.Edits {
		if cs.Edits[i].Path == path {
			return &cs.Edits[i], true
		}
	}
	return nil, false
}

// FileSummary is one row of a changeset's diff summary
type FileSummary struct {
	Path    string
	Kind    EditKind
	Added   int
	Removed int
}

// DiffSummary returns a deterministic per-file summary of the changeset,
// in edit order. Line counts are derived from hunk text after hunks are
// re-sorted into their canonical order, so the summary is stable under
// hunk re-ordering.
func (cs *ChangeSet) DiffSummary() []FileSummary {
	summaries := make([]FileSummary, 0, len(cs.Edits))

	for _, fe := range cs.Edits {
		sorted := fe
		sorted.Hunks = append([]Hunk(nil), fe.Hunks...)
		sort.SliceStable(sorted.Hunks, func(i, j int) bool {
			return sorted.Hunks[i].OldStart < sorted.Hunks[j].OldStart
		})

		added, removed := sorted.Additions, sorted.Deletions
		if added == 0 && removed == 0 {
			for _, h := range sorted.Hunks {
				added += CountLines(h.NewText)
				removed += CountLines(h.OldText)
			}
		}

		summaries = append(summaries, FileSummary{
			Path:    fe.Path,
			Kind:    fe.Kind,
			Added:   added,
			Removed: removed,
		})
	}

	return summaries
}

// TotalChanges returns the cumulative added and removed line counts
func (cs *ChangeSet) TotalChanges() (added, removed int) {
	for _, s := range cs.DiffSummary() {
		added += s.Added
		removed += s.Removed
	}
	return added, removed
}

// CountLines returns the number of lines in s. A trailing newline does
// not start an additional line; the empty string has zero lines.
func CountLines(s string) int {
	if s == "" {
		return 0
	}
	n := strings.Count(s, "\n")
	if !strings.HasSuffix(s, "\n") {
		n++
	}
	return n
}
