package changeset

import (
	"errors"
	"fmt"
)

// ErrEditConflict indicates that a replacement hunk no longer matches the
// stored content it targets (stale-base detection).
var ErrEditConflict = errors.New("edit conflict")

// ApplyHunk returns a copy of fe with the replacement hunk applied.
//
// The replacement must target the old range of exactly one stored hunk,
// and its old text must match that hunk's stored old text byte for byte.
// The stored hunk's new side is replaced, new-range line counts are
// recomputed, and later hunks are shifted accordingly. The receiver is
// never mutated.
func ApplyHunk(fe FileEdit, replacement Hunk) (FileEdit, error) {
	out := fe
	out.Hunks = append([]Hunk(nil), fe.Hunks...)

	idx := -1
	for i, h := range out.Hunks {
		if h.OldStart == replacement.OldStart && h.OldLines == replacement.OldLines {
			idx = i
			break
		}
	}
	if idx < 0 {
		return FileEdit{}, fmt.Errorf("%w: file %s has no hunk at old lines %d,%d",
			ErrEditConflict, fe.Path, replacement.OldStart, replacement.OldLines)
	}

	target := out.Hunks[idx]
	if target.OldText != replacement.OldText {
		return FileEdit{}, fmt.Errorf("%w: file %s hunk at old line %d: base content changed",
			ErrEditConflict, fe.Path, replacement.OldStart)
	}

	newLines := CountLines(replacement.NewText)
	delta := newLines - target.NewLines

	target.NewText = replacement.NewText
	target.NewLines = newLines
	out.Hunks[idx] = target

	// Later hunks start deeper or shallower in the new file.
	for i := idx + 1; i < len(out.Hunks); i++ {
		out.Hunks[i].NewStart += delta
	}

	out.Additions, out.Deletions = 0, 0
	for _, h := range out.Hunks {
		out.Additions += CountLines(h.NewText)
		out.Deletions += CountLines(h.OldText)
	}

	return out, nil
}
