package changeset

import (
	"fmt"
	"strings"

	"github.com/sourcegraph/go-diff/diff"
)

// ParseFileEdit builds a FileEdit from a per-file unified patch as returned
// by the GitHub API (hunk headers and body, no file header lines).
//
// Binary or empty patches yield an edit with no hunks; the kind and line
// counts still describe the change.
func ParseFileEdit(path, oldPath, status, patch string, additions, deletions int) (FileEdit, error) {
	fe := FileEdit{
		Path:      path,
		Kind:      ParseEditKind(status),
		Additions: additions,
		Deletions: deletions,
	}
	if fe.Kind == KindRenamed {
		fe.OldPath = oldPath
	}

	if strings.TrimSpace(patch) == "" {
		return fe, nil
	}

	hunks, err := diff.ParseHunks([]byte(patch))
	if err != nil {
		return FileEdit{}, fmt.Errorf("parsing patch for %s: %w", path, err)
	}

	for _, h := range hunks {
		hunk := Hunk{
			OldStart: int(h.OrigStartLine),
			OldLines: int(h.OrigLines),
			NewStart: int(h.NewStartLine),
			NewLines: int(h.NewLines),
		}
		hunk.OldText, hunk.NewText = splitHunkBody(string(h.Body))
		fe.Hunks = append(fe.Hunks, hunk)
	}

	if err := fe.Normalize(); err != nil {
		return FileEdit{}, err
	}

	return fe, nil
}

// splitHunkBody separates a hunk body into its old side (context and
// deleted lines) and new side (context and added lines), stripping the
// unified-diff line prefixes.
func splitHunkBody(body string) (oldText, newText string) {
	var oldSB, newSB strings.Builder

	lines := strings.Split(body, "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}

	for _, line := range lines {
		if line == "" {
			// Blank context line with its leading space stripped in transit
			oldSB.WriteByte('\n')
			newSB.WriteByte('\n')
			continue
		}
		marker, rest := line[0], line[1:]
		switch marker {
		case ' ':
			oldSB.WriteString(rest)
			oldSB.WriteByte('\n')
			newSB.WriteString(rest)
			newSB.WriteByte('\n')
		case '-':
			oldSB.WriteString(rest)
			oldSB.WriteByte('\n')
		case '+':
			newSB.WriteString(rest)
			newSB.WriteByte('\n')
		case '\\':
			// "\ No newline at end of file" - not content
		default:
			// Tolerate malformed lines as shared context
			oldSB.WriteString(line)
			oldSB.WriteByte('\n')
			newSB.WriteString(line)
			newSB.WriteByte('\n')
		}
	}

	return oldSB.String(), newSB.String()
}
