// Package difference models the structured deltas derived from a
// reference changeset and their confirmation lifecycle.
package difference

import (
	"strconv"
	"strings"

	"github.com/tildaslashalef/prtwin/internal/ulid"
)

// Category classifies what kind of delta a difference describes
type Category string

const (
	// CategoryConstantValue is a literal value that differs (numbers, strings, durations)
	CategoryConstantValue Category = "constant-value"
	// CategoryIdentifierRename is a symbol whose name differs
	CategoryIdentifierRename Category = "identifier-rename"
	// CategoryConfigValue is a configuration key or setting that differs
	CategoryConfigValue Category = "config-value"
	// CategoryStructural is a larger shape change (signatures, blocks, control flow)
	CategoryStructural Category = "structural"
	// CategoryOther is everything that fits no other category
	CategoryOther Category = "other"
)

// ParseCategory maps a string to a Category, reporting whether it
// names a known one
func ParseCategory(s string) (Category, bool) {
	switch Category(strings.ToLower(strings.TrimSpace(s))) {
	case CategoryConstantValue:
		return CategoryConstantValue, true
	case CategoryIdentifierRename:
		return CategoryIdentifierRename, true
	case CategoryConfigValue:
		return CategoryConfigValue, true
	case CategoryStructural:
		return CategoryStructural, true
	case CategoryOther:
		return CategoryOther, true
	default:
		return "", false
	}
}

// Status represents a difference's position in the confirmation lifecycle
type Status string

const (
	// StatusProposed means the difference awaits a user decision
	StatusProposed Status = "proposed"
	// StatusAccepted means the difference will be applied as derived
	StatusAccepted Status = "accepted"
	// StatusRejected means the difference will not be applied
	StatusRejected Status = "rejected"
	// StatusEdited means the user supplied an override and a decision is still pending
	StatusEdited Status = "edited"
)

// Origin points at the region of the reference changeset a difference
// was derived from
type Origin struct {
	Path      string `json:"path"`
	HunkIndex int    `json:"hunk_index"`
}

// Difference is one structured delta between the reference changeset
// and the desired outcome
type Difference struct {
	ID          string   `json:"id"`
	Description string   `json:"description"`
	Category    Category `json:"category"`
	Origins     []Origin `json:"origins"`
	Instruction string   `json:"instruction"`
	Override    string   `json:"override,omitempty"`
	Status      Status   `json:"status"`
}

// New creates a proposed difference with a fresh ID
func New(description string, category Category, origins []Origin, instruction string) *Difference {
	return &Difference{
		ID:          ulid.DifferenceID(),
		Description: description,
		Category:    category,
		Origins:     origins,
		Instruction: instruction,
		Status:      StatusProposed,
	}
}

// EffectiveInstruction returns the user override when one exists,
// otherwise the derived instruction
func (d *Difference) EffectiveInstruction() string {
	if d.Override != "" {
		return d.Override
	}
	return d.Instruction
}

// Terminal reports whether the difference has reached a final decision
func (d *Difference) Terminal() bool {
	return d.Status == StatusAccepted || d.Status == StatusRejected
}

// DedupKey identifies semantically equal differences. Two differences
// with the same category, origins, and effective instruction are
// duplicates regardless of description wording.
func (d *Difference) DedupKey() string {
	var sb strings.Builder
	sb.WriteString(string(d.Category))
	for _, o := range d.Origins {
		sb.WriteString("|")
		sb.WriteString(o.Path)
		sb.WriteString("#")
		sb.WriteString(strconv.Itoa(o.HunkIndex))
	}
	sb.WriteString("|")
	sb.WriteString(d.EffectiveInstruction())
	return sb.String()
}
