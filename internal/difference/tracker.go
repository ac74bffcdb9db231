package difference

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownDifference indicates an operation referenced an ID the
// tracker does not hold
var ErrUnknownDifference = errors.New("unknown difference")

// ErrEmptyOverride indicates an edit carried no replacement instruction
var ErrEmptyOverride = errors.New("override instruction cannot be empty")

// TransitionError indicates an operation that is not valid from the
// difference's current status
type TransitionError struct {
	ID   string
	From Status
	Op   string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("difference %s: cannot %s from status %s", e.ID, e.Op, e.From)
}

// IncompleteError indicates finalization was attempted while decisions
// are still pending
type IncompleteError struct {
	Pending []string
}

func (e *IncompleteError) Error() string {
	return fmt.Sprintf("%d differences still pending a decision: %s",
		len(e.Pending), strings.Join(e.Pending, ", "))
}

// Tracker drives the confirmation lifecycle for a batch of differences.
// It preserves proposal order and enforces the legal status transitions:
// proposed and edited move to accepted, rejected, or edited; an edit
// reopens an accepted difference; rejected is final.
//
// Tracker is not safe for concurrent use; confirmation is an
// interactive, sequential flow.
type Tracker struct {
	order []string
	byID  map[string]*Difference
}

// NewTracker builds a tracker over the given differences in proposal order
func NewTracker(diffs []*Difference) *Tracker {
	t := &Tracker{
		byID: make(map[string]*Difference, len(diffs)),
	}
	for _, d := range diffs {
		if _, seen := t.byID[d.ID]; seen {
			continue
		}
		t.order = append(t.order, d.ID)
		t.byID[d.ID] = d
	}
	return t
}

// Get returns the tracked difference with the given ID
func (t *Tracker) Get(id string) (*Difference, error) {
	d, ok := t.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDifference, id)
	}
	return d, nil
}

// All returns every tracked difference in proposal order
func (t *Tracker) All() []*Difference {
	out := make([]*Difference, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, t.byID[id])
	}
	return out
}

// Pending returns the differences that have not reached a final
// decision, in proposal order. Edited differences are pending: an
// override still needs to be accepted or rejected.
func (t *Tracker) Pending() []*Difference {
	var out []*Difference
	for _, id := range t.order {
		if d := t.byID[id]; !d.Terminal() {
			out = append(out, d)
		}
	}
	return out
}

// Accept marks the difference as accepted. An accepted edited
// difference keeps its override as the effective instruction.
func (t *Tracker) Accept(id string) error {
	d, err := t.Get(id)
	if err != nil {
		return err
	}
	if d.Terminal() {
		return &TransitionError{ID: id, From: d.Status, Op: "accept"}
	}
	d.Status = StatusAccepted
	return nil
}

// Reject marks the difference as rejected. Rejecting an edited
// difference discards its override.
func (t *Tracker) Reject(id string) error {
	d, err := t.Get(id)
	if err != nil {
		return err
	}
	if d.Terminal() {
		return &TransitionError{ID: id, From: d.Status, Op: "reject"}
	}
	d.Status = StatusRejected
	d.Override = ""
	return nil
}

// Edit records a replacement instruction for the difference. A further
// edit replaces the previous override; the derived instruction is kept
// for reference. Editing an accepted difference moves it back to
// edited, so the override must be confirmed again; only rejection is
// irreversible.
func (t *Tracker) Edit(id, override string) error {
	d, err := t.Get(id)
	if err != nil {
		return err
	}
	if d.Status == StatusRejected {
		return &TransitionError{ID: id, From: d.Status, Op: "edit"}
	}
	if strings.TrimSpace(override) == "" {
		return ErrEmptyOverride
	}
	d.Status = StatusEdited
	d.Override = override
	return nil
}

// Finalize returns the accepted differences in proposal order, with
// overrides from the edit path intact. It fails with IncompleteError
// if any difference is still proposed or edited.
func (t *Tracker) Finalize() ([]*Difference, error) {
	var pending []string
	for _, id := range t.order {
		if !t.byID[id].Terminal() {
			pending = append(pending, id)
		}
	}
	if len(pending) > 0 {
		return nil, &IncompleteError{Pending: pending}
	}

	var accepted []*Difference
	for _, id := range t.order {
		if d := t.byID[id]; d.Status == StatusAccepted {
			accepted = append(accepted, d)
		}
	}
	return accepted, nil
}
