package difference

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTracker(t *testing.T, n int) (*Tracker, []*Difference) {
	t.Helper()

	diffs := make([]*Difference, 0, n)
	for i := 0; i < n; i++ {
		diffs = append(diffs, New("delta", CategoryOther,
			[]Origin{{Path: "f.go", HunkIndex: i}}, "value"))
	}
	return NewTracker(diffs), diffs
}

func TestTrackerAcceptReject(t *testing.T) {
	tr, diffs := newTestTracker(t, 2)

	require.NoError(t, tr.Accept(diffs[0].ID))
	assert.Equal(t, StatusAccepted, diffs[0].Status)

	require.NoError(t, tr.Reject(diffs[1].ID))
	assert.Equal(t, StatusRejected, diffs[1].Status)

	assert.Empty(t, tr.Pending())
}

func TestTrackerTerminalStatesAreFinal(t *testing.T) {
	tr, diffs := newTestTracker(t, 2)

	require.NoError(t, tr.Accept(diffs[0].ID))
	require.NoError(t, tr.Reject(diffs[1].ID))

	for _, op := range []func(string) error{tr.Accept, tr.Reject} {
		var te *TransitionError
		require.ErrorAs(t, op(diffs[0].ID), &te)
		assert.Equal(t, StatusAccepted, te.From)

		require.ErrorAs(t, op(diffs[1].ID), &te)
		assert.Equal(t, StatusRejected, te.From)
	}

	// Rejection alone is irreversible; an accepted difference can still
	// be reopened with an edit
	err := tr.Edit(diffs[1].ID, "other value")
	var te *TransitionError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "edit", te.Op)
	assert.Equal(t, StatusRejected, te.From)
}

func TestTrackerEditReopensAccepted(t *testing.T) {
	tr, diffs := newTestTracker(t, 1)
	id := diffs[0].ID

	require.NoError(t, tr.Accept(id))
	require.NoError(t, tr.Edit(id, "75"))

	assert.Equal(t, StatusEdited, diffs[0].Status)
	assert.Equal(t, "75", diffs[0].EffectiveInstruction())

	// The reopened difference awaits a fresh decision
	require.Len(t, tr.Pending(), 1)

	_, err := tr.Finalize()
	var ie *IncompleteError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, []string{id}, ie.Pending)

	require.NoError(t, tr.Accept(id))
	accepted, err := tr.Finalize()
	require.NoError(t, err)
	require.Len(t, accepted, 1)
	assert.Equal(t, "75", accepted[0].EffectiveInstruction())
}

func TestTrackerEditLifecycle(t *testing.T) {
	tr, diffs := newTestTracker(t, 1)
	id := diffs[0].ID

	require.NoError(t, tr.Edit(id, "100"))
	assert.Equal(t, StatusEdited, diffs[0].Status)
	assert.Equal(t, "100", diffs[0].EffectiveInstruction())

	// Edited is not terminal; it still awaits accept or reject
	require.Len(t, tr.Pending(), 1)

	// A further edit replaces the previous override
	require.NoError(t, tr.Edit(id, "200"))
	assert.Equal(t, "200", diffs[0].EffectiveInstruction())

	require.NoError(t, tr.Accept(id))
	assert.Equal(t, StatusAccepted, diffs[0].Status)
	assert.Equal(t, "200", diffs[0].EffectiveInstruction())
}

func TestTrackerRejectDiscardsOverride(t *testing.T) {
	tr, diffs := newTestTracker(t, 1)
	id := diffs[0].ID

	require.NoError(t, tr.Edit(id, "100"))
	require.NoError(t, tr.Reject(id))

	assert.Equal(t, StatusRejected, diffs[0].Status)
	assert.Empty(t, diffs[0].Override)
	assert.Equal(t, "value", diffs[0].EffectiveInstruction())
}

func TestTrackerEditEmptyOverride(t *testing.T) {
	tr, diffs := newTestTracker(t, 1)

	err := tr.Edit(diffs[0].ID, "   ")
	assert.ErrorIs(t, err, ErrEmptyOverride)
	assert.Equal(t, StatusProposed, diffs[0].Status)
}

func TestTrackerUnknownID(t *testing.T) {
	tr, _ := newTestTracker(t, 1)

	assert.ErrorIs(t, tr.Accept("diff-nope"), ErrUnknownDifference)
	assert.ErrorIs(t, tr.Reject("diff-nope"), ErrUnknownDifference)
	assert.ErrorIs(t, tr.Edit("diff-nope", "x"), ErrUnknownDifference)

	_, err := tr.Get("diff-nope")
	assert.ErrorIs(t, err, ErrUnknownDifference)
}

func TestTrackerFinalize(t *testing.T) {
	tr, diffs := newTestTracker(t, 3)

	require.NoError(t, tr.Accept(diffs[0].ID))
	require.NoError(t, tr.Reject(diffs[1].ID))
	require.NoError(t, tr.Edit(diffs[2].ID, "override"))

	// Edited still pending
	_, err := tr.Finalize()
	var ie *IncompleteError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, []string{diffs[2].ID}, ie.Pending)

	require.NoError(t, tr.Accept(diffs[2].ID))

	accepted, err := tr.Finalize()
	require.NoError(t, err)
	require.Len(t, accepted, 2)

	// Proposal order, with the override intact
	assert.Equal(t, diffs[0].ID, accepted[0].ID)
	assert.Equal(t, diffs[2].ID, accepted[1].ID)
	assert.Equal(t, "override", accepted[1].EffectiveInstruction())
}

func TestTrackerAllPreservesOrder(t *testing.T) {
	tr, diffs := newTestTracker(t, 4)

	all := tr.All()
	require.Len(t, all, 4)
	for i, d := range all {
		assert.Equal(t, diffs[i].ID, d.ID)
	}
}

func TestTrackerFinalizeEmptyBatch(t *testing.T) {
	tr := NewTracker(nil)

	accepted, err := tr.Finalize()
	require.NoError(t, err)
	assert.Empty(t, accepted)

	var ie *IncompleteError
	assert.False(t, errors.As(err, &ie))
}
