package difference

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCategory(t *testing.T) {
	tests := []struct {
		input string
		want  Category
		ok    bool
	}{
		{"constant-value", CategoryConstantValue, true},
		{"identifier-rename", CategoryIdentifierRename, true},
		{"config-value", CategoryConfigValue, true},
		{"structural", CategoryStructural, true},
		{"other", CategoryOther, true},
		{"  Structural ", CategoryStructural, true},
		{"CONSTANT-VALUE", CategoryConstantValue, true},
		{"refactor", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParseCategory(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewDifference(t *testing.T) {
	d := New("threshold differs", CategoryConstantValue,
		[]Origin{{Path: "config.go", HunkIndex: 0}}, "50")

	assert.True(t, strings.HasPrefix(d.ID, "diff-"))
	assert.Equal(t, StatusProposed, d.Status)
	assert.False(t, d.Terminal())
	assert.Equal(t, "50", d.EffectiveInstruction())
}

func TestEffectiveInstruction(t *testing.T) {
	d := New("rename handler", CategoryIdentifierRename, nil, "processEvent")
	assert.Equal(t, "processEvent", d.EffectiveInstruction())

	d.Override = "handleEvent"
	assert.Equal(t, "handleEvent", d.EffectiveInstruction())
}

func TestDedupKey(t *testing.T) {
	origins := []Origin{{Path: "a.go", HunkIndex: 1}}

	a := New("threshold is larger", CategoryConstantValue, origins, "50")
	b := New("the constant should be 50", CategoryConstantValue, origins, "50")
	c := New("threshold is larger", CategoryConstantValue, origins, "60")

	// Description wording does not matter
	assert.Equal(t, a.DedupKey(), b.DedupKey())
	// The target value does
	assert.NotEqual(t, a.DedupKey(), c.DedupKey())

	// An override changes the effective instruction, hence the key
	require.NotEqual(t, a.DedupKey(), c.DedupKey())
	a.Override = "60"
	assert.Equal(t, a.DedupKey(), c.DedupKey())
}
