package changeset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePatch = `@@ -1,4 +1,4 @@
 package main

-const threshold = 10
+const threshold = 50

@@ -20,3 +20,4 @@ func main() {
 	if count > threshold {
 		flush()
 	}
+	log.Println("flushed")
`

func TestParseFileEdit(t *testing.T) {
	fe, err := ParseFileEdit("main.go", "", "modified", samplePatch, 2, 1)
	require.NoError(t, err)

	assert.Equal(t, "main.go", fe.Path)
	assert.Equal(t, KindModified, fe.Kind)
	assert.Equal(t, 2, fe.Additions)
	assert.Equal(t, 1, fe.Deletions)
	require.Len(t, fe.Hunks, 2)

	first := fe.Hunks[0]
	assert.Equal(t, 1, first.OldStart)
	assert.Equal(t, 4, first.OldLines)
	assert.Equal(t, "package main\n\nconst threshold = 10\n\n", first.OldText)
	assert.Equal(t, "package main\n\nconst threshold = 50\n\n", first.NewText)

	second := fe.Hunks[1]
	assert.Equal(t, 20, second.OldStart)
	assert.Equal(t, 3, second.OldLines)
	assert.Equal(t, 4, second.NewLines)
	assert.Contains(t, second.NewText, "log.Println(\"flushed\")\n")
	assert.NotContains(t, second.OldText, "log.Println")
}

func TestParseFileEditRenamed(t *testing.T) {
	fe, err := ParseFileEdit("pkg/new.go", "pkg/old.go", "renamed", "", 0, 0)
	require.NoError(t, err)

	assert.Equal(t, KindRenamed, fe.Kind)
	assert.Equal(t, "pkg/old.go", fe.OldPath)
	assert.Empty(t, fe.Hunks)
}

func TestParseFileEditEmptyPatch(t *testing.T) {
	// Binary files come back without a textual patch
	fe, err := ParseFileEdit("logo.png", "", "added", "", 0, 0)
	require.NoError(t, err)

	assert.Equal(t, KindAdded, fe.Kind)
	assert.Empty(t, fe.Hunks)
}

func TestParseFileEditMalformedPatch(t *testing.T) {
	_, err := ParseFileEdit("main.go", "", "modified", "not a patch at all", 0, 0)
	require.Error(t, err)
}
