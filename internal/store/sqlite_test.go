package store

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// wordEmbedder is a deterministic bag-of-words embedder for tests: each word
// bumps one dimension, so texts sharing words land close together.
type wordEmbedder struct{}

func (wordEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec := make([]float32, 768)
		for _, w := range strings.Fields(strings.ToLower(text)) {
			h := 0
			for _, c := range w {
				h = (h*31 + int(c)) % 768
			}
			vec[h]++
		}
		out[i] = vec
	}
	return out, nil
}

func openTestIndex(t *testing.T) *SQLiteIndex {
	t.Helper()
	idx, err := Open(filepath.Join(t.TempDir(), "index.db"), wordEmbedder{})
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })
	return idx
}

func doc(id, text string, calls ...string) Document {
	return Document{
		UnitID: id,
		Text:   text,
		Meta: Metadata{
			Signature: "void " + id + " ()",
			Kind:      "method",
			FilePath:  "Test.java",
			StartLine: 1,
			EndLine:   5,
			HasDoc:    true,
			Calls:     calls,
		},
	}
}

func TestUpsertAndGet(t *testing.T) {
	idx := openTestIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.Upsert(ctx, "proj", []Document{
		doc("a", "create a new user account", "validate", "save"),
		doc("b", "validate an email address"),
	}))

	got, ok, err := idx.Get(ctx, "proj", "a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "a", got.UnitID)
	assert.Equal(t, "void a ()", got.Meta.Signature)
	assert.Equal(t, []string{"validate", "save"}, got.Meta.Calls)
	assert.True(t, got.Meta.HasDoc)
	assert.Equal(t, "create a new user account", got.Text)

	_, ok, err = idx.Get(ctx, "proj", "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = idx.Get(ctx, "other", "a")
	require.NoError(t, err)
	assert.False(t, ok, "projects must not leak into each other")
}

func TestUpsertReplacesExisting(t *testing.T) {
	idx := openTestIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.Upsert(ctx, "proj", []Document{doc("a", "old text")}))
	require.NoError(t, idx.Upsert(ctx, "proj", []Document{doc("a", "new text")}))

	got, ok, err := idx.Get(ctx, "proj", "a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "new text", got.Text)
}

func TestSearchOrdersBySimilarity(t *testing.T) {
	idx := openTestIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.Upsert(ctx, "proj", []Document{
		doc("create", "create a new user account in the system"),
		doc("validate", "validate an email address format"),
		doc("delete", "remove stale sessions from the cache"),
	}))

	results, err := idx.Search(ctx, "proj", "create a new user", 2)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "create", results[0].UnitID)
	assert.LessOrEqual(t, len(results), 2)
}

func TestSearchIsProjectScoped(t *testing.T) {
	idx := openTestIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.Upsert(ctx, "p1", []Document{doc("a", "alpha beta gamma")}))
	require.NoError(t, idx.Upsert(ctx, "p2", []Document{doc("b", "alpha beta gamma")}))

	results, err := idx.Search(ctx, "p1", "alpha beta gamma", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0].UnitID)
}

func TestDeleteProject(t *testing.T) {
	idx := openTestIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.Upsert(ctx, "proj", []Document{doc("a", "some text")}))
	require.NoError(t, idx.DeleteProject(ctx, "proj"))

	_, ok, err := idx.Get(ctx, "proj", "a")
	require.NoError(t, err)
	assert.False(t, ok)

	// Idempotent.
	require.NoError(t, idx.DeleteProject(ctx, "proj"))
}

func TestCallsSerializationRoundTrip(t *testing.T) {
	assert.Nil(t, splitCalls(""))
	assert.Equal(t, []string{"a", "b", "a"}, splitCalls(joinCalls([]string{"a", "b", "a"})))
}
