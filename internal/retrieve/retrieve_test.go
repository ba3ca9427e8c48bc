package retrieve

import (
	"context"
	"errors"
	"testing"

	"quarry/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeIndex struct {
	results   []store.Result
	docs      map[string]store.Document
	searchErr error
	getErr    error
}

func (f *fakeIndex) Search(_ context.Context, _, _ string, k int) ([]store.Result, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	if len(f.results) > k {
		return f.results[:k], nil
	}
	return f.results, nil
}

func (f *fakeIndex) Get(_ context.Context, _, unitID string) (store.Document, bool, error) {
	if f.getErr != nil {
		return store.Document{}, false, f.getErr
	}
	d, ok := f.docs[unitID]
	return d, ok, nil
}

type fakeGraph struct {
	edges map[string][]string
	err   error
}

func (f *fakeGraph) Neighbors(_ context.Context, _, unitID string) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.edges[unitID], nil
}

func result(id string) store.Result {
	return store.Result{
		UnitID: id,
		Body:   "body of " + id,
		Meta:   store.Metadata{Signature: "void " + id + " ()", Kind: "method"},
	}
}

func document(id string) store.Document {
	return store.Document{
		UnitID: id,
		Body:   "body of " + id,
		Meta:   store.Metadata{Signature: "void " + id + " ()", Kind: "method"},
	}
}

func ids(hits []Hit) []string {
	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.UnitID
	}
	return out
}

func TestPrimariesKeepSearchOrder(t *testing.T) {
	r := New(
		&fakeIndex{results: []store.Result{result("p2"), result("p1")}},
		&fakeGraph{},
	)

	hits, err := r.Retrieve(context.Background(), "proj", "q", 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"p2", "p1"}, ids(hits))
	for _, h := range hits {
		assert.False(t, h.IsDependency)
		assert.Empty(t, h.CalledFrom)
	}
}

func TestDependenciesAppendedAndAttributed(t *testing.T) {
	r := New(
		&fakeIndex{
			results: []store.Result{result("p1"), result("p2")},
			docs: map[string]store.Document{
				"x": document("x"),
				"y": document("y"),
				"z": document("z"),
			},
		},
		&fakeGraph{edges: map[string][]string{
			"p1": {"x", "y"},
			"p2": {"z"},
		}},
	)

	hits, err := r.Retrieve(context.Background(), "proj", "q", 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"p1", "p2", "x", "y", "z"}, ids(hits))

	assert.True(t, hits[2].IsDependency)
	assert.Equal(t, "p1", hits[2].CalledFrom)
	assert.Equal(t, "p1", hits[3].CalledFrom)
	assert.Equal(t, "p2", hits[4].CalledFrom)
	assert.Equal(t, "body of x", hits[2].Body)
}

func TestSharedDependencyEmittedOnce(t *testing.T) {
	r := New(
		&fakeIndex{
			results: []store.Result{result("p1"), result("p2")},
			docs:    map[string]store.Document{"x": document("x")},
		},
		&fakeGraph{edges: map[string][]string{
			"p1": {"x"},
			"p2": {"x"},
		}},
	)

	hits, err := r.Retrieve(context.Background(), "proj", "q", 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"p1", "p2", "x"}, ids(hits))
	assert.Equal(t, "p1", hits[2].CalledFrom, "attributed to the first primary that introduced it")
}

func TestExpansionIsOneHop(t *testing.T) {
	r := New(
		&fakeIndex{
			results: []store.Result{result("p1")},
			docs: map[string]store.Document{
				"x": document("x"),
				"y": document("y"),
			},
		},
		&fakeGraph{edges: map[string][]string{
			"p1": {"x"},
			"x":  {"y"},
		}},
	)

	hits, err := r.Retrieve(context.Background(), "proj", "q", 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"p1", "x"}, ids(hits), "callees of dependencies are not expanded")
}

func TestCyclesDoNotLoop(t *testing.T) {
	r := New(
		&fakeIndex{
			results: []store.Result{result("a")},
			docs: map[string]store.Document{
				"a": document("a"),
				"b": document("b"),
			},
		},
		&fakeGraph{edges: map[string][]string{
			"a": {"a", "b"},
			"b": {"a"},
		}},
	)

	hits, err := r.Retrieve(context.Background(), "proj", "q", 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids(hits), "self-loop collapses into the primary itself")
}

func TestPrimaryNotRepeatedAsDependency(t *testing.T) {
	r := New(
		&fakeIndex{
			results: []store.Result{result("p1"), result("p2")},
			docs:    map[string]store.Document{"p2": document("p2")},
		},
		&fakeGraph{edges: map[string][]string{"p1": {"p2"}}},
	)

	hits, err := r.Retrieve(context.Background(), "proj", "q", 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"p1", "p2"}, ids(hits))
	assert.False(t, hits[1].IsDependency)
}

func TestMissingDependencyDocumentSkipped(t *testing.T) {
	r := New(
		&fakeIndex{
			results: []store.Result{result("p1")},
			docs:    map[string]store.Document{"y": document("y")},
		},
		&fakeGraph{edges: map[string][]string{"p1": {"x", "y"}}},
	)

	hits, err := r.Retrieve(context.Background(), "proj", "q", 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"p1", "y"}, ids(hits))
}

func TestSearchErrorYieldsRetrievalError(t *testing.T) {
	boom := errors.New("index down")
	r := New(&fakeIndex{searchErr: boom}, &fakeGraph{})

	hits, err := r.Retrieve(context.Background(), "proj", "q", 5)
	require.Error(t, err)
	assert.Nil(t, hits, "no partial results on failure")

	var rerr *RetrievalError
	require.ErrorAs(t, err, &rerr)
	assert.ErrorIs(t, err, boom)
}

func TestGetErrorYieldsRetrievalError(t *testing.T) {
	boom := errors.New("index down")
	r := New(
		&fakeIndex{results: []store.Result{result("p1")}, getErr: boom},
		&fakeGraph{edges: map[string][]string{"p1": {"x"}}},
	)

	hits, err := r.Retrieve(context.Background(), "proj", "q", 5)
	require.Error(t, err)
	assert.Nil(t, hits)
	assert.ErrorIs(t, err, boom)
}

func TestGraphErrorYieldsRetrievalError(t *testing.T) {
	boom := errors.New("graph down")
	r := New(
		&fakeIndex{results: []store.Result{result("p1")}},
		&fakeGraph{err: boom},
	)

	_, err := r.Retrieve(context.Background(), "proj", "q", 5)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestDefaultK(t *testing.T) {
	idx := &fakeIndex{results: []store.Result{
		result("a"), result("b"), result("c"), result("d"), result("e"), result("f"),
	}}
	r := New(idx, &fakeGraph{})

	hits, err := r.Retrieve(context.Background(), "proj", "q", 0)
	require.NoError(t, err)
	assert.Len(t, hits, DefaultK)
}
