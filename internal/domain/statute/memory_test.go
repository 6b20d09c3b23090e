package statute

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leaselens/leaselens/pkg/errors"
)

type fixedEmbedder struct {
	vec []float32
}

func (f fixedEmbedder) Embed(context.Context, string) ([]float32, error) {
	return f.vec, nil
}

func writeCorpus(t *testing.T, sections []Section) string {
	t.Helper()
	data, err := json.Marshal(sections)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "statutes.json")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestMemoryIndexSearchOrdersBySimilarity(t *testing.T) {
	path := writeCorpus(t, []Section{
		{ID: "far", Chapter: "186", Section: "Section 12", Embedding: []float32{0, 1}},
		{ID: "near", Chapter: "186", Section: "Section 15B", Embedding: []float32{1, 0}},
		{ID: "mid", Chapter: "93A", Section: "Section 9", Embedding: []float32{1, 1}},
	})

	idx := NewMemoryIndex(fixedEmbedder{vec: []float32{1, 0}}, nil)
	require.NoError(t, idx.LoadFile(path))

	got, err := idx.Search(context.Background(), "security deposit", 3)
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, "near", got[0].ID)
	assert.Equal(t, "mid", got[1].ID)
	assert.Equal(t, "far", got[2].ID)
	assert.InDelta(t, 1.0, got[0].Similarity, 1e-9)
	assert.Greater(t, got[1].Similarity, got[2].Similarity)
	assert.Nil(t, got[0].Embedding)
}

func TestMemoryIndexEqualScoresKeepLoadOrder(t *testing.T) {
	path := writeCorpus(t, []Section{
		{ID: "first", Embedding: []float32{1, 1}},
		{ID: "second", Embedding: []float32{2, 2}},
		{ID: "third", Embedding: []float32{1, 1}},
	})

	idx := NewMemoryIndex(fixedEmbedder{vec: []float32{1, 1}}, nil)
	require.NoError(t, idx.LoadFile(path))

	got, err := idx.Search(context.Background(), "anything", 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"first", "second", "third"}, []string{got[0].ID, got[1].ID, got[2].ID})
}

func TestMemoryIndexSkipsUnembeddedSections(t *testing.T) {
	path := writeCorpus(t, []Section{
		{ID: "embedded", Embedding: []float32{1, 0}},
		{ID: "raw"},
	})

	idx := NewMemoryIndex(fixedEmbedder{vec: []float32{1, 0}}, nil)
	require.NoError(t, idx.LoadFile(path))
	assert.Equal(t, 1, idx.Len())
}

func TestMemoryIndexTopKClamped(t *testing.T) {
	path := writeCorpus(t, []Section{
		{ID: "only", Embedding: []float32{1, 0}},
	})

	idx := NewMemoryIndex(fixedEmbedder{vec: []float32{1, 0}}, nil)
	require.NoError(t, idx.LoadFile(path))

	got, err := idx.Search(context.Background(), "q", 10)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	got, err = idx.Search(context.Background(), "q", 0)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMemoryIndexDimensionMismatch(t *testing.T) {
	path := writeCorpus(t, []Section{
		{ID: "s", Embedding: []float32{1, 0, 0}},
	})

	idx := NewMemoryIndex(fixedEmbedder{vec: []float32{1, 0}}, nil)
	require.NoError(t, idx.LoadFile(path))

	_, err := idx.Search(context.Background(), "q", 1)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeDimensionMismatch))
	assert.Contains(t, err.Error(), "section s")
}

func TestMemoryIndexLoadFailures(t *testing.T) {
	idx := NewMemoryIndex(fixedEmbedder{vec: []float32{1}}, nil)

	err := idx.LoadFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.True(t, errors.IsCode(err, errors.ErrCodeCorpusLoadFailed))

	empty := writeCorpus(t, []Section{{ID: "raw-only"}})
	err = idx.LoadFile(empty)
	assert.True(t, errors.IsCode(err, errors.ErrCodeCorpusEmpty))
}

func TestSectionCitation(t *testing.T) {
	s := Section{Chapter: "186", Section: "Section 15B"}
	assert.Equal(t, "Chapter 186, Section 15B", s.Citation())
}
