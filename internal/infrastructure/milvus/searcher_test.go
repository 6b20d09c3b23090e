package milvus

import (
	"context"
	"testing"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leaselens/leaselens/internal/domain/statute"
	"github.com/leaselens/leaselens/internal/infrastructure/logging"
	"github.com/leaselens/leaselens/pkg/errors"
)

// The SDK client must keep satisfying the narrowed interface.
var _ milvusAPI = (client.Client)(nil)

type fakeMilvus struct {
	hasCollection bool
	created       bool
	indexed       bool
	loaded        bool
	inserted      []entity.Column
	flushed       bool

	searchVectors []entity.Vector
	searchTopK    int
	searchResults []client.SearchResult
}

func (f *fakeMilvus) HasCollection(ctx context.Context, collName string) (bool, error) {
	return f.hasCollection, nil
}

func (f *fakeMilvus) CreateCollection(ctx context.Context, schema *entity.Schema, shardNum int32, opts ...client.CreateCollectionOption) error {
	f.created = true
	return nil
}

func (f *fakeMilvus) CreateIndex(ctx context.Context, collName, fieldName string, idx entity.Index, async bool, opts ...client.IndexOption) error {
	f.indexed = true
	return nil
}

func (f *fakeMilvus) LoadCollection(ctx context.Context, collName string, async bool, opts ...client.LoadCollectionOption) error {
	f.loaded = true
	return nil
}

func (f *fakeMilvus) Insert(ctx context.Context, collName, partitionName string, columns ...entity.Column) (entity.Column, error) {
	f.inserted = columns
	return nil, nil
}

func (f *fakeMilvus) Flush(ctx context.Context, collName string, async bool, opts ...client.FlushOption) error {
	f.flushed = true
	return nil
}

func (f *fakeMilvus) Search(ctx context.Context, collName string, partitions []string, expr string, outputFields []string, vectors []entity.Vector, vectorField string, metricType entity.MetricType, topK int, sp entity.SearchParam, opts ...client.SearchQueryOptionFunc) ([]client.SearchResult, error) {
	f.searchVectors = vectors
	f.searchTopK = topK
	return f.searchResults, nil
}

func (f *fakeMilvus) Close() error { return nil }

type fixedEmbedder struct{ vec []float32 }

func (e fixedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return e.vec, nil
}

func newTestSearcher(api *fakeMilvus) *Searcher {
	return &Searcher{
		api:        api,
		embedder:   fixedEmbedder{vec: []float32{0.1, 0.2}},
		collection: "statutes",
		log:        logging.NewNopLogger(),
	}
}

func TestSearchMapsHits(t *testing.T) {
	api := &fakeMilvus{searchResults: []client.SearchResult{{
		ResultCount: 2,
		Fields: client.ResultSet{
			entity.NewColumnVarChar(fieldID, []string{"186-15b-1", "93a-2-1"}),
			entity.NewColumnVarChar(fieldChapter, []string{"186", "93A"}),
			entity.NewColumnVarChar(fieldSection, []string{"Section 15B", "Section 2"}),
			entity.NewColumnVarChar(fieldSectionTitle, []string{"Security deposits", "Unfair practices"}),
			entity.NewColumnVarChar(fieldText, []string{"deposit text", "93a text"}),
			entity.NewColumnInt64(fieldChunkIndex, []int64{1, 1}),
			entity.NewColumnInt64(fieldTotalChunks, []int64{2, 1}),
		},
		Scores: []float32{0.93, 0.71},
	}}}
	s := newTestSearcher(api)

	sections, err := s.Search(context.Background(), "security deposit", 5)
	require.NoError(t, err)
	require.Len(t, sections, 2)

	assert.Equal(t, 5, api.searchTopK)
	require.Len(t, api.searchVectors, 1)

	first := sections[0]
	assert.Equal(t, "186-15b-1", first.ID)
	assert.Equal(t, "186", first.Chapter)
	assert.Equal(t, "Section 15B", first.Section)
	assert.Equal(t, "Security deposits", first.SectionTitle)
	assert.Equal(t, "deposit text", first.Text)
	assert.Equal(t, 1, first.ChunkIndex)
	assert.Equal(t, 2, first.TotalChunks)
	assert.InDelta(t, 0.93, first.Similarity, 1e-6)
	assert.Equal(t, "Chapter 186, Section 15B", first.Citation())
}

func TestSearchZeroTopK(t *testing.T) {
	s := newTestSearcher(&fakeMilvus{})
	sections, err := s.Search(context.Background(), "anything", 0)
	require.NoError(t, err)
	assert.Nil(t, sections)
}

func TestEnsureCollectionCreatesWhenMissing(t *testing.T) {
	api := &fakeMilvus{}
	s := newTestSearcher(api)

	require.NoError(t, s.EnsureCollection(context.Background(), 2))
	assert.True(t, api.created)
	assert.True(t, api.indexed)
	assert.True(t, api.loaded)
}

func TestEnsureCollectionLoadsExisting(t *testing.T) {
	api := &fakeMilvus{hasCollection: true}
	s := newTestSearcher(api)

	require.NoError(t, s.EnsureCollection(context.Background(), 2))
	assert.False(t, api.created)
	assert.True(t, api.loaded)
}

func TestInsertSectionsSkipsUnembedded(t *testing.T) {
	api := &fakeMilvus{}
	s := newTestSearcher(api)

	n, err := s.InsertSections(context.Background(), []statute.Section{
		{ID: "a", Embedding: []float32{1, 0}},
		{ID: "unembedded"},
		{ID: "b", Embedding: []float32{0, 1}},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.True(t, api.flushed)
	require.Len(t, api.inserted, 8)
}

func TestInsertSectionsDimensionMismatch(t *testing.T) {
	s := newTestSearcher(&fakeMilvus{})

	_, err := s.InsertSections(context.Background(), []statute.Section{
		{ID: "a", Embedding: []float32{1, 0}},
		{ID: "b", Embedding: []float32{1, 0, 0}},
	})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeDimensionMismatch))
}

func TestInsertSectionsEmptyCorpus(t *testing.T) {
	s := newTestSearcher(&fakeMilvus{})

	_, err := s.InsertSections(context.Background(), []statute.Section{{ID: "unembedded"}})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeCorpusEmpty))
}
