// Package milvus is the optional vector backend for statute search, selected
// with `search.backend: milvus`.  The default in-memory index remains the
// reference implementation; this backend serves corpora too large to scan.
package milvus

import (
	"context"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"

	"github.com/leaselens/leaselens/internal/domain/statute"
	"github.com/leaselens/leaselens/internal/infrastructure/logging"
	"github.com/leaselens/leaselens/pkg/errors"
)

// milvusAPI is the slice of client.Client the package uses.
type milvusAPI interface {
	HasCollection(ctx context.Context, collName string) (bool, error)
	CreateCollection(ctx context.Context, schema *entity.Schema, shardNum int32, opts ...client.CreateCollectionOption) error
	CreateIndex(ctx context.Context, collName, fieldName string, idx entity.Index, async bool, opts ...client.IndexOption) error
	LoadCollection(ctx context.Context, collName string, async bool, opts ...client.LoadCollectionOption) error
	Insert(ctx context.Context, collName, partitionName string, columns ...entity.Column) (entity.Column, error)
	Flush(ctx context.Context, collName string, async bool, opts ...client.FlushOption) error
	Search(ctx context.Context, collName string, partitions []string, expr string, outputFields []string, vectors []entity.Vector, vectorField string, metricType entity.MetricType, topK int, sp entity.SearchParam, opts ...client.SearchQueryOptionFunc) ([]client.SearchResult, error)
	Close() error
}

const (
	fieldID           = "id"
	fieldChapter      = "chapter"
	fieldSection      = "section"
	fieldSectionTitle = "section_title"
	fieldText         = "text"
	fieldChunkIndex   = "chunk_index"
	fieldTotalChunks  = "total_chunks"
	fieldEmbedding    = "embedding"
)

var outputFields = []string{
	fieldID, fieldChapter, fieldSection, fieldSectionTitle,
	fieldText, fieldChunkIndex, fieldTotalChunks,
}

// Searcher implements statute.Searcher over a Milvus collection.
type Searcher struct {
	api        milvusAPI
	embedder   statute.Embedder
	collection string
	log        logging.Logger
}

// Connect dials Milvus and returns a Searcher over cfg.Collection.
func Connect(ctx context.Context, addr, collection string, embedder statute.Embedder, log logging.Logger) (*Searcher, error) {
	if log == nil {
		log = logging.NewNopLogger()
	}
	c, err := client.NewClient(ctx, client.Config{Address: addr})
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrCodeSearchFailed, "connect to milvus at %s", addr)
	}
	return &Searcher{
		api:        c,
		embedder:   embedder,
		collection: collection,
		log:        log.Named("milvus"),
	}, nil
}

// Close releases the client connection.
func (s *Searcher) Close() error {
	return s.api.Close()
}

// Search implements statute.Searcher: embed the query, run a cosine vector
// search, and map hits back to sections with their similarity scores.
func (s *Searcher) Search(ctx context.Context, query string, topK int) ([]statute.Section, error) {
	if topK <= 0 {
		return nil, nil
	}

	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeEmbeddingFailed, "embed search query")
	}

	sp, _ := entity.NewIndexFlatSearchParam()
	results, err := s.api.Search(ctx, s.collection, nil, "", outputFields,
		[]entity.Vector{entity.FloatVector(vector)},
		fieldEmbedding, entity.COSINE, topK, sp)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSearchFailed, "milvus search")
	}

	var sections []statute.Section
	for _, result := range results {
		hits, err := resultSections(result)
		if err != nil {
			return nil, err
		}
		sections = append(sections, hits...)
	}
	return sections, nil
}

func resultSections(result client.SearchResult) ([]statute.Section, error) {
	sections := make([]statute.Section, 0, result.ResultCount)
	for i := 0; i < result.ResultCount; i++ {
		section := statute.Section{
			ID:           stringAt(result.Fields.GetColumn(fieldID), i),
			Chapter:      stringAt(result.Fields.GetColumn(fieldChapter), i),
			Section:      stringAt(result.Fields.GetColumn(fieldSection), i),
			SectionTitle: stringAt(result.Fields.GetColumn(fieldSectionTitle), i),
			Text:         stringAt(result.Fields.GetColumn(fieldText), i),
			ChunkIndex:   intAt(result.Fields.GetColumn(fieldChunkIndex), i),
			TotalChunks:  intAt(result.Fields.GetColumn(fieldTotalChunks), i),
		}
		if i < len(result.Scores) {
			section.Similarity = float64(result.Scores[i])
		}
		sections = append(sections, section)
	}
	return sections, nil
}

func stringAt(col entity.Column, i int) string {
	if col == nil {
		return ""
	}
	v, err := col.GetAsString(i)
	if err != nil {
		return ""
	}
	return v
}

func intAt(col entity.Column, i int) int {
	if col == nil {
		return 0
	}
	v, err := col.GetAsInt64(i)
	if err != nil {
		return 0
	}
	return int(v)
}
