package milvus

import (
	"context"

	"github.com/milvus-io/milvus-sdk-go/v2/entity"

	"github.com/leaselens/leaselens/internal/domain/statute"
	"github.com/leaselens/leaselens/internal/infrastructure/logging"
	"github.com/leaselens/leaselens/pkg/errors"
)

const (
	maxIDLength    = 128
	maxTextLength  = 65535
	maxTitleLength = 512
)

// EnsureCollection creates the statute collection, its flat index, and loads
// it into memory.  Existing collections are loaded as-is.
func (s *Searcher) EnsureCollection(ctx context.Context, dim int) error {
	exists, err := s.api.HasCollection(ctx, s.collection)
	if err != nil {
		return errors.Wrapf(err, errors.ErrCodeSearchFailed, "check collection %s", s.collection)
	}

	if !exists {
		schema := entity.NewSchema().
			WithName(s.collection).
			WithDescription("statute sections with embeddings").
			WithField(entity.NewField().WithName(fieldID).WithDataType(entity.FieldTypeVarChar).WithMaxLength(maxIDLength).WithIsPrimaryKey(true)).
			WithField(entity.NewField().WithName(fieldChapter).WithDataType(entity.FieldTypeVarChar).WithMaxLength(maxTitleLength)).
			WithField(entity.NewField().WithName(fieldSection).WithDataType(entity.FieldTypeVarChar).WithMaxLength(maxTitleLength)).
			WithField(entity.NewField().WithName(fieldSectionTitle).WithDataType(entity.FieldTypeVarChar).WithMaxLength(maxTitleLength)).
			WithField(entity.NewField().WithName(fieldText).WithDataType(entity.FieldTypeVarChar).WithMaxLength(maxTextLength)).
			WithField(entity.NewField().WithName(fieldChunkIndex).WithDataType(entity.FieldTypeInt64)).
			WithField(entity.NewField().WithName(fieldTotalChunks).WithDataType(entity.FieldTypeInt64)).
			WithField(entity.NewField().WithName(fieldEmbedding).WithDataType(entity.FieldTypeFloatVector).WithDim(int64(dim)))

		if err := s.api.CreateCollection(ctx, schema, 1); err != nil {
			return errors.Wrapf(err, errors.ErrCodeSearchFailed, "create collection %s", s.collection)
		}

		idx, err := entity.NewIndexFlat(entity.COSINE)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeSearchFailed, "build flat index")
		}
		if err := s.api.CreateIndex(ctx, s.collection, fieldEmbedding, idx, false); err != nil {
			return errors.Wrapf(err, errors.ErrCodeSearchFailed, "create index on %s", s.collection)
		}
		s.log.Info("statute collection created",
			logging.String("collection", s.collection),
			logging.Int("dim", dim))
	}

	if err := s.api.LoadCollection(ctx, s.collection, false); err != nil {
		return errors.Wrapf(err, errors.ErrCodeSearchFailed, "load collection %s", s.collection)
	}
	return nil
}

// InsertSections writes corpus sections, skipping entries without embeddings
// the same way the in-memory index does.
func (s *Searcher) InsertSections(ctx context.Context, sections []statute.Section) (int, error) {
	var (
		ids         []string
		chapters    []string
		secs        []string
		titles      []string
		texts       []string
		chunkIdx    []int64
		totalChunks []int64
		vectors     [][]float32
		dim         int
	)
	for _, section := range sections {
		if len(section.Embedding) == 0 {
			continue
		}
		if dim == 0 {
			dim = len(section.Embedding)
		}
		if len(section.Embedding) != dim {
			return 0, errors.Newf(errors.ErrCodeDimensionMismatch,
				"section %s embedding has %d dimensions, expected %d", section.ID, len(section.Embedding), dim)
		}
		ids = append(ids, section.ID)
		chapters = append(chapters, section.Chapter)
		secs = append(secs, section.Section)
		titles = append(titles, section.SectionTitle)
		texts = append(texts, section.Text)
		chunkIdx = append(chunkIdx, int64(section.ChunkIndex))
		totalChunks = append(totalChunks, int64(section.TotalChunks))
		vectors = append(vectors, section.Embedding)
	}
	if len(ids) == 0 {
		return 0, errors.New(errors.ErrCodeCorpusEmpty, "no sections with embeddings to insert")
	}

	_, err := s.api.Insert(ctx, s.collection, "",
		entity.NewColumnVarChar(fieldID, ids),
		entity.NewColumnVarChar(fieldChapter, chapters),
		entity.NewColumnVarChar(fieldSection, secs),
		entity.NewColumnVarChar(fieldSectionTitle, titles),
		entity.NewColumnVarChar(fieldText, texts),
		entity.NewColumnInt64(fieldChunkIndex, chunkIdx),
		entity.NewColumnInt64(fieldTotalChunks, totalChunks),
		entity.NewColumnFloatVector(fieldEmbedding, dim, vectors),
	)
	if err != nil {
		return 0, errors.Wrapf(err, errors.ErrCodeSearchFailed, "insert into %s", s.collection)
	}

	if err := s.api.Flush(ctx, s.collection, false); err != nil {
		return 0, errors.Wrapf(err, errors.ErrCodeSearchFailed, "flush %s", s.collection)
	}
	return len(ids), nil
}
