package postgres_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/leaselens/leaselens/internal/domain/analysis"
	"github.com/leaselens/leaselens/internal/domain/document"
	"github.com/leaselens/leaselens/internal/infrastructure/postgres"
	apperrors "github.com/leaselens/leaselens/pkg/errors"
)

// startPostgres launches a PostgreSQL 16 container, applies the schema from
// migrations/, and returns a connected pool.
func startPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "leaselens_test",
		},
		WaitingFor: wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dsn := fmt.Sprintf("postgres://test:test@%s:%s/leaselens_test?sslmode=disable", host, port.Port())
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	applySchema(t, pool)
	return pool
}

func applySchema(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()
	ctx := context.Background()

	for _, file := range []string{
		"../../../migrations/000001_create_documents.up.sql",
		"../../../migrations/000002_create_analysis_reports.up.sql",
	} {
		ddl, err := os.ReadFile(file)
		require.NoError(t, err)
		_, err = pool.Exec(ctx, string(ddl))
		require.NoError(t, err)
	}
}

func TestDocumentRepositoryRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container-backed test in short mode")
	}

	pool := startPostgres(t)
	repo := postgres.NewDocumentRepository(pool, nil)
	ctx := context.Background()

	doc := document.New("lease.pdf", "documents/abc.pdf", 2048)
	doc.PageCount = 3
	doc.Redaction = document.RedactionSummary{"ssn": 1, "email": 2}
	doc.AddWarning("redaction skipped on page 2")

	require.NoError(t, repo.Create(ctx, doc))

	err := repo.Create(ctx, doc)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeDocumentAlreadyExists))

	got, err := repo.GetByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, doc.Filename, got.Filename)
	assert.Equal(t, document.StatusUploaded, got.Status)
	assert.Equal(t, doc.Redaction, got.Redaction)
	assert.Equal(t, doc.Warnings, got.Warnings)
	assert.Nil(t, got.Metadata)

	got.SetMetadata(document.LeaseMetadata{MonthlyRent: "$2,400"})
	got.TextObjectKey = "text/abc.txt"
	require.NoError(t, repo.Update(ctx, got))

	reloaded, err := repo.GetByID(ctx, doc.ID)
	require.NoError(t, err)
	require.NotNil(t, reloaded.Metadata)
	assert.Equal(t, "$2,400", reloaded.Metadata.MonthlyRent)
	assert.Equal(t, "text/abc.txt", reloaded.TextObjectKey)
}

func TestDocumentRepositoryStatusAndList(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container-backed test in short mode")
	}

	pool := startPostgres(t)
	repo := postgres.NewDocumentRepository(pool, nil)
	ctx := context.Background()

	first := document.New("first.pdf", "documents/first.pdf", 100)
	require.NoError(t, repo.Create(ctx, first))
	second := document.New("second.pdf", "documents/second.pdf", 200)
	second.CreatedAt = second.CreatedAt.Add(time.Second)
	require.NoError(t, repo.Create(ctx, second))

	require.NoError(t, repo.UpdateStatus(ctx, first.ID, document.StatusProcessing, 40, ""))

	got, err := repo.GetByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, document.StatusProcessing, got.Status)
	assert.Equal(t, 40, got.Progress)

	err = repo.UpdateStatus(ctx, "no-such-id", document.StatusProcessing, 0, "")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeDocumentNotFound))

	all, err := repo.List(ctx, document.ListFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, second.ID, all[0].ID, "newest first")

	processing, err := repo.List(ctx, document.ListFilter{Status: document.StatusProcessing})
	require.NoError(t, err)
	require.Len(t, processing, 1)
	assert.Equal(t, first.ID, processing[0].ID)

	limited, err := repo.List(ctx, document.ListFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestReportStoreAndCascadeDelete(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container-backed test in short mode")
	}

	pool := startPostgres(t)
	docs := postgres.NewDocumentRepository(pool, nil)
	reports := postgres.NewReportStore(pool, nil)
	ctx := context.Background()

	doc := document.New("lease.pdf", "documents/r.pdf", 100)
	require.NoError(t, docs.Create(ctx, doc))

	report := &analysis.Report{PowerImbalanceScore: 50, SeverityLevel: analysis.SeverityHigh}
	enhanced := &analysis.EnhancedReport{DocumentID: doc.ID}
	require.NoError(t, reports.Save(ctx, doc.ID, report, enhanced))
	// Upsert replaces.
	report.PowerImbalanceScore = 60
	require.NoError(t, reports.Save(ctx, doc.ID, report, enhanced))

	gotReport, gotEnhanced, err := reports.Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, 60, gotReport.PowerImbalanceScore)
	assert.Equal(t, doc.ID, gotEnhanced.DocumentID)

	_, _, err = reports.Get(ctx, "no-such-id")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeAnalysisNotFound))

	require.NoError(t, docs.Delete(ctx, doc.ID))
	_, _, err = reports.Get(ctx, doc.ID)
	require.Error(t, err, "reports cascade with the document row")
}
