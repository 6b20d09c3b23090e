package postgres

import (
	"context"
	"encoding/json"
	goerrors "errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/leaselens/leaselens/internal/domain/analysis"
	"github.com/leaselens/leaselens/internal/infrastructure/logging"
	"github.com/leaselens/leaselens/pkg/errors"
)

// ReportStore is the pgx implementation of analysis.Store.  Both report
// shapes are written in one upsert so a reader never sees a partial pair.
type ReportStore struct {
	pool *pgxpool.Pool
	log  logging.Logger
}

// NewReportStore constructs a ReportStore over pool.
func NewReportStore(pool *pgxpool.Pool, log logging.Logger) *ReportStore {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &ReportStore{pool: pool, log: log.Named("report_store")}
}

// Save upserts the report pair for documentID.
func (s *ReportStore) Save(ctx context.Context, documentID string, report *analysis.Report, enhanced *analysis.EnhancedReport) error {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "encode report")
	}
	enhancedJSON, err := json.Marshal(enhanced)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "encode enhanced report")
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO analysis_reports (document_id, report, enhanced, created_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (document_id) DO UPDATE
		SET report = EXCLUDED.report, enhanced = EXCLUDED.enhanced, created_at = now()`,
		documentID, reportJSON, enhancedJSON,
	)
	if err != nil {
		return errors.Wrapf(err, errors.ErrCodeDatabaseError, "save report for document %s", documentID)
	}

	s.log.Debug("analysis report saved", logging.String("document_id", documentID))
	return nil
}

// Get loads the report pair for documentID.
func (s *ReportStore) Get(ctx context.Context, documentID string) (*analysis.Report, *analysis.EnhancedReport, error) {
	var reportJSON, enhancedJSON []byte
	err := s.pool.QueryRow(ctx,
		`SELECT report, enhanced FROM analysis_reports WHERE document_id = $1`,
		documentID,
	).Scan(&reportJSON, &enhancedJSON)
	if err != nil {
		if goerrors.Is(err, pgx.ErrNoRows) {
			return nil, nil, errors.Newf(errors.ErrCodeAnalysisNotFound, "no analysis report for document %s", documentID)
		}
		return nil, nil, errors.Wrapf(err, errors.ErrCodeDatabaseError, "load report for document %s", documentID)
	}

	var report analysis.Report
	if err := json.Unmarshal(reportJSON, &report); err != nil {
		return nil, nil, errors.Wrap(err, errors.ErrCodeSerialization, "decode report")
	}
	var enhanced analysis.EnhancedReport
	if err := json.Unmarshal(enhancedJSON, &enhanced); err != nil {
		return nil, nil, errors.Wrap(err, errors.ErrCodeSerialization, "decode enhanced report")
	}
	return &report, &enhanced, nil
}

// Delete removes the stored reports for documentID.  Deleting a document id
// with no report is not an error.
func (s *ReportStore) Delete(ctx context.Context, documentID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM analysis_reports WHERE document_id = $1`, documentID)
	if err != nil {
		return errors.Wrapf(err, errors.ErrCodeDatabaseError, "delete report for document %s", documentID)
	}
	return nil
}
