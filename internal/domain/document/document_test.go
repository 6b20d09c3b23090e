package document

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leaselens/leaselens/pkg/errors"
)

func TestNew_StartsUploaded(t *testing.T) {
	d := New("lease.pdf", "documents/abc/lease.pdf", 1024)

	require.NotEmpty(t, d.ID)
	assert.Equal(t, StatusUploaded, d.Status)
	assert.Equal(t, 0, d.Progress)
	assert.Equal(t, "lease.pdf", d.Filename)
	assert.False(t, d.CreatedAt.IsZero())
}

func TestTransition_HappyPath(t *testing.T) {
	d := New("lease.pdf", "k", 1)

	require.NoError(t, d.Transition(StatusExtractingMetadata, ""))
	require.NoError(t, d.Transition(StatusMetadataExtracted, ""))
	require.NoError(t, d.Transition(StatusProcessing, ""))
	require.NoError(t, d.Transition(StatusCompleted, ""))

	assert.Equal(t, 100, d.Progress)
	assert.Empty(t, d.Error)
}

func TestTransition_IllegalMove(t *testing.T) {
	d := New("lease.pdf", "k", 1)

	err := d.Transition(StatusCompleted, "")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeDocumentInvalidState))
	assert.Equal(t, StatusUploaded, d.Status, "failed transition must not change status")
}

func TestTransition_FailureResetsProgress(t *testing.T) {
	d := New("lease.pdf", "k", 1)
	require.NoError(t, d.Transition(StatusProcessing, ""))
	d.SetProgress(40)

	require.NoError(t, d.Transition(StatusFailed, "model unreachable"))

	assert.Equal(t, 0, d.Progress)
	assert.Equal(t, "model unreachable", d.Error)
}

func TestTransition_RetryAfterFailure(t *testing.T) {
	d := New("lease.pdf", "k", 1)
	require.NoError(t, d.Transition(StatusExtractingMetadata, ""))
	require.NoError(t, d.Transition(StatusMetadataExtractionFailed, "timeout"))

	// both retry paths are legal
	assert.True(t, d.Status.CanTransitionTo(StatusExtractingMetadata))
	assert.True(t, d.Status.CanTransitionTo(StatusProcessing))
}

func TestTransition_ReanalysisOfCompleted(t *testing.T) {
	d := New("lease.pdf", "k", 1)
	require.NoError(t, d.Transition(StatusProcessing, ""))
	require.NoError(t, d.Transition(StatusCompleted, ""))

	require.NoError(t, d.Transition(StatusProcessing, ""))
	assert.Equal(t, StatusProcessing, d.Status)
}

func TestSetProgress_Clamps(t *testing.T) {
	d := New("lease.pdf", "k", 1)

	d.SetProgress(-5)
	assert.Equal(t, 0, d.Progress)

	d.SetProgress(120)
	assert.Equal(t, 100, d.Progress)

	d.SetProgress(45)
	assert.Equal(t, 45, d.Progress)
}

func TestStatus_Predicates(t *testing.T) {
	assert.True(t, StatusFailed.IsFailed())
	assert.True(t, StatusMetadataExtractionFailed.IsFailed())
	assert.False(t, StatusCompleted.IsFailed())

	assert.True(t, StatusProcessing.IsTerminalForAnalysis())
	assert.True(t, StatusCompleted.IsTerminalForAnalysis())
	assert.False(t, StatusUploaded.IsTerminalForAnalysis())

	assert.True(t, StatusUploaded.Valid())
	assert.False(t, Status("bogus").Valid())
}

func TestLeaseMetadata_Merge(t *testing.T) {
	caller := LeaseMetadata{MonthlyRent: "$2,400", TenantName: "Tenant"}
	extracted := LeaseMetadata{
		MonthlyRent:     "$2,000",
		PropertyAddress: "12 Main St, Boston MA",
		LandlordName:    "Landlord",
	}

	merged := caller.Merge(extracted)

	assert.Equal(t, "$2,400", merged.MonthlyRent, "caller value wins")
	assert.Equal(t, "Tenant", merged.TenantName)
	assert.Equal(t, "12 Main St, Boston MA", merged.PropertyAddress)
	assert.Equal(t, "Landlord", merged.LandlordName)
}

func TestLeaseMetadata_IsZero(t *testing.T) {
	assert.True(t, LeaseMetadata{}.IsZero())
	assert.False(t, LeaseMetadata{TenantName: "x"}.IsZero())
}

func TestRedactionSummary_Total(t *testing.T) {
	s := RedactionSummary{"ssn": 2, "email": 1}
	assert.Equal(t, 3, s.Total())
	assert.Equal(t, 0, RedactionSummary(nil).Total())
}

func TestEvents_CarryAggregateID(t *testing.T) {
	d := New("lease.pdf", "k", 1)
	d.Redaction = RedactionSummary{"ssn": 1}

	up := NewUploadedEvent(d)
	assert.Equal(t, d.ID, up.AggregateID())
	assert.Equal(t, 1, up.Redacted)
	assert.NotEmpty(t, up.EventID())

	done := NewAnalysisCompletedEvent(d.ID, 60, "CRITICAL", 5)
	assert.Equal(t, d.ID, done.AggregateID())
	assert.Equal(t, 60, done.Score)
}
