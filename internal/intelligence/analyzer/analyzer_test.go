package analyzer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leaselens/leaselens/internal/domain/statute"
	"github.com/leaselens/leaselens/internal/intelligence/chunker"
	"github.com/leaselens/leaselens/pkg/errors"
)

type stubClient struct {
	response string
	err      error
	prompt   string
}

func (s *stubClient) Complete(_ context.Context, prompt string) (string, error) {
	s.prompt = prompt
	return s.response, s.err
}

const validResponse = `{
	"illegal_clauses": [{"clause": "non-refundable deposit", "violation": "Chapter 186, Section 15B", "explanation": "deposits must be refundable", "severity": "critical", "potential_recovery": "$3,000"}],
	"risky_terms": [],
	"favorable_clauses": [],
	"concerns": []
}`

func testChunk() chunker.Chunk {
	return chunker.Chunk{Text: "Tenant shall pay a non-refundable deposit.", Index: 1, Total: 2}
}

func TestAnalyzeChunkParsesResponse(t *testing.T) {
	client := &stubClient{response: validResponse}
	a := New(client, nil)

	result, err := a.AnalyzeChunk(context.Background(), testChunk(), []statute.Section{
		{Chapter: "186", Section: "Section 15B", Text: "A security deposit shall be refundable."},
	})
	require.NoError(t, err)

	require.Len(t, result.IllegalClauses, 1)
	assert.Equal(t, "non-refundable deposit", result.IllegalClauses[0].Clause)
	assert.Equal(t, "$3,000", result.IllegalClauses[0].PotentialRecovery)
	assert.False(t, result.ParseFailed)

	assert.Contains(t, client.prompt, "Chunk 1/2")
	assert.Contains(t, client.prompt, "Tenant shall pay a non-refundable deposit.")
	assert.Contains(t, client.prompt, "[Chapter 186, Section 15B]")
	assert.Contains(t, client.prompt, "A security deposit shall be refundable.")
}

func TestAnalyzeChunkStripsFencedResponse(t *testing.T) {
	client := &stubClient{response: "```json\n" + validResponse + "\n```"}
	a := New(client, nil)

	result, err := a.AnalyzeChunk(context.Background(), testChunk(), nil)
	require.NoError(t, err)
	require.Len(t, result.IllegalClauses, 1)
	assert.False(t, result.ParseFailed)
}

func TestAnalyzeChunkDegradesOnBadJSON(t *testing.T) {
	client := &stubClient{response: "I couldn't produce JSON, sorry."}
	a := New(client, nil)

	result, err := a.AnalyzeChunk(context.Background(), testChunk(), nil)
	require.NoError(t, err)

	assert.True(t, result.ParseFailed)
	assert.Empty(t, result.IllegalClauses)
	assert.Empty(t, result.RiskyTerms)
	assert.Empty(t, result.FavorableClauses)
	require.Len(t, result.Concerns, 1)
	assert.Equal(t, "Analysis parsing error", result.Concerns[0].Issue)
	assert.Equal(t, "Manual review recommended", result.Concerns[0].Recommendation)
}

func TestAnalyzeChunkModelFailureIsAnError(t *testing.T) {
	client := &stubClient{err: errors.New(errors.ErrCodeExternalService, "boom")}
	a := New(client, nil)

	_, err := a.AnalyzeChunk(context.Background(), testChunk(), nil)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeModelCallFailed))
}

func TestStripFences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"json fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"bare fence", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"json fence with preamble", "Here you go:\n```json\n{\"a\":1}\n```\nthanks", `{"a":1}`},
		{"no fence", `{"a":1}`, `{"a":1}`},
		{"unterminated json fence", "```json\n{\"a\":1}", `{"a":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripFences(tt.in))
		})
	}
}

func TestExtractMetadata(t *testing.T) {
	client := &stubClient{response: "```json\n" + `{
		"property_address": "42 Oak Street, Boston, MA",
		"landlord_name": "Oakwood Property Management LLC",
		"tenant_name": "John Smith",
		"monthly_rent": "$2,400",
		"security_deposit": "$2,400",
		"lease_start_date": "September 1, 2026",
		"lease_end_date": "August 31, 2027"
	}` + "\n```"}
	a := New(client, nil)

	meta, err := a.ExtractMetadata(context.Background(), "lease text")
	require.NoError(t, err)

	assert.Equal(t, "42 Oak Street, Boston, MA", meta.PropertyAddress)
	assert.Equal(t, "Oakwood Property Management LLC", meta.LandlordName)
	assert.Equal(t, "John Smith", meta.TenantName)
	assert.Equal(t, "$2,400", meta.MonthlyRent)
	assert.Equal(t, "$2,400", meta.SecurityDeposit)
	assert.Equal(t, "September 1, 2026", meta.LeaseStartDate)
	assert.Equal(t, "August 31, 2027", meta.LeaseEndDate)
}

func TestExtractMetadataFailures(t *testing.T) {
	a := New(&stubClient{response: "not json"}, nil)
	_, err := a.ExtractMetadata(context.Background(), "text")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeMetadataFailed))

	a = New(&stubClient{err: errors.New(errors.ErrCodeTimeout, "slow")}, nil)
	_, err = a.ExtractMetadata(context.Background(), "text")
	assert.True(t, errors.IsCode(err, errors.ErrCodeMetadataFailed))
}
