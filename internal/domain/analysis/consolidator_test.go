package analysis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leaselens/leaselens/internal/domain/document"
)

type fixedLocator struct{ pos Position }

func (f fixedLocator) Locate(string, int) Position { return f.pos }

func illegalN(n int) []IllegalClause {
	out := make([]IllegalClause, n)
	for i := range out {
		out[i] = IllegalClause{Clause: "clause", Violation: "Chapter 186", PotentialRecovery: "$1,000"}
	}
	return out
}

func riskyN(n int) []RiskyTerm {
	out := make([]RiskyTerm, n)
	for i := range out {
		out[i] = RiskyTerm{Term: "term", Severity: "medium"}
	}
	return out
}

func favorableN(n int) []FavorableClause {
	out := make([]FavorableClause, n)
	for i := range out {
		out[i] = FavorableClause{Clause: "clause"}
	}
	return out
}

func TestPowerImbalanceScore(t *testing.T) {
	assert.Equal(t, 0, powerImbalanceScore(0, 0, 0))
	assert.Equal(t, 20, powerImbalanceScore(1, 0, 0))
	assert.Equal(t, 45, powerImbalanceScore(1, 3, 1))
	assert.Equal(t, 100, powerImbalanceScore(6, 0, 0))
	assert.Equal(t, 0, powerImbalanceScore(0, 0, 10))

	// adding an illegal clause never lowers the score
	for illegal := 0; illegal < 6; illegal++ {
		assert.GreaterOrEqual(t,
			powerImbalanceScore(illegal+1, 2, 2),
			powerImbalanceScore(illegal, 2, 2))
	}
	// adding a favorable clause never raises it
	for fav := 0; fav < 6; fav++ {
		assert.LessOrEqual(t,
			powerImbalanceScore(2, 2, fav+1),
			powerImbalanceScore(2, 2, fav))
	}
}

func TestSeverityLevel(t *testing.T) {
	tests := []struct {
		score   int
		illegal int
		want    string
	}{
		{0, 3, SeverityCritical},
		{60, 0, SeverityCritical},
		{20, 1, SeverityHigh},
		{40, 0, SeverityHigh},
		{59, 0, SeverityHigh},
		{20, 0, SeverityMedium},
		{39, 0, SeverityMedium},
		{19, 0, SeverityLow},
		{0, 0, SeverityLow},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, severityLevel(tt.score, tt.illegal),
			"score=%d illegal=%d", tt.score, tt.illegal)
	}
}

func TestParseRecovery(t *testing.T) {
	tests := []struct {
		name     string
		clause   IllegalClause
		amount   int
		calc     string
	}{
		{
			name:   "dollar amount with commas",
			clause: IllegalClause{PotentialRecovery: "$5,000", RecoveryCalculation: "3x deposit under 15B"},
			amount: 5000,
			calc:   "3x deposit under 15B",
		},
		{
			name:   "first number wins",
			clause: IllegalClause{PotentialRecovery: "up to $750 plus fees", RecoveryCalculation: "x"},
			amount: 750,
			calc:   "x",
		},
		{
			name:   "deposit fallback",
			clause: IllegalClause{Violation: "Security deposit violation (Chapter 186, Section 15B)"},
			amount: 5000,
			calc:   "Estimated based on violation type",
		},
		{
			name:   "93A fallback",
			clause: IllegalClause{Violation: "Chapter 93A consumer protection"},
			amount: 2500,
			calc:   "Estimated based on violation type",
		},
		{
			name:   "default fallback keeps rationale",
			clause: IllegalClause{Violation: "Chapter 186, Section 15", RecoveryCalculation: "actual damages"},
			amount: 1000,
			calc:   "actual damages",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			amount, calc := parseRecovery(tt.clause)
			assert.Equal(t, tt.amount, amount)
			assert.Equal(t, tt.calc, calc)
		})
	}
}

func TestConsolidateMergesWithoutDedup(t *testing.T) {
	c := NewConsolidator(nil, nil)
	analyses := []ChunkAnalysis{
		{
			IllegalClauses: []IllegalClause{{Clause: "dup", Violation: "Chapter 186", PotentialRecovery: "$2,000"}},
			Concerns:       []Concern{{Issue: "a"}},
		},
		{
			IllegalClauses: []IllegalClause{{Clause: "dup", Violation: "Chapter 186", PotentialRecovery: "$2,000"}},
			RiskyTerms:     []RiskyTerm{{Term: "late fee", Severity: "medium"}},
		},
	}

	report := c.Consolidate(analyses, "full lease text")

	require.Len(t, report.IllegalClauses, 2)
	assert.Len(t, report.RiskyTerms, 1)
	assert.Len(t, report.Concerns, 1)
	assert.Equal(t, 4000, report.PotentialRecoveryAmount)
	require.Len(t, report.RecoveryBreakdown, 2)
	assert.Equal(t, 2000, report.RecoveryBreakdown[0].Amount)
	assert.Equal(t, 50, report.PowerImbalanceScore)
	assert.Equal(t, SeverityHigh, report.SeverityLevel)
	assert.Equal(t, len("full lease text"), report.DocumentInfo.TotalCharacters)
	assert.Equal(t, 2, report.DocumentInfo.TotalChunks)
	assert.Contains(t, report.Summary, "Found 2 illegal clause(s)")
	assert.Contains(t, report.Summary, "Power Imbalance Score: 50/100 (Acceptable)")
}

func TestConsolidateEnhanced(t *testing.T) {
	pos := Position{
		BoundingRect: Rect{X1: 72, Y1: 542, X2: 540, Y2: 592, Width: 468, Height: 50, PageNumber: 2},
		Rects:        []Rect{{PageNumber: 2}},
		PageHeight:   792,
		PageWidth:    612,
	}
	c := NewConsolidator(fixedLocator{pos: pos}, nil)

	analyses := []ChunkAnalysis{{
		IllegalClauses: []IllegalClause{
			{Clause: "non-refundable deposit", Violation: "Chapter 186, Section 15B", PotentialRecovery: "$3,000", Severity: "critical"},
			{Clause: "waiver of habitability", Violation: "Chapter 93A", Severity: "high"},
		},
		RiskyTerms: []RiskyTerm{
			{Term: "automatic renewal", Risk: "lock-in", Explanation: "renews silently", Severity: "high"},
			{Term: "carpet cleaning fee", Risk: "fee", Explanation: "may be unenforceable", Severity: "medium"},
		},
		FavorableClauses: []FavorableClause{
			{Clause: "tenant may withhold rent", Benefit: "repair leverage", RelevantLaw: "Chapter 239, Section 8A"},
		},
	}}

	in := EnhancedInput{
		DocumentID:    "doc-1",
		PDFURL:        "/files/doc-1.pdf",
		FileName:      "lease.pdf",
		UploadDate:    time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		FileSizeBytes: 2048,
		PageCount:     3,
		Metadata: document.LeaseMetadata{
			LandlordName: "Oakwood Property Management LLC",
			TenantName:   "John Smith",
			MonthlyRent:  "$2,400",
		},
		Redaction: document.RedactionSummary{"ssn": 1, "phone": 2, "email": 0},
	}

	report, enhanced := c.ConsolidateEnhanced(analyses, "text", in)

	// both shapes come from the same merge
	assert.Equal(t, report.PotentialRecoveryAmount, enhanced.AnalysisSummary.PotentialRecovery)
	assert.Equal(t, report.SeverityLevel, enhanced.AnalysisSummary.OverallRisk)
	assert.Equal(t, report.Summary, enhanced.AnalysisSummary.SummaryText)
	assert.Equal(t, 5500, report.PotentialRecoveryAmount) // 3000 + 93A fallback 2500
	assert.Equal(t, "$5,500", enhanced.AnalysisSummary.EstimatedRecovery)
	assert.Equal(t, 4, enhanced.AnalysisSummary.IssuesFound)

	require.Len(t, enhanced.Highlights, 5)
	colors := make([]string, len(enhanced.Highlights))
	priorities := make([]int, len(enhanced.Highlights))
	for i, h := range enhanced.Highlights {
		colors[i] = h.Color
		priorities[i] = h.Priority
	}
	assert.Equal(t, []string{"red", "red", "orange", "yellow", "green"}, colors)
	assert.Equal(t, []int{1, 1, 2, 3, 4}, priorities)
	assert.Equal(t, "highlight-1", enhanced.Highlights[0].ID)
	assert.Equal(t, 3000, enhanced.Highlights[0].DamagesEstimate)
	assert.Equal(t, 2500, enhanced.Highlights[1].DamagesEstimate)
	assert.Equal(t, 2, enhanced.Highlights[0].PageNumber)
	assert.Equal(t, pos, enhanced.Highlights[0].Position)

	require.Len(t, enhanced.AnalysisSummary.TopIssues, 2)
	assert.Equal(t, "Chapter 186, Section 15B", enhanced.AnalysisSummary.TopIssues[0].Statute)
	assert.Equal(t, 3000, enhanced.AnalysisSummary.TopIssues[0].Amount)
	assert.Equal(t, report.RecoveryBreakdown[1].Amount, enhanced.AnalysisSummary.TopIssues[1].Amount)

	assert.Equal(t, []string{"Oakwood Property Management LLC", "John Smith"}, enhanced.DocumentMetadata.Parties)
	assert.Equal(t, 3, enhanced.DeidentificationSummary.ItemsRedacted)
	assert.Equal(t, []string{"phone", "ssn"}, enhanced.DeidentificationSummary.Categories)
	assert.Equal(t, "lease.pdf", enhanced.DocumentMetadata.FileName)
}

func TestConsolidateEnhancedTopIssuesCapped(t *testing.T) {
	c := NewConsolidator(fixedLocator{}, nil)
	analyses := []ChunkAnalysis{{IllegalClauses: illegalN(5)}}

	_, enhanced := c.ConsolidateEnhanced(analyses, "t", EnhancedInput{})
	assert.Len(t, enhanced.AnalysisSummary.TopIssues, 3)
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "0", formatAmount(0))
	assert.Equal(t, "999", formatAmount(999))
	assert.Equal(t, "1,000", formatAmount(1000))
	assert.Equal(t, "12,500", formatAmount(12500))
	assert.Equal(t, "1,234,567", formatAmount(1234567))
}
