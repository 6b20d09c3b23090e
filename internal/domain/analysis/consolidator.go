package analysis

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/leaselens/leaselens/internal/domain/document"
	"github.com/leaselens/leaselens/internal/infrastructure/logging"
)

// recoveryAmountRe pulls the first dollar figure out of the model's free-text
// recovery estimate, commas allowed.
var recoveryAmountRe = regexp.MustCompile(`\$?(\d{1,3}(?:,?\d{3})*)`)

// Fallback recovery estimates applied when no figure parses, keyed by
// violation keyword.  Amounts reflect typical Massachusetts awards.
const (
	fallbackDeposit   = 5000
	fallback93A       = 2500
	fallbackDefault   = 1000
	fallbackRationale = "Estimated based on violation type"
)

// EnhancedInput supplies the document-level fields the enhanced report shape
// needs beyond the finding lists.
type EnhancedInput struct {
	DocumentID    string
	PDFURL        string
	FileName      string
	UploadDate    time.Time
	FileSizeBytes int64
	PageCount     int
	Metadata      document.LeaseMetadata
	Redaction     document.RedactionSummary
}

// Consolidator merges per-chunk analyses into the final report.  Findings are
// concatenated across chunks without deduplication: a clause sitting in the
// overlap of two chunks is reported twice, which the chunk-overlap design
// accepts.
type Consolidator struct {
	locator Locator
	log     logging.Logger
	now     func() time.Time
}

// NewConsolidator builds a Consolidator.  locator may be nil when only the
// plain report shape is needed.
func NewConsolidator(locator Locator, log logging.Logger) *Consolidator {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Consolidator{locator: locator, log: log.Named("consolidator"), now: time.Now}
}

// recoveryRecord ties an illegal clause to its parsed recovery figures so
// breakdown entries and top issues are always built from the same data.
type recoveryRecord struct {
	clause IllegalClause
	item   RecoveryItem
}

type merged struct {
	illegal   []IllegalClause
	risky     []RiskyTerm
	favorable []FavorableClause
	concerns  []Concern
	records   []recoveryRecord
	recovery  int
}

func (c *Consolidator) merge(analyses []ChunkAnalysis) merged {
	var m merged
	for _, a := range analyses {
		m.illegal = append(m.illegal, a.IllegalClauses...)
		m.risky = append(m.risky, a.RiskyTerms...)
		m.favorable = append(m.favorable, a.FavorableClauses...)
		m.concerns = append(m.concerns, a.Concerns...)
	}
	for _, ill := range m.illegal {
		amount, calc := parseRecovery(ill)
		m.recovery += amount
		m.records = append(m.records, recoveryRecord{
			clause: ill,
			item:   RecoveryItem{Violation: violationLabel(ill), Amount: amount, Calculation: calc},
		})
	}
	return m
}

// Consolidate produces the plain report shape.
func (c *Consolidator) Consolidate(analyses []ChunkAnalysis, fullText string) Report {
	m := c.merge(analyses)
	return c.buildReport(m, fullText, len(analyses))
}

// ConsolidateEnhanced produces both shapes from one merge.  The enhanced
// shape is a superset of the plain one, never a different computation.
func (c *Consolidator) ConsolidateEnhanced(analyses []ChunkAnalysis, fullText string, in EnhancedInput) (Report, EnhancedReport) {
	m := c.merge(analyses)
	report := c.buildReport(m, fullText, len(analyses))

	highlights := c.buildHighlights(m)

	var topIssues []TopIssue
	for i, rec := range m.records {
		if i == 3 {
			break
		}
		topIssues = append(topIssues, TopIssue{
			Title:       truncate(rec.clause.Clause, 80),
			Statute:     rec.clause.Violation,
			Amount:      rec.item.Amount,
			Calculation: rec.item.Calculation,
		})
	}

	var parties []string
	for _, p := range []string{in.Metadata.LandlordName, in.Metadata.TenantName} {
		if p != "" {
			parties = append(parties, p)
		}
	}

	categories := make([]string, 0, len(in.Redaction))
	for cat, n := range in.Redaction {
		if n > 0 {
			categories = append(categories, cat)
		}
	}
	sort.Strings(categories)

	enhanced := EnhancedReport{
		DocumentID: in.DocumentID,
		PDFURL:     in.PDFURL,
		DocumentMetadata: DocumentMetadata{
			FileName:     in.FileName,
			UploadDate:   in.UploadDate.Format(time.RFC3339),
			FileSize:     in.FileSizeBytes,
			PageCount:    in.PageCount,
			DocumentType: "Lease Agreement",
			Parties:      parties,
		},
		DeidentificationSummary: DeidentificationSummary{
			ItemsRedacted: in.Redaction.Total(),
			Categories:    categories,
		},
		KeyDetailsDetected: KeyDetails{
			PropertyAddress: in.Metadata.PropertyAddress,
			LandlordName:    in.Metadata.LandlordName,
			TenantName:      in.Metadata.TenantName,
			MonthlyRent:     in.Metadata.MonthlyRent,
			SecurityDeposit: in.Metadata.SecurityDeposit,
			LeaseStartDate:  in.Metadata.LeaseStartDate,
			LeaseEndDate:    in.Metadata.LeaseEndDate,
		},
		AnalysisSummary: AnalysisSummary{
			Status:            "completed",
			SummaryText:       report.Summary,
			OverallRisk:       report.SeverityLevel,
			IssuesFound:       len(m.illegal) + len(m.risky),
			PotentialRecovery: report.PotentialRecoveryAmount,
			EstimatedRecovery: "$" + formatAmount(report.PotentialRecoveryAmount),
			TopIssues:         topIssues,
		},
		Highlights: highlights,
	}
	return report, enhanced
}

func (c *Consolidator) buildReport(m merged, fullText string, chunkCount int) Report {
	score := powerImbalanceScore(len(m.illegal), len(m.risky), len(m.favorable))
	breakdown := make([]RecoveryItem, len(m.records))
	for i, rec := range m.records {
		breakdown[i] = rec.item
	}
	return Report{
		IllegalClauses:          m.illegal,
		RiskyTerms:              m.risky,
		FavorableClauses:        m.favorable,
		Concerns:                m.concerns,
		PowerImbalanceScore:     score,
		PotentialRecoveryAmount: m.recovery,
		RecoveryBreakdown:       breakdown,
		SeverityLevel:           severityLevel(score, len(m.illegal)),
		Summary:                 summaryText(len(m.illegal), len(m.risky), len(m.favorable), score),
		DocumentInfo: DocumentInfo{
			TotalCharacters: len(fullText),
			TotalChunks:     chunkCount,
			AnalysisDate:    c.now().UTC(),
		},
	}
}

func (c *Consolidator) buildHighlights(m merged) []Highlight {
	highlights := make([]Highlight, 0, len(m.illegal)+len(m.risky)+len(m.favorable))

	add := func(text, color string, priority int, category, statute, explanation string, damages int) {
		var pos Position
		if c.locator != nil {
			pos = c.locator.Locate(text, 0)
		}
		highlights = append(highlights, Highlight{
			ID:              fmt.Sprintf("highlight-%d", len(highlights)+1),
			PageNumber:      pos.BoundingRect.PageNumber,
			Color:           color,
			Priority:        priority,
			Category:        category,
			Text:            text,
			Statute:         statute,
			Explanation:     explanation,
			DamagesEstimate: damages,
			Position:        pos,
		})
	}

	for _, rec := range m.records {
		add(rec.clause.Clause, ColorIllegal, PriorityIllegal, CategoryIllegalClause,
			rec.clause.Violation, rec.clause.Explanation, rec.item.Amount)
	}
	for _, r := range m.risky {
		color, priority := ColorRisky, PriorityRisky
		if strings.Contains(strings.ToLower(r.Severity), "high") {
			color, priority = ColorRiskySevere, PriorityRiskySevere
		}
		add(r.Term, color, priority, CategoryRiskyTerm, "", r.Explanation, 0)
	}
	for _, f := range m.favorable {
		add(f.Clause, ColorFavorable, PriorityFavorable, CategoryFavorableClause,
			f.RelevantLaw, f.Benefit, 0)
	}
	return highlights
}

// powerImbalanceScore weighs findings into [0, 100].
func powerImbalanceScore(illegal, risky, favorable int) int {
	score := illegal*20 + risky*10 - favorable*5
	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}
	return score
}

// severityLevel tiers the report: any illegal finding is at least HIGH, three
// or a score of 60 push to CRITICAL.
func severityLevel(score, illegalCount int) string {
	switch {
	case illegalCount >= 3 || score >= 60:
		return SeverityCritical
	case illegalCount >= 1 || score >= 40:
		return SeverityHigh
	case score >= 20:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

func summaryText(illegal, risky, favorable, score int) string {
	var parts []string
	if illegal > 0 {
		parts = append(parts, fmt.Sprintf("Found %d illegal clause(s) that violate Massachusetts law", illegal))
	}
	if risky > 0 {
		parts = append(parts, fmt.Sprintf("Identified %d risky term(s) that could be problematic", risky))
	}
	if favorable > 0 {
		parts = append(parts, fmt.Sprintf("Found %d tenant-favorable provision(s)", favorable))
	}
	verdict := "(Acceptable)"
	if score > 50 {
		verdict = "(Concerning)"
	}
	parts = append(parts, fmt.Sprintf("Power Imbalance Score: %d/100 %s", score, verdict))
	return strings.Join(parts, " | ")
}

// parseRecovery extracts the dollar amount from an illegal clause's recovery
// estimate, falling back to a keyword-based figure when nothing parses.
func parseRecovery(ill IllegalClause) (amount int, calculation string) {
	if m := recoveryAmountRe.FindStringSubmatch(ill.PotentialRecovery); m != nil {
		n, err := strconv.Atoi(strings.ReplaceAll(m[1], ",", ""))
		if err == nil {
			return n, ill.RecoveryCalculation
		}
	}

	violation := strings.ToLower(ill.Violation)
	switch {
	case strings.Contains(violation, "security deposit"):
		amount = fallbackDeposit
	case strings.Contains(violation, "93a"):
		amount = fallback93A
	default:
		amount = fallbackDefault
	}
	calculation = ill.RecoveryCalculation
	if calculation == "" {
		calculation = fallbackRationale
	}
	return amount, calculation
}

func violationLabel(ill IllegalClause) string {
	if ill.Violation == "" {
		return "Unknown"
	}
	return ill.Violation
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

// formatAmount renders an integer with comma grouping, e.g. 12500 -> "12,500".
func formatAmount(n int) string {
	s := strconv.Itoa(n)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	lead := len(s) % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}
