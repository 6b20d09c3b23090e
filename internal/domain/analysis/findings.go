// Package analysis defines the findings produced by clause analysis and the
// consolidation of per-chunk findings into the final report.
package analysis

// Severity tiers for the overall report.
const (
	SeverityCritical = "CRITICAL"
	SeverityHigh     = "HIGH"
	SeverityMedium   = "MEDIUM"
	SeverityLow      = "LOW"
)

// IllegalClause is a lease term that violates Massachusetts law.  Clause is
// copied verbatim from the chunk text; it is the lookup key for highlight
// placement.
type IllegalClause struct {
	Clause              string `json:"clause"`
	Violation           string `json:"violation"`
	Explanation         string `json:"explanation"`
	Severity            string `json:"severity"`
	PotentialRecovery   string `json:"potential_recovery,omitempty"`
	RecoveryCalculation string `json:"recovery_calculation,omitempty"`
}

// RiskyTerm is legal but potentially problematic for the tenant.
type RiskyTerm struct {
	Term        string `json:"term"`
	Risk        string `json:"risk"`
	Explanation string `json:"explanation"`
	Severity    string `json:"severity"`
}

// FavorableClause protects the tenant.
type FavorableClause struct {
	Clause      string `json:"clause"`
	Benefit     string `json:"benefit"`
	RelevantLaw string `json:"relevant_law,omitempty"`
}

// Concern is a soft observation with a recommendation.
type Concern struct {
	Issue          string `json:"issue"`
	Recommendation string `json:"recommendation"`
}

// ChunkAnalysis is the analyzer's output for one chunk.  ParseFailed marks
// the degraded result substituted when the model's JSON could not be parsed;
// such results carry empty findings plus a single manual-review concern.
type ChunkAnalysis struct {
	IllegalClauses   []IllegalClause   `json:"illegal_clauses"`
	RiskyTerms       []RiskyTerm       `json:"risky_terms"`
	FavorableClauses []FavorableClause `json:"favorable_clauses"`
	Concerns         []Concern         `json:"concerns"`

	ParseFailed bool `json:"-"`
}
