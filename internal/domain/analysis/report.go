package analysis

import "time"

// RecoveryItem is one illegal clause's contribution to the recovery total.
type RecoveryItem struct {
	Violation   string `json:"violation"`
	Amount      int    `json:"amount"`
	Calculation string `json:"calculation"`
}

// DocumentInfo summarizes the analyzed input.
type DocumentInfo struct {
	TotalCharacters int       `json:"total_characters"`
	TotalChunks     int       `json:"total_chunks"`
	AnalysisDate    time.Time `json:"analysis_date"`
}

// Report is the consolidated output in its plain shape: merged finding lists
// plus the derived score fields.  Score and recovery are deterministic
// functions of the finding lists.
type Report struct {
	IllegalClauses   []IllegalClause   `json:"illegal_clauses"`
	RiskyTerms       []RiskyTerm       `json:"risky_terms"`
	FavorableClauses []FavorableClause `json:"favorable_clauses"`
	Concerns         []Concern         `json:"concerns"`

	PowerImbalanceScore     int            `json:"power_imbalance_score"`
	PotentialRecoveryAmount int            `json:"potential_recovery_amount"`
	RecoveryBreakdown       []RecoveryItem `json:"recovery_breakdown"`
	SeverityLevel           string         `json:"severity_level"`
	Summary                 string         `json:"summary"`
	DocumentInfo            DocumentInfo   `json:"document_info"`
}

// DocumentMetadata describes the source file in the enhanced report.
type DocumentMetadata struct {
	FileName     string   `json:"fileName"`
	UploadDate   string   `json:"uploadDate"`
	FileSize     int64    `json:"fileSize"`
	PageCount    int      `json:"pageCount"`
	DocumentType string   `json:"documentType"`
	Parties      []string `json:"parties"`
}

// DeidentificationSummary reports what the PII pass removed.
type DeidentificationSummary struct {
	ItemsRedacted int      `json:"itemsRedacted"`
	Categories    []string `json:"categories"`
}

// KeyDetails carries the lease terms detected during metadata extraction.
type KeyDetails struct {
	PropertyAddress string `json:"propertyAddress,omitempty"`
	LandlordName    string `json:"landlordName,omitempty"`
	TenantName      string `json:"tenantName,omitempty"`
	MonthlyRent     string `json:"monthlyRent,omitempty"`
	SecurityDeposit string `json:"securityDeposit,omitempty"`
	LeaseStartDate  string `json:"leaseStartDate,omitempty"`
	LeaseEndDate    string `json:"leaseEndDate,omitempty"`
}

// TopIssue pairs one of the leading illegal findings with its recovery
// figures.  Both fields come from the same merge record, so they can never
// drift out of alignment.
type TopIssue struct {
	Title       string `json:"title"`
	Statute     string `json:"statute"`
	Amount      int    `json:"amount"`
	Calculation string `json:"calculation"`
}

// AnalysisSummary is the enhanced report's headline block.
type AnalysisSummary struct {
	Status            string     `json:"status"`
	SummaryText       string     `json:"summaryText"`
	OverallRisk       string     `json:"overallRisk"`
	IssuesFound       int        `json:"issuesFound"`
	PotentialRecovery int        `json:"potential_recovery"`
	EstimatedRecovery string     `json:"estimatedRecovery"`
	TopIssues         []TopIssue `json:"topIssues"`
}

// EnhancedReport is the full client-facing shape: everything a rendering
// client needs to draw the document, its summary, and the highlight overlay.
type EnhancedReport struct {
	DocumentID              string                  `json:"documentId"`
	PDFURL                  string                  `json:"pdfUrl"`
	DocumentMetadata        DocumentMetadata        `json:"documentMetadata"`
	DeidentificationSummary DeidentificationSummary `json:"deidentificationSummary"`
	KeyDetailsDetected      KeyDetails              `json:"keyDetailsDetected"`
	AnalysisSummary         AnalysisSummary         `json:"analysisSummary"`
	Highlights              []Highlight             `json:"highlights"`
}
