package document

// Status enumerates the lifecycle states of a document.
//
//	uploaded ──► extracting_metadata ──► metadata_extracted ──► processing ──► completed
//	    │                │                                          │
//	    └► processing    └► metadata_extraction_failed              └► failed
//
// Both failed states allow a retry back into their originating stage, and a
// completed document may be re-analysed.
type Status string

const (
	StatusUploaded                 Status = "uploaded"
	StatusExtractingMetadata       Status = "extracting_metadata"
	StatusMetadataExtracted        Status = "metadata_extracted"
	StatusMetadataExtractionFailed Status = "metadata_extraction_failed"
	StatusProcessing               Status = "processing"
	StatusCompleted                Status = "completed"
	StatusFailed                   Status = "failed"
)

// allowedTransitions defines the valid next states reachable from each status.
// Transitions not listed are illegal and rejected by Document.Transition.
var allowedTransitions = map[Status][]Status{
	StatusUploaded: {
		StatusExtractingMetadata,
		StatusProcessing,
	},
	StatusExtractingMetadata: {
		StatusMetadataExtracted,
		StatusMetadataExtractionFailed,
	},
	StatusMetadataExtracted: {
		StatusProcessing,
	},
	StatusMetadataExtractionFailed: {
		StatusExtractingMetadata,
		StatusProcessing,
	},
	StatusProcessing: {
		StatusCompleted,
		StatusFailed,
	},
	StatusFailed: {
		StatusExtractingMetadata,
		StatusProcessing,
	},
	StatusCompleted: {
		StatusProcessing,
	},
}

// Valid reports whether s is a known status value.
func (s Status) Valid() bool {
	_, ok := allowedTransitions[s]
	return ok
}

// CanTransitionTo reports whether next is a legal successor of s.
func (s Status) CanTransitionTo(next Status) bool {
	for _, t := range allowedTransitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// IsFailed reports whether s is one of the failed states.
func (s Status) IsFailed() bool {
	return s == StatusFailed || s == StatusMetadataExtractionFailed
}

// IsTerminalForAnalysis reports whether an analysis request should
// short-circuit rather than start work: analyses already running or finished.
func (s Status) IsTerminalForAnalysis() bool {
	return s == StatusProcessing || s == StatusCompleted
}

func (s Status) String() string { return string(s) }
