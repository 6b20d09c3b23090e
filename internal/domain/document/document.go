// Package document implements the Document bounded context: the uploaded
// lease aggregate, its processing-status lifecycle, and the persistence
// contract.  All business rules that concern a document's state live here;
// infrastructure concerns (postgres, object storage) are handled by separate
// repository implementations.
package document

import (
	"time"

	"github.com/google/uuid"

	"github.com/leaselens/leaselens/pkg/errors"
)

// LeaseMetadata carries the key lease terms extracted from the document, either
// by the metadata-extraction stage or supplied by the caller at analysis time.
type LeaseMetadata struct {
	PropertyAddress string `json:"property_address,omitempty"`
	LandlordName    string `json:"landlord_name,omitempty"`
	TenantName      string `json:"tenant_name,omitempty"`
	MonthlyRent     string `json:"monthly_rent,omitempty"`
	SecurityDeposit string `json:"security_deposit,omitempty"`
	LeaseStartDate  string `json:"lease_start_date,omitempty"`
	LeaseEndDate    string `json:"lease_end_date,omitempty"`
}

// Merge returns a copy of m with empty fields filled from other.  Non-empty
// fields of the receiver always win, so caller-supplied metadata overrides
// extracted values.
func (m LeaseMetadata) Merge(other LeaseMetadata) LeaseMetadata {
	out := m
	if out.PropertyAddress == "" {
		out.PropertyAddress = other.PropertyAddress
	}
	if out.LandlordName == "" {
		out.LandlordName = other.LandlordName
	}
	if out.TenantName == "" {
		out.TenantName = other.TenantName
	}
	if out.MonthlyRent == "" {
		out.MonthlyRent = other.MonthlyRent
	}
	if out.SecurityDeposit == "" {
		out.SecurityDeposit = other.SecurityDeposit
	}
	if out.LeaseStartDate == "" {
		out.LeaseStartDate = other.LeaseStartDate
	}
	if out.LeaseEndDate == "" {
		out.LeaseEndDate = other.LeaseEndDate
	}
	return out
}

// IsZero reports whether no metadata field is populated.
func (m LeaseMetadata) IsZero() bool {
	return m == LeaseMetadata{}
}

// RedactionSummary records how many PII instances were replaced per category
// during intake.  Keys are category names ("ssn", "email", "person", ...).
type RedactionSummary map[string]int

// Total returns the sum across all categories.
func (s RedactionSummary) Total() int {
	n := 0
	for _, v := range s {
		n += v
	}
	return n
}

// Document is the aggregate root of the Document bounded context.  It tracks
// one uploaded lease PDF through intake, metadata extraction, and analysis.
//
// Consumers must not modify fields directly; mutations go through the exported
// methods so that lifecycle invariants are maintained.
type Document struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`

	// ObjectKey locates the original PDF in object storage; TextObjectKey
	// locates the redacted plain text.
	ObjectKey     string `json:"object_key"`
	TextObjectKey string `json:"text_object_key,omitempty"`

	SizeBytes int64 `json:"size_bytes"`
	PageCount int   `json:"page_count"`

	Status   Status `json:"status"`
	Progress int    `json:"progress"`

	// Error holds the failure description when Status is a failed state.
	Error string `json:"error,omitempty"`

	// Warnings accumulates non-fatal intake problems, e.g. a redaction pass
	// that had to be skipped.
	Warnings []string `json:"warnings,omitempty"`

	Metadata  *LeaseMetadata   `json:"metadata,omitempty"`
	Redaction RedactionSummary `json:"redaction,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// New constructs a freshly uploaded Document in StatusUploaded with a
// generated UUID.
func New(filename, objectKey string, sizeBytes int64) *Document {
	now := time.Now().UTC()
	return &Document{
		ID:        uuid.New().String(),
		Filename:  filename,
		ObjectKey: objectKey,
		SizeBytes: sizeBytes,
		Status:    StatusUploaded,
		Progress:  0,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Transition moves the document to the next status, enforcing the lifecycle
// state machine.  Moving into a failed status resets Progress to zero and
// records reason in Error; moving into StatusCompleted sets Progress to 100.
func (d *Document) Transition(next Status, reason string) error {
	if !d.Status.CanTransitionTo(next) {
		return errors.InvalidState("illegal status transition").
			WithDetailf("document=%s %s -> %s", d.ID, d.Status, next)
	}
	d.Status = next
	switch {
	case next.IsFailed():
		d.Progress = 0
		d.Error = reason
	case next == StatusCompleted:
		d.Progress = 100
		d.Error = ""
	default:
		d.Error = ""
	}
	d.UpdatedAt = time.Now().UTC()
	return nil
}

// SetProgress records pipeline progress.  Values are clamped to [0, 100].
func (d *Document) SetProgress(p int) {
	if p < 0 {
		p = 0
	}
	if p > 100 {
		p = 100
	}
	d.Progress = p
	d.UpdatedAt = time.Now().UTC()
}

// SetMetadata stores extracted or caller-supplied lease metadata.
func (d *Document) SetMetadata(meta LeaseMetadata) {
	d.Metadata = &meta
	d.UpdatedAt = time.Now().UTC()
}

// AddWarning appends a non-fatal intake warning.
func (d *Document) AddWarning(w string) {
	d.Warnings = append(d.Warnings, w)
	d.UpdatedAt = time.Now().UTC()
}
