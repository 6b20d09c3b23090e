package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/leaselens/leaselens/internal/domain/document"
	"github.com/leaselens/leaselens/pkg/errors"
)

const metadataPromptFormat = `You are a legal document assistant. Extract the key terms from the following residential lease text.

LEASE TEXT:
%s

Return ONLY valid JSON, no additional text, with exactly this structure (use an empty string for any field not present in the text):
{
    "property_address": "street address of the leased premises",
    "landlord_name": "name of the landlord or lessor",
    "tenant_name": "name of the tenant or lessee",
    "monthly_rent": "monthly rent amount as written, e.g. $2,400",
    "security_deposit": "security deposit amount as written",
    "lease_start_date": "lease start date as written",
    "lease_end_date": "lease end date as written"
}`

type metadataPayload struct {
	PropertyAddress string `json:"property_address"`
	LandlordName    string `json:"landlord_name"`
	TenantName      string `json:"tenant_name"`
	MonthlyRent     string `json:"monthly_rent"`
	SecurityDeposit string `json:"security_deposit"`
	LeaseStartDate  string `json:"lease_start_date"`
	LeaseEndDate    string `json:"lease_end_date"`
}

// ExtractMetadata asks the model for the lease's key terms.  Unlike chunk
// analysis there is no degraded mode here: a transport failure or unparsable
// response fails the metadata stage, which the orchestrator records as
// metadata_extraction_failed.
func (a *Analyzer) ExtractMetadata(ctx context.Context, text string) (document.LeaseMetadata, error) {
	raw, err := a.client.Complete(ctx, metadataPrompt(text))
	if err != nil {
		return document.LeaseMetadata{}, errors.Wrap(err, errors.ErrCodeMetadataFailed, "metadata completion")
	}

	var payload metadataPayload
	if err := json.Unmarshal([]byte(StripFences(strings.TrimSpace(raw))), &payload); err != nil {
		return document.LeaseMetadata{}, errors.Wrap(err, errors.ErrCodeMetadataFailed, "parse metadata response")
	}

	return document.LeaseMetadata{
		PropertyAddress: payload.PropertyAddress,
		LandlordName:    payload.LandlordName,
		TenantName:      payload.TenantName,
		MonthlyRent:     payload.MonthlyRent,
		SecurityDeposit: payload.SecurityDeposit,
		LeaseStartDate:  payload.LeaseStartDate,
		LeaseEndDate:    payload.LeaseEndDate,
	}, nil
}

func metadataPrompt(text string) string {
	return fmt.Sprintf(metadataPromptFormat, text)
}
