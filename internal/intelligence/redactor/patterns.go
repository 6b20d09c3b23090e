package redactor

import "regexp"

// Category names double as keys in the redaction mapping and summary.
const (
	CategorySSN          = "ssn"
	CategoryPhone        = "phone"
	CategoryEmail        = "email"
	CategoryDateOfBirth  = "date_of_birth"
	CategoryAddress      = "address"
	CategoryZipCode      = "zip_code"
	CategoryCreditCard   = "credit_card"
	CategoryLicensePlate = "license_plate"
	CategoryPersonName   = "person_name"
	CategoryOrganization = "organization"
)

// category couples a PII category with its detection patterns.  Categories are
// applied in declaration order so a rerun over the same text redacts
// identically; earlier categories see text the later ones never will.
type category struct {
	name     string
	patterns []*regexp.Regexp
}

// patternCategories lists every regex-detectable PII category.  All patterns
// are case-insensitive.
var patternCategories = []category{
	{
		name: CategorySSN,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\b\d{3}-\d{2}-\d{4}\b`),
			regexp.MustCompile(`(?i)\b\d{3}\s\d{2}\s\d{4}\b`),
			regexp.MustCompile(`(?i)\b\d{9}\b`),
		},
	},
	{
		name: CategoryPhone,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\b\d{3}-\d{3}-\d{4}\b`),
			regexp.MustCompile(`(?i)\(\d{3}\)\s?\d{3}-\d{4}\b`),
			regexp.MustCompile(`(?i)\b\d{3}\.\d{3}\.\d{4}\b`),
			regexp.MustCompile(`(?i)\b\d{10}\b`),
			regexp.MustCompile(`(?i)\+1\s?\d{3}\s?\d{3}\s?\d{4}\b`),
		},
	},
	{
		name: CategoryEmail,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`),
		},
	},
	{
		name: CategoryDateOfBirth,
		patterns: []*regexp.Regexp{
			// MM/DD/YYYY and MM-DD-YYYY
			regexp.MustCompile(`(?i)\b(?:0?[1-9]|1[0-2])[/-](?:0?[1-9]|[12][0-9]|3[01])[/-](?:19|20)\d{2}\b`),
			// YYYY/MM/DD and YYYY-MM-DD
			regexp.MustCompile(`(?i)\b(?:19|20)\d{2}[/-](?:0?[1-9]|1[0-2])[/-](?:0?[1-9]|[12][0-9]|3[01])\b`),
			// Month DD, YYYY
			regexp.MustCompile(`(?i)\b(?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*\s+\d{1,2},?\s+(?:19|20)\d{2}\b`),
		},
	},
	{
		name: CategoryAddress,
		patterns: []*regexp.Regexp{
			// number + street name + street type
			regexp.MustCompile(`(?i)\b\d+\s+(?:[A-Z][a-z]+\s+){1,3}(?:Street|St|Avenue|Ave|Road|Rd|Boulevard|Blvd|Lane|Ln|Drive|Dr|Court|Ct|Circle|Cir|Way|Place|Pl)\b`),
			// PO Box
			regexp.MustCompile(`(?i)\bP\.?\s?O\.?\s+Box\s+\d+\b`),
		},
	},
	{
		name: CategoryZipCode,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\b\d{5}(?:-\d{4})?\b`),
		},
	},
	{
		name: CategoryCreditCard,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\b(?:\d{4}[\s-]?){3}\d{4}\b`),
		},
	},
	{
		name: CategoryLicensePlate,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\b[A-Z]{2,3}\s?\d{3,4}\b`),
		},
	},
}

// redactionTokens maps each category to its placeholder.  Unknown categories
// fall back to the generic placeholder.
var redactionTokens = map[string]string{
	CategorySSN:          "[SSN_REDACTED]",
	CategoryPhone:        "[PHONE_REDACTED]",
	CategoryEmail:        "[EMAIL_REDACTED]",
	CategoryDateOfBirth:  "[DOB_REDACTED]",
	CategoryAddress:      "[ADDRESS_REDACTED]",
	CategoryZipCode:      "[ZIP_REDACTED]",
	CategoryCreditCard:   "[CARD_REDACTED]",
	CategoryLicensePlate: "[PLATE_REDACTED]",
	CategoryPersonName:   "[NAME_REDACTED]",
	CategoryOrganization: "[ORG_REDACTED]",
}

// tokenFor returns the placeholder for a category.
func tokenFor(category string) string {
	if t, ok := redactionTokens[category]; ok {
		return t
	}
	return "[REDACTED]"
}
