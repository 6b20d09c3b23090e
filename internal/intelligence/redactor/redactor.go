// Package redactor removes personally identifiable information from lease
// text before it reaches any external model.  Detection combines ordered
// regex categories with a pluggable named-entity recognizer; every removed
// value is recorded in a mapping that is encrypted per document and can only
// be recovered through the key store.
package redactor

import (
	"strings"

	"github.com/leaselens/leaselens/internal/infrastructure/logging"
)

// recognizerSliceLen bounds how much text is handed to the entity recognizer
// in one call.
const recognizerSliceLen = 1_000_000

// Mapping records the original values removed from the text, keyed by
// category.
type Mapping map[string][]string

// Result is the outcome of one redaction pass.
type Result struct {
	// Text is the input with every detected value replaced by its
	// category placeholder.
	Text string

	// Mapping holds the removed originals.  All regex categories are always
	// present (possibly empty); entity categories appear only when found.
	Mapping Mapping

	// Summary counts replacements per category, omitting zero entries.
	Summary map[string]int
}

// EntityRecognizer finds person and organization names in text.
// Implementations must be safe for concurrent use.
type EntityRecognizer interface {
	Recognize(text string) (persons []string, orgs []string)
}

// legalRoleAllowList holds generic lease vocabulary that must never be
// treated as an organization name.
var legalRoleAllowList = map[string]bool{
	"landlord": true,
	"tenant":   true,
	"lessor":   true,
	"lessee":   true,
}

// Redactor performs PII detection and replacement.  It keeps no state between
// calls; each Redact returns a self-contained Result.
type Redactor struct {
	recognizer EntityRecognizer
	log        logging.Logger
}

// New constructs a Redactor.  recognizer may be nil, in which case only the
// regex categories apply.
func New(recognizer EntityRecognizer, log logging.Logger) *Redactor {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Redactor{recognizer: recognizer, log: log.Named("redactor")}
}

// Redact detects and replaces PII in text.
//
// Regex categories run first, in declaration order, each category scanning
// the text as redacted so far; every non-skipped match replaces its first
// remaining occurrence.  Entity recognition then runs over the ORIGINAL text
// (so placeholders cannot confuse it) and substitutes only entities still
// present in the partially redacted text.
func (r *Redactor) Redact(text string) Result {
	redacted := text
	mapping := make(Mapping, len(patternCategories))
	counts := make(map[string]int)
	for _, cat := range patternCategories {
		mapping[cat.name] = []string{}
	}

	for _, cat := range patternCategories {
		for _, re := range cat.patterns {
			for _, match := range re.FindAllString(redacted, -1) {
				if isFalsePositive(match, cat.name) {
					continue
				}
				redacted = strings.Replace(redacted, match, tokenFor(cat.name), 1)
				mapping[cat.name] = append(mapping[cat.name], match)
				counts[cat.name]++
			}
		}
	}

	if r.recognizer != nil {
		persons, orgs := r.recognize(text)

		for _, entity := range persons {
			if !strings.Contains(redacted, entity) {
				continue
			}
			redacted = strings.ReplaceAll(redacted, entity, tokenFor(CategoryPersonName))
			mapping[CategoryPersonName] = append(mapping[CategoryPersonName], entity)
			counts[CategoryPersonName]++
		}

		for _, entity := range orgs {
			if legalRoleAllowList[strings.ToLower(entity)] {
				continue
			}
			if !strings.Contains(redacted, entity) {
				continue
			}
			redacted = strings.ReplaceAll(redacted, entity, tokenFor(CategoryOrganization))
			mapping[CategoryOrganization] = append(mapping[CategoryOrganization], entity)
			counts[CategoryOrganization]++
		}
	}

	r.log.Debug("redaction pass complete", logging.Int("replacements", total(counts)))
	return Result{Text: redacted, Mapping: mapping, Summary: counts}
}

// recognize feeds text to the recognizer in bounded slices and deduplicates
// the results preserving first-seen order.
func (r *Redactor) recognize(text string) (persons, orgs []string) {
	if len(text) <= recognizerSliceLen {
		p, o := r.recognizer.Recognize(text)
		return dedupe(p), dedupe(o)
	}

	var allPersons, allOrgs []string
	for start := 0; start < len(text); start += recognizerSliceLen {
		end := start + recognizerSliceLen
		if end > len(text) {
			end = len(text)
		}
		p, o := r.recognizer.Recognize(text[start:end])
		allPersons = append(allPersons, p...)
		allOrgs = append(allOrgs, o...)
	}
	return dedupe(allPersons), dedupe(allOrgs)
}

// isFalsePositive applies per-category skip rules:
//   - a four-digit date match is a bare year, not a birth date
//   - a five-digit zip in [1900, 2100] is more likely a year
//   - an "address" mentioning section or chapter is a statute reference
func isFalsePositive(match, categoryName string) bool {
	switch categoryName {
	case CategoryDateOfBirth:
		if len(match) == 4 && allDigits(match) {
			return true
		}
	case CategoryZipCode:
		if allDigits(match) {
			if y := atoi(match); y >= 1900 && y <= 2100 {
				return true
			}
		}
	case CategoryAddress:
		lower := strings.ToLower(match)
		if strings.Contains(lower, "section") || strings.Contains(lower, "chapter") {
			return true
		}
	}
	return false
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// atoi converts a digits-only string; callers check allDigits first.
func atoi(s string) int {
	n := 0
	for i := 0; i < len(s); i++ {
		n = n*10 + int(s[i]-'0')
	}
	return n
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

func total(counts map[string]int) int {
	n := 0
	for _, v := range counts {
		n += v
	}
	return n
}
