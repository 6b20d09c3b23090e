package redactor

import (
	"strings"
	"unicode"
)

// Honorifics that signal a person name follows.
var honorifics = map[string]bool{
	"mr":   true,
	"mr.":  true,
	"mrs":  true,
	"mrs.": true,
	"ms":   true,
	"ms.":  true,
	"dr":   true,
	"dr.":  true,
	"prof": true,
	"miss": true,
}

// Generational suffixes that may trail a person name.
var nameSuffixes = map[string]bool{
	"jr":   true,
	"jr.":  true,
	"sr":   true,
	"sr.":  true,
	"ii":   true,
	"iii":  true,
	"iv":   true,
	"esq":  true,
	"esq.": true,
}

// Corporate designators that close an organization name.
var orgSuffixes = map[string]bool{
	"llc":         true,
	"llc.":        true,
	"inc":         true,
	"inc.":        true,
	"corp":        true,
	"corp.":       true,
	"corporation": true,
	"ltd":         true,
	"ltd.":        true,
	"company":     true,
	"co.":         true,
	"properties":  true,
	"realty":      true,
	"management":  true,
	"trust":       true,
	"associates":  true,
	"partners":    true,
	"group":       true,
	"holdings":    true,
	"enterprises": true,
}

// Capitalized words that start sentences or headings all the time and
// must never be taken for the first half of a person name.
var nameStopwords = map[string]bool{
	"the": true, "this": true, "that": true, "these": true, "those": true,
	"a": true, "an": true, "in": true, "on": true, "at": true, "of": true,
	"for": true, "and": true, "or": true, "but": true, "if": true,
	"monthly": true, "security": true, "lease": true, "rental": true,
	"landlord": true, "tenant": true, "lessor": true, "lessee": true,
	"premises": true, "property": true, "agreement": true, "section": true,
	"article": true, "paragraph": true, "exhibit": true, "addendum": true,
	"late": true, "rent": true, "deposit": true, "notice": true,
	"state": true, "county": true, "city": true, "street": true,
	"avenue": true, "apartment": true, "unit": true, "suite": true,
	"january": true, "february": true, "march": true, "april": true,
	"may": true, "june": true, "july": true, "august": true,
	"september": true, "october": true, "november": true, "december": true,
}

// LexiconRecognizer is the default EntityRecognizer. It finds person
// names by honorific triggers and capitalized first/last pairs, and
// organizations by capitalized runs that end in a corporate designator.
// It needs no model weights and keeps the redactor self-contained.
type LexiconRecognizer struct{}

// NewLexiconRecognizer returns a ready-to-use lexicon recognizer.
func NewLexiconRecognizer() *LexiconRecognizer {
	return &LexiconRecognizer{}
}

// Recognize scans text and returns detected person and organization
// names in order of first appearance.
func (r *LexiconRecognizer) Recognize(text string) (persons, orgs []string) {
	words := splitWords(text)

	for i := 0; i < len(words); i++ {
		w := words[i]
		lower := strings.ToLower(w.text)

		if honorifics[lower] {
			if name, next := takeCapitalizedRun(words, i+1, 3); name != "" {
				persons = append(persons, name)
				i = next - 1
			}
			continue
		}

		if !isCapitalizedWord(w.text) || nameStopwords[lower] {
			continue
		}

		// Organization: capitalized run whose final word is a
		// corporate designator, e.g. "Oakwood Property Management".
		if run, next, last := capitalizedRunWithLast(words, i, 5); len(run) >= 2 && orgSuffixes[strings.ToLower(last)] {
			orgs = append(orgs, strings.Join(run, " "))
			i = next - 1
			continue
		}

		// Person: two adjacent capitalized non-stopword words,
		// optionally followed by a generational suffix.
		if i+1 < len(words) && words[i+1].adjacent(w) &&
			isCapitalizedWord(words[i+1].text) && !nameStopwords[strings.ToLower(words[i+1].text)] &&
			!orgSuffixes[strings.ToLower(words[i+1].text)] {
			name := w.text + " " + words[i+1].text
			next := i + 2
			if next < len(words) && nameSuffixes[strings.ToLower(words[next].text)] {
				name += " " + words[next].text
				next++
			}
			persons = append(persons, name)
			i = next - 1
		}
	}
	return persons, orgs
}

type word struct {
	text string
	pos  int
}

// adjacent reports whether w directly follows prev with only spacing
// between them, using positions to reject matches across sentences.
func (w word) adjacent(prev word) bool {
	return w.pos-(prev.pos+len(prev.text)) <= 1
}

func splitWords(text string) []word {
	var out []word
	start := -1
	for i, r := range text {
		boundary := unicode.IsSpace(r) || r == ',' || r == ';' || r == ':' || r == '(' || r == ')' || r == '"'
		if boundary {
			if start >= 0 {
				out = append(out, word{text: strings.TrimRight(text[start:i], "."), pos: start})
				// keep the trailing dot for honorific/suffix words
				if strings.HasSuffix(text[start:i], ".") && len(text[start:i]) <= 5 {
					out[len(out)-1].text = text[start:i]
				}
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		out = append(out, word{text: strings.TrimRight(text[start:], "."), pos: start})
	}
	return out
}

func isCapitalizedWord(s string) bool {
	if len(s) < 2 {
		return false
	}
	runes := []rune(s)
	if !unicode.IsUpper(runes[0]) {
		return false
	}
	for _, r := range runes[1:] {
		if !unicode.IsLetter(r) && r != '\'' && r != '-' && r != '.' {
			return false
		}
	}
	return true
}

// takeCapitalizedRun collects up to max adjacent capitalized words
// starting at idx and returns them joined, plus the index after the run.
func takeCapitalizedRun(words []word, idx, max int) (string, int) {
	var parts []string
	i := idx
	for i < len(words) && len(parts) < max {
		if !isCapitalizedWord(words[i].text) {
			break
		}
		if len(parts) > 0 && !words[i].adjacent(words[i-1]) {
			break
		}
		parts = append(parts, words[i].text)
		i++
	}
	if len(parts) == 0 {
		return "", idx
	}
	return strings.Join(parts, " "), i
}

// capitalizedRunWithLast collects adjacent capitalized words starting
// at idx, stopping after the final corporate designator or at max words.
func capitalizedRunWithLast(words []word, idx, max int) (run []string, next int, last string) {
	i := idx
	for i < len(words) && len(run) < max {
		t := words[i].text
		if !isCapitalizedWord(t) {
			break
		}
		if len(run) > 0 && !words[i].adjacent(words[i-1]) {
			break
		}
		run = append(run, t)
		i++
		if orgSuffixes[strings.ToLower(t)] {
			// "Property Management LLC" chains designators; stop only
			// when the next word does not extend the designator tail.
			if i < len(words) && words[i].adjacent(words[i-1]) &&
				isCapitalizedWord(words[i].text) && orgSuffixes[strings.ToLower(words[i].text)] {
				continue
			}
			break
		}
	}
	if len(run) == 0 {
		return nil, idx, ""
	}
	return run, i, run[len(run)-1]
}
