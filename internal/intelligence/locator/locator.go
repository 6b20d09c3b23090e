// Package locator resolves verbatim lease excerpts to bounding rectangles in
// the source PDF so a viewer can draw highlights.  Extraction coordinates
// arrive with a top-left origin; output uses the viewer's bottom-left origin.
package locator

import (
	"math"
	"strings"

	"github.com/leaselens/leaselens/internal/domain/analysis"
	"github.com/leaselens/leaselens/internal/infrastructure/logging"
)

// Word is one extracted word with its box in top-left-origin coordinates
// (Top < Bottom, Y increasing downward).
type Word struct {
	Text   string
	X0     float64
	Top    float64
	X1     float64
	Bottom float64
}

// PageSource exposes the extracted geometry of one PDF.  Pages are 1-based.
type PageSource interface {
	PageCount() int
	PageText(page int) (string, error)
	PageWords(page int) ([]Word, error)
	PageSize(page int) (width, height float64, err error)
}

// snippetLengths are the excerpt prefixes tried against each page, longest
// first.  Prefixes shorter than minSnippet are too unreliable to match.
var snippetLengths = [...]int{200, 150, 100, 75, 50}

const (
	minSnippet     = 20
	maxSearchWords = 30
	maxRunWords    = 15
	lineTolerance  = 5.0
)

// Default rectangle used when an excerpt cannot be located, in
// top-left-origin coordinates on a US-Letter page.
const (
	defaultX1     = 72.0
	defaultX2     = 540.0
	defaultTop    = 200.0
	defaultBottom = 250.0
	letterWidth   = 612.0
	letterHeight  = 792.0
)

// Locator finds excerpt positions within one document's pages.
type Locator struct {
	src PageSource
	log logging.Logger
}

// New builds a Locator over an open page source.
func New(src PageSource, log logging.Logger) *Locator {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Locator{src: src, log: log.Named("locator")}
}

// Locate returns the bounding geometry for excerpt.  pageHint restricts the
// search to one page (1-based); 0 searches every page in order.  Locate never
// fails: an unlocatable excerpt yields a deterministic default rectangle on
// the page that text-matched, else the hinted (or first) page.
func (l *Locator) Locate(excerpt string, pageHint int) analysis.Position {
	cleanSearch := normalize(excerpt)

	pages := make([]int, 0, l.src.PageCount())
	if pageHint > 0 {
		pages = append(pages, pageHint)
	} else {
		for p := 1; p <= l.src.PageCount(); p++ {
			pages = append(pages, p)
		}
	}

	matchedPage := 0
	for _, page := range pages {
		text, err := l.src.PageText(page)
		if err != nil || text == "" {
			continue
		}
		cleanPage := normalize(text)

		for _, n := range snippetLengths {
			snippet := cleanSearch
			if len(snippet) > n {
				snippet = snippet[:n]
			}
			if len(snippet) < minSnippet {
				continue
			}
			if strings.Contains(cleanPage, snippet) {
				if pos, ok := l.extract(page, excerpt); ok {
					return pos
				}
				if matchedPage == 0 {
					matchedPage = page
				}
				break // geometry failed here, try the next page
			}
		}
	}

	// A text match without usable geometry still pins the default rectangle
	// to the page the excerpt was found on.
	fallbackPage := matchedPage
	if fallbackPage == 0 {
		fallbackPage = pageHint
	}
	if fallbackPage == 0 {
		fallbackPage = 1
	}
	return l.defaultPosition(fallbackPage)
}

// extract matches excerpt words against the page's word boxes and unions the
// longest contiguous matching run into a rectangle.
func (l *Locator) extract(page int, excerpt string) (analysis.Position, bool) {
	width, height, err := l.src.PageSize(page)
	if err != nil {
		return analysis.Position{}, false
	}
	words, err := l.src.PageWords(page)
	if err != nil || len(words) == 0 {
		return analysis.Position{}, false
	}

	searchWords := strings.Fields(excerpt)
	if len(searchWords) > maxSearchWords {
		searchWords = searchWords[:maxSearchWords]
	}
	clean := make([]string, 0, len(searchWords))
	for _, sw := range searchWords {
		if c := normalize(sw); c != "" {
			clean = append(clean, c)
		}
	}
	if len(clean) == 0 {
		return analysis.Position{}, false
	}
	target := len(clean)
	if target > maxRunWords {
		target = maxRunWords
	}

	var best, current []Word
	for _, w := range words {
		wt := normalize(w.Text)
		matched := false
		for _, sw := range clean {
			if wt != "" && (strings.Contains(wt, sw) || strings.Contains(sw, wt)) {
				matched = true
				break
			}
		}
		if matched {
			current = append(current, w)
			if len(current) >= target {
				best = current
				break
			}
			continue
		}
		if len(current) > len(best) {
			best = current
		}
		current = nil
	}
	if len(current) > len(best) {
		best = current
	}
	if len(best) == 0 {
		return analysis.Position{}, false
	}

	bounding := rectFromWords(best, page, height)
	rects := lineRects(best, page, height)
	if len(rects) == 0 {
		rects = []analysis.Rect{bounding}
	}

	return analysis.Position{
		BoundingRect: bounding,
		Rects:        rects,
		PageHeight:   height,
		PageWidth:    width,
	}, true
}

// lineRects splits a word run into per-line rectangles, grouping words whose
// vertical position differs by less than lineTolerance.
func lineRects(words []Word, page int, pageHeight float64) []analysis.Rect {
	var rects []analysis.Rect
	var line []Word
	lastY := math.NaN()

	for _, w := range words {
		if math.IsNaN(lastY) || math.Abs(w.Top-lastY) < lineTolerance {
			line = append(line, w)
		} else {
			if len(line) > 0 {
				rects = append(rects, rectFromWords(line, page, pageHeight))
			}
			line = []Word{w}
		}
		lastY = w.Top
	}
	if len(line) > 0 {
		rects = append(rects, rectFromWords(line, page, pageHeight))
	}
	return rects
}

// rectFromWords unions word boxes and flips to bottom-origin coordinates:
// y_out = pageHeight - y_extracted.
func rectFromWords(words []Word, page int, pageHeight float64) analysis.Rect {
	x0, x1 := words[0].X0, words[0].X1
	top, bottom := words[0].Top, words[0].Bottom
	for _, w := range words[1:] {
		x0 = math.Min(x0, w.X0)
		x1 = math.Max(x1, w.X1)
		top = math.Min(top, w.Top)
		bottom = math.Max(bottom, w.Bottom)
	}

	y1 := round2(pageHeight - bottom)
	y2 := round2(pageHeight - top)
	return analysis.Rect{
		X1:         round2(x0),
		Y1:         y1,
		X2:         round2(x1),
		Y2:         y2,
		Width:      round2(x1 - x0),
		Height:     round2(y2 - y1),
		PageNumber: page,
	}
}

func (l *Locator) defaultPosition(page int) analysis.Position {
	width, height := letterWidth, letterHeight
	if page <= l.src.PageCount() {
		if w, h, err := l.src.PageSize(page); err == nil && h > 0 {
			width, height = w, h
		}
	}

	rect := analysis.Rect{
		X1:         defaultX1,
		Y1:         round2(height - defaultBottom),
		X2:         defaultX2,
		Y2:         round2(height - defaultTop),
		Width:      defaultX2 - defaultX1,
		Height:     defaultBottom - defaultTop,
		PageNumber: page,
	}
	return analysis.Position{
		BoundingRect: rect,
		Rects:        []analysis.Rect{rect},
		PageHeight:   height,
		PageWidth:    width,
	}
}

// normalize collapses whitespace and lowercases for comparison.
func normalize(text string) string {
	return strings.ToLower(strings.Join(strings.Fields(text), " "))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
