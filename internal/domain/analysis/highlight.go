package analysis

// Highlight colors, one per finding category.
const (
	ColorIllegal     = "red"
	ColorRiskySevere = "orange"
	ColorRisky       = "yellow"
	ColorFavorable   = "green"
)

// Display priorities, lower renders first.
const (
	PriorityIllegal     = 1
	PriorityRiskySevere = 2
	PriorityRisky       = 3
	PriorityFavorable   = 4
)

// Highlight categories as shown to the rendering client.
const (
	CategoryIllegalClause   = "illegal_clause"
	CategoryRiskyTerm       = "risky_term"
	CategoryFavorableClause = "favorable_clause"
)

// Rect is one rectangle in the viewer's coordinate system: origin at the
// bottom-left of the page, Y increasing upward, units in PDF points.
type Rect struct {
	X1         float64 `json:"x1"`
	Y1         float64 `json:"y1"`
	X2         float64 `json:"x2"`
	Y2         float64 `json:"y2"`
	Width      float64 `json:"width"`
	Height     float64 `json:"height"`
	PageNumber int     `json:"pageNumber"`
}

// Position is the bounding geometry for one highlight: the overall box plus
// per-line rectangles for multi-line excerpts.
type Position struct {
	BoundingRect Rect    `json:"boundingRect"`
	Rects        []Rect  `json:"rects"`
	PageHeight   float64 `json:"pageHeight"`
	PageWidth    float64 `json:"pageWidth"`
}

// Highlight is the renderable form of one finding.  Created once during
// consolidation and never mutated afterwards.
type Highlight struct {
	ID              string   `json:"id"`
	PageNumber      int      `json:"pageNumber"`
	Color           string   `json:"color"`
	Priority        int      `json:"priority"`
	Category        string   `json:"category"`
	Text            string   `json:"text"`
	Statute         string   `json:"statute,omitempty"`
	Explanation     string   `json:"explanation"`
	DamagesEstimate int      `json:"damages_estimate"`
	Position        Position `json:"position"`
}

// Locator resolves a verbatim lease excerpt to its bounding geometry in the
// source PDF.  pageHint of 0 searches all pages.  Implementations never fail:
// an unlocatable excerpt yields a deterministic default rectangle.
type Locator interface {
	Locate(excerpt string, pageHint int) Position
}
