// Package pdfio reads lease PDFs: full text for chunking and redaction, and
// per-word geometry for highlight placement.
package pdfio

import (
	"os"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/leaselens/leaselens/internal/infrastructure/logging"
	"github.com/leaselens/leaselens/internal/intelligence/locator"
	"github.com/leaselens/leaselens/pkg/errors"
)

const defaultFontSize = 12.0

// Document is an open PDF.  It implements locator.PageSource.  Not safe for
// concurrent use; the underlying reader seeks.
type Document struct {
	file   *os.File
	reader *pdf.Reader
	log    logging.Logger
}

// Open opens the PDF at path for reading.
func Open(path string, log logging.Logger) (*Document, error) {
	if log == nil {
		log = logging.NewNopLogger()
	}
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrCodePDFOpenFailed, "open pdf %s", path)
	}
	return &Document{file: f, reader: r, log: log.Named("pdfio")}, nil
}

// Close releases the underlying file.
func (d *Document) Close() error {
	return d.file.Close()
}

// PageCount returns the number of pages.
func (d *Document) PageCount() int {
	return d.reader.NumPage()
}

// Text extracts the whole document: pages joined by blank lines, with
// leading and trailing whitespace stripped.
func (d *Document) Text() (string, error) {
	parts := make([]string, 0, d.PageCount())
	for page := 1; page <= d.PageCount(); page++ {
		text, err := d.PageText(page)
		if err != nil {
			return "", err
		}
		parts = append(parts, text)
	}
	full := strings.TrimSpace(strings.Join(parts, "\n\n"))
	if full == "" {
		return "", errors.New(errors.ErrCodePDFNoText, "document contains no extractable text")
	}
	return full, nil
}

// PageText extracts one page (1-based) using row geometry for spacing,
// falling back to the library's plain-text pass when rows are unavailable.
func (d *Document) PageText(page int) (string, error) {
	p, err := d.page(page)
	if err != nil {
		return "", err
	}

	rows, err := p.GetTextByRow()
	if err != nil {
		d.log.Debug("row extraction failed, falling back to plain text",
			logging.Int("page", page), logging.Err(err))
		text, err := p.GetPlainText(nil)
		if err != nil {
			return "", errors.Wrapf(err, errors.ErrCodePDFExtractFailed, "extract page %d", page)
		}
		return text, nil
	}

	var b strings.Builder
	for _, row := range sortRows(rows) {
		line := reconstructRow(row.Content)
		if strings.TrimSpace(line) == "" {
			continue
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String(), nil
}

// PageWords returns word boxes for one page in top-left-origin coordinates.
func (d *Document) PageWords(page int) ([]locator.Word, error) {
	p, err := d.page(page)
	if err != nil {
		return nil, err
	}
	_, height, err := d.PageSize(page)
	if err != nil {
		return nil, err
	}

	rows, err := p.GetTextByRow()
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrCodePDFExtractFailed, "extract page %d geometry", page)
	}

	var words []locator.Word
	for _, row := range sortRows(rows) {
		words = append(words, groupWords(row.Content, height)...)
	}
	return words, nil
}

// PageSize returns the page's media box dimensions, walking up the page tree
// for inherited boxes.  Pages without one report US-Letter.
func (d *Document) PageSize(page int) (width, height float64, err error) {
	p, err := d.page(page)
	if err != nil {
		return 0, 0, err
	}

	for v := p.V; !v.IsNull(); v = v.Key("Parent") {
		box := v.Key("MediaBox")
		if box.IsNull() || box.Len() != 4 {
			continue
		}
		w := box.Index(2).Float64() - box.Index(0).Float64()
		h := box.Index(3).Float64() - box.Index(1).Float64()
		if w > 0 && h > 0 {
			return w, h, nil
		}
	}
	return 612, 792, nil
}

func (d *Document) page(page int) (pdf.Page, error) {
	if page < 1 || page > d.reader.NumPage() {
		return pdf.Page{}, errors.Newf(errors.ErrCodePDFPageOutOfRange,
			"page %d out of range 1..%d", page, d.reader.NumPage())
	}
	p := d.reader.Page(page)
	if p.V.IsNull() {
		return pdf.Page{}, errors.Newf(errors.ErrCodePDFExtractFailed, "page %d has no content", page)
	}
	return p, nil
}

// sortRows orders rows top to bottom.  Extraction coordinates have a
// bottom-left origin, so larger Y means higher on the page.
func sortRows(rows pdf.Rows) []*pdf.Row {
	sorted := make([]*pdf.Row, 0, len(rows))
	for _, row := range rows {
		if row != nil && len(row.Content) > 0 {
			sorted = append(sorted, row)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return averageY(sorted[i].Content) > averageY(sorted[j].Content)
	})
	return sorted
}

func averageY(elems []pdf.Text) float64 {
	if len(elems) == 0 {
		return 0
	}
	var total float64
	for _, e := range elems {
		total += e.Y
	}
	return total / float64(len(elems))
}

// reconstructRow joins a row's fragments left to right, inserting a space
// wherever the horizontal gap exceeds a fifth of the font size.
func reconstructRow(elems []pdf.Text) string {
	sorted := sortByX(elems)

	var b strings.Builder
	for i, e := range sorted {
		b.WriteString(e.S)
		if i+1 < len(sorted) && gapAfter(e, sorted[i+1]) {
			b.WriteString(" ")
		}
	}
	return b.String()
}

// groupWords merges a row's fragments into word boxes, splitting on explicit
// spaces and on significant horizontal gaps.  Y values are converted from the
// extractor's bottom-left origin to top-left: top = height - y - fontSize.
func groupWords(elems []pdf.Text, pageHeight float64) []locator.Word {
	sorted := sortByX(elems)

	var words []locator.Word
	var cur *locator.Word
	flush := func() {
		if cur != nil && strings.TrimSpace(cur.Text) != "" {
			cur.Text = strings.TrimSpace(cur.Text)
			words = append(words, *cur)
		}
		cur = nil
	}

	for i, e := range sorted {
		if strings.TrimSpace(e.S) == "" {
			flush()
			continue
		}

		size := e.FontSize
		if size <= 0 {
			size = defaultFontSize
		}
		top := pageHeight - e.Y - size
		bottom := pageHeight - e.Y

		if cur == nil {
			cur = &locator.Word{Text: e.S, X0: e.X, Top: top, X1: e.X + e.W, Bottom: bottom}
		} else {
			cur.Text += e.S
			cur.X1 = e.X + e.W
			if top < cur.Top {
				cur.Top = top
			}
			if bottom > cur.Bottom {
				cur.Bottom = bottom
			}
		}

		if strings.HasSuffix(e.S, " ") || i+1 == len(sorted) || gapAfter(e, sorted[i+1]) {
			flush()
		}
	}
	flush()
	return words
}

func sortByX(elems []pdf.Text) []pdf.Text {
	sorted := make([]pdf.Text, len(elems))
	copy(sorted, elems)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].X < sorted[j].X })
	return sorted
}

func gapAfter(e, next pdf.Text) bool {
	size := e.FontSize
	if size <= 0 {
		size = defaultFontSize
	}
	return next.X-(e.X+e.W) > size*0.2
}
