package pdfio

import (
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/leaselens/leaselens/pkg/errors"
)

// Validate checks that the file at path is a structurally sound PDF.
// Uploads are rejected before anything else touches the file.
func Validate(path string) error {
	if err := api.ValidateFile(path, model.NewDefaultConfiguration()); err != nil {
		return errors.Wrapf(err, errors.ErrCodeDocumentNotPDF, "validate %s", path)
	}
	return nil
}

// PageCount returns the page count without fully opening the document.
func PageCount(path string) (int, error) {
	n, err := api.PageCountFile(path)
	if err != nil {
		return 0, errors.Wrapf(err, errors.ErrCodePDFOpenFailed, "count pages in %s", path)
	}
	return n, nil
}
