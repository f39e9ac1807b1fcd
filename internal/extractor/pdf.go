package extractor

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// extractPDF pulls text page by page. A page that fails to decode or
// yields nothing is recorded as a note and does not abort the rest of
// the document; PageCount is always recorded. The pdf library panics
// on some malformed files, so the whole pass runs under a recover.
func extractPDF(data []byte) (result *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = &Error{Message: fmt.Sprintf("failed to parse PDF structure: %v", r)}
		}
	}()

	reader := bytes.NewReader(data)

	pdfReader, err := pdf.NewReader(reader, int64(len(data)))
	if err != nil {
		return nil, &Error{Message: fmt.Sprintf("failed to parse PDF structure: %v", err)}
	}

	numPages := pdfReader.NumPage()
	var textBuilder strings.Builder
	var notes []string

	for i := 1; i <= numPages; i++ {
		page := pdfReader.Page(i)
		if page.V.IsNull() {
			notes = append(notes, fmt.Sprintf("page %d could not be decoded", i))
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			notes = append(notes, fmt.Sprintf("error extracting page %d: %v", i, err))
			continue
		}

		if strings.TrimSpace(text) == "" {
			notes = append(notes, fmt.Sprintf("page %d appears to be empty or image-only", i))
			continue
		}

		fmt.Fprintf(&textBuilder, "\n--- Page %d ---\n", i)
		textBuilder.WriteString(text)
	}

	pageCount := numPages

	return &Result{
		Text:      textBuilder.String(),
		Method:    "pdf",
		PageCount: &pageCount,
		Notes:     notes,
	}, nil
}
