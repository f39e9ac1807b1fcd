package extractor

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/krabiTim/knownothing-creative-rag/internal/models"
)

type wordDocument struct {
	XMLName xml.Name `xml:"document"`
	Body    wordBody `xml:"body"`
}

type wordBody struct {
	Paragraphs []wordParagraph `xml:"p"`
	Tables     []wordTable     `xml:"tbl"`
}

type wordParagraph struct {
	Runs []wordRun `xml:"r"`
}

type wordRun struct {
	Text string `xml:"t"`
}

type wordTable struct {
	Rows []wordRow `xml:"tr"`
}

type wordRow struct {
	Cells []wordCell `xml:"tc"`
}

type wordCell struct {
	Paragraphs []wordParagraph `xml:"p"`
}

// extractDOCX reads word/document.xml out of the DOCX container and
// collects paragraph text in document order, then each table flattened
// to one pipe-delimited line per row.
func extractDOCX(data []byte) (*Result, error) {
	reader := bytes.NewReader(data)

	zipReader, err := zip.NewReader(reader, int64(len(data)))
	if err != nil {
		return nil, &Error{Message: fmt.Sprintf("failed to read DOCX as ZIP: %v", err)}
	}

	var documentFile *zip.File
	for _, file := range zipReader.File {
		if file.Name == "word/document.xml" {
			documentFile = file
			break
		}
	}

	if documentFile == nil {
		return nil, &Error{Message: "document.xml not found in DOCX"}
	}

	xmlFile, err := documentFile.Open()
	if err != nil {
		return nil, &Error{Message: fmt.Sprintf("failed to open document.xml: %v", err)}
	}
	defer xmlFile.Close()

	xmlData, err := io.ReadAll(xmlFile)
	if err != nil {
		return nil, &Error{Message: fmt.Sprintf("failed to read document.xml: %v", err)}
	}

	var doc wordDocument
	if err := xml.Unmarshal(xmlData, &doc); err != nil {
		return nil, &Error{Message: fmt.Sprintf("failed to parse document.xml: %v", err)}
	}

	var textBuilder strings.Builder
	for _, para := range doc.Body.Paragraphs {
		if text := paragraphText(para); text != "" {
			textBuilder.WriteString(text)
			textBuilder.WriteString("\n")
		}
	}

	var notes []string
	for _, table := range doc.Body.Tables {
		for _, row := range table.Rows {
			cells := make([]string, 0, len(row.Cells))
			for _, cell := range row.Cells {
				cells = append(cells, cellText(cell))
			}
			rowText := strings.Join(cells, " | ")
			if strings.TrimSpace(rowText) != "" {
				textBuilder.WriteString(rowText)
				textBuilder.WriteString("\n")
			}
		}
	}
	if len(doc.Body.Tables) > 0 {
		notes = append(notes, fmt.Sprintf("extracted content from %d table(s)", len(doc.Body.Tables)))
	}

	return &Result{
		Text:    textBuilder.String(),
		Method:  "docx",
		Notes:   notes,
		Quality: models.QualityExcellent,
	}, nil
}

func paragraphText(para wordParagraph) string {
	var b strings.Builder
	for _, run := range para.Runs {
		b.WriteString(run.Text)
	}
	return strings.TrimSpace(b.String())
}

func cellText(cell wordCell) string {
	parts := make([]string, 0, len(cell.Paragraphs))
	for _, para := range cell.Paragraphs {
		if text := paragraphText(para); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}
