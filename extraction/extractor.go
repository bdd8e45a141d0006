// Package extraction pulls raw text out of uploaded documents so the
// tabular pipeline can work on a single representation regardless of the
// source format.
package extraction

import (
	"bytes"
	"fmt"
	"log/slog"
	"strings"

	"code.sajari.com/docconv/v2"
	"github.com/PuerkitoBio/goquery"
	"github.com/ledongthuc/pdf"
)

// OCRBackend converts scanned images to text. The default pipeline has no
// OCR; callers plug one in when they need image support.
type OCRBackend interface {
	Recognize(image []byte) (string, error)
}

type Extractor struct {
	logger *slog.Logger
	ocr    OCRBackend
}

func NewExtractor(logger *slog.Logger) *Extractor {
	return &Extractor{logger: logger}
}

// WithOCR returns an extractor that routes image uploads through the given
// backend.
func (e *Extractor) WithOCR(ocr OCRBackend) *Extractor {
	return &Extractor{logger: e.logger, ocr: ocr}
}

// Extract dispatches on media type. Unknown types are treated as plain text.
func (e *Extractor) Extract(data []byte, mediaType string) (string, error) {
	switch {
	case strings.Contains(mediaType, "pdf"):
		return e.ExtractPDF(data)
	case strings.Contains(mediaType, "wordprocessingml"), strings.Contains(mediaType, "msword"):
		return e.ExtractWord(data)
	case strings.Contains(mediaType, "html"):
		return e.ExtractHTML(data)
	case strings.HasPrefix(mediaType, "image/"):
		return e.ExtractImage(data)
	default:
		return e.ExtractPlain(data), nil
	}
}

// ExtractPDF walks every page and concatenates its plain text. Null pages
// are skipped; a document yielding no text at all is an error.
func (e *Extractor) ExtractPDF(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		e.logger.Error("Failed to create PDF reader",
			slog.String("error", err.Error()),
			slog.Int("data_size", len(data)))
		return "", fmt.Errorf("failed to create PDF reader: %v", err)
	}

	totalPages := reader.NumPage()
	var b strings.Builder
	for pageIndex := 1; pageIndex <= totalPages; pageIndex++ {
		page := reader.Page(pageIndex)
		if page.V.IsNull() {
			e.logger.Warn("Null page encountered", slog.Int("page_number", pageIndex))
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			e.logger.Error("Failed to extract text from page",
				slog.Int("page_number", pageIndex),
				slog.String("error", err.Error()))
			return "", fmt.Errorf("failed to extract text from page %d: %v", pageIndex, err)
		}
		b.WriteString(text)
	}

	if b.Len() == 0 {
		return "", fmt.Errorf("no text content extracted from PDF")
	}

	e.logger.Info("Successfully extracted text from PDF",
		slog.Int("total_pages", totalPages),
		slog.Int("total_text_length", b.Len()))
	return b.String(), nil
}

// ExtractWord converts a .docx body to text through docconv.
func (e *Extractor) ExtractWord(data []byte) (string, error) {
	mimeType := "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

	result, err := docconv.Convert(bytes.NewReader(data), mimeType, false)
	if err != nil {
		e.logger.Error("Failed to convert Word document",
			slog.String("error", err.Error()),
			slog.Int("data_size", len(data)))
		return "", fmt.Errorf("failed to convert Word document: %v", err)
	}
	if len(result.Body) == 0 {
		return "", fmt.Errorf("no text content extracted from Word document")
	}

	e.logger.Info("Successfully extracted text from Word document",
		slog.Int("text_length", len(result.Body)))
	return result.Body, nil
}

// ExtractHTML flattens HTML tables into delimiter-separated lines, one line
// per row with cells joined by commas, so they parse like any pasted table.
// Documents without tables fall back to the page's visible text.
func (e *Extractor) ExtractHTML(data []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %v", err)
	}

	var lines []string
	doc.Find("table").Each(func(_ int, table *goquery.Selection) {
		table.Find("tr").Each(func(_ int, row *goquery.Selection) {
			var cells []string
			row.Find("th, td").Each(func(_ int, cell *goquery.Selection) {
				cells = append(cells, strings.TrimSpace(cell.Text()))
			})
			if len(cells) > 0 {
				lines = append(lines, strings.Join(cells, ","))
			}
		})
	})

	if len(lines) > 0 {
		e.logger.Info("Extracted tables from HTML", slog.Int("rows", len(lines)))
		return strings.Join(lines, "\n"), nil
	}

	text := strings.TrimSpace(doc.Find("body").Text())
	if text == "" {
		return "", fmt.Errorf("no text content extracted from HTML")
	}
	return text, nil
}

// ExtractImage requires an OCR backend.
func (e *Extractor) ExtractImage(data []byte) (string, error) {
	if e.ocr == nil {
		return "", fmt.Errorf("no OCR backend configured for image extraction")
	}
	return e.ocr.Recognize(data)
}

// ExtractPlain normalizes line endings and strips a UTF-8 BOM.
func (e *Extractor) ExtractPlain(data []byte) string {
	text := strings.TrimPrefix(string(data), "\uFEFF")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.ReplaceAll(text, "\r", "\n")
}
