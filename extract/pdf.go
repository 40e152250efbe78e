package extract

import (
	"bytes"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

var pdfMagic = []byte("%PDF-")

// IsPDF reports whether a document is a PDF, by signature or by file name.
func IsPDF(name string, data []byte) bool {
	return bytes.HasPrefix(data, pdfMagic) || strings.EqualFold(filepath.Ext(name), ".pdf")
}

// PDFExtractor reads the text layer of PDF documents. Scanned PDFs without
// a text layer are reported as ErrEmptyDocument; there is no OCR.
type PDFExtractor struct {
	logger *slog.Logger
}

// NewPDFExtractor returns a PDFExtractor.
func NewPDFExtractor(logger *slog.Logger) *PDFExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &PDFExtractor{logger: logger}
}

// Decode returns the normalised text of every page, pages separated by a
// blank line.
func (e *PDFExtractor) Decode(name string, data []byte) (text string, err error) {
	if !bytes.HasPrefix(data, pdfMagic) {
		return "", fmt.Errorf("%w: %s has no PDF header", ErrInvalidPDF, name)
	}
	// The reader panics on some malformed object streams.
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("%w: %s: %v", ErrInvalidPDF, name, r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrInvalidPDF, name, err)
	}

	var sb strings.Builder
	fonts := make(map[string]*pdf.Font)
	pages := r.NumPage()
	for i := 1; i <= pages; i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		for _, f := range p.Fonts() {
			if _, ok := fonts[f]; !ok {
				font := p.Font(f)
				fonts[f] = &font
			}
		}
		pageText, err := p.GetPlainText(fonts)
		if err != nil {
			return "", fmt.Errorf("%w: %s page %d: %v", ErrInvalidPDF, name, i, err)
		}
		sb.WriteString(pageText)
		sb.WriteString("\n\n")
	}

	text = Normalize(strings.ToValidUTF8(sb.String(), ""))
	if text == "" {
		return "", fmt.Errorf("%w: %s has no text layer", ErrEmptyDocument, name)
	}
	e.logger.Debug("decoded pdf", "name", name, "pages", pages, "chars", len(text))
	return text, nil
}
