package extract

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"unicode/utf8"
)

// DefaultMaxBytes is the size limit used when none is configured.
const DefaultMaxBytes = 5 << 20

var blankRuns = regexp.MustCompile(`\n{3,}`)

// TextExtractor reads plain text, markdown and PDF documents from local
// files or from the handle itself.
type TextExtractor struct {
	maxBytes int64
	logger   *slog.Logger
	pdf      *PDFExtractor
}

// TextOption configures a TextExtractor.
type TextOption func(*TextExtractor)

// WithMaxBytes sets the document size limit.
func WithMaxBytes(n int64) TextOption {
	return func(e *TextExtractor) {
		if n > 0 {
			e.maxBytes = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) TextOption {
	return func(e *TextExtractor) {
		e.logger = logger.With("component", "text_extractor")
	}
}

// NewTextExtractor returns a TextExtractor.
func NewTextExtractor(opts ...TextOption) *TextExtractor {
	e := &TextExtractor{
		maxBytes: DefaultMaxBytes,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.pdf = NewPDFExtractor(e.logger)
	return e
}

// Extract implements Extractor for SourceFile and SourceBytes handles.
func (e *TextExtractor) Extract(ctx context.Context, h Handle) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	switch h.Source {
	case SourceBytes:
		return e.Decode(h.Name, h.Data)
	case SourceFile:
		data, err := e.readFile(h.Location)
		if err != nil {
			return "", err
		}
		return e.Decode(h.Name, data)
	default:
		return "", fmt.Errorf("%w: text extractor cannot read %q", ErrUnsupportedSource, h.Source)
	}
}

func (e *TextExtractor) readFile(p string) ([]byte, error) {
	f, err := os.Open(p)
	if err != nil {
		return nil, fmt.Errorf("opening document: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, e.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", p, err)
	}
	return data, nil
}

// Decode validates and normalises raw document bytes. PDF documents are
// passed to the PDF extractor.
func (e *TextExtractor) Decode(name string, data []byte) (string, error) {
	if int64(len(data)) > e.maxBytes {
		return "", fmt.Errorf("%w: %s exceeds %d bytes", ErrTooLarge, name, e.maxBytes)
	}
	if IsPDF(name, data) {
		return e.pdf.Decode(name, data)
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if !utf8.Valid(data) || bytes.IndexByte(data, 0) >= 0 {
		return "", fmt.Errorf("%w: %s", ErrNotText, name)
	}

	text := Normalize(string(data))
	if text == "" {
		return "", fmt.Errorf("%w: %s", ErrEmptyDocument, name)
	}
	e.logger.Debug("decoded document", "name", name, "bytes", len(data), "chars", utf8.RuneCountInString(text))
	return text, nil
}

// Normalize converts line endings to \n, strips trailing whitespace from
// every line and collapses runs of blank lines.
func Normalize(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	s = strings.Join(lines, "\n")
	s = blankRuns.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
