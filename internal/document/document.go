// Package document turns uploaded resume files into plain text.
package document

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/spigell/resume-screener/internal/apperr"
	"go.uber.org/zap"
)

// Format is the declared type of an uploaded document.
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
	FormatTXT  Format = "txt"
)

// SupportedFormats lists the formats ExtractText understands.
var SupportedFormats = []Format{FormatPDF, FormatDOCX, FormatTXT}

// Document is a raw uploaded file with its declared format.
type Document struct {
	Filename string
	Format   Format
	Content  []byte
}

// Empty reports whether there is nothing to extract.
func (d Document) Empty() bool {
	return len(d.Content) == 0
}

// FormatFromFilename derives the declared format from the file extension.
func FormatFromFilename(name string) Format {
	return Format(strings.ToLower(strings.TrimPrefix(filepath.Ext(name), ".")))
}

// Supported reports whether f is one of SupportedFormats.
func (f Format) Supported() bool {
	for _, s := range SupportedFormats {
		if f == s {
			return true
		}
	}
	return false
}

// Extractor converts documents into text.
type Extractor struct {
	pdftotext string
	runner    Runner
	minLength int
	logger    *zap.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithPdftotext overrides the pdftotext binary name or path.
func WithPdftotext(bin string) Option {
	return func(e *Extractor) {
		if strings.TrimSpace(bin) != "" {
			e.pdftotext = bin
		}
	}
}

// WithRunner replaces the command runner used for pdf extraction.
func WithRunner(r Runner) Option {
	return func(e *Extractor) { e.runner = r }
}

// WithMinLength rejects extracted text shorter than n runes.
func WithMinLength(n int) Option {
	return func(e *Extractor) { e.minLength = n }
}

func NewExtractor(logger *zap.Logger, opts ...Option) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Extractor{
		pdftotext: "pdftotext",
		runner:    execRunner{},
		logger:    logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ExtractText returns the trimmed text of doc.
func (e *Extractor) ExtractText(ctx context.Context, doc Document) (string, error) {
	if !doc.Format.Supported() {
		return "", apperr.New(apperr.KindUnsupportedFormat, "unsupported document format %q", doc.Format)
	}
	if doc.Empty() {
		return "", apperr.New(apperr.KindExtraction, "%s document is empty", doc.Format)
	}

	var (
		text string
		err  error
	)
	switch doc.Format {
	case FormatPDF:
		text, err = e.pdfText(ctx, doc.Content)
	case FormatDOCX:
		text, err = docxText(doc.Content)
	case FormatTXT:
		text, err = plainText(doc.Content)
	}
	if err != nil {
		return "", apperr.Wrap(apperr.KindExtraction, err, "extract %s text", doc.Format)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", apperr.New(apperr.KindExtraction, "no text found in %s document", doc.Format)
	}
	if e.minLength > 0 && len([]rune(text)) < e.minLength {
		return "", apperr.New(apperr.KindExtraction, "extracted text is too short (%d < %d characters)", len([]rune(text)), e.minLength)
	}

	e.logger.Debug("document text extracted",
		zap.String("filename", doc.Filename),
		zap.String("format", string(doc.Format)),
		zap.Int("bytes", len(doc.Content)),
		zap.Int("text_length", len([]rune(text))),
	)

	return text, nil
}
