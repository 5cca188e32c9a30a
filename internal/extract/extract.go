// Package extract turns uploaded file bytes into plain text for chunking.
// PDFs go through go-fitz; everything text-like is decoded as UTF-8. An OCR
// engine is an optional injected capability used for scanned PDFs.
package extract

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/gen2brain/go-fitz"

	"github.com/docassist/docassist/models"
)

// minDigitalText is the digital-extraction length below which a PDF is
// treated as scanned and handed to OCR when allowed.
const minDigitalText = 200

// OCRFunc renders and recognizes text from a scanned document.
type OCRFunc func(data []byte) (string, error)

// Result carries the extracted text and whether OCR produced it.
type Result struct {
	Text    string
	UsedOCR bool
}

// Extractor decodes file content into text. The zero value works without OCR.
type Extractor struct {
	OCR OCRFunc
}

// FromFile extracts text from file bytes based on name and content type.
func (e *Extractor) FromFile(filename, contentType string, data []byte, ocrAllowed bool) (Result, error) {
	name := strings.ToLower(filename)
	ctype := strings.ToLower(contentType)

	switch {
	case strings.HasSuffix(name, ".txt") || strings.HasSuffix(name, ".md") || strings.HasPrefix(ctype, "text/"):
		return Result{Text: normalize(string(data))}, nil
	case strings.HasSuffix(name, ".pdf") || strings.Contains(ctype, "pdf"):
		return e.fromPDF(data, ocrAllowed)
	default:
		// Last resort: assume the bytes are readable text.
		return Result{Text: normalize(string(data))}, nil
	}
}

func (e *Extractor) fromPDF(data []byte, ocrAllowed bool) (Result, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return Result{}, fmt.Errorf("%w: open pdf: %v", models.ErrExtractionFailed, err)
	}
	defer doc.Close()

	var pages []string
	for i := 0; i < doc.NumPage(); i++ {
		text, err := doc.Text(i)
		if err != nil {
			continue
		}
		if strings.TrimSpace(text) != "" {
			pages = append(pages, text)
		}
	}

	digital := normalize(strings.Join(pages, "\n\n"))
	if len(digital) >= minDigitalText || !ocrAllowed || e.OCR == nil {
		return Result{Text: digital}, nil
	}

	recognized, err := e.OCR(data)
	if err != nil {
		return Result{}, fmt.Errorf("%w: ocr: %v", models.ErrExtractionFailed, err)
	}
	return Result{Text: normalize(recognized), UsedOCR: true}, nil
}

var (
	spaceRuns   = regexp.MustCompile(`[ \t]+`)
	newlineRuns = regexp.MustCompile(`\n{3,}`)
)

func normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = spaceRuns.ReplaceAllString(text, " ")
	text = newlineRuns.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
