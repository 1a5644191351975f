package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"
)

const (
	MIMEPDF  = "application/pdf"
	MIMEDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

var (
	// ErrUnsupportedType is returned for anything but PDF and DOCX
	ErrUnsupportedType = errors.New("unsupported file type")
	// ErrEmptyText is returned when a document has no extractable text
	ErrEmptyText = errors.New("no text could be extracted")
)

// Extractor turns uploaded documents into plain text
type Extractor struct {
	logger *zap.Logger
}

func NewExtractor(logger *zap.Logger) *Extractor {
	return &Extractor{logger: logger}
}

// Extract resolves the document type and returns its text.
// declaredType is the client Content-Type and only breaks ties for zip containers.
func (e *Extractor) Extract(ctx context.Context, fileName, declaredType string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if declaredType == MIMEDOCX && !strings.EqualFold(filepath.Ext(fileName), ".docx") {
		fileName += ".docx"
	}

	text, err := Text(fileName, data)
	if err != nil {
		e.logger.Warn("Text extraction failed",
			zap.String("file", fileName),
			zap.Int("bytes", len(data)),
			zap.Error(err))
		return "", err
	}

	e.logger.Debug("Extracted text", zap.String("file", fileName), zap.Int("chars", len(text)))
	return text, nil
}

// DetectType sniffs data and falls back to the file extension
func DetectType(fileName string, data []byte) string {
	m := mimetype.Detect(data)
	switch {
	case m.Is(MIMEPDF):
		return MIMEPDF
	case m.Is(MIMEDOCX):
		return MIMEDOCX
	}

	// Some writers produce DOCX files that sniff as plain zip
	if m.Is("application/zip") && strings.EqualFold(filepath.Ext(fileName), ".docx") {
		return MIMEDOCX
	}
	return m.String()
}

// Text extracts plain text from a PDF or DOCX document
func Text(fileName string, data []byte) (string, error) {
	var (
		text string
		err  error
	)

	switch kind := DetectType(fileName, data); kind {
	case MIMEPDF:
		text, err = pdfText(data)
	case MIMEDOCX:
		text, err = docxText(data)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, kind)
	}
	if err != nil {
		return "", err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyText
	}
	return text, nil
}

func pdfText(data []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to open pdf: %w", err)
	}

	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("failed to read pdf text: %w", err)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", fmt.Errorf("failed to read pdf text: %w", err)
	}
	return buf.String(), nil
}

func docxText(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to open docx: %w", err)
	}

	for _, f := range zr.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("failed to open document.xml: %w", err)
		}
		defer rc.Close()
		return documentXMLText(rc)
	}

	return "", fmt.Errorf("docx has no word/document.xml")
}

// documentXMLText walks WordprocessingML keeping run text, tabs and paragraph breaks
func documentXMLText(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)
	var (
		b      strings.Builder
		inText bool
	)

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("failed to parse document.xml: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				b.WriteByte('\t')
			case "br", "cr":
				b.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				b.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				b.Write(t)
			}
		}
	}

	return b.String(), nil
}
