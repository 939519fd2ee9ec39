package service

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/AnTengye/contractrisk/config"
	"github.com/gen2brain/go-fitz"
)

const defaultMaxChars = 200_000

// Extractor turns an uploaded contract file into plain text and a page count.
type Extractor struct {
	maxChars int
}

func NewExtractor(cfg *config.AnalysisConfig) *Extractor {
	maxChars := defaultMaxChars
	if cfg != nil && cfg.MaxChars > 0 {
		maxChars = min(cfg.MaxChars, defaultMaxChars)
	}
	return &Extractor{maxChars: maxChars}
}

type docFormat int

const (
	formatPDF docFormat = iota
	formatDOCX
)

func detectFormat(filename string) (docFormat, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".pdf":
		return formatPDF, nil
	case ".docx":
		return formatDOCX, nil
	case ".doc":
		return 0, &LegacyFormatError{}
	default:
		return 0, &UnsupportedFormatError{Ext: ext}
	}
}

// CheckFormat runs the extension dispatch without touching the file.
func (e *Extractor) CheckFormat(filename string) error {
	_, err := detectFormat(filename)
	return err
}

// Extract reads the document at path. PDFs report their real page count;
// DOCX files count as a single page. The text is cut to the configured
// number of characters.
func (e *Extractor) Extract(ctx context.Context, path string) (string, int, error) {
	format, err := detectFormat(path)
	if err != nil {
		return "", 0, err
	}

	var (
		text  string
		pages int
	)
	switch format {
	case formatPDF:
		text, pages, err = extractPDF(ctx, path)
	case formatDOCX:
		text, err = extractDOCX(path)
		pages = 1
	}
	if err != nil {
		return "", 0, err
	}

	text = truncateRunes(text, e.maxChars)
	slog.Debug("text extracted", "path", filepath.Base(path), "pages", pages, "chars", utf8.RuneCountInString(text))
	return text, pages, nil
}

func extractPDF(ctx context.Context, path string) (string, int, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return "", 0, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	pageCount := doc.NumPage()
	parts := make([]string, 0, pageCount)
	for i := 0; i < pageCount; i++ {
		select {
		case <-ctx.Done():
			return "", 0, ctx.Err()
		default:
		}

		pageText, err := doc.Text(i)
		if err != nil {
			return "", 0, fmt.Errorf("failed to read page %d: %w", i+1, err)
		}
		parts = append(parts, pageText)
	}

	return strings.TrimSpace(strings.Join(parts, "\n")), pageCount, nil
}

func extractDOCX(path string) (string, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("failed to open DOCX: %w", err)
	}
	defer zr.Close()

	for _, file := range zr.File {
		if file.Name != "word/document.xml" {
			continue
		}

		rc, err := file.Open()
		if err != nil {
			return "", fmt.Errorf("failed to open document.xml: %w", err)
		}
		defer rc.Close()

		paragraphs, err := docxParagraphs(rc)
		if err != nil {
			return "", err
		}

		lines := make([]string, 0, len(paragraphs))
		for _, p := range paragraphs {
			if strings.TrimSpace(p) != "" {
				lines = append(lines, p)
			}
		}
		return strings.Join(lines, "\n"), nil
	}

	return "", fmt.Errorf("no word/document.xml found in DOCX")
}

// docxParagraphs collects the text of every w:p element. A paragraph nested
// inside another one (text boxes) becomes its own entry, emitted before the
// paragraph that contains it. mc:Fallback subtrees repeat their mc:Choice
// sibling and are skipped.
func docxParagraphs(r io.Reader) ([]string, error) {
	dec := xml.NewDecoder(r)

	var (
		paragraphs []string
		open       []*strings.Builder
		inText     bool
	)
	top := func() *strings.Builder {
		if len(open) == 0 {
			return nil
		}
		return open[len(open)-1]
	}

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse document.xml: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "Fallback":
				if err := dec.Skip(); err != nil {
					return nil, fmt.Errorf("failed to parse document.xml: %w", err)
				}
			case "p":
				open = append(open, &strings.Builder{})
			case "t":
				inText = true
			case "tab":
				if b := top(); b != nil {
					b.WriteByte('\t')
				}
			case "br", "cr":
				if b := top(); b != nil {
					b.WriteByte('\n')
				}
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "p":
				if b := top(); b != nil {
					paragraphs = append(paragraphs, b.String())
					open = open[:len(open)-1]
				}
			case "t":
				inText = false
			}
		case xml.CharData:
			if b := top(); inText && b != nil {
				b.Write(t)
			}
		}
	}
	return paragraphs, nil
}

func truncateRunes(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	count := 0
	for pos := range s {
		if count == n {
			return s[:pos]
		}
		count++
	}
	return s
}
