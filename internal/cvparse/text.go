package cvparse

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/nguyenthenguyen/docx"
	"github.com/unidoc/unipdf/v3/extractor"
	"github.com/unidoc/unipdf/v3/model"
)

// MaxTextLen caps the text handed to the model.
const MaxTextLen = 20000

var (
	ErrUnsupportedFormat = errors.New("unsupported document format")
	ErrNoText            = errors.New("no text could be extracted")

	xmlTags    = regexp.MustCompile(`<[^>]+>`)
	paragraphs = regexp.MustCompile(`</w:p>`)
	blankRuns  = regexp.MustCompile(`[ \t]+`)
	manyLines  = regexp.MustCompile(`\n{3,}`)
)

// ExtractText returns the plain text of a .pdf, .docx or .txt document.
func ExtractText(ext string, data []byte) (string, error) {
	var text string
	var err error
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "pdf":
		text, err = pdfText(data)
	case "docx":
		text, err = docxText(data)
	case "txt":
		text = string(data)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return "", err
	}

	text = normalize(text)
	if text == "" {
		return "", ErrNoText
	}
	if len(text) > MaxTextLen {
		text = text[:MaxTextLen]
	}
	return text, nil
}

func pdfText(data []byte) (string, error) {
	reader, err := model.NewPdfReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("read pdf: %w", err)
	}
	n, err := reader.GetNumPages()
	if err != nil {
		return "", fmt.Errorf("pdf page count: %w", err)
	}

	var sb strings.Builder
	for i := 1; i <= n; i++ {
		page, err := reader.GetPage(i)
		if err != nil {
			logger.Warn("cvparse: skipping pdf page", "page", i, "error", err)
			continue
		}
		ex, err := extractor.New(page)
		if err != nil {
			logger.Warn("cvparse: skipping pdf page", "page", i, "error", err)
			continue
		}
		pageText, err := ex.ExtractText()
		if err != nil {
			logger.Warn("cvparse: skipping pdf page", "page", i, "error", err)
			continue
		}
		sb.WriteString(pageText)
		sb.WriteString("\n\n")
	}
	return sb.String(), nil
}

func docxText(data []byte) (string, error) {
	r, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("read docx: %w", err)
	}
	defer r.Close()

	content := r.Editable().GetContent()
	content = paragraphs.ReplaceAllString(content, "\n")
	return unescapeXML(xmlTags.ReplaceAllString(content, "")), nil
}

var xmlEntities = strings.NewReplacer("&amp;", "&", "&lt;", "<", "&gt;", ">", "&quot;", `"`, "&apos;", "'")

func unescapeXML(s string) string { return xmlEntities.Replace(s) }

func normalize(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = blankRuns.ReplaceAllString(s, " ")
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(l)
	}
	s = strings.Join(lines, "\n")
	return strings.TrimSpace(manyLines.ReplaceAllString(s, "\n\n"))
}
