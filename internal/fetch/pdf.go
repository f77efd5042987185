package fetch

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"

	"studio/internal/logger"
)

// ExtractPDFText returns the plain text of a PDF document, pages separated
// by blank lines and capped like HTML extraction.
func ExtractPDFText(data []byte) (string, error) {
	pdfReader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to create PDF reader: %w", err)
	}

	var textBuilder strings.Builder
	pageCount := pdfReader.NumPage()
	for i := 1; i <= pageCount; i++ {
		page := pdfReader.Page(i)
		if page.V.IsNull() {
			continue
		}

		pageText, err := page.GetPlainText(nil)
		if err != nil {
			logger.Warn("Failed to extract text from PDF page", "page", i, "error", err)
			continue
		}

		textBuilder.WriteString(pageText)
		textBuilder.WriteString("\n\n")
	}

	return truncateRunes(cleanPDFText(textBuilder.String()), MaxTextLength), nil
}

// ReadPDFFile extracts the text of a local PDF file.
func ReadPDFFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read PDF file %s: %w", path, err)
	}
	return ExtractPDFText(data)
}

// cleanPDFText drops blank and very short lines, which are mostly layout noise
func cleanPDFText(rawText string) string {
	lines := strings.Split(rawText, "\n")
	var cleanLines []string

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if len([]rune(trimmed)) > 2 {
			cleanLines = append(cleanLines, trimmed)
		}
	}

	return strings.TrimSpace(strings.Join(cleanLines, "\n"))
}

// pdfTitle picks the first line that looks like a heading.
func pdfTitle(content string) string {
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		n := len([]rune(trimmed))
		if n > 10 && n < 200 && !strings.Contains(trimmed, "http") &&
			(n < 50 || !isAllUpperCase(trimmed)) {
			return trimmed
		}
	}
	return ""
}

func isAllUpperCase(s string) bool {
	return strings.ToUpper(s) == s && strings.ToLower(s) != s
}

// IsPDF reports whether a response is a PDF, by content type or URL suffix.
func IsPDF(contentType, rawURL string) bool {
	if strings.Contains(strings.ToLower(contentType), "application/pdf") {
		return true
	}
	u := strings.ToLower(rawURL)
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		u = u[:i]
	}
	return strings.HasSuffix(u, ".pdf")
}
