package scrape

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	rpdf "rsc.io/pdf"
)

// extractPDFText flattens a PDF into plain text. The parser panics on some
// malformed documents, so the call is guarded.
func extractPDFText(content []byte) (text string, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("pdf parser panic: %v", recovered)
			text = ""
		}
	}()

	reader, err := rpdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", err
	}

	var builder strings.Builder
	for pageIndex := 1; pageIndex <= reader.NumPage(); pageIndex++ {
		page := reader.Page(pageIndex)
		if page.V.IsNull() {
			continue
		}
		for _, fragment := range page.Content().Text {
			builder.WriteString(fragment.S)
			builder.WriteString(" ")
		}
		builder.WriteString("\n")
	}

	return builder.String(), nil
}

// FloorAreaFromBrochure fetches a listing brochure or floorplan PDF and
// extracts a floor-area candidate from its text. Used when the listing page
// itself carries no size.
func FloorAreaFromBrochure(ctx context.Context, fetcher Fetcher, pdfURL string) (float64, error) {
	doc, err := fetcher.Fetch(ctx, pdfURL)
	if err != nil {
		return 0, err
	}
	defer doc.Body.Close()

	content, err := io.ReadAll(doc.Body)
	if err != nil {
		return 0, fmt.Errorf("brochure read failed: %w", err)
	}

	text, err := extractPDFText(content)
	if err != nil {
		return 0, fmt.Errorf("brochure text extraction failed: %w", err)
	}

	area := floorAreaFromText(text)
	if area == 0 {
		return 0, fmt.Errorf("no floor area found in brochure %s", pdfURL)
	}
	return area, nil
}
