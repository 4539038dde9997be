package ingest

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// extractPages is a package variable rather than a plain function so tests
// can substitute a fake and exercise Ingestor.Ingest without a real PDF
// file on disk.
var extractPages = extractPagesPDF

// extractPagesPDF extracts per-page text from a PDF file, preserving page
// numbers, modeled on a pdfcpu-based extractor rather than a pdftotext
// shell-out, since shelling out collapses page boundaries that callers
// need preserved.
func extractPagesPDF(path string) ([]string, error) {
	pdfCtx, err := api.ReadContextFile(path)
	if err != nil {
		return nil, fmt.Errorf("ingest: read pdf: %w: %w", ErrInvalidPDF, err)
	}
	pageCount := pdfCtx.PageCount
	if pageCount == 0 {
		return nil, nil
	}

	outDir, err := os.MkdirTemp("", "lexigraph-pdf-*")
	if err != nil {
		return nil, fmt.Errorf("ingest: temp dir: %w", err)
	}
	defer os.RemoveAll(outDir)

	conf := model.NewDefaultConfiguration()
	if err := api.ExtractContentFile(path, outDir, nil, conf); err != nil {
		return nil, fmt.Errorf("ingest: extract pdf content: %w", err)
	}

	files, err := os.ReadDir(outDir)
	if err != nil {
		return nil, fmt.Errorf("ingest: read extracted content: %w", err)
	}

	pageTexts := make(map[int]string, pageCount)
	for _, f := range files {
		if f.IsDir() {
			continue
		}
		var pageNum int
		if _, err := fmt.Sscanf(f.Name(), "Content_page_%d", &pageNum); err != nil {
			if _, err2 := fmt.Sscanf(f.Name(), "page_%d", &pageNum); err2 != nil {
				continue
			}
		}
		content, err := os.ReadFile(filepath.Join(outDir, f.Name()))
		if err != nil {
			continue
		}
		pageTexts[pageNum] = string(content)
	}

	pages := make([]string, pageCount)
	nums := make([]int, 0, pageCount)
	for n := range pageTexts {
		nums = append(nums, n)
	}
	sort.Ints(nums)
	for _, n := range nums {
		if n >= 1 && n <= pageCount {
			pages[n-1] = pageTexts[n]
		}
	}
	return pages, nil
}
