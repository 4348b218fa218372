package parser

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	pdflib "github.com/ledongthuc/pdf"

	"github.com/dgallion1/pqgram/internal/tree"
)

// PDFParser handles PDF files. The tree is pdf → page → row → text run,
// with runs keyed by font. It tries the Go library first, then falls back to
// pdftotext if enabled, in which case rows are plain lines.
type PDFParser struct {
	FallbackPdftotext bool
}

func (p *PDFParser) Parse(r io.Reader, filename string) (tree.Node[string], error) {
	// ledongthuc/pdf opens by path, so we write to a temp file.
	tmp, err := os.CreateTemp("", "pqgram-pdf-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	tmp.Close()

	root, err := pdfTree(tmpPath)
	if err != nil && p.FallbackPdftotext {
		var text string
		text, err = extractPdftotext(tmpPath)
		if err == nil {
			root = pdfTextTree(text)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("extract pdf structure: %w", err)
	}
	return root, nil
}

func pdfTree(path string) (*tree.Static[string], error) {
	f, reader, err := pdflib.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	root := tree.S("pdf")
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		rows, err := page.GetTextByRow()
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		pn := tree.S("page")
		for _, row := range rows {
			rn := tree.S("row")
			for _, t := range row.Content {
				rn.Kids = append(rn.Kids, tree.S(pdfRunKey(t)))
			}
			pn.Kids = append(pn.Kids, rn)
		}
		root.Kids = append(root.Kids, pn)
	}
	return root, nil
}

func pdfRunKey(t pdflib.Text) string {
	if t.Font == "" {
		return "text"
	}
	return "text:" + t.Font
}

// pdfTextTree builds pdf → page → line from pdftotext output, where pages
// are separated by form feeds.
func pdfTextTree(text string) *tree.Static[string] {
	root := tree.S("pdf")
	for _, page := range strings.Split(text, "\f") {
		if strings.TrimSpace(page) == "" {
			continue
		}
		pn := tree.S("page")
		for _, line := range strings.Split(page, "\n") {
			if strings.TrimSpace(line) != "" {
				pn.Kids = append(pn.Kids, tree.S("row"))
			}
		}
		root.Kids = append(root.Kids, pn)
	}
	return root
}

func extractPdftotext(path string) (string, error) {
	cmd := exec.Command("pdftotext", "-layout", path, "-")
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("pdftotext: %w", err)
	}
	return string(out), nil
}
