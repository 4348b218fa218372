package parser

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fumiama/go-docx"

	"github.com/dgallion1/pqgram/internal/tree"
)

// DOCXParser handles .docx files. The tree is document → body items
// (paragraphs keyed by style, tables) → runs and hyperlinks → run content.
type DOCXParser struct{}

func (p *DOCXParser) Parse(r io.Reader, filename string) (tree.Node[string], error) {
	// go-docx needs a ReaderAt+size, so write to temp file.
	tmp, err := os.CreateTemp("", "pqgram-docx-*.docx")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	size, err := io.Copy(tmp, r)
	if err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}

	doc, err := docx.Parse(tmp, size)
	tmp.Close()
	if err != nil {
		return nil, fmt.Errorf("parse docx: %w", err)
	}
	return docxTree(&doc.Document.Body), nil
}

func docxTree(body *docx.Body) *tree.Static[string] {
	root := tree.S("document")
	for _, item := range body.Items {
		root.Kids = append(root.Kids, docxItem(item))
	}
	return root
}

func docxItem(item any) *tree.Static[string] {
	switch v := item.(type) {
	case *docx.Paragraph:
		return docxParagraph(v)
	case *docx.Table:
		return docxTable(v)
	}
	return tree.S(typeName(item))
}

func docxParagraph(para *docx.Paragraph) *tree.Static[string] {
	n := tree.S(docxParagraphKey(para))
	for _, child := range para.Children {
		switch c := child.(type) {
		case *docx.Run:
			n.Kids = append(n.Kids, docxRun(c))
		case *docx.Hyperlink:
			n.Kids = append(n.Kids, tree.S("hyperlink", docxRun(&c.Run)))
		default:
			n.Kids = append(n.Kids, tree.S(typeName(child)))
		}
	}
	return n
}

func docxRun(run *docx.Run) *tree.Static[string] {
	n := tree.S("r")
	for _, rc := range run.Children {
		if _, ok := rc.(*docx.Text); ok {
			n.Kids = append(n.Kids, tree.S("t"))
			continue
		}
		n.Kids = append(n.Kids, tree.S(typeName(rc)))
	}
	return n
}

// docxTable walks nested tables with an explicit stack.
func docxTable(tbl *docx.Table) *tree.Static[string] {
	type pending struct {
		src *docx.Table
		dst *tree.Static[string]
	}
	root := tree.S("tbl")
	stack := []pending{{src: tbl, dst: root}}
	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, row := range p.src.TableRows {
			tr := tree.S("tr")
			for _, cell := range row.TableCells {
				tc := tree.S("tc")
				for _, para := range cell.Paragraphs {
					tc.Kids = append(tc.Kids, docxParagraph(para))
				}
				for _, inner := range cell.Tables {
					child := tree.S("tbl")
					tc.Kids = append(tc.Kids, child)
					stack = append(stack, pending{src: inner, dst: child})
				}
				tr.Kids = append(tr.Kids, tc)
			}
			p.dst.Kids = append(p.dst.Kids, tr)
		}
	}
	return root
}

// docxParagraphKey is "p" or "p:<style>", with the style lower-cased and
// stripped of spaces so "Heading 1" and "Heading1" agree.
func docxParagraphKey(para *docx.Paragraph) string {
	if para.Properties == nil || para.Properties.Style == nil || para.Properties.Style.Val == "" {
		return "p"
	}
	style := strings.ToLower(strings.ReplaceAll(para.Properties.Style.Val, " ", ""))
	return "p:" + style
}
