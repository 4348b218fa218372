// Package parser turns uploaded documents into source trees for profiling.
//
// Each format has its own adapter. Node keys name structure only: an HTML
// tag, a Markdown block kind, a YAML node kind, an AST node type. Text
// content never becomes a key, so two documents with the same layout and
// different wording produce the same tree.
package parser

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/dgallion1/pqgram/internal/errs"
	"github.com/dgallion1/pqgram/internal/tree"
)

// Parser converts raw document bytes into a source tree.
type Parser interface {
	Parse(r io.Reader, filename string) (tree.Node[string], error)
}

// Options tune individual adapters.
type Options struct {
	// KeepComments keeps HTML comment nodes. By default they are dropped.
	KeepComments bool
	// FallbackPdftotext shells out to pdftotext when the PDF library fails.
	FallbackPdftotext bool
}

// SupportedExtensions lists file extensions this service can handle.
var SupportedExtensions = map[string]bool{
	".txt":      true,
	".md":       true,
	".markdown": true,
	".csv":      true,
	".html":     true,
	".htm":      true,
	".xhtml":    true,
	".pdf":      true,
	".docx":     true,
	".yaml":     true,
	".yml":      true,
	".json":     true,
	".go":       true,
	".py":       true,
	".js":       true,
	".mjs":      true,
}

// ForFile returns the appropriate parser for a filename.
func ForFile(filename string, opts Options) (Parser, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".txt":
		return &TextParser{}, nil
	case ".md", ".markdown":
		return &MarkdownParser{}, nil
	case ".csv":
		return &CSVParser{}, nil
	case ".html", ".htm", ".xhtml":
		return &HTMLParser{KeepComments: opts.KeepComments}, nil
	case ".pdf":
		return &PDFParser{FallbackPdftotext: opts.FallbackPdftotext}, nil
	case ".docx":
		return &DOCXParser{}, nil
	case ".yaml", ".yml":
		return &YAMLParser{}, nil
	case ".json":
		return &JSONParser{}, nil
	case ".go":
		return &CodeParser{Lang: LangGo}, nil
	case ".py":
		return &CodeParser{Lang: LangPython}, nil
	case ".js", ".mjs":
		return &CodeParser{Lang: LangJavaScript}, nil
	default:
		return nil, errs.New(errs.CodeUnsupported, "unsupported file extension: %q", ext)
	}
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return SupportedExtensions[ext]
}

// ParseFile picks the parser for filename and runs it.
func ParseFile(r io.Reader, filename string, opts Options) (tree.Node[string], error) {
	p, err := ForFile(filename, opts)
	if err != nil {
		return nil, err
	}
	n, err := p.Parse(r, filename)
	if err != nil {
		return nil, errs.Wrap(errs.CodeMalformedInput, err, "parse %s", filename)
	}
	return n, nil
}

// grow copies a native tree into Static nodes without recursion. kids
// returns the children of a native node in document order.
func grow[N any](root N, key func(N) string, kids func(N) []N) *tree.Static[string] {
	type pending struct {
		src N
		dst *tree.Static[string]
	}
	out := tree.S(key(root))
	stack := []pending{{src: root, dst: out}}
	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, c := range kids(p.src) {
			child := tree.S(key(c))
			p.dst.Kids = append(p.dst.Kids, child)
			stack = append(stack, pending{src: c, dst: child})
		}
	}
	return out
}

// typeName is the bare Go type name of v, for labelling library node types
// that have no better name.
func typeName(v any) string {
	s := fmt.Sprintf("%T", v)
	if i := strings.LastIndexByte(s, '.'); i >= 0 {
		s = s[i+1:]
	}
	return strings.ToLower(s)
}
