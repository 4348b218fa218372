package parser

import (
	"fmt"
	"strings"
	"testing"

	"github.com/fumiama/go-docx"

	"github.com/dgallion1/pqgram/internal/errs"
)

func TestForFile(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"a.txt", "*parser.TextParser"},
		{"a.MD", "*parser.MarkdownParser"},
		{"a.markdown", "*parser.MarkdownParser"},
		{"a.csv", "*parser.CSVParser"},
		{"a.htm", "*parser.HTMLParser"},
		{"a.pdf", "*parser.PDFParser"},
		{"a.docx", "*parser.DOCXParser"},
		{"a.yml", "*parser.YAMLParser"},
		{"a.json", "*parser.JSONParser"},
		{"a.go", "*parser.CodeParser"},
		{"a.py", "*parser.CodeParser"},
	}
	for _, tt := range tests {
		p, err := ForFile(tt.name, Options{})
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tt.name, err)
		}
		if got := typeOf(p); got != tt.want {
			t.Errorf("%s: expected %s, got %s", tt.name, tt.want, got)
		}
		if !IsSupportedExtension(tt.name) {
			t.Errorf("%s: expected supported", tt.name)
		}
	}

	_, err := ForFile("a.exe", Options{})
	if !errs.Is(err, errs.CodeUnsupported) {
		t.Errorf("expected UNSUPPORTED, got %v", err)
	}
	if IsSupportedExtension("a.exe") {
		t.Error("expected .exe to be unsupported")
	}
}

func TestForFile_PassesOptions(t *testing.T) {
	p, _ := ForFile("page.html", Options{KeepComments: true})
	if !p.(*HTMLParser).KeepComments {
		t.Error("expected KeepComments to be passed through")
	}
	p, _ = ForFile("doc.pdf", Options{FallbackPdftotext: true})
	if !p.(*PDFParser).FallbackPdftotext {
		t.Error("expected FallbackPdftotext to be passed through")
	}
}

func TestParseFile_WrapsParseErrors(t *testing.T) {
	_, err := ParseFile(strings.NewReader(`{"a":`), "bad.json", Options{})
	if !errs.Is(err, errs.CodeMalformedInput) {
		t.Errorf("expected MALFORMED_INPUT, got %v", err)
	}
}

func TestHTMLParser(t *testing.T) {
	input := `<!DOCTYPE html><html><head><title>x</title></head>
<body><!-- nav --><p>a</p><p>b <b>c</b></p></body></html>`

	if got, want := parse(t, &HTMLParser{}, input, "a.html"), "html(head(title),body(p,p(b)))"; got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
	if got, want := parse(t, &HTMLParser{KeepComments: true}, input, "a.html"), "html(head(title),body(#comment,p,p(b)))"; got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
}

func TestHTMLParser_Fragment(t *testing.T) {
	if got, want := parse(t, &HTMLParser{}, "<p>x</p>", "frag.html"), "html(head,body(p))"; got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
}

func TestCSVParser(t *testing.T) {
	input := "Name,Age\nann,3\nbob,\n"
	got := parse(t, &CSVParser{}, input, "people.csv")
	want := "table(header(th,th),row(col:name,col:age),row(col:name,col:age:empty))"
	if got != want {
		t.Errorf("expected %s, got %s", want, got)
	}

	if got := parse(t, &CSVParser{}, "", "empty.csv"); got != "table" {
		t.Errorf("expected bare table, got %s", got)
	}
}

func TestCSVParser_RaggedRows(t *testing.T) {
	got := parse(t, &CSVParser{}, "a\n1,2\n", "ragged.csv")
	if want := "table(header(th),row(col:a,col:1))"; got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
}

func TestYAMLParser(t *testing.T) {
	input := "a: 1\nb:\n  - x\n  - y\n"
	got := parse(t, &YAMLParser{}, input, "cfg.yaml")
	want := "document(mapping(key:a(scalar:int),key:b(sequence(scalar:str,scalar:str))))"
	if got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
}

func TestYAMLParser_MultiDocument(t *testing.T) {
	got := parse(t, &YAMLParser{}, "a: 1\n---\nb: true\n", "multi.yaml")
	want := "stream(document(mapping(key:a(scalar:int))),document(mapping(key:b(scalar:bool))))"
	if got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
}

func TestYAMLParser_Invalid(t *testing.T) {
	_, err := (&YAMLParser{}).Parse(strings.NewReader("a: [1, 2\n"), "bad.yaml")
	if err == nil {
		t.Fatal("expected error for unterminated flow sequence")
	}
}

func TestJSONParser(t *testing.T) {
	input := `{"a": 1, "b": [true, null, "s"], "c": {}}`
	got := parse(t, &JSONParser{}, input, "doc.json")
	want := "object(key:a(number),key:b(array(bool,null,string)),key:c(object))"
	if got != want {
		t.Errorf("expected %s, got %s", want, got)
	}

	if got := parse(t, &JSONParser{}, `"just a string"`, "s.json"); got != "string" {
		t.Errorf("expected string, got %s", got)
	}
	if got := parse(t, &JSONParser{}, `[[], {"k": "v"}]`, "n.json"); got != "array(array,object(key:k(string)))" {
		t.Errorf("unexpected nested tree %s", got)
	}
}

func TestJSONParser_Errors(t *testing.T) {
	for _, input := range []string{``, `{"a":`, `1 2`, `{"a" 1}`} {
		if _, err := (&JSONParser{}).Parse(strings.NewReader(input), "bad.json"); err == nil {
			t.Errorf("%q: expected error", input)
		}
	}
}

func TestCodeParser_Go(t *testing.T) {
	src := "package main\n\nfunc main() {}\n"
	got := parse(t, &CodeParser{Lang: LangGo}, src, "main.go")
	want := "source_file(package_clause(package_identifier),function_declaration(identifier,parameter_list,block))"
	if got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
}

func TestCodeParser_SyntaxError(t *testing.T) {
	_, err := (&CodeParser{Lang: LangGo}).Parse(strings.NewReader("func ("), "bad.go")
	if err == nil {
		t.Fatal("expected syntax error")
	}
	_, err = (&CodeParser{Lang: "cobol"}).Parse(strings.NewReader(""), "x.cbl")
	if err == nil {
		t.Fatal("expected unsupported language error")
	}
}

func TestDOCXTree(t *testing.T) {
	run := func() *docx.Run {
		return &docx.Run{Children: []interface{}{&docx.Text{Text: "words"}}}
	}
	body := &docx.Body{Items: []interface{}{
		&docx.Paragraph{
			Properties: &docx.ParagraphProperties{Style: &docx.Style{Val: "Heading 1"}},
			Children:   []interface{}{run()},
		},
		&docx.Paragraph{Children: []interface{}{run(), run()}},
		&docx.Table{TableRows: []*docx.WTableRow{
			{TableCells: []*docx.WTableCell{
				{Paragraphs: []*docx.Paragraph{{Children: []interface{}{run()}}}},
				{Tables: []*docx.Table{{}}},
			}},
		}},
	}}

	got := render(t, docxTree(body))
	want := "document(p:heading1(r(t)),p(r(t),r(t)),tbl(tr(tc(p(r(t))),tc(tbl))))"
	if got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
}

func TestPDFTextTree(t *testing.T) {
	got := render(t, pdfTextTree("Title\n  body line\n\n\fsecond page\n\f  \n"))
	if want := "pdf(page(row,row),page(row))"; got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
}

func TestTypeName(t *testing.T) {
	if got := typeName(&docx.Table{}); got != "table" {
		t.Errorf("expected table, got %s", got)
	}
}

func typeOf(v any) string {
	return fmt.Sprintf("%T", v)
}
