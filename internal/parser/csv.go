package parser

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dgallion1/pqgram/internal/tree"
)

// CSVParser handles CSV files. The first record is the header. The tree is
// table → header + rows, with data cells keyed by their column header and
// empty cells marked as such.
type CSVParser struct{}

func (p *CSVParser) Parse(r io.Reader, filename string) (tree.Node[string], error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}

	root := tree.S("table")
	if len(records) == 0 {
		return root, nil
	}

	headers := records[0]
	head := tree.S("header")
	for range headers {
		head.Kids = append(head.Kids, tree.S("th"))
	}
	root.Kids = append(root.Kids, head)

	for _, row := range records[1:] {
		rn := tree.S("row")
		for j, cell := range row {
			rn.Kids = append(rn.Kids, tree.S(csvCellKey(headers, j, cell)))
		}
		root.Kids = append(root.Kids, rn)
	}
	return root, nil
}

func csvCellKey(headers []string, col int, cell string) string {
	key := "col:" + strconv.Itoa(col)
	if col < len(headers) && strings.TrimSpace(headers[col]) != "" {
		key = "col:" + strings.ToLower(strings.TrimSpace(headers[col]))
	}
	if strings.TrimSpace(cell) == "" {
		key += ":empty"
	}
	return key
}
