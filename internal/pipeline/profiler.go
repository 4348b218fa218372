package pipeline

import (
	"bytes"

	"github.com/dgallion1/pqgram/internal/labels"
	"github.com/dgallion1/pqgram/internal/metrics"
	"github.com/dgallion1/pqgram/internal/parser"
	"github.com/dgallion1/pqgram/internal/pqgram"
	"github.com/dgallion1/pqgram/internal/tree"
)

// Profiler turns uploaded documents into hashed trees and profiles. Labels
// come from labels.Hash, so profiles built by different workers and
// different processes are comparable.
type Profiler struct {
	opts parser.Options
}

func NewProfiler(opts parser.Options) *Profiler {
	return &Profiler{opts: opts}
}

// Tree parses doc and builds its labelled tree together with the
// descriptions of its labels.
func (pr *Profiler) Tree(doc Document) (*tree.Tree[int64], tree.LabelMap[int64], error) {
	src, err := parser.ParseFile(bytes.NewReader(doc.Data), doc.Name, pr.opts)
	if err != nil {
		metrics.RecordFailure("parse")
		return nil, nil, err
	}
	t, lm, err := tree.BuildDescribed(src, tree.Labeler[string, int64](labels.Hash{}), labels.Describe)
	if err != nil {
		metrics.RecordFailure("build")
		return nil, nil, err
	}
	return t, lm, nil
}

// Profile runs Tree and extracts the (p, q) profile.
func (pr *Profiler) Profile(doc Document, p, q int, leafGrams bool) (*pqgram.Profile[int64], tree.LabelMap[int64], error) {
	t, lm, err := pr.Tree(doc)
	if err != nil {
		return nil, nil, err
	}
	prof, err := pqgram.Extract(t, p, q, shapeOptions(leafGrams)...)
	if err != nil {
		metrics.RecordFailure("extract")
		return nil, nil, err
	}
	metrics.RecordProfiles("upload", 1)
	return prof, lm, nil
}

func shapeOptions(leafGrams bool) []pqgram.Option {
	if leafGrams {
		return []pqgram.Option{pqgram.WithLeafGrams()}
	}
	return nil
}
