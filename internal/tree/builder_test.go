package tree

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/pqgram/internal/errs"
)

// brokenNode fails on Label or Children on demand.
type brokenNode struct {
	key         string
	kids        []Node[string]
	labelErr    error
	childrenErr error
}

func (b *brokenNode) Label() (string, error) { return b.key, b.labelErr }
func (b *brokenNode) Children() ([]Node[string], error) { return b.kids, b.childrenErr }

func labels(t *Tree[string]) []string {
	var out []string
	t.Walk(func(n *Tree[string], _ int) bool {
		out = append(out, n.Label)
		return true
	})
	return out
}

func TestBuild_PreservesOrderAndShape(t *testing.T) {
	src := S("html",
		S("head", S("title")),
		S("body", S("p"), S("p"), S("div", S("span"))),
	)

	got, err := Build[string, string](src, Identity[string]())
	require.NoError(t, err)

	assert.Equal(t, []string{"html", "head", "title", "body", "p", "p", "div", "span"}, labels(got))
	assert.Equal(t, 8, got.Size())
	assert.Equal(t, 4, got.Depth())
	assert.Equal(t, 4, got.Leaves())
	require.Len(t, got.Children, 2)
	assert.Len(t, got.Children[1].Children, 3, "duplicate siblings must be kept")
}

func TestBuild_Leaf(t *testing.T) {
	got, err := Build[string, string](S("only"), Identity[string]())
	require.NoError(t, err)
	assert.True(t, got.IsLeaf())
	assert.Equal(t, 1, got.Size())
	assert.Equal(t, 1, got.Depth())
}

func TestBuild_DeepChainDoesNotRecurse(t *testing.T) {
	const depth = 200000
	root := S("n")
	cur := root
	for range depth - 1 {
		next := S("n")
		cur.Kids = []*Static[string]{next}
		cur = next
	}

	got, err := Build[string, string](root, Identity[string]())
	require.NoError(t, err)
	assert.Equal(t, depth, got.Depth())
}

func TestBuild_LabelerMapsLabels(t *testing.T) {
	lengths := LabelerFunc[string, int](func(k string) (int, error) { return len(k), nil })

	got, err := Build[string, int](S("abc", S("de"), S("f")), lengths)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Label)
	assert.Equal(t, 2, got.Children[0].Label)
	assert.Equal(t, 1, got.Children[1].Label)
}

func TestBuild_LabelFailureReportsPath(t *testing.T) {
	boom := errors.New("no tag attribute")
	src := &brokenNode{key: "root", kids: []Node[string]{
		S("a"),
		&brokenNode{key: "b", kids: []Node[string]{
			S("c"),
			&brokenNode{labelErr: boom},
		}},
	}}

	_, err := Build[string, string](src, Identity[string]())
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.CodeMalformedInput))
	assert.True(t, errs.Is(err, errs.CodeLabelExtraction))
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "/1/1")
}

func TestBuild_ChildrenFailure(t *testing.T) {
	boom := errors.New("not iterable")
	src := &brokenNode{key: "root", kids: []Node[string]{
		&brokenNode{key: "a", childrenErr: boom},
	}}

	_, err := Build[string, string](src, Identity[string]())
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.CodeMalformedInput))
	assert.False(t, errs.Is(err, errs.CodeLabelExtraction))
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "/0")
}

func TestBuild_NilNodes(t *testing.T) {
	_, err := Build[string, string](nil, Identity[string]())
	assert.True(t, errs.Is(err, errs.CodeMalformedInput))

	src := S("root", nil)
	_, err = Build[string, string](src, Identity[string]())
	assert.True(t, errs.Is(err, errs.CodeMalformedInput))
	assert.Contains(t, err.Error(), "/0")
}

func TestBuild_LabelerErrorPropagates(t *testing.T) {
	refuse := LabelerFunc[string, string](func(k string) (string, error) {
		if k == "bad" {
			return "", errs.New(errs.CodeLabelCollision, "reserved")
		}
		return k, nil
	})

	_, err := Build[string, string](S("root", S("ok"), S("bad")), refuse)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.CodeLabelCollision))
	assert.Contains(t, err.Error(), "/1")
}

func TestBuildDescribed_SameShapeAsBuild(t *testing.T) {
	src := S("html", S("body", S("p"), S("p")))
	upper := LabelerFunc[string, string](func(k string) (string, error) { return strings.ToUpper(k), nil })

	plain, err := Build[string, string](src, upper)
	require.NoError(t, err)

	described, lm, err := BuildDescribed[string, string](src, upper, func(k string) string { return "<" + k + ">" })
	require.NoError(t, err)

	assert.Equal(t, plain, described)
	assert.Equal(t, LabelMap[string]{"HTML": "<html>", "BODY": "<body>", "P": "<p>"}, lm)
}

func TestBuildDescribed_DefaultDescriber(t *testing.T) {
	_, lm, err := BuildDescribed[string, string](S("a", S("b")), Identity[string](), nil)
	require.NoError(t, err)
	assert.Equal(t, LabelMap[string]{"a": "a", "b": "b"}, lm)
}

func TestBuild_DoesNotMutateSource(t *testing.T) {
	src := S("r", S("x"), S("y"))
	got, err := Build[string, string](src, Identity[string]())
	require.NoError(t, err)

	got.Add(New("z"))
	assert.Len(t, src.Kids, 2)
	assert.Len(t, got.Children, 3)
}
