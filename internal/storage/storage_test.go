package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/pqgram/internal/errs"
	"github.com/dgallion1/pqgram/internal/labels"
	"github.com/dgallion1/pqgram/internal/pqgram"
	"github.com/dgallion1/pqgram/internal/tree"
)

func openMemory(t *testing.T) *ProfileRepo {
	t.Helper()
	db, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewProfileRepo(db)
}

func hashedProfile(t *testing.T, src *tree.Static[string], p, q int, opts ...pqgram.Option) (*pqgram.Profile[int64], tree.LabelMap[int64]) {
	t.Helper()
	tr, lm, err := tree.BuildDescribed[string, int64](src, labels.Hash{}, labels.Describe)
	require.NoError(t, err)
	prof, err := pqgram.Extract(tr, p, q, opts...)
	require.NoError(t, err)
	return prof, lm
}

func page() *tree.Static[string] {
	return tree.S("html",
		tree.S("head", tree.S("title")),
		tree.S("body", tree.S("p"), tree.S("p"), tree.S("div", tree.S("span"))),
	)
}

func TestProfileRepo_SaveAndGet(t *testing.T) {
	repo := openMemory(t)
	prof, lm := hashedProfile(t, page(), 2, 3)

	sp := &StoredProfile{Name: "index.html", Source: "upload", ContentHash: "abc", Profile: prof, Labels: lm}
	require.NoError(t, repo.Save(sp))
	assert.NotEmpty(t, sp.ID)
	assert.Equal(t, 2, sp.P)
	assert.Equal(t, 3, sp.Q)
	assert.Equal(t, prof.Len(), sp.GramCount)

	got, err := repo.Get(sp.ID)
	require.NoError(t, err)
	assert.Equal(t, "index.html", got.Name)
	assert.Equal(t, "upload", got.Source)
	assert.Equal(t, "abc", got.ContentHash)
	assert.False(t, got.LeafGrams)
	assert.Equal(t, prof.Len(), got.GramCount)
	assert.Equal(t, lm, got.Labels)

	name := pqgram.LabelMapNamer(lm)
	assert.Equal(t, prof.Tokens(name), got.Profile.Tokens(name))
	assert.Equal(t, 0.0, pqgram.Distance(prof, got.Profile))
	assert.Contains(t, got.Profile.Tokens(pqgram.LabelMapNamer(got.Labels)), "*|html|*|html|*")
}

func TestProfileRepo_SaveKeepsLeafGrams(t *testing.T) {
	repo := openMemory(t)
	prof, _ := hashedProfile(t, page(), 1, 2, pqgram.WithLeafGrams())

	sp := &StoredProfile{Name: "leafy", Source: "test", Profile: prof}
	require.NoError(t, repo.Save(sp))

	got, err := repo.Get(sp.ID)
	require.NoError(t, err)
	assert.True(t, got.LeafGrams)
	assert.True(t, got.Profile.LeafGrams())
	assert.Equal(t, prof.Len(), got.Profile.Len())
	assert.Empty(t, got.Labels)
}

func TestProfileRepo_SaveRejectsEmpty(t *testing.T) {
	repo := openMemory(t)
	err := repo.Save(&StoredProfile{Name: "nothing"})
	assert.True(t, errs.Is(err, errs.CodeInvalidInput), "got %v", err)
}

func TestProfileRepo_GetMissing(t *testing.T) {
	repo := openMemory(t)
	_, err := repo.Get("nope")
	assert.True(t, errs.Is(err, errs.CodeNotFound), "got %v", err)
}

func TestProfileRepo_ListOrder(t *testing.T) {
	repo := openMemory(t)
	prof, _ := hashedProfile(t, page(), 2, 3)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, name := range []string{"first", "second", "third"} {
		require.NoError(t, repo.Save(&StoredProfile{
			Name: name, Source: "test", Profile: prof,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	list, err := repo.List()
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "third", list[0].Name)
	assert.Equal(t, "first", list[2].Name)
	assert.Nil(t, list[0].Profile)

	n, err := repo.Count()
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestProfileRepo_ListShape(t *testing.T) {
	repo := openMemory(t)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	save := func(name string, p, q int, at int, opts ...pqgram.Option) {
		prof, lm := hashedProfile(t, page(), p, q, opts...)
		require.NoError(t, repo.Save(&StoredProfile{
			Name: name, Source: "test", Profile: prof, Labels: lm,
			CreatedAt: base.Add(time.Duration(at) * time.Second),
		}))
	}
	save("b", 2, 3, 2)
	save("a", 2, 3, 1)
	save("other-shape", 3, 2, 0)
	save("leafy", 2, 3, 3, pqgram.WithLeafGrams())

	got, err := repo.ListShape(2, 3, false)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].Name)
	assert.Equal(t, "b", got[1].Name)
	for _, sp := range got {
		assert.True(t, got[0].Profile.SameShape(sp.Profile))
		assert.NotEmpty(t, sp.Labels)
	}

	leafy, err := repo.ListShape(2, 3, true)
	require.NoError(t, err)
	require.Len(t, leafy, 1)
	assert.Equal(t, "leafy", leafy[0].Name)

	none, err := repo.ListShape(5, 5, false)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestProfileRepo_FindByHash(t *testing.T) {
	repo := openMemory(t)
	prof, _ := hashedProfile(t, page(), 2, 3)
	other, _ := hashedProfile(t, page(), 1, 1)

	a := &StoredProfile{Name: "a", Source: "test", ContentHash: "h1", Profile: prof}
	b := &StoredProfile{Name: "b", Source: "test", ContentHash: "h1", Profile: other}
	c := &StoredProfile{Name: "c", Source: "test", ContentHash: "h2", Profile: prof}
	for _, sp := range []*StoredProfile{a, b, c} {
		require.NoError(t, repo.Save(sp))
	}

	ids, err := repo.FindByHash("h1", 2, 3, false)
	require.NoError(t, err)
	assert.Equal(t, []string{a.ID}, ids)

	ids, err = repo.FindByHash("h3", 2, 3, false)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestProfileRepo_Delete(t *testing.T) {
	repo := openMemory(t)
	prof, _ := hashedProfile(t, page(), 2, 3)
	sp := &StoredProfile{Name: "gone", Source: "test", Profile: prof}
	require.NoError(t, repo.Save(sp))

	require.NoError(t, repo.Delete(sp.ID))
	_, err := repo.Get(sp.ID)
	assert.True(t, errs.Is(err, errs.CodeNotFound))

	err = repo.Delete(sp.ID)
	assert.True(t, errs.Is(err, errs.CodeNotFound), "got %v", err)
}

func TestNew_MigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "p.db")
	prof, _ := hashedProfile(t, page(), 2, 3)

	db, err := New(path)
	require.NoError(t, err)
	require.NoError(t, NewProfileRepo(db).Save(&StoredProfile{Name: "kept", Source: "test", Profile: prof}))
	require.NoError(t, db.Close())

	db, err = New(path)
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, db.Ping())

	n, err := NewProfileRepo(db).Count()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestGramBlob_RejectsTruncated(t *testing.T) {
	_, err := decodeGrams(make([]byte, 12), 1, 1, false)
	assert.True(t, errs.Is(err, errs.CodeMalformedInput))
}
