package gormstore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/bluesky-social/nestedset/models"
	"github.com/bluesky-social/nestedset/predicate"
	"github.com/bluesky-social/nestedset/store"

	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func testStore(t *testing.T, opts *Options) *GormStore {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "tree.sqlite")), &gorm.Config{SkipDefaultTransaction: true})
	if err != nil {
		t.Fatal(err)
	}
	s := NewGormStore(db, opts)
	if err := s.Migrate(context.Background()); err != nil {
		t.Fatal(err)
	}

	rows := []models.Node{
		{ID: 1, Name: "root", Lft: 1, Rgt: 6},
		{ID: 2, Name: "a", Lft: 2, Rgt: 3, ParentID: models.Ref(1)},
		{ID: 3, Name: "b", Lft: 4, Rgt: 5, ParentID: models.Ref(1), Attrs: map[string]any{"color": "red"}},
		{ID: 4, Name: "other", Lft: 1, Rgt: 2, Scope: "menu_id=2"},
	}
	for i := range rows {
		if err := s.Create(context.Background(), &rows[i]); err != nil {
			t.Fatal(err)
		}
	}
	return s
}

func TestCompile(t *testing.T) {
	assert := assert.New(t)

	q, args := compile(predicate.All(
		predicate.Scope{Key: "k"},
		predicate.Between{Field: predicate.Left, Lo: predicate.Const(2), Hi: predicate.BoundOf{ID: 7, Field: predicate.Right}},
	))
	assert.Equal("(tree_nodes.scope = ? and tree_nodes.lft between ? and (select _n.rgt + ? from tree_nodes _n where _n.id = ? and _n.scope = tree_nodes.scope limit 1))", q)
	assert.Equal([]any{"k", int64(2), 0, int64(7)}, args)

	q, _ = compile(predicate.Or{})
	assert.Equal("1=0", q)

	q, args = caseExpr("lft", store.Patch{Shifts: []store.Shift{{Lo: 3, Hi: 4, Delta: 14}, {Lo: 3, Hi: 18, Delta: -2}}})
	assert.Equal("case when lft between ? and ? then lft + ? when lft between ? and ? then lft + ? else lft end", q)
	assert.Equal([]any{3, 4, 14, 3, 18, -2}, args)
}

func TestFind(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	s := testStore(t, nil)
	b := predicate.Builder{}

	rows, err := s.Find(ctx, store.Query{Where: b.All(), WithDepth: true})
	assert.NoError(err)
	assert.Len(rows, 3)
	assert.Equal(0, rows[0].Depth)
	assert.Equal(1, rows[2].Depth)
	assert.Equal("red", rows[2].Attrs["color"])

	rows, err = s.Find(ctx, store.Query{Where: b.AncestorsOf(predicate.ByID(3), false)})
	assert.NoError(err)
	assert.Len(rows, 1)
	assert.Equal("root", rows[0].Name)

	rows, err = s.Find(ctx, store.Query{Where: b.AtDepth(predicate.Eq, 1), Order: store.OrderLeftDesc, Limit: 1})
	assert.NoError(err)
	assert.Len(rows, 1)
	assert.Equal("b", rows[0].Name)

	cnt, err := s.Count(ctx, b.Leaves())
	assert.NoError(err)
	assert.Equal(int64(2), cnt)

	_, err = store.Get(ctx, s, "", 4)
	assert.True(errors.Is(err, store.ErrNotFound))
}

func TestShiftAndDelete(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	s := testStore(t, nil)
	b := predicate.Builder{}

	n, err := s.UpdateWhere(ctx, b.FromCut(4), store.Patch{Shifts: []store.Shift{{Lo: 4, Hi: store.Unbounded, Delta: 2}}})
	assert.NoError(err)
	assert.Equal(int64(2), n)

	v, ok, err := s.Max(ctx, predicate.Right, b.All())
	assert.NoError(err)
	assert.True(ok)
	assert.Equal(8, v)

	_, ok, err = s.Max(ctx, predicate.Right, b.Node(99))
	assert.NoError(err)
	assert.False(ok)

	n, err = s.DeleteWhere(ctx, b.DescendantsOf(predicate.ByID(1), false), store.OrderLeftDesc)
	assert.NoError(err)
	assert.Equal(int64(2), n)

	root, err := store.Get(ctx, s, "", 1)
	assert.NoError(err)
	root.Name = "renamed"
	root.Rgt = 2
	assert.NoError(s.Save(ctx, root))

	root, err = store.Get(ctx, s, "", 1)
	assert.NoError(err)
	assert.Equal("renamed", root.Name)
	assert.Equal(2, root.Rgt)
}

func TestChecks(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	s := testStore(t, nil)
	b := predicate.Builder{}

	for _, p := range []predicate.Predicate{b.Oddness(), b.DuplicateBoundary(), b.WrongParent(), b.MissingParent()} {
		cnt, err := s.Count(ctx, p)
		assert.NoError(err)
		assert.Zero(cnt)
	}

	// node 4 lives in another scope, so it is not a parent here
	a, err := store.Get(ctx, s, "", 2)
	assert.NoError(err)
	a.ParentID = models.Ref(4)
	a.Rgt = 4
	assert.NoError(s.Save(ctx, a))

	cnt, err := s.Count(ctx, b.MissingParent())
	assert.NoError(err)
	assert.Equal(int64(1), cnt)
	cnt, err = s.Count(ctx, b.Oddness())
	assert.NoError(err)
	assert.Equal(int64(1), cnt)
	cnt, err = s.Count(ctx, b.DuplicateBoundary())
	assert.NoError(err)
	assert.Equal(int64(1), cnt)
}

func TestTransaction(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	s := testStore(t, nil)

	boom := errors.New("boom")
	err := s.Transaction(ctx, func(tx store.Store) error {
		if _, err := tx.DeleteWhere(ctx, predicate.True{}, store.OrderLeft); err != nil {
			return err
		}
		return boom
	})
	assert.True(errors.Is(err, boom))

	cnt, err := s.Count(ctx, predicate.True{})
	assert.NoError(err)
	assert.Equal(int64(4), cnt)
}

func TestSoftDelete(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	s := testStore(t, &Options{SoftDelete: true})
	b := predicate.Builder{}

	sd, ok := store.SoftDeletes(s)
	assert.True(ok)

	t1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)

	n, err := sd.SoftDeleteWhere(ctx, b.Node(2), t1)
	assert.NoError(err)
	assert.Equal(int64(1), n)
	n, err = sd.SoftDeleteWhere(ctx, b.DescendantsOf(predicate.ByID(1), true), t2)
	assert.NoError(err)
	assert.Equal(int64(2), n)

	live, err := s.Find(ctx, store.Query{Where: b.All()})
	assert.NoError(err)
	assert.Empty(live)

	all, err := s.Find(ctx, store.Query{Where: b.All(), WithTrashed: true})
	assert.NoError(err)
	assert.Len(all, 3)

	n, err = sd.RestoreWhere(ctx, b.Where(predicate.DeletedSince{At: t2}))
	assert.NoError(err)
	assert.Equal(int64(2), n)

	live, err = s.Find(ctx, store.Query{Where: b.All()})
	assert.NoError(err)
	assert.Len(live, 2)
}
