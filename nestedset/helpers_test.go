package nestedset

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/bluesky-social/nestedset/fakedata"
	"github.com/bluesky-social/nestedset/models"
	"github.com/bluesky-social/nestedset/store"
	"github.com/bluesky-social/nestedset/store/gormstore"
	"github.com/bluesky-social/nestedset/store/memstore"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var backends = map[string]func(t *testing.T, soft bool) store.Store{
	"mem": func(t *testing.T, soft bool) store.Store {
		return memstore.NewMemStore(&memstore.Options{SoftDelete: soft})
	},
	"sqlite": func(t *testing.T, soft bool) store.Store {
		db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "tree.sqlite")), &gorm.Config{SkipDefaultTransaction: true})
		require.NoError(t, err)
		s := gormstore.NewGormStore(db, &gormstore.Options{SoftDelete: soft})
		require.NoError(t, s.Migrate(context.Background()))
		return s
	},
}

// clock hands out strictly increasing times.
type clock struct {
	lk  sync.Mutex
	cur time.Time
}

func newClock() *clock {
	return &clock{cur: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.lk.Lock()
	defer c.lk.Unlock()
	c.cur = c.cur.Add(time.Second)
	return c.cur
}

type fixture struct {
	ctx  context.Context
	st   store.Store
	tree *Tree
}

// eachBackend runs fn against a fresh categories forest on every backend,
// with and without soft delete.
func eachBackend(t *testing.T, fn func(t *testing.T, f *fixture)) {
	runBackends(t, []bool{false, true}, fn)
}

func eachHardBackend(t *testing.T, fn func(t *testing.T, f *fixture)) {
	runBackends(t, []bool{false}, fn)
}

func eachSoftBackend(t *testing.T, fn func(t *testing.T, f *fixture)) {
	runBackends(t, []bool{true}, fn)
}

func runBackends(t *testing.T, modes []bool, fn func(t *testing.T, f *fixture)) {
	for name, mk := range backends {
		for _, soft := range modes {
			mode := "hard"
			if soft {
				mode = "soft"
			}
			t.Run(name+"/"+mode, func(t *testing.T) {
				ctx := context.Background()
				st := mk(t, soft)
				require.NoError(t, fakedata.Load(ctx, st, fakedata.Categories()))
				tr := NewTree(st, nil, &Options{Now: newClock().Now})
				fn(t, &fixture{ctx: ctx, st: st, tree: tr})
			})
		}
	}
}

// node fetches a node by id, trashed ones included.
func (f *fixture) node(t *testing.T, id models.NodeID) *models.Node {
	t.Helper()
	n, err := store.Get(f.ctx, f.st, f.tree.ScopeKey(), id)
	require.NoError(t, err)
	return n
}

// named returns the first live node with the given name in tree order.
func (f *fixture) named(t *testing.T, name string) *models.Node {
	t.Helper()
	all, err := f.tree.All(f.ctx)
	require.NoError(t, err)
	for i := range all {
		if all[i].Name == name {
			return &all[i]
		}
	}
	return nil
}

// corrupt writes a row directly, bypassing the engine.
func (f *fixture) corrupt(t *testing.T, id models.NodeID, change func(n *models.Node)) {
	t.Helper()
	n := f.node(t, id)
	change(n)
	require.NoError(t, f.st.Save(f.ctx, n))
}

func (f *fixture) requireValid(t *testing.T) {
	t.Helper()
	r, err := f.tree.CountErrors(f.ctx)
	require.NoError(t, err)
	require.Zero(t, r.Total(), "tree is broken: %+v", r)
}

func ids(nodes []models.Node) []models.NodeID {
	out := make([]models.NodeID, len(nodes))
	for i, n := range nodes {
		out[i] = n.ID
	}
	return out
}

func names(nodes []models.Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.Name
	}
	return out
}
