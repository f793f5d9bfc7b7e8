package nestedset

import (
	"testing"

	"github.com/bluesky-social/nestedset/fakedata"
	"github.com/bluesky-social/nestedset/models"
	"github.com/bluesky-social/nestedset/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeleteSubtree(t *testing.T) {
	eachHardBackend(t, func(t *testing.T, f *fixture) {
		assert := assert.New(t)

		mobile := f.node(t, 5)
		cnt, err := f.tree.Delete(f.ctx, mobile)
		require.NoError(t, err)
		assert.EqualValues(6, cnt)
		assert.False(mobile.Positioned())

		assert.Equal(8, f.node(t, 1).Rgt)
		assert.Equal(9, f.node(t, 11).Lft)
		assert.Nil(f.named(t, "nokia"))
		f.requireValid(t)

		// saving the detached node inserts a fresh root
		_, err = f.tree.Save(f.ctx, mobile)
		require.NoError(t, err)
		assert.Equal(11, mobile.Lft)
		assert.True(mobile.IsRoot())
		f.requireValid(t)
	})
}

func TestRestoreNeedsSoftDelete(t *testing.T) {
	eachHardBackend(t, func(t *testing.T, f *fixture) {
		_, err := f.tree.Restore(f.ctx, f.node(t, 5))
		assert.ErrorIs(t, err, ErrLogic)
	})
}

func TestSoftDeleteAndRestore(t *testing.T) {
	eachSoftBackend(t, func(t *testing.T, f *fixture) {
		assert := assert.New(t)

		samsung := f.node(t, 7)
		cnt, err := f.tree.Delete(f.ctx, samsung)
		require.NoError(t, err)
		assert.EqualValues(2, cnt)
		assert.True(samsung.DeletedAt.Valid)

		mobile := f.node(t, 5)
		cnt, err = f.tree.Delete(f.ctx, mobile)
		require.NoError(t, err)
		assert.EqualValues(4, cnt, "rows trashed earlier keep their stamp")

		all, err := f.tree.All(f.ctx)
		require.NoError(t, err)
		assert.Len(all, 5)
		assert.Equal(20, f.node(t, 1).Rgt, "trashed rows keep their interval")

		cnt, err = f.tree.Restore(f.ctx, mobile)
		require.NoError(t, err)
		assert.EqualValues(4, cnt)
		assert.False(mobile.DeletedAt.Valid)

		_, err = f.tree.Get(f.ctx, 6)
		assert.NoError(err)
		_, err = f.tree.Get(f.ctx, 7)
		assert.ErrorIs(err, ErrNotFound)
		assert.True(f.node(t, 8).DeletedAt.Valid)

		cnt, err = f.tree.Restore(f.ctx, samsung)
		require.NoError(t, err)
		assert.EqualValues(2, cnt)

		all, err = f.tree.All(f.ctx)
		require.NoError(t, err)
		assert.Len(all, 11)
		assert.Equal(20, f.node(t, 1).Rgt)
		f.requireValid(t)
	})
}

func TestForceDeleteOnSoftStore(t *testing.T) {
	eachSoftBackend(t, func(t *testing.T, f *fixture) {
		assert := assert.New(t)

		_, err := f.tree.Delete(f.ctx, f.node(t, 7))
		require.NoError(t, err)

		cnt, err := f.tree.ForceDelete(f.ctx, f.node(t, 5))
		require.NoError(t, err)
		assert.EqualValues(6, cnt)
		assert.Equal(8, f.node(t, 1).Rgt)

		rows, err := f.st.Find(f.ctx, store.Query{Where: f.tree.Builder().All(), WithTrashed: true})
		require.NoError(t, err)
		assert.Len(rows, 5)
		f.requireValid(t)
	})
}

func TestCountErrors(t *testing.T) {
	eachBackend(t, func(t *testing.T, f *fixture) {
		assert := assert.New(t)

		f.corrupt(t, 5, func(n *models.Node) { n.Lft = 14 })
		f.corrupt(t, 8, func(n *models.Node) { n.ParentID = models.Ref(2) })
		f.corrupt(t, 11, func(n *models.Node) { n.Lft = 20 })
		f.corrupt(t, 4, func(n *models.Node) { n.ParentID = models.Ref(24) })

		r, err := f.tree.CountErrors(f.ctx)
		require.NoError(t, err)
		assert.EqualValues(1, r.Oddness)
		assert.EqualValues(2, r.Duplicates)
		assert.EqualValues(1, r.MissingParent)
		assert.Positive(r.WrongParent)

		broken, err := f.tree.IsBroken(f.ctx)
		require.NoError(t, err)
		assert.True(broken)

		total, err := f.tree.TotalErrors(f.ctx)
		require.NoError(t, err)
		assert.Equal(r.Total(), total)
		assert.Error(r.Err())
	})
}

func TestFixSubtree(t *testing.T) {
	eachBackend(t, func(t *testing.T, f *fixture) {
		f.corrupt(t, 8, func(n *models.Node) { n.Lft = 11 })

		fixed, err := f.tree.FixSubtree(f.ctx, f.node(t, 5))
		require.NoError(t, err)
		assert.EqualValues(t, 1, fixed)
		assert.Equal(t, 12, f.node(t, 8).Lft)
		f.requireValid(t)
	})
}

func TestFixSubtreeWithOrphans(t *testing.T) {
	eachBackend(t, func(t *testing.T, f *fixture) {
		assert := assert.New(t)

		// galaxy claims a parent outside the subtree
		f.corrupt(t, 8, func(n *models.Node) { n.ParentID = models.Ref(99) })

		samsung := f.node(t, 7)
		fixed, err := f.tree.FixSubtree(f.ctx, samsung)
		require.NoError(t, err)
		assert.EqualValues(1, fixed)
		assert.Equal(models.NodeID(7), f.node(t, 8).ParentKey())
		f.requireValid(t)
	})
}

func TestFixTree(t *testing.T) {
	eachBackend(t, func(t *testing.T, f *fixture) {
		assert := assert.New(t)

		f.corrupt(t, 5, func(n *models.Node) { n.Lft = 14 })
		f.corrupt(t, 8, func(n *models.Node) { n.ParentID = models.Ref(2) })
		f.corrupt(t, 11, func(n *models.Node) { n.Lft = 20 })
		f.corrupt(t, 4, func(n *models.Node) { n.ParentID = models.Ref(24) })
		f.corrupt(t, 2, func(n *models.Node) { n.ParentID = models.Ref(24) })

		fixed, err := f.tree.FixTree(f.ctx)
		require.NoError(t, err)
		assert.Positive(fixed)
		f.requireValid(t)

		assert.Equal(models.NodeID(2), f.node(t, 8).ParentKey())
		assert.Nil(f.node(t, 2).ParentID)

		fixed, err = f.tree.FixTree(f.ctx)
		require.NoError(t, err)
		assert.Zero(fixed, "fixing a valid tree writes nothing")
	})
}

func TestFixTreeBreaksCycles(t *testing.T) {
	eachBackend(t, func(t *testing.T, f *fixture) {
		f.corrupt(t, 5, func(n *models.Node) { n.ParentID = models.Ref(8) })

		_, err := f.tree.FixTree(f.ctx)
		require.NoError(t, err)
		f.requireValid(t)

		all, err := f.tree.All(f.ctx)
		require.NoError(t, err)
		assert.Len(t, all, 11)
	})
}

func TestRebuildTree(t *testing.T) {
	eachBackend(t, func(t *testing.T, f *fixture) {
		assert := assert.New(t)

		items := []models.Item{{
			ID: models.Ref(1),
			Children: []models.Item{
				{ID: models.Ref(10)},
				{ID: models.Ref(3), Name: "apple v2", Children: []models.Item{{Name: "new node"}}},
				{ID: models.Ref(2)},
			},
		}}
		fixed, err := f.tree.RebuildTree(f.ctx, items, false)
		require.NoError(t, err)
		assert.Positive(fixed)
		f.requireValid(t)

		apple := f.node(t, 3)
		assert.Equal(models.NodeID(1), apple.ParentKey())
		assert.Equal(4, apple.Lft)
		assert.Equal("apple v2", apple.Name)

		created := f.named(t, "new node")
		require.NotNil(t, created)
		assert.Equal(models.NodeID(3), created.ParentKey())

		// nodes left out keep their parent
		assert.Equal(models.NodeID(2), f.node(t, 4).ParentKey())
		assert.Equal("store", f.node(t, 1).Name)
	})
}

func TestRebuildSubtree(t *testing.T) {
	eachBackend(t, func(t *testing.T, f *fixture) {
		assert := assert.New(t)

		samsung := f.node(t, 7)
		items := []models.Item{{Name: "new node"}, {ID: models.Ref(8)}}
		_, err := f.tree.RebuildSubtree(f.ctx, samsung, items, false)
		require.NoError(t, err)
		f.requireValid(t)

		created := f.named(t, "new node")
		require.NotNil(t, created)
		assert.Equal(12, created.Lft)
		assert.Equal(16, samsung.Rgt)
		assert.Equal(21, f.node(t, 5).Rgt)
	})
}

func TestRebuildCountsParentOnlyChanges(t *testing.T) {
	eachBackend(t, func(t *testing.T, f *fixture) {
		assert := assert.New(t)

		// bounds are right, only the parent link is off
		f.corrupt(t, 8, func(n *models.Node) { n.ParentID = models.Ref(2) })

		fixed, err := f.tree.RebuildSubtree(f.ctx, f.node(t, 7), []models.Item{{ID: models.Ref(8)}}, false)
		require.NoError(t, err)
		assert.EqualValues(1, fixed)

		galaxy := f.node(t, 8)
		assert.Equal(models.NodeID(7), galaxy.ParentKey())
		assert.Equal(12, galaxy.Lft)
		f.requireValid(t)
	})
}

func TestRebuildWithDeletion(t *testing.T) {
	eachBackend(t, func(t *testing.T, f *fixture) {
		assert := assert.New(t)

		_, err := f.tree.RebuildTree(f.ctx, []models.Item{{Name: "all deleted"}}, true)
		require.NoError(t, err)
		f.requireValid(t)

		live, err := f.tree.All(f.ctx)
		require.NoError(t, err)
		require.Len(t, live, 1)
		assert.Equal("all deleted", live[0].Name)

		rows, err := f.st.Find(f.ctx, store.Query{Where: f.tree.Builder().All(), WithTrashed: true})
		require.NoError(t, err)
		if _, soft := store.SoftDeletes(f.st); soft {
			assert.Len(rows, 12)
		} else {
			assert.Len(rows, 1)
		}
	})
}

func TestRebuildRejectsUnknownIDs(t *testing.T) {
	eachBackend(t, func(t *testing.T, f *fixture) {
		assert := assert.New(t)

		_, err := f.tree.RebuildTree(f.ctx, []models.Item{{ID: models.Ref(24)}, {Name: "never written"}}, false)
		assert.ErrorIs(err, ErrNotFound)

		_, err = f.tree.RebuildTree(f.ctx, []models.Item{{ID: models.Ref(1)}, {ID: models.Ref(1)}}, false)
		assert.ErrorIs(err, ErrLogic)

		all, err := f.tree.All(f.ctx)
		require.NoError(t, err)
		assert.Len(all, 11)
	})
}

func TestRebuildRandomForest(t *testing.T) {
	eachBackend(t, func(t *testing.T, f *fixture) {
		items := fakedata.RandomForest(fakedata.DefaultForestParams())

		_, err := f.tree.RebuildTree(f.ctx, items, true)
		require.NoError(t, err)
		f.requireValid(t)

		all, err := f.tree.All(f.ctx)
		require.NoError(t, err)
		assert.Len(t, all, models.CountItems(items))

		roots, err := f.tree.Roots(f.ctx)
		require.NoError(t, err)
		assert.Len(t, roots, len(items))
	})
}
