package tree

import (
	"slices"
	"testing"

	"github.com/bluesky-social/nestedset/fakedata"
	"github.com/bluesky-social/nestedset/models"

	"github.com/stretchr/testify/assert"
)

func names(nodes []*models.Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.Name
	}
	return out
}

// window returns the fixture rows with lft in [lo, hi].
func window(lo, hi int) []*models.Node {
	var out []*models.Node
	for _, n := range Ptrs(fakedata.Categories()) {
		if n.Lft >= lo && n.Lft <= hi {
			out = append(out, n)
		}
	}
	return out
}

func TestBuild(t *testing.T) {
	assert := assert.New(t)

	roots := Build(window(8, 17))
	assert.Len(roots, 1)
	assert.Equal("mobile", roots[0].Name)
	assert.Len(roots[0].Children, 4)
	assert.Equal(roots[0], roots[0].Children[0].Parent)

	kids := BuildFrom(window(8, 17), 5)
	assert.Len(kids, 4)
	assert.Equal("samsung", kids[1].Name)
	assert.Len(kids[1].Children, 1)

	all := Build(Ptrs(fakedata.Categories()))
	assert.Equal([]string{"store", "store_2"}, names(all))
	assert.Empty(Build(nil))
}

func TestFlattenRoundTrip(t *testing.T) {
	assert := assert.New(t)

	nodes := Ptrs(fakedata.Categories())
	flat := Flatten(nodes)
	assert.Equal(names(nodes), names(flat))
	assert.Equal(names(nodes), names(PreOrder(Build(Ptrs(fakedata.Categories())))))

	// siblings keep their input order
	desc := window(9, 18)
	byName := []*models.Node{desc[2], desc[4], desc[0], desc[1], desc[3]} // galaxy lenovo nokia samsung sony
	flat = Flatten(byName)
	assert.Equal([]string{"lenovo", "nokia", "samsung", "galaxy", "sony"}, names(flat))
}

func TestFlattenSelfParent(t *testing.T) {
	n := &models.Node{ID: 1, Lft: 1, Rgt: 2, ParentID: models.Ref(1)}
	assert.Len(t, FlattenFrom([]*models.Node{n}, 1), 1)
}

func TestRenumberValid(t *testing.T) {
	assert := assert.New(t)

	nodes := Ptrs(fakedata.Categories())
	dirty, next := Renumber(nodes, nil, 1)
	assert.Empty(dirty)
	assert.Equal(23, next)
}

func TestRenumberRepairs(t *testing.T) {
	assert := assert.New(t)

	rows := fakedata.Categories()
	rows[4].Lft = 14                  // mobile
	rows[7].ParentID = models.Ref(2)  // galaxy under notebooks
	rows[10].Lft = 20                 // store_2
	rows[3].ParentID = models.Ref(24) // lenovo points nowhere

	nodes := Ptrs(rows)
	dirty, next := Renumber(nodes, nil, 1)
	assert.NotEmpty(dirty)
	assert.Equal(23, next)

	assert.Nil(rows[3].ParentID)
	assert.Equal(models.NodeID(2), *rows[7].ParentID)

	// everything now nests properly
	for _, n := range nodes {
		assert.Less(n.Lft, n.Rgt)
		assert.Equal(1, (n.Rgt-n.Lft)%2)
		if n.ParentID != nil {
			var p *models.Node
			for _, c := range nodes {
				if c.ID == *n.ParentID {
					p = c
				}
			}
			assert.True(p.Interval().Contains(n.Interval()))
		}
	}

	slices.SortFunc(nodes, func(a, b *models.Node) int { return a.Lft - b.Lft })
	again, _ := Renumber(nodes, nil, 1)
	assert.Empty(again)
}

func TestRenumberCycle(t *testing.T) {
	assert := assert.New(t)

	a := &models.Node{ID: 1, ParentID: models.Ref(2)}
	b := &models.Node{ID: 2, ParentID: models.Ref(1)}
	c := &models.Node{ID: 3, ParentID: models.Ref(3)}

	dirty, next := Renumber([]*models.Node{a, b, c}, models.Ref(9), 5)
	assert.Len(dirty, 3)
	assert.Equal(11, next)

	// both end up placed, one under the other
	assert.Equal(models.NodeID(9), *a.ParentID)
	assert.Equal(5, a.Lft)
	assert.Equal(8, a.Rgt)
	assert.Equal(models.NodeID(1), *b.ParentID)
	assert.Equal(6, b.Lft)
	assert.Equal(models.NodeID(9), *c.ParentID)
	assert.Equal(9, c.Lft)
}
