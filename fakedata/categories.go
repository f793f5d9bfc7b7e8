package fakedata

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/bluesky-social/nestedset/models"
	"github.com/bluesky-social/nestedset/store"
)

var log = slog.Default().With("system", "fakedata")

// Categories is a small product catalog forest used throughout the tests:
//
//	store
//	  notebooks
//	    apple
//	    lenovo
//	  mobile
//	    nokia
//	    samsung
//	      galaxy
//	    sony
//	    lenovo
//	store_2
func Categories() []models.Node {
	p := models.Ref
	return []models.Node{
		{ID: 1, Name: "store", Lft: 1, Rgt: 20},
		{ID: 2, Name: "notebooks", Lft: 2, Rgt: 7, ParentID: p(1)},
		{ID: 3, Name: "apple", Lft: 3, Rgt: 4, ParentID: p(2)},
		{ID: 4, Name: "lenovo", Lft: 5, Rgt: 6, ParentID: p(2)},
		{ID: 5, Name: "mobile", Lft: 8, Rgt: 19, ParentID: p(1)},
		{ID: 6, Name: "nokia", Lft: 9, Rgt: 10, ParentID: p(5)},
		{ID: 7, Name: "samsung", Lft: 11, Rgt: 14, ParentID: p(5)},
		{ID: 8, Name: "galaxy", Lft: 12, Rgt: 13, ParentID: p(7)},
		{ID: 9, Name: "sony", Lft: 15, Rgt: 16, ParentID: p(5)},
		{ID: 10, Name: "lenovo", Lft: 17, Rgt: 18, ParentID: p(5)},
		{ID: 11, Name: "store_2", Lft: 21, Rgt: 22},
	}
}

// MenuItems is a scoped fixture: two menus sharing one table.
func MenuItems() []models.Node {
	p := models.Ref
	m1 := models.Scope{"menu_id": "1"}.Key()
	m2 := models.Scope{"menu_id": "2"}.Key()
	return []models.Node{
		{ID: 1, Name: "menu item 1", Scope: m1, Lft: 1, Rgt: 2},
		{ID: 2, Name: "menu item 2", Scope: m1, Lft: 3, Rgt: 6},
		{ID: 5, Name: "menu item 3", Scope: m1, Lft: 4, Rgt: 5, ParentID: p(2)},
		{ID: 3, Name: "menu item 1", Scope: m2, Lft: 1, Rgt: 2},
		{ID: 4, Name: "menu item 2", Scope: m2, Lft: 3, Rgt: 4},
	}
}

// Load inserts rows with their ids and bounds as given.
func Load(ctx context.Context, st store.Store, rows []models.Node) error {
	for i := range rows {
		if err := st.Create(ctx, &rows[i]); err != nil {
			return fmt.Errorf("loading node %d: %w", rows[i].ID, err)
		}
	}
	log.Debug("loaded fixture", "rows", len(rows))
	return nil
}

// ReadItems reads a forest description: a stream of JSON items, each one a
// top-level node with nested children.
func ReadItems(path string) ([]models.Item, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var items []models.Item
	decoder := json.NewDecoder(f)
	for decoder.More() {
		var it models.Item
		if err := decoder.Decode(&it); err != nil {
			return nil, fmt.Errorf("parse item: %w", err)
		}
		items = append(items, it)
	}
	log.Info("loaded forest description", "path", path, "roots", len(items), "total", models.CountItems(items))
	return items, nil
}
