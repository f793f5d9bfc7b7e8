package fakedata

import (
	"github.com/bluesky-social/nestedset/models"

	"github.com/brianvoe/gofakeit/v6"
)

type ForestParams struct {
	Roots     int
	MaxDepth  int
	MaxFanout int
	// same seed, same forest
	Seed int64
}

func DefaultForestParams() ForestParams {
	return ForestParams{Roots: 2, MaxDepth: 4, MaxFanout: 4, Seed: 1}
}

// RandomForest generates id-less items suitable for creation or rebuilds.
func RandomForest(params ForestParams) []models.Item {
	faker := gofakeit.New(params.Seed)

	type pending struct {
		dst   *[]models.Item
		count int
		depth int
	}

	var roots []models.Item
	stack := []pending{{dst: &roots, count: params.Roots, depth: 1}}
	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		*p.dst = make([]models.Item, p.count)
		for i := range *p.dst {
			it := &(*p.dst)[i]
			it.Name = faker.Noun()
			it.Attrs = map[string]any{"color": faker.Color()}
			if p.depth < params.MaxDepth && params.MaxFanout > 0 {
				if kids := faker.Number(0, params.MaxFanout); kids > 0 {
					stack = append(stack, pending{dst: &it.Children, count: kids, depth: p.depth + 1})
				}
			}
		}
	}
	return roots
}
