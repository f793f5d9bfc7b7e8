package main

import (
	"strings"
	"testing"

	"github.com/bluesky-social/nestedset/fakedata"
	"github.com/bluesky-social/nestedset/tree"

	"github.com/stretchr/testify/assert"
)

func TestRenderTree(t *testing.T) {
	assert := assert.New(t)

	roots := tree.Build(tree.Ptrs(fakedata.Categories()))
	out := renderTree(roots, false)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Len(lines, 12)
	assert.Contains(lines[1], "store #1")
	assert.Contains(lines[2], "notebooks #2")
	assert.Contains(lines[3], "apple #3")
	assert.Contains(lines[len(lines)-1], "store_2 #11")

	single := renderTree(roots[:1], true)
	first, _, _ := strings.Cut(single, "\n")
	assert.Contains(first, "store #1")
	assert.Contains(single, "12,13")
	assert.Contains(single, "galaxy #8")
	assert.NotContains(single, "store_2")
}
