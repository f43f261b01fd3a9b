package workspace

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/joescharf/codespace/internal/models"
)

func TestFindByPath_PrefersFolderForDescent(t *testing.T) {
	idx := NewIndex(
		[]models.Folder{{ID: "f1", Name: "out", Path: ""}},
		[]models.File{
			{ID: "x1", Name: "out", Path: ""},
			{ID: "x2", Name: "log.txt", Path: "out"},
		},
	)
	tree := Build(idx, nil)

	assert.Equal(t, "x2", FindByPath(tree, "out/log.txt").ID)
	assert.Equal(t, "f1", FindByPath(tree, "out").ID)
	assert.Nil(t, FindByPath(tree, "out/missing"))
	assert.Nil(t, FindByPath(tree, ""))
}

func TestWalk_SkipsChildren(t *testing.T) {
	idx := NewIndex(
		[]models.Folder{{ID: "f1", Name: "src", Path: ""}},
		[]models.File{{ID: "x1", Name: "a.py", Path: "src"}},
	)
	tree := Build(idx, nil)

	var seen []string
	Walk(tree, func(n *Node) bool {
		seen = append(seen, n.ID)
		return false
	})
	assert.Equal(t, []string{"f1"}, seen)
}
