package workspace

import (
	"cmp"
	"slices"

	"go.uber.org/zap"

	"github.com/joescharf/codespace/internal/models"
	"github.com/joescharf/codespace/internal/pathcodec"
)

// Node is one entry of the derived tree. Files never have children.
type Node struct {
	ID       string           `json:"id"`
	Name     string           `json:"name"`
	Kind     models.EntryKind `json:"kind"`
	Path     string           `json:"path"`
	Depth    int              `json:"depth"`
	Children []*Node          `json:"children,omitempty"`

	Folder *models.Folder `json:"-"`
	File   *models.File   `json:"-"`
}

// IsFolder reports whether the node is a folder.
func (n *Node) IsFolder() bool {
	return n.Kind == models.KindFolder
}

// FullPath returns the node's own location (path + name).
func (n *Node) FullPath() string {
	return pathcodec.Join(n.Path, n.Name)
}

// Build converts an index snapshot into an ordered forest. Folders precede
// files at every level and siblings of the same kind sort by name. Entries
// whose parent folder does not exist are dropped and logged as integrity
// warnings. Build never mutates idx and returns structurally equal output
// for an unchanged index.
func Build(idx *Index, log *zap.Logger) []*Node {
	if idx == nil {
		return nil
	}
	if log == nil {
		log = zap.NewNop()
	}

	var roots []*Node
	folders := make(map[string]*Node, len(idx.Folders))

	folderIDs := sortedKeys(idx.Folders)
	for _, id := range folderIDs {
		rec := idx.Folders[id]
		folders[id] = &Node{
			ID:     id,
			Name:   rec.Name,
			Kind:   models.KindFolder,
			Path:   pathcodec.Clean(rec.Path),
			Depth:  pathcodec.Depth(rec.Path),
			Folder: &rec,
		}
	}

	attach := func(n *Node) {
		if n.Depth == 0 {
			roots = append(roots, n)
			return
		}
		parentID, ok := idx.folderIDAt(pathcodec.ParentPath(n.Path), pathcodec.Base(n.Path))
		if !ok {
			log.Warn("integrity warning: dropping orphaned entry",
				zap.String("id", n.ID),
				zap.String("kind", string(n.Kind)),
				zap.String("name", n.Name),
				zap.String("path", n.Path),
			)
			return
		}
		p := folders[parentID]
		p.Children = append(p.Children, n)
	}

	for _, id := range folderIDs {
		attach(folders[id])
	}

	for _, id := range sortedKeys(idx.Files) {
		rec := idx.Files[id]
		attach(&Node{
			ID:    id,
			Name:  rec.Name,
			Kind:  models.KindFile,
			Path:  pathcodec.Clean(rec.Path),
			Depth: pathcodec.Depth(rec.Path),
			File:  &rec,
		})
	}

	sortNodes(roots)
	return roots
}

func sortNodes(nodes []*Node) {
	slices.SortFunc(nodes, compareNodes)
	for _, n := range nodes {
		if len(n.Children) > 0 {
			sortNodes(n.Children)
		}
	}
}

func compareNodes(a, b *Node) int {
	if c := cmp.Compare(kindRank(a.Kind), kindRank(b.Kind)); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Name, b.Name); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

func kindRank(k models.EntryKind) int {
	if k == models.KindFolder {
		return 0
	}
	return 1
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
