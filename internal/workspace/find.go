package workspace

import "github.com/joescharf/codespace/internal/pathcodec"

// FindByID finds a node by id anywhere in the forest.
func FindByID(nodes []*Node, id string) *Node {
	for _, n := range nodes {
		if n.ID == id {
			return n
		}
		if found := FindByID(n.Children, id); found != nil {
			return found
		}
	}
	return nil
}

// FindByPath resolves a full location such as "src/app/main.py".
func FindByPath(nodes []*Node, full string) *Node {
	segs := pathcodec.Segments(full)
	if len(segs) == 0 {
		return nil
	}
	level := nodes
	for i, seg := range segs {
		var next *Node
		for _, n := range level {
			if n.Name != seg {
				continue
			}
			// Prefer a folder when we still have segments to descend into.
			if i < len(segs)-1 && !n.IsFolder() {
				continue
			}
			next = n
			break
		}
		if next == nil {
			return nil
		}
		if i == len(segs)-1 {
			return next
		}
		level = next.Children
	}
	return nil
}

// CountNodes counts all nodes in the forest.
func CountNodes(nodes []*Node) int {
	count := 0
	for _, n := range nodes {
		count += 1 + CountNodes(n.Children)
	}
	return count
}

// Walk visits nodes depth-first in display order. Returning false from fn
// skips the node's children.
func Walk(nodes []*Node, fn func(*Node) bool) {
	for _, n := range nodes {
		if fn(n) {
			Walk(n.Children, fn)
		}
	}
}
