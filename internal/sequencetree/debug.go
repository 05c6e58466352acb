package sequencetree

import (
	"fmt"
	"strings"
)

// DebugString renders the tree's shape for tests: leaves as
// L("item1","item2"), branches as B([size:count]<child>,...), with a
// "~" prefix on any tombstoned item. This has no bearing on wire
// format or merge behavior; it exists purely so tests can assert on
// tree structure after a sequence of inserts/deletes/splits.
func (t *Tree[Items]) DebugString() string {
	return t.debugNode(t.root)
}

func (t *Tree[Items]) debugNode(idx nodeIndex) string {
	n := &t.nodes[idx]
	if n.isLeaf {
		parts := make([]string, 0, len(n.leaf.items))
		for _, bi := range n.leaf.items {
			block := &t.blocks[bi]
			repr := fmt.Sprintf("%q", fmt.Sprint(block.Items))
			if block.Deleted {
				repr = "~" + repr
			}
			parts = append(parts, repr)
		}
		return "L(" + strings.Join(parts, ",") + ")"
	}

	parts := make([]string, 0, len(n.branch.items))
	for _, item := range n.branch.items {
		parts = append(parts, fmt.Sprintf("[%d:%d]%s", item.totalSize, item.itemCount, t.debugNode(item.node)))
	}
	return "B(" + strings.Join(parts, ",") + ")"
}
