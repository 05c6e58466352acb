package sequencetree

// splitLeaf moves roughly the back half of leafIdx's rows into a new
// leaf inserted immediately after it in the linked list, then wires
// the new leaf into the parent branch (creating a new root if leafIdx
// had none). Returns the new leaf's index.
func (t *Tree[Items]) splitLeaf(leafIdx nodeIndex) nodeIndex {
	left := t.nodes[leafIdx].leaf

	var moved []blockIndex
	for len(moved) < t.leafSize/2 && len(left.items) > 0 {
		last := left.items[len(left.items)-1]
		left.items = left.items[:len(left.items)-1]
		moved = append(moved, last)
	}
	reverseBlockIndexes(moved)

	right := &leafNode{parent: left.parent, nextLeaf: left.nextLeaf, items: moved}
	rightIdx := nodeIndex(len(t.nodes))
	t.nodes = append(t.nodes, node{isLeaf: true, leaf: right})

	if right.nextLeaf != nil {
		t.nodes[*right.nextLeaf].leaf.previousLeaf = &rightIdx
	}
	left.nextLeaf = &rightIdx
	right.previousLeaf = &leafIdx

	for _, bi := range right.items {
		t.blockLeaf[bi] = rightIdx
	}

	if leafIdx == t.end {
		t.end = rightIdx
	}

	if left.parent == nil {
		t.createUpperRoot(leafIdx, rightIdx)
	} else {
		t.insertBranchItem(*left.parent, leafIdx, rightIdx)
	}

	t.updateLeafMetrics(leafIdx)
	t.updateLeafMetrics(rightIdx)

	return rightIdx
}

// splitBranch is splitLeaf's branch-level counterpart: it moves the
// back half of branchIdx's children into a new sibling branch and
// re-parents them, recursing upward if the parent branch is itself
// full.
func (t *Tree[Items]) splitBranch(branchIdx nodeIndex) nodeIndex {
	left := t.nodes[branchIdx].branch

	var moved []branchItem
	for len(moved) < t.branchSize/2 && len(left.items) > 0 {
		last := left.items[len(left.items)-1]
		left.items = left.items[:len(left.items)-1]
		moved = append(moved, last)
	}
	reverseBranchItems(moved)

	right := &branchNode{parent: left.parent, items: moved}
	rightIdx := nodeIndex(len(t.nodes))
	t.nodes = append(t.nodes, node{isLeaf: false, branch: right})

	for _, it := range moved {
		t.nodes[it.node].setParentPtr(rightIdx)
	}

	if branchIdx == t.root {
		t.createUpperRoot(branchIdx, rightIdx)
	} else {
		t.insertBranchItem(*left.parent, branchIdx, rightIdx)
	}

	return rightIdx
}

// createUpperRoot builds a new root branch over left and right,
// replacing the current root.
func (t *Tree[Items]) createUpperRoot(left, right nodeIndex) {
	rootIdx := nodeIndex(len(t.nodes))
	branch := &branchNode{items: []branchItem{
		{node: left, totalSize: t.subtreeSize(left), itemCount: t.subtreeItemCount(left)},
		{node: right, totalSize: t.subtreeSize(right), itemCount: t.subtreeItemCount(right)},
	}}
	t.nodes = append(t.nodes, node{isLeaf: false, branch: branch})

	t.nodes[left].setParentPtr(rootIdx)
	t.nodes[right].setParentPtr(rootIdx)
	t.root = rootIdx
}

// insertBranchItem adds rightChild as a new sibling of leftChild under
// branchIdx, splitting branchIdx first if it is already full. Every
// branch touched has its item metrics recomputed from its children:
// a split moves children between branches, so both halves' entries
// must be refreshed, not only the one that received the insertion.
func (t *Tree[Items]) insertBranchItem(branchIdx nodeIndex, leftChild, rightChild nodeIndex) {
	affected := []nodeIndex{branchIdx}
	if t.isFull(branchIdx) {
		rightBranchIdx := t.splitBranch(branchIdx)
		affected = append(affected, rightBranchIdx)
		if t.branchContains(rightBranchIdx, leftChild) {
			branchIdx = rightBranchIdx
		}
	}
	t.insertBranchItemAt(branchIdx, leftChild, rightChild)
	for _, idx := range affected {
		t.refreshBranchMetrics(idx)
	}
}

// refreshBranchMetrics recomputes every item's cached size and count
// on branchIdx directly from its child subtrees.
func (t *Tree[Items]) refreshBranchMetrics(branchIdx nodeIndex) {
	branch := t.nodes[branchIdx].branch
	for i := range branch.items {
		branch.items[i].totalSize = t.subtreeSize(branch.items[i].node)
		branch.items[i].itemCount = t.subtreeItemCount(branch.items[i].node)
	}
}

func (t *Tree[Items]) subtreeSize(idx nodeIndex) int {
	n := &t.nodes[idx]
	if n.isLeaf {
		total := 0
		for _, bi := range n.leaf.items {
			if !t.blocks[bi].Deleted {
				total += t.blocks[bi].Items.Len()
			}
		}
		return total
	}
	total := 0
	for _, it := range n.branch.items {
		total += it.totalSize
	}
	return total
}

func (t *Tree[Items]) subtreeItemCount(idx nodeIndex) int {
	n := &t.nodes[idx]
	if n.isLeaf {
		return len(n.leaf.items)
	}
	total := 0
	for _, it := range n.branch.items {
		total += it.itemCount
	}
	return total
}

func (t *Tree[Items]) insertBranchItemAt(branchIdx nodeIndex, leftChild, rightChild nodeIndex) {
	t.nodes[rightChild].setParentPtr(branchIdx)

	branch := t.nodes[branchIdx].branch
	insertAt := len(branch.items)
	for i, it := range branch.items {
		if it.node == leftChild {
			insertAt = i + 1
			break
		}
	}

	branch.items = append(branch.items, branchItem{})
	copy(branch.items[insertAt+1:], branch.items[insertAt:])
	branch.items[insertAt] = branchItem{node: rightChild}
}

func (t *Tree[Items]) branchContains(branchIdx, child nodeIndex) bool {
	for _, it := range t.nodes[branchIdx].branch.items {
		if it.node == child {
			return true
		}
	}
	return false
}

// updateLeafMetrics recomputes leafIdx's visible size and row count
// directly from its current rows, then propagates the change up
// through every ancestor branch.
func (t *Tree[Items]) updateLeafMetrics(leafIdx nodeIndex) {
	leaf := t.nodes[leafIdx].leaf
	totalSize, itemCount := 0, len(leaf.items)
	for _, bi := range leaf.items {
		block := &t.blocks[bi]
		if !block.Deleted {
			totalSize += block.Items.Len()
		}
	}
	t.propagateMetrics(leafIdx, totalSize, itemCount)
}

func (t *Tree[Items]) propagateMetrics(childIdx nodeIndex, totalSize, itemCount int) {
	parent := t.nodes[childIdx].parentPtr()
	if parent == nil {
		return
	}
	branch := t.nodes[*parent].branch
	for i := range branch.items {
		if branch.items[i].node == childIdx {
			branch.items[i].totalSize = totalSize
			branch.items[i].itemCount = itemCount
			break
		}
	}

	sumSize, sumCount := 0, 0
	for _, it := range branch.items {
		sumSize += it.totalSize
		sumCount += it.itemCount
	}
	t.propagateMetrics(*parent, sumSize, sumCount)
}

func reverseBlockIndexes(s []blockIndex) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}

func reverseBranchItems(s []branchItem) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}
