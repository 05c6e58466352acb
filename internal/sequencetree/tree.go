// Package sequencetree implements the B+-tree that backs the text
// CRDT: a flat, index-addressed tree of run-length blocks ordered by
// YATA origin pointers, supporting positional lookups, linked-leaf
// iteration, and run-merging so that a long uninterrupted typing burst
// from one client collapses into a single block instead of one block
// per character.
package sequencetree

import "github.com/cshekharsharma/cascade/model"

// Block is one run of contiguous items inserted by a single client in
// a single sequence range. Left is the YATA origin: the id this block
// was inserted immediately after, or nil if it was inserted at the
// very head of the document.
type Block[Items SequenceItems[Items]] struct {
	ID      model.SequenceBlockID
	Items   Items
	Left    *model.SequenceBlockID
	Deleted bool
}

// Tree is the sequence CRDT's storage: a B+-tree of Blocks, addressed
// by flat slices rather than pointers so that splitting and
// re-parenting are index swaps instead of allocations.
type Tree[Items SequenceItems[Items]] struct {
	branchSize int
	leafSize   int

	blocks []Block[Items]
	nodes  []node

	root, start, end nodeIndex

	// blockChildren and rootBlocks record the YATA insert-after DAG,
	// keyed by the id of the block that ended at the origin element at
	// insert time (nil origin -> rootBlocks). Two inserts whose origins
	// resolve into the same block become siblings and are ordered by
	// deterministicIDSort; placement of every later arrival depends
	// only on this DAG and the deterministic replay order, never on
	// physical leaf layout.
	blockChildren map[model.SequenceBlockID][]model.SequenceBlockID
	rootBlocks    []model.SequenceBlockID

	// covering maps every element id ever inserted to the blockIndex
	// that currently holds it, kept up to date across splits and
	// merges, so resolving an origin never needs to scan a client's
	// sequence range backwards.
	covering map[model.SequenceBlockID]blockIndex

	// blockLeaf maps a blockIndex to the leaf node currently holding
	// its row.
	blockLeaf map[blockIndex]nodeIndex
}

// New creates an empty tree. branchSize and leafSize bound how many
// children a branch, or rows a leaf, may hold before splitting.
func New[Items SequenceItems[Items]](branchSize, leafSize int) *Tree[Items] {
	t := &Tree[Items]{
		branchSize:    branchSize,
		leafSize:      leafSize,
		blockChildren: make(map[model.SequenceBlockID][]model.SequenceBlockID),
		covering:      make(map[model.SequenceBlockID]blockIndex),
		blockLeaf:     make(map[blockIndex]nodeIndex),
	}
	t.nodes = append(t.nodes, node{isLeaf: true, leaf: &leafNode{}})
	return t
}

func (t *Tree[Items]) isFull(idx nodeIndex) bool {
	n := &t.nodes[idx]
	if n.isLeaf {
		return len(n.leaf.items) >= t.leafSize
	}
	return len(n.branch.items) >= t.branchSize
}

// Insert places block into the tree, merging it into its YATA origin's
// block when the two are a contiguous, uninterrupted run from the same
// client.
func (t *Tree[Items]) Insert(block Block[Items]) {
	if block.Left == nil {
		t.insertBlock(block, nil)
		return
	}

	realLeftID, leftIdx := t.getOrSplitBlockEndingAt(*block.Left)
	if t.isMergeable(*block.Left, block, leftIdx) {
		t.mergeBlock(block, leftIdx)
		return
	}
	t.insertBlock(block, &realLeftID)
}

func (t *Tree[Items]) isMergeable(virtualLeft model.SequenceBlockID, block Block[Items], realLeftIdx blockIndex) bool {
	if realLeftIdx < 0 {
		return false
	}
	if block.ID.ClientID != virtualLeft.ClientID {
		return false
	}
	if block.ID.Sequence != virtualLeft.Sequence+1 {
		return false
	}
	return !t.blocks[realLeftIdx].Deleted
}

func (t *Tree[Items]) mergeBlock(block Block[Items], leftIdx blockIndex) {
	left := &t.blocks[leftIdx]
	absorbed := block.Items.Len()
	left.Items = left.Items.Merge(block.Items)

	for s := 0; s < absorbed; s++ {
		seq := block.ID.Sequence + model.SequenceIndex(s)
		t.covering[model.SequenceBlockID{ClientID: block.ID.ClientID, Sequence: seq}] = leftIdx
	}

	t.updateLeafMetrics(t.blockLeaf[leftIdx])
}

// insertBlock registers block in the insert-after DAG under realLeft
// (the resolved block ending at its origin element, or nil for a head
// insert) and places it into the physical tree at the position the
// deterministic sibling order dictates.
func (t *Tree[Items]) insertBlock(block Block[Items], realLeft *model.SequenceBlockID) {
	if realLeft != nil {
		t.blockChildren[*realLeft] = append(t.blockChildren[*realLeft], block.ID)
	} else {
		t.rootBlocks = append(t.rootBlocks, block.ID)
	}
	if _, ok := t.blockChildren[block.ID]; !ok {
		t.blockChildren[block.ID] = nil
	}

	idx := blockIndex(len(t.blocks))
	t.blocks = append(t.blocks, block)
	for s := 0; s < block.Items.Len(); s++ {
		seq := block.ID.Sequence + model.SequenceIndex(s)
		t.covering[model.SequenceBlockID{ClientID: block.ID.ClientID, Sequence: seq}] = idx
	}

	actualLeft := t.resolveActualLeftID(realLeft, block.ID)

	var targetLeaf nodeIndex
	if actualLeft == nil {
		targetLeaf = t.start
	} else {
		targetLeaf = t.blockLeaf[t.covering[*actualLeft]]
	}

	t.insertBlockInNode(idx, actualLeft, targetLeaf)
}

// resolveActualLeftID implements the YATA interleaving rule: when a
// left block has gained more than one child since this block
// registered, siblings are ordered deterministically (same-client runs
// descending by sequence, otherwise ascending by client id) and this
// block is placed after whichever sibling immediately precedes it in
// that order, chasing that sibling's own descendant chain to its end.
func (t *Tree[Items]) resolveActualLeftID(realLeft *model.SequenceBlockID, self model.SequenceBlockID) *model.SequenceBlockID {
	var siblings []model.SequenceBlockID
	if realLeft == nil {
		siblings = t.rootBlocks
	} else {
		siblings = t.blockChildren[*realLeft]
	}

	if len(siblings) == 1 {
		return realLeft
	}

	sorted := append([]model.SequenceBlockID(nil), siblings...)
	deterministicIDSort(sorted)

	pos := -1
	for i, id := range sorted {
		if id == self {
			pos = i
			break
		}
	}
	if pos <= 0 {
		return realLeft
	}

	descendant := t.findLatestDescendant(sorted[pos-1])
	return &descendant
}

func (t *Tree[Items]) findLatestDescendant(id model.SequenceBlockID) model.SequenceBlockID {
	current := id
	for {
		children := t.blockChildren[current]
		if len(children) == 0 {
			return current
		}
		current = children[len(children)-1]
	}
}

// deterministicIDSort orders sibling ids descending by sequence for
// the same client (later writes sort first), ascending by client id
// otherwise.
func deterministicIDSort(ids []model.SequenceBlockID) {
	less := func(a, b model.SequenceBlockID) bool {
		if a.ClientID == b.ClientID {
			return a.Sequence > b.Sequence
		}
		return a.ClientID < b.ClientID
	}
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && less(ids[j], ids[j-1]); j-- {
			ids[j], ids[j-1] = ids[j-1], ids[j]
		}
	}
}

// insertBlockInNode places blockIdx's row into leafIdx, immediately
// after afterID's row (or at the head if afterID is nil), splitting
// the leaf first if it is already full.
func (t *Tree[Items]) insertBlockInNode(idx blockIndex, afterID *model.SequenceBlockID, leafIdx nodeIndex) {
	if t.isFull(leafIdx) {
		rightIdx := t.splitLeaf(leafIdx)
		if afterID != nil {
			if afterIdx, ok := t.covering[*afterID]; ok && t.blockLeaf[afterIdx] == rightIdx {
				leafIdx = rightIdx
			}
		}
	}

	leaf := t.nodes[leafIdx].leaf
	insertAt := 0
	if afterID != nil {
		afterIdx := t.covering[*afterID]
		for i, bi := range leaf.items {
			if bi == afterIdx {
				insertAt = i + 1
				break
			}
		}
	}

	leaf.items = append(leaf.items, 0)
	copy(leaf.items[insertAt+1:], leaf.items[insertAt:])
	leaf.items[insertAt] = idx
	t.blockLeaf[idx] = leafIdx

	t.updateLeafMetrics(leafIdx)
}

// Delete tombstones every block from the one starting at from through
// the one ending at to, splitting both endpoints so the deleted range
// lines up exactly on block boundaries.
func (t *Tree[Items]) Delete(from, to model.SequenceBlockID) {
	_, startIdx := t.getOrSplitBlockStartingAt(from)
	_, endIdx := t.getOrSplitBlockEndingAt(to)

	startLeaf := t.blockLeaf[startIdx]
	endLeaf := t.blockLeaf[endIdx]

	visited := make(map[nodeIndex]bool)
	leafIdx := startLeaf
	inside := false
	for {
		leaf := t.nodes[leafIdx].leaf
		for _, bi := range leaf.items {
			if bi == startIdx {
				inside = true
			}
			if inside {
				t.blocks[bi].Deleted = true
			}
			if bi == endIdx {
				inside = false
			}
		}
		visited[leafIdx] = true
		if leafIdx == endLeaf || leaf.nextLeaf == nil {
			break
		}
		leafIdx = *leaf.nextLeaf
	}

	for idx := range visited {
		t.updateLeafMetrics(idx)
	}
}

// getOrSplitBlockEndingAt returns the id and index of the block that
// ends exactly at the element position, splitting the containing block
// forward if position lies in its interior.
func (t *Tree[Items]) getOrSplitBlockEndingAt(position model.SequenceBlockID) (model.SequenceBlockID, blockIndex) {
	idx, ok := t.covering[position]
	if !ok {
		return position, -1
	}
	block := &t.blocks[idx]
	length := block.Items.Len()
	offset := int(position.Sequence - block.ID.Sequence)
	if offset == length-1 {
		return block.ID, idx
	}
	t.splitBlockAt(idx, offset+1)
	return t.blocks[idx].ID, idx
}

// getOrSplitBlockStartingAt returns the id of the block currently
// starting exactly at position, splitting the containing block if
// position lies in its interior.
func (t *Tree[Items]) getOrSplitBlockStartingAt(position model.SequenceBlockID) (model.SequenceBlockID, blockIndex) {
	idx, ok := t.covering[position]
	if !ok {
		return position, -1
	}
	block := &t.blocks[idx]
	if block.ID == position {
		return position, idx
	}
	offset := int(position.Sequence - block.ID.Sequence)
	rightIdx := t.splitBlockAt(idx, offset)
	return position, rightIdx
}

// splitBlockAt splits the block at idx so that its first offset items
// stay at idx and the remainder become a new block inserted
// immediately after it in the same leaf.
func (t *Tree[Items]) splitBlockAt(idx blockIndex, offset int) blockIndex {
	original := t.blocks[idx]
	leftItems, rightItems := original.Items.Split(offset)
	t.blocks[idx].Items = leftItems

	rightID := model.SequenceBlockID{ClientID: original.ID.ClientID, Sequence: original.ID.Sequence + model.SequenceIndex(offset)}
	right := Block[Items]{ID: rightID, Items: rightItems, Left: &original.ID, Deleted: original.Deleted}

	rightIdx := blockIndex(len(t.blocks))
	t.blocks = append(t.blocks, right)

	for s := 0; s < rightItems.Len(); s++ {
		id := model.SequenceBlockID{ClientID: original.ID.ClientID, Sequence: rightID.Sequence + model.SequenceIndex(s)}
		t.covering[id] = rightIdx
	}

	t.insertBlockInNode(rightIdx, &original.ID, t.blockLeaf[idx])
	return rightIdx
}

// Iterate returns every non-deleted block's items in document order.
func (t *Tree[Items]) Iterate() []Items {
	var result []Items
	idx := t.start
	for {
		leaf := t.nodes[idx].leaf
		for _, bi := range leaf.items {
			if !t.blocks[bi].Deleted {
				result = append(result, t.blocks[bi].Items)
			}
		}
		if leaf.nextLeaf == nil {
			break
		}
		idx = *leaf.nextLeaf
	}
	return result
}

// FindIDStartingAtPosition returns the id of the visible element at
// document offset position.
func (t *Tree[Items]) FindIDStartingAtPosition(position int) model.SequenceBlockID {
	leafIdx, localPos := t.locateLeaf(position)
	return t.scanLeafForOffset(leafIdx, localPos)
}

// FindIDEndingAtPosition returns the id of the visible element just
// before document offset position (i.e. the element that a deletion or
// insertion "ending at" position should anchor on).
func (t *Tree[Items]) FindIDEndingAtPosition(position int) model.SequenceBlockID {
	leafIdx, localPos := t.locateLeaf(position - 1)
	return t.scanLeafForOffset(leafIdx, localPos)
}

func (t *Tree[Items]) locateLeaf(position int) (nodeIndex, int) {
	idx := t.root
	current := 0
	for !t.nodes[idx].isLeaf {
		branch := t.nodes[idx].branch
		placed := false
		for _, item := range branch.items {
			threshold := current + item.totalSize
			if threshold > position {
				idx = item.node
				placed = true
				break
			}
			current += item.totalSize
		}
		if !placed {
			idx = branch.items[len(branch.items)-1].node
		}
	}
	return idx, position - current
}

func (t *Tree[Items]) scanLeafForOffset(leafIdx nodeIndex, localPos int) model.SequenceBlockID {
	idx := leafIdx
	remaining := localPos
	for {
		leaf := t.nodes[idx].leaf
		for _, bi := range leaf.items {
			block := &t.blocks[bi]
			if block.Deleted {
				continue
			}
			length := block.Items.Len()
			if remaining < length {
				if remaining < 0 {
					remaining = 0
				}
				return model.SequenceBlockID{ClientID: block.ID.ClientID, Sequence: block.ID.Sequence + model.SequenceIndex(remaining)}
			}
			remaining -= length
		}
		if leaf.nextLeaf == nil {
			return t.lastVisibleID()
		}
		idx = *leaf.nextLeaf
	}
}

// LastBlock returns the id of the tree's last row (visible or
// tombstoned), used as the default origin for an append.
func (t *Tree[Items]) LastBlock() (model.SequenceBlockID, bool) {
	leaf := t.nodes[t.end].leaf
	if len(leaf.items) == 0 {
		return model.SequenceBlockID{}, false
	}
	bi := leaf.items[len(leaf.items)-1]
	block := &t.blocks[bi]
	return model.SequenceBlockID{ClientID: block.ID.ClientID, Sequence: block.ID.Sequence + model.SequenceIndex(block.Items.Len()-1)}, true
}

// Len returns the tree's total visible element count.
func (t *Tree[Items]) Len() int {
	return t.subtreeSize(t.root)
}

func (t *Tree[Items]) lastVisibleID() model.SequenceBlockID {
	var last model.SequenceBlockID
	idx := t.start
	for {
		leaf := t.nodes[idx].leaf
		for _, bi := range leaf.items {
			block := &t.blocks[bi]
			if !block.Deleted {
				last = model.SequenceBlockID{ClientID: block.ID.ClientID, Sequence: block.ID.Sequence + model.SequenceIndex(block.Items.Len()-1)}
			}
		}
		if leaf.nextLeaf == nil {
			break
		}
		idx = *leaf.nextLeaf
	}
	return last
}
