package mapcrdt

import "github.com/cshekharsharma/cascade/model"

// Block is one write in a field's append-only DAG; a delete creates
// no block of its own and only sets Deleted on the latest blocks.
type Block struct {
	ID        model.MapBlockID
	Parents   []model.MapBlockID
	Value     model.Value
	Timestamp model.Timestamp
	Deleted   bool
}

type blockIndex = int

// BlockSet is the append-only DAG of writes backing one map field. A
// block with no children is "latest": a candidate for the field's
// observed value.
type BlockSet struct {
	blocks        []Block
	idToIndex     map[model.MapBlockID]blockIndex
	blockChildren map[blockIndex][]blockIndex
}

// NewBlockSet creates an empty block set.
func NewBlockSet() *BlockSet {
	return &BlockSet{
		idToIndex:     make(map[model.MapBlockID]blockIndex),
		blockChildren: make(map[blockIndex][]blockIndex),
	}
}

// Insert appends block, registering it as a child of each of its
// parents.
func (s *BlockSet) Insert(block Block) {
	index := len(s.blocks)
	s.blocks = append(s.blocks, block)
	s.idToIndex[block.ID] = index

	if _, ok := s.blockChildren[index]; !ok {
		s.blockChildren[index] = nil
	}

	for _, parentID := range block.Parents {
		if parentIdx, ok := s.idToIndex[parentID]; ok {
			s.blockChildren[parentIdx] = append(s.blockChildren[parentIdx], index)
		}
	}
}

// Delete tombstones each named block in place, without creating a new
// block.
func (s *BlockSet) Delete(ids []model.MapBlockID) {
	for _, id := range ids {
		if idx, ok := s.idToIndex[id]; ok {
			s.blocks[idx].Deleted = true
		}
	}
}

// GetLatestWithConflicts returns every block with no children: the
// full set of concurrently-surviving writes. Blocks are returned in
// insertion order so that callers recording them (as the Parents of
// the next write) serialize identically across replays.
func (s *BlockSet) GetLatestWithConflicts() []*Block {
	var latest []*Block
	for index := range s.blocks {
		if len(s.blockChildren[index]) == 0 {
			latest = append(latest, &s.blocks[index])
		}
	}
	return latest
}

// GetLatest resolves the field's single observed value: among the
// latest blocks, the one with the largest timestamp (ties broken by
// larger client_id, then larger sequence) that is not deleted. Nil if
// every latest block is deleted or no blocks exist.
func (s *BlockSet) GetLatest() *Block {
	latest := s.GetLatestWithConflicts()
	if len(latest) == 0 {
		return nil
	}

	sortBlocksAscending(latest)

	for i := len(latest) - 1; i >= 0; i-- {
		if !latest[i].Deleted {
			return latest[i]
		}
	}
	return nil
}

// sortBlocksAscending sorts blocks from weakest to strongest candidate
// using the tie-break rule: larger timestamp wins; on equal timestamp,
// larger client_id wins; on equal client id, larger sequence wins.
func sortBlocksAscending(blocks []*Block) {
	less := func(a, b *Block) bool {
		if a.Timestamp != b.Timestamp {
			return a.Timestamp < b.Timestamp
		}
		if a.ID.ClientID != b.ID.ClientID {
			return a.ID.ClientID < b.ID.ClientID
		}
		return a.ID.Sequence < b.ID.Sequence
	}

	// insertion sort: these sets are tiny (the number of concurrent
	// writers to one field at once), so O(n^2) is not a concern and a
	// stable, allocation-free sort keeps this easy to verify.
	for i := 1; i < len(blocks); i++ {
		for j := i; j > 0 && less(blocks[j], blocks[j-1]); j-- {
			blocks[j], blocks[j-1] = blocks[j-1], blocks[j]
		}
	}
}
