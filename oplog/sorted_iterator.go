package oplog

import (
	"sort"

	"github.com/cshekharsharma/cascade/model"
)

// sortedIterator walks the operation DAG depth-first from the sorted
// roots, expanding each node's children in sorted order. This is the
// merge-critical total order: two replicas with the same operation set
// must produce the exact same walk.
type sortedIterator struct {
	operations []model.Operation
	children   map[operationIndex][]operationIndex
	toVisit    []operationIndex
}

func newSortedIterator(roots []operationIndex, operations []model.Operation, idToIndex map[model.OperationID]operationIndex) *sortedIterator {
	// toVisit is a LIFO stack: the next node visited is the one popped
	// off the end. To visit roots (and, below, sibling children) in
	// ascending order we must push them in descending order.
	sortedRoots := append([]operationIndex(nil), roots...)
	sort.SliceStable(sortedRoots, func(i, j int) bool {
		return compareOperations(sortedRoots[i], sortedRoots[j], operations) > 0
	})

	children := make(map[operationIndex][]operationIndex)
	for idx, op := range operations {
		if op.Parent != nil {
			parentIdx := idToIndex[*op.Parent]
			children[parentIdx] = append(children[parentIdx], idx)
		}
	}

	return &sortedIterator{
		operations: operations,
		children:   children,
		toVisit:    sortedRoots,
	}
}

// compareOperations implements the total order every replica must
// reproduce exactly: same client -> sequence ascending; else same
// timestamp -> client id ascending; else timestamp ascending.
func compareOperations(a, b operationIndex, operations []model.Operation) int {
	opA, opB := operations[a], operations[b]

	if opA.ID.ClientID == opB.ID.ClientID {
		return int(opA.ID.Sequence) - int(opB.ID.Sequence)
	}
	if opA.Timestamp == opB.Timestamp {
		return int(opA.ID.ClientID) - int(opB.ID.ClientID)
	}
	if opA.Timestamp < opB.Timestamp {
		return -1
	}
	return 1
}

func (it *sortedIterator) next() (*model.Operation, bool) {
	if len(it.toVisit) == 0 {
		return nil, false
	}

	index := it.toVisit[len(it.toVisit)-1]
	it.toVisit = it.toVisit[:len(it.toVisit)-1]

	switch kids := it.children[index]; len(kids) {
	case 0:
		// nothing to push
	case 1:
		it.toVisit = append(it.toVisit, kids[0])
	default:
		sortedKids := append([]operationIndex(nil), kids...)
		sort.SliceStable(sortedKids, func(i, j int) bool {
			return compareOperations(sortedKids[i], sortedKids[j], it.operations) > 0
		})
		it.toVisit = append(it.toVisit, sortedKids...)
	}

	return &it.operations[index], true
}
