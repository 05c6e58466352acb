// Package oplog implements the causal operation log: a forest of
// Operations linked by single-parent pointers, with orphan buffering
// for operations whose parent has not arrived yet and a deterministic
// sorted iteration order used for view replay and merge.
package oplog

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/cshekharsharma/cascade/clientregistry"
	"github.com/cshekharsharma/cascade/model"
)

type operationIndex = int

// Log stores every operation this replica knows about, plus the DAG
// induced by their parent pointers.
type Log struct {
	localClient     model.ClientID
	operations      []model.Operation
	clientSequences map[model.ClientID]model.SequenceIndex
	idToIndex       map[model.OperationID]operationIndex
	roots           []operationIndex
	last            *operationIndex
	orphans         map[model.OperationID]model.Operation
	log             *zap.SugaredLogger
}

// New creates an empty log owned by localClient.
func New(localClient model.ClientID, log *zap.SugaredLogger) *Log {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Log{
		localClient:     localClient,
		clientSequences: make(map[model.ClientID]model.SequenceIndex),
		idToIndex:       make(map[model.OperationID]operationIndex),
		orphans:         make(map[model.OperationID]model.Operation),
		log:             log,
	}
}

// NonMonotonicSequenceError reports a protocol violation: a peer sent
// an operation whose sequence did not strictly increase on its client.
type NonMonotonicSequenceError struct {
	ClientID     model.ClientID
	ReceivedSeq  model.SequenceIndex
	LastKnownSeq model.SequenceIndex
}

func (e *NonMonotonicSequenceError) Error() string {
	return fmt.Sprintf("oplog: non-monotonic sequence from client %d: received %d, last known %d",
		e.ClientID, e.ReceivedSeq, e.LastKnownSeq)
}

// ApplyLocalAction wraps action into a new Operation parented on the
// log's current tip, assigns it the next sequence number for
// localClient, appends it, and returns it.
func (l *Log) ApplyLocalAction(action model.Action, timestamp model.Timestamp) (*model.Operation, error) {
	op := model.Operation{
		ID:        l.nextID(),
		Action:    action,
		Timestamp: timestamp,
	}
	if l.last != nil {
		parent := l.operations[*l.last].ID
		op.Parent = &parent
	}

	idx, err := l.insertOperation(op)
	if err != nil {
		return nil, err
	}
	if idx == nil {
		return nil, fmt.Errorf("oplog: local operation was not inserted")
	}
	return &l.operations[*idx], nil
}

// ApplyOperation idempotently inserts a possibly-remote operation,
// draining any orphans that were waiting on it (and transitively, on
// those, and so on).
func (l *Log) ApplyOperation(op model.Operation) ([]*model.Operation, error) {
	var applied []operationIndex

	operationID := op.ID
	idx, err := l.insertOperation(op)
	if err != nil {
		return nil, err
	}
	if idx != nil {
		applied = append(applied, *idx)
	}

	for {
		orphan, ok := l.orphans[operationID]
		if !ok {
			break
		}
		delete(l.orphans, operationID)
		operationID = orphan.ID

		idx, err := l.insertOperation(orphan)
		if err != nil {
			return nil, err
		}
		if idx != nil {
			applied = append(applied, *idx)
		}
	}

	result := make([]*model.Operation, len(applied))
	for i, idx := range applied {
		result[i] = &l.operations[idx]
	}
	return result, nil
}

// Iter returns operations in insertion order, for callers that only
// need the set of operations and not the causal order.
func (l *Log) Iter() []model.Operation {
	return l.operations
}

// IterSorted returns operations in the deterministic causal order
// defined by compareOperations: a DFS from the sorted roots, expanding
// each node's children in sorted order. This is the order view replay
// and merge replay must both use for any two replicas with the same
// operation set to converge.
func (l *Log) IterSorted() []*model.Operation {
	it := newSortedIterator(l.roots, l.operations, l.idToIndex)
	var result []*model.Operation
	for {
		op, ok := it.next()
		if !ok {
			break
		}
		result = append(result, op)
	}
	return result
}

// RemapClientIDs rewrites every client id this log holds: its own
// local client, every stored operation, the client sequence counters,
// the id index, and the orphan buffer.
func (l *Log) RemapClientIDs(mappings clientregistry.Remappings) {
	if mapped, ok := mappings[l.localClient]; ok {
		l.localClient = mapped
	}

	for i := range l.operations {
		l.operations[i].RemapClientIDs(mappings)
	}

	newSequences := make(map[model.ClientID]model.SequenceIndex, len(l.clientSequences))
	for clientID, seq := range l.clientSequences {
		newID := clientID
		if mapped, ok := mappings[clientID]; ok {
			newID = mapped
		}
		newSequences[newID] = seq
	}
	l.clientSequences = newSequences

	newIDToIndex := make(map[model.OperationID]operationIndex, len(l.idToIndex))
	for id, idx := range l.idToIndex {
		newID := id
		newID.RemapClientIDs(mappings)
		newIDToIndex[newID] = idx
	}
	l.idToIndex = newIDToIndex

	newOrphans := make(map[model.OperationID]model.Operation, len(l.orphans))
	for id, orphan := range l.orphans {
		newID := id
		newID.RemapClientIDs(mappings)
		orphan.RemapClientIDs(mappings)
		newOrphans[newID] = orphan
	}
	l.orphans = newOrphans
}

func (l *Log) insertOperation(op model.Operation) (*operationIndex, error) {
	if _, ok := l.idToIndex[op.ID]; ok {
		return nil, nil
	}

	if l.isOrphan(op) {
		l.orphans[*op.Parent] = op
		return nil, nil
	}

	if seq, ok := l.clientSequences[op.ID.ClientID]; ok && op.ID.Sequence <= seq {
		l.log.Warnw("non-monotonic sequence from known client",
			"client_id", op.ID.ClientID, "received", op.ID.Sequence, "last_known", seq)
		return nil, &NonMonotonicSequenceError{
			ClientID:     op.ID.ClientID,
			ReceivedSeq:  op.ID.Sequence,
			LastKnownSeq: seq,
		}
	}

	index := len(l.operations)
	l.idToIndex[op.ID] = index

	if op.Parent == nil {
		l.roots = append(l.roots, index)
	}

	l.clientSequences[op.ID.ClientID] = op.ID.Sequence

	concurrent := l.isConcurrent(op)
	l.operations = append(l.operations, op)

	if concurrent {
		l.recalculateLast()
	} else {
		last := index
		l.last = &last
	}

	return &index, nil
}

func (l *Log) isOrphan(op model.Operation) bool {
	if op.Parent == nil {
		return false
	}
	_, ok := l.idToIndex[*op.Parent]
	return !ok
}

func (l *Log) isConcurrent(op model.Operation) bool {
	if l.last == nil {
		return true
	}
	if op.Parent != nil && l.operations[*l.last].ID == *op.Parent {
		return false
	}
	return true
}

func (l *Log) recalculateLast() {
	sorted := l.IterSorted()
	if len(sorted) == 0 {
		l.last = nil
		return
	}
	lastOp := sorted[len(sorted)-1]
	idx := l.idToIndex[lastOp.ID]
	l.last = &idx
}

func (l *Log) nextID() model.OperationID {
	seq := l.clientSequences[l.localClient] + 1
	return model.OperationID{ClientID: l.localClient, Sequence: seq}
}
