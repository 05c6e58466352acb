package oplog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cshekharsharma/cascade/model"
)

func setValueAction(selector model.Selector, seq model.SequenceIndex, value string) model.Action {
	return &model.SetMapValueAction{
		Object:   model.RootRef(),
		Selector: selector,
		ID:       model.MapBlockID{ClientID: 0, Sequence: seq},
		Value:    model.NewScalar(model.StringValue(value)),
	}
}

func TestApplyLocalActionChainsParent(t *testing.T) {
	l := New(0, nil)

	op1, err := l.ApplyLocalAction(setValueAction(model.Key("a"), 1, "1"), 10)
	require.NoError(t, err)
	assert.Nil(t, op1.Parent)

	op2, err := l.ApplyLocalAction(setValueAction(model.Key("b"), 2, "2"), 11)
	require.NoError(t, err)
	require.NotNil(t, op2.Parent)
	assert.Equal(t, op1.ID, *op2.Parent)
}

func TestApplyOperationBuffersOrphans(t *testing.T) {
	l := New(1, nil)

	grandparentID := model.OperationID{ClientID: 2, Sequence: 1}
	parentID := model.OperationID{ClientID: 2, Sequence: 2}
	childID := model.OperationID{ClientID: 2, Sequence: 3}

	child := model.Operation{ID: childID, Parent: &parentID, Action: setValueAction(model.Key("c"), 3, "c"), Timestamp: 3}
	applied, err := l.ApplyOperation(child)
	require.NoError(t, err)
	assert.Empty(t, applied, "child should be buffered as an orphan")

	parent := model.Operation{ID: parentID, Parent: &grandparentID, Action: setValueAction(model.Key("b"), 2, "b"), Timestamp: 2}
	applied, err = l.ApplyOperation(parent)
	require.NoError(t, err)
	assert.Empty(t, applied, "parent is itself an orphan of the grandparent")

	grandparent := model.Operation{ID: grandparentID, Action: setValueAction(model.Key("a"), 1, "a"), Timestamp: 1}
	applied, err = l.ApplyOperation(grandparent)
	require.NoError(t, err)
	assert.Len(t, applied, 3, "inserting the grandparent should drain the whole orphan chain")
}

func TestApplyOperationRejectsNonMonotonicSequence(t *testing.T) {
	l := New(1, nil)

	op1 := model.Operation{ID: model.OperationID{ClientID: 2, Sequence: 5}, Action: setValueAction(model.Key("a"), 1, "a"), Timestamp: 1}
	_, err := l.ApplyOperation(op1)
	require.NoError(t, err)

	op2 := model.Operation{ID: model.OperationID{ClientID: 2, Sequence: 4}, Parent: &op1.ID, Action: setValueAction(model.Key("b"), 2, "b"), Timestamp: 2}
	_, err = l.ApplyOperation(op2)
	require.Error(t, err)

	var nonMonotonic *NonMonotonicSequenceError
	assert.ErrorAs(t, err, &nonMonotonic)
}

func TestIterSortedBreaksTimestampTiesByClientID(t *testing.T) {
	l := New(0, nil)

	root := model.Operation{ID: model.OperationID{ClientID: 1, Sequence: 1}, Action: setValueAction(model.Key("a"), 1, "a"), Timestamp: 5}
	_, err := l.ApplyOperation(root)
	require.NoError(t, err)

	concurrentLow := model.Operation{ID: model.OperationID{ClientID: 0, Sequence: 1}, Parent: &root.ID, Action: setValueAction(model.Key("b"), 1, "b"), Timestamp: 6}
	concurrentHigh := model.Operation{ID: model.OperationID{ClientID: 2, Sequence: 1}, Parent: &root.ID, Action: setValueAction(model.Key("c"), 1, "c"), Timestamp: 6}

	_, err = l.ApplyOperation(concurrentHigh)
	require.NoError(t, err)
	_, err = l.ApplyOperation(concurrentLow)
	require.NoError(t, err)

	sorted := l.IterSorted()
	require.Len(t, sorted, 3)
	assert.Equal(t, model.ClientID(1), sorted[0].ID.ClientID)
	assert.Equal(t, model.ClientID(0), sorted[1].ID.ClientID)
	assert.Equal(t, model.ClientID(2), sorted[2].ID.ClientID)

	// insertion order is independent of the sorted walk
	inserted := l.Iter()
	require.Len(t, inserted, 3)
	assert.Equal(t, model.ClientID(1), inserted[0].ID.ClientID)
	assert.Equal(t, model.ClientID(2), inserted[1].ID.ClientID)
	assert.Equal(t, model.ClientID(0), inserted[2].ID.ClientID)
}
