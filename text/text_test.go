package text

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cshekharsharma/cascade/model"
)

func TestInsertAppendRoundTrip(t *testing.T) {
	tx := New(0)

	id1 := tx.NextID(5)
	tx.Insert(InsertParams{ID: id1, Content: "hello"})

	last, ok := tx.LastID()
	require.True(t, ok)

	id2 := tx.NextID(6)
	tx.Insert(InsertParams{ID: id2, Left: &last, Content: " world"})

	assert.Equal(t, "hello world", tx.ToString())
	assert.Equal(t, 11, tx.Len())
}

func TestDeleteShrinksVisibleLength(t *testing.T) {
	tx := New(0)
	id1 := tx.NextID(5)
	tx.Insert(InsertParams{ID: id1, Content: "hello"})

	from := model.SequenceBlockID{ClientID: 0, Sequence: id1.Sequence + 1}
	to := model.SequenceBlockID{ClientID: 0, Sequence: id1.Sequence + 3}
	tx.Delete(DeleteParams{From: from, To: to})

	assert.Equal(t, "ho", tx.ToString())
	assert.Equal(t, 2, tx.Len())
}

func TestReplayedOwnInsertAdvancesNextID(t *testing.T) {
	tx := New(2)

	// replaying this client's own historical insert (as a log rebuild
	// does) must push the id allocator past its whole range
	tx.Insert(InsertParams{ID: model.SequenceBlockID{ClientID: 2, Sequence: 1}, Content: "hello"})

	next := tx.NextID(1)
	assert.Equal(t, model.SequenceIndex(6), next.Sequence)
}

func TestConcurrentInsertsAtSamePositionConverge(t *testing.T) {
	replicaA := New(1)
	replicaB := New(2)

	idA := replicaA.NextID(1)
	replicaA.Insert(InsertParams{ID: idA, Content: "x"})
	replicaB.Insert(InsertParams{ID: idA, Content: "x"})

	// both replicas concurrently insert right after "x", anchored on it
	id5 := model.SequenceBlockID{ClientID: 5, Sequence: 1}
	id2 := model.SequenceBlockID{ClientID: 2, Sequence: 1}

	replicaA.Insert(InsertParams{ID: id5, Left: &idA, Content: "A"})
	replicaA.Insert(InsertParams{ID: id2, Left: &idA, Content: "B"})

	replicaB.Insert(InsertParams{ID: id2, Left: &idA, Content: "B"})
	replicaB.Insert(InsertParams{ID: id5, Left: &idA, Content: "A"})

	assert.Equal(t, replicaA.ToString(), replicaB.ToString(), "insertion order must not affect the converged result")
}
