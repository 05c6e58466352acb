package sequencetree

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cshekharsharma/cascade/model"
)

func id(client model.ClientID, seq model.SequenceIndex) model.SequenceBlockID {
	return model.SequenceBlockID{ClientID: client, Sequence: seq}
}

func TestInsertAtHeadThenAppendConverges(t *testing.T) {
	tr := New[StringItems](32, 32)

	tr.Insert(Block[StringItems]{ID: id(0, 1), Items: "hello", Left: nil})
	last, ok := tr.LastBlock()
	require.True(t, ok)
	tr.Insert(Block[StringItems]{ID: id(0, 6), Items: " world", Left: &last})

	items := tr.Iterate()
	var got strings.Builder
	for _, it := range items {
		got.WriteString(string(it))
	}
	assert.Equal(t, "hello world", got.String())
}

func TestContiguousSameClientRunMerges(t *testing.T) {
	tr := New[StringItems](32, 32)

	tr.Insert(Block[StringItems]{ID: id(0, 1), Items: "a", Left: nil})
	tr.Insert(Block[StringItems]{ID: id(0, 2), Items: "b", Left: ptr(id(0, 1))})
	tr.Insert(Block[StringItems]{ID: id(0, 3), Items: "c", Left: ptr(id(0, 2))})

	assert.Equal(t, `L("abc")`, tr.DebugString())
}

func TestConcurrentInsertAtSameOriginOrdersByClientID(t *testing.T) {
	tr := New[StringItems](32, 32)

	tr.Insert(Block[StringItems]{ID: id(0, 1), Items: "x", Left: nil})
	// two concurrent inserts both anchored on the same origin
	tr.Insert(Block[StringItems]{ID: id(5, 1), Items: "A", Left: ptr(id(0, 1))})
	tr.Insert(Block[StringItems]{ID: id(2, 1), Items: "B", Left: ptr(id(0, 1))})

	items := tr.Iterate()
	var got strings.Builder
	for _, it := range items {
		got.WriteString(string(it))
	}
	// lower client id sorts first among siblings of the same origin
	assert.Equal(t, "xBA", got.String())
}

func TestDeleteTombstonesRangeAndUpdatesLen(t *testing.T) {
	tr := New[StringItems](32, 32)
	tr.Insert(Block[StringItems]{ID: id(0, 1), Items: "hello", Left: nil})

	require.Equal(t, 5, tr.Len())

	tr.Delete(id(0, 2), id(0, 4))

	assert.Equal(t, 2, tr.Len())
	items := tr.Iterate()
	var got strings.Builder
	for _, it := range items {
		got.WriteString(string(it))
	}
	assert.Equal(t, "ho", got.String())
}

func TestInsertMidRangeSplitsContainingBlock(t *testing.T) {
	tr := New[StringItems](32, 32)
	tr.Insert(Block[StringItems]{ID: id(0, 1), Items: "ac", Left: nil})
	// insert "b" between "a" and "c", anchored on "a"
	tr.Insert(Block[StringItems]{ID: id(1, 1), Items: "b", Left: ptr(id(0, 1))})

	items := tr.Iterate()
	var got strings.Builder
	for _, it := range items {
		got.WriteString(string(it))
	}
	assert.Equal(t, "abc", got.String())
}

func TestLeafSplitsWhenFull(t *testing.T) {
	tr := New[StringItems](4, 2)

	var left *model.SequenceBlockID
	for i := 0; i < 6; i++ {
		blockID := id(model.ClientID(i+1), 1)
		tr.Insert(Block[StringItems]{ID: blockID, Items: StringItems("x"), Left: left})
		left = &blockID
	}

	assert.Equal(t, 6, tr.Len())
	assert.Equal(t, 6, len(tr.Iterate()))
}

func ptr(id model.SequenceBlockID) *model.SequenceBlockID { return &id }
