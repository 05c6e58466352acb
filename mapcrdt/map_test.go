package mapcrdt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cshekharsharma/cascade/model"
)

func TestSetThenGet(t *testing.T) {
	m := New(0)
	sel := model.Key("name")

	m.Set(SetParams{Selector: sel, ID: m.NextID(), Value: model.NewScalar(model.StringValue("alice")), Timestamp: 1})

	v, ok := m.Get(sel)
	require.True(t, ok)
	assert.Equal(t, "alice", v.Scalar.Str)
}

func TestDeleteMakesFieldAbsent(t *testing.T) {
	m := New(0)
	sel := model.Key("name")

	id := m.NextID()
	m.Set(SetParams{Selector: sel, ID: id, Value: model.NewScalar(model.StringValue("alice")), Timestamp: 1})
	m.Delete(DeleteParams{Selector: sel, Parents: []model.MapBlockID{id}})

	_, ok := m.Get(sel)
	assert.False(t, ok)
}

func TestReplayedOwnWriteAdvancesNextID(t *testing.T) {
	m := New(3)

	// replaying this client's own historical write (as a log rebuild
	// does) must push the id allocator past it
	m.Set(SetParams{
		Selector:  model.Key("k"),
		ID:        model.MapBlockID{ClientID: 3, Sequence: 7},
		Value:     model.NewScalar(model.StringValue("old")),
		Timestamp: 1,
	})

	next := m.NextID()
	assert.Equal(t, model.SequenceIndex(8), next.Sequence)
}

func TestConcurrentSetSetPicksHigherTimestamp(t *testing.T) {
	m := New(0)
	sel := model.Key("color")

	m.Set(SetParams{Selector: sel, ID: model.MapBlockID{ClientID: 0, Sequence: 1}, Value: model.NewScalar(model.StringValue("red")), Timestamp: 5})
	m.Set(SetParams{Selector: sel, ID: model.MapBlockID{ClientID: 1, Sequence: 1}, Value: model.NewScalar(model.StringValue("blue")), Timestamp: 10})

	v, ok := m.Get(sel)
	require.True(t, ok)
	assert.Equal(t, "blue", v.Scalar.Str)
}

func TestConcurrentSetSetEqualTimestampPicksHigherClientID(t *testing.T) {
	m := New(0)
	sel := model.Key("color")

	m.Set(SetParams{Selector: sel, ID: model.MapBlockID{ClientID: 3, Sequence: 1}, Value: model.NewScalar(model.StringValue("lower-client")), Timestamp: 5})
	m.Set(SetParams{Selector: sel, ID: model.MapBlockID{ClientID: 7, Sequence: 1}, Value: model.NewScalar(model.StringValue("higher-client")), Timestamp: 5})

	v, ok := m.Get(sel)
	require.True(t, ok)
	assert.Equal(t, "higher-client", v.Scalar.Str)
}

func TestConcurrentSetAndDeleteKeepsSetLive(t *testing.T) {
	m := New(0)
	sel := model.Key("foo")

	original := model.MapBlockID{ClientID: 0, Sequence: 1}
	m.Set(SetParams{Selector: sel, ID: original, Value: model.NewScalar(model.StringValue("one")), Timestamp: 1})

	// replica 1 observed `original` as latest, deletes it concurrently
	// with replica 2's new write parented on the same observation.
	m.Delete(DeleteParams{Selector: sel, Parents: []model.MapBlockID{original}})
	m.Set(SetParams{
		Selector:  sel,
		ID:        model.MapBlockID{ClientID: 1, Sequence: 1},
		Parents:   []model.MapBlockID{original},
		Value:     model.NewScalar(model.StringValue("two")),
		Timestamp: 2,
	})

	v, ok := m.Get(sel)
	require.True(t, ok, "the concurrent set must survive the delete that didn't observe it")
	assert.Equal(t, "two", v.Scalar.Str)
}
