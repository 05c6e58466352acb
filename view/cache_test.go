package view

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cshekharsharma/cascade/clientregistry"
	"github.com/cshekharsharma/cascade/model"
	"github.com/cshekharsharma/cascade/oplog"
)

func TestSnapshotMirrorsViewAsMap(t *testing.T) {
	registry := clientregistry.New("r1", 0, nil)
	log := oplog.New(registry.GetCurrentID(), nil)
	v := New(registry.GetCurrentID(), nil)

	op, err := log.ApplyLocalAction(&model.SetMapValueAction{
		Object:   model.RootRef(),
		Selector: model.Key("greeting"),
		ID:       model.MapBlockID{ClientID: registry.GetCurrentID(), Sequence: 1},
		Value:    model.NewScalar(model.StringValue("hello")),
	}, 1)
	require.NoError(t, err)
	require.NoError(t, v.ApplyLocalOperation(op, registry))

	cache := Snapshot(v)
	assert.Equal(t, v.AsMap(), cache.AsMap())

	value, ok, err := cache.Get(model.RootRef(), model.Key("greeting"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "hello", value.Scalar.Str)
}

func TestCacheSerializeRoundTrips(t *testing.T) {
	registry := clientregistry.New("r1", 0, nil)
	log := oplog.New(registry.GetCurrentID(), nil)
	v := New(registry.GetCurrentID(), nil)

	createOp, err := log.ApplyLocalAction(&model.CreateTextAction{
		Object:   model.RootRef(),
		Selector: model.Key("notes"),
		ID:       model.MapBlockID{ClientID: registry.GetCurrentID(), Sequence: 1},
	}, 1)
	require.NoError(t, err)
	require.NoError(t, v.ApplyLocalOperation(createOp, registry))

	textRef := model.ObjRefFromID(createOp.ID)
	insertOp, err := log.ApplyLocalAction(&model.InsertTextAction{
		Object: textRef,
		ID:     model.SequenceBlockID{ClientID: registry.GetCurrentID(), Sequence: 1},
		Value:  "hi",
	}, 2)
	require.NoError(t, err)
	require.NoError(t, v.ApplyLocalOperation(insertOp, registry))

	setOp, err := log.ApplyLocalAction(&model.SetMapValueAction{
		Object:   model.RootRef(),
		Selector: model.Key("count"),
		ID:       model.MapBlockID{ClientID: registry.GetCurrentID(), Sequence: 2},
		Value:    model.NewScalar(model.IntValue(42)),
	}, 3)
	require.NoError(t, err)
	require.NoError(t, v.ApplyLocalOperation(setOp, registry))

	cache := Snapshot(v)
	buf := cache.Serialize()

	decoded, rest, err := FromBuffer(buf)
	require.NoError(t, err)
	assert.Empty(t, rest)
	assert.Equal(t, cache.AsMap(), decoded.AsMap())

	text, err := decoded.GetText(textRef)
	require.NoError(t, err)
	assert.Equal(t, "hi", text)

	// Re-serializing the decoded cache must reproduce the same bytes:
	// this is the round-trip idempotence property the document
	// buffer's top-level framing relies on.
	assert.Equal(t, buf, decoded.Serialize())
}

func TestCacheGetUnknownSelectorIsAbsent(t *testing.T) {
	c := NewCache()
	_, ok, err := c.Get(model.RootRef(), model.Key("missing"))
	require.NoError(t, err)
	assert.False(t, ok)
}
