package wire

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cshekharsharma/cascade/model"
)

func parentOf(clientID model.ClientID, seq model.SequenceIndex) *model.OperationID {
	id := model.OperationID{ClientID: clientID, Sequence: seq}
	return &id
}

func sampleOperations() []model.Operation {
	const alice model.ClientID = 1
	const bob model.ClientID = 2

	left := model.SequenceBlockID{ClientID: alice, Sequence: 1}

	return []model.Operation{
		{
			ID:        model.OperationID{ClientID: alice, Sequence: 1},
			Timestamp: 100,
			Action: &model.CreateMapAction{
				Object:   model.RootRef(),
				Selector: model.Key("profile"),
				ID:       model.MapBlockID{ClientID: alice, Sequence: 1},
			},
		},
		{
			ID:        model.OperationID{ClientID: alice, Sequence: 2},
			Parent:    parentOf(alice, 1),
			Timestamp: 101,
			Action: &model.SetMapValueAction{
				Object:   model.ObjRefFromID(model.OperationID{ClientID: alice, Sequence: 1}),
				Selector: model.Key("name"),
				ID:       model.MapBlockID{ClientID: alice, Sequence: 2},
				Value:    model.NewScalar(model.StringValue("ada")),
			},
		},
		{
			ID:        model.OperationID{ClientID: bob, Sequence: 1},
			Parent:    parentOf(alice, 2),
			Timestamp: 150,
			Action: &model.SetMapValueAction{
				Object:   model.ObjRefFromID(model.OperationID{ClientID: alice, Sequence: 1}),
				Selector: model.Key("age"),
				ID:       model.MapBlockID{ClientID: bob, Sequence: 1},
				Parents:  []model.MapBlockID{{ClientID: alice, Sequence: 2}},
				Value:    model.NewScalar(model.IntValue(-7)),
			},
		},
		{
			ID:        model.OperationID{ClientID: bob, Sequence: 2},
			Timestamp: 151,
			Action: &model.DeleteMapValueAction{
				Object:   model.ObjRefFromID(model.OperationID{ClientID: alice, Sequence: 1}),
				Selector: model.Key("age"),
				Parents:  []model.MapBlockID{{ClientID: bob, Sequence: 1}},
			},
		},
		{
			ID:        model.OperationID{ClientID: alice, Sequence: 3},
			Timestamp: 160,
			Action: &model.SetMapValueAction{
				Object:   model.ObjRefFromID(model.OperationID{ClientID: alice, Sequence: 1}),
				Selector: model.Key("score"),
				ID:       model.MapBlockID{ClientID: alice, Sequence: 3},
				Value:    model.NewScalar(model.DoubleValue(3.25)),
			},
		},
		{
			ID:        model.OperationID{ClientID: alice, Sequence: 4},
			Timestamp: 161,
			Action: &model.SetMapValueAction{
				Object:   model.ObjRefFromID(model.OperationID{ClientID: alice, Sequence: 1}),
				Selector: model.Key("active"),
				ID:       model.MapBlockID{ClientID: alice, Sequence: 4},
				Value:    model.NewScalar(model.BoolValue(true)),
			},
		},
		{
			ID:        model.OperationID{ClientID: alice, Sequence: 5},
			Timestamp: 162,
			Action: &model.SetMapValueAction{
				Object:   model.ObjRefFromID(model.OperationID{ClientID: alice, Sequence: 1}),
				Selector: model.Key("sibling"),
				ID:       model.MapBlockID{ClientID: alice, Sequence: 5},
				Value:    model.NewObject(model.ObjRefFromID(model.OperationID{ClientID: bob, Sequence: 1})),
			},
		},
		{
			ID:        model.OperationID{ClientID: alice, Sequence: 6},
			Timestamp: 163,
			Action: &model.CreateTextAction{
				Object:   model.RootRef(),
				Selector: model.Index(0),
				ID:       model.MapBlockID{ClientID: alice, Sequence: 6},
			},
		},
		{
			ID:        model.OperationID{ClientID: alice, Sequence: 7},
			Timestamp: 164,
			Action: &model.InsertTextAction{
				Object: model.ObjRefFromID(model.OperationID{ClientID: alice, Sequence: 6}),
				ID:     model.SequenceBlockID{ClientID: alice, Sequence: 7},
				Value:  "hi",
			},
		},
		{
			ID:        model.OperationID{ClientID: bob, Sequence: 3},
			Timestamp: 165,
			Action: &model.InsertTextAction{
				Object: model.ObjRefFromID(model.OperationID{ClientID: alice, Sequence: 6}),
				ID:     model.SequenceBlockID{ClientID: bob, Sequence: 3},
				Value:  "!",
				Left:   &left,
			},
		},
		{
			ID:        model.OperationID{ClientID: bob, Sequence: 4},
			Timestamp: 166,
			Action: &model.DeleteTextAction{
				Object: model.ObjRefFromID(model.OperationID{ClientID: alice, Sequence: 6}),
				Left:   model.SequenceBlockID{ClientID: alice, Sequence: 7},
				Right:  model.SequenceBlockID{ClientID: bob, Sequence: 3},
			},
		},
	}
}

func TestEncodeDecodeOperationsRoundTrips(t *testing.T) {
	ops := sampleOperations()

	encoded := EncodeOperations(ops)
	decoded, rest, err := DecodeOperations(encoded)
	require.NoError(t, err)
	assert.Empty(t, rest)

	if diff := cmp.Diff(ops, decoded); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestEncodeDecodeOperationsEmpty(t *testing.T) {
	encoded := EncodeOperations(nil)
	decoded, rest, err := DecodeOperations(encoded)
	require.NoError(t, err)
	assert.Empty(t, rest)
	assert.Empty(t, decoded)
}

func TestDecodeOperationsRejectsTruncatedBuffer(t *testing.T) {
	encoded := EncodeOperations(sampleOperations())
	_, _, err := DecodeOperations(encoded[:len(encoded)/2])
	require.Error(t, err)
}

func TestDecodeOperationsLeavesTrailingBytes(t *testing.T) {
	encoded := EncodeOperations(sampleOperations())
	trailer := []byte{0xAB, 0xCD}
	_, rest, err := DecodeOperations(append(encoded, trailer...))
	require.NoError(t, err)
	assert.Equal(t, trailer, rest)
}
