package clientregistry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterNoUnknownClients(t *testing.T) {
	r := New("alice", 100, nil)
	remappings := r.Register([]GlobalClient{{CreatedAt: 100, GlobalID: "alice"}})
	assert.Nil(t, remappings)
	assert.Equal(t, ClientID(0), r.GetCurrentID())
}

func TestRegisterAssignsStableOrderByCreatedAt(t *testing.T) {
	r := New("bob", 200, nil)
	remappings := r.Register([]GlobalClient{{CreatedAt: 100, GlobalID: "alice"}})

	require.NotNil(t, remappings)
	assert.Equal(t, ClientID(1), remappings[0])
	assert.Equal(t, ClientID(1), r.GetCurrentID())

	clients := r.GetClients()
	require.Len(t, clients, 2)
	assert.Equal(t, "alice", clients[0].GlobalID)
	assert.Equal(t, "bob", clients[1].GlobalID)
}

func TestRegisterIsCommutative(t *testing.T) {
	incoming := []GlobalClient{
		{CreatedAt: 50, GlobalID: "carol"},
		{CreatedAt: 150, GlobalID: "dave"},
	}

	r1 := New("bob", 100, nil)
	r1.Register(incoming)

	r2 := New("bob", 100, nil)
	r2.Register([]GlobalClient{incoming[1], incoming[0]})

	assert.Equal(t, r1.GetClients(), r2.GetClients())
}

func TestFromBufferRemapsSerializedPositions(t *testing.T) {
	buf := New("bravo", 0, nil).Serialize()

	// "alpha" sorts before "bravo", so the serialized client at
	// position 0 moves to position 1 in the merged registry.
	decoded, rest, remappings, err := FromBuffer("alpha", 0, buf)
	require.NoError(t, err)
	assert.Empty(t, rest)
	require.NotNil(t, remappings)
	assert.Equal(t, ClientID(1), remappings[0])
	assert.Equal(t, ClientID(0), decoded.GetCurrentID())
}

func TestSerializeRoundTrip(t *testing.T) {
	r := New("alice", 100, nil)
	r.Register([]GlobalClient{{CreatedAt: 50, GlobalID: "zed"}})

	buf := r.Serialize()
	decoded, rest, remappings, err := FromBuffer("alice", 100, buf)
	require.NoError(t, err)
	assert.Empty(t, rest)
	assert.Nil(t, remappings)
	assert.Equal(t, r.GetClients(), decoded.GetClients())
}
