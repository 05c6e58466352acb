package clientregistry

import (
	"fmt"

	"github.com/cshekharsharma/cascade/internal/wireutil"
)

// SerializationError reports a malformed client registry buffer.
type SerializationError struct {
	Detail string
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("client registry: %s", e.Detail)
}

// Serialize encodes the registry as a varint client count followed by
// (created_at varint, global_id_len varint, utf8 bytes) tuples. A
// client's position in the stream is its implicit local id.
func (r *Registry) Serialize() []byte {
	buf := make([]byte, 0, 16*len(r.clients))
	buf = wireutil.AppendUvarint(buf, uint64(len(r.clients)))

	for _, c := range r.clients {
		buf = wireutil.AppendUvarint(buf, c.CreatedAt)
		buf = wireutil.AppendString(buf, c.GlobalID)
	}
	return buf
}

// deserializeClients decodes the wire format produced by Serialize.
func deserializeClients(buf []byte) ([]GlobalClient, int, error) {
	count, offset, err := wireutil.ReadUvarint(buf)
	if err != nil {
		return nil, 0, &SerializationError{Detail: "truncated client count: " + err.Error()}
	}

	clients := make([]GlobalClient, 0, count)
	for i := uint64(0); i < count; i++ {
		createdAt, n, err := wireutil.ReadUvarint(buf[offset:])
		if err != nil {
			return nil, 0, &SerializationError{Detail: "truncated created_at: " + err.Error()}
		}
		offset += n

		globalID, n, err := wireutil.ReadString(buf[offset:])
		if err != nil {
			return nil, 0, &SerializationError{Detail: "truncated global id: " + err.Error()}
		}
		offset += n

		clients = append(clients, GlobalClient{CreatedAt: createdAt, GlobalID: globalID})
	}

	return clients, offset, nil
}

// FromBuffer decodes a registry, registering the decoded clients into
// a fresh registry owned by globalClientID.
//
// The rest of a document buffer references clients by their position
// in the serialized list. If registering the loading replica's own id
// shifts any of those positions, the returned Remappings translate
// serialized positions into the merged registry's local ids; the
// caller must apply them to every operation decoded from the same
// buffer. Loading with a global id the buffer already contains always
// yields nil remappings.
func FromBuffer(globalClientID GlobalClientID, createdAt uint64, buf []byte) (*Registry, []byte, Remappings, error) {
	clients, n, err := deserializeClients(buf)
	if err != nil {
		return nil, nil, nil, err
	}

	r := New(globalClientID, createdAt, nil)
	r.Register(clients)

	var remappings Remappings
	for i, c := range clients {
		merged := r.globalToLocal[c.GlobalID]
		if ClientID(i) != merged {
			if remappings == nil {
				remappings = make(Remappings)
			}
			remappings[ClientID(i)] = merged
		}
	}
	return r, buf[n:], remappings, nil
}
