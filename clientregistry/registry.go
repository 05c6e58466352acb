// Package clientregistry assigns and remaps the dense local client ids
// every other package in this module uses as a compact surrogate for a
// replica's stable global id.
package clientregistry

import (
	"sort"

	"go.uber.org/zap"
)

// GlobalClientID is the opaque, replica-chosen stable identifier for a
// client (typically a UUID string). It never changes for the lifetime
// of a client.
type GlobalClientID = string

// ClientID is the locally-assigned dense index into the registry's
// client list. It may be reassigned when a registry merges with
// another; see Remappings.
type ClientID = uint32

// GlobalClient pairs a stable global id with the logical timestamp at
// which the owning replica first learned of it. created_at must be the
// creating replica's own first-known timestamp for that client, never
// a merging replica's wall clock, or the merge order would stop being
// associative.
type GlobalClient struct {
	CreatedAt uint64
	GlobalID  GlobalClientID
}

// Remappings maps a pre-merge local ClientID to its post-merge
// replacement. A nil or empty Remappings means no client moved.
type Remappings map[ClientID]ClientID

// ClientRemappable is implemented by every value that stores a
// ClientID and must be rewritten when a registry merge reassigns local
// ids.
type ClientRemappable interface {
	RemapClientIDs(mappings Remappings)
}

// Registry holds the ordered client list for one replica. The index of
// a client in Clients is its local ClientID.
type Registry struct {
	clients       []GlobalClient
	currentGlobal GlobalClientID
	currentLocal  ClientID
	globalToLocal map[GlobalClientID]ClientID
	log           *zap.SugaredLogger
}

// New creates a registry containing only the owning replica's own
// entry, registered with the given creation timestamp.
func New(globalClientID GlobalClientID, createdAt uint64, log *zap.SugaredLogger) *Registry {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	r := &Registry{
		currentGlobal: globalClientID,
		clients:       []GlobalClient{{CreatedAt: createdAt, GlobalID: globalClientID}},
		log:           log,
	}
	r.rebuildCaches()
	return r
}

// GetClients returns the registry's current ordered client list. The
// returned slice must not be mutated by the caller.
func (r *Registry) GetClients() []GlobalClient {
	return r.clients
}

// GetCurrentID returns the local id of the owning replica, valid as of
// the most recent Register call.
func (r *Registry) GetCurrentID() ClientID {
	return r.currentLocal
}

// Register merges an incoming client list into the registry. If the
// merge reassigns any existing local id, it returns a non-nil
// Remappings describing every old-id -> new-id move the caller must
// propagate into every structure holding a ClientID. If the incoming
// list introduces no client unknown to this registry, Register returns
// a nil Remappings and leaves the registry unchanged.
//
// The merged ordering is associative and commutative: registering A
// then B assigns the same local ids as registering B then A, because
// both converge on sorting the union of clients by (created_at asc,
// global_id asc).
func (r *Registry) Register(incoming []GlobalClient) Remappings {
	if !r.hasUnknownClients(incoming) {
		return nil
	}

	merged := mergeClients(r.clients, incoming)

	var remappings Remappings
	if requiresRemapping(r.clients, merged) {
		remappings = buildRemappings(r.clients, merged)
	}

	r.clients = merged
	r.rebuildCaches()
	r.currentLocal = r.globalToLocal[r.currentGlobal]

	r.log.Debugw("registered clients",
		"incoming", len(incoming),
		"total", len(r.clients),
		"remapped", len(remappings) > 0,
	)

	return remappings
}

func (r *Registry) hasUnknownClients(incoming []GlobalClient) bool {
	for _, c := range incoming {
		if _, ok := r.globalToLocal[c.GlobalID]; !ok {
			return true
		}
	}
	return false
}

func mergeClients(a, b []GlobalClient) []GlobalClient {
	combined := make([]GlobalClient, 0, len(a)+len(b))
	combined = append(combined, a...)
	combined = append(combined, b...)

	sort.SliceStable(combined, func(i, j int) bool {
		if combined[i].CreatedAt == combined[j].CreatedAt {
			return combined[i].GlobalID < combined[j].GlobalID
		}
		return combined[i].CreatedAt < combined[j].CreatedAt
	})

	deduped := make([]GlobalClient, 0, len(combined))
	seen := make(map[GlobalClientID]struct{}, len(combined))
	for _, c := range combined {
		if _, ok := seen[c.GlobalID]; ok {
			continue
		}
		seen[c.GlobalID] = struct{}{}
		deduped = append(deduped, c)
	}
	return deduped
}

func requiresRemapping(old, merged []GlobalClient) bool {
	for localID, client := range old {
		if localID >= len(merged) || merged[localID].GlobalID != client.GlobalID {
			return true
		}
	}
	return false
}

func buildRemappings(old, merged []GlobalClient) Remappings {
	newIndex := make(map[GlobalClientID]ClientID, len(merged))
	for i, c := range merged {
		newIndex[c.GlobalID] = ClientID(i)
	}

	remappings := make(Remappings)
	for oldLocal, client := range old {
		newLocal := newIndex[client.GlobalID]
		if ClientID(oldLocal) != newLocal {
			remappings[ClientID(oldLocal)] = newLocal
		}
	}
	return remappings
}

func (r *Registry) rebuildCaches() {
	r.globalToLocal = make(map[GlobalClientID]ClientID, len(r.clients))
	for i, c := range r.clients {
		r.globalToLocal[c.GlobalID] = ClientID(i)
	}
}

// Clone returns a deep copy of the registry, used by the merge
// coordinator to compute the reverse remapping without mutating self.
func (r *Registry) Clone() *Registry {
	clients := make([]GlobalClient, len(r.clients))
	copy(clients, r.clients)
	clone := &Registry{
		clients:       clients,
		currentGlobal: r.currentGlobal,
		currentLocal:  r.currentLocal,
		log:           r.log,
	}
	clone.rebuildCaches()
	return clone
}
