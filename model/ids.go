// Package model holds the identifiers, values, and operation payloads
// shared by every CRDT engine package in this module. It sits below
// oplog, mapcrdt, text, and view (and imports only clientregistry) so
// that none of them need to import each other just to talk about an
// OperationId.
package model

import "github.com/cshekharsharma/cascade/clientregistry"

// ClientID and GlobalClientID are re-exported from clientregistry so
// callers of this package rarely need to import it directly.
type (
	ClientID       = clientregistry.ClientID
	GlobalClientID = clientregistry.GlobalClientID
	Remappings     = clientregistry.Remappings
)

// Timestamp is a logical clock value used for last-writer-wins
// tie-breaking. Doc issues it from a counter that advances by one per
// local operation and past every timestamp it loads or merges; it has
// no relation to wall-clock time.
type Timestamp = uint64

// SequenceIndex is a per-client monotonically increasing counter,
// starting at 1.
type SequenceIndex = uint32

// OperationID identifies one operation by its author and per-author
// sequence number.
type OperationID struct {
	ClientID ClientID
	Sequence SequenceIndex
}

// RemapClientIDs rewrites the client id component in place.
func (id *OperationID) RemapClientIDs(mappings Remappings) {
	if mapped, ok := mappings[id.ClientID]; ok {
		id.ClientID = mapped
	}
}

// ObjID is the id of the operation that created an object; it is how
// objects are addressed throughout the document.
type ObjID = OperationID

// ObjRef addresses either the distinguished root map or an object
// created by a specific operation.
type ObjRef struct {
	Root bool
	ID   ObjID
}

// RootRef is the well-known reference to the document's root map.
func RootRef() ObjRef { return ObjRef{Root: true} }

// ObjRefFromID builds a reference to the object created by id.
func ObjRefFromID(id ObjID) ObjRef { return ObjRef{ID: id} }

// RemapClientIDs rewrites the underlying id's client component, if
// this reference does not point at the root.
func (r *ObjRef) RemapClientIDs(mappings Remappings) {
	if !r.Root {
		r.ID.RemapClientIDs(mappings)
	}
}

// SelectorKind distinguishes the two forms a Selector can take.
type SelectorKind uint8

const (
	SelectorKeyKind   SelectorKind = 0
	SelectorIndexKind SelectorKind = 1
)

// Selector is a map key: either a string key or a non-negative integer
// index. Both are ordinary map keys, not positions within a sequence.
type Selector struct {
	Kind  SelectorKind
	Key   string
	Index int
}

// Key builds a string-keyed selector.
func Key(key string) Selector { return Selector{Kind: SelectorKeyKind, Key: key} }

// Index builds an integer-keyed selector.
func Index(index int) Selector { return Selector{Kind: SelectorIndexKind, Index: index} }

// MapBlockID identifies one write (or create) into a map's block set.
type MapBlockID struct {
	ClientID ClientID
	Sequence SequenceIndex
}

// RemapClientIDs rewrites the client id component in place.
func (id *MapBlockID) RemapClientIDs(mappings Remappings) {
	if mapped, ok := mappings[id.ClientID]; ok {
		id.ClientID = mapped
	}
}

// SequenceBlockID identifies the first element of a sequence tree
// block.
type SequenceBlockID struct {
	ClientID ClientID
	Sequence SequenceIndex
}

// NewSequenceBlockID builds a SequenceBlockID.
func NewSequenceBlockID(clientID ClientID, sequence SequenceIndex) SequenceBlockID {
	return SequenceBlockID{ClientID: clientID, Sequence: sequence}
}

// RemapClientIDs rewrites the client id component in place.
func (id *SequenceBlockID) RemapClientIDs(mappings Remappings) {
	if mapped, ok := mappings[id.ClientID]; ok {
		id.ClientID = mapped
	}
}
