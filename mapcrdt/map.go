// Package mapcrdt implements the per-field multi-value register: a
// Map object whose fields each hold a BlockSet, the append-only DAG of
// writes that gives concurrent set/delete its deterministic
// last-writer-wins resolution.
package mapcrdt

import "github.com/cshekharsharma/cascade/model"

// Map is the map CRDT: a collection of fields, each backed by a
// BlockSet.
type Map struct {
	client                model.ClientID
	nextAvailableSequence model.SequenceIndex
	fields                map[model.Selector]*BlockSet
}

// ObjectKind marks Map as one of the two object CRDTs a view can
// hold.
func (*Map) ObjectKind() model.ObjectKind { return model.MapObject }

// New creates an empty map owned by client.
func New(client model.ClientID) *Map {
	return &Map{
		client: client,
		fields: make(map[model.Selector]*BlockSet),
	}
}

// NextID allocates the next MapBlockID for a local write on this map.
func (m *Map) NextID() model.MapBlockID {
	m.nextAvailableSequence++
	return model.MapBlockID{ClientID: m.client, Sequence: m.nextAvailableSequence}
}

// SetParams describes a local or replayed write.
type SetParams struct {
	Selector  model.Selector
	ID        model.MapBlockID
	Parents   []model.MapBlockID
	Value     model.Value
	Timestamp model.Timestamp
}

// DeleteParams describes a local or replayed delete.
type DeleteParams struct {
	Selector model.Selector
	Parents  []model.MapBlockID
}

// Get returns the field's current value, or false if absent (never
// written, or every latest block tombstoned).
func (m *Map) Get(selector model.Selector) (model.Value, bool) {
	field, ok := m.fields[selector]
	if !ok {
		return model.Value{}, false
	}
	block := field.GetLatest()
	if block == nil {
		return model.Value{}, false
	}
	return block.Value, true
}

// GetLatestIDs returns the ids of the current latest (childless)
// blocks at selector, used as Parents for the next write.
func (m *Map) GetLatestIDs(selector model.Selector) []model.MapBlockID {
	field, ok := m.fields[selector]
	if !ok {
		return nil
	}
	latest := field.GetLatestWithConflicts()
	ids := make([]model.MapBlockID, len(latest))
	for i, b := range latest {
		ids[i] = b.ID
	}
	return ids
}

// Set applies a write, creating the field's BlockSet on first use.
// Replaying one of this client's own past writes (after a rebuild from
// the log) advances the sequence counter past it, so NextID never
// hands out an id that is already in a block set.
func (m *Map) Set(action SetParams) {
	if action.ID.ClientID == m.client && action.ID.Sequence > m.nextAvailableSequence {
		m.nextAvailableSequence = action.ID.Sequence
	}
	field := m.fieldOrInsert(action.Selector)
	field.Insert(Block{
		ID:        action.ID,
		Parents:   action.Parents,
		Value:     action.Value,
		Timestamp: action.Timestamp,
		Deleted:   false,
	})
}

// Delete tombstones the blocks named in action.Parents at selector.
func (m *Map) Delete(action DeleteParams) {
	field := m.fieldOrInsert(action.Selector)
	field.Delete(action.Parents)
}

func (m *Map) fieldOrInsert(selector model.Selector) *BlockSet {
	field, ok := m.fields[selector]
	if !ok {
		field = NewBlockSet()
		m.fields[selector] = field
	}
	return field
}

// ToMap returns every field's current visible value.
func (m *Map) ToMap() map[model.Selector]model.Value {
	result := make(map[model.Selector]model.Value, len(m.fields))
	for selector, field := range m.fields {
		if block := field.GetLatest(); block != nil {
			result[selector] = block.Value
		}
	}
	return result
}
