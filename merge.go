package cascade

import (
	"github.com/cshekharsharma/cascade/clientregistry"
	"github.com/cshekharsharma/cascade/model"
)

// Merge pulls every operation other has observed into d, following
// the four-step merge coordinator algorithm: register the peer's
// clients (repopulating the view if that remaps any local id), compute
// the reverse remapping by registering d's clients into a copy of the
// peer's registry, replay the peer's operations in deterministic
// sorted order translated through that reverse remapping, then
// repopulate the view from the merged log.
//
// The peer is snapshotted under its own lock first and d is mutated
// under its own lock afterwards; holding one lock at a time means two
// documents merging into each other from separate goroutines cannot
// deadlock. The snapshot stays consistent because a document is
// single-writer: nothing else mutates the peer between the two
// sections.
func (d *Doc) Merge(other *Doc) error {
	if d == other {
		return nil
	}

	other.mu.Lock()
	err := other.initializeLocked()
	var peerClients []clientregistry.GlobalClient
	var peerOperations []model.Operation
	var peerRegistry *clientregistry.Registry
	if err == nil {
		peerClients = append([]clientregistry.GlobalClient(nil), other.registry.GetClients()...)
		peerOperations = other.sortedOperations()
		peerRegistry = other.registry.Clone()
	}
	peerGlobalID := other.globalID
	other.mu.Unlock()
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.initializeLocked(); err != nil {
		return err
	}

	d.log.Infow("merge starting", "peer_global_id", peerGlobalID, "peer_operations", len(peerOperations))

	if remappings := d.registry.Register(peerClients); remappings != nil {
		d.oplog.RemapClientIDs(remappings)
		if err := d.view.Repopulate(d.oplog, d.registry); err != nil {
			return err
		}
	}

	reverseRemappings := peerRegistry.Register(d.registry.GetClients())

	applied := 0
	for _, op := range peerOperations {
		clone := op.Clone()
		if reverseRemappings != nil {
			clone.RemapClientIDs(reverseRemappings)
		}
		if _, err := d.oplog.ApplyOperation(clone); err != nil {
			return err
		}
		applied++
	}
	d.observeTimestamps(peerOperations)

	if err := d.view.Repopulate(d.oplog, d.registry); err != nil {
		return err
	}

	d.log.Infow("merge complete", "peer_global_id", peerGlobalID, "operations_applied", applied)
	return nil
}

// sortedOperations returns d's operations in deterministic sorted
// order. Callers must hold d.mu.
func (d *Doc) sortedOperations() []model.Operation {
	sorted := d.oplog.IterSorted()
	operations := make([]model.Operation, len(sorted))
	for i, op := range sorted {
		operations[i] = *op
	}
	return operations
}
