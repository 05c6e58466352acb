// Package text implements the text CRDT: a thin wrapper around
// internal/sequencetree specialized to contiguous runs of UTF-8 bytes,
// responsible only for allocating the per-client id ranges a local
// edit needs before handing them to the tree.
package text

import (
	"github.com/cshekharsharma/cascade/internal/sequencetree"
	"github.com/cshekharsharma/cascade/model"
)

const (
	defaultBranchSize = 32
	defaultLeafSize   = 32
)

// Text is the text CRDT: a sequence of characters addressable by
// position, edited through Insert/Delete and observed through
// ToString.
type Text struct {
	client                model.ClientID
	nextAvailableSequence model.SequenceIndex
	tree                  *sequencetree.Tree[sequencetree.StringItems]
}

// ObjectKind marks Text as one of the two object CRDTs a view can
// hold.
func (*Text) ObjectKind() model.ObjectKind { return model.TextObject }

// New creates an empty text object owned by client.
func New(client model.ClientID) *Text {
	return &Text{
		client: client,
		tree:   sequencetree.New[sequencetree.StringItems](defaultBranchSize, defaultLeafSize),
	}
}

// NextID allocates the next contiguous SequenceBlockID range this
// client needs to insert length characters locally, advancing the
// client's sequence counter past it.
func (t *Text) NextID(length int) model.SequenceBlockID {
	id := model.SequenceBlockID{ClientID: t.client, Sequence: t.nextAvailableSequence + 1}
	t.nextAvailableSequence += model.SequenceIndex(length)
	return id
}

// InsertParams describes a local or replayed text insertion.
type InsertParams struct {
	ID      model.SequenceBlockID
	Left    *model.SequenceBlockID
	Content string
}

// DeleteParams describes a local or replayed text deletion.
type DeleteParams struct {
	From model.SequenceBlockID
	To   model.SequenceBlockID
}

// Insert places a run of characters into the tree, merging into its
// origin block when the insertion is a contiguous continuation of the
// same client's prior run. Replaying one of this client's own past
// inserts (after a rebuild from the log) advances the sequence counter
// past its id range, so NextID never hands out ids already in the
// tree.
func (t *Text) Insert(action InsertParams) {
	if action.ID.ClientID == t.client {
		end := action.ID.Sequence + model.SequenceIndex(len(action.Content)) - 1
		if end > t.nextAvailableSequence {
			t.nextAvailableSequence = end
		}
	}
	t.tree.Insert(sequencetree.Block[sequencetree.StringItems]{
		ID:    action.ID,
		Items: sequencetree.StringItems(action.Content),
		Left:  action.Left,
	})
}

// Delete tombstones every character from From through To inclusive.
func (t *Text) Delete(action DeleteParams) {
	t.tree.Delete(action.From, action.To)
}

// IDAtPosition resolves the id of the visible character at document
// offset position, for building the Left pointer of a local insertion
// at an arbitrary cursor position.
func (t *Text) IDAtPosition(position int) model.SequenceBlockID {
	return t.tree.FindIDStartingAtPosition(position)
}

// IDEndingAtPosition resolves the id a deletion or insertion "ending
// at" position should anchor on.
func (t *Text) IDEndingAtPosition(position int) model.SequenceBlockID {
	return t.tree.FindIDEndingAtPosition(position)
}

// LastID returns the id of the last character currently in the tree
// (visible or tombstoned), the default origin for an append at the
// very end of the document.
func (t *Text) LastID() (model.SequenceBlockID, bool) {
	return t.tree.LastBlock()
}

// Len returns the number of currently visible characters.
func (t *Text) Len() int {
	return t.tree.Len()
}

// ToString concatenates every visible run in document order.
func (t *Text) ToString() string {
	var b []byte
	for _, run := range t.tree.Iterate() {
		b = append(b, run...)
	}
	return string(b)
}
