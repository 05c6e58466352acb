package cascade

import (
	"github.com/cshekharsharma/cascade/model"
)

// Transaction mutates a Doc's view incrementally as each call is
// made, not atomically on commit: Commit is currently a no-op that
// always returns nil. A transaction that fails partway cannot be
// rolled back by the caller.
type Transaction struct {
	doc *Doc
}

// Transaction starts a new transaction against the document, forcing
// materialization first if the handle is currently lazy.
func (d *Doc) Transaction() (*Transaction, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.initializeLocked(); err != nil {
		return nil, &DocumentNotReadyError{Detail: err.Error()}
	}
	return &Transaction{doc: d}, nil
}

// Commit is a no-op: every Transaction method has already applied its
// mutation to the view by the time it returns.
func (t *Transaction) Commit() error { return nil }

func asTransactionError(err error) error {
	if err == nil {
		return nil
	}
	return &TransactionError{Kind: TransactionIncompatibleTypes, Message: err.Error()}
}

// SetScalar writes a scalar value at selector under object.
func (t *Transaction) SetScalar(object model.ObjRef, selector model.Selector, value model.ScalarValue) error {
	t.doc.mu.Lock()
	defer t.doc.mu.Unlock()

	m, err := t.doc.view.MapAt(object)
	if err != nil {
		return asTransactionError(err)
	}

	action := &model.SetMapValueAction{
		Object:   object,
		Selector: selector,
		ID:       m.NextID(),
		Parents:  m.GetLatestIDs(selector),
		Value:    model.NewScalar(value),
	}
	return t.doc.applyLocked(action)
}

// Delete tombstones whatever is currently visible at selector under
// object.
func (t *Transaction) Delete(object model.ObjRef, selector model.Selector) error {
	t.doc.mu.Lock()
	defer t.doc.mu.Unlock()

	m, err := t.doc.view.MapAt(object)
	if err != nil {
		return asTransactionError(err)
	}

	action := &model.DeleteMapValueAction{
		Object:   object,
		Selector: selector,
		Parents:  m.GetLatestIDs(selector),
	}
	return t.doc.applyLocked(action)
}

// CreateMap allocates a new nested map under selector and returns a
// reference to it.
func (t *Transaction) CreateMap(object model.ObjRef, selector model.Selector) (model.ObjRef, error) {
	t.doc.mu.Lock()
	defer t.doc.mu.Unlock()

	m, err := t.doc.view.MapAt(object)
	if err != nil {
		return model.ObjRef{}, asTransactionError(err)
	}

	action := &model.CreateMapAction{
		Object:   object,
		Selector: selector,
		ID:       m.NextID(),
		Parents:  m.GetLatestIDs(selector),
	}
	return t.doc.applyAndRefLocked(action)
}

// CreateText allocates a new text object under selector and returns a
// reference to it.
func (t *Transaction) CreateText(object model.ObjRef, selector model.Selector) (model.ObjRef, error) {
	t.doc.mu.Lock()
	defer t.doc.mu.Unlock()

	m, err := t.doc.view.MapAt(object)
	if err != nil {
		return model.ObjRef{}, asTransactionError(err)
	}

	action := &model.CreateTextAction{
		Object:   object,
		Selector: selector,
		ID:       m.NextID(),
		Parents:  m.GetLatestIDs(selector),
	}
	return t.doc.applyAndRefLocked(action)
}

// GetOrCreateText returns the existing text object at selector under
// object if one is already there, creating one otherwise.
func (t *Transaction) GetOrCreateText(object model.ObjRef, selector model.Selector) (model.ObjRef, error) {
	t.doc.mu.Lock()
	m, err := t.doc.view.MapAt(object)
	if err != nil {
		t.doc.mu.Unlock()
		return model.ObjRef{}, asTransactionError(err)
	}
	if value, ok := m.Get(selector); ok && value.Kind == model.ValueObjectKind {
		if _, terr := t.doc.view.TextAt(value.Object); terr == nil {
			t.doc.mu.Unlock()
			return value.Object, nil
		}
	}
	t.doc.mu.Unlock()
	return t.CreateText(object, selector)
}

// AppendText inserts content at the end of the text object at ref.
func (t *Transaction) AppendText(ref model.ObjRef, content string) error {
	t.doc.mu.Lock()
	defer t.doc.mu.Unlock()

	txt, err := t.doc.view.TextAt(ref)
	if err != nil {
		return asTransactionError(err)
	}
	if len(content) > maxSequenceRun {
		return textTooLongf("insert of %d characters exceeds the %d-character limit", len(content), maxSequenceRun)
	}

	var left *model.SequenceBlockID
	if last, ok := txt.LastID(); ok {
		left = &last
	}

	id := txt.NextID(len(content))
	action := &model.InsertTextAction{Object: ref, ID: id, Value: content, Left: left}
	return t.doc.applyLocked(action)
}

// InsertText inserts content at document offset position into the
// text object at ref. position 0 inserts at the head.
func (t *Transaction) InsertText(ref model.ObjRef, position int, content string) error {
	t.doc.mu.Lock()
	defer t.doc.mu.Unlock()

	txt, err := t.doc.view.TextAt(ref)
	if err != nil {
		return asTransactionError(err)
	}
	if position < 0 || position > txt.Len() {
		return invalidIndexf("insert position %d out of range [0, %d]", position, txt.Len())
	}
	if len(content) > maxSequenceRun {
		return textTooLongf("insert of %d characters exceeds the %d-character limit", len(content), maxSequenceRun)
	}

	var left *model.SequenceBlockID
	if position > 0 {
		id := txt.IDEndingAtPosition(position)
		left = &id
	}

	id := txt.NextID(len(content))
	action := &model.InsertTextAction{Object: ref, ID: id, Value: content, Left: left}
	return t.doc.applyLocked(action)
}

// DeleteText tombstones the length characters starting at document
// offset position in the text object at ref.
func (t *Transaction) DeleteText(ref model.ObjRef, position, length int) error {
	t.doc.mu.Lock()
	defer t.doc.mu.Unlock()

	txt, err := t.doc.view.TextAt(ref)
	if err != nil {
		return asTransactionError(err)
	}
	if length <= 0 {
		return nil
	}
	if position < 0 || position+length > txt.Len() {
		return invalidIndexf("delete range [%d, %d) out of bounds for text of length %d", position, position+length, txt.Len())
	}

	from := txt.IDAtPosition(position)
	to := txt.IDAtPosition(position + length - 1)
	action := &model.DeleteTextAction{Object: ref, Left: from, Right: to}
	return t.doc.applyLocked(action)
}

// GetText reads the flat string content of the text object at ref.
func (t *Transaction) GetText(ref model.ObjRef) (string, error) {
	t.doc.mu.RLock()
	defer t.doc.mu.RUnlock()
	return t.doc.view.GetText(ref)
}

// applyLocked turns action into a local operation, appends it to the
// log, and replays it against the live view. Callers must hold
// d.mu already.
func (d *Doc) applyLocked(action model.Action) error {
	op, err := d.oplog.ApplyLocalAction(action, d.nextTimestamp())
	if err != nil {
		return err
	}
	return d.view.ApplyLocalOperation(op, d.registry)
}

// applyAndRefLocked is applyLocked for the two actions (CreateMap,
// CreateText) that allocate a new object and return a reference to
// it.
func (d *Doc) applyAndRefLocked(action model.Action) (model.ObjRef, error) {
	op, err := d.oplog.ApplyLocalAction(action, d.nextTimestamp())
	if err != nil {
		return model.ObjRef{}, err
	}
	if err := d.view.ApplyLocalOperation(op, d.registry); err != nil {
		return model.ObjRef{}, err
	}
	return model.ObjRefFromID(op.ID), nil
}
