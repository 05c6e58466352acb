// Package view materializes the document's live object graph by
// replaying an operation log: a map from ObjRef to whichever
// ObjectValue (map or text) that operation created, kept in sync as
// new operations arrive.
package view

import (
	"strconv"

	"go.uber.org/zap"

	"github.com/cshekharsharma/cascade/clientregistry"
	"github.com/cshekharsharma/cascade/mapcrdt"
	"github.com/cshekharsharma/cascade/model"
	"github.com/cshekharsharma/cascade/oplog"
	"github.com/cshekharsharma/cascade/text"
)

// View is the live, mutable object graph: every map and text object
// currently reachable from the root, addressed by the id of the
// operation that created it.
type View struct {
	objects map[model.ObjRef]model.ObjectValue
	log     *zap.SugaredLogger
}

// New creates a view containing only the empty root map.
func New(currentClient model.ClientID, log *zap.SugaredLogger) *View {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	v := &View{objects: make(map[model.ObjRef]model.ObjectValue), log: log}
	v.objects[model.RootRef()] = mapcrdt.New(currentClient)
	return v
}

// GetObject returns the object at ref, if any.
func (v *View) GetObject(ref model.ObjRef) (model.ObjectValue, bool) {
	obj, ok := v.objects[ref]
	return obj, ok
}

// Get reads selector from the map at object.
func (v *View) Get(object model.ObjRef, selector model.Selector) (model.Value, bool, error) {
	m, err := v.getMap(object)
	if err != nil {
		return model.Value{}, false, err
	}
	value, ok := m.Get(selector)
	return value, ok, nil
}

// GetText reads the flat string content of the text object at ref.
func (v *View) GetText(ref model.ObjRef) (string, error) {
	obj, ok := v.objects[ref]
	if !ok {
		return "", inconsistentHierarchyf("object %v not found", ref)
	}
	t, ok := obj.(*text.Text)
	if !ok {
		return "", incompatibleTypesf("expected text, found %T", obj)
	}
	return t.ToString(), nil
}

// ApplyLocalOperation replays a just-appended local operation against
// the view.
func (v *View) ApplyLocalOperation(operation *model.Operation, registry *clientregistry.Registry) error {
	return v.executeOperation(operation, registry)
}

// Repopulate rebuilds the entire view from scratch by replaying log in
// deterministic sorted order. Both the local-rebuild and merge-replay
// paths use this, so there is exactly one replay order in the system
// (see DESIGN.md: this was a divergence in the original this
// repository deliberately closes).
func (v *View) Repopulate(log *oplog.Log, registry *clientregistry.Registry) error {
	v.objects = make(map[model.ObjRef]model.ObjectValue)
	v.objects[model.RootRef()] = mapcrdt.New(registry.GetCurrentID())

	for _, operation := range log.IterSorted() {
		if err := v.executeOperation(operation, registry); err != nil {
			return err
		}
	}
	return nil
}

func (v *View) executeOperation(operation *model.Operation, registry *clientregistry.Registry) error {
	switch action := operation.Action.(type) {
	case *model.CreateMapAction:
		objRef := model.ObjRefFromID(operation.ID)
		v.objects[objRef] = mapcrdt.New(registry.GetCurrentID())

		m, err := v.getMap(action.Object)
		if err != nil {
			return err
		}
		m.Set(mapcrdt.SetParams{
			Selector:  action.Selector,
			ID:        action.ID,
			Parents:   action.Parents,
			Timestamp: operation.Timestamp,
			Value:     model.NewObject(objRef),
		})

	case *model.SetMapValueAction:
		m, err := v.getMap(action.Object)
		if err != nil {
			return err
		}
		m.Set(mapcrdt.SetParams{
			Selector:  action.Selector,
			ID:        action.ID,
			Parents:   action.Parents,
			Timestamp: operation.Timestamp,
			Value:     action.Value,
		})

	case *model.DeleteMapValueAction:
		m, err := v.getMap(action.Object)
		if err != nil {
			return err
		}
		m.Delete(mapcrdt.DeleteParams{Selector: action.Selector, Parents: action.Parents})

	case *model.CreateTextAction:
		objRef := model.ObjRefFromID(operation.ID)
		v.objects[objRef] = text.New(registry.GetCurrentID())

		m, err := v.getMap(action.Object)
		if err != nil {
			return err
		}
		m.Set(mapcrdt.SetParams{
			Selector:  action.Selector,
			ID:        action.ID,
			Parents:   action.Parents,
			Timestamp: operation.Timestamp,
			Value:     model.NewObject(objRef),
		})

	case *model.InsertTextAction:
		obj, ok := v.objects[action.Object]
		if !ok {
			err := inconsistentHierarchyf("object %v not found for insert_text", action.Object)
			v.log.Warnw("insert_text references missing object", "object", action.Object)
			return err
		}
		t, ok := obj.(*text.Text)
		if !ok {
			return incompatibleTypesf("expected text, found %T", obj)
		}
		t.Insert(text.InsertParams{ID: action.ID, Left: action.Left, Content: action.Value})

	case *model.DeleteTextAction:
		obj, ok := v.objects[action.Object]
		if !ok {
			err := inconsistentHierarchyf("object %v not found for delete_text", action.Object)
			v.log.Warnw("delete_text references missing object", "object", action.Object)
			return err
		}
		t, ok := obj.(*text.Text)
		if !ok {
			return incompatibleTypesf("expected text, found %T", obj)
		}
		t.Delete(text.DeleteParams{From: action.Left, To: action.Right})
	}

	return nil
}

// MapAt resolves ref to its backing MapCRDT, for callers (the
// transaction helper) that need to allocate block ids or inspect
// latest-write parents directly rather than through Get/Set.
func (v *View) MapAt(ref model.ObjRef) (*mapcrdt.Map, error) {
	return v.getMap(ref)
}

// TextAt resolves ref to its backing TextCRDT, for the same reason
// MapAt exists.
func (v *View) TextAt(ref model.ObjRef) (*text.Text, error) {
	obj, ok := v.objects[ref]
	if !ok {
		return nil, inconsistentHierarchyf("object %v not found", ref)
	}
	t, ok := obj.(*text.Text)
	if !ok {
		return nil, incompatibleTypesf("expected text, found %T", obj)
	}
	return t, nil
}

func (v *View) getMap(ref model.ObjRef) (*mapcrdt.Map, error) {
	obj, ok := v.objects[ref]
	if !ok {
		return nil, inconsistentHierarchyf("object %v not found", ref)
	}
	m, ok := obj.(*mapcrdt.Map)
	if !ok {
		return nil, incompatibleTypesf("expected map, found %T", obj)
	}
	return m, nil
}

// AsMap flattens the root map (and everything reachable from it) into
// plain Go values: nested objects become map[string]any, text objects
// become string, scalars become their native Go type.
func (v *View) AsMap() map[string]any {
	value := v.asMapRecursive(model.RootRef())
	result, _ := value.(map[string]any)
	return result
}

func (v *View) asMapRecursive(ref model.ObjRef) any {
	obj, ok := v.objects[ref]
	if !ok {
		return nil
	}
	switch o := obj.(type) {
	case *mapcrdt.Map:
		result := make(map[string]any)
		for selector, value := range o.ToMap() {
			result[selectorKey(selector)] = v.valueToAny(value)
		}
		return result
	case *text.Text:
		return o.ToString()
	default:
		return nil
	}
}

func (v *View) valueToAny(value model.Value) any {
	if value.Kind == model.ValueObjectKind {
		return v.asMapRecursive(value.Object)
	}
	switch value.Scalar.Kind {
	case model.ScalarString:
		return value.Scalar.Str
	case model.ScalarInt:
		return value.Scalar.Int
	case model.ScalarDouble:
		return value.Scalar.Double
	case model.ScalarBool:
		return value.Scalar.Bool
	default:
		return nil
	}
}

func selectorKey(selector model.Selector) string {
	if selector.Kind == model.SelectorIndexKind {
		return strconv.Itoa(selector.Index)
	}
	return selector.Key
}
