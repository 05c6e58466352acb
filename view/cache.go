package view

import (
	"github.com/cshekharsharma/cascade/mapcrdt"
	"github.com/cshekharsharma/cascade/model"
	"github.com/cshekharsharma/cascade/text"
)

// CacheObject is the read-only surface shape of one materialized
// object: either a CacheMap's field table or a CacheText's flat
// string. It mirrors the live View's MapCRDT/TextCRDT pair without
// carrying any of their CRDT bookkeeping (block DAGs, tombstones,
// client-sequence counters) — a Cache only remembers what is visible.
type CacheObject interface {
	isCacheObject()
}

// CacheMap is a read-only snapshot of one map object's visible
// fields.
type CacheMap map[model.Selector]model.Value

func (CacheMap) isCacheObject() {}

// CacheText is a read-only snapshot of one text object's visible
// content.
type CacheText string

func (CacheText) isCacheObject() {}

// Cache is a pure projection of a View's surface shape: used both as
// the on-disk snapshot written alongside the operation log, and as
// the backing store for a lazy document that has not yet replayed its
// log into a full View.
type Cache struct {
	objects map[model.ObjRef]CacheObject
}

// NewCache creates an empty cache containing only the root map.
func NewCache() *Cache {
	return &Cache{objects: map[model.ObjRef]CacheObject{
		model.RootRef(): CacheMap{},
	}}
}

// Snapshot builds a Cache mirroring v's current visible state. The
// result shares no memory with v: every field table and text string is
// copied.
func Snapshot(v *View) *Cache {
	c := &Cache{objects: make(map[model.ObjRef]CacheObject, len(v.objects))}
	for ref, obj := range v.objects {
		switch o := obj.(type) {
		case *mapcrdt.Map:
			c.objects[ref] = snapshotMap(o)
		case *text.Text:
			c.objects[ref] = CacheText(o.ToString())
		}
	}
	return c
}

func snapshotMap(m *mapcrdt.Map) CacheMap {
	fields := m.ToMap()
	result := make(CacheMap, len(fields))
	for selector, value := range fields {
		result[selector] = value
	}
	return result
}

// GetObject returns the object at ref, if any.
func (c *Cache) GetObject(ref model.ObjRef) (CacheObject, bool) {
	obj, ok := c.objects[ref]
	return obj, ok
}

// Get reads selector from the map at object.
func (c *Cache) Get(object model.ObjRef, selector model.Selector) (model.Value, bool, error) {
	obj, ok := c.objects[object]
	if !ok {
		return model.Value{}, false, inconsistentHierarchyf("object %v not found", object)
	}
	m, ok := obj.(CacheMap)
	if !ok {
		return model.Value{}, false, incompatibleTypesf("expected map, found %T", obj)
	}
	value, ok := m[selector]
	return value, ok, nil
}

// GetText reads the flat string backing the text object at ref.
func (c *Cache) GetText(ref model.ObjRef) (string, error) {
	obj, ok := c.objects[ref]
	if !ok {
		return "", inconsistentHierarchyf("object %v not found", ref)
	}
	t, ok := obj.(CacheText)
	if !ok {
		return "", incompatibleTypesf("expected text, found %T", obj)
	}
	return string(t), nil
}

// AsMap flattens the root object (and everything reachable from it)
// into plain Go values, matching View.AsMap's shape exactly so a lazy
// document's reads are indistinguishable from a materialized one's.
func (c *Cache) AsMap() map[string]any {
	value := c.asMapRecursive(model.RootRef())
	result, _ := value.(map[string]any)
	return result
}

func (c *Cache) asMapRecursive(ref model.ObjRef) any {
	obj, ok := c.objects[ref]
	if !ok {
		return nil
	}
	switch o := obj.(type) {
	case CacheMap:
		result := make(map[string]any, len(o))
		for selector, value := range o {
			result[selectorKey(selector)] = c.valueToAny(value)
		}
		return result
	case CacheText:
		return string(o)
	default:
		return nil
	}
}

func (c *Cache) valueToAny(value model.Value) any {
	if value.Kind == model.ValueObjectKind {
		return c.asMapRecursive(value.Object)
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
