package view

import (
	"fmt"
	"math"
	"sort"

	"github.com/cshekharsharma/cascade/internal/wireutil"
	"github.com/cshekharsharma/cascade/model"
)

func doubleBits(f float64) uint64     { return math.Float64bits(f) }
func doubleFromBits(b uint64) float64 { return math.Float64frombits(b) }

// Reserved wire tags, shared with the rest of the columnar serde (see
// the wire package): ObjRef 0=Root, 1=Object; Selector 0=Key,
// 1=Index; Value 1=String, 2=Int, 3=Double, 4=Bool, 5=Object.
const (
	objRefRootTag   = 0
	objRefObjectTag = 1

	selectorKeyTag   = 0
	selectorIndexTag = 1

	valueStringTag = 1
	valueIntTag    = 2
	valueDoubleTag = 3
	valueBoolTag   = 4
	valueObjectTag = 5

	cacheObjectMapTag  = 0
	cacheObjectTextTag = 1
)

// SerializationError reports a malformed view cache buffer.
type SerializationError struct {
	Detail string
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("view cache: %s", e.Detail)
}

// Serialize encodes the cache as a varint object count followed by
// each object's ObjRef, a kind tag, and its payload. Objects and each
// map's fields are written in a deterministic order so that two
// caches with equal contents always produce byte-identical output.
func (c *Cache) Serialize() []byte {
	refs := make([]model.ObjRef, 0, len(c.objects))
	for ref := range c.objects {
		refs = append(refs, ref)
	}
	sortObjRefs(refs)

	buf := wireutil.AppendUvarint(nil, uint64(len(refs)))
	for _, ref := range refs {
		buf = appendObjRef(buf, ref)
		switch obj := c.objects[ref].(type) {
		case CacheMap:
			buf = append(buf, cacheObjectMapTag)
			buf = appendCacheMap(buf, obj)
		case CacheText:
			buf = append(buf, cacheObjectTextTag)
			buf = wireutil.AppendString(buf, string(obj))
		}
	}
	return buf
}

// FromBuffer decodes a cache previously written by Serialize,
// returning the remaining bytes after it.
func FromBuffer(buf []byte) (*Cache, []byte, error) {
	count, offset, err := wireutil.ReadUvarint(buf)
	if err != nil {
		return nil, nil, &SerializationError{Detail: "truncated object count: " + err.Error()}
	}

	c := &Cache{objects: make(map[model.ObjRef]CacheObject, count)}
	for i := uint64(0); i < count; i++ {
		ref, n, err := readObjRef(buf[offset:])
		if err != nil {
			return nil, nil, err
		}
		offset += n

		if offset >= len(buf) {
			return nil, nil, &SerializationError{Detail: "truncated object kind tag"}
		}
		kind := buf[offset]
		offset++

		switch kind {
		case cacheObjectMapTag:
			m, n, err := readCacheMap(buf[offset:])
			if err != nil {
				return nil, nil, err
			}
			offset += n
			c.objects[ref] = m

		case cacheObjectTextTag:
			s, n, err := wireutil.ReadString(buf[offset:])
			if err != nil {
				return nil, nil, &SerializationError{Detail: "truncated text payload: " + err.Error()}
			}
			offset += n
			c.objects[ref] = CacheText(s)

		default:
			return nil, nil, &SerializationError{Detail: fmt.Sprintf("unknown object kind tag %d", kind)}
		}
	}

	return c, buf[offset:], nil
}

func appendCacheMap(buf []byte, m CacheMap) []byte {
	selectors := make([]model.Selector, 0, len(m))
	for s := range m {
		selectors = append(selectors, s)
	}
	sortSelectors(selectors)

	buf = wireutil.AppendUvarint(buf, uint64(len(selectors)))
	for _, selector := range selectors {
		buf = appendSelector(buf, selector)
		buf = appendValue(buf, m[selector])
	}
	return buf
}

func readCacheMap(buf []byte) (CacheMap, int, error) {
	count, offset, err := wireutil.ReadUvarint(buf)
	if err != nil {
		return nil, 0, &SerializationError{Detail: "truncated field count: " + err.Error()}
	}

	m := make(CacheMap, count)
	for i := uint64(0); i < count; i++ {
		selector, n, err := readSelector(buf[offset:])
		if err != nil {
			return nil, 0, err
		}
		offset += n

		value, n, err := readValue(buf[offset:])
		if err != nil {
			return nil, 0, err
		}
		offset += n

		m[selector] = value
	}
	return m, offset, nil
}

func appendObjRef(buf []byte, ref model.ObjRef) []byte {
	if ref.Root {
		return append(buf, objRefRootTag)
	}
	buf = append(buf, objRefObjectTag)
	buf = wireutil.AppendUvarint(buf, uint64(ref.ID.ClientID))
	buf = wireutil.AppendUvarint(buf, uint64(ref.ID.Sequence))
	return buf
}

func readObjRef(buf []byte) (model.ObjRef, int, error) {
	if len(buf) == 0 {
		return model.ObjRef{}, 0, &SerializationError{Detail: "truncated obj ref tag"}
	}
	switch buf[0] {
	case objRefRootTag:
		return model.RootRef(), 1, nil
	case objRefObjectTag:
		clientID, n1, err := wireutil.ReadUvarint(buf[1:])
		if err != nil {
			return model.ObjRef{}, 0, &SerializationError{Detail: "truncated obj ref client id: " + err.Error()}
		}
		sequence, n2, err := wireutil.ReadUvarint(buf[1+n1:])
		if err != nil {
			return model.ObjRef{}, 0, &SerializationError{Detail: "truncated obj ref sequence: " + err.Error()}
		}
		id := model.OperationID{ClientID: model.ClientID(clientID), Sequence: model.SequenceIndex(sequence)}
		return model.ObjRefFromID(id), 1 + n1 + n2, nil
	default:
		return model.ObjRef{}, 0, &SerializationError{Detail: fmt.Sprintf("unknown obj ref tag %d", buf[0])}
	}
}

func appendSelector(buf []byte, s model.Selector) []byte {
	if s.Kind == model.SelectorIndexKind {
		buf = append(buf, selectorIndexTag)
		return wireutil.AppendUvarint(buf, uint64(s.Index))
	}
	buf = append(buf, selectorKeyTag)
	return wireutil.AppendString(buf, s.Key)
}

func readSelector(buf []byte) (model.Selector, int, error) {
	if len(buf) == 0 {
		return model.Selector{}, 0, &SerializationError{Detail: "truncated selector tag"}
	}
	switch buf[0] {
	case selectorKeyTag:
		key, n, err := wireutil.ReadString(buf[1:])
		if err != nil {
			return model.Selector{}, 0, &SerializationError{Detail: "truncated selector key: " + err.Error()}
		}
		return model.Key(key), 1 + n, nil
	case selectorIndexTag:
		index, n, err := wireutil.ReadUvarint(buf[1:])
		if err != nil {
			return model.Selector{}, 0, &SerializationError{Detail: "truncated selector index: " + err.Error()}
		}
		return model.Index(int(index)), 1 + n, nil
	default:
		return model.Selector{}, 0, &SerializationError{Detail: fmt.Sprintf("unknown selector tag %d", buf[0])}
	}
}

func appendValue(buf []byte, v model.Value) []byte {
	if v.Kind == model.ValueObjectKind {
		buf = append(buf, valueObjectTag)
		return appendObjRef(buf, v.Object)
	}
	switch v.Scalar.Kind {
	case model.ScalarString:
		buf = append(buf, valueStringTag)
		return wireutil.AppendString(buf, v.Scalar.Str)
	case model.ScalarInt:
		buf = append(buf, valueIntTag)
		return wireutil.AppendVarint(buf, int64(v.Scalar.Int))
	case model.ScalarDouble:
		buf = append(buf, valueDoubleTag)
		bits := doubleBits(v.Scalar.Double)
		return wireutil.AppendUvarint(buf, bits)
	case model.ScalarBool:
		buf = append(buf, valueBoolTag)
		if v.Scalar.Bool {
			return append(buf, 1)
		}
		return append(buf, 0)
	default:
		return buf
	}
}

func readValue(buf []byte) (model.Value, int, error) {
	if len(buf) == 0 {
		return model.Value{}, 0, &SerializationError{Detail: "truncated value tag"}
	}
	switch buf[0] {
	case valueObjectTag:
		ref, n, err := readObjRef(buf[1:])
		if err != nil {
			return model.Value{}, 0, err
		}
		return model.NewObject(ref), 1 + n, nil
	case valueStringTag:
		s, n, err := wireutil.ReadString(buf[1:])
		if err != nil {
			return model.Value{}, 0, &SerializationError{Detail: "truncated string value: " + err.Error()}
		}
		return model.NewScalar(model.StringValue(s)), 1 + n, nil
	case valueIntTag:
		i, n, err := wireutil.ReadVarint(buf[1:])
		if err != nil {
			return model.Value{}, 0, &SerializationError{Detail: "truncated int value: " + err.Error()}
		}
		return model.NewScalar(model.IntValue(int32(i))), 1 + n, nil
	case valueDoubleTag:
		bits, n, err := wireutil.ReadUvarint(buf[1:])
		if err != nil {
			return model.Value{}, 0, &SerializationError{Detail: "truncated double value: " + err.Error()}
		}
		return model.NewScalar(model.DoubleValue(doubleFromBits(bits))), 1 + n, nil
	case valueBoolTag:
		if len(buf) < 2 {
			return model.Value{}, 0, &SerializationError{Detail: "truncated bool value"}
		}
		return model.NewScalar(model.BoolValue(buf[1] != 0)), 2, nil
	default:
		return model.Value{}, 0, &SerializationError{Detail: fmt.Sprintf("unknown value tag %d", buf[0])}
	}
}

func sortObjRefs(refs []model.ObjRef) {
	sort.Slice(refs, func(i, j int) bool {
		a, b := refs[i], refs[j]
		if a.Root != b.Root {
			return a.Root
		}
		if a.ID.ClientID != b.ID.ClientID {
			return a.ID.ClientID < b.ID.ClientID
		}
		return a.ID.Sequence < b.ID.Sequence
	})
}

func sortSelectors(selectors []model.Selector) {
	sort.Slice(selectors, func(i, j int) bool {
		a, b := selectors[i], selectors[j]
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		if a.Kind == model.SelectorIndexKind {
			return a.Index < b.Index
		}
		return a.Key < b.Key
	})
}
