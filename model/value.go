package model

// ScalarKind distinguishes the four scalar value types.
type ScalarKind uint8

const (
	ScalarString ScalarKind = iota
	ScalarInt
	ScalarDouble
	ScalarBool
)

// ScalarValue is a leaf value storable directly in a map field.
type ScalarValue struct {
	Kind   ScalarKind
	Str    string
	Int    int32
	Double float64
	Bool   bool
}

func StringValue(s string) ScalarValue  { return ScalarValue{Kind: ScalarString, Str: s} }
func IntValue(i int32) ScalarValue      { return ScalarValue{Kind: ScalarInt, Int: i} }
func DoubleValue(f float64) ScalarValue { return ScalarValue{Kind: ScalarDouble, Double: f} }
func BoolValue(b bool) ScalarValue      { return ScalarValue{Kind: ScalarBool, Bool: b} }

// ValueKind distinguishes a scalar from an object reference.
type ValueKind uint8

const (
	ValueScalarKind ValueKind = iota
	ValueObjectKind
)

// Value is either a Scalar or an ObjRef pointing at another object
// materialized elsewhere in the document.
type Value struct {
	Kind   ValueKind
	Scalar ScalarValue
	Object ObjRef
}

func NewScalar(s ScalarValue) Value { return Value{Kind: ValueScalarKind, Scalar: s} }
func NewObject(ref ObjRef) Value    { return Value{Kind: ValueObjectKind, Object: ref} }

// RemapClientIDs rewrites the object reference's client component, if
// this value holds one.
func (v *Value) RemapClientIDs(mappings Remappings) {
	if v.Kind == ValueObjectKind {
		v.Object.RemapClientIDs(mappings)
	}
}

// ObjectKind distinguishes the two object CRDTs a document can hold.
type ObjectKind uint8

const (
	MapObject ObjectKind = iota
	TextObject
)

// ObjectValue is implemented by the map and text CRDTs so that View
// can hold either behind one interface without importing either
// package from model (which sits below both).
type ObjectValue interface {
	ObjectKind() ObjectKind
}
