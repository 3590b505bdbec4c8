// Package heap implements the Lox runtime's value representation, its
// heap object model, the open-addressed hash table, and the tracing
// mark-sweep garbage collector that owns them.
package heap

// ValueType tags the four kinds of runtime value.
type ValueType int

const (
	ValNil ValueType = iota
	ValBool
	ValNumber
	ValObj
)

// Value is a dynamically-typed cell: a tagged record rather than a
// NaN-boxed word. Both encodings are equally valid per the spec; the
// tagged struct is the idiomatic Go rendition (NaN-boxing a float64
// inside an interface{} or uintptr buys nothing in a garbage-collected
// host language and only obscures the mark phase).
type Value struct {
	Type   ValueType
	Bool   bool
	Number float64
	Obj    *Obj
}

func Nil() Value                 { return Value{Type: ValNil} }
func BoolVal(b bool) Value       { return Value{Type: ValBool, Bool: b} }
func NumberVal(n float64) Value  { return Value{Type: ValNumber, Number: n} }
func ObjVal(o *Obj) Value        { return Value{Type: ValObj, Obj: o} }
func StringVal(s *ObjString) Value {
	if s == nil {
		return Nil()
	}
	return Value{Type: ValObj, Obj: &s.Obj}
}

func (v Value) IsNil() bool    { return v.Type == ValNil }
func (v Value) IsBool() bool   { return v.Type == ValBool }
func (v Value) IsNumber() bool { return v.Type == ValNumber }
func (v Value) IsObj() bool    { return v.Type == ValObj }

func (v Value) IsObjType(t ObjType) bool {
	return v.Type == ValObj && v.Obj != nil && v.Obj.Type == t
}

func (v Value) AsString() (*ObjString, bool) {
	if !v.IsObjType(ObjTypeString) {
		return nil, false
	}
	return v.Obj.self.(*ObjString), true
}

func (v Value) AsFunction() (*ObjFunction, bool) {
	if !v.IsObjType(ObjTypeFunction) {
		return nil, false
	}
	return v.Obj.self.(*ObjFunction), true
}

func (v Value) AsClosure() (*ObjClosure, bool) {
	if !v.IsObjType(ObjTypeClosure) {
		return nil, false
	}
	return v.Obj.self.(*ObjClosure), true
}

func (v Value) AsNative() (*ObjNative, bool) {
	if !v.IsObjType(ObjTypeNative) {
		return nil, false
	}
	return v.Obj.self.(*ObjNative), true
}

func (v Value) AsClass() (*ObjClass, bool) {
	if !v.IsObjType(ObjTypeClass) {
		return nil, false
	}
	return v.Obj.self.(*ObjClass), true
}

func (v Value) AsInstance() (*ObjInstance, bool) {
	if !v.IsObjType(ObjTypeInstance) {
		return nil, false
	}
	return v.Obj.self.(*ObjInstance), true
}

func (v Value) AsBoundMethod() (*ObjBoundMethod, bool) {
	if !v.IsObjType(ObjTypeBoundMethod) {
		return nil, false
	}
	return v.Obj.self.(*ObjBoundMethod), true
}

// Truthy implements Lox falsiness: nil and false are falsey, everything
// else (including 0 and "") is truthy.
func Truthy(v Value) bool {
	switch v.Type {
	case ValNil:
		return false
	case ValBool:
		return v.Bool
	default:
		return true
	}
}

// Equal implements Lox value equality. Object identity is used for all
// object kinds except strings, whose interning makes identity equal to
// content equality automatically (interned strings with equal content
// are the same object).
func Equal(a, b Value) bool {
	if a.Type != b.Type {
		return false
	}
	switch a.Type {
	case ValNil:
		return true
	case ValBool:
		return a.Bool == b.Bool
	case ValNumber:
		return a.Number == b.Number
	case ValObj:
		return a.Obj == b.Obj
	default:
		return false
	}
}

// TypeName returns a lowercase name for runtime error messages.
func TypeName(v Value) string {
	switch v.Type {
	case ValNil:
		return "nil"
	case ValBool:
		return "boolean"
	case ValNumber:
		return "number"
	case ValObj:
		if v.Obj == nil {
			return "object"
		}
		return v.Obj.Type.String()
	default:
		return "unknown"
	}
}
