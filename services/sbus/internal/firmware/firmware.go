// Package firmware is the narrow call contract into the platform-namespace
// execution engine: evaluate a named control method on a node with integer or
// buffer arguments and get back a typed object.
package firmware

import (
	"errors"
	"strconv"
)

// Handle identifies a namespace node. Zero is never a valid node.
type Handle uint32

func (h Handle) String() string { return "node#" + strconv.FormatUint(uint64(h), 10) }

// ---- Objects ----

// Type tags an Object. Values follow the ACPI object type numbering.
type Type uint8

const (
	TypeAny     Type = 0
	TypeInteger Type = 1
	TypeString  Type = 2
	TypeBuffer  Type = 3
	TypePackage Type = 4
)

func (t Type) String() string {
	switch t {
	case TypeInteger:
		return "integer"
	case TypeString:
		return "string"
	case TypeBuffer:
		return "buffer"
	case TypePackage:
		return "package"
	default:
		return "any"
	}
}

// Object is a tagged firmware value used both as argument and as result.
type Object struct {
	Type    Type
	Integer uint64
	String  string
	Buffer  []byte
}

func Integer(v uint64) Object { return Object{Type: TypeInteger, Integer: v} }
func Buffer(b []byte) Object  { return Object{Type: TypeBuffer, Buffer: b} }
func String(s string) Object  { return Object{Type: TypeString, String: s} }

// Len is the encoded byte length of the object's value.
func (o Object) Len() int {
	switch o.Type {
	case TypeInteger:
		return 8
	case TypeString:
		return len(o.String)
	case TypeBuffer:
		return len(o.Buffer)
	default:
		return 0
	}
}

// ---- Evaluation ----

// Evaluator runs control methods below a node.
//
// Implementations own any buffer they return until the call that received it
// returns; callers copy what they keep.
type Evaluator interface {
	// EvaluateInteger runs method and requires an integer result.
	EvaluateInteger(node Handle, method string, args []Object) (uint64, error)
	// EvaluateObject runs method and returns whatever object it produced.
	EvaluateObject(node Handle, method string, args []Object) (Object, error)
}

// Evaluation failures. Callers of this package do not distinguish them.
var (
	ErrNoNode       = errors.New("AE_NOT_FOUND: no such node")
	ErrNoMethod     = errors.New("AE_NOT_FOUND: no such method")
	ErrBadArgs      = errors.New("AE_AML_UNINITIALIZED_ARG")
	ErrNotInteger   = errors.New("AE_TYPE: result is not an integer")
	ErrNoReturn     = errors.New("AE_AML_NO_RETURN_VALUE")
	ErrExecutionErr = errors.New("AE_ERROR")
)

// Call is one recorded evaluation.
type Call struct {
	Node   Handle
	Method string
	Args   []Object
	Object bool // true for EvaluateObject
}

// Recorder wraps an Evaluator and keeps every call it forwards.
type Recorder struct {
	Next  Evaluator
	Calls []Call
}

func (r *Recorder) record(node Handle, method string, args []Object, obj bool) {
	cp := make([]Object, len(args))
	for i, a := range args {
		cp[i] = a
		if a.Buffer != nil {
			cp[i].Buffer = append([]byte(nil), a.Buffer...)
		}
	}
	r.Calls = append(r.Calls, Call{Node: node, Method: method, Args: cp, Object: obj})
}

func (r *Recorder) EvaluateInteger(node Handle, method string, args []Object) (uint64, error) {
	r.record(node, method, args, false)
	return r.Next.EvaluateInteger(node, method, args)
}

func (r *Recorder) EvaluateObject(node Handle, method string, args []Object) (Object, error) {
	r.record(node, method, args, true)
	return r.Next.EvaluateObject(node, method, args)
}

// Last returns the most recent call, if any.
func (r *Recorder) Last() (Call, bool) {
	if len(r.Calls) == 0 {
		return Call{}, false
	}
	return r.Calls[len(r.Calls)-1], true
}
