// Package value defines the host-side values the guest interpreter produces:
// undefined, null (nil), bool, float64 numbers, BigInt, string and *Object.
package value

import (
	"fmt"
	"math"
	"strconv"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// UndefinedType is the type of Undefined.
type UndefinedType struct{}

func (UndefinedType) String() string { return "undefined" }

// Undefined is the absent value.
var Undefined = UndefinedType{}

// BigInt is a 64-bit integer produced by the guest.
type BigInt int64

func (b BigInt) String() string {
	return strconv.FormatInt(int64(b), 10)
}

// Object is a property bag that keeps insertion order.
type Object struct {
	props *orderedmap.OrderedMap[string, any]
}

// NewObject returns an empty object.
func NewObject() *Object {
	return &Object{props: orderedmap.New[string, any]()}
}

// Set assigns a property. Reassigning keeps the original position.
func (o *Object) Set(key string, v any) {
	o.props.Set(key, v)
}

// Get returns the property value.
func (o *Object) Get(key string) (any, bool) {
	return o.props.Get(key)
}

// Len returns the number of properties.
func (o *Object) Len() int {
	return o.props.Len()
}

// Keys returns property names in insertion order.
func (o *Object) Keys() []string {
	keys := make([]string, 0, o.props.Len())
	for p := o.props.Oldest(); p != nil; p = p.Next() {
		keys = append(keys, p.Key)
	}
	return keys
}

// Range calls fn for each property in insertion order until fn returns false.
func (o *Object) Range(fn func(key string, v any) bool) {
	for p := o.props.Oldest(); p != nil; p = p.Next() {
		if !fn(p.Key, p.Value) {
			return
		}
	}
}

func (o *Object) String() string {
	return "[object Object]"
}

// PropertyKey converts a value used as a property key to its name.
func PropertyKey(v any) string {
	switch k := v.(type) {
	case string:
		return k
	case float64:
		return FormatNumber(k)
	case nil:
		return "null"
	case bool:
		return strconv.FormatBool(k)
	case fmt.Stringer:
		return k.String()
	default:
		return fmt.Sprint(k)
	}
}

// FormatNumber renders a number the way the guest's host language prints it.
func FormatNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case f == 0:
		return "0"
	}
	if abs := math.Abs(f); abs >= 1e-6 && abs < 1e21 {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// TypeName returns the guest-facing type name of v.
func TypeName(v any) string {
	switch v.(type) {
	case UndefinedType:
		return "undefined"
	case nil:
		return "null"
	case bool:
		return "boolean"
	case float64:
		return "number"
	case BigInt:
		return "bigint"
	case string:
		return "string"
	case *Object:
		return "object"
	case error:
		return "error"
	default:
		return fmt.Sprintf("%T", v)
	}
}
